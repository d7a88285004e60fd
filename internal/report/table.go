// Package report assembles the run artifacts: the aligned
// actual/forecast table, the interactive charts, the spreadsheet and
// CSV exports, and the narrative summary.
package report

import (
	"sort"
	"time"

	"pricecast/internal/errs"
	"pricecast/internal/forecast"
	"pricecast/internal/marketdata"
)

// Cell is a nullable table value. The zero value is null.
type Cell struct {
	Value float64
	Valid bool
}

// NewCell returns a non-null cell holding v.
func NewCell(v float64) Cell {
	return Cell{Value: v, Valid: true}
}

// Row is one date of the combined table. Any subset of the value cells
// may be null; the date never is.
type Row struct {
	Date         time.Time
	Actual       Cell
	Primary      Cell
	PrimaryUpper Cell
	PrimaryLower Cell
	Secondary    Cell
}

// CombinedTable is the date-sorted outer join of the actual closes with
// the model forecasts.
type CombinedTable []Row

// ForecastStart returns the first date carrying any forecast cell, zero
// when the table has none.
func (t CombinedTable) ForecastStart() time.Time {
	for _, r := range t {
		if r.Primary.Valid || r.Secondary.Valid {
			return r.Date
		}
	}
	return time.Time{}
}

// AlignOptions controls how much history the table keeps.
type AlignOptions struct {
	// DisplayWindowDays trims rows older than the forecast start minus
	// this many days. Zero keeps the full history.
	DisplayWindowDays int
}

// Align outer-joins the actual series with the two forecasts on exact
// calendar dates (UTC midnight). Where a date has an actual close, the
// forecast cells are forced null so the history region of the charts
// never shows fitted values. Rows older than the display window are
// dropped, and the result is sorted by date.
func Align(actual marketdata.PriceSeries, primary forecast.BoundedForecast, secondary forecast.ForecastSeries, opts AlignOptions) (CombinedTable, error) {
	if opts.DisplayWindowDays < 0 {
		return nil, errs.InvalidInputf("display_window_days", "%d, must not be negative", opts.DisplayWindowDays)
	}
	if err := actual.Validate(); err != nil {
		return nil, err
	}
	if len(primary) == 0 {
		return nil, errs.InvalidInput("forecast", "empty primary forecast")
	}

	rows := make(map[time.Time]*Row)
	row := func(date time.Time) *Row {
		d := marketdata.DateOnly(date)
		r, ok := rows[d]
		if !ok {
			r = &Row{Date: d}
			rows[d] = r
		}
		return r
	}

	for _, p := range actual {
		row(p.Date).Actual = NewCell(p.Close)
	}
	for _, p := range primary {
		r := row(p.Date)
		if r.Primary.Valid {
			return nil, errs.InvalidInputf("forecast", "duplicate primary forecast date %s", p.Date.Format("2006-01-02"))
		}
		r.Primary = NewCell(p.Value)
		r.PrimaryUpper = NewCell(p.Upper)
		r.PrimaryLower = NewCell(p.Lower)
	}
	for _, p := range secondary {
		r := row(p.Date)
		if r.Secondary.Valid {
			return nil, errs.InvalidInputf("forecast", "duplicate secondary forecast date %s", p.Date.Format("2006-01-02"))
		}
		r.Secondary = NewCell(p.Value)
	}

	// Observed closes win: a date with an actual value shows only the
	// actual value.
	for _, r := range rows {
		if r.Actual.Valid {
			r.Primary = Cell{}
			r.PrimaryUpper = Cell{}
			r.PrimaryLower = Cell{}
			r.Secondary = Cell{}
		}
	}

	forecastStart := marketdata.DateOnly(primary.Start())
	if s := secondary.Start(); !s.IsZero() && marketdata.DateOnly(s).Before(forecastStart) {
		forecastStart = marketdata.DateOnly(s)
	}

	table := make(CombinedTable, 0, len(rows))
	cutoff := time.Time{}
	if opts.DisplayWindowDays > 0 {
		cutoff = forecastStart.AddDate(0, 0, -opts.DisplayWindowDays)
	}
	for _, r := range rows {
		if !cutoff.IsZero() && r.Date.Before(cutoff) {
			continue
		}
		table = append(table, *r)
	}
	sort.Slice(table, func(i, j int) bool { return table[i].Date.Before(table[j].Date) })
	return table, nil
}
