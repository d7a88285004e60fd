package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"pricecast/internal/errs"
	"pricecast/internal/marketdata"
)

// minSeasonalPoints is the smallest series the decomposition will fit.
// Below this there is not enough data for even a weekly profile.
const minSeasonalPoints = 14

// yearlyMinSpanDays gates the yearly component: monthly offsets from
// less than two full years are mostly noise.
const yearlyMinSpanDays = 730

// SeasonalOptions configures the decomposition components.
type SeasonalOptions struct {
	// Weekly adds a day-of-week offset to the linear trend.
	Weekly bool
	// Yearly adds a month-of-year offset. Requires at least two years
	// of history.
	Yearly bool
	// IntervalWidth is the residual quantile mass enclosed by the
	// Upper/Lower bounds, e.g. 0.8 for an 80% band. Zero selects 0.8.
	IntervalWidth float64
}

// SeasonalModel decomposes a price series into a linear trend over
// calendar days plus optional weekly and yearly offsets, with
// uncertainty bounds taken from the empirical residual quantiles.
// Implements DecompositionModel.
type SeasonalModel struct {
	opts   SeasonalOptions
	logger *slog.Logger

	fitted  bool
	first   time.Time
	last    time.Time
	alpha   float64
	beta    float64
	weekday [7]float64
	month   [13]float64
	loQ     float64
	hiQ     float64
}

var _ DecompositionModel = (*SeasonalModel)(nil)

// NewSeasonalModel creates an unfitted model.
func NewSeasonalModel(opts SeasonalOptions, logger *slog.Logger) *SeasonalModel {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.IntervalWidth == 0 {
		opts.IntervalWidth = 0.8
	}
	return &SeasonalModel{opts: opts, logger: logger}
}

// Fit estimates the trend, the enabled seasonal offsets, and the
// residual quantiles from the series.
func (m *SeasonalModel) Fit(ctx context.Context, series marketdata.PriceSeries) error {
	if m.opts.IntervalWidth <= 0 || m.opts.IntervalWidth >= 1 {
		return errs.InvalidInputf("interval_width", "%g outside (0, 1)", m.opts.IntervalWidth)
	}
	if err := series.Validate(); err != nil {
		return err
	}
	if len(series) < minSeasonalPoints {
		return errs.InvalidInputf("series", "%d points, decomposition needs at least %d", len(series), minSeasonalPoints)
	}

	m.first = marketdata.DateOnly(series[0].Date)
	m.last = marketdata.DateOnly(series[len(series)-1].Date)
	spanDays := int(m.last.Sub(m.first).Hours() / 24)
	if m.opts.Yearly && spanDays < yearlyMinSpanDays {
		return errs.InvalidInputf("series", "yearly seasonality needs %d days of history, have %d", yearlyMinSpanDays, spanDays)
	}

	dates := make([]time.Time, len(series))
	xs := make([]float64, len(series))
	ys := make([]float64, len(series))
	for i, p := range series {
		dates[i] = marketdata.DateOnly(p.Date)
		xs[i] = dates[i].Sub(m.first).Hours() / 24
		ys[i] = p.Close
	}
	m.alpha, m.beta = stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(m.alpha) || math.IsNaN(m.beta) {
		return errs.Training("fit", fmt.Errorf("trend regression produced non-finite coefficients"))
	}

	residuals := make([]float64, len(series))
	for i := range series {
		residuals[i] = ys[i] - (m.alpha + m.beta*xs[i])
	}

	if m.opts.Weekly {
		m.weekday = groupMeans(residuals, dates, func(d time.Time) int { return int(d.Weekday()) })
		for i, d := range dates {
			residuals[i] -= m.weekday[d.Weekday()]
		}
	}
	if m.opts.Yearly {
		m.month = groupMeans13(residuals, dates, func(d time.Time) int { return int(d.Month()) })
		for i, d := range dates {
			residuals[i] -= m.month[d.Month()]
		}
	}

	sort.Float64s(residuals)
	tail := (1 - m.opts.IntervalWidth) / 2
	m.loQ = stat.Quantile(tail, stat.Empirical, residuals, nil)
	m.hiQ = stat.Quantile(1-tail, stat.Empirical, residuals, nil)

	m.fitted = true
	m.logger.InfoContext(ctx, "fitted decomposition model",
		slog.Int("points", len(series)),
		slog.Int("span_days", spanDays),
		slog.Float64("trend_slope", m.beta),
		slog.Bool("weekly", m.opts.Weekly),
		slog.Bool("yearly", m.opts.Yearly))
	return nil
}

// Predict extends the fitted components over the horizon, one point per
// calendar day after the last observed date.
func (m *SeasonalModel) Predict(horizonDays int) (BoundedForecast, error) {
	if !m.fitted {
		return BoundedForecast{}, errs.Training("predict", fmt.Errorf("model not fitted"))
	}
	if horizonDays < 1 {
		return BoundedForecast{}, errs.InvalidInputf("horizon_days", "%d, must be at least 1", horizonDays)
	}

	out := make(BoundedForecast, 0, horizonDays)
	for k := 1; k <= horizonDays; k++ {
		date := m.last.AddDate(0, 0, k)
		idx := date.Sub(m.first).Hours() / 24
		value := m.alpha + m.beta*idx
		if m.opts.Weekly {
			value += m.weekday[date.Weekday()]
		}
		if m.opts.Yearly {
			value += m.month[date.Month()]
		}
		out = append(out, BoundPoint{
			Date:  date,
			Value: value,
			Upper: value + m.hiQ,
			Lower: value + m.loQ,
		})
	}
	return out, nil
}

// groupMeans averages values by a 0..6 key derived from the bar date.
func groupMeans(values []float64, dates []time.Time, key func(time.Time) int) [7]float64 {
	var sums [7]float64
	var counts [7]int
	for i, d := range dates {
		k := key(d)
		sums[k] += values[i]
		counts[k]++
	}
	var means [7]float64
	for k := range sums {
		if counts[k] > 0 {
			means[k] = sums[k] / float64(counts[k])
		}
	}
	return means
}

// groupMeans13 averages values by a 1..12 key derived from the bar date.
func groupMeans13(values []float64, dates []time.Time, key func(time.Time) int) [13]float64 {
	var sums [13]float64
	var counts [13]int
	for i, d := range dates {
		k := key(d)
		sums[k] += values[i]
		counts[k]++
	}
	var means [13]float64
	for k := range sums {
		if counts[k] > 0 {
			means[k] = sums[k] / float64(counts[k])
		}
	}
	return means
}
