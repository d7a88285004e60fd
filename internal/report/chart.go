package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"pricecast/internal/errs"
)

// missingValue is the echarts sentinel for an absent data point. Cells
// that are null render as gaps instead of zeros.
const missingValue = "-"

// bandColor fills the confidence region on the primary chart.
const bandColor = "#5470c6"

// ChartMeta labels the rendered page and its two charts.
type ChartMeta struct {
	Symbol        string
	PrimaryName   string
	SecondaryName string
	GeneratedAt   time.Time
}

// RenderHTML writes the interactive report page: one chart for the
// decomposition forecast with its confidence band, and one combined
// chart overlaying both forecasts on the same actual closes, each with
// a draggable range slider. The primary table carries no secondary
// column; the combined table carries all five.
func RenderHTML(w io.Writer, primary, combined CombinedTable, meta ChartMeta) error {
	if len(primary) == 0 || len(combined) == 0 {
		return errs.InvalidInput("table", "empty chart table")
	}

	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("%s forecast report", meta.Symbol)
	page.SetLayout(components.PageCenterLayout)
	page.AddCharts(
		primaryChart(primary, meta),
		combinedChart(combined, meta),
	)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render charts: %w", err)
	}
	return nil
}

// SaveHTML renders the report page to path, creating parent
// directories as needed.
func SaveHTML(path string, primary, combined CombinedTable, meta ChartMeta) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer f.Close()

	if err := RenderHTML(f, primary, combined, meta); err != nil {
		return err
	}
	return f.Close()
}

func primaryChart(table CombinedTable, meta ChartMeta) *charts.Line {
	line := newBaseLine(
		fmt.Sprintf("%s daily close, %s", meta.Symbol, meta.PrimaryName),
		fmt.Sprintf("forecast with confidence band, generated %s", meta.GeneratedAt.UTC().Format("2006-01-02")),
		table,
	)
	addConfidenceBand(line, table)
	addForecastLine(line, table, meta.PrimaryName, func(r Row) Cell { return r.Primary }, true)
	line.Overlap(actualScatter(table))
	return line
}

// combinedChart overlays both forecasts on the same axis so the models
// can be compared point by point across the horizon.
func combinedChart(table CombinedTable, meta ChartMeta) *charts.Line {
	line := newBaseLine(
		fmt.Sprintf("%s daily close, both models", meta.Symbol),
		fmt.Sprintf("%s and %s, generated %s", meta.PrimaryName, meta.SecondaryName, meta.GeneratedAt.UTC().Format("2006-01-02")),
		table,
	)
	addConfidenceBand(line, table)
	addForecastLine(line, table, meta.PrimaryName, func(r Row) Cell { return r.Primary }, true)
	addForecastLine(line, table, meta.SecondaryName, func(r Row) Cell { return r.Secondary }, false)
	line.Overlap(actualScatter(table))
	return line
}

// addConfidenceBand draws the interval as two stacked series: an
// invisible base at the lower bound and a translucent area spanning up
// to the upper bound.
func addConfidenceBand(line *charts.Line, table CombinedTable) {
	lower := make([]opts.LineData, 0, len(table))
	delta := make([]opts.LineData, 0, len(table))
	for _, r := range table {
		if r.PrimaryLower.Valid && r.PrimaryUpper.Valid {
			lower = append(lower, opts.LineData{Value: r.PrimaryLower.Value})
			delta = append(delta, opts.LineData{Value: r.PrimaryUpper.Value - r.PrimaryLower.Value})
		} else {
			lower = append(lower, opts.LineData{Value: missingValue})
			delta = append(delta, opts.LineData{Value: missingValue})
		}
	}

	line.AddSeries("Lower bound", lower,
		charts.WithLineChartOpts(opts.LineChart{Stack: "confidence", ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Opacity: 0, Width: 0}),
	)
	line.AddSeries("Confidence band", delta,
		charts.WithLineChartOpts(opts.LineChart{Stack: "confidence", ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Opacity: 0, Width: 0}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Color: bandColor, Opacity: 0.25}),
	)
}

func newBaseLine(title, subtitle string, table CombinedTable) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "520px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "8%"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Close", Scale: opts.Bool(true)}),
		charts.WithDataZoomOpts(
			opts.DataZoom{Type: "inside", Start: 50, End: 100},
			opts.DataZoom{Type: "slider", Start: 50, End: 100},
		),
	)
	line.SetXAxis(dateLabels(table))
	return line
}

// addForecastLine plots one forecast column as a smooth line. markStart
// attaches the vertical "forecast start" marker; at most one series per
// chart carries it.
func addForecastLine(line *charts.Line, table CombinedTable, name string, pick func(Row) Cell, markStart bool) {
	data := make([]opts.LineData, 0, len(table))
	for _, r := range table {
		data = append(data, opts.LineData{Value: cellValue(pick(r))})
	}

	seriesOpts := []charts.SeriesOpts{
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true), ShowSymbol: opts.Bool(false)}),
	}
	if start := forecastStartLabel(table, pick); markStart && start != "" {
		seriesOpts = append(seriesOpts,
			charts.WithMarkLineNameXAxisItemOpts(opts.MarkLineNameXAxisItem{Name: "forecast start", XAxis: start}),
			charts.WithMarkLineStyleOpts(opts.MarkLineStyle{Symbol: []string{"none", "none"}}),
		)
	}
	line.AddSeries(name, data, seriesOpts...)
}

func actualScatter(table CombinedTable) *charts.Scatter {
	data := make([]opts.ScatterData, 0, len(table))
	for _, r := range table {
		data = append(data, opts.ScatterData{Value: cellValue(r.Actual), SymbolSize: 5})
	}
	scatter := charts.NewScatter()
	scatter.AddSeries("Actual", data)
	return scatter
}

func dateLabels(table CombinedTable) []string {
	labels := make([]string, 0, len(table))
	for _, r := range table {
		labels = append(labels, r.Date.Format("2006-01-02"))
	}
	return labels
}

// forecastStartLabel returns the x-axis label of the first row where
// the picked forecast column is present, empty when it never is.
func forecastStartLabel(table CombinedTable, pick func(Row) Cell) string {
	for _, r := range table {
		if pick(r).Valid {
			return r.Date.Format("2006-01-02")
		}
	}
	return ""
}

func cellValue(c Cell) interface{} {
	if !c.Valid {
		return missingValue
	}
	return c.Value
}
