// Package integration runs the forecast flow end to end without any
// network access: synthetic closes in, every report artifact out.
package integration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"pricecast/internal/forecast"
	"pricecast/internal/marketdata"
	"pricecast/internal/report"
)

type PipelineSuite struct {
	suite.Suite

	series marketdata.PriceSeries
	logger *slog.Logger
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupSuite() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	// 120 daily closes: upward drift plus a mild cycle, no flat spans.
	start := time.Date(2023, time.January, 2, 0, 0, 0, 0, time.UTC)
	series := make(marketdata.PriceSeries, 0, 120)
	for i := 0; i < 120; i++ {
		series = append(series, marketdata.PricePoint{
			Date:  start.AddDate(0, 0, i),
			Close: 100 + 0.3*float64(i) + 2*math.Sin(float64(i)/5),
		})
	}
	s.series = series
	s.Require().NoError(series.Validate())
}

func (s *PipelineSuite) pipelineConfig() forecast.Config {
	return forecast.Config{
		SequenceLength: 8,
		HorizonDays:    10,
		TrainFraction:  0.8,
		Mode:           forecast.ModeRepeated,
		Hyper: forecast.Hyperparameters{
			Epochs:          40,
			BatchSize:       16,
			ValidationSplit: 0.1,
			LearningRate:    0.03,
			HiddenSize:      8,
			Seed:            7,
		},
	}
}

func (s *PipelineSuite) TestFullRunProducesAllArtifacts() {
	ctx := context.Background()
	cfg := s.pipelineConfig()

	model := forecast.NewRecurrentModel(s.logger)
	driver, err := forecast.NewDriver(cfg, model, s.logger)
	s.Require().NoError(err)

	result, err := driver.Run(ctx, s.series)
	s.Require().NoError(err)
	s.Equal(forecast.StateReassembled, driver.State())
	s.Require().Len(result.Forecast, cfg.HorizonDays)

	// The driver is single shot.
	_, err = driver.Run(ctx, s.series)
	s.Error(err)

	seasonal := forecast.NewSeasonalModel(forecast.SeasonalOptions{Weekly: true}, s.logger)
	s.Require().NoError(seasonal.Fit(ctx, s.series))
	baseline, err := seasonal.Predict(cfg.HorizonDays)
	s.Require().NoError(err)

	alignOpts := report.AlignOptions{DisplayWindowDays: 60}
	primary, err := report.Align(s.series, baseline, nil, alignOpts)
	s.Require().NoError(err)
	combined, err := report.Align(s.series, baseline, result.Forecast, alignOpts)
	s.Require().NoError(err)
	// 60 trailing actual days plus the 10 forecast days.
	s.Len(primary, 70)
	s.Len(combined, 70)
	for _, r := range primary {
		s.False(r.Secondary.Valid, "primary table must not carry the sequence forecast")
	}

	runDir := filepath.Join(s.T().TempDir(), result.RunID)

	meta := report.ChartMeta{
		Symbol:        "TEST",
		PrimaryName:   "Trend + seasonality",
		SecondaryName: "Recurrent network",
		GeneratedAt:   time.Now().UTC(),
	}
	s.Require().NoError(report.SaveHTML(filepath.Join(runDir, "forecast_report.html"), primary, combined, meta))
	s.Require().NoError(combined.SaveCSV(filepath.Join(runDir, "combined_table.csv")))
	s.Require().NoError(report.SaveXLSX(filepath.Join(runDir, "combined_table.xlsx"), combined))

	artifacts := []string{
		"forecast_report.html",
		"combined_table.csv",
		"combined_table.xlsx",
		"summary.txt",
		"run_meta.json",
	}
	record := report.RunRecord{
		RunID:          result.RunID,
		Symbol:         "TEST",
		GeneratedAt:    meta.GeneratedAt,
		Mode:           result.Config.Mode,
		SequenceLength: result.Config.SequenceLength,
		HorizonDays:    result.Config.HorizonDays,
		TrainFraction:  result.Config.TrainFraction,
		WindowCount:    result.WindowCount,
		TrainCount:     result.TrainCount,
		TestCount:      result.TestCount,
		TrainMSE:       result.TrainMSE,
		TestMSE:        result.TestMSE,
		Normalization:  result.Params,
		ForecastStart:  result.Forecast.Start(),
		ForecastEnd:    result.Forecast.End(),
		Transitions:    result.Transitions,
		Artifacts:      artifacts,
	}
	s.Require().NoError(report.SaveSummaryReport(record, filepath.Join(runDir, "summary.txt")))
	s.Require().NoError(report.SaveRunMeta(record, filepath.Join(runDir, "run_meta.json")))

	for _, name := range artifacts {
		info, err := os.Stat(filepath.Join(runDir, name))
		s.Require().NoError(err, name)
		s.Positive(info.Size(), name)
	}

	html, err := os.ReadFile(filepath.Join(runDir, "forecast_report.html"))
	s.Require().NoError(err)
	s.Contains(string(html), "echarts")
	s.Contains(string(html), "TEST")
	s.Contains(string(html), "both models")

	summary, err := os.ReadFile(filepath.Join(runDir, "summary.txt"))
	s.Require().NoError(err)
	s.Contains(string(summary), "MODEL EVALUATION")
	s.Contains(string(summary), result.RunID)

	var parsed map[string]interface{}
	metaBytes, err := os.ReadFile(filepath.Join(runDir, "run_meta.json"))
	s.Require().NoError(err)
	s.Require().NoError(json.Unmarshal(metaBytes, &parsed))
	s.Equal(result.RunID, parsed["run_id"])
	s.Equal("repeated", parsed["mode"])
}

func (s *PipelineSuite) TestSeasonalAndSequenceForecastsShareDates() {
	ctx := context.Background()
	cfg := s.pipelineConfig()

	model := forecast.NewRecurrentModel(s.logger)
	driver, err := forecast.NewDriver(cfg, model, s.logger)
	s.Require().NoError(err)
	result, err := driver.Run(ctx, s.series)
	s.Require().NoError(err)

	seasonal := forecast.NewSeasonalModel(forecast.SeasonalOptions{}, s.logger)
	s.Require().NoError(seasonal.Fit(ctx, s.series))
	baseline, err := seasonal.Predict(cfg.HorizonDays)
	s.Require().NoError(err)

	s.Require().Len(baseline, len(result.Forecast))
	for i := range baseline {
		s.True(baseline[i].Date.Equal(result.Forecast[i].Date),
			"forecast date %d diverges: %s vs %s",
			i, baseline[i].Date, result.Forecast[i].Date)
	}

	// Both start the calendar day after the last observed close.
	nextDay := marketdata.DateOnly(s.series.Last().Date).AddDate(0, 0, 1)
	s.True(baseline.Start().Equal(nextDay))
	s.True(result.Forecast.Start().Equal(nextDay))
}
