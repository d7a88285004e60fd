// Command report produces a one-shot close-price forecast report for a
// single equity symbol. It loads daily closes from Yahoo Finance (or a
// local cache), fits a trend/seasonality baseline and a recurrent
// sequence model, and writes the interactive chart page, the combined
// table, and the run metadata under a per-run output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"pricecast/internal/config"
	"pricecast/internal/errs"
	"pricecast/internal/forecast"
	"pricecast/internal/infrastructure"
	"pricecast/internal/marketdata"
	"pricecast/internal/report"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (default: pricecast.yaml)")
	symbol := flag.String("symbol", "", "ticker symbol to forecast (overrides config)")
	outDir := flag.String("out", "", "output directory for run artifacts (overrides config)")
	offline := flag.Bool("offline", false, "use cached closes only, never download")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *symbol != "" {
		cfg.Data.Symbol = strings.ToUpper(*symbol)
	}
	if *outDir != "" {
		cfg.Report.OutDir = *outDir
	}
	if *offline {
		cfg.Data.Offline = true
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := infrastructure.MustInitializeLogger(cfg.Logging)
	defer infrastructure.CloseLogFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		infrastructure.WithError(logger, err).ErrorContext(ctx, "forecast run failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	model := forecast.NewRecurrentModel(infrastructure.WithComponent(logger, "rnn"))
	driver, err := forecast.NewDriver(cfg.DriverConfig(), model, infrastructure.WithComponent(logger, "driver"))
	if err != nil {
		return err
	}

	runDir := filepath.Join(cfg.Report.OutDir, driver.RunID())

	otelCfg := &infrastructure.OTelConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: infrastructure.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		Enabled:        cfg.Tracing.Enabled,
		SampleRatio:    cfg.Tracing.SampleRatio,
	}
	if otelCfg.Enabled {
		otelCfg.SpanPath = filepath.Join(runDir, "trace.jsonl")
	}
	providers, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", slog.String("error", err.Error()))
		}
	}()

	logger.InfoContext(ctx, "starting forecast run",
		slog.String("run_id", driver.RunID()),
		slog.String("symbol", cfg.Data.Symbol),
		slog.String("mode", cfg.Model.Mode),
		slog.Int("horizon_days", cfg.Model.HorizonDays))

	series, err := loadSeries(ctx, cfg, logger)
	if err != nil {
		return err
	}

	seasonal := forecast.NewSeasonalModel(cfg.SeasonalOptions(), infrastructure.WithComponent(logger, "seasonal"))
	if err := seasonal.Fit(ctx, series); err != nil {
		return err
	}
	baseline, err := seasonal.Predict(cfg.Model.HorizonDays)
	if err != nil {
		return err
	}

	result, err := driver.Run(ctx, series)
	if err != nil {
		return err
	}

	alignOpts := report.AlignOptions{DisplayWindowDays: cfg.Report.DisplayWindowDays}

	// Two alignments feed the page: the baseline alone for the
	// decomposition chart, then both forecasts for the combined view.
	primary, err := report.Align(series, baseline, nil, alignOpts)
	if err != nil {
		return err
	}
	combined, err := report.Align(series, baseline, result.Forecast, alignOpts)
	if err != nil {
		return err
	}

	artifacts, err := writeArtifacts(runDir, cfg.Data.Symbol, primary, combined, result, cfg.Tracing.Enabled)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "report generated",
		slog.String("run_id", result.RunID),
		slog.String("dir", runDir),
		slog.Int("artifacts", len(artifacts)))

	printRunSummary(cfg.Data.Symbol, result, runDir)
	return nil
}

// loadSeries returns the daily closes for the configured symbol, from the
// cache when it is fresh enough and from Yahoo Finance otherwise. Offline
// mode never downloads and accepts a stale cache.
func loadSeries(ctx context.Context, cfg *config.Config, logger *slog.Logger) (marketdata.PriceSeries, error) {
	log := infrastructure.WithComponent(logger, "marketdata")

	ctx, span := otel.Tracer("pricecast/marketdata").Start(ctx, "marketdata.load")
	defer span.End()

	cachePath := filepath.Join(cfg.Data.CacheDir, cfg.Data.Symbol+".csv")

	if marketdata.CacheFresh(cachePath, cfg.CacheTTL()) {
		series, err := marketdata.LoadCSV(cachePath)
		if err == nil {
			infrastructure.AddSpanEvent(ctx, "cache hit", map[string]interface{}{
				"path":   cachePath,
				"points": len(series),
			})
			log.InfoContext(ctx, "loaded closes from cache",
				slog.String("path", cachePath),
				slog.Int("points", len(series)))
			return series, nil
		}
		log.WarnContext(ctx, "cache unreadable, downloading instead",
			slog.String("path", cachePath),
			slog.String("error", err.Error()))
	}

	if cfg.Data.Offline {
		series, err := marketdata.LoadCSV(cachePath)
		if err != nil {
			unavailable := errs.DataUnavailable(cfg.Data.Symbol,
				fmt.Errorf("offline mode needs a cached series at %s: %w", cachePath, err))
			infrastructure.RecordError(ctx, unavailable)
			return nil, unavailable
		}
		log.InfoContext(ctx, "loaded closes from cache, freshness ignored in offline mode",
			slog.String("path", cachePath),
			slog.Int("points", len(series)))
		return series, nil
	}

	end := time.Now().UTC()
	start := end.AddDate(-cfg.Data.LookbackYears, 0, 0)

	client := marketdata.NewClient(marketdata.WithLogger(log))
	series, err := client.Fetch(ctx, cfg.Data.Symbol, start, end)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"symbol": cfg.Data.Symbol,
		"points": len(series),
	})

	// A failed cache write only costs the next run a download.
	if err := series.SaveCSV(cachePath); err != nil {
		log.WarnContext(ctx, "failed to refresh cache",
			slog.String("path", cachePath),
			slog.String("error", err.Error()))
	}

	return series, nil
}

func writeArtifacts(runDir, symbol string, primary, combined report.CombinedTable, result *forecast.Result, tracingEnabled bool) ([]string, error) {
	generatedAt := time.Now().UTC()

	meta := report.ChartMeta{
		Symbol:        symbol,
		PrimaryName:   "Trend + seasonality",
		SecondaryName: "Recurrent network",
		GeneratedAt:   generatedAt,
	}

	if err := report.SaveHTML(filepath.Join(runDir, "forecast_report.html"), primary, combined, meta); err != nil {
		return nil, err
	}
	if err := combined.SaveCSV(filepath.Join(runDir, "combined_table.csv")); err != nil {
		return nil, err
	}
	if err := report.SaveXLSX(filepath.Join(runDir, "combined_table.xlsx"), combined); err != nil {
		return nil, err
	}

	artifacts := []string{
		"forecast_report.html",
		"combined_table.csv",
		"combined_table.xlsx",
		"summary.txt",
		"run_meta.json",
	}
	if tracingEnabled {
		artifacts = append(artifacts, "trace.jsonl")
	}

	record := report.RunRecord{
		RunID:          result.RunID,
		Symbol:         symbol,
		GeneratedAt:    generatedAt,
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

	if err := report.SaveSummaryReport(record, filepath.Join(runDir, "summary.txt")); err != nil {
		return nil, err
	}
	if err := report.SaveRunMeta(record, filepath.Join(runDir, "run_meta.json")); err != nil {
		return nil, err
	}

	return artifacts, nil
}

func printRunSummary(symbol string, result *forecast.Result, runDir string) {
	fmt.Printf("\n=== %s CLOSE FORECAST ===\n", symbol)
	fmt.Printf("Run ID:     %s\n", result.RunID)
	fmt.Printf("Windows:    %d (train %d / test %d)\n", result.WindowCount, result.TrainCount, result.TestCount)
	fmt.Printf("Train MSE:  %.6f (normalized)\n", result.TrainMSE)
	fmt.Printf("Test MSE:   %.6f (normalized)\n", result.TestMSE)
	fmt.Printf("Forecast:   %s to %s (%s)\n",
		result.Forecast.Start().Format("2006-01-02"),
		result.Forecast.End().Format("2006-01-02"),
		result.Config.Mode)
	fmt.Printf("Artifacts:  %s\n", runDir)
}
