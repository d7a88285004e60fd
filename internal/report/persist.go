package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"pricecast/internal/forecast"
)

// RunRecord collects everything the narrative artifacts describe about
// one completed run.
type RunRecord struct {
	RunID          string                `json:"run_id"`
	Symbol         string                `json:"symbol"`
	GeneratedAt    time.Time             `json:"generated_at"`
	Mode           forecast.Mode         `json:"mode"`
	SequenceLength int                   `json:"sequence_length"`
	HorizonDays    int                   `json:"horizon_days"`
	TrainFraction  float64               `json:"train_fraction"`
	WindowCount    int                   `json:"window_count"`
	TrainCount     int                   `json:"train_count"`
	TestCount      int                   `json:"test_count"`
	TrainMSE       float64               `json:"train_mse"`
	TestMSE        float64               `json:"test_mse"`
	Normalization  forecast.Params       `json:"normalization"`
	ForecastStart  time.Time             `json:"forecast_start"`
	ForecastEnd    time.Time             `json:"forecast_end"`
	Transitions    []forecast.Transition `json:"transitions"`
	Artifacts      []string              `json:"artifacts"`
}

// SaveCSV writes the combined table with one row per date. Null cells
// stay empty so downstream tools see real gaps, not zeros.
func (t CombinedTable) SaveCSV(outputPath string) error {
	if len(t) == 0 {
		return fmt.Errorf("no rows to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(combinedHeaders); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for _, row := range t {
		record := []string{
			row.Date.Format("2006-01-02"),
			formatCell(row.Actual),
			formatCell(row.Primary),
			formatCell(row.PrimaryUpper),
			formatCell(row.PrimaryLower),
			formatCell(row.Secondary),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write CSV record for %s: %w", record[0], err)
		}
	}

	return nil
}

// formatCell renders a nullable cell for CSV output.
func formatCell(c Cell) string {
	if !c.Valid {
		return ""
	}
	return strconv.FormatFloat(c.Value, 'f', 4, 64)
}

// SaveRunMeta saves the run record as pretty-printed JSON.
func SaveRunMeta(record RunRecord, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(record); err != nil {
		return fmt.Errorf("encode run record: %w", err)
	}

	return nil
}

// SaveSummaryReport writes the plain-text narration of the run: the
// pipeline stages, the dataset shape, the error interpretation and the
// produced artifacts.
func SaveSummaryReport(record RunRecord, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create summary file: %w", err)
	}
	defer file.Close()

	writeSummary(file, record)
	return nil
}

func writeSummary(w io.Writer, record RunRecord) {
	fmt.Fprintf(w, "Equity Close Forecast - Summary Report\n")
	fmt.Fprintf(w, "======================================\n\n")
	fmt.Fprintf(w, "Generated: %s\n", record.GeneratedAt.UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Symbol: %s\n", record.Symbol)
	fmt.Fprintf(w, "Run ID: %s\n\n", record.RunID)

	fmt.Fprintf(w, "PIPELINE\n")
	fmt.Fprintf(w, "--------\n")
	for _, tr := range record.Transitions {
		fmt.Fprintf(w, "%-13s %s\n", tr.State, tr.At.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "DATASET\n")
	fmt.Fprintf(w, "-------\n")
	fmt.Fprintf(w, "Windows: %d (sequence length %d)\n", record.WindowCount, record.SequenceLength)
	fmt.Fprintf(w, "Training windows: %d (%.0f%%)\n", record.TrainCount, record.TrainFraction*100)
	fmt.Fprintf(w, "Testing windows: %d\n", record.TestCount)
	fmt.Fprintf(w, "Normalization: mean %.4f, std dev %.4f\n\n", record.Normalization.Mean, record.Normalization.StdDev)

	fmt.Fprintf(w, "MODEL EVALUATION\n")
	fmt.Fprintf(w, "----------------\n")
	fmt.Fprintf(w, "Train MSE: %.6f (normalized scale)\n", record.TrainMSE)
	fmt.Fprintf(w, "Test MSE: %.6f (normalized scale)\n\n", record.TestMSE)
	for _, line := range interpretErrors(record) {
		fmt.Fprintf(w, "%s\n", line)
	}
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "FORECAST\n")
	fmt.Fprintf(w, "--------\n")
	fmt.Fprintf(w, "Mode: %s (%s)\n", record.Mode, modeNote(record.Mode))
	fmt.Fprintf(w, "Horizon: %d days, %s to %s\n\n", record.HorizonDays,
		record.ForecastStart.Format("2006-01-02"), record.ForecastEnd.Format("2006-01-02"))

	fmt.Fprintf(w, "ARTIFACTS\n")
	fmt.Fprintf(w, "---------\n")
	for _, artifact := range record.Artifacts {
		fmt.Fprintf(w, "%s\n", artifact)
	}
}

// interpretErrors narrates what the two mean squared errors say about
// the fit.
func interpretErrors(record RunRecord) []string {
	variance := record.Normalization.StdDev * record.Normalization.StdDev
	lines := []string{
		"Both errors are measured on the normalized series. Multiply by the",
		fmt.Sprintf("close-price variance (%.4f) to read them on the price scale.", variance),
	}

	if record.TrainMSE <= 0 {
		return lines
	}
	ratio := record.TestMSE / record.TrainMSE
	switch {
	case ratio > 2:
		lines = append(lines, fmt.Sprintf(
			"Test error is %.1fx the training error: the network fits the span it", ratio),
			"trained on better than the held-out tail, so weight the far end of the",
			"forecast with caution.")
	case ratio < 0.5:
		lines = append(lines,
			"Test error sits below the training error, which usually means the",
			"held-out tail was easier to predict than the training span.")
	default:
		lines = append(lines,
			"Training and test errors are close, no strong sign of overfitting.")
	}
	return lines
}

func modeNote(mode forecast.Mode) string {
	switch mode {
	case forecast.ModeAutoregressive:
		return "each prediction feeds the next input, so errors can compound over the horizon"
	default:
		return "every step reads the same trailing window of observed closes"
	}
}
