package forecast

import (
	"context"
	"time"

	"pricecast/internal/errs"
	"pricecast/internal/marketdata"
)

// Mode selects how the driver produces multi-step predictions.
type Mode string

const (
	// ModeRepeated predicts every horizon step from the same trailing
	// window of observed values. Later steps never see earlier
	// predictions.
	ModeRepeated Mode = "repeated"
	// ModeAutoregressive feeds each prediction back into the window, so
	// step k consumes the k-1 predictions before it.
	ModeAutoregressive Mode = "autoregressive"
)

// IsValid reports whether the mode is one of the two known values.
func (m Mode) IsValid() bool {
	return m == ModeRepeated || m == ModeAutoregressive
}

func (m Mode) String() string { return string(m) }

// Hyperparameters configures sequence-model training.
type Hyperparameters struct {
	Epochs          int     `json:"epochs"`
	BatchSize       int     `json:"batch_size"`
	ValidationSplit float64 `json:"validation_split"`
	LearningRate    float64 `json:"learning_rate"`
	HiddenSize      int     `json:"hidden_size"`
	Seed            int64   `json:"seed"`
}

// DefaultHyperparameters returns training settings that converge on a
// few years of daily closes in seconds.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		Epochs:          60,
		BatchSize:       32,
		ValidationSplit: 0.1,
		LearningRate:    0.02,
		HiddenSize:      16,
		Seed:            42,
	}
}

// Validate checks every field range.
func (hp Hyperparameters) Validate() error {
	if hp.Epochs < 1 {
		return errs.InvalidInputf("epochs", "must be positive, got %d", hp.Epochs)
	}
	if hp.BatchSize < 1 {
		return errs.InvalidInputf("batch_size", "must be positive, got %d", hp.BatchSize)
	}
	if hp.ValidationSplit < 0 || hp.ValidationSplit >= 1 {
		return errs.InvalidInputf("validation_split", "must be in [0,1), got %g", hp.ValidationSplit)
	}
	if hp.LearningRate <= 0 {
		return errs.InvalidInputf("learning_rate", "must be positive, got %g", hp.LearningRate)
	}
	if hp.HiddenSize < 1 {
		return errs.InvalidInputf("hidden_size", "must be positive, got %d", hp.HiddenSize)
	}
	return nil
}

// SequenceModel is the capability contract for the trainable sequence
// model. Train fits the model on windowed pairs, Predict maps one input
// window to the next value, Evaluate returns mean squared error over a
// window set. All values are on the normalized scale.
type SequenceModel interface {
	Train(ctx context.Context, windows []Window, hp Hyperparameters) error
	Predict(input []float64) (float64, error)
	Evaluate(windows []Window) (float64, error)
}

// DecompositionModel is the capability contract for the additive
// trend/seasonality forecaster. It works on raw prices and produces
// bounds alongside the point estimate.
type DecompositionModel interface {
	Fit(ctx context.Context, series marketdata.PriceSeries) error
	Predict(horizonDays int) (BoundedForecast, error)
}

// ForecastPoint is one predicted future close.
type ForecastPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ForecastSeries is an ordered run of predictions on contiguous
// calendar days starting the day after the last observation.
type ForecastSeries []ForecastPoint

// Start returns the first forecast date, zero when empty.
func (fs ForecastSeries) Start() time.Time {
	if len(fs) == 0 {
		return time.Time{}
	}
	return fs[0].Date
}

// End returns the last forecast date, zero when empty.
func (fs ForecastSeries) End() time.Time {
	if len(fs) == 0 {
		return time.Time{}
	}
	return fs[len(fs)-1].Date
}

// BoundPoint is one predicted future close with confidence bounds.
type BoundPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
	Upper float64   `json:"upper"`
	Lower float64   `json:"lower"`
}

// BoundedForecast is the decomposition model output: ordered future
// dates, each with a point estimate and an interval around it.
type BoundedForecast []BoundPoint

// Start returns the first forecast date, zero when empty.
func (bf BoundedForecast) Start() time.Time {
	if len(bf) == 0 {
		return time.Time{}
	}
	return bf[0].Date
}

// Points strips the bounds, leaving the point-estimate series.
func (bf BoundedForecast) Points() ForecastSeries {
	points := make(ForecastSeries, len(bf))
	for i, bp := range bf {
		points[i] = ForecastPoint{Date: bp.Date, Value: bp.Value}
	}
	return points
}
