package forecast

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pricecast/internal/errs"
	"pricecast/internal/marketdata"
)

// State is a pipeline stage the driver has completed.
type State string

const (
	StateIdle         State = "idle"
	StateNormalized   State = "normalized"
	StateWindowed     State = "windowed"
	StateSplit        State = "split"
	StateTrained      State = "trained"
	StatePredicted    State = "predicted"
	StateDenormalized State = "denormalized"
	StateReassembled  State = "reassembled"
	StateFailed       State = "failed"
)

// Transition records when the driver entered a state.
type Transition struct {
	State State     `json:"state"`
	At    time.Time `json:"at"`
}

// Config carries the pipeline parameters for one forecast run.
type Config struct {
	// SequenceLength is the number of past values each model input
	// window covers.
	SequenceLength int `json:"sequence_length"`
	// HorizonDays is how many days past the end of the series to
	// predict.
	HorizonDays int `json:"horizon_days"`
	// TrainFraction is the leading share of windows used for training.
	TrainFraction float64 `json:"train_fraction"`
	// Mode selects how multi-step predictions are produced.
	Mode Mode `json:"mode"`
	// Hyper configures the sequence model fit.
	Hyper Hyperparameters `json:"hyperparameters"`
}

// Validate checks the pipeline parameters.
func (c Config) Validate() error {
	if c.SequenceLength < 1 {
		return errs.InvalidInputf("sequence_length", "%d, must be at least 1", c.SequenceLength)
	}
	if c.HorizonDays < 1 {
		return errs.InvalidInputf("horizon_days", "%d, must be at least 1", c.HorizonDays)
	}
	if c.TrainFraction <= 0 || c.TrainFraction >= 1 {
		return errs.InvalidInputf("train_fraction", "%g outside (0, 1)", c.TrainFraction)
	}
	if !c.Mode.IsValid() {
		return errs.InvalidInputf("mode", "%q, want %q or %q", string(c.Mode), ModeRepeated, ModeAutoregressive)
	}
	return c.Hyper.Validate()
}

// Result is everything a completed run produced.
type Result struct {
	RunID       string         `json:"run_id"`
	Config      Config         `json:"config"`
	Params      Params         `json:"normalization"`
	Forecast    ForecastSeries `json:"forecast"`
	TrainMSE    float64        `json:"train_mse"`
	TestMSE     float64        `json:"test_mse"`
	WindowCount int            `json:"window_count"`
	TrainCount  int            `json:"train_count"`
	TestCount   int            `json:"test_count"`
	Transitions []Transition   `json:"transitions"`
}

// Driver runs the forecast pipeline end to end: normalize, window,
// split, train, predict, denormalize, reassemble. It is single-shot;
// a Driver that has run (or failed) refuses to run again. Any stage
// error aborts the run with no partial result.
type Driver struct {
	cfg    Config
	model  SequenceModel
	logger *slog.Logger
	tracer trace.Tracer

	runID       string
	state       State
	transitions []Transition
}

// NewDriver validates the configuration and prepares an idle pipeline.
func NewDriver(cfg Config, model SequenceModel, logger *slog.Logger) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if model == nil {
		return nil, errs.InvalidInput("model", "nil sequence model")
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Driver{
		cfg:    cfg,
		model:  model,
		logger: logger,
		tracer: otel.Tracer("pricecast/forecast"),
		runID:  uuid.NewString(),
		state:  StateIdle,
	}
	d.transitions = append(d.transitions, Transition{State: StateIdle, At: time.Now().UTC()})
	return d, nil
}

// RunID identifies this pipeline instance in logs and artifacts.
func (d *Driver) RunID() string { return d.runID }

// State reports the stage the pipeline last completed.
func (d *Driver) State() State { return d.state }

// Transitions returns a copy of the state history so far.
func (d *Driver) Transitions() []Transition {
	out := make([]Transition, len(d.transitions))
	copy(out, d.transitions)
	return out
}

// Run executes the full pipeline over the price series.
func (d *Driver) Run(ctx context.Context, series marketdata.PriceSeries) (*Result, error) {
	if d.state != StateIdle {
		return nil, errs.InvalidInputf("driver", "pipeline already consumed (state %s)", d.state)
	}

	ctx, span := d.tracer.Start(ctx, "forecast.run", trace.WithAttributes(
		attribute.String("run_id", d.runID),
		attribute.String("mode", string(d.cfg.Mode)),
		attribute.Int("sequence_length", d.cfg.SequenceLength),
		attribute.Int("horizon_days", d.cfg.HorizonDays),
	))
	defer span.End()

	advance := func(s State) {
		d.state = s
		d.transitions = append(d.transitions, Transition{State: s, At: time.Now().UTC()})
		span.AddEvent(string(s))
		d.logger.DebugContext(ctx, "pipeline stage complete",
			slog.String("run_id", d.runID),
			slog.String("state", string(s)))
	}
	fail := func(stage string, err error) error {
		d.state = StateFailed
		d.transitions = append(d.transitions, Transition{State: StateFailed, At: time.Now().UTC()})
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		d.logger.ErrorContext(ctx, "forecast run failed",
			slog.String("run_id", d.runID),
			slog.String("stage", stage),
			slog.String("error", err.Error()))
		return err
	}

	if err := series.Validate(); err != nil {
		return nil, fail("validate", err)
	}
	closes := series.Closes()

	params, err := FitNormalizer(closes)
	if err != nil {
		return nil, fail("normalize", err)
	}
	normalized := params.NormalizeSeries(closes)
	advance(StateNormalized)

	windows, err := BuildWindows(normalized, d.cfg.SequenceLength)
	if err != nil {
		return nil, fail("window", err)
	}
	advance(StateWindowed)

	trainW, testW, err := SplitWindows(windows, d.cfg.TrainFraction)
	if err != nil {
		return nil, fail("split", err)
	}
	advance(StateSplit)

	if err := d.model.Train(ctx, trainW, d.cfg.Hyper); err != nil {
		if !errors.Is(err, errs.ErrTraining) && !errors.Is(err, errs.ErrInvalidInput) {
			err = errs.Training("train", err)
		}
		return nil, fail("train", err)
	}
	trainMSE, err := d.model.Evaluate(trainW)
	if err != nil {
		return nil, fail("train", err)
	}
	testMSE, err := d.model.Evaluate(testW)
	if err != nil {
		return nil, fail("train", err)
	}
	span.AddEvent("model evaluated", trace.WithAttributes(
		attribute.Float64("train_mse", trainMSE),
		attribute.Float64("test_mse", testMSE),
	))
	advance(StateTrained)

	window := append([]float64(nil), normalized[len(normalized)-d.cfg.SequenceLength:]...)
	preds := make([]float64, 0, d.cfg.HorizonDays)
	for k := 0; k < d.cfg.HorizonDays; k++ {
		y, err := d.model.Predict(window)
		if err != nil {
			return nil, fail("predict", err)
		}
		preds = append(preds, y)
		if d.cfg.Mode == ModeAutoregressive {
			window = append(window[1:], y)
		}
	}
	advance(StatePredicted)

	denormalized := params.DenormalizeSeries(preds)
	advance(StateDenormalized)

	lastDate := marketdata.DateOnly(series.Last().Date)
	forecast := make(ForecastSeries, 0, d.cfg.HorizonDays)
	for k, v := range denormalized {
		forecast = append(forecast, ForecastPoint{
			Date:  lastDate.AddDate(0, 0, k+1),
			Value: v,
		})
	}
	advance(StateReassembled)

	d.logger.InfoContext(ctx, "forecast run complete",
		slog.String("run_id", d.runID),
		slog.String("mode", string(d.cfg.Mode)),
		slog.Int("windows", len(windows)),
		slog.Int("train_windows", len(trainW)),
		slog.Int("test_windows", len(testW)),
		slog.Float64("train_mse", trainMSE),
		slog.Float64("test_mse", testMSE))

	return &Result{
		RunID:       d.runID,
		Config:      d.cfg,
		Params:      params,
		Forecast:    forecast,
		TrainMSE:    trainMSE,
		TestMSE:     testMSE,
		WindowCount: len(windows),
		TrainCount:  len(trainW),
		TestCount:   len(testW),
		Transitions: d.Transitions(),
	}, nil
}
