// Package config loads the report configuration from defaults, an
// optional YAML file, and PRICECAST_* environment variables, in that
// order of precedence (later layers win).
package config

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"pricecast/internal/errs"
	"pricecast/internal/forecast"
)

// Config is the complete application configuration.
type Config struct {
	Data     DataConfig     `yaml:"data" envconfig:"DATA"`
	Model    ModelConfig    `yaml:"model" envconfig:"MODEL"`
	Seasonal SeasonalConfig `yaml:"seasonal" envconfig:"SEASONAL"`
	Report   ReportConfig   `yaml:"report" envconfig:"REPORT"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Tracing  TracingConfig  `yaml:"tracing" envconfig:"TRACING"`
}

// DataConfig controls which series is fetched and how it is cached.
type DataConfig struct {
	Symbol        string `yaml:"symbol" envconfig:"SYMBOL" validate:"required,ticker"`
	LookbackYears int    `yaml:"lookback_years" envconfig:"LOOKBACK_YEARS" validate:"min=1,max=20"`
	CacheDir      string `yaml:"cache_dir" envconfig:"CACHE_DIR" validate:"required"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" envconfig:"CACHE_TTL_HOURS" validate:"min=0"`
	Offline       bool   `yaml:"offline" envconfig:"OFFLINE"`
}

// ModelConfig configures the forecast pipeline and the sequence model.
type ModelConfig struct {
	SequenceLength  int     `yaml:"sequence_length" envconfig:"SEQUENCE_LENGTH" validate:"min=1,max=365"`
	HorizonDays     int     `yaml:"horizon_days" envconfig:"HORIZON_DAYS" validate:"min=1,max=365"`
	TrainFraction   float64 `yaml:"train_fraction" envconfig:"TRAIN_FRACTION" validate:"gt=0,lt=1"`
	Mode            string  `yaml:"mode" envconfig:"MODE" validate:"oneof=repeated autoregressive"`
	Epochs          int     `yaml:"epochs" envconfig:"EPOCHS" validate:"min=1"`
	BatchSize       int     `yaml:"batch_size" envconfig:"BATCH_SIZE" validate:"min=1"`
	ValidationSplit float64 `yaml:"validation_split" envconfig:"VALIDATION_SPLIT" validate:"gte=0,lt=1"`
	LearningRate    float64 `yaml:"learning_rate" envconfig:"LEARNING_RATE" validate:"gt=0"`
	HiddenSize      int     `yaml:"hidden_size" envconfig:"HIDDEN_SIZE" validate:"min=1,max=512"`
	Seed            int64   `yaml:"seed" envconfig:"SEED"`
}

// SeasonalConfig configures the decomposition model.
type SeasonalConfig struct {
	Weekly        bool    `yaml:"weekly" envconfig:"WEEKLY"`
	Yearly        bool    `yaml:"yearly" envconfig:"YEARLY"`
	IntervalWidth float64 `yaml:"interval_width" envconfig:"INTERVAL_WIDTH" validate:"gt=0,lt=1"`
}

// ReportConfig controls where artifacts land and how much history the
// charts show.
type ReportConfig struct {
	OutDir            string `yaml:"out_dir" envconfig:"OUT_DIR" validate:"required"`
	DisplayWindowDays int    `yaml:"display_window_days" envconfig:"DISPLAY_WINDOW_DAYS" validate:"min=0"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// TracingConfig contains span export configuration.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" envconfig:"ENABLED"`
	SampleRatio float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
	ServiceName string  `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	Environment string  `yaml:"environment" envconfig:"ENVIRONMENT" validate:"required"`
}

// Default returns the configuration used when neither the YAML file nor
// the environment overrides a value.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			LookbackYears: 4,
			CacheDir:      "cache",
			CacheTTLHours: 24,
		},
		Model: ModelConfig{
			SequenceLength:  10,
			HorizonDays:     30,
			TrainFraction:   0.8,
			Mode:            string(forecast.ModeRepeated),
			Epochs:          60,
			BatchSize:       32,
			ValidationSplit: 0.1,
			LearningRate:    0.02,
			HiddenSize:      16,
			Seed:            42,
		},
		Seasonal: SeasonalConfig{
			Weekly:        true,
			Yearly:        false,
			IntervalWidth: 0.8,
		},
		Report: ReportConfig{
			OutDir:            "out",
			DisplayWindowDays: 365,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     true,
			SampleRatio: 1.0,
			ServiceName: "pricecast",
			Environment: "dev",
		},
	}
}

// Load builds the configuration: defaults first, then the YAML file at
// path (or a discovered default location when path is empty), then
// PRICECAST_* environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile is Load without the final validation, for callers that layer
// their own overrides on top before calling Validate themselves.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("PRICECAST", cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}
	return cfg, nil
}

// findConfigFile checks the conventional locations for a config file.
func findConfigFile() string {
	locations := []string{
		"pricecast.yaml",
		"configs/pricecast.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

var tickerPattern = regexp.MustCompile(`^[A-Z0-9^.=\-]{1,15}$`)

// Validate checks every field constraint and reports all violations at
// once.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("ticker", func(fl validator.FieldLevel) bool {
		return tickerPattern.MatchString(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("register ticker validation: %w", err)
	}

	// Report violations under the yaml field names users actually set.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	err := v.Struct(c)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validate config: %w", err)
	}

	var sb strings.Builder
	for i, fe := range validationErrors {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s fails %q", fe.Field(), fe.Tag())
	}
	return errs.InvalidInput("config", sb.String())
}

// CacheTTL converts the configured hours into a duration. Zero disables
// cache freshness entirely.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Data.CacheTTLHours) * time.Hour
}

// Hyperparameters maps the model section onto the training settings.
func (c *Config) Hyperparameters() forecast.Hyperparameters {
	return forecast.Hyperparameters{
		Epochs:          c.Model.Epochs,
		BatchSize:       c.Model.BatchSize,
		ValidationSplit: c.Model.ValidationSplit,
		LearningRate:    c.Model.LearningRate,
		HiddenSize:      c.Model.HiddenSize,
		Seed:            c.Model.Seed,
	}
}

// DriverConfig maps the model section onto the pipeline configuration.
func (c *Config) DriverConfig() forecast.Config {
	return forecast.Config{
		SequenceLength: c.Model.SequenceLength,
		HorizonDays:    c.Model.HorizonDays,
		TrainFraction:  c.Model.TrainFraction,
		Mode:           forecast.Mode(c.Model.Mode),
		Hyper:          c.Hyperparameters(),
	}
}

// SeasonalOptions maps the seasonal section onto the decomposition
// model options.
func (c *Config) SeasonalOptions() forecast.SeasonalOptions {
	return forecast.SeasonalOptions{
		Weekly:        c.Seasonal.Weekly,
		Yearly:        c.Seasonal.Yearly,
		IntervalWidth: c.Seasonal.IntervalWidth,
	}
}
