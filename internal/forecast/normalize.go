// Package forecast holds the analytical core of the report: the
// normalizer, the sliding-window builder, the chronological splitter,
// the two forecasting models, and the pipeline driver that runs a
// normalized series through training, prediction and reassembly.
package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"pricecast/internal/errs"
)

// Params holds the normalization parameters computed once per series
// and reused for the matching denormalization. Never mutated.
type Params struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// IsValid reports whether the parameters can normalize a series.
func (p Params) IsValid() bool {
	return p.StdDev > 0 && !math.IsNaN(p.Mean) && !math.IsNaN(p.StdDev)
}

// FitNormalizer computes the arithmetic mean and sample standard
// deviation of values. A series shorter than two values or with zero
// variance cannot be normalized.
func FitNormalizer(values []float64) (Params, error) {
	if len(values) == 0 {
		return Params{}, errs.InvalidInput("series", "empty series")
	}
	if len(values) < 2 {
		return Params{}, errs.InvalidInput("series", "need at least two values to estimate deviation")
	}

	mean := stat.Mean(values, nil)
	sd := stat.StdDev(values, nil)
	if sd == 0 || math.IsNaN(sd) {
		return Params{}, errs.InvalidInput("series", "zero standard deviation (constant series)")
	}

	return Params{Mean: mean, StdDev: sd}, nil
}

// Normalize maps x to the zero-mean unit-scale representation.
func (p Params) Normalize(x float64) float64 {
	return (x - p.Mean) / p.StdDev
}

// Denormalize is the exact inverse of Normalize up to floating rounding.
func (p Params) Denormalize(x float64) float64 {
	return x*p.StdDev + p.Mean
}

// NormalizeSeries maps every value of xs into a new slice.
func (p Params) NormalizeSeries(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = p.Normalize(x)
	}
	return out
}

// DenormalizeSeries maps every value of xs back to the original scale.
func (p Params) DenormalizeSeries(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = p.Denormalize(x)
	}
	return out
}
