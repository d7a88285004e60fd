package forecast

import (
	"math"

	"pricecast/internal/errs"
)

// Window pairs a fixed-length slice of normalized values with the value
// that immediately follows it, the supervised learning target.
type Window struct {
	Input  []float64
	Target float64
}

// BuildWindows slices a series of N scalars into N-L windows of length
// L: window i has input series[i:i+L] and target series[i+L]. Windows
// are ordered by target position. Inputs are copies, so later mutation
// of the source series cannot corrupt training data.
func BuildWindows(series []float64, length int) ([]Window, error) {
	if length < 1 {
		return nil, errs.InvalidInputf("length", "window length must be positive, got %d", length)
	}
	if len(series) < length+1 {
		return nil, errs.InvalidInputf("series", "need at least %d values for window length %d, got %d",
			length+1, length, len(series))
	}

	count := len(series) - length
	windows := make([]Window, 0, count)
	for i := 0; i < count; i++ {
		input := make([]float64, length)
		copy(input, series[i:i+length])
		windows = append(windows, Window{Input: input, Target: series[i+length]})
	}
	return windows, nil
}

// SplitWindows partitions windows chronologically at
// floor(trainFraction * count): the training prefix and the testing
// suffix. No shuffling, so no future-to-past leakage. With any fraction
// below one the test suffix is never empty; the training prefix is
// empty when the series is too short for the fraction, which is an
// error.
func SplitWindows(windows []Window, trainFraction float64) (train, test []Window, err error) {
	if trainFraction <= 0 || trainFraction >= 1 {
		return nil, nil, errs.InvalidInputf("train_fraction", "must be in (0,1), got %g", trainFraction)
	}
	if len(windows) == 0 {
		return nil, nil, errs.InvalidInput("windows", "no windows to split")
	}

	splitIdx := int(math.Floor(trainFraction * float64(len(windows))))
	if splitIdx == 0 {
		return nil, nil, errs.InvalidInputf("windows", "%d windows at fraction %g leave the training set empty",
			len(windows), trainFraction)
	}
	return windows[:splitIdx], windows[splitIdx:], nil
}
