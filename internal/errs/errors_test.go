package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidInputError(t *testing.T) {
	tests := []struct {
		name     string
		err      *InvalidInputError
		expected string
	}{
		{
			name:     "with field",
			err:      InvalidInput("series", "empty series"),
			expected: "invalid input: series: empty series",
		},
		{
			name:     "without field",
			err:      &InvalidInputError{Reason: "nothing to align"},
			expected: "invalid input: nothing to align",
		},
		{
			name:     "formatted reason",
			err:      InvalidInputf("length", "need at least %d values, got %d", 11, 5),
			expected: "invalid input: length: need at least 11 values, got 5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
			assert.ErrorIs(t, tt.err, ErrInvalidInput)
			assert.NotErrorIs(t, tt.err, ErrTraining)
		})
	}
}

func TestDataUnavailableError(t *testing.T) {
	cause := errors.New("connection refused")
	err := DataUnavailable("GOOG", cause)

	assert.Equal(t, "data unavailable for GOOG: connection refused", err.Error())
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.ErrorIs(t, err, cause)

	t.Run("without cause", func(t *testing.T) {
		bare := DataUnavailable("GOOG", nil)
		assert.Equal(t, "data unavailable for GOOG", bare.Error())
		assert.ErrorIs(t, bare, ErrDataUnavailable)
	})
}

func TestTrainingError(t *testing.T) {
	err := Trainingf("train", "loss diverged at epoch %d", 7)

	assert.Equal(t, "training failed at train: loss diverged at epoch 7", err.Error())
	assert.ErrorIs(t, err, ErrTraining)
	assert.NotErrorIs(t, err, ErrInvalidInput)
}

func TestClassificationThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("run forecast: %w", Training("predict", errors.New("model not trained")))

	require.ErrorIs(t, wrapped, ErrTraining)

	var te *TrainingError
	require.ErrorAs(t, wrapped, &te)
	assert.Equal(t, "predict", te.Stage)
}
