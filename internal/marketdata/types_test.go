package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecast/internal/errs"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPriceSeriesValidate(t *testing.T) {
	tests := []struct {
		name    string
		series  PriceSeries
		wantErr bool
	}{
		{
			name: "valid series",
			series: PriceSeries{
				{Date: day(2023, 11, 28), Close: 100.5},
				{Date: day(2023, 11, 29), Close: 101.0},
				{Date: day(2023, 11, 30), Close: 99.75},
			},
			wantErr: false,
		},
		{
			name:    "empty series",
			series:  PriceSeries{},
			wantErr: true,
		},
		{
			name: "non-positive close",
			series: PriceSeries{
				{Date: day(2023, 11, 28), Close: 100.5},
				{Date: day(2023, 11, 29), Close: 0},
			},
			wantErr: true,
		},
		{
			name: "duplicate date",
			series: PriceSeries{
				{Date: day(2023, 11, 28), Close: 100.5},
				{Date: day(2023, 11, 28), Close: 101.0},
			},
			wantErr: true,
		},
		{
			name: "out of order",
			series: PriceSeries{
				{Date: day(2023, 11, 29), Close: 100.5},
				{Date: day(2023, 11, 28), Close: 101.0},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.series.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errs.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPriceSeriesAccessors(t *testing.T) {
	series := PriceSeries{
		{Date: day(2023, 11, 28), Close: 100},
		{Date: day(2023, 11, 29), Close: 101},
		{Date: day(2023, 11, 30), Close: 102},
	}

	assert.Equal(t, []float64{100, 101, 102}, series.Closes())
	assert.Equal(t, day(2023, 11, 28), series.First().Date)
	assert.Equal(t, day(2023, 11, 30), series.Last().Date)
	assert.Equal(t, []time.Time{day(2023, 11, 28), day(2023, 11, 29), day(2023, 11, 30)}, series.Dates())

	tail := series.Tail(2)
	require.Len(t, tail, 2)
	assert.Equal(t, day(2023, 11, 29), tail.First().Date)

	assert.Len(t, series.Tail(10), 3)
}

func TestDateOnly(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 23:30 New York on Nov 29 is already Nov 30 in UTC.
	stamp := time.Date(2023, 11, 29, 23, 30, 0, 0, loc)
	assert.Equal(t, day(2023, 11, 30), DateOnly(stamp))

	assert.Equal(t, day(2023, 11, 29), DateOnly(time.Date(2023, 11, 29, 15, 45, 12, 99, time.UTC)))
}
