// Package marketdata retrieves and caches daily closing prices for a
// single equity symbol. The Yahoo Finance chart API is the provider;
// a CSV cache allows offline replays of a previously fetched series.
package marketdata

import (
	"time"

	"pricecast/internal/errs"
)

// PricePoint is one daily observation: the trading date and its close.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// IsValid checks that the observation carries a date and a positive close.
func (p PricePoint) IsValid() bool {
	return !p.Date.IsZero() && p.Close > 0
}

// PriceSeries is an ordered sequence of daily closes, strictly increasing
// by date with no duplicates. Constructed by the fetcher or the CSV
// loader, both of which drop incomplete bars and sort ascending.
type PriceSeries []PricePoint

// Validate enforces the series invariants: non-empty, positive closes,
// strictly increasing dates.
func (s PriceSeries) Validate() error {
	if len(s) == 0 {
		return errs.InvalidInput("series", "empty series")
	}
	for i, p := range s {
		if !p.IsValid() {
			return errs.InvalidInputf("series", "bar %d invalid: date=%s close=%.4f",
				i, p.Date.Format("2006-01-02"), p.Close)
		}
		if i > 0 && !s[i-1].Date.Before(p.Date) {
			return errs.InvalidInputf("series", "dates not strictly increasing at index %d (%s then %s)",
				i, s[i-1].Date.Format("2006-01-02"), p.Date.Format("2006-01-02"))
		}
	}
	return nil
}

// Closes returns the close values in series order.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, p := range s {
		closes[i] = p.Close
	}
	return closes
}

// Dates returns the dates in series order.
func (s PriceSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s))
	for i, p := range s {
		dates[i] = p.Date
	}
	return dates
}

// First returns the earliest observation. The series must be non-empty.
func (s PriceSeries) First() PricePoint {
	return s[0]
}

// Last returns the latest observation. The series must be non-empty.
func (s PriceSeries) Last() PricePoint {
	return s[len(s)-1]
}

// Tail returns the last n observations, or the whole series when it is
// shorter than n.
func (s PriceSeries) Tail(n int) PriceSeries {
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// DateOnly truncates a timestamp to UTC midnight. All series dates and
// join keys go through this so date equality is always exact.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
