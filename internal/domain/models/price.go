package models

import (
	"fmt"
	"time"
)

// PricePoint is one daily close observation.
type PricePoint struct {
	Date  time.Time
	Close float64
}

// PriceSeries is an ordered run of daily closes for a single symbol.
type PriceSeries struct {
	Symbol string
	Points []PricePoint
}

// Len returns the number of observations.
func (s PriceSeries) Len() int { return len(s.Points) }

// Closes returns the close prices in series order.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

// Last returns the most recent observation. ok is false for an empty series.
func (s PriceSeries) Last() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Tail returns the last n observations as a new series sharing the backing array.
func (s PriceSeries) Tail(n int) PriceSeries {
	if n >= len(s.Points) {
		return s
	}
	if n < 0 {
		n = 0
	}
	return PriceSeries{Symbol: s.Symbol, Points: s.Points[len(s.Points)-n:]}
}

// Validate checks that the series is non-empty with strictly increasing dates.
func (s PriceSeries) Validate() error {
	if len(s.Points) == 0 {
		return ErrEmptySeries
	}
	for i := 1; i < len(s.Points); i++ {
		if !s.Points[i].Date.After(s.Points[i-1].Date) {
			return fmt.Errorf("%w: %s at index %d does not follow %s",
				ErrUnorderedSeries,
				s.Points[i].Date.Format("2006-01-02"), i,
				s.Points[i-1].Date.Format("2006-01-02"))
		}
	}
	return nil
}
