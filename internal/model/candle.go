package model

import (
	"errors"
	"math"
	"time"
)

// Bar is one OHLCV sample of a historical series. Open is optional: some
// providers leave it null, in which case it is zero.
type Bar struct {
	TS     time.Time `json:"ts"`
	Open   float64   `json:"open,omitempty"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Typical returns (high + low + close) / 3.
func (b Bar) Typical() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// Series is an ordered (oldest first) run of bars for one symbol.
type Series []Bar

// ErrMalformedSeries is returned by Validate for series that cannot feed
// indicator computation.
var ErrMalformedSeries = errors.New("malformed series")

// Validate checks the series is non-empty, strictly time-ordered and has
// finite, positive closes and high >= low on every bar.
func (s Series) Validate() error {
	if len(s) == 0 {
		return ErrMalformedSeries
	}
	for i, b := range s {
		if !finite(b.Close) || !finite(b.High) || !finite(b.Low) || !finite(b.Volume) {
			return ErrMalformedSeries
		}
		if b.Close <= 0 || b.High < b.Low || b.Volume < 0 {
			return ErrMalformedSeries
		}
		if i > 0 && !b.TS.After(s[i-1].TS) {
			return ErrMalformedSeries
		}
	}
	return nil
}

// Last returns the most recent bar. The series must be non-empty.
func (s Series) Last() Bar {
	return s[len(s)-1]
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
