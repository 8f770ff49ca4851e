package model

import (
	"math"

	"github.com/shopspring/decimal"
)

// Indicator names produced by the indicator engine.
const (
	EMA7       = "EMA7"
	EMA21      = "EMA21"
	EMA50      = "EMA50"
	EMA200     = "EMA200"
	SMA20      = "SMA20"
	SMA50      = "SMA50"
	BBUpper    = "BB_UPPER"
	BBLower    = "BB_LOWER"
	RSI        = "RSI"
	MACD       = "MACD"
	MACDSignal = "MACD_SIGNAL"
	MACDHist   = "MACD_HIST"
	StochK     = "STOCH_K"
	StochD     = "STOCH_D"
	ADX        = "ADX"
	CCI        = "CCI"
	ATR        = "ATR"
	ROC        = "ROC"
	WillR      = "WILLR"
	MFI        = "MFI"
	OBV        = "OBV"
	VWAP       = "VWAP"
	PSAR       = "PSAR"
)

// IndicatorNames is the fixed indicator vocabulary in display order.
var IndicatorNames = []string{
	EMA7, EMA21, EMA50, EMA200, SMA20, SMA50, BBUpper, BBLower, RSI,
	MACD, MACDSignal, MACDHist, StochK, StochD, ADX, CCI, ATR, ROC,
	WillR, MFI, OBV, VWAP, PSAR,
}

// IndicatorSet maps indicator name to its latest value. A name mapped to nil
// could not be computed from the available history. An empty set means the
// computation failed as a whole.
type IndicatorSet map[string]*float64

// Get returns the value of name and whether it is present and computable.
func (s IndicatorSet) Get(name string) (float64, bool) {
	v, ok := s[name]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Clone returns a deep copy so callers cannot alias stored values.
func (s IndicatorSet) Clone() IndicatorSet {
	if s == nil {
		return nil
	}
	out := make(IndicatorSet, len(s))
	for k, v := range s {
		if v == nil {
			out[k] = nil
			continue
		}
		x := *v
		out[k] = &x
	}
	return out
}

// Equal reports whether both sets carry the same names with the same values
// and the same absences.
func (s IndicatorSet) Equal(o IndicatorSet) bool {
	if len(s) != len(o) {
		return false
	}
	for k, v := range s {
		w, ok := o[k]
		if !ok {
			return false
		}
		if (v == nil) != (w == nil) {
			return false
		}
		if v != nil && *v != *w {
			return false
		}
	}
	return true
}

// Float returns a pointer to v, the non-absent form of an indicator value.
func Float(v float64) *float64 { return &v }

// Round2 rounds v half away from zero to two decimals. Non-finite values are
// returned unchanged.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
