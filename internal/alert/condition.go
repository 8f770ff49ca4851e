package alert

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"marketpulse/internal/model"
)

// ErrInvalidCondition is returned for conditions naming an unknown indicator
// or operator, or carrying a non-finite threshold.
var ErrInvalidCondition = errors.New("invalid alert condition")

// aliases map short indicator names accepted from clients to the vocabulary.
var aliases = map[string]string{
	"EMA":   model.EMA21,
	"SMA":   model.SMA20,
	"PRICE": model.PriceIndicator,
}

var known = func() map[string]bool {
	m := make(map[string]bool, len(model.IndicatorNames)+1)
	for _, n := range model.IndicatorNames {
		m[n] = true
	}
	m[model.PriceIndicator] = true
	return m
}()

// Canonical resolves an indicator name case-insensitively, applying aliases.
func Canonical(name string) (string, bool) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if a, ok := aliases[n]; ok {
		n = a
	}
	return n, known[n]
}

// Normalize validates c and returns it with a canonical indicator name and
// a trimmed target.
func Normalize(c model.Condition) (model.Condition, error) {
	name, ok := Canonical(c.Indicator)
	if !ok {
		return c, fmt.Errorf("%w: unknown indicator %q", ErrInvalidCondition, c.Indicator)
	}
	op := model.Operator(strings.ToLower(strings.TrimSpace(string(c.Operator))))
	if !op.Valid() {
		return c, fmt.Errorf("%w: unknown operator %q", ErrInvalidCondition, c.Operator)
	}
	if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) {
		return c, fmt.Errorf("%w: threshold must be finite", ErrInvalidCondition)
	}
	c.Indicator = name
	c.Operator = op
	c.Target = strings.TrimSpace(c.Target)
	return c, nil
}

// value resolves the condition's indicator against an entry.
func value(indicator string, e model.CacheEntry) (float64, bool) {
	if indicator == model.PriceIndicator {
		// An unpriced entry has nothing to compare.
		return e.Price, e.Price != 0
	}
	return e.Indicators.Get(indicator)
}
