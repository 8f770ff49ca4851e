package model

import (
	"encoding/json"
	"time"
)

// Quote is a point-in-time price snapshot for one symbol.
type Quote struct {
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
}

// NewQuote is the single place a Quote is built from provider fields.
// A zero price or previous close is treated as unavailable, in which case
// change is 0. An empty name falls back to the symbol.
func NewQuote(symbol, name string, price, prevClose float64) Quote {
	if name == "" {
		name = symbol
	}
	change := 0.0
	if price != 0 && prevClose != 0 {
		change = Round2(price - prevClose)
	}
	return Quote{Symbol: symbol, Name: name, Price: price, Change: change}
}

// CacheEntry is the current best-known quote and indicator set of a symbol.
type CacheEntry struct {
	Quote
	Indicators IndicatorSet
	UpdatedAt  time.Time
}

// Placeholder is returned for symbols that have never been fetched.
func Placeholder(symbol string) CacheEntry {
	return CacheEntry{Quote: Quote{Symbol: symbol, Name: symbol}}
}

// Clone returns a copy that shares no mutable state with e.
func (e CacheEntry) Clone() CacheEntry {
	e.Indicators = e.Indicators.Clone()
	return e
}

// MarshalJSON flattens the quote fields and indicator names into a single
// object, e.g. {"symbol":"AAPL","price":190.1,"change":1.2,"RSI":55.3,...}.
func (e CacheEntry) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 5+len(e.Indicators))
	for k, v := range e.Indicators {
		m[k] = v
	}
	m["symbol"] = e.Symbol
	m["name"] = e.Name
	m["price"] = e.Price
	m["change"] = e.Change
	if !e.UpdatedAt.IsZero() {
		m["updated_at"] = e.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return json.Marshal(m)
}
