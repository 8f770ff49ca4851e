package model

import (
	"strconv"
	"time"
)

// WatchlistID identifies a user watchlist.
type WatchlistID int

func (w WatchlistID) String() string { return strconv.Itoa(int(w)) }

// WatchKey is the composite (watchlist, symbol) key for per-binding state.
type WatchKey struct {
	Watchlist WatchlistID
	Symbol    string
}

// HistoryPoint is one timestamped indicator snapshot of a watched symbol.
type HistoryPoint struct {
	Time       time.Time    `json:"time"`
	Indicators IndicatorSet `json:"indicators"`
}
