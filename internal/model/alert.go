package model

import "time"

// Operator is the comparison of a threshold alert condition.
type Operator string

const (
	CrossesAbove Operator = "crosses_above"
	CrossesBelow Operator = "crosses_below"
)

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	return op == CrossesAbove || op == CrossesBelow
}

// PriceIndicator lets a condition compare against the quote price.
const PriceIndicator = "PRICE"

// Condition is a user-defined threshold alert scoped to one watchlist.
type Condition struct {
	Indicator string   `json:"indicator"`
	Operator  Operator `json:"operator"`
	Threshold float64  `json:"threshold"`
	Target    string   `json:"target,omitempty"`
}

// AlertKind classifies an alert event.
type AlertKind string

const (
	AlertThreshold          AlertKind = "threshold"
	AlertShortTermBreakout  AlertKind = "short_term_breakout"
	AlertLongTermBreakout   AlertKind = "long_term_breakout"
	AlertShortTermBreakdown AlertKind = "short_term_breakdown"
	AlertLongTermBreakdown  AlertKind = "long_term_breakdown"
)

// AlertEvent is one triggered alert recorded in a symbol's alert history.
type AlertEvent struct {
	ID        string      `json:"id"`
	Time      time.Time   `json:"time"`
	Symbol    string      `json:"symbol"`
	Watchlist WatchlistID `json:"watchlist_id"`
	Kind      AlertKind   `json:"kind"`
	Message   string      `json:"message"`
}
