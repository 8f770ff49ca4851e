package store

import (
	"sync"

	"marketpulse/internal/model"
)

// AlertHistory is the append-only log of triggered alerts per symbol.
type AlertHistory struct {
	mu     sync.RWMutex
	events map[string][]model.AlertEvent
}

// NewAlertHistory creates an empty alert log.
func NewAlertHistory() *AlertHistory {
	return &AlertHistory{events: make(map[string][]model.AlertEvent)}
}

// Append records ev under ev.Symbol.
func (a *AlertHistory) Append(ev model.AlertEvent) {
	a.mu.Lock()
	a.events[ev.Symbol] = append(a.events[ev.Symbol], ev)
	a.mu.Unlock()
}

// List returns the events for symbol in append order.
func (a *AlertHistory) List(symbol string) []model.AlertEvent {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.AlertEvent, len(a.events[symbol]))
	copy(out, a.events[symbol])
	return out
}

// Clear empties the log of symbol.
func (a *AlertHistory) Clear(symbol string) {
	a.mu.Lock()
	delete(a.events, symbol)
	a.mu.Unlock()
}
