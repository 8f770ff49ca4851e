// Package service is the facade the control surface talks to. It reads the
// stores the refresh loop writes and forwards configuration changes to the
// alert engine and watchlist bindings.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"marketpulse/internal/alert"
	"marketpulse/internal/model"
	"marketpulse/internal/store"
)

// DefaultGroup is used when a request names an unknown group.
const DefaultGroup = "Stocks"

// maxUnfiltered caps the listing when no search term is given.
const maxUnfiltered = 100

// ErrInvalidInput marks caller mistakes the control surface reports as 400.
var ErrInvalidInput = errors.New("invalid input")

// Computer computes the current indicator set of a symbol on demand.
type Computer interface {
	Compute(ctx context.Context, symbol string) (model.IndicatorSet, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Groups       []model.Group
	Cache        *store.PriceCache
	History      *store.History
	AlertHistory *store.AlertHistory
	Watchlists   *store.Watchlists
	Alerts       *alert.Engine
	Computer     Computer
	Log          *slog.Logger
}

// Service implements the control-surface operations.
type Service struct {
	d   Deps
	log *slog.Logger
	now func() time.Time
}

// New creates a service.
func New(deps Deps) *Service {
	return &Service{d: deps, log: deps.Log.With("component", "service"), now: time.Now}
}

// Groups returns the instrument universe.
func (s *Service) Groups() []model.Group {
	out := make([]model.Group, len(s.d.Groups))
	for i, g := range s.d.Groups {
		g.Symbols = append([]string(nil), g.Symbols...)
		out[i] = g
	}
	return out
}

// Quotes lists the cached entries of a group. Unknown groups fall back to
// DefaultGroup. An empty search returns the first symbols of the group;
// otherwise symbols whose ticker or cached name contains search, ignoring
// case. Symbols never fetched yield a placeholder entry.
func (s *Service) Quotes(group, search string) []model.CacheEntry {
	g, ok := model.FindGroup(s.d.Groups, group)
	if !ok {
		g, _ = model.FindGroup(s.d.Groups, DefaultGroup)
	}
	needle := strings.ToLower(strings.TrimSpace(search))

	out := make([]model.CacheEntry, 0)
	seen := make(map[string]bool)
	for _, sym := range g.Symbols {
		if seen[sym] {
			continue
		}
		if needle == "" && len(out) >= maxUnfiltered {
			break
		}
		entry, cached := s.d.Cache.Get(sym)
		if needle != "" {
			match := strings.Contains(strings.ToLower(sym), needle)
			if !match && cached {
				match = strings.Contains(strings.ToLower(entry.Name), needle)
			}
			if !match {
				continue
			}
		}
		if !cached {
			entry = model.Placeholder(sym)
		}
		seen[sym] = true
		out = append(out, entry)
	}
	return out
}

// SetAlerts replaces the condition set of a watchlist.
func (s *Service) SetAlerts(id model.WatchlistID, conds []model.Condition) ([]model.Condition, error) {
	stored, err := s.d.Alerts.SetConditions(id, conds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	s.log.Info("alert conditions set", "watchlist", int(id), "count", len(stored))
	return stored, nil
}

// Alerts returns the condition set of a watchlist.
func (s *Service) Alerts(id model.WatchlistID) []model.Condition {
	return s.d.Alerts.Conditions(id)
}

// AlertHistory returns the alerts recorded for symbol, oldest first.
func (s *Service) AlertHistory(symbol string) []model.AlertEvent {
	return s.d.AlertHistory.List(symbol)
}

// ClearAlertHistory drops the alerts recorded for symbol.
func (s *Service) ClearAlertHistory(symbol string) {
	s.d.AlertHistory.Clear(symbol)
}

// BindWatchlist replaces the symbols a watchlist follows and returns the
// stored list.
func (s *Service) BindWatchlist(id model.WatchlistID, symbols []string) []string {
	stored := s.d.Watchlists.Bind(id, symbols)
	s.log.Info("watchlist bound", "watchlist", int(id), "symbols", len(stored))
	return stored
}

// Watchlist returns the symbols a watchlist follows.
func (s *Service) Watchlist(id model.WatchlistID) []string {
	return s.d.Watchlists.Symbols(id)
}

// IndicatorHistory returns the stored history of a watched symbol.
func (s *Service) IndicatorHistory(id model.WatchlistID, symbol string) []model.HistoryPoint {
	return s.d.History.Get(model.WatchKey{Watchlist: id, Symbol: symbol})
}

// RefreshIndicatorHistory computes the symbol's indicators now and appends
// them to its history. A fetch failure leaves history unchanged and is
// returned. Reports whether a point was stored; a failed computation or an
// unchanged set stores nothing.
func (s *Service) RefreshIndicatorHistory(ctx context.Context, id model.WatchlistID, symbol string) (bool, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return false, fmt.Errorf("%w: symbol is required", ErrInvalidInput)
	}
	set, err := s.d.Computer.Compute(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("refresh %s: %w", symbol, err)
	}
	key := model.WatchKey{Watchlist: id, Symbol: symbol}
	return s.d.History.Append(key, model.HistoryPoint{Time: s.now().UTC(), Indicators: set}), nil
}
