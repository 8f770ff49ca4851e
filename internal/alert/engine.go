// Package alert evaluates user threshold conditions and EMA crossovers on
// every refresh of a watched symbol and records what fired.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketpulse/internal/logger"
	"marketpulse/internal/metrics"
	"marketpulse/internal/model"
	"marketpulse/internal/notification"
	"marketpulse/internal/store"
)

// Enqueuer accepts notifications for asynchronous delivery.
type Enqueuer interface {
	Enqueue(msg notification.Message) bool
}

// emaSnapshot is the EMA state of one (watchlist, symbol) after a cycle.
type emaSnapshot struct {
	ema7, ema21, ema50, ema200 *float64
}

func snapshotOf(s model.IndicatorSet) emaSnapshot {
	return emaSnapshot{ema7: s[model.EMA7], ema21: s[model.EMA21], ema50: s[model.EMA50], ema200: s[model.EMA200]}
}

// Engine holds alert conditions per watchlist and the previous EMA snapshot
// per (watchlist, symbol).
type Engine struct {
	mu         sync.Mutex
	conditions map[model.WatchlistID][]model.Condition
	prev       map[model.WatchKey]emaSnapshot

	history       *store.AlertHistory
	notify        Enqueuer
	defaultTarget string

	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// NewEngine creates an alert engine appending to history and queueing
// notifications on notify. defaultTarget receives crossover notifications
// for watchlists whose conditions name no target.
func NewEngine(history *store.AlertHistory, notify Enqueuer, defaultTarget string, m *metrics.Metrics, log *slog.Logger) *Engine {
	return &Engine{
		conditions:    make(map[model.WatchlistID][]model.Condition),
		prev:          make(map[model.WatchKey]emaSnapshot),
		history:       history,
		notify:        notify,
		defaultTarget: defaultTarget,
		metrics:       m,
		log:           log.With("component", "alert"),
		now:           time.Now,
	}
}

// SetConditions replaces the condition set of a watchlist. Nothing is stored
// if any condition is invalid.
func (e *Engine) SetConditions(id model.WatchlistID, conds []model.Condition) ([]model.Condition, error) {
	clean := make([]model.Condition, 0, len(conds))
	for i, c := range conds {
		n, err := Normalize(c)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
		clean = append(clean, n)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(clean) == 0 {
		delete(e.conditions, id)
		return []model.Condition{}, nil
	}
	e.conditions[id] = clean
	return append([]model.Condition(nil), clean...), nil
}

// Conditions returns the condition set of a watchlist.
func (e *Engine) Conditions(id model.WatchlistID) []model.Condition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.Condition{}, e.conditions[id]...)
}

// Evaluate runs threshold and crossover checks for one refreshed binding
// and returns the events it recorded.
func (e *Engine) Evaluate(ctx context.Context, key model.WatchKey, entry model.CacheEntry) []model.AlertEvent {
	now := e.now()

	e.mu.Lock()
	conds := e.conditions[key.Watchlist]
	prev, hasPrev := e.prev[key]
	if len(entry.Indicators) > 0 {
		e.prev[key] = snapshotOf(entry.Indicators.Clone())
	}
	e.mu.Unlock()

	var events []model.AlertEvent
	var targets []string

	for _, c := range conds {
		v, ok := value(c.Indicator, entry)
		if !ok {
			continue
		}
		var fired bool
		var verb string
		switch c.Operator {
		case model.CrossesAbove:
			fired, verb = v > c.Threshold, "above"
		case model.CrossesBelow:
			fired, verb = v < c.Threshold, "below"
		}
		if !fired {
			continue
		}
		msg := fmt.Sprintf("%s crossed %s %s (now %s)", c.Indicator, verb, num(c.Threshold), num(v))
		ev := e.record(key, model.AlertThreshold, msg, now)
		events = append(events, ev)
		e.send(ctx, c.Target, ev, notification.LevelWarning)
	}

	if hasPrev && len(entry.Indicators) > 0 {
		cur := snapshotOf(entry.Indicators)
		for _, x := range crossovers(prev, cur) {
			ev := e.record(key, x.kind, x.msg, now)
			events = append(events, ev)
			if targets == nil {
				targets = e.crossoverTargets(conds)
			}
			for _, t := range targets {
				e.send(ctx, t, ev, x.level)
			}
		}
	}

	if len(events) > 0 {
		e.log.InfoContext(ctx, "alerts fired",
			append(logger.Attrs(ctx),
				"watchlist", int(key.Watchlist),
				"symbol", key.Symbol,
				"count", len(events),
			)...,
		)
	}
	return events
}

func (e *Engine) record(key model.WatchKey, kind model.AlertKind, msg string, at time.Time) model.AlertEvent {
	ev := model.AlertEvent{
		ID:        uuid.NewString(),
		Time:      at.UTC(),
		Symbol:    key.Symbol,
		Watchlist: key.Watchlist,
		Kind:      kind,
		Message:   msg,
	}
	e.history.Append(ev)
	e.metrics.AlertsFired.WithLabelValues(string(kind)).Inc()
	return ev
}

// send queues a notification for ev. Conditions without a target fall back
// to the default target; with neither, the event is only recorded.
func (e *Engine) send(ctx context.Context, target string, ev model.AlertEvent, level notification.Level) {
	if target == "" {
		target = e.defaultTarget
	}
	if target == "" || e.notify == nil {
		return
	}
	e.notify.Enqueue(notification.Message{
		Target:  target,
		Subject: fmt.Sprintf("Alert for %s", ev.Symbol),
		Body:    ev.Message,
		Level:   level,
	})
}

// crossoverTargets returns the distinct condition targets of a watchlist in
// condition order, or the default target when none is set.
func (e *Engine) crossoverTargets(conds []model.Condition) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range conds {
		if c.Target != "" && !seen[c.Target] {
			seen[c.Target] = true
			out = append(out, c.Target)
		}
	}
	if len(out) == 0 && e.defaultTarget != "" {
		out = []string{e.defaultTarget}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
