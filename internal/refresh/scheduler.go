// Package refresh runs the background loop that keeps the price cache,
// indicator history and alert state current.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"marketpulse/internal/alert"
	"marketpulse/internal/indicator"
	"marketpulse/internal/logger"
	"marketpulse/internal/markethours"
	"marketpulse/internal/metrics"
	"marketpulse/internal/model"
	"marketpulse/internal/store"
)

// Config controls batching and pacing of the refresh loop.
type Config struct {
	BatchSize  int           // symbols per batch; default 10
	BatchPause time.Duration // after each fetched batch; default 1s
	PassPause  time.Duration // after each full pass; default 30s
}

// Deps are the collaborators of a Scheduler.
type Deps struct {
	Groups     []model.Group
	Source     model.QuoteSource
	Engine     *indicator.Engine
	Session    *markethours.Session
	Cache      *store.PriceCache
	History    *store.History
	Watchlists *store.Watchlists
	Alerts     *alert.Engine
	Metrics    *metrics.Metrics
	Health     *metrics.HealthStatus // optional
	Log        *slog.Logger
}

// Scheduler walks the instrument universe in batches, refreshing quotes and
// indicators, and feeds watched symbols to the alert engine and history.
// It is the only writer of the cache during normal operation.
type Scheduler struct {
	cfg Config
	Deps

	log   *slog.Logger
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
	pass  uint64
}

// New creates a scheduler.
func New(cfg Config, deps Deps) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BatchPause < 0 {
		cfg.BatchPause = 0
	}
	if cfg.PassPause < 0 {
		cfg.PassPause = 0
	}
	return &Scheduler{
		cfg:   cfg,
		Deps:  deps,
		log:   deps.Log.With("component", "refresh"),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// sleepCtx waits for d or until ctx is done. Reports false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Run loops passes until ctx is cancelled. It never stops on a fetch or
// computation failure.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("refresh loop started",
		"groups", len(s.Groups),
		"batch_size", s.cfg.BatchSize,
		"batch_pause", s.cfg.BatchPause.String(),
		"pass_pause", s.cfg.PassPause.String(),
	)
	for {
		s.RunPass(ctx)
		if !s.sleep(ctx, s.cfg.PassPause) {
			s.log.Info("refresh loop stopped")
			return nil
		}
	}
}

// RunPass performs one pass over every group.
func (s *Scheduler) RunPass(ctx context.Context) {
	start := s.now()
	s.pass++
	ctx = logger.WithCycleID(ctx, logger.NewCycleID(s.pass, start))

	open := s.Session.IsOpen(start)
	if open {
		s.Metrics.MarketState.Set(1)
	} else {
		s.Metrics.MarketState.Set(0)
	}
	s.log.DebugContext(ctx, "pass started", append(logger.Attrs(ctx), "session", s.Session.StatusString(start))...)

	for _, g := range s.Groups {
		if g.Kind == model.KindNone {
			continue
		}
		for _, batch := range g.Batches(s.cfg.BatchSize) {
			if ctx.Err() != nil {
				return
			}
			s.runBatch(ctx, g, batch, open)
			if !s.sleep(ctx, s.cfg.BatchPause) {
				return
			}
		}
	}

	s.Metrics.PassesTotal.Inc()
	s.Metrics.PassDur.Observe(s.now().Sub(start).Seconds())
	if s.Health != nil {
		s.Health.PassCompleted(s.now())
	}
	s.log.InfoContext(ctx, "pass completed", append(logger.Attrs(ctx),
		"cache_entries", s.Cache.Len(),
		"duration", s.now().Sub(start).String(),
	)...)
}

// runBatch refreshes one batch and then runs the watched-symbol follow-up
// for the symbols it refreshed. A panic is contained to the batch.
func (s *Scheduler) runBatch(ctx context.Context, g model.Group, batch []string, open bool) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.Metrics.PanicsRecovered.Inc()
			s.log.ErrorContext(ctx, "panic in refresh batch", append(logger.Attrs(ctx),
				"group", g.Name,
				"symbols", batch,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)...)
		}
	}()

	var fresh map[string]model.CacheEntry
	switch g.Kind {
	case model.KindBulk:
		fresh = s.refreshBulk(ctx, g, batch, open)
	case model.KindSpot:
		fresh = s.refreshSpot(ctx, g, batch)
	}
	s.Metrics.BatchDur.Observe(time.Since(start).Seconds())
	if len(fresh) == 0 {
		return
	}

	s.Metrics.SymbolsRefreshed.WithLabelValues(g.Name).Add(float64(len(fresh)))
	s.Metrics.CacheEntries.Set(float64(s.Cache.Len()))

	refreshed := make([]string, 0, len(fresh))
	for _, sym := range batch {
		if _, ok := fresh[sym]; ok {
			refreshed = append(refreshed, sym)
		}
	}
	for _, key := range s.Watchlists.Keys(refreshed) {
		entry := fresh[key.Symbol]
		s.Alerts.Evaluate(ctx, key, entry)
		if len(entry.Indicators) > 0 {
			s.History.Append(key, model.HistoryPoint{Time: entry.UpdatedAt, Indicators: entry.Indicators})
		}
	}
}

// refreshBulk fetches one quote batch, then the series of every symbol the
// provider answered. A failed batch fetch leaves the cache untouched.
func (s *Scheduler) refreshBulk(ctx context.Context, g model.Group, batch []string, open bool) map[string]model.CacheEntry {
	quotes, err := s.Source.FetchQuoteBatch(ctx, batch)
	if err != nil {
		s.fetchFailed(ctx, "quote batch failed", err, "group", g.Name, "symbols", batch)
		return nil
	}

	fresh := make(map[string]model.CacheEntry, len(quotes))
	for _, sym := range batch {
		q, ok := quotes[sym]
		if !ok {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		set, err := s.computeFor(ctx, sym, open)
		if err != nil {
			s.log.WarnContext(ctx, "series fetch failed", append(logger.Attrs(ctx), "symbol", sym, "error", err)...)
		}
		e := model.CacheEntry{Quote: q, Indicators: set, UpdatedAt: s.now().UTC()}
		s.Cache.Put(e)
		fresh[sym] = e
	}
	return fresh
}

// refreshSpot fetches spot prices one pair at a time. Spot entries carry
// no previous close and no indicators.
func (s *Scheduler) refreshSpot(ctx context.Context, g model.Group, batch []string) map[string]model.CacheEntry {
	fresh := make(map[string]model.CacheEntry, len(batch))
	for _, sym := range batch {
		if ctx.Err() != nil {
			break
		}
		base, quote, err := model.SplitPair(sym)
		if err != nil {
			s.log.WarnContext(ctx, "bad spot symbol", append(logger.Attrs(ctx), "group", g.Name, "symbol", sym, "error", err)...)
			continue
		}
		price, err := s.Source.FetchSpotPrice(ctx, base, quote)
		if err != nil {
			s.fetchFailed(ctx, "spot price failed", err, "symbol", sym)
			continue
		}
		e := model.CacheEntry{
			Quote:      model.NewQuote(sym, base+"/"+quote, price, 0),
			Indicators: model.IndicatorSet{},
			UpdatedAt:  s.now().UTC(),
		}
		s.Cache.Put(e)
		fresh[sym] = e
	}
	return fresh
}

func (s *Scheduler) fetchFailed(ctx context.Context, msg string, err error, attrs ...any) {
	level := slog.LevelWarn
	if errors.Is(err, context.Canceled) {
		level = slog.LevelDebug
	}
	s.log.Log(ctx, level, msg, append(append(logger.Attrs(ctx), attrs...), "error", err)...)
}

// computeFor fetches the series of symbol at the session's lookback and
// computes its indicators. On fetch failure it returns an empty set and the
// error.
func (s *Scheduler) computeFor(ctx context.Context, symbol string, open bool) (model.IndicatorSet, error) {
	series, err := s.Source.FetchSeries(ctx, symbol, model.LookbackFor(open))
	if err != nil {
		return model.IndicatorSet{}, err
	}
	start := time.Now()
	set := s.Engine.Compute(series, open)
	s.Metrics.IndicatorComputeDur.Observe(time.Since(start).Seconds())
	if len(set) == 0 {
		s.Metrics.IndicatorFailures.Inc()
	}
	return set, nil
}

// Compute fetches and computes the current indicator set of symbol outside
// the loop, for on-demand refreshes. Fetch failures are returned.
func (s *Scheduler) Compute(ctx context.Context, symbol string) (model.IndicatorSet, error) {
	return s.computeFor(ctx, symbol, s.Session.IsOpen(s.now()))
}

// Now returns the scheduler clock.
func (s *Scheduler) Now() time.Time { return s.now() }
