package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"marketpulse/internal/alert"
	"marketpulse/internal/indicator"
	"marketpulse/internal/logger"
	"marketpulse/internal/markethours"
	"marketpulse/internal/metrics"
	"marketpulse/internal/model"
	"marketpulse/internal/store"
)

// saturday is outside any weekday session, so the daily lookback is used.
var saturday = time.Date(2024, 6, 8, 15, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu        sync.Mutex
	quotes    map[string]model.Quote
	batchErr  error
	seriesErr error
	spot      map[string]float64
	panicOn   string

	batchCalls  [][]string
	seriesCalls []model.Lookback
	spotCalls   []string
}

func (f *fakeSource) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	q, ok := f.quotes[symbol]
	if !ok {
		return model.Quote{}, errors.New("no data")
	}
	return q, nil
}

func (f *fakeSource) FetchQuoteBatch(ctx context.Context, symbols []string) (map[string]model.Quote, error) {
	f.mu.Lock()
	f.batchCalls = append(f.batchCalls, symbols)
	f.mu.Unlock()
	if len(symbols) > 0 && symbols[0] == f.panicOn {
		panic("provider exploded")
	}
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make(map[string]model.Quote)
	for _, s := range symbols {
		if q, ok := f.quotes[s]; ok {
			out[s] = q
		}
	}
	return out, nil
}

func (f *fakeSource) FetchSeries(ctx context.Context, symbol string, lb model.Lookback) (model.Series, error) {
	f.mu.Lock()
	f.seriesCalls = append(f.seriesCalls, lb)
	f.mu.Unlock()
	if f.seriesErr != nil {
		return nil, f.seriesErr
	}
	return ramp(30), nil
}

func (f *fakeSource) FetchSpotPrice(ctx context.Context, base, quote string) (float64, error) {
	f.mu.Lock()
	f.spotCalls = append(f.spotCalls, base+"-"+quote)
	f.mu.Unlock()
	p, ok := f.spot[base+"-"+quote]
	if !ok {
		return 0, errors.New("no data")
	}
	return p, nil
}

func ramp(n int) model.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(model.Series, n)
	for i := range out {
		c := float64(100 + i)
		out[i] = model.Bar{TS: start.AddDate(0, 0, i), High: c + 1, Low: c - 1, Close: c, Volume: 100}
	}
	return out
}

type harness struct {
	s       *Scheduler
	src     *fakeSource
	cache   *store.PriceCache
	history *store.History
	watch   *store.Watchlists
	alerts  *alert.Engine
	fired   *store.AlertHistory
	m       *metrics.Metrics
	health  *metrics.HealthStatus
	pauses  []time.Duration
}

func newHarness(t *testing.T, groups []model.Group, src *fakeSource) *harness {
	t.Helper()
	h := &harness{
		src:     src,
		cache:   store.NewPriceCache(),
		history: store.NewHistory(0),
		watch:   store.NewWatchlists(),
		fired:   store.NewAlertHistory(),
		m:       metrics.New(nil),
		health:  metrics.NewHealthStatus(),
	}
	h.alerts = alert.NewEngine(h.fired, nil, "", h.m, logger.Discard())
	h.s = New(Config{BatchSize: 2, BatchPause: time.Second, PassPause: 30 * time.Second}, Deps{
		Groups:     groups,
		Source:     src,
		Engine:     indicator.NewEngine(nil),
		Session:    markethours.WeekdaysOnly(time.UTC),
		Cache:      h.cache,
		History:    h.history,
		Watchlists: h.watch,
		Alerts:     h.alerts,
		Metrics:    h.m,
		Health:     h.health,
		Log:        logger.Discard(),
	})
	h.s.now = func() time.Time { return saturday }
	h.s.sleep = func(ctx context.Context, d time.Duration) bool {
		h.pauses = append(h.pauses, d)
		return ctx.Err() == nil
	}
	return h
}

func stocks(symbols ...string) model.Group {
	return model.Group{Name: "Stocks", Kind: model.KindBulk, Symbols: symbols}
}

func TestRunPass_BulkPopulatesCache(t *testing.T) {
	src := &fakeSource{quotes: map[string]model.Quote{
		"AAPL": model.NewQuote("AAPL", "Apple Inc.", 190.5, 188.25),
		"MSFT": model.NewQuote("MSFT", "Microsoft", 410, 405),
	}}
	h := newHarness(t, []model.Group{stocks("AAPL", "MSFT", "NOPE")}, src)

	h.s.RunPass(context.Background())

	if h.cache.Len() != 2 {
		t.Fatalf("cache has %d entries, want 2", h.cache.Len())
	}
	e, ok := h.cache.Get("AAPL")
	if !ok {
		t.Fatal("AAPL missing")
	}
	if e.Change != 2.25 || e.Name != "Apple Inc." {
		t.Errorf("AAPL quote = %+v", e.Quote)
	}
	if rsi, ok := e.Indicators.Get(model.RSI); !ok || rsi != 100 {
		t.Errorf("RSI = %v, %v; want 100", rsi, ok)
	}
	if len(e.Indicators) != len(model.IndicatorNames) {
		t.Errorf("indicator set has %d names, want %d", len(e.Indicators), len(model.IndicatorNames))
	}
	if !e.UpdatedAt.Equal(saturday) {
		t.Errorf("UpdatedAt = %v", e.UpdatedAt)
	}
	if _, ok := h.cache.Get("NOPE"); ok {
		t.Error("unanswered symbol must not be cached")
	}

	if len(src.batchCalls) != 2 {
		t.Fatalf("batch calls = %v, want 2 batches of size 2", src.batchCalls)
	}
	for _, lb := range src.seriesCalls {
		if lb != model.DailyLookback {
			t.Errorf("lookback = %+v, want daily outside session", lb)
		}
	}
	if len(h.pauses) != 2 || h.pauses[0] != time.Second {
		t.Errorf("pauses = %v, want one per batch", h.pauses)
	}

	if got := testutil.ToFloat64(h.m.PassesTotal); got != 1 {
		t.Errorf("passes = %v", got)
	}
	if got := testutil.ToFloat64(h.m.SymbolsRefreshed.WithLabelValues("Stocks")); got != 2 {
		t.Errorf("symbols refreshed = %v", got)
	}
	if got := testutil.ToFloat64(h.m.MarketState); got != 0 {
		t.Errorf("market state = %v, want closed", got)
	}
	if r, _ := h.health.Report(); r.Status != "healthy" {
		t.Errorf("health = %q after a pass", r.Status)
	}
}

func TestRunPass_BatchFailureKeepsPreviousValue(t *testing.T) {
	src := &fakeSource{batchErr: errors.New("provider down")}
	h := newHarness(t, []model.Group{stocks("AAPL")}, src)
	prev := model.CacheEntry{Quote: model.NewQuote("AAPL", "Apple", 180, 179), Indicators: model.IndicatorSet{}}
	h.cache.Put(prev)

	h.s.RunPass(context.Background())

	got, _ := h.cache.Get("AAPL")
	if got.Price != 180 || got.Change != 1 {
		t.Errorf("entry changed after failed fetch: %+v", got.Quote)
	}
	if len(src.seriesCalls) != 0 {
		t.Error("series fetched after failed batch")
	}
}

func TestRunPass_SeriesFailureStoresEmptySet(t *testing.T) {
	src := &fakeSource{
		quotes:    map[string]model.Quote{"AAPL": model.NewQuote("AAPL", "Apple", 190, 189)},
		seriesErr: errors.New("chart unavailable"),
	}
	h := newHarness(t, []model.Group{stocks("AAPL")}, src)

	h.s.RunPass(context.Background())

	e, ok := h.cache.Get("AAPL")
	if !ok || e.Price != 190 {
		t.Fatalf("quote not stored: %+v", e)
	}
	if e.Indicators == nil || len(e.Indicators) != 0 {
		t.Errorf("indicators = %v, want empty set", e.Indicators)
	}
}

func TestRunPass_SkipsGroupsWithoutFeed(t *testing.T) {
	src := &fakeSource{}
	h := newHarness(t, []model.Group{{Name: "Bonds", Kind: model.KindNone, Symbols: []string{"US10Y"}}}, src)

	h.s.RunPass(context.Background())

	if len(src.batchCalls)+len(src.spotCalls)+len(src.seriesCalls) != 0 {
		t.Error("no-feed group triggered a fetch")
	}
	if len(h.pauses) != 0 {
		t.Errorf("pauses = %v, want none for skipped groups", h.pauses)
	}
}

func TestRunPass_SpotEntries(t *testing.T) {
	src := &fakeSource{spot: map[string]float64{"BTC-USD": 65000.5}}
	groups := []model.Group{{Name: "Crypto", Kind: model.KindSpot, Symbols: []string{"BTC-USD", "ETH-USD", "BTCUSD"}}}
	h := newHarness(t, groups, src)

	h.s.RunPass(context.Background())

	e, ok := h.cache.Get("BTC-USD")
	if !ok {
		t.Fatal("BTC-USD missing")
	}
	if e.Name != "BTC/USD" || e.Price != 65000.5 || e.Change != 0 {
		t.Errorf("spot entry = %+v", e.Quote)
	}
	if e.Indicators == nil || len(e.Indicators) != 0 {
		t.Errorf("spot indicators = %v, want empty set", e.Indicators)
	}
	if _, ok := h.cache.Get("ETH-USD"); ok {
		t.Error("failed spot fetch must not be cached")
	}
	if len(src.spotCalls) != 2 {
		t.Errorf("spot calls = %v, malformed pair must not be fetched", src.spotCalls)
	}
}

func TestRunPass_WatchedSymbolsFeedAlertsAndHistory(t *testing.T) {
	src := &fakeSource{
		quotes: map[string]model.Quote{"AAPL": model.NewQuote("AAPL", "Apple", 190, 189)},
		spot:   map[string]float64{"BTC-USD": 65000},
	}
	groups := []model.Group{
		stocks("AAPL"),
		{Name: "Crypto", Kind: model.KindSpot, Symbols: []string{"BTC-USD"}},
	}
	h := newHarness(t, groups, src)
	h.watch.Bind(1, []string{"AAPL", "BTC-USD"})
	if _, err := h.alerts.SetConditions(1, []model.Condition{
		{Indicator: "RSI", Operator: model.CrossesAbove, Threshold: 70},
		{Indicator: "PRICE", Operator: model.CrossesAbove, Threshold: 60000},
	}); err != nil {
		t.Fatal(err)
	}

	h.s.RunPass(context.Background())

	// RSI fires on AAPL, PRICE only on the crypto pair.
	if got := len(h.fired.List("AAPL")); got != 1 {
		t.Errorf("AAPL alerts = %d, want 1", got)
	}
	if got := len(h.fired.List("BTC-USD")); got != 1 {
		t.Errorf("BTC-USD alerts = %d, want 1", got)
	}
	key := model.WatchKey{Watchlist: 1, Symbol: "AAPL"}
	if got := len(h.history.Get(key)); got != 1 {
		t.Errorf("AAPL history = %d points, want 1", got)
	}
	if got := len(h.history.Get(model.WatchKey{Watchlist: 1, Symbol: "BTC-USD"})); got != 0 {
		t.Errorf("spot history = %d points, want none for empty sets", got)
	}

	// Same series again: thresholds re-fire, history dedupes.
	h.s.RunPass(context.Background())
	if got := len(h.fired.List("AAPL")); got != 2 {
		t.Errorf("AAPL alerts after second pass = %d, want 2", got)
	}
	if got := len(h.history.Get(key)); got != 1 {
		t.Errorf("AAPL history after identical pass = %d, want 1", got)
	}
}

func TestRunPass_UnwatchedSymbolsSkipAlerts(t *testing.T) {
	src := &fakeSource{quotes: map[string]model.Quote{"AAPL": model.NewQuote("AAPL", "Apple", 190, 189)}}
	h := newHarness(t, []model.Group{stocks("AAPL")}, src)
	if _, err := h.alerts.SetConditions(1, []model.Condition{
		{Indicator: "RSI", Operator: model.CrossesAbove, Threshold: 70},
	}); err != nil {
		t.Fatal(err)
	}

	h.s.RunPass(context.Background())

	if got := len(h.fired.List("AAPL")); got != 0 {
		t.Errorf("alerts for unbound symbol = %d", got)
	}
}

func TestRunPass_PanicContainedToBatch(t *testing.T) {
	src := &fakeSource{
		quotes:  map[string]model.Quote{"MSFT": model.NewQuote("MSFT", "Microsoft", 410, 405)},
		panicOn: "AAPL",
	}
	h := newHarness(t, []model.Group{stocks("AAPL", "X", "MSFT")}, src)

	h.s.RunPass(context.Background())

	if _, ok := h.cache.Get("MSFT"); !ok {
		t.Error("batch after the panic was not processed")
	}
	if got := testutil.ToFloat64(h.m.PanicsRecovered); got != 1 {
		t.Errorf("panics recovered = %v", got)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	src := &fakeSource{quotes: map[string]model.Quote{}}
	h := newHarness(t, []model.Group{stocks("AAPL")}, src)
	ctx, cancel := context.WithCancel(context.Background())
	passes := 0
	h.s.sleep = func(ctx context.Context, d time.Duration) bool {
		if d == 30*time.Second {
			passes++
			if passes == 2 {
				cancel()
			}
		}
		return ctx.Err() == nil
	}

	done := make(chan error, 1)
	go func() { done <- h.s.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if got := testutil.ToFloat64(h.m.PassesTotal); got != 2 {
		t.Errorf("passes = %v, want 2", got)
	}
}

func TestCompute_OnDemand(t *testing.T) {
	src := &fakeSource{}
	h := newHarness(t, nil, src)

	set, err := h.s.Compute(context.Background(), "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := set.Get(model.SMA20); !ok || v != 119.5 {
		t.Errorf("SMA20 = %v, %v; want 119.5", v, ok)
	}

	src.seriesErr = errors.New("boom")
	if _, err := h.s.Compute(context.Background(), "AAPL"); err == nil {
		t.Error("expected fetch error")
	}
}

func TestSleepCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	if !sleepCtx(ctx, 0) {
		t.Error("zero sleep on live context should report true")
	}
	cancel()
	if sleepCtx(ctx, time.Hour) {
		t.Error("sleep on cancelled context should report false")
	}
}
