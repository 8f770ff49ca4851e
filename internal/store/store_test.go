package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"marketpulse/internal/model"
)

func set(kv ...any) model.IndicatorSet {
	s := model.IndicatorSet{}
	for i := 0; i < len(kv); i += 2 {
		name := kv[i].(string)
		if kv[i+1] == nil {
			s[name] = nil
			continue
		}
		s[name] = model.Float(kv[i+1].(float64))
	}
	return s
}

func TestPriceCache_PutGetIsolation(t *testing.T) {
	c := NewPriceCache()
	in := model.CacheEntry{Quote: model.NewQuote("AAPL", "Apple", 190, 188), Indicators: set("RSI", 55.0)}
	c.Put(in)

	*in.Indicators["RSI"] = 1 // caller mutates its copy
	got, ok := c.Get("AAPL")
	if !ok {
		t.Fatal("expected entry")
	}
	if v, _ := got.Indicators.Get("RSI"); v != 55 {
		t.Errorf("stored entry aliased caller data: RSI=%v", v)
	}

	*got.Indicators["RSI"] = 2
	again, _ := c.Get("AAPL")
	if v, _ := again.Indicators.Get("RSI"); v != 55 {
		t.Errorf("Get returned an alias: RSI=%v", v)
	}

	if _, ok := c.Get("MSFT"); ok {
		t.Error("unexpected entry for MSFT")
	}
	if c.Len() != 1 || len(c.Snapshot()) != 1 {
		t.Errorf("Len=%d Snapshot=%d", c.Len(), len(c.Snapshot()))
	}
}

func TestPriceCache_PutReplacesWholesale(t *testing.T) {
	c := NewPriceCache()
	c.Put(model.CacheEntry{Quote: model.NewQuote("X", "", 10, 9), Indicators: set("RSI", 50.0, "ADX", 20.0)})
	c.Put(model.CacheEntry{Quote: model.NewQuote("X", "", 11, 10), Indicators: set("RSI", 51.0)})

	got, _ := c.Get("X")
	if _, ok := got.Indicators["ADX"]; ok {
		t.Error("stale indicator survived a replace")
	}
	if got.Price != 11 {
		t.Errorf("price = %v", got.Price)
	}
}

func TestHistory_DedupAndLimit(t *testing.T) {
	h := NewHistory(3)
	key := model.WatchKey{Watchlist: 1, Symbol: "AAPL"}
	t0 := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)

	if h.Append(key, model.HistoryPoint{Time: t0, Indicators: model.IndicatorSet{}}) {
		t.Error("empty set must be rejected")
	}
	if !h.Append(key, model.HistoryPoint{Time: t0, Indicators: set("RSI", 50.0)}) {
		t.Fatal("first point rejected")
	}
	// Same values at a later time: suppressed.
	if h.Append(key, model.HistoryPoint{Time: t0.Add(time.Minute), Indicators: set("RSI", 50.0)}) {
		t.Error("consecutive duplicate stored")
	}
	for i := 1; i <= 4; i++ {
		h.Append(key, model.HistoryPoint{Time: t0.Add(time.Duration(i) * time.Hour), Indicators: set("RSI", 50.0+float64(i))})
	}

	got := h.Get(key)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []float64{52, 53, 54} {
		if v, _ := got[i].Indicators.Get("RSI"); v != want {
			t.Errorf("point %d RSI = %v, want %v", i, v, want)
		}
	}
	if n := h.Evicted(); n != 2 {
		t.Errorf("evicted = %d, want 2", n)
	}

	if other := h.Get(model.WatchKey{Watchlist: 2, Symbol: "AAPL"}); other == nil || len(other) != 0 {
		t.Errorf("unknown key: %v", other)
	}
}

func TestHistory_LimitNeverExceedsDefault(t *testing.T) {
	key := model.WatchKey{Watchlist: 1, Symbol: "AAPL"}
	for _, limit := range []int{0, -5, 150} {
		h := NewHistory(limit)
		for i := 0; i < 150; i++ {
			h.Append(key, model.HistoryPoint{Indicators: set("RSI", float64(i))})
		}
		if n := len(h.Get(key)); n != DefaultHistoryLimit {
			t.Errorf("limit %d: stored %d points, want %d", limit, n, DefaultHistoryLimit)
		}
		if n := h.Evicted(); n != 50 {
			t.Errorf("limit %d: evicted %d, want 50", limit, n)
		}
	}
}

func TestHistory_AbsenceIsAValue(t *testing.T) {
	h := NewHistory(10)
	key := model.WatchKey{Watchlist: 1, Symbol: "X"}
	h.Append(key, model.HistoryPoint{Indicators: set("RSI", nil)})
	if !h.Append(key, model.HistoryPoint{Indicators: set("RSI", 0.0)}) {
		t.Error("absent → 0 is a change and must be stored")
	}
}

func TestHistory_ConcurrentAppendsRespectLimit(t *testing.T) {
	h := NewHistory(100)
	key := model.WatchKey{Watchlist: 7, Symbol: "SPY"}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				h.Append(key, model.HistoryPoint{Indicators: set("RSI", float64(w*1000+i))})
				_ = h.Get(key)
			}
		}(w)
	}
	wg.Wait()

	if n := len(h.Get(key)); n != 100 {
		t.Errorf("len = %d, want 100", n)
	}
}

func TestAlertHistory(t *testing.T) {
	a := NewAlertHistory()
	for i := 0; i < 3; i++ {
		a.Append(model.AlertEvent{ID: fmt.Sprint(i), Symbol: "AAPL"})
	}
	a.Append(model.AlertEvent{ID: "x", Symbol: "MSFT"})

	got := a.List("AAPL")
	if len(got) != 3 || got[0].ID != "0" || got[2].ID != "2" {
		t.Errorf("AAPL events = %+v", got)
	}

	a.Clear("AAPL")
	if len(a.List("AAPL")) != 0 {
		t.Error("clear left events behind")
	}
	if len(a.List("MSFT")) != 1 {
		t.Error("clear touched another symbol")
	}
	a.Clear("NOPE") // no-op
}

func TestWatchlists(t *testing.T) {
	w := NewWatchlists()
	got := w.Bind(2, []string{"MSFT", " AAPL ", "MSFT", ""})
	if fmt.Sprint(got) != "[MSFT AAPL]" {
		t.Errorf("Bind = %v", got)
	}
	w.Bind(1, []string{"AAPL"})

	keys := w.Keys([]string{"AAPL", "TSLA"})
	want := []model.WatchKey{{Watchlist: 1, Symbol: "AAPL"}, {Watchlist: 2, Symbol: "AAPL"}}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Errorf("Keys = %v, want %v", keys, want)
	}

	w.Bind(2, []string{"TSLA"})
	if fmt.Sprint(w.Symbols(2)) != "[TSLA]" {
		t.Errorf("replace: %v", w.Symbols(2))
	}

	w.Bind(2, nil)
	if len(w.Symbols(2)) != 0 {
		t.Error("empty bind should clear")
	}
}
