package service

import (
	"context"
	"errors"
	"testing"

	"marketpulse/internal/alert"
	"marketpulse/internal/logger"
	"marketpulse/internal/metrics"
	"marketpulse/internal/model"
	"marketpulse/internal/store"
)

type fakeComputer struct {
	set model.IndicatorSet
	err error
}

func (f *fakeComputer) Compute(ctx context.Context, symbol string) (model.IndicatorSet, error) {
	return f.set, f.err
}

func newTestService(t *testing.T, comp Computer) *Service {
	t.Helper()
	m := metrics.New(nil)
	ah := store.NewAlertHistory()
	groups := []model.Group{
		{Name: "Stocks", Kind: model.KindBulk, Symbols: []string{"AAPL", "MSFT", "GOOGL", "AAPL"}},
		{Name: "Crypto", Kind: model.KindSpot, Symbols: []string{"BTC-USD"}},
	}
	return New(Deps{
		Groups:       groups,
		Cache:        store.NewPriceCache(),
		History:      store.NewHistory(0),
		AlertHistory: ah,
		Watchlists:   store.NewWatchlists(),
		Alerts:       alert.NewEngine(ah, nil, "", m, logger.Discard()),
		Computer:     comp,
		Log:          logger.Discard(),
	})
}

func symbols(entries []model.CacheEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Symbol
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestQuotes_PlaceholderAndDedupe(t *testing.T) {
	s := newTestService(t, nil)
	s.d.Cache.Put(model.CacheEntry{Quote: model.NewQuote("MSFT", "Microsoft Corporation", 410, 405)})

	got := s.Quotes("Stocks", "")
	if want := []string{"AAPL", "MSFT", "GOOGL"}; !equal(symbols(got), want) {
		t.Fatalf("symbols = %v, want %v", symbols(got), want)
	}
	if got[0].Name != "AAPL" || got[0].Price != 0 || got[0].Change != 0 {
		t.Errorf("placeholder = %+v", got[0].Quote)
	}
	if got[1].Price != 410 || got[1].Change != 5 {
		t.Errorf("cached = %+v", got[1].Quote)
	}
}

func TestQuotes_UnknownGroupFallsBack(t *testing.T) {
	s := newTestService(t, nil)
	if got := symbols(s.Quotes("Warrants", "")); len(got) != 3 || got[0] != "AAPL" {
		t.Errorf("fallback = %v", got)
	}
	if got := symbols(s.Quotes("Crypto", "")); !equal(got, []string{"BTC-USD"}) {
		t.Errorf("crypto = %v", got)
	}
}

func TestQuotes_SearchTickerAndName(t *testing.T) {
	s := newTestService(t, nil)
	s.d.Cache.Put(model.CacheEntry{Quote: model.NewQuote("GOOGL", "Alphabet Inc.", 170, 168)})

	if got := symbols(s.Quotes("Stocks", "ms")); !equal(got, []string{"MSFT"}) {
		t.Errorf("ticker search = %v", got)
	}
	if got := symbols(s.Quotes("Stocks", "ALPHA")); !equal(got, []string{"GOOGL"}) {
		t.Errorf("name search = %v", got)
	}
	if got := s.Quotes("Stocks", "zzz"); len(got) != 0 {
		t.Errorf("no match = %v", symbols(got))
	}
}

func TestQuotes_UnfilteredCap(t *testing.T) {
	s := newTestService(t, nil)
	syms := make([]string, 150)
	for i := range syms {
		syms[i] = "S" + string(rune('A'+i%26)) + string(rune('A'+i/26))
	}
	s.d.Groups = []model.Group{{Name: "Stocks", Kind: model.KindBulk, Symbols: syms}}
	if got := len(s.Quotes("Stocks", "")); got != 100 {
		t.Errorf("unfiltered = %d, want 100", got)
	}
}

func TestSetAlerts(t *testing.T) {
	s := newTestService(t, nil)
	stored, err := s.SetAlerts(1, []model.Condition{{Indicator: "ema", Operator: "CROSSES_ABOVE", Threshold: 100}})
	if err != nil {
		t.Fatal(err)
	}
	if stored[0].Indicator != model.EMA21 || stored[0].Operator != model.CrossesAbove {
		t.Errorf("normalized = %+v", stored[0])
	}

	_, err = s.SetAlerts(1, []model.Condition{{Indicator: "FOO", Operator: model.CrossesAbove}})
	if !errors.Is(err, ErrInvalidInput) || !errors.Is(err, alert.ErrInvalidCondition) {
		t.Errorf("err = %v", err)
	}
	if got := s.Alerts(1); len(got) != 1 {
		t.Errorf("rejected set replaced the stored one: %+v", got)
	}
}

func TestAlertHistoryRoundTrip(t *testing.T) {
	s := newTestService(t, nil)
	s.d.AlertHistory.Append(model.AlertEvent{Symbol: "AAPL", Message: "RSI crossed above 70 (now 72)"})

	if got := s.AlertHistory("AAPL"); len(got) != 1 {
		t.Fatalf("history = %+v", got)
	}
	s.ClearAlertHistory("AAPL")
	if got := s.AlertHistory("AAPL"); len(got) != 0 {
		t.Errorf("after clear = %+v", got)
	}
}

func TestWatchlist(t *testing.T) {
	s := newTestService(t, nil)
	if got := s.BindWatchlist(7, []string{"AAPL", " AAPL", "MSFT"}); !equal(got, []string{"AAPL", "MSFT"}) {
		t.Errorf("bound = %v", got)
	}
	if got := s.Watchlist(7); !equal(got, []string{"AAPL", "MSFT"}) {
		t.Errorf("watchlist = %v", got)
	}
}

func TestRefreshIndicatorHistory(t *testing.T) {
	comp := &fakeComputer{set: model.IndicatorSet{model.RSI: model.Float(61.2), model.EMA7: nil}}
	s := newTestService(t, comp)

	stored, err := s.RefreshIndicatorHistory(context.Background(), 1, "AAPL")
	if err != nil || !stored {
		t.Fatalf("stored=%v err=%v", stored, err)
	}
	hist := s.IndicatorHistory(1, "AAPL")
	if len(hist) != 1 {
		t.Fatalf("history = %d points", len(hist))
	}
	if v, ok := hist[0].Indicators.Get(model.RSI); !ok || v != 61.2 {
		t.Errorf("RSI = %v", v)
	}

	stored, err = s.RefreshIndicatorHistory(context.Background(), 1, "AAPL")
	if err != nil || stored {
		t.Errorf("identical refresh stored=%v err=%v", stored, err)
	}

	comp.err = errors.New("chart unavailable")
	if _, err := s.RefreshIndicatorHistory(context.Background(), 1, "AAPL"); err == nil {
		t.Error("fetch failure not returned")
	}
	if got := len(s.IndicatorHistory(1, "AAPL")); got != 1 {
		t.Errorf("history after failure = %d", got)
	}

	if _, err := s.RefreshIndicatorHistory(context.Background(), 1, " "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank symbol err = %v", err)
	}
}

func TestGroupsReturnsCopy(t *testing.T) {
	s := newTestService(t, nil)
	g := s.Groups()
	g[0].Symbols[0] = "HACKED"
	if s.Groups()[0].Symbols[0] != "AAPL" {
		t.Error("Groups leaked internal slice")
	}
}
