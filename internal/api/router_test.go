package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"marketpulse/internal/alert"
	"marketpulse/internal/logger"
	"marketpulse/internal/metrics"
	"marketpulse/internal/model"
	"marketpulse/internal/service"
	"marketpulse/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubComputer struct {
	err error
}

func (s *stubComputer) Compute(ctx context.Context, symbol string) (model.IndicatorSet, error) {
	if s.err != nil {
		return nil, s.err
	}
	return model.IndicatorSet{model.RSI: model.Float(48.5)}, nil
}

type fixture struct {
	router *gin.Engine
	cache  *store.PriceCache
	alerts *store.AlertHistory
	comp   *stubComputer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := metrics.New(nil)
	f := &fixture{
		cache:  store.NewPriceCache(),
		alerts: store.NewAlertHistory(),
		comp:   &stubComputer{},
	}
	svc := service.New(service.Deps{
		Groups: []model.Group{
			{Name: "Stocks", Kind: model.KindBulk, Symbols: []string{"AAPL", "MSFT"}},
			{Name: "Crypto", Kind: model.KindSpot, Symbols: []string{"BTC-USD"}},
		},
		Cache:        f.cache,
		History:      store.NewHistory(0),
		AlertHistory: f.alerts,
		Watchlists:   store.NewWatchlists(),
		Alerts:       alert.NewEngine(f.alerts, nil, "", m, logger.Discard()),
		Computer:     f.comp,
		Log:          logger.Discard(),
	})
	f.router = NewRouter(Options{
		Service: svc,
		Metrics: m.Handler(),
		Health:  metrics.NewHealthStatus(),
		Log:     logger.Discard(),
	})
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

func TestGetStocks(t *testing.T) {
	f := newFixture(t)
	f.cache.Put(model.CacheEntry{
		Quote:      model.NewQuote("AAPL", "Apple Inc.", 190.5, 188.25),
		Indicators: model.IndicatorSet{model.RSI: model.Float(55.3)},
	})

	w := f.do(t, http.MethodGet, "/api/stocks?type=Unknown", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	rows := decodeBody[[]map[string]any](t, w)
	if len(rows) != 2 {
		t.Fatalf("rows = %v", rows)
	}
	if rows[0]["symbol"] != "AAPL" || rows[0]["RSI"] != 55.3 || rows[0]["change"] != 2.25 {
		t.Errorf("AAPL row = %v", rows[0])
	}
	if rows[1]["name"] != "MSFT" || rows[1]["price"] != 0.0 {
		t.Errorf("placeholder row = %v", rows[1])
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS header = %q", got)
	}

	w = f.do(t, http.MethodGet, "/api/stocks?search=apple", "")
	if rows := decodeBody[[]map[string]any](t, w); len(rows) != 1 || rows[0]["symbol"] != "AAPL" {
		t.Errorf("search rows = %v", rows)
	}
}

func TestAlerts_ConditionList(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/alerts",
		`{"watchlist_id":3,"conditions":[{"indicator":"rsi","operator":"crosses_above","threshold":70,"target":"ops@example.com"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}

	w = f.do(t, http.MethodGet, "/api/alerts?watchlist_id=3", "")
	got := decodeBody[struct {
		Conditions []model.Condition `json:"conditions"`
	}](t, w)
	if len(got.Conditions) != 1 || got.Conditions[0].Indicator != model.RSI || got.Conditions[0].Target != "ops@example.com" {
		t.Errorf("conditions = %+v", got.Conditions)
	}
}

func TestAlerts_LegacyForm(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/alerts", `{"watchlist_id":1,"priceAbove":200,"rsiCross":70,"email":"me@example.com"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	got := decodeBody[struct {
		Conditions []model.Condition `json:"conditions"`
	}](t, w)
	want := []model.Condition{
		{Indicator: model.PriceIndicator, Operator: model.CrossesAbove, Threshold: 200, Target: "me@example.com"},
		{Indicator: model.RSI, Operator: model.CrossesAbove, Threshold: 70, Target: "me@example.com"},
	}
	if len(got.Conditions) != len(want) {
		t.Fatalf("conditions = %+v", got.Conditions)
	}
	for i := range want {
		if got.Conditions[i] != want[i] {
			t.Errorf("condition %d = %+v, want %+v", i, got.Conditions[i], want[i])
		}
	}

	// Query-string form as sent by the dashboard.
	w = f.do(t, http.MethodPost, "/api/alerts?watchlist_id=2&priceAbove=150", "")
	if w.Code != http.StatusOK {
		t.Fatalf("query form status = %d: %s", w.Code, w.Body)
	}
	w = f.do(t, http.MethodGet, "/api/alerts?watchlist_id=2", "")
	if !strings.Contains(w.Body.String(), `"threshold":150`) {
		t.Errorf("query form not stored: %s", w.Body)
	}
}

func TestAlerts_Invalid(t *testing.T) {
	f := newFixture(t)
	cases := map[string]string{
		"no watchlist":   `{"conditions":[]}`,
		"bad indicator":  `{"watchlist_id":1,"conditions":[{"indicator":"FOO","operator":"crosses_above","threshold":1}]}`,
		"bad operator":   `{"watchlist_id":1,"conditions":[{"indicator":"RSI","operator":"equals","threshold":1}]}`,
		"malformed json": `{"watchlist_id":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if w := f.do(t, http.MethodPost, "/api/alerts", body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
	if w := f.do(t, http.MethodGet, "/api/alerts?watchlist_id=x", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad watchlist id status = %d", w.Code)
	}
}

func TestAlertHistoryRoutes(t *testing.T) {
	f := newFixture(t)
	f.alerts.Append(model.AlertEvent{ID: "a1", Symbol: "AAPL", Kind: model.AlertThreshold, Message: "RSI crossed above 70 (now 72)"})

	w := f.do(t, http.MethodGet, "/api/alert_history?symbol=AAPL", "")
	events := decodeBody[[]model.AlertEvent](t, w)
	if len(events) != 1 || events[0].Message != "RSI crossed above 70 (now 72)" {
		t.Errorf("events = %+v", events)
	}

	if w := f.do(t, http.MethodDelete, "/api/alert_history?symbol=AAPL", ""); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = f.do(t, http.MethodGet, "/api/alert_history?symbol=AAPL", "")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("after clear = %s", w.Body)
	}
	if w := f.do(t, http.MethodGet, "/api/alert_history", ""); w.Code != http.StatusBadRequest {
		t.Errorf("missing symbol status = %d", w.Code)
	}
}

func TestWatchlistRoutes(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/watchlist_stocks", `{"watchlist_id":4,"symbols":["AAPL","MSFT","AAPL"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	w = f.do(t, http.MethodGet, "/api/watchlist_stocks?watchlist_id=4", "")
	got := decodeBody[struct {
		Symbols []string `json:"symbols"`
	}](t, w)
	if strings.Join(got.Symbols, ",") != "AAPL,MSFT" {
		t.Errorf("symbols = %v", got.Symbols)
	}
}

func TestIndicatorHistoryRoutes(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/indicator_history/refresh", `{"watchlist_id":1,"symbol":"AAPL"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"stored":true`) {
		t.Fatalf("refresh = %d %s", w.Code, w.Body)
	}

	w = f.do(t, http.MethodGet, "/api/indicator_history?watchlist_id=1&symbol=AAPL", "")
	points := decodeBody[[]model.HistoryPoint](t, w)
	if len(points) != 1 {
		t.Fatalf("points = %+v", points)
	}
	if v, ok := points[0].Indicators.Get(model.RSI); !ok || v != 48.5 {
		t.Errorf("RSI = %v", v)
	}

	f.comp.err = errors.New("chart unavailable")
	if w := f.do(t, http.MethodPost, "/api/indicator_history/refresh", `{"watchlist_id":1,"symbol":"AAPL"}`); w.Code != http.StatusBadGateway {
		t.Errorf("fetch failure status = %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/indicator_history/refresh", `{"watchlist_id":1,"symbol":""}`); w.Code != http.StatusBadRequest {
		t.Errorf("blank symbol status = %d", w.Code)
	}
}

func TestAuxiliaryRoutes(t *testing.T) {
	f := newFixture(t)
	if w := f.do(t, http.MethodGet, "/api/groups", ""); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"BTC-USD"`) {
		t.Errorf("groups = %d %s", w.Code, w.Body)
	}
	if w := f.do(t, http.MethodGet, "/api/health", ""); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"starting"`) {
		t.Errorf("health = %d %s", w.Code, w.Body)
	}
	if w := f.do(t, http.MethodGet, "/metrics", ""); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "marketpulse_refresh_passes_total") {
		t.Errorf("metrics = %d", w.Code)
	}
	if w := f.do(t, http.MethodOptions, "/api/alerts", ""); w.Code != http.StatusNoContent {
		t.Errorf("preflight = %d", w.Code)
	}
}
