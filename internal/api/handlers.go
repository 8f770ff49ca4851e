package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"marketpulse/internal/model"
	"marketpulse/internal/service"
)

type handlers struct {
	svc *service.Service
	log *slog.Logger
}

// alertsRequest accepts both the condition list and the legacy flat form
// {watchlist_id, priceAbove, rsiCross, email}.
type alertsRequest struct {
	WatchlistID *int              `json:"watchlist_id"`
	Conditions  []model.Condition `json:"conditions"`
	PriceAbove  *float64          `json:"priceAbove"`
	RSICross    *float64          `json:"rsiCross"`
	Email       string            `json:"email"`
}

// conditions returns the explicit list, or the legacy fields mapped to
// crosses_above conditions targeting the email address.
func (r alertsRequest) conditions() []model.Condition {
	if r.Conditions != nil {
		return r.Conditions
	}
	out := []model.Condition{}
	if r.PriceAbove != nil {
		out = append(out, model.Condition{
			Indicator: model.PriceIndicator, Operator: model.CrossesAbove,
			Threshold: *r.PriceAbove, Target: r.Email,
		})
	}
	if r.RSICross != nil {
		out = append(out, model.Condition{
			Indicator: model.RSI, Operator: model.CrossesAbove,
			Threshold: *r.RSICross, Target: r.Email,
		})
	}
	return out
}

type watchlistRequest struct {
	WatchlistID *int     `json:"watchlist_id"`
	Symbols     []string `json:"symbols"`
}

type refreshRequest struct {
	WatchlistID *int   `json:"watchlist_id"`
	Symbol      string `json:"symbol"`
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// watchlistQuery reads the watchlist_id query parameter.
func watchlistQuery(c *gin.Context) (model.WatchlistID, bool) {
	raw := c.Query("watchlist_id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "watchlist_id must be an integer")
		return 0, false
	}
	return model.WatchlistID(id), true
}

func symbolQuery(c *gin.Context) (string, bool) {
	sym := strings.TrimSpace(c.Query("symbol"))
	if sym == "" {
		badRequest(c, "symbol is required")
		return "", false
	}
	return sym, true
}

// GET /api/stocks?type=Stocks&search=app
func (h *handlers) getStocks(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Quotes(c.DefaultQuery("type", service.DefaultGroup), c.Query("search")))
}

// GET /api/groups
func (h *handlers) getGroups(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Groups())
}

// GET /api/alerts?watchlist_id=1
func (h *handlers) getAlerts(c *gin.Context) {
	id, ok := watchlistQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"watchlist_id": int(id), "conditions": h.svc.Alerts(id)})
}

// POST /api/alerts
// The legacy form may also arrive as query parameters.
func (h *handlers) setAlerts(c *gin.Context) {
	var req alertsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid body: "+err.Error())
			return
		}
	}
	if err := legacyQuery(c, &req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.WatchlistID == nil {
		badRequest(c, "watchlist_id is required")
		return
	}

	stored, err := h.svc.SetAlerts(model.WatchlistID(*req.WatchlistID), req.conditions())
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "conditions": stored})
}

// legacyQuery fills fields of req missing from the body from the query
// string.
func legacyQuery(c *gin.Context, req *alertsRequest) error {
	if v, ok := c.GetQuery("watchlist_id"); ok && req.WatchlistID == nil {
		id, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("watchlist_id must be an integer")
		}
		req.WatchlistID = &id
	}
	for key, dst := range map[string]**float64{"priceAbove": &req.PriceAbove, "rsiCross": &req.RSICross} {
		v, ok := c.GetQuery(key)
		if !ok || *dst != nil || v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.New(key + " must be a number")
		}
		*dst = &f
	}
	if v, ok := c.GetQuery("email"); ok && req.Email == "" {
		req.Email = v
	}
	return nil
}

// GET /api/alert_history?symbol=AAPL
func (h *handlers) getAlertHistory(c *gin.Context) {
	sym, ok := symbolQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.svc.AlertHistory(sym))
}

// DELETE /api/alert_history?symbol=AAPL
func (h *handlers) clearAlertHistory(c *gin.Context) {
	sym, ok := symbolQuery(c)
	if !ok {
		return
	}
	h.svc.ClearAlertHistory(sym)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/watchlist_stocks?watchlist_id=1
func (h *handlers) getWatchlist(c *gin.Context) {
	id, ok := watchlistQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"watchlist_id": int(id), "symbols": h.svc.Watchlist(id)})
}

// POST /api/watchlist_stocks {"watchlist_id":1,"symbols":["AAPL"]}
func (h *handlers) setWatchlist(c *gin.Context) {
	var req watchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body: "+err.Error())
		return
	}
	if req.WatchlistID == nil {
		badRequest(c, "watchlist_id is required")
		return
	}
	stored := h.svc.BindWatchlist(model.WatchlistID(*req.WatchlistID), req.Symbols)
	c.JSON(http.StatusOK, gin.H{"ok": true, "symbols": stored})
}

// GET /api/indicator_history?watchlist_id=1&symbol=AAPL
func (h *handlers) getIndicatorHistory(c *gin.Context) {
	id, ok := watchlistQuery(c)
	if !ok {
		return
	}
	sym, ok := symbolQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.svc.IndicatorHistory(id, sym))
}

// POST /api/indicator_history/refresh {"watchlist_id":1,"symbol":"AAPL"}
func (h *handlers) refreshIndicatorHistory(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body: "+err.Error())
		return
	}
	if req.WatchlistID == nil {
		badRequest(c, "watchlist_id is required")
		return
	}

	stored, err := h.svc.RefreshIndicatorHistory(c.Request.Context(), model.WatchlistID(*req.WatchlistID), req.Symbol)
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		badRequest(c, err.Error())
	case err != nil:
		h.log.Warn("indicator refresh failed", "symbol", req.Symbol, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true, "stored": stored})
	}
}
