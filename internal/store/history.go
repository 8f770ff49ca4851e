package store

import (
	"sync"

	"marketpulse/internal/model"
	"marketpulse/internal/ringbuf"
)

// DefaultHistoryLimit is the number of points kept per (watchlist, symbol),
// and also the most any History will keep.
const DefaultHistoryLimit = 100

// History keeps a bounded indicator history per watched symbol.
type History struct {
	mu    sync.RWMutex
	limit int
	rings map[model.WatchKey]*ringbuf.Ring[model.HistoryPoint]
}

// NewHistory creates a history store holding at most limit points per key.
// Limits outside 1..DefaultHistoryLimit become DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	return &History{
		limit: limit,
		rings: make(map[model.WatchKey]*ringbuf.Ring[model.HistoryPoint]),
	}
}

// Append adds p under key, evicting the oldest point past the limit.
// Empty indicator sets are rejected, and so is a point whose values equal
// the latest stored point. Reports whether p was stored.
func (h *History) Append(key model.WatchKey, p model.HistoryPoint) bool {
	if len(p.Indicators) == 0 {
		return false
	}
	p.Indicators = p.Indicators.Clone()

	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rings[key]
	if !ok {
		r = ringbuf.New[model.HistoryPoint](h.limit)
		h.rings[key] = r
	}
	if last, ok := r.Last(); ok && last.Indicators.Equal(p.Indicators) {
		return false
	}
	r.Push(p)
	return true
}

// Get returns the points stored for key, oldest first. Unknown keys yield an
// empty, non-nil slice.
func (h *History) Get(key model.WatchKey) []model.HistoryPoint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rings[key]
	if !ok {
		return []model.HistoryPoint{}
	}
	items := r.Items()
	for i := range items {
		items[i].Indicators = items[i].Indicators.Clone()
	}
	return items
}

// Evicted returns how many points have been dropped across all keys to stay
// within the limit.
func (h *History) Evicted() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var n uint64
	for _, r := range h.rings {
		n += r.Evicted()
	}
	return n
}
