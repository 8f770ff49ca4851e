package store

import (
	"slices"
	"strings"
	"sync"

	"marketpulse/internal/model"
)

// Watchlists maps each watchlist to its ordered symbols.
type Watchlists struct {
	mu    sync.RWMutex
	lists map[model.WatchlistID][]string
}

// NewWatchlists creates an empty binding table.
func NewWatchlists() *Watchlists {
	return &Watchlists{lists: make(map[model.WatchlistID][]string)}
}

// Bind replaces the symbols of id. Blank and repeated symbols are dropped;
// order is otherwise kept. Binding an empty list removes the watchlist.
func (w *Watchlists) Bind(id model.WatchlistID, symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	clean := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		clean = append(clean, s)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(clean) == 0 {
		delete(w.lists, id)
		return []string{}
	}
	w.lists[id] = clean
	return slices.Clone(clean)
}

// Symbols returns the symbols bound to id.
func (w *Watchlists) Symbols(id model.WatchlistID) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if l, ok := w.lists[id]; ok {
		return slices.Clone(l)
	}
	return []string{}
}

// Keys returns every (watchlist, symbol) binding whose symbol is in symbols,
// ordered by watchlist then binding order.
func (w *Watchlists) Keys(symbols []string) []model.WatchKey {
	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	ids := make([]model.WatchlistID, 0, len(w.lists))
	for id := range w.lists {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var keys []model.WatchKey
	for _, id := range ids {
		for _, s := range w.lists[id] {
			if want[s] {
				keys = append(keys, model.WatchKey{Watchlist: id, Symbol: s})
			}
		}
	}
	return keys
}
