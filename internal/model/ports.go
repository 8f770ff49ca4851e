package model

import (
	"context"
)

// ── Port interfaces ──
// These decouple the refresh and control paths from concrete providers and
// transports. Implementations live in internal/quote and internal/gateway.

// Lookback selects the granularity and span of a historical series request.
type Lookback struct {
	Interval string // provider bar size, e.g. "5m", "1d"
	Range    string // provider span, e.g. "5d", "1y"
}

var (
	// IntradayLookback is used while the exchange session is open.
	IntradayLookback = Lookback{Interval: "5m", Range: "5d"}
	// DailyLookback is used outside the session.
	DailyLookback = Lookback{Interval: "1d", Range: "1y"}
)

// LookbackFor returns the series granularity for the current session state.
func LookbackFor(sessionOpen bool) Lookback {
	if sessionOpen {
		return IntradayLookback
	}
	return DailyLookback
}

// QuoteSource retrieves quotes and price history from external providers.
// Every method may fail transiently; callers treat a failure as "keep the
// previous value".
type QuoteSource interface {
	// FetchQuote returns the current quote of one symbol.
	FetchQuote(ctx context.Context, symbol string) (Quote, error)

	// FetchQuoteBatch returns quotes for the symbols the provider answered.
	// Missing symbols are simply absent from the map.
	FetchQuoteBatch(ctx context.Context, symbols []string) (map[string]Quote, error)

	// FetchSeries returns the historical bars of one symbol, oldest first.
	FetchSeries(ctx context.Context, symbol string, lb Lookback) (Series, error)

	// FetchSpotPrice returns the spot price of base quoted in quote.
	FetchSpotPrice(ctx context.Context, base, quote string) (float64, error)
}

// SnapshotSource exposes a consistent copy of the price cache.
type SnapshotSource interface {
	Snapshot() map[string]CacheEntry
}

// Publisher forwards a serialized snapshot to an external transport.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
	Close() error
}
