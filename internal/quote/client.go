// Package quote fetches prices and price history from upstream providers.
//
// Yahoo Finance serves quotes and chart history for bulk groups;
// CryptoCompare serves spot prices for currency pairs. Each provider sits
// behind its own circuit breaker so an outage fails fast instead of stalling
// every batch on timeouts.
package quote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"marketpulse/internal/metrics"
	"marketpulse/internal/model"
)

const (
	providerYahoo         = "yahoo"
	providerCryptoCompare = "cryptocompare"
)

// Options configures the upstream providers.
type Options struct {
	YahooBaseURL         string
	CryptoCompareBaseURL string
	Timeout              time.Duration // per request; default 10s

	BreakerFailures int           // consecutive failures to open; default 5
	BreakerCooldown time.Duration // open duration before probing; default 30s
}

// Client implements model.QuoteSource over Yahoo and CryptoCompare.
type Client struct {
	yahoo  *Yahoo
	crypto *CryptoCompare

	yahooBreaker  *CircuitBreaker
	cryptoBreaker *CircuitBreaker

	metrics *metrics.Metrics
	log     *slog.Logger
}

var _ model.QuoteSource = (*Client)(nil)

// NewClient creates a quote client.
func NewClient(opts Options, m *metrics.Metrics, log *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.BreakerFailures <= 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: opts.Timeout}

	c := &Client{
		yahoo:         NewYahoo(opts.YahooBaseURL, httpClient),
		crypto:        NewCryptoCompare(opts.CryptoCompareBaseURL, httpClient),
		yahooBreaker:  NewCircuitBreaker(opts.BreakerFailures, opts.BreakerCooldown),
		cryptoBreaker: NewCircuitBreaker(opts.BreakerFailures, opts.BreakerCooldown),
		metrics:       m,
		log:           log.With("component", "quote"),
	}
	c.watch(providerYahoo, c.yahooBreaker)
	c.watch(providerCryptoCompare, c.cryptoBreaker)
	return c
}

func (c *Client) watch(provider string, cb *CircuitBreaker) {
	c.metrics.CircuitBreakerState.WithLabelValues(provider).Set(float64(StateClosed))
	cb.OnStateChange = func(from, to State) {
		c.metrics.CircuitBreakerState.WithLabelValues(provider).Set(float64(to))
		if to == StateOpen {
			c.metrics.CircuitBreakerTrips.WithLabelValues(provider).Inc()
		}
		c.log.Warn("circuit breaker transition",
			"provider", provider,
			"from", from.String(),
			"to", to.String(),
		)
	}
}

func (c *Client) call(provider string, cb *CircuitBreaker, fn func() error) error {
	err := cb.Execute(fn)
	if err != nil {
		c.metrics.FetchFailures.WithLabelValues(provider).Inc()
	}
	return err
}

// FetchQuote returns the current quote of symbol.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	quotes, err := c.FetchQuoteBatch(ctx, []string{symbol})
	if err != nil {
		return model.Quote{}, err
	}
	q, ok := quotes[symbol]
	if !ok {
		c.metrics.FetchFailures.WithLabelValues(providerYahoo).Inc()
		return model.Quote{}, fmt.Errorf("yahoo quote %s: %w", symbol, ErrNoData)
	}
	return q, nil
}

// FetchQuoteBatch returns the quotes the provider answered. Missing symbols
// are absent from the map without error.
func (c *Client) FetchQuoteBatch(ctx context.Context, symbols []string) (map[string]model.Quote, error) {
	if len(symbols) == 0 {
		return map[string]model.Quote{}, nil
	}
	var out map[string]model.Quote
	err := c.call(providerYahoo, c.yahooBreaker, func() error {
		var err error
		out, err = c.yahoo.Quotes(ctx, symbols)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchSeries returns the history of symbol at the given lookback.
func (c *Client) FetchSeries(ctx context.Context, symbol string, lb model.Lookback) (model.Series, error) {
	var out model.Series
	err := c.call(providerYahoo, c.yahooBreaker, func() error {
		var err error
		out, err = c.yahoo.Series(ctx, symbol, lb)
		return err
	})
	return out, err
}

// FetchSpotPrice returns the spot price of base in quote.
func (c *Client) FetchSpotPrice(ctx context.Context, base, quote string) (float64, error) {
	var price float64
	err := c.call(providerCryptoCompare, c.cryptoBreaker, func() error {
		var err error
		price, err = c.crypto.Price(ctx, base, quote)
		return err
	})
	return price, err
}
