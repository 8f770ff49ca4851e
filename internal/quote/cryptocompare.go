package quote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DefaultCryptoCompareBaseURL is the public CryptoCompare API host.
const DefaultCryptoCompareBaseURL = "https://min-api.cryptocompare.com"

// CryptoCompare fetches spot prices for currency pairs.
type CryptoCompare struct {
	baseURL string
	client  *http.Client
}

// NewCryptoCompare creates a spot price fetcher. An empty baseURL uses the
// public host.
func NewCryptoCompare(baseURL string, client *http.Client) *CryptoCompare {
	if baseURL == "" {
		baseURL = DefaultCryptoCompareBaseURL
	}
	return &CryptoCompare{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Price returns the price of one base unit in quote.
func (c *CryptoCompare) Price(ctx context.Context, base, quote string) (float64, error) {
	u := fmt.Sprintf("%s/data/price?fsym=%s&tsyms=%s", c.baseURL, url.QueryEscape(base), url.QueryEscape(quote))

	// Unknown pairs come back as {"Response":"Error","Message":...}, which
	// decodes to a map without the quote key.
	var resp map[string]any
	if err := getJSON(ctx, c.client, u, &resp); err != nil {
		return 0, fmt.Errorf("cryptocompare %s-%s: %w", base, quote, err)
	}
	price, ok := resp[quote].(float64)
	if !ok || price <= 0 {
		if msg, _ := resp["Message"].(string); msg != "" {
			return 0, fmt.Errorf("cryptocompare %s-%s: %w: %s", base, quote, ErrNoData, msg)
		}
		return 0, fmt.Errorf("cryptocompare %s-%s: %w", base, quote, ErrNoData)
	}
	return price, nil
}
