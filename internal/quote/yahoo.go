package quote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"marketpulse/internal/model"
)

// DefaultYahooBaseURL is the public Yahoo Finance API host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// Yahoo fetches quotes and chart history from Yahoo Finance.
type Yahoo struct {
	baseURL string
	client  *http.Client
}

// NewYahoo creates a Yahoo Finance fetcher. An empty baseURL uses the public
// host.
func NewYahoo(baseURL string, client *http.Client) *Yahoo {
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	return &Yahoo{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Quotes returns the quotes of symbols, read from the meta block of the
// chart endpoint with one request per symbol. Symbols Yahoo does not know or
// cannot price are left out. The call fails only when no symbol could be
// fetched and at least one request failed outright.
func (y *Yahoo) Quotes(ctx context.Context, symbols []string) (map[string]model.Quote, error) {
	out := make(map[string]model.Quote, len(symbols))
	var firstErr error
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("yahoo quote: %w", err)
		}
		q, err := y.quote(ctx, sym)
		switch {
		case err == nil:
			out[sym] = q
		case errors.Is(err, ErrNoData):
		case isCancellation(err):
			return nil, err
		case firstErr == nil:
			firstErr = err
		}
	}
	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (y *Yahoo) quote(ctx context.Context, symbol string) (model.Quote, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", y.baseURL, url.PathEscape(symbol))

	var chart yahooChart
	if err := getJSON(ctx, y.client, u, &chart); err != nil {
		return model.Quote{}, fmt.Errorf("yahoo quote %s: %w", symbol, err)
	}
	if e := chart.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			return model.Quote{}, fmt.Errorf("yahoo quote %s: %w", symbol, ErrNoData)
		}
		return model.Quote{}, fmt.Errorf("yahoo quote %s: %s: %s", symbol, e.Code, e.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return model.Quote{}, fmt.Errorf("yahoo quote %s: %w", symbol, ErrNoData)
	}

	m := chart.Chart.Result[0].Meta
	if m.RegularMarketPrice == nil || *m.RegularMarketPrice == 0 {
		return model.Quote{}, fmt.Errorf("yahoo quote %s: %w", symbol, ErrNoData)
	}
	name := m.LongName
	if name == "" {
		name = m.ShortName
	}
	var prev float64
	switch {
	case m.PreviousClose != nil:
		prev = *m.PreviousClose
	case m.ChartPreviousClose != nil:
		prev = *m.ChartPreviousClose
	}
	return model.NewQuote(symbol, name, *m.RegularMarketPrice, prev), nil
}

// yahooMeta is the per-symbol summary the chart endpoint returns alongside
// the bars.
type yahooMeta struct {
	Symbol             string   `json:"symbol"`
	ShortName          string   `json:"shortName"`
	LongName           string   `json:"longName"`
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
	PreviousClose      *float64 `json:"previousClose"`
	ChartPreviousClose *float64 `json:"chartPreviousClose"`
}

// yahooChart is the response structure from the Yahoo Finance chart API.
// Individual bar fields are null on halted or holiday bars.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta       yahooMeta `json:"meta"`
			Timestamp  []int64   `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Series returns the chart history of symbol, oldest first. Bars without a
// close are skipped.
func (y *Yahoo) Series(ctx context.Context, symbol string, lb model.Lookback) (model.Series, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s&includePrePost=false",
		y.baseURL, url.PathEscape(symbol), url.QueryEscape(lb.Interval), url.QueryEscape(lb.Range))

	var chart yahooChart
	if err := getJSON(ctx, y.client, u, &chart); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	if e := chart.Chart.Error; e != nil {
		return nil, fmt.Errorf("yahoo chart %s: %s: %s", symbol, e.Code, e.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, ErrNoData)
	}

	result := chart.Chart.Result[0]
	q := result.Indicators.Quote[0]
	at := func(vs []*float64, i int) float64 {
		if i < len(vs) && vs[i] != nil {
			return *vs[i]
		}
		return 0
	}

	bars := make(model.Series, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c := at(q.Close, i)
		if c == 0 {
			continue
		}
		h, l := at(q.High, i), at(q.Low, i)
		if h == 0 {
			h = c
		}
		if l == 0 {
			l = c
		}
		bars = append(bars, model.Bar{
			TS:     time.Unix(ts, 0).UTC(),
			Open:   at(q.Open, i),
			High:   h,
			Low:    l,
			Close:  c,
			Volume: at(q.Volume, i),
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, ErrNoData)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].TS.Before(bars[j].TS) })
	return bars, nil
}
