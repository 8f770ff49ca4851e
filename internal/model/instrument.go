package model

import (
	"fmt"
	"strings"
)

// GroupKind selects how a group's symbols are priced.
type GroupKind string

const (
	// KindBulk groups are priced through a bulk quote API and get indicators.
	KindBulk GroupKind = "bulk"
	// KindSpot groups are priced one pair at a time from a spot price API.
	KindSpot GroupKind = "spot"
	// KindNone groups have no live feed and are skipped by the refresh loop.
	KindNone GroupKind = "none"
)

// Valid reports whether k is a known kind.
func (k GroupKind) Valid() bool {
	switch k {
	case KindBulk, KindSpot, KindNone:
		return true
	}
	return false
}

// Group is a named category of symbols sharing a fetch strategy.
type Group struct {
	Name    string    `json:"name" yaml:"name"`
	Kind    GroupKind `json:"kind" yaml:"kind"`
	Symbols []string  `json:"symbols" yaml:"symbols"`
}

// Batches splits the group's symbols into consecutive chunks of at most size.
func (g Group) Batches(size int) [][]string {
	if size <= 0 {
		size = 1
	}
	out := make([][]string, 0, (len(g.Symbols)+size-1)/size)
	for i := 0; i < len(g.Symbols); i += size {
		end := i + size
		if end > len(g.Symbols) {
			end = len(g.Symbols)
		}
		out = append(out, g.Symbols[i:end])
	}
	return out
}

// SplitPair splits a spot symbol such as "BTC-USD" into base and quote assets.
func SplitPair(symbol string) (base, quote string, err error) {
	parts := strings.Split(symbol, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("spot symbol %q: want BASE-QUOTE", symbol)
	}
	return parts[0], parts[1], nil
}

// FindGroup returns the group with the given name.
func FindGroup(groups []Group, name string) (Group, bool) {
	for _, g := range groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}

// DefaultGroups is the built-in instrument universe.
func DefaultGroups() []Group {
	return []Group{
		{Name: "Stocks", Kind: KindBulk, Symbols: []string{
			"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "NVDA", "JPM", "V", "UNH",
			"HD", "MA", "PG", "LLY", "AVGO", "XOM", "MRK", "ABBV", "PEP", "COST",
			"ADBE", "KO", "WMT", "CRM", "ACN", "CVX", "MCD", "DHR", "TXN", "NEE",
			"LIN", "TMO", "WFC", "PM", "AMD", "UNP", "HON", "AMGN", "LOW", "INTC",
			"SBUX", "MDT", "QCOM", "AMAT", "BKNG", "ISRG", "SPGI", "BLK", "SYK",
			"GS", "CAT", "DE", "PLD", "LMT", "ADP", "C", "CB", "SCHW", "T", "USB",
			"SO", "DUK", "PNC", "MMC", "CI", "BDX", "ZTS", "GILD", "VRTX", "REGN",
			"CSCO", "MO", "FIS", "AON", "ICE", "NSC", "ITW", "SHW", "APD", "ECL", "ROP",
			"ETN", "EMR", "PSA", "EXC", "D", "AEP", "PEG", "SRE", "ED", "FE", "WEC",
			"EIX", "AES", "PPL", "CMS", "CNP", "NI", "NRG", "LNT", "EVRG", "OGE", "SWX",
		}},
		{Name: "Funds", Kind: KindBulk, Symbols: []string{
			"SPY", "QQQ", "IVV", "VTI", "VOO", "DIA", "IWM", "EFA", "VTV", "VUG",
		}},
		{Name: "Futures", Kind: KindBulk, Symbols: []string{
			"ES=F", "NQ=F", "YM=F", "RTY=F", "CL=F", "GC=F", "SI=F", "ZB=F", "ZN=F",
		}},
		{Name: "Forex", Kind: KindBulk, Symbols: []string{
			"EURUSD=X", "USDJPY=X", "GBPUSD=X", "AUDUSD=X", "USDCAD=X", "USDCHF=X",
		}},
		{Name: "Crypto", Kind: KindSpot, Symbols: []string{
			"BTC-USD", "ETH-USD", "SOL-USD", "BNB-USD", "DOGE-USD", "XRP-USD",
		}},
		{Name: "Indices", Kind: KindBulk, Symbols: []string{
			"^GSPC", "^DJI", "^IXIC", "^RUT", "^VIX", "^FTSE", "^N225", "^HSI",
		}},
		{Name: "Bonds", Kind: KindNone, Symbols: []string{"US10Y", "US30Y", "US5Y", "US2Y"}},
		{Name: "Economy", Kind: KindNone, Symbols: []string{"GDP", "CPI", "Unemployment", "Interest Rate"}},
		{Name: "Options", Kind: KindNone, Symbols: []string{"AAPL220819C00145000", "MSFT220819P00280000"}},
	}
}
