package indicator

import (
	"math"
	"time"

	"marketpulse/internal/markethours"
	"marketpulse/internal/model"
)

// Engine computes the full indicator vocabulary for one series at a time.
// It holds no per-symbol state, so a single Engine is safe for concurrent use.
type Engine struct {
	session *markethours.Session
}

// NewEngine creates an engine. session decides which bars belong to the
// current trading day for VWAP; nil compares UTC dates.
func NewEngine(session *markethours.Session) *Engine {
	return &Engine{session: session}
}

// Compute runs every indicator over series (oldest first) and returns the
// values at the last bar, rounded to 2 decimal places. Names that need more
// history than the series holds map to nil. A malformed or empty series
// yields an empty set.
func (e *Engine) Compute(series model.Series, sessionOpen bool) (out model.IndicatorSet) {
	if err := series.Validate(); err != nil {
		return model.IndicatorSet{}
	}
	defer func() {
		if r := recover(); r != nil {
			out = model.IndicatorSet{}
		}
	}()

	var (
		ema7, ema21   = NewEMA(7), NewEMA(21)
		ema50, ema200 = NewEMA(50), NewEMA(200)
		sma20, sma50  = NewSMA(20), NewSMA(50)
		bb            = NewBollinger(20, 2)
		rsi           = NewRSI(14)
		macd          = NewMACD(12, 26, 9)
		stoch         = NewStochastic(14, 3)
		adx           = NewADX(14)
		cci           = NewCCI(20)
		atr           = NewATR(14)
		roc           = NewROC(12)
		willr         = NewWilliamsR(14)
		mfi           = NewMFI(14)
		obv           = NewOBV()
		psar          = NewPSAR(0.02, 0.2)
	)
	all := []Indicator{ema7, ema21, ema50, ema200, sma20, sma50, bb, rsi, macd,
		stoch, adx, cci, atr, roc, willr, mfi, obv, psar}

	// One pass: O(n) per indicator.
	for _, bar := range series {
		for _, ind := range all {
			ind.Update(bar)
		}
	}

	out = make(model.IndicatorSet, len(model.IndicatorNames))
	set := func(name string, v float64, ok bool) {
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			out[name] = nil
			return
		}
		out[name] = model.Float(model.Round2(v))
	}
	single := func(name string, ind Indicator) { set(name, ind.Value(), ind.Ready()) }

	single(model.EMA7, ema7)
	single(model.EMA21, ema21)
	single(model.EMA50, ema50)
	single(model.EMA200, ema200)
	single(model.SMA20, sma20)
	single(model.SMA50, sma50)

	upper, lower := bb.Bands()
	set(model.BBUpper, upper, bb.Ready())
	set(model.BBLower, lower, bb.Ready())

	single(model.RSI, rsi)

	single(model.MACD, macd)
	sig, sigOK := macd.Signal()
	set(model.MACDSignal, sig, sigOK)
	set(model.MACDHist, macd.Value()-sig, sigOK)

	single(model.StochK, stoch)
	d, dOK := stoch.D()
	set(model.StochD, d, dOK)

	single(model.ADX, adx)
	single(model.CCI, cci)
	single(model.ATR, atr)
	single(model.ROC, roc)
	single(model.WillR, willr)
	single(model.MFI, mfi)
	single(model.OBV, obv)

	vwap, vwapOK := e.vwap(series, sessionOpen)
	set(model.VWAP, vwap, vwapOK)

	single(model.PSAR, psar)
	return out
}

// vwap is cumulative over the last bar's trading day while the session is
// open; outside the session it is the last close.
func (e *Engine) vwap(series model.Series, sessionOpen bool) (float64, bool) {
	last := series.Last()
	if !sessionOpen {
		return last.Close, true
	}
	start := len(series) - 1
	for start > 0 && e.sameDay(series[start-1].TS, last.TS) {
		start--
	}
	return VWAP(series[start:])
}

func (e *Engine) sameDay(a, b time.Time) bool {
	if e.session != nil {
		return e.session.SameSessionDay(a, b)
	}
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
