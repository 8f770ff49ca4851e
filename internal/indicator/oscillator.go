package indicator

import "marketpulse/internal/model"

// Stochastic computes the %K oscillator over period bars and %D as the
// simple average of the last smooth %K values. %K is undefined for a window
// with no range (highest high == lowest low).
type Stochastic struct {
	highs, lows *window
	k           float64
	kOK         bool
	ks          *window // recent %K values
	kValid      *window // 1 when the matching %K was defined
}

// NewStochastic creates a stochastic oscillator (typically 14, 3).
func NewStochastic(period, smooth int) *Stochastic {
	return &Stochastic{
		highs:  newWindow(period),
		lows:   newWindow(period),
		ks:     newWindow(smooth),
		kValid: newWindow(smooth),
	}
}

func (s *Stochastic) Update(bar model.Bar) {
	s.highs.push(bar.High)
	s.lows.push(bar.Low)
	if !s.highs.full() {
		return
	}
	hh, ll := s.highs.max(), s.lows.min()
	s.kOK = hh > ll
	s.k = 0
	if s.kOK {
		s.k = 100 * (bar.Close - ll) / (hh - ll)
	}
	s.ks.push(s.k)
	if s.kOK {
		s.kValid.push(1)
	} else {
		s.kValid.push(0)
	}
}

func (s *Stochastic) Value() float64 { return s.k }
func (s *Stochastic) Ready() bool    { return s.kOK }

// D returns %D and whether every %K in its window was defined.
func (s *Stochastic) D() (float64, bool) {
	if !s.ks.full() {
		return 0, false
	}
	ok := true
	s.kValid.each(func(v float64) {
		if v == 0 {
			ok = false
		}
	})
	if !ok {
		return 0, false
	}
	var sum float64
	s.ks.each(func(v float64) { sum += v })
	return sum / float64(len(s.ks.buf)), true
}

// WilliamsR computes Williams %R over period bars, in [-100, 0].
type WilliamsR struct {
	highs, lows *window
	current     float64
	ok          bool
}

// NewWilliamsR creates a Williams %R (typically 14).
func NewWilliamsR(period int) *WilliamsR {
	return &WilliamsR{highs: newWindow(period), lows: newWindow(period)}
}

func (w *WilliamsR) Update(bar model.Bar) {
	w.highs.push(bar.High)
	w.lows.push(bar.Low)
	if !w.highs.full() {
		return
	}
	hh, ll := w.highs.max(), w.lows.min()
	w.ok = hh > ll
	w.current = 0
	if w.ok {
		w.current = -100 * (hh - bar.Close) / (hh - ll)
	}
}

func (w *WilliamsR) Value() float64 { return w.current }
func (w *WilliamsR) Ready() bool    { return w.ok }

// CCI computes the Commodity Channel Index on typical price.
type CCI struct {
	tps     *window
	sum     float64
	current float64
	ok      bool
}

// NewCCI creates a CCI (typically 20).
func NewCCI(period int) *CCI {
	return &CCI{tps: newWindow(period)}
}

func (c *CCI) Update(bar model.Bar) {
	tp := bar.Typical()
	c.sum -= c.tps.push(tp)
	c.sum += tp
	if !c.tps.full() {
		return
	}
	n := float64(len(c.tps.buf))
	mean := c.sum / n
	var dev float64
	c.tps.each(func(v float64) {
		if v > mean {
			dev += v - mean
		} else {
			dev += mean - v
		}
	})
	md := dev / n
	c.ok = md > 0
	c.current = 0
	if c.ok {
		c.current = (tp - mean) / (0.015 * md)
	}
}

func (c *CCI) Value() float64 { return c.current }
func (c *CCI) Ready() bool    { return c.ok }

// ROC computes the percentage rate of change over period bars.
type ROC struct {
	closes  *window // period+1 closes
	current float64
	ok      bool
}

// NewROC creates a rate of change (typically 12).
func NewROC(period int) *ROC {
	return &ROC{closes: newWindow(period + 1)}
}

func (r *ROC) Update(bar model.Bar) {
	r.closes.push(bar.Close)
	if !r.closes.full() {
		return
	}
	base := r.closes.oldest()
	r.ok = base != 0
	r.current = 0
	if r.ok {
		r.current = 100 * (bar.Close - base) / base
	}
}

func (r *ROC) Value() float64 { return r.current }
func (r *ROC) Ready() bool    { return r.ok }

// MFI computes the Money Flow Index over period typical-price changes.
// Undefined while the window carries no money flow at all.
type MFI struct {
	pos, neg *window
	posSum   float64
	negSum   float64
	prevTP   float64
	count    int
	current  float64
	ok       bool
}

// NewMFI creates a money flow index (typically 14).
func NewMFI(period int) *MFI {
	return &MFI{pos: newWindow(period), neg: newWindow(period)}
}

func (m *MFI) Update(bar model.Bar) {
	tp := bar.Typical()
	m.count++
	if m.count == 1 {
		m.prevTP = tp
		return
	}
	flow := tp * bar.Volume
	var p, n float64
	switch {
	case tp > m.prevTP:
		p = flow
	case tp < m.prevTP:
		n = flow
	}
	m.prevTP = tp
	m.posSum += p - m.pos.push(p)
	m.negSum += n - m.neg.push(n)
	if !m.pos.full() {
		return
	}
	m.ok = m.posSum+m.negSum > 0
	m.current = 0
	switch {
	case !m.ok:
	case m.negSum == 0:
		m.current = 100
	default:
		m.current = 100 - 100/(1+m.posSum/m.negSum)
	}
}

func (m *MFI) Value() float64 { return m.current }
func (m *MFI) Ready() bool    { return m.ok }
