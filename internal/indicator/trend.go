package indicator

import (
	"math"

	"marketpulse/internal/model"
)

func trueRange(bar model.Bar, prevClose float64) float64 {
	return math.Max(bar.High-bar.Low,
		math.Max(math.Abs(bar.High-prevClose), math.Abs(bar.Low-prevClose)))
}

// ATR calculates Average True Range with Wilder smoothing. The first value
// needs period true ranges, i.e. period+1 bars.
type ATR struct {
	smma      *SMMA
	prevClose float64
	count     int
}

// NewATR creates an ATR (typically 14).
func NewATR(period int) *ATR {
	return &ATR{smma: NewSMMA(period)}
}

func (a *ATR) Update(bar model.Bar) {
	a.count++
	if a.count > 1 {
		a.smma.Add(trueRange(bar, a.prevClose))
	}
	a.prevClose = bar.Close
}

func (a *ATR) Value() float64 { return a.smma.Value() }
func (a *ATR) Ready() bool    { return a.smma.Ready() }

// ADX calculates the Average Directional Index. TR, +DM and -DM are Wilder
// smoothed; ADX is the Wilder average of DX, so it needs 2*period bars.
type ADX struct {
	tr, plusDM, minusDM *SMMA
	dx                  *SMMA
	prev                model.Bar
	count               int
}

// NewADX creates an ADX (typically 14).
func NewADX(period int) *ADX {
	return &ADX{
		tr:      NewSMMA(period),
		plusDM:  NewSMMA(period),
		minusDM: NewSMMA(period),
		dx:      NewSMMA(period),
	}
}

func (a *ADX) Update(bar model.Bar) {
	a.count++
	if a.count == 1 {
		a.prev = bar
		return
	}

	up := bar.High - a.prev.High
	down := a.prev.Low - bar.Low
	var pdm, mdm float64
	if up > down && up > 0 {
		pdm = up
	}
	if down > up && down > 0 {
		mdm = down
	}
	a.tr.Add(trueRange(bar, a.prev.Close))
	a.plusDM.Add(pdm)
	a.minusDM.Add(mdm)
	a.prev = bar

	if !a.tr.Ready() {
		return
	}
	a.dx.Add(a.currentDX())
}

func (a *ADX) currentDX() float64 {
	tr := a.tr.Value()
	if tr == 0 {
		return 0
	}
	pdi := 100 * a.plusDM.Value() / tr
	mdi := 100 * a.minusDM.Value() / tr
	if pdi+mdi == 0 {
		return 0
	}
	return 100 * math.Abs(pdi-mdi) / (pdi + mdi)
}

func (a *ADX) Value() float64 { return a.dx.Value() }
func (a *ADX) Ready() bool    { return a.dx.Ready() }

// PSAR calculates the Parabolic Stop and Reverse.
type PSAR struct {
	step, maxAF float64

	count    int
	long     bool
	sar      float64
	ep       float64
	af       float64
	prev     model.Bar
	prevPrev model.Bar
}

// NewPSAR creates a parabolic SAR (typically step 0.02, max 0.2).
func NewPSAR(step, maxAF float64) *PSAR {
	return &PSAR{step: step, maxAF: maxAF}
}

func (p *PSAR) Update(bar model.Bar) {
	p.count++
	switch p.count {
	case 1:
		p.prev = bar
		return
	case 2:
		// Direction comes from the first two closes.
		p.long = bar.Close >= p.prev.Close
		if p.long {
			p.sar = math.Min(p.prev.Low, bar.Low)
			p.ep = math.Max(p.prev.High, bar.High)
		} else {
			p.sar = math.Max(p.prev.High, bar.High)
			p.ep = math.Min(p.prev.Low, bar.Low)
		}
		p.af = p.step
		p.prevPrev, p.prev = p.prev, bar
		return
	}

	sar := p.sar + p.af*(p.ep-p.sar)
	if p.long {
		// SAR may not move inside the prior two bars' range.
		sar = math.Min(sar, math.Min(p.prev.Low, p.prevPrev.Low))
		if bar.Low < sar {
			p.long = false
			sar = p.ep
			p.ep = bar.Low
			p.af = p.step
		} else if bar.High > p.ep {
			p.ep = bar.High
			p.af = math.Min(p.af+p.step, p.maxAF)
		}
	} else {
		sar = math.Max(sar, math.Max(p.prev.High, p.prevPrev.High))
		if bar.High > sar {
			p.long = true
			sar = p.ep
			p.ep = bar.High
			p.af = p.step
		} else if bar.Low < p.ep {
			p.ep = bar.Low
			p.af = math.Min(p.af+p.step, p.maxAF)
		}
	}
	p.sar = sar
	p.prevPrev, p.prev = p.prev, bar
}

func (p *PSAR) Value() float64 { return p.sar }
func (p *PSAR) Ready() bool    { return p.count >= 2 }
