package indicator

import "marketpulse/internal/model"

// OBV calculates On-Balance Volume, starting from zero at the first bar.
type OBV struct {
	count     int
	prevClose float64
	current   float64
}

func NewOBV() *OBV { return &OBV{} }

func (o *OBV) Update(bar model.Bar) {
	o.count++
	if o.count > 1 {
		switch {
		case bar.Close > o.prevClose:
			o.current += bar.Volume
		case bar.Close < o.prevClose:
			o.current -= bar.Volume
		}
	}
	o.prevClose = bar.Close
}

func (o *OBV) Value() float64 { return o.current }
func (o *OBV) Ready() bool    { return o.count >= 2 }

// VWAP returns the volume-weighted average of typical price over the bars
// selected by the caller. With no volume it falls back to the last close.
func VWAP(bars []model.Bar) (float64, bool) {
	if len(bars) == 0 {
		return 0, false
	}
	var pv, vol float64
	for _, b := range bars {
		pv += b.Typical() * b.Volume
		vol += b.Volume
	}
	if vol == 0 {
		return bars[len(bars)-1].Close, true
	}
	return pv / vol, true
}
