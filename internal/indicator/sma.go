package indicator

import (
	"math"

	"marketpulse/internal/model"
)

// SMA calculates Simple Moving Average of closes over a rolling window.
type SMA struct {
	period int
	win    *window
	sum    float64
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{period: period, win: newWindow(period)}
}

func (s *SMA) Update(bar model.Bar) { s.Add(bar.Close) }

// Add feeds a raw value.
func (s *SMA) Add(v float64) {
	s.sum -= s.win.push(v)
	s.sum += v
}

func (s *SMA) Value() float64 {
	if !s.Ready() {
		return 0
	}
	return s.sum / float64(s.period)
}

func (s *SMA) Ready() bool { return s.win.full() }

// Bollinger tracks Bollinger Bands: SMA ± k population standard deviations.
type Bollinger struct {
	sma *SMA
	k   float64
}

// NewBollinger creates bands over period closes at k standard deviations.
func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{sma: NewSMA(period), k: k}
}

func (b *Bollinger) Update(bar model.Bar) { b.sma.Update(bar) }
func (b *Bollinger) Ready() bool          { return b.sma.Ready() }

// Value returns the middle band.
func (b *Bollinger) Value() float64 { return b.sma.Value() }

// Bands returns the upper and lower band. Only valid when Ready.
func (b *Bollinger) Bands() (upper, lower float64) {
	mean := b.sma.Value()
	var ss float64
	b.sma.win.each(func(v float64) {
		d := v - mean
		ss += d * d
	})
	sd := math.Sqrt(ss / float64(b.sma.period))
	return mean + b.k*sd, mean - b.k*sd
}
