// Package indicator computes technical indicators over a price/volume series.
//
// Each indicator is a small streaming calculator: bars are fed oldest first
// through Update, and Value is meaningful once Ready reports true. The Engine
// runs a fresh set of calculators over a whole series and reports the values
// at the most recent bar.
package indicator

import "marketpulse/internal/model"

// Indicator is the interface for single-valued technical indicators.
type Indicator interface {
	// Update feeds the next bar and recalculates.
	Update(bar model.Bar)

	// Value returns the current calculated value. Returns 0 if not Ready.
	Value() float64

	// Ready returns true when enough bars have been accumulated and the
	// current value is defined.
	Ready() bool
}

// window is a fixed-size circular buffer of the most recent values.
type window struct {
	buf   []float64
	idx   int // next write position
	count int
}

func newWindow(size int) *window {
	return &window{buf: make([]float64, size)}
}

// push stores v and returns the value it overwrote (0 until full).
func (w *window) push(v float64) (old float64) {
	old = w.buf[w.idx]
	w.buf[w.idx] = v
	w.idx = (w.idx + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
		old = 0
	}
	return old
}

func (w *window) full() bool { return w.count == len(w.buf) }

// oldest returns the earliest value still held. Only valid when full.
func (w *window) oldest() float64 { return w.buf[w.idx] }

func (w *window) each(fn func(v float64)) {
	for i := 0; i < w.count; i++ {
		fn(w.buf[i])
	}
}

func (w *window) max() float64 {
	m := w.buf[0]
	w.each(func(v float64) {
		if v > m {
			m = v
		}
	})
	return m
}

func (w *window) min() float64 {
	m := w.buf[0]
	w.each(func(v float64) {
		if v < m {
			m = v
		}
	})
	return m
}
