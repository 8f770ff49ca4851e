package indicator

import "marketpulse/internal/model"

// MACD tracks the fast/slow EMA difference and its signal line.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
}

// NewMACD creates a MACD with the given fast, slow and signal periods
// (typically 12, 26, 9).
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{fast: NewEMA(fast), slow: NewEMA(slow), signal: NewEMA(signal)}
}

func (m *MACD) Update(bar model.Bar) {
	m.fast.Update(bar)
	m.slow.Update(bar)
	if m.Ready() {
		m.signal.Add(m.Value())
	}
}

// Value returns the MACD line.
func (m *MACD) Value() float64 { return m.fast.Value() - m.slow.Value() }
func (m *MACD) Ready() bool    { return m.fast.Ready() && m.slow.Ready() }

// Signal returns the signal line and whether it is defined yet.
func (m *MACD) Signal() (float64, bool) {
	return m.signal.Value(), m.signal.Ready()
}
