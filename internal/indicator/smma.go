package indicator

// SMMA is a Wilder-style smoothed moving average over raw values.
// First value is SMA(period), then SMMA = (prev*(period-1) + v) / period.
// ATR and ADX are built on it.
type SMMA struct {
	period  int
	count   int
	sum     float64
	current float64
}

// NewSMMA creates a new SMMA with the given period.
func NewSMMA(period int) *SMMA {
	return &SMMA{period: period}
}

// Add feeds the next value.
func (s *SMMA) Add(v float64) {
	s.count++

	if s.count <= s.period {
		// Accumulate for initial SMA seed
		s.sum += v
		if s.count == s.period {
			s.current = s.sum / float64(s.period)
		}
		return
	}

	s.current = (s.current*float64(s.period-1) + v) / float64(s.period)
}

func (s *SMMA) Value() float64 { return s.current }
func (s *SMMA) Ready() bool    { return s.count >= s.period }
