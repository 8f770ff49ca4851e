package alert

import (
	"marketpulse/internal/model"
	"marketpulse/internal/notification"
)

type crossover struct {
	kind  model.AlertKind
	msg   string
	level notification.Level
}

// crossovers compares the previous and current EMA snapshots. Each event
// needs a genuine crossing: EMA7 strictly on one side before, on or past the
// other side now. A check whose EMAs are absent on either side is skipped.
func crossovers(prev, cur emaSnapshot) []crossover {
	var out []crossover

	if all(prev.ema7, prev.ema21, prev.ema50, cur.ema7, cur.ema21, cur.ema50) {
		p7, p21, p50 := *prev.ema7, *prev.ema21, *prev.ema50
		c7, c21, c50 := *cur.ema7, *cur.ema21, *cur.ema50

		if p7 < p21 && p7 < p50 && c7 >= c21 && c7 >= c50 {
			out = append(out, crossover{
				kind:  model.AlertShortTermBreakout,
				msg:   "Short-term breakout: EMA7 crossed above EMA21 and EMA50",
				level: notification.LevelInfo,
			})
		}
		if p7 > p21 && p7 > p50 && c7 <= c21 && c7 <= c50 {
			out = append(out, crossover{
				kind:  model.AlertShortTermBreakdown,
				msg:   "Short-term breakdown: EMA7 crossed below EMA21 and EMA50",
				level: notification.LevelWarning,
			})
		}
	}

	if all(prev.ema7, prev.ema200, cur.ema7, cur.ema200) {
		p7, p200 := *prev.ema7, *prev.ema200
		c7, c200 := *cur.ema7, *cur.ema200

		if p7 < p200 && c7 >= c200 {
			out = append(out, crossover{
				kind:  model.AlertLongTermBreakout,
				msg:   "Long-term breakout: EMA7 crossed above EMA200",
				level: notification.LevelInfo,
			})
		}
		if p7 > p200 && c7 <= c200 {
			out = append(out, crossover{
				kind:  model.AlertLongTermBreakdown,
				msg:   "Long-term breakdown: EMA7 crossed below EMA200",
				level: notification.LevelWarning,
			})
		}
	}
	return out
}

func all(vs ...*float64) bool {
	for _, v := range vs {
		if v == nil {
			return false
		}
	}
	return true
}
