// Package markethours decides whether the US equity session is open. The
// session window is 09:30–16:00 America/New_York, Monday to Friday, with
// exchange holidays taken from the NYSE calendar.
package markethours

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/scmhub/calendar"
)

// Session hours in exchange local time.
const (
	OpenHour    = 9
	OpenMinute  = 30
	CloseHour   = 16
	CloseMinute = 0
)

// NewYork is the exchange time zone. Falls back to a fixed UTC-5 zone when
// the tz database is unavailable.
var NewYork = loadNewYork()

func loadNewYork() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*3600)
	}
	return loc
}

// Session answers session questions for one exchange.
type Session struct {
	loc *time.Location
	cal *calendar.Calendar // nil → weekdays only, no holidays
}

// NYSE returns the session for the New York Stock Exchange.
func NYSE() *Session {
	cal := calendar.GetCalendar("xnys")
	if cal == nil {
		return WeekdaysOnly(NewYork)
	}
	loc := cal.Loc
	if loc == nil {
		loc = NewYork
	}
	return &Session{loc: loc, cal: cal}
}

// WeekdaysOnly returns a session that treats every Mon–Fri as a trading day.
func WeekdaysOnly(loc *time.Location) *Session {
	return &Session{loc: loc}
}

// Location returns the exchange time zone.
func (s *Session) Location() *time.Location { return s.loc }

// IsTradingDay returns true if t is a weekday and not an exchange holiday.
func (s *Session) IsTradingDay(t time.Time) bool {
	local := t.In(s.loc)
	wd := local.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if s.cal != nil {
		return s.cal.IsBusinessDay(local)
	}
	return true
}

// IsOpen returns true if t falls within regular trading hours.
func (s *Session) IsOpen(t time.Time) bool {
	local := t.In(s.loc)
	if !s.IsTradingDay(local) {
		return false
	}
	hm := local.Hour()*60 + local.Minute()
	return hm >= OpenHour*60+OpenMinute && hm < CloseHour*60+CloseMinute
}

// SameSessionDay reports whether a and b fall on the same exchange-local date.
func (s *Session) SameSessionDay(a, b time.Time) bool {
	ay, am, ad := a.In(s.loc).Date()
	by, bm, bd := b.In(s.loc).Date()
	return ay == by && am == bm && ad == bd
}

// NextOpen returns the next session open. If t is before today's open on a
// trading day, returns today's open.
func (s *Session) NextOpen(t time.Time) time.Time {
	local := t.In(s.loc)

	todayOpen := time.Date(local.Year(), local.Month(), local.Day(), OpenHour, OpenMinute, 0, 0, s.loc)
	if local.Before(todayOpen) && s.IsTradingDay(local) {
		return todayOpen
	}

	d := local.AddDate(0, 0, 1)
	for i := 0; i < 10; i++ { // weekends + holiday clusters never exceed this
		if s.IsTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), OpenHour, OpenMinute, 0, 0, s.loc)
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(local.Year(), local.Month(), local.Day()+1, OpenHour, OpenMinute, 0, 0, s.loc)
}

// TodayClose returns today's session close time.
func (s *Session) TodayClose(t time.Time) time.Time {
	local := t.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), CloseHour, CloseMinute, 0, 0, s.loc)
}

// StatusString returns a human-readable session status.
func (s *Session) StatusString(t time.Time) string {
	if s.IsOpen(t) {
		return fmt.Sprintf("Market Open — closes in %s", fmtDur(s.TodayClose(t).Sub(t)))
	}
	next := s.NextOpen(t)
	local := next.In(s.loc)
	return fmt.Sprintf("Market Closed — opens %s %s (%s)",
		local.Weekday().String()[:3], local.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
