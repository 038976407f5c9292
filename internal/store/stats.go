package store

import (
	"time"

	"github.com/BTreeMap/Parabola/internal/models"
)

// Stats aggregates session history for the dashboard.
type Stats struct {
	FocusSessions  int `json:"focus_sessions"`
	FocusMinutes   int `json:"focus_minutes"`
	FocusStreak    int `json:"focus_streak"`
	BreathSessions int `json:"breath_sessions"`
	BreathCycles   int `json:"breath_cycles"`
}

// Summarize computes Stats from records. Only completed focus sessions count.
// FocusStreak is the number of consecutive days, ending today or yesterday in
// now's location, with at least one completed focus session.
func Summarize(records []models.SessionRecord, now time.Time) Stats {
	var st Stats
	days := make(map[time.Time]bool)
	for _, r := range records {
		switch r.Kind {
		case models.SessionKindFocus:
			if !r.Completed {
				continue
			}
			st.FocusSessions++
			st.FocusMinutes += r.DurationSeconds / 60
			days[dayOf(r.EndedAt, now.Location())] = true
		case models.SessionKindBreath:
			st.BreathSessions++
			st.BreathCycles += r.Cycles
		}
	}

	day := dayOf(now, now.Location())
	if !days[day] {
		day = day.AddDate(0, 0, -1)
	}
	for days[day] {
		st.FocusStreak++
		day = day.AddDate(0, 0, -1)
	}
	return st
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
