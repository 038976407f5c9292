package companion

import (
	"fmt"

	"github.com/BTreeMap/Parabola/internal/models"
)

// FocusPreset is a named focus/break split offered by the focus timer.
type FocusPreset struct {
	Name         string `json:"name"`
	FocusMinutes int    `json:"focus_minutes"`
	BreakMinutes int    `json:"break_minutes"`
}

// Seconds returns the focus length in seconds.
func (p FocusPreset) Seconds() int {
	return p.FocusMinutes * 60
}

// FocusPresets lists the available focus presets in display order.
var FocusPresets = []FocusPreset{
	{Name: "25/5", FocusMinutes: 25, BreakMinutes: 5},
	{Name: "50/10", FocusMinutes: 50, BreakMinutes: 10},
	{Name: "90/20", FocusMinutes: 90, BreakMinutes: 20},
}

// DefaultPreset is the preset the focus timer starts with.
const DefaultPreset = "25/5"

// ErrUnknownPreset is returned by LookupPreset for an unlisted name.
var ErrUnknownPreset = fmt.Errorf("%w: unknown focus preset", models.ErrConfiguration)

// LookupPreset finds a preset by name.
func LookupPreset(name string) (FocusPreset, error) {
	for _, p := range FocusPresets {
		if p.Name == name {
			return p, nil
		}
	}
	return FocusPreset{}, fmt.Errorf("%w %q", ErrUnknownPreset, name)
}

// Protocol is a knowledge hub entry the companion can explain.
type Protocol struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Summary  string   `json:"summary"`
	Details  []string `json:"details"`
}

// KnowledgeHub is the built-in protocol library.
var KnowledgeHub = []Protocol{
	{
		ID:       "dopamine-mastery",
		Title:    "Dopamine Mastery",
		Category: "Neuroscience",
		Summary:  "Understand and manage your dopamine levels to improve motivation, focus, and satisfaction.",
		Details: []string{
			"Delay gratification; avoid quick dopamine hits.",
			"Set and achieve meaningful goals.",
			"Use intermittent rewards for tasks.",
			"Practice dopamine detox days.",
		},
	},
	{
		ID:       "sleep-optimization",
		Title:    "Sleep Optimization",
		Category: "Recovery",
		Summary:  "Engineer your environment and habits for deep, restorative sleep to maximize daily performance.",
		Details: []string{
			"Consistent wake-up time.",
			"Cool, dark, and quiet room.",
			"No screens 90 minutes before bed.",
			"Get morning sunlight exposure.",
		},
	},
	{
		ID:       "digital-minimalism",
		Title:    "Digital Minimalism",
		Category: "Focus",
		Summary:  "Curate your digital life to serve your goals, not distract from them.",
		Details: []string{
			"Turn off all non-essential notifications.",
			"Schedule specific times for email and social media.",
			"Use grayscale mode on your phone.",
			"Delete apps you don't truly need.",
		},
	},
	{
		ID:       "focus-nutrition",
		Title:    "Focus Nutrition",
		Category: "Health",
		Summary:  "Learn which foods and nutrients boost cognitive function and sustained energy.",
		Details: []string{
			"Prioritize healthy fats (avocado, nuts).",
			"Stay hydrated with water and electrolytes.",
			"Limit sugar and processed foods.",
			"Consider L-Theanine with caffeine.",
		},
	},
}

// Insight is a journal note included in capture summaries.
type Insight struct {
	ID      int      `json:"id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// Quote is a swipe file entry.
type Quote struct {
	ID     int      `json:"id"`
	Quote  string   `json:"quote"`
	Source string   `json:"source"`
	Tags   []string `json:"tags,omitempty"`
}

// DefaultInsights seeds the insight journal.
var DefaultInsights = []Insight{
	{
		ID:      1,
		Title:   "The Power of Single-Tasking",
		Content: "Realized today during my deep work session that switching tasks, even for a moment, completely derails my focus. The cost of context switching is higher than I thought.",
		Tags:    []string{"focus", "productivity"},
	},
	{
		ID:      2,
		Title:   "Morning Sunlight is a Game Changer",
		Content: "Getting 10 minutes of sunlight right after waking up has noticeably improved my energy levels throughout the day. It's a non-negotiable now.",
		Tags:    []string{"health", "routine"},
	},
}

// SwipeFile holds saved quotes.
var SwipeFile = []Quote{
	{ID: 1, Quote: "We are what we repeatedly do. Excellence, then, is not an act, but a habit.", Source: "Aristotle", Tags: []string{"philosophy", "habits"}},
	{ID: 2, Quote: "The amateur waits for inspiration. The rest of us just get up and go to work.", Source: "Stephen King", Tags: []string{"creativity", "work-ethic"}},
}

// TaskType classifies a schedule block.
type TaskType string

const (
	TaskDeep     TaskType = "deep"
	TaskAdmin    TaskType = "admin"
	TaskMovement TaskType = "movement"
	TaskBreak    TaskType = "break"
)

// ScheduleItem is one block of today's plan.
type ScheduleItem struct {
	ID              int      `json:"id"`
	Time            string   `json:"time"`
	Task            string   `json:"task"`
	Type            TaskType `json:"type"`
	DurationMinutes int      `json:"duration_minutes"`
}

// TodaySchedule is the default day plan.
var TodaySchedule = []ScheduleItem{
	{ID: 1, Time: "09:00", Task: "Deep Work: Project A", Type: TaskDeep, DurationMinutes: 90},
	{ID: 2, Time: "10:30", Task: "Break", Type: TaskBreak, DurationMinutes: 15},
	{ID: 3, Time: "10:45", Task: "Admin: Emails & Calls", Type: TaskAdmin, DurationMinutes: 45},
	{ID: 4, Time: "11:30", Task: "Movement: Walk", Type: TaskMovement, DurationMinutes: 30},
	{ID: 5, Time: "12:00", Task: "Deep Work: Project B", Type: TaskDeep, DurationMinutes: 120},
	{ID: 6, Time: "14:00", Task: "Lunch", Type: TaskBreak, DurationMinutes: 60},
}

// MinutesByType totals scheduled minutes per task type.
func MinutesByType(items []ScheduleItem) map[TaskType]int {
	totals := make(map[TaskType]int)
	for _, it := range items {
		totals[it.Type] += it.DurationMinutes
	}
	return totals
}
