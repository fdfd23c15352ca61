// Package specials decides whether a venue's specials are running at a given
// instant and validates specials supplied by owners.
package specials

import (
	"fmt"
	"strings"
	"time"

	"onthecheap/internal/models"
)

// Instant is a weekday and minute of the day in the venue's local time.
// Within is the time elapsed inside that minute.
type Instant struct {
	Weekday time.Weekday
	Minute  int
	Within  time.Duration
}

// At converts a wall-clock time into an Instant. Callers pick the location
// of t; the evaluator never reads the clock itself.
func At(t time.Time) Instant {
	within := time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())
	return Instant{Weekday: t.Weekday(), Minute: t.Hour()*60 + t.Minute(), Within: within}
}

// String renders the instant as "monday 15:04".
func (i Instant) String() string {
	return fmt.Sprintf("%s %02d:%02d", dayName(i.Weekday), i.Minute/60, i.Minute%60)
}

// IsActive reports whether s runs at instant at. Days are matched by lowercase
// weekday name and the time window is inclusive at both ends; the end bound
// is the exact minute, so 18:00:30 is past an 18:00 end. A special with
// no days, or with a missing or unparseable bound, is treated as active.
func IsActive(s models.Special, at Instant) bool {
	if len(s.DaysAvailable) == 0 {
		return true
	}
	if !containsDay(s.DaysAvailable, at.Weekday) {
		return false
	}

	start, err := ParseClock(s.TimeStart)
	if err != nil {
		return true
	}
	end, err := ParseClock(s.TimeEnd)
	if err != nil {
		return true
	}
	if at.Minute == end {
		return start <= end && at.Within == 0
	}
	return start <= at.Minute && at.Minute < end
}

// Active returns the specials flagged active that are also running at at.
func Active(list []models.Special, at Instant) []models.Special {
	out := make([]models.Special, 0, len(list))
	for _, s := range list {
		if s.IsActive && IsActive(s, at) {
			out = append(out, s)
		}
	}
	return out
}

// OfCategory keeps only specials of category c.
func OfCategory(list []models.Special, c models.Category) []models.Special {
	out := make([]models.Special, 0, len(list))
	for _, s := range list {
		if s.Category == c {
			out = append(out, s)
		}
	}
	return out
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(raw string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse time %q: %w", raw, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func containsDay(days []string, wd time.Weekday) bool {
	name := dayName(wd)
	for _, d := range days {
		if strings.EqualFold(strings.TrimSpace(d), name) {
			return true
		}
	}
	return false
}

func dayName(wd time.Weekday) string {
	return strings.ToLower(wd.String())
}
