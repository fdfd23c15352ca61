package specials

import (
	"strings"
	"time"

	"onthecheap/internal/models"
)

var weekdays = map[string]bool{}

func init() {
	for d := time.Sunday; d <= time.Saturday; d++ {
		weekdays[dayName(d)] = true
	}
}

// Normalize lowercases and de-duplicates day names and trims text fields.
func Normalize(s models.Special) models.Special {
	s.Title = strings.TrimSpace(s.Title)
	s.Description = strings.TrimSpace(s.Description)
	s.TimeStart = strings.TrimSpace(s.TimeStart)
	s.TimeEnd = strings.TrimSpace(s.TimeEnd)

	seen := make(map[string]bool, len(s.DaysAvailable))
	days := make([]string, 0, len(s.DaysAvailable))
	for _, d := range s.DaysAvailable {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	s.DaysAvailable = days
	return s
}

// Validate enforces the rules for specials written by owners. Stored data
// that predates these rules is still evaluated leniently by IsActive.
func Validate(s models.Special) error {
	if s.Title == "" {
		return models.Invalid("title", "is required")
	}
	if !s.Category.Valid() {
		return models.Invalid("special_type", "unknown category %q", s.Category)
	}
	if len(s.DaysAvailable) == 0 {
		return models.Invalid("days_available", "at least one day is required")
	}
	for _, d := range s.DaysAvailable {
		if !weekdays[d] {
			return models.Invalid("days_available", "%q is not a weekday", d)
		}
	}

	start, err := ParseClock(s.TimeStart)
	if err != nil {
		return models.Invalid("time_start", "must be HH:MM")
	}
	end, err := ParseClock(s.TimeEnd)
	if err != nil {
		return models.Invalid("time_end", "must be HH:MM")
	}
	if start > end {
		return models.Invalid("time_end", "must not be before time_start")
	}

	if s.Price != nil && *s.Price < 0 {
		return models.Invalid("price", "must not be negative")
	}
	if s.OriginalPrice != nil && *s.OriginalPrice < 0 {
		return models.Invalid("original_price", "must not be negative")
	}
	return nil
}
