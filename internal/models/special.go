package models

import (
	"time"

	"github.com/google/uuid"
)

// Category enumerates the kinds of specials a venue can offer.
type Category string

const (
	HappyHour      Category = "happy_hour"
	LunchSpecial   Category = "lunch_special"
	DinnerSpecial  Category = "dinner_special"
	BluePlate      Category = "blue_plate"
	DailySpecial   Category = "daily_special"
	WeekendSpecial Category = "weekend_special"
)

// Categories lists every category in display order.
var Categories = []Category{HappyHour, LunchSpecial, DinnerSpecial, BluePlate, DailySpecial, WeekendSpecial}

var categoryLabels = map[Category]string{
	HappyHour:      "Happy Hour",
	LunchSpecial:   "Lunch Special",
	DinnerSpecial:  "Dinner Special",
	BluePlate:      "Blue Plate Special",
	DailySpecial:   "Daily Special",
	WeekendSpecial: "Weekend Special",
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label is the human readable name of the category.
func (c Category) Label() string {
	return categoryLabels[c]
}

// ParseCategory validates a category supplied by a client.
func ParseCategory(raw string) (Category, error) {
	c := Category(raw)
	if !c.Valid() {
		return "", Invalid("special_type", "unknown category %q", raw)
	}
	return c, nil
}

// Special is a time-boxed discount offered by an internal venue.
type Special struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      Category  `json:"special_type"`
	Price         *float64  `json:"price,omitempty"`
	OriginalPrice *float64  `json:"original_price,omitempty"`
	DaysAvailable []string  `json:"days_available"`
	TimeStart     string    `json:"time_start"`
	TimeEnd       string    `json:"time_end"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}
