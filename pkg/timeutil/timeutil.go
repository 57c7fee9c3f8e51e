// Package timeutil provides date handling in a single reference timezone.
// Streaks, daily quests and weekly quests all use calendar days of this zone,
// whatever timezone the client happens to be in.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

var (
	mu       sync.RWMutex
	location = time.UTC
)

// SetLocation sets the reference timezone. Call once at startup.
func SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	mu.Lock()
	location = loc
	mu.Unlock()
}

// LoadLocation resolves an IANA name and makes it the reference timezone.
func LoadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timeutil: load location %q: %w", name, err)
	}
	SetLocation(loc)
	return loc, nil
}

// Location returns the reference timezone.
func Location() *time.Location {
	mu.RLock()
	defer mu.RUnlock()
	return location
}

// Now returns the current time in the reference timezone.
func Now() time.Time {
	return time.Now().In(Location())
}

// Clock returns the current time. Commands take one so tests can pin "today".
type Clock func() time.Time

// Date creates midnight of the given day in the reference timezone.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, Location())
}

// StartOfDay returns 00:00:00 of t's calendar day in the reference timezone.
func StartOfDay(t time.Time) time.Time {
	l := t.In(Location())
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, Location())
}

// StartOfWeek returns Monday 00:00:00 of t's ISO week.
func StartOfWeek(t time.Time) time.Time {
	l := t.In(Location())
	weekday := int(l.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return StartOfDay(l.AddDate(0, 0, -(weekday - 1)))
}

// civilDays maps a calendar day to a day number, ignoring DST and offsets.
func civilDays(t time.Time) int64 {
	l := t.In(Location())
	u := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.UTC)
	return u.Unix() / 86400
}

// DaysBetween returns the signed number of calendar days from t1 to t2.
func DaysBetween(t1, t2 time.Time) int {
	return int(civilDays(t2) - civilDays(t1))
}

// IsSameDay checks if two times fall on the same calendar day.
func IsSameDay(t1, t2 time.Time) bool {
	return DaysBetween(t1, t2) == 0
}

// IsConsecutiveDay checks if t2 is the calendar day after t1.
func IsConsecutiveDay(t1, t2 time.Time) bool {
	return DaysBetween(t1, t2) == 1
}

// FormatDate is the standard date format (YYYY-MM-DD).
const FormatDate = "2006-01-02"

// FormatDateStr formats t as YYYY-MM-DD in the reference timezone.
func FormatDateStr(t time.Time) string {
	return t.In(Location()).Format(FormatDate)
}

// ISOWeekKey returns the ISO week of t as "YYYY-Www".
func ISOWeekKey(t time.Time) string {
	year, week := t.In(Location()).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}
