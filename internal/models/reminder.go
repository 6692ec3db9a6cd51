package models

import (
	"strings"
	"time"
)

// Frequency defines how often a reminder may fire.
type Frequency string

const (
	FrequencyDaily        Frequency = "daily"
	FrequencyWeekly       Frequency = "weekly"
	FrequencySpecificDays Frequency = "specific_days"
)

// Valid reports whether the frequency is one of the recognized values.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencySpecificDays:
		return true
	default:
		return false
	}
}

// Reminder is one habit-reminder configuration row. The sweep loop only
// reads the scheduling fields and writes LastSentAt; everything else is
// managed by the habit tracker application.
type Reminder struct {
	ID          int64
	HabitName   string
	Description string

	// Recipient is opaque to the core: an email address for the SMTP
	// transport, a chat id for the Telegram transport.
	Recipient string

	// TimeOfDay is the configured trigger time as "HH:MM" or "HH:MM:SS".
	// Seconds are ignored when matching.
	TimeOfDay string

	Frequency Frequency

	// DayOfWeek is the weekday name for weekly reminders ("Monday").
	DayOfWeek string

	// DaysOfWeek is a comma-separated list of weekday names for
	// specific_days reminders ("Monday,Wednesday,Friday").
	DaysOfWeek string

	Enabled bool

	// LastSentAt is the time of the most recent successful delivery.
	// Its calendar date is the once-per-day dedup signal.
	LastSentAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ParseTimeOfDay splits a "HH:MM" or "HH:MM:SS" value into hour and minute.
// Returns ok=false for anything it cannot read.
func ParseTimeOfDay(s string) (hour, minute int, ok bool) {
	s = strings.TrimSpace(s)
	if len(s) < 5 || s[2] != ':' {
		return 0, 0, false
	}
	hour = digits2(s[0], s[1])
	minute = digits2(s[3], s[4])
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func digits2(a, b byte) int {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return -1
	}
	return int(a-'0')*10 + int(b-'0')
}

// WeekdaySet returns the trimmed weekday names from DaysOfWeek. Empty
// entries are dropped; an empty or blank field yields nil.
func (r *Reminder) WeekdaySet() []string {
	if strings.TrimSpace(r.DaysOfWeek) == "" {
		return nil
	}
	parts := strings.Split(r.DaysOfWeek, ",")
	days := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			days = append(days, p)
		}
	}
	return days
}
