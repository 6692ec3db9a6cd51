package reminders

import (
	"time"

	"habitping/internal/models"
)

// IsDue reports whether a reminder's configured time-of-day and frequency
// rule match the given instant. The comparison is minute-resolution: any
// seconds on either side are discarded. Unknown frequencies and malformed
// time or weekday values are never due; the caller decides whether to log
// them as anomalies.
func IsDue(r models.Reminder, now time.Time) bool {
	hour, minute, ok := models.ParseTimeOfDay(r.TimeOfDay)
	if !ok {
		return false
	}
	if now.Hour() != hour || now.Minute() != minute {
		return false
	}

	switch r.Frequency {
	case models.FrequencyDaily:
		return true
	case models.FrequencyWeekly:
		return r.DayOfWeek == now.Weekday().String()
	case models.FrequencySpecificDays:
		weekday := now.Weekday().String()
		for _, d := range r.WeekdaySet() {
			if d == weekday {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// SentToday reports whether the reminder's last successful delivery
// happened on the same calendar date as now. A reminder that has never
// been sent is never deduplicated.
func SentToday(r models.Reminder, now time.Time) bool {
	if r.LastSentAt == nil {
		return false
	}
	y1, m1, d1 := r.LastSentAt.Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
