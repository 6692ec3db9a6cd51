package models

import "time"

// Delivery is one audit-log row describing the outcome of processing a
// single reminder during a sweep.
type Delivery struct {
	ID         int64
	ReminderID int64
	HabitName  string
	Recipient  string
	Outcome    string
	// Detail carries the error text for failed outcomes, empty otherwise.
	Detail    string
	SweepID   string
	CreatedAt time.Time
}
