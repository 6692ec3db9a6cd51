package models

import (
	"testing"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in     string
		hour   int
		minute int
		ok     bool
	}{
		{"08:00", 8, 0, true},
		{"23:59", 23, 59, true},
		{"00:00", 0, 0, true},
		{"09:05:30", 9, 5, true}, // seconds carried by the store, ignored
		{" 07:15 ", 7, 15, true},
		{"8:00", 0, 0, false},
		{"24:00", 0, 0, false},
		{"12:60", 0, 0, false},
		{"ab:cd", 0, 0, false},
		{"", 0, 0, false},
		{"12-30", 0, 0, false},
	}

	for _, c := range cases {
		hour, minute, ok := ParseTimeOfDay(c.in)
		if ok != c.ok || hour != c.hour || minute != c.minute {
			t.Errorf("ParseTimeOfDay(%q) = (%d, %d, %v), want (%d, %d, %v)",
				c.in, hour, minute, ok, c.hour, c.minute, c.ok)
		}
	}
}

func TestWeekdaySet(t *testing.T) {
	r := Reminder{DaysOfWeek: "Monday, Wednesday ,Friday"}
	got := r.WeekdaySet()
	want := []string{"Monday", "Wednesday", "Friday"}
	if len(got) != len(want) {
		t.Fatalf("WeekdaySet() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("WeekdaySet()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	for _, empty := range []string{"", "   ", ",,", " , "} {
		r.DaysOfWeek = empty
		if set := r.WeekdaySet(); len(set) != 0 {
			t.Errorf("WeekdaySet() on %q = %v, want empty", empty, set)
		}
	}
}

func TestFrequencyValid(t *testing.T) {
	for _, f := range []Frequency{FrequencyDaily, FrequencyWeekly, FrequencySpecificDays} {
		if !f.Valid() {
			t.Errorf("%q should be valid", f)
		}
	}
	for _, f := range []Frequency{"", "hourly", "Daily", "WEEKLY"} {
		if f.Valid() {
			t.Errorf("%q should not be valid", f)
		}
	}
}
