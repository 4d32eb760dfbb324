package models

import (
	"time"

	"github.com/julianstephens/streaktoot/internal/constants"
)

// Records is the sparse completion record of a habit, keyed by local calendar
// day (YYYY-MM-DD). An absent key means the day was not done.
type Records map[string]bool

// DayKey formats t as a record key in t's own location.
func DayKey(t time.Time) string {
	return t.Format(constants.DateFormat)
}

// Mark records day as done.
func (r Records) Mark(day string) {
	r[day] = true
}

// Unmark removes day from the record.
func (r Records) Unmark(day string) {
	delete(r, day)
}

// Done reports whether day was recorded as done.
func (r Records) Done(day string) bool {
	return r[day]
}

// Total counts the days recorded as done.
func (r Records) Total() int {
	total := 0
	for _, done := range r {
		if done {
			total++
		}
	}
	return total
}
