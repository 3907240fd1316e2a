package core

import (
	"sort"
	"time"
)

const (
	// RecentWindow is how far back the activity feed looks.
	RecentWindow = 7 * 24 * time.Hour
	// RecentFallbackLimit caps the feed when nothing is inside the window.
	RecentFallbackLimit = 20
)

// RecentActivity returns the expenses from the last seven days before now,
// newest first. When none fall in that window it returns the first
// RecentFallbackLimit expenses of the input instead, also newest first.
//
// The fallback truncates before sorting, so it yields the most recent
// entries only when expenses is already ordered newest first. Store
// implementations guarantee that order for ListExpenses.
func RecentActivity(expenses []Expense, now time.Time) []Expense {
	cutoff := now.Add(-RecentWindow)

	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if !e.Timestamp.Before(cutoff) {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		n := min(len(expenses), RecentFallbackLimit)
		out = append(out, expenses[:n]...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}
