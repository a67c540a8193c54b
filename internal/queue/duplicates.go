package queue

import (
	"sort"

	"consult-queue-backend/internal/model"
)

// FindDuplicateNumbers returns, in ascending order, every queue number
// assigned to more than one entry. Read-only: duplicates are surfaced to
// operators as a defect signal and never auto-corrected, since silently
// reassigning a published number would strand the customer holding it.
func FindDuplicateNumbers(entries []model.QueueEntry) []int {
	seen := make(map[int]int, len(entries))
	for i := range entries {
		seen[entries[i].Number]++
	}

	var dups []int
	for number, count := range seen {
		if count > 1 {
			dups = append(dups, number)
		}
	}
	sort.Ints(dups)
	return dups
}
