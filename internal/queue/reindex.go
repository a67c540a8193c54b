package queue

import "consult-queue-backend/internal/model"

// Reindex reassigns positions 1..N over the given active entries,
// preserving their relative order. Idempotent: a contiguous list comes
// back unchanged.
func Reindex(entries []model.QueueEntry) []model.QueueEntry {
	for i := range entries {
		entries[i].Position = i + 1
	}
	return entries
}
