package queue

import "consult-queue-backend/internal/model"

// allowedTransitions maps a stored status to the statuses it may move to.
// Terminal entries must be restored to waiting before anything else;
// same-status requests are treated as no-ops before this table is consulted.
var allowedTransitions = map[string][]string{
	model.StatusWaiting:   {model.StatusCompleted, model.StatusCancelled},
	model.StatusCompleted: {model.StatusWaiting},
	model.StatusCancelled: {model.StatusWaiting},
}

func transitionAllowed(from, to string) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func knownStatus(s string) bool {
	for _, k := range model.KnownStatuses {
		if k == s {
			return true
		}
	}
	return false
}
