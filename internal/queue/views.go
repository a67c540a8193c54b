package queue

import (
	"time"

	"consult-queue-backend/internal/model"
)

// EntryView is the customer-facing projection of an entry: derived status,
// current rank and estimated wait, without registrant detail.
type EntryView struct {
	ID                   uint      `json:"id"`
	Number               int       `json:"number"`
	Status               string    `json:"status"`
	Position             int       `json:"position"`
	Name                 string    `json:"name"`
	CreatedAt            time.Time `json:"createdAt"`
	EstimatedWaitMinutes int       `json:"estimatedWaitMinutes"`
}

// NewEntryView builds a view for one entry. minutesPerCustomer scales the
// wait estimate; terminal entries report zero wait.
func NewEntryView(e *model.QueueEntry, minutesPerCustomer int) EntryView {
	v := EntryView{
		ID:        e.ID,
		Number:    e.Number,
		Status:    e.DisplayStatus(),
		Position:  e.Position,
		Name:      e.Name,
		CreatedAt: e.CreatedAt,
	}
	if e.Active() && e.Position > 1 {
		v.EstimatedWaitMinutes = (e.Position - 1) * minutesPerCustomer
	}
	return v
}

// NewEntryViews builds views for a list of entries.
func NewEntryViews(entries []model.QueueEntry, minutesPerCustomer int) []EntryView {
	views := make([]EntryView, len(entries))
	for i := range entries {
		views[i] = NewEntryView(&entries[i], minutesPerCustomer)
	}
	return views
}

// Notifier receives the authoritative state after each committed mutation.
// Delivery is best-effort; implementations must not block the caller for
// longer than a channel send.
type Notifier interface {
	// QueueUpdated carries the full refreshed active list.
	QueueUpdated(entries []EntryView)
	// EntryStatusChanged fires for the specific entry whose (possibly
	// derived) status changed, so number-targeted subscribers hear it.
	EntryStatusChanged(entry EntryView)
}

// SystemStatus is the public snapshot returned by the status endpoint.
type SystemStatus struct {
	IsQueueOpen        bool   `json:"isQueueOpen"`
	CurrentQueueNumber int    `json:"currentQueueNumber"`
	LastIssuedNumber   int    `json:"lastIssuedNumber"`
	MaxQueueNumber     int    `json:"maxQueueNumber"`
	MinutesPerCustomer int    `json:"minutesPerCustomer"`
	NextSessionDate    string `json:"nextSessionDate"`
	WaitingCount       int64  `json:"waitingCount"`
	CompletedCount     int64  `json:"completedCount"`
	CancelledCount     int64  `json:"cancelledCount"`
}
