package queue

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"consult-queue-backend/internal/model"
	"consult-queue-backend/internal/store"
)

// Engine owns the active ordering, the one shared mutable resource. Every
// structural mutation (register, status change, reorder, call-next) runs
// under a single mutex: read active set, mutate, persist, reindex,
// broadcast. Read-only queries bypass the lock and accept eventually
// consistent freshness.
type Engine struct {
	mu        sync.Mutex
	store     store.Store
	notifiers []Notifier

	// dirty marks a mutation that failed after touching storage. The next
	// mutation runs a corrective renumber pass before doing anything else.
	dirty bool
}

// NewEngine creates the engine. Notifiers observe committed mutations.
func NewEngine(s store.Store, notifiers ...Notifier) *Engine {
	return &Engine{store: s, notifiers: notifiers}
}

// RegisterResult reports the outcome of a successful registration.
type RegisterResult struct {
	Entry                *model.QueueEntry `json:"entry"`
	Number               int               `json:"number"`
	Position             int               `json:"position"`
	EstimatedWaitMinutes int               `json:"estimatedWaitMinutes"`
}

// Register appends a new entry to the tail of the active queue, allocating
// the next unused number. Rejected with ErrQueueClosed, ErrQueueFull or a
// ValidationError without persisting anything.
func (e *Engine) Register(ctx context.Context, draft Draft) (*RegisterResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.repairIfDirty(ctx); err != nil {
		return nil, err
	}

	if err := draft.validate(); err != nil {
		return nil, err
	}
	if err := draft.completeCalendars(); err != nil {
		return nil, err
	}

	settings, err := e.store.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.IsQueueOpen {
		return nil, ErrQueueClosed
	}
	next := settings.LastIssuedNumber + 1
	if settings.MaxQueueNumber > 0 && next > settings.MaxQueueNumber {
		return nil, ErrQueueFull
	}

	active, err := e.store.ActiveEntries(ctx)
	if err != nil {
		return nil, err
	}

	entry := model.QueueEntry{
		Number:   next,
		Status:   model.StatusWaiting,
		Position: len(active) + 1,
	}
	draft.apply(&entry)

	err = e.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreateEntry(ctx, &entry); err != nil {
			return err
		}
		settings.LastIssuedNumber = next
		return tx.SaveSettings(ctx, settings)
	})
	if err != nil {
		e.dirty = true
		return nil, err
	}

	e.broadcast(ctx, &entry)
	return &RegisterResult{
		Entry:                &entry,
		Number:               entry.Number,
		Position:             entry.Position,
		EstimatedWaitMinutes: (entry.Position - 1) * settings.MinutesPerCustomer,
	}, nil
}

// SetStatus applies one status transition. Same-status requests are
// no-ops; invalid combinations are rejected before anything is written.
// Every applied transition closes the positional gap it leaves behind.
func (e *Engine) SetStatus(ctx context.Context, id uint, target string) (*model.QueueEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.repairIfDirty(ctx); err != nil {
		return nil, err
	}

	if !knownStatus(target) {
		return nil, validationf("unknown status %q", target)
	}

	entry, err := e.store.EntryByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if entry.Status == target {
		return entry, nil
	}
	if !transitionAllowed(entry.Status, target) {
		return nil, validationf("invalid status transition %s -> %s", entry.Status, target)
	}

	err = e.store.Transaction(ctx, func(tx store.Store) error {
		return e.applyTransition(ctx, tx, entry, target)
	})
	if err != nil {
		e.dirty = true
		return nil, err
	}

	e.broadcast(ctx, entry)
	return entry, nil
}

// applyTransition mutates entry to the target status and rewrites the
// active ordering inside the caller's transaction.
func (e *Engine) applyTransition(ctx context.Context, tx store.Store, entry *model.QueueEntry, target string) error {
	active, err := tx.ActiveEntries(ctx)
	if err != nil {
		return err
	}

	switch target {
	case model.StatusCompleted:
		now := time.Now().UTC()
		entry.Status = model.StatusCompleted
		entry.CompletedAt = &now
		// Tail-move: the completed entry records the slot just past the
		// remaining actives, then the gap closes.
		entry.Position = len(active)
		active = removeByID(active, entry.ID)
	case model.StatusCancelled:
		entry.Status = model.StatusCancelled
		active = removeByID(active, entry.ID)
	case model.StatusWaiting:
		entry.Status = model.StatusWaiting
		entry.CompletedAt = nil
		entry.Position = len(active) + 1
		active = append(active, *entry)
	}

	if err := tx.SaveEntry(ctx, entry); err != nil {
		return err
	}
	return tx.SavePositions(ctx, Reindex(active))
}

// CallNextResult reports the composite outcome of a call-next.
type CallNextResult struct {
	// Completed is the former head, now completed. Nil when the queue was
	// already empty.
	Completed *model.QueueEntry `json:"completed,omitempty"`
	// Activated is the entry promoted to position 1, the new implicit
	// "processing" entry. Nil when no waiting entry remains.
	Activated *model.QueueEntry `json:"activated,omitempty"`
	// QueueEmpty marks the business condition that no entry is waiting
	// after the operation.
	QueueEmpty bool `json:"queueEmpty"`
}

// CallNext completes the entry at position 1 and promotes the next waiting
// entry, persisting its number as the current queue number. An empty queue
// returns ErrQueueEmpty: a reported condition, not a system failure.
func (e *Engine) CallNext(ctx context.Context) (*CallNextResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.repairIfDirty(ctx); err != nil {
		return nil, err
	}

	active, err := e.store.ActiveEntries(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, ErrQueueEmpty
	}

	head := active[0]
	result := &CallNextResult{Completed: &head}

	err = e.store.Transaction(ctx, func(tx store.Store) error {
		if err := e.applyTransition(ctx, tx, &head, model.StatusCompleted); err != nil {
			return err
		}

		rest, err := tx.ActiveEntries(ctx)
		if err != nil {
			return err
		}
		if len(rest) == 0 {
			result.QueueEmpty = true
			return nil
		}

		next := rest[0]
		result.Activated = &next

		settings, err := tx.Settings(ctx)
		if err != nil {
			return err
		}
		settings.CurrentQueueNumber = next.Number
		return tx.SaveSettings(ctx, settings)
	})
	if err != nil {
		e.dirty = true
		return nil, err
	}

	changed := []*model.QueueEntry{result.Completed}
	if result.Activated != nil {
		changed = append(changed, result.Activated)
	}
	e.broadcast(ctx, changed...)
	return result, nil
}

// MoveEntry re-inserts one active entry at newPosition (clamped to the
// active range); everything between the old and new slot shifts by one.
// Returns the refreshed authoritative active list.
func (e *Engine) MoveEntry(ctx context.Context, id uint, newPosition int) ([]model.QueueEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.repairIfDirty(ctx); err != nil {
		return nil, err
	}

	active, err := e.store.ActiveEntries(ctx)
	if err != nil {
		return nil, err
	}

	idx := indexByID(active, id)
	if idx < 0 {
		if _, lookupErr := e.store.EntryByID(ctx, id); errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, validationf("entry %d is not in the active queue", id)
	}

	if newPosition < 1 {
		newPosition = 1
	}
	if newPosition > len(active) {
		newPosition = len(active)
	}

	moved := active[idx]
	active = append(active[:idx], active[idx+1:]...)
	active = append(active[:newPosition-1], append([]model.QueueEntry{moved}, active[newPosition-1:]...)...)

	if err := e.persistOrder(ctx, active); err != nil {
		return nil, err
	}
	e.broadcast(ctx)
	return active, nil
}

// ApplyOrder replaces the active ordering with the caller's proposal. The
// relative order of the named entries is trusted as-is; active entries the
// caller omitted keep their previous relative order at the tail. Unknown
// ids are ignored. Last writer wins; the result is re-broadcast so every
// client converges on it.
func (e *Engine) ApplyOrder(ctx context.Context, ids []uint) ([]model.QueueEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.repairIfDirty(ctx); err != nil {
		return nil, err
	}

	active, err := e.store.ActiveEntries(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]int, len(active))
	for i := range active {
		byID[active[i].ID] = i
	}

	ordered := make([]model.QueueEntry, 0, len(active))
	named := make(map[uint]bool, len(ids))
	for _, id := range ids {
		i, ok := byID[id]
		if !ok || named[id] {
			continue
		}
		named[id] = true
		ordered = append(ordered, active[i])
	}
	for i := range active {
		if !named[active[i].ID] {
			ordered = append(ordered, active[i])
		}
	}

	if err := e.persistOrder(ctx, ordered); err != nil {
		return nil, err
	}
	e.broadcast(ctx)
	return ordered, nil
}

// Renumber is the maintenance repair: reindex the full active set sorted
// by current position, ties broken by number ascending. Used to recover
// from external drift.
func (e *Engine) Renumber(ctx context.Context) ([]model.QueueEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	active, err := e.renumberLocked(ctx)
	if err != nil {
		return nil, err
	}
	e.dirty = false
	e.broadcast(ctx)
	return active, nil
}

func (e *Engine) renumberLocked(ctx context.Context) ([]model.QueueEntry, error) {
	active, err := e.store.ActiveEntries(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.persistOrder(ctx, active); err != nil {
		return nil, err
	}
	return active, nil
}

// UpdateEntry replaces the registrant data of an entry. Number, status and
// position are untouched.
func (e *Engine) UpdateEntry(ctx context.Context, id uint, draft Draft) (*model.QueueEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.repairIfDirty(ctx); err != nil {
		return nil, err
	}

	if err := draft.validate(); err != nil {
		return nil, err
	}
	if err := draft.completeCalendars(); err != nil {
		return nil, err
	}

	entry, err := e.store.EntryByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	draft.apply(entry)
	if err := e.store.ReplaceEntryData(ctx, entry); err != nil {
		e.dirty = true
		return nil, err
	}

	e.broadcast(ctx)
	return entry, nil
}

// DeleteEntry soft-deletes one entry. Its number stays reserved while the
// row exists. Deleting an active entry closes the positional gap.
func (e *Engine) DeleteEntry(ctx context.Context, id uint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.repairIfDirty(ctx); err != nil {
		return err
	}

	entry, err := e.store.EntryByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	err = e.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.DeleteEntry(ctx, id); err != nil {
			return err
		}
		if !entry.Active() {
			return nil
		}
		active, err := tx.ActiveEntries(ctx)
		if err != nil {
			return err
		}
		return tx.SavePositions(ctx, Reindex(active))
	})
	if err != nil {
		e.dirty = true
		return err
	}

	e.broadcast(ctx)
	return nil
}

// ClearAll is the administrative purge: every entry is removed and the
// number counters reset. Queue configuration survives.
func (e *Engine) ClearAll(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.PurgeEntries(ctx); err != nil {
			return err
		}
		settings, err := tx.Settings(ctx)
		if err != nil {
			return err
		}
		settings.LastIssuedNumber = 0
		settings.CurrentQueueNumber = 0
		return tx.SaveSettings(ctx, settings)
	})
	if err != nil {
		e.dirty = true
		return err
	}

	e.dirty = false
	e.broadcast(ctx)
	return nil
}

// persistOrder reindexes and writes the given active ordering.
func (e *Engine) persistOrder(ctx context.Context, active []model.QueueEntry) error {
	if err := e.store.SavePositions(ctx, Reindex(active)); err != nil {
		e.dirty = true
		return err
	}
	return nil
}

// repairIfDirty runs a corrective reindex pass before admitting a new
// mutation after a partial failure.
func (e *Engine) repairIfDirty(ctx context.Context) error {
	if !e.dirty {
		return nil
	}
	log.Printf("queue: running corrective reindex after failed mutation")
	if _, err := e.renumberLocked(ctx); err != nil {
		return err
	}
	e.dirty = false
	return nil
}

// broadcast pushes the refreshed authoritative list to every notifier,
// plus a per-entry event for each changed entry. Failures to assemble the
// payload are logged, never propagated: observers recover via pull.
func (e *Engine) broadcast(ctx context.Context, changed ...*model.QueueEntry) {
	settings, err := e.store.Settings(ctx)
	if err != nil {
		log.Printf("queue: broadcast skipped, settings unavailable: %v", err)
		return
	}
	active, err := e.store.ActiveEntries(ctx)
	if err != nil {
		log.Printf("queue: broadcast skipped, active list unavailable: %v", err)
		return
	}

	views := NewEntryViews(active, settings.MinutesPerCustomer)
	for _, n := range e.notifiers {
		n.QueueUpdated(views)
	}
	for _, c := range changed {
		v := NewEntryView(c, settings.MinutesPerCustomer)
		for _, n := range e.notifiers {
			n.EntryStatusChanged(v)
		}
	}
}

func removeByID(entries []model.QueueEntry, id uint) []model.QueueEntry {
	idx := indexByID(entries, id)
	if idx < 0 {
		return entries
	}
	return append(entries[:idx], entries[idx+1:]...)
}

func indexByID(entries []model.QueueEntry, id uint) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}
