package queue

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"consult-queue-backend/internal/model"
	"consult-queue-backend/internal/store"
)

// Read-only queries. These run outside the mutation lock and tolerate
// eventually consistent freshness.

// Status assembles the public system snapshot.
func (e *Engine) Status(ctx context.Context) (*SystemStatus, error) {
	settings, err := e.store.Settings(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := e.store.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	return &SystemStatus{
		IsQueueOpen:        settings.IsQueueOpen,
		CurrentQueueNumber: settings.CurrentQueueNumber,
		LastIssuedNumber:   settings.LastIssuedNumber,
		MaxQueueNumber:     settings.MaxQueueNumber,
		MinutesPerCustomer: settings.MinutesPerCustomer,
		NextSessionDate:    settings.NextSessionDate,
		WaitingCount:       counts[model.StatusWaiting],
		CompletedCount:     counts[model.StatusCompleted],
		CancelledCount:     counts[model.StatusCancelled],
	}, nil
}

// EntryStatus returns the view(s) for a queue number. Duplicate numbers
// yield more than one view, mirroring what the integrity detector reports.
func (e *Engine) EntryStatus(ctx context.Context, number int) ([]EntryView, error) {
	entries, err := e.store.EntriesByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	settings, err := e.store.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return NewEntryViews(entries, settings.MinutesPerCustomer), nil
}

// Search finds entries by partial name and/or phone.
func (e *Engine) Search(ctx context.Context, name, phone string) ([]EntryView, error) {
	if name == "" && phone == "" {
		return nil, validationf("a name or phone is required")
	}
	entries, err := e.store.SearchEntries(ctx, name, phone)
	if err != nil {
		return nil, err
	}
	settings, err := e.store.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return NewEntryViews(entries, settings.MinutesPerCustomer), nil
}

// List returns full entries for the operator console.
func (e *Engine) List(ctx context.Context, f store.ListFilter) ([]model.QueueEntry, store.Pagination, error) {
	if f.Status != "" && !knownStatus(f.Status) {
		return nil, store.Pagination{}, validationf("unknown status %q", f.Status)
	}
	entries, total, err := e.store.ListEntries(ctx, f)
	if err != nil {
		return nil, store.Pagination{}, err
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = len(entries)
	}
	return entries, store.Pagination{Page: page, PageSize: pageSize, Total: total}, nil
}

// Entry returns one full entry by id. Only a missing row maps to
// ErrNotFound; storage failures pass through unchanged.
func (e *Engine) Entry(ctx context.Context, id uint) (*model.QueueEntry, error) {
	entry, err := e.store.EntryByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ActiveList returns the current authoritative active ordering.
func (e *Engine) ActiveList(ctx context.Context) ([]model.QueueEntry, error) {
	return e.store.ActiveEntries(ctx)
}

// Duplicates scans all entries, historical included, for numbers assigned
// more than once.
func (e *Engine) Duplicates(ctx context.Context) ([]int, error) {
	entries, err := e.store.AllEntries(ctx)
	if err != nil {
		return nil, err
	}
	return FindDuplicateNumbers(entries), nil
}

// QueueSettings returns the persisted configuration row.
func (e *Engine) QueueSettings(ctx context.Context) (*model.Settings, error) {
	return e.store.Settings(ctx)
}

// SettingsPatch updates the operator-settable configuration fields.
type SettingsPatch struct {
	IsQueueOpen        *bool   `json:"isQueueOpen"`
	MaxQueueNumber     *int    `json:"maxQueueNumber"`
	MinutesPerCustomer *int    `json:"minutesPerCustomer"`
	NextSessionDate    *string `json:"nextSessionDate"`
}

// UpdateSettings applies a settings patch. Counter fields are managed by
// the engine and cannot be patched.
func (e *Engine) UpdateSettings(ctx context.Context, patch SettingsPatch) (*model.Settings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	settings, err := e.store.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if patch.IsQueueOpen != nil {
		settings.IsQueueOpen = *patch.IsQueueOpen
	}
	if patch.MaxQueueNumber != nil {
		if *patch.MaxQueueNumber < 0 {
			return nil, validationf("maxQueueNumber cannot be negative")
		}
		settings.MaxQueueNumber = *patch.MaxQueueNumber
	}
	if patch.MinutesPerCustomer != nil {
		if *patch.MinutesPerCustomer < 1 {
			return nil, validationf("minutesPerCustomer must be at least 1")
		}
		settings.MinutesPerCustomer = *patch.MinutesPerCustomer
	}
	if patch.NextSessionDate != nil {
		settings.NextSessionDate = *patch.NextSessionDate
	}
	if err := e.store.SaveSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}
