package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"consult-queue-backend/internal/model"
)

// Store defines the persistence operations the queue engine relies on.
// It carries no ordering or lifecycle logic of its own.
type Store interface {
	DB() *gorm.DB
	Transaction(ctx context.Context, fn func(Store) error) error

	CreateEntry(ctx context.Context, entry *model.QueueEntry) error
	EntryByID(ctx context.Context, id uint) (*model.QueueEntry, error)
	EntriesByNumber(ctx context.Context, number int) ([]model.QueueEntry, error)
	ActiveEntries(ctx context.Context) ([]model.QueueEntry, error)
	AllEntries(ctx context.Context) ([]model.QueueEntry, error)
	ListEntries(ctx context.Context, f ListFilter) ([]model.QueueEntry, int64, error)
	SearchEntries(ctx context.Context, name, phone string) ([]model.QueueEntry, error)
	SaveEntry(ctx context.Context, entry *model.QueueEntry) error
	SavePositions(ctx context.Context, entries []model.QueueEntry) error
	ReplaceEntryData(ctx context.Context, entry *model.QueueEntry) error
	DeleteEntry(ctx context.Context, id uint) error
	PurgeEntries(ctx context.Context) error
	StatusCounts(ctx context.Context) (map[string]int64, error)

	Settings(ctx context.Context) (*model.Settings, error)
	SaveSettings(ctx context.Context, settings *model.Settings) error
	EnsureSettings(ctx context.Context, defaults *model.Settings) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn against a transactional copy of the store. The
// engine uses this to keep multi-row rewrites atomic.
func (s *gormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) CreateEntry(ctx context.Context, entry *model.QueueEntry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

func (s *gormStore) EntryByID(ctx context.Context, id uint) (*model.QueueEntry, error) {
	var entry model.QueueEntry
	err := s.db.WithContext(ctx).
		Preload("Addresses").
		Preload("Dependents").
		Preload("Dependents.Addresses").
		First(&entry, id).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *gormStore) EntriesByNumber(ctx context.Context, number int) ([]model.QueueEntry, error) {
	var entries []model.QueueEntry
	err := s.db.WithContext(ctx).
		Where("number = ?", number).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// ActiveEntries returns all waiting entries ordered by position. This is
// the set the contiguity invariant covers.
func (s *gormStore) ActiveEntries(ctx context.Context) ([]model.QueueEntry, error) {
	var entries []model.QueueEntry
	err := s.db.WithContext(ctx).
		Where("status = ?", model.StatusWaiting).
		Order("position ASC, number ASC").
		Find(&entries).Error
	return entries, err
}

func (s *gormStore) AllEntries(ctx context.Context) ([]model.QueueEntry, error) {
	var entries []model.QueueEntry
	err := s.db.WithContext(ctx).Order("number ASC").Find(&entries).Error
	return entries, err
}

func (s *gormStore) ListEntries(ctx context.Context, f ListFilter) ([]model.QueueEntry, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.QueueEntry{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	page, pageSize := f.normalize()
	var entries []model.QueueEntry
	err := q.
		Preload("Addresses").
		Preload("Dependents").
		Preload("Dependents.Addresses").
		Order("position ASC, number ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error
	return entries, total, err
}

func (s *gormStore) SearchEntries(ctx context.Context, name, phone string) ([]model.QueueEntry, error) {
	q := s.db.WithContext(ctx).Model(&model.QueueEntry{})
	if name != "" {
		q = q.Where("name LIKE ?", "%"+name+"%")
	}
	if phone != "" {
		q = q.Where("phone LIKE ?", "%"+phone+"%")
	}
	var entries []model.QueueEntry
	err := q.Order("number ASC").Find(&entries).Error
	return entries, err
}

func (s *gormStore) SaveEntry(ctx context.Context, entry *model.QueueEntry) error {
	if err := s.db.WithContext(ctx).Save(entry).Error; err != nil {
		return fmt.Errorf("save entry %d: %w", entry.ID, err)
	}
	return nil
}

// SavePositions rewrites the position column for the given entries in one
// transaction. Callers pass the full active set so the write is atomic.
func (s *gormStore) SavePositions(ctx context.Context, entries []model.QueueEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range entries {
			e := &entries[i]
			if err := tx.Model(&model.QueueEntry{}).
				Where("id = ?", e.ID).
				Update("position", e.Position).Error; err != nil {
				return fmt.Errorf("update position for entry %d: %w", e.ID, err)
			}
		}
		return nil
	})
}

// ReplaceEntryData rewrites an entry's registrant fields and replaces its
// address and dependent children wholesale in one transaction.
func (s *gormStore) ReplaceEntryData(ctx context.Context, entry *model.QueueEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old model.QueueEntry
		err := tx.Preload("Addresses").
			Preload("Dependents").
			Preload("Dependents.Addresses").
			First(&old, entry.ID).Error
		if err != nil {
			return fmt.Errorf("load entry %d: %w", entry.ID, err)
		}

		var addressIDs []uint
		for _, a := range old.Addresses {
			addressIDs = append(addressIDs, a.ID)
		}
		var dependentIDs []uint
		for _, d := range old.Dependents {
			dependentIDs = append(dependentIDs, d.ID)
			for _, a := range d.Addresses {
				addressIDs = append(addressIDs, a.ID)
			}
		}
		if len(addressIDs) > 0 {
			if err := tx.Delete(&model.Address{}, addressIDs).Error; err != nil {
				return fmt.Errorf("replace addresses: %w", err)
			}
		}
		if len(dependentIDs) > 0 {
			if err := tx.Delete(&model.Dependent{}, dependentIDs).Error; err != nil {
				return fmt.Errorf("replace dependents: %w", err)
			}
		}

		err = tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(entry).Error
		if err != nil {
			return fmt.Errorf("save entry %d: %w", entry.ID, err)
		}
		return nil
	})
}

// StatusCounts aggregates the live entry count per status.
func (s *gormStore) StatusCounts(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&model.QueueEntry{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (s *gormStore) DeleteEntry(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&model.QueueEntry{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete entry %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// PurgeEntries removes every entry, including soft-deleted ones, together
// with their addresses and dependents.
func (s *gormStore) PurgeEntries(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.Address{}).Error; err != nil {
			return fmt.Errorf("purge addresses: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&model.Dependent{}).Error; err != nil {
			return fmt.Errorf("purge dependents: %w", err)
		}
		if err := tx.Unscoped().Where("1 = 1").Delete(&model.QueueEntry{}).Error; err != nil {
			return fmt.Errorf("purge entries: %w", err)
		}
		return nil
	})
}

func (s *gormStore) Settings(ctx context.Context) (*model.Settings, error) {
	var settings model.Settings
	if err := s.db.WithContext(ctx).First(&settings).Error; err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return &settings, nil
}

func (s *gormStore) SaveSettings(ctx context.Context, settings *model.Settings) error {
	if err := s.db.WithContext(ctx).Save(settings).Error; err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// EnsureSettings creates the settings row with the given defaults if no
// row exists yet.
func (s *gormStore) EnsureSettings(ctx context.Context, defaults *model.Settings) error {
	defaults.ID = 1
	err := s.db.WithContext(ctx).
		Where(model.Settings{ID: 1}).
		FirstOrCreate(defaults).Error
	if err != nil {
		return fmt.Errorf("ensure settings: %w", err)
	}
	return nil
}
