package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// cachedRecord is one row of the local mirror. Position preserves the
// server-reported ordering across Replace/Fetch round trips.
type cachedRecord struct {
	EntityType string `gorm:"primaryKey;size:64"`
	Position   int    `gorm:"primaryKey;autoIncrement:false"`
	Payload    []byte `gorm:"type:blob"`
}

func (cachedRecord) TableName() string { return "cached_records" }

// SQLiteStore is the on-disk LocalStore backed by a pure-Go sqlite driver,
// so the desktop build needs no cgo toolchain.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the store at path. Use ":memory:" for an
// ephemeral store in tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store %s: %w", path, err)
	}
	if err := db.AutoMigrate(&cachedRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate local store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Fetch returns the records for entityType in stored order.
func (s *SQLiteStore) Fetch(ctx context.Context, entityType string) ([]json.RawMessage, error) {
	var rows []cachedRecord
	err := s.db.WithContext(ctx).
		Where("entity_type = ?", entityType).
		Order("position").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s records: %w", entityType, err)
	}

	records := make([]json.RawMessage, len(rows))
	for i, row := range rows {
		records[i] = json.RawMessage(row.Payload)
	}
	return records, nil
}

// Replace swaps the record set for entityType inside one transaction.
func (s *SQLiteStore) Replace(ctx context.Context, entityType string, records []json.RawMessage) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("entity_type = ?", entityType).Delete(&cachedRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear %s records: %w", entityType, err)
		}
		if len(records) == 0 {
			return nil
		}
		rows := make([]cachedRecord, len(records))
		for i, rec := range records {
			rows[i] = cachedRecord{
				EntityType: entityType,
				Position:   i,
				Payload:    []byte(rec),
			}
		}
		if err := tx.CreateInBatches(rows, 200).Error; err != nil {
			return fmt.Errorf("failed to insert %s records: %w", entityType, err)
		}
		return nil
	})
}

// Count returns the number of stored records for entityType.
func (s *SQLiteStore) Count(ctx context.Context, entityType string) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&cachedRecord{}).
		Where("entity_type = ?", entityType).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count %s records: %w", entityType, err)
	}
	return int(n), nil
}
