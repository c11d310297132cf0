package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// kvRecord is the row shape of the local key-value table
type kvRecord struct {
	Key       string `gorm:"primaryKey;column:key"`
	Value     string `gorm:"column:value"`
	UpdatedAt time.Time
}

// TableName specifies the table name
func (kvRecord) TableName() string {
	return "local_kv"
}

// SQLiteStore implements Store on an embedded SQLite database. This is the
// durable on-device backend used by the mobile app's companion process.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the database at path and migrates the
// key-value table.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store: sqlite path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: failed to open sqlite database: %w", err)
	}
	if err := db.AutoMigrate(&kvRecord{}); err != nil {
		return nil, fmt.Errorf("store: failed to migrate kv table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStoreWithDB wraps an existing gorm connection (for testing)
func NewSQLiteStoreWithDB(db *gorm.DB) (*SQLiteStore, error) {
	if err := db.AutoMigrate(&kvRecord{}); err != nil {
		return nil, fmt.Errorf("store: failed to migrate kv table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get returns the value for key, or ErrKeyNotFound
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	var record kvRecord
	err := s.db.WithContext(ctx).First(&record, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("store: sqlite get failed: %w", err)
	}
	return record.Value, nil
}

// Set upserts the value for key
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	record := kvRecord{Key: key, Value: value, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("store: sqlite set failed: %w", err)
	}
	return nil
}

// Remove deletes the key
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Delete(&kvRecord{}, "key = ?", key).Error
	if err != nil {
		return fmt.Errorf("store: sqlite remove failed: %w", err)
	}
	return nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
