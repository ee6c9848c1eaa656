// Package sqlite implements storage.KV on a single-file SQLite database
// through GORM, so session data survives client restarts.
package sqlite

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/luciancaetano/arenanet/internal/storage"
)

// entry is one persisted key.
type entry struct {
	Name      string `gorm:"column:name;primaryKey;size:128"`
	Value     string `gorm:"column:value;not null"`
	UpdatedAt time.Time
}

func (entry) TableName() string {
	return "client_kv"
}

// Store is a SQLite-backed storage.KV.
type Store struct {
	mu     sync.RWMutex
	db     *gorm.DB
	closed bool
}

var _ storage.KV = (*Store)(nil)

// Open opens (creating if needed) the database at path and migrates the
// schema. Use ":memory:" for a throwaway database.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn(path)), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	if err := db.AutoMigrate(&entry{}); err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("migrate sqlite %q: %w", path, err)
	}

	log.Info().Str("path", path).Msg("Using local SQLite store")
	return &Store{db: db}, nil
}

func dsn(path string) string {
	if path == ":memory:" || strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", false, storage.ErrClosed
	}

	var e entry
	res := s.db.WithContext(ctx).Where("name = ?", key).Limit(1).Find(&e)
	if res.Error != nil {
		return "", false, fmt.Errorf("get %q: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return "", false, nil
	}
	return e.Value, true, nil
}

// Set upserts value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return storage.ErrClosed
	}

	e := entry{Name: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return storage.ErrClosed
	}

	if err := s.db.WithContext(ctx).Where("name = ?", key).Delete(&entry{}).Error; err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
