package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DarkPhilosophy/snapify/pkg/db/models"
)

// SQLiteStore implements ItemStore using SQLite
type SQLiteStore struct {
	db   *gorm.DB
	path string
}

// DB returns the underlying GORM database instance
func (s *SQLiteStore) DB() *gorm.DB {
	return s.db
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path         string
	MaxOpenConns int
	LogLevel     logger.LogLevel
}

// NewSQLiteStore creates a new SQLite-backed item store
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	// Default to silent logging
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	return &SQLiteStore{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Connect initializes the database connection
func (s *SQLiteStore) Connect(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(1) // SQLite only supports 1 writer
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&models.MediaItem{},
	)
}

// Health checks database connectivity
func (s *SQLiteStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Item operations

// InsertItem inserts the item, ignoring the write when the path is already
// tracked. Rediscovery of an existing path must never reset its kept flag or
// deadline, so conflicts resolve to DO NOTHING rather than replace.
func (s *SQLiteStore) InsertItem(ctx context.Context, item *models.MediaItem) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "file_path"}},
			DoNothing: true,
		}).
		Create(item)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, id uint) (*models.MediaItem, error) {
	var item models.MediaItem
	err := s.db.WithContext(ctx).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *SQLiteStore) GetItemByPath(ctx context.Context, path string) (*models.MediaItem, error) {
	var item models.MediaItem
	err := s.db.WithContext(ctx).Where("file_path = ?", path).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *SQLiteStore) UpdateItem(ctx context.Context, item *models.MediaItem) error {
	return s.db.WithContext(ctx).Save(item).Error
}

// MarkItem sets the deadline on a non-kept item. The kept check happens in
// the same statement so a concurrent Keep cannot be overwritten.
func (s *SQLiteStore) MarkItem(ctx context.Context, id uint, deadline time.Time, workID string) error {
	result := s.db.WithContext(ctx).
		Model(&models.MediaItem{}).
		Where("id = ? AND is_kept = ?", id, false).
		Updates(map[string]any{
			"deletion_at":      deadline.UTC(),
			"deletion_work_id": workID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) KeepItem(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).
		Model(&models.MediaItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_kept":          true,
			"deletion_at":      nil,
			"deletion_work_id": "",
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) UnkeepItem(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).
		Model(&models.MediaItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_kept":          false,
			"deletion_at":      nil,
			"deletion_work_id": "",
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItem removes the row and reports whether it was present. Concurrent
// retirements race on this; exactly one caller observes removed == true.
func (s *SQLiteStore) DeleteItem(ctx context.Context, id uint) (bool, error) {
	result := s.db.WithContext(ctx).Delete(&models.MediaItem{}, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *SQLiteStore) ListExpired(ctx context.Context, now time.Time) ([]models.MediaItem, error) {
	var items []models.MediaItem
	err := s.db.WithContext(ctx).
		Where("deletion_at IS NOT NULL AND deletion_at <= ? AND is_kept = ?", now, false).
		Find(&items).Error
	return items, err
}

func (s *SQLiteStore) ListMarked(ctx context.Context) ([]models.MediaItem, error) {
	var items []models.MediaItem
	err := s.db.WithContext(ctx).
		Where("deletion_at IS NOT NULL AND is_kept = ?", false).
		Find(&items).Error
	return items, err
}

func (s *SQLiteStore) ListItems(ctx context.Context) ([]models.MediaItem, error) {
	var items []models.MediaItem
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&items).Error
	return items, err
}

func (s *SQLiteStore) CountByPath(ctx context.Context, path string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.MediaItem{}).
		Where("file_path = ?", path).
		Count(&count).Error
	return count, err
}
