/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package cache implements the three cache tiers of the card service:
// durable profile data, durable rendered screenshots (both in SQLite) and
// disk-backed avatar/banner assets.
//
// The tiers never judge freshness themselves: Get returns the stored timestamp
// and the caller compares it against the tier's TTL. Pruning is done by the
// periodic sweeps wired in the application.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/acronis/go-appkit/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type profileRecord struct {
	Handle   string `gorm:"primaryKey"`
	Payload  []byte
	CachedAt int64 // epoch millis
}

func (profileRecord) TableName() string { return "profile_cache" }

type screenshotRecord struct {
	Key      string `gorm:"primaryKey"`
	Image    []byte
	CachedAt int64 // epoch millis
}

func (screenshotRecord) TableName() string { return "screenshot_cache" }

// Entry is a cached value together with the moment it was stored.
type Entry struct {
	Value    []byte
	CachedAt time.Time
}

// Store provides the two durable cache tiers over a single SQLite database.
// Each call is independently atomic; racing writers for the same key both
// upsert and the last write wins.
type Store struct {
	db     *gorm.DB
	logger log.FieldLogger
}

// OpenStore opens (creating if needed) the SQLite database and migrates both tiers.
func OpenStore(dbPath string, logger log.FieldLogger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	if err = db.AutoMigrate(&profileRecord{}, &screenshotRecord{}); err != nil {
		return nil, fmt.Errorf("migrate cache database: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NormalizeHandle lower-cases a handle; cache keys are case-insensitive.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// ScreenshotKey builds the composite key of the screenshot tier.
func ScreenshotKey(handle string, width, height, scale int, theme string) string {
	return fmt.Sprintf("%s|%dx%d@%d|%s", NormalizeHandle(handle), width, height, scale, strings.ToLower(theme))
}

// GetProfile returns the cached profile payload for the handle, or nil on miss.
func (s *Store) GetProfile(ctx context.Context, handle string) (*Entry, error) {
	var rec profileRecord
	err := s.db.WithContext(ctx).First(&rec, "handle = ?", NormalizeHandle(handle)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %q: %w", handle, err)
	}
	return &Entry{Value: rec.Payload, CachedAt: time.UnixMilli(rec.CachedAt)}, nil
}

// HasProfile reports whether the handle has a profile-cache entry of any age.
func (s *Store) HasProfile(ctx context.Context, handle string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&profileRecord{}).
		Where("handle = ?", NormalizeHandle(handle)).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("probe profile %q: %w", handle, err)
	}
	return count > 0, nil
}

// SetProfile upserts the profile payload for the handle.
func (s *Store) SetProfile(ctx context.Context, handle string, payload []byte) error {
	rec := profileRecord{Handle: NormalizeHandle(handle), Payload: payload, CachedAt: time.Now().UnixMilli()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("set profile %q: %w", handle, err)
	}
	return nil
}

// PruneProfilesOlderThan removes profile entries older than ttl and returns the removed count.
func (s *Store) PruneProfilesOlderThan(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl).UnixMilli()
	res := s.db.WithContext(ctx).Where("cached_at < ?", cutoff).Delete(&profileRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune profiles: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// GetScreenshot returns the cached image for the composite key, or nil on miss.
func (s *Store) GetScreenshot(ctx context.Context, key string) (*Entry, error) {
	var rec screenshotRecord
	err := s.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get screenshot %q: %w", key, err)
	}
	return &Entry{Value: rec.Image, CachedAt: time.UnixMilli(rec.CachedAt)}, nil
}

// SetScreenshot upserts the image for the composite key.
func (s *Store) SetScreenshot(ctx context.Context, key string, image []byte) error {
	rec := screenshotRecord{Key: key, Image: image, CachedAt: time.Now().UnixMilli()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("set screenshot %q: %w", key, err)
	}
	return nil
}

// PruneScreenshotsOlderThan removes screenshot entries older than ttl and returns the removed count.
func (s *Store) PruneScreenshotsOlderThan(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl).UnixMilli()
	res := s.db.WithContext(ctx).Where("cached_at < ?", cutoff).Delete(&screenshotRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune screenshots: %w", res.Error)
	}
	return res.RowsAffected, nil
}
