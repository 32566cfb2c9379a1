// Package cache is a small DB-backed cache over the cache table, so entries
// survive restarts and show up in the admin dashboard.
package cache

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"portalsalud/internal/models"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get returns the cached value, treating expired rows as misses.
func (s *Store) Get(key string) ([]byte, bool) {
	var e models.CacheEntry
	if err := s.db.First(&e, "key = ?", key).Error; err != nil {
		return nil, false
	}
	if e.Expiration <= time.Now().Unix() {
		return nil, false
	}
	return []byte(e.Value), true
}

// Put upserts the value with the given TTL.
func (s *Store) Put(key string, value []byte, ttl time.Duration) error {
	e := models.CacheEntry{
		Key:        key,
		Value:      string(value),
		Expiration: time.Now().Add(ttl).Unix(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expiration"}),
	}).Create(&e).Error
}

func (s *Store) Forget(key string) error {
	return s.db.Delete(&models.CacheEntry{}, "key = ?", key).Error
}

// Flush drops every entry, expired or not.
func (s *Store) Flush() error {
	return s.db.Exec(`DELETE FROM "cache"`).Error
}
