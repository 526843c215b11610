// Package covercache persists resolved album covers, one row per album.
// It returns raw rows without interpreting TTLs. Whether a row is still
// valid is the resolution engine's call.
package covercache

import (
	"errors"
	"fmt"
	"time"

	"github.com/jinzhu/gorm"

	"go.senan.xyz/musicboard/db"
)

// StorageError marks any failure that came from the underlying storage.
// Callers treat a read failure as "no cache available" and a write
// failure as best-effort.
type StorageError struct {
	Err error
}

func (e StorageError) Error() string { return fmt.Sprintf("cover cache storage: %v", e.Err) }
func (e StorageError) Unwrap() error { return e.Err }

type CoverCache struct {
	db *db.DB
}

func New(dbc *db.DB) *CoverCache {
	return &CoverCache{db: dbc}
}

// Get returns the cached row for albumID, or nil if there isn't one.
func (c *CoverCache) Get(albumID int) (*db.AlbumCover, error) {
	var cover db.AlbumCover
	err := c.db.First(&cover, "id=?", albumID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, StorageError{fmt.Errorf("find cover: %w", err)}
	}
	return &cover, nil
}

// GetBatch returns the cached rows for the given albums in one round
// trip, keyed by album ID. Albums without a row are simply absent from
// the map. The lookup is chunked to stay under sqlite's bound variable
// limit, but never degrades to per-album queries.
func (c *CoverCache) GetBatch(albumIDs []int) (map[int]db.AlbumCover, error) {
	results := make(map[int]db.AlbumCover, len(albumIDs))
	err := c.db.WithTxChunked(albumIDs, func(tx *gorm.DB, chunk []int) error {
		var covers []db.AlbumCover
		if err := tx.Where("id IN (?)", chunk).Find(&covers).Error; err != nil {
			return fmt.Errorf("find covers: %w", err)
		}
		for _, cover := range covers {
			results[cover.ID] = cover
		}
		return nil
	})
	if err != nil {
		return nil, StorageError{err}
	}
	return results, nil
}

// Upsert inserts or replaces the row for albumID and bumps updated_at.
func (c *CoverCache) Upsert(albumID int, sourceID, coverURL string, source db.CoverSource) error {
	if !source.Valid() {
		return fmt.Errorf("unknown cover source %q", source)
	}
	var cover db.AlbumCover
	cover.ID = albumID
	if err := c.db.FirstOrCreate(&cover, "id=?", albumID).Error; err != nil {
		return StorageError{fmt.Errorf("first or create cover: %w", err)}
	}

	cover.ID = albumID
	cover.SourceID = sourceID
	cover.CoverURL = coverURL
	cover.Source = source
	cover.UpdatedAt = time.Now()

	if err := c.db.Save(&cover).Error; err != nil {
		return StorageError{fmt.Errorf("save cover: %w", err)}
	}
	return nil
}

// Delete removes the row for albumID, reporting whether one existed.
func (c *CoverCache) Delete(albumID int) (bool, error) {
	q := c.db.Where("id=?", albumID).Delete(db.AlbumCover{})
	if err := q.Error; err != nil {
		return false, StorageError{fmt.Errorf("delete cover: %w", err)}
	}
	return q.RowsAffected > 0, nil
}

// DeleteAutomatic removes spotify and lastfm rows, for one album or for
// all of them when albumID is 0. Manual rows are never touched.
func (c *CoverCache) DeleteAutomatic(albumID int) error {
	q := c.db.Where("source<>?", db.CoverSourceManual)
	if albumID != 0 {
		q = q.Where("id=?", albumID)
	}
	if err := q.Delete(db.AlbumCover{}).Error; err != nil {
		return StorageError{fmt.Errorf("delete automatic covers: %w", err)}
	}
	return nil
}
