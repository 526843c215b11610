// Package covers decides which image URL to show for an album. Covers
// come from an administrator upload, from Spotify's oEmbed endpoint, or
// from last.fm, in that order of trust. Automatic results are cached in
// the cover store for thirty days; manual uploads never expire.
package covers

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"go.senan.xyz/musicboard/db"
	"go.senan.xyz/musicboard/lastfm"
	"go.senan.xyz/musicboard/spotify"
)

const keepFor = 30 * time.Hour * 24

// Hint carries the album metadata the automatic sources need. Any field
// may be empty; a source that is missing its inputs is skipped.
type Hint struct {
	Artist      string
	AlbumName   string
	SpotifyLink string
}

// Store persists resolved covers. Rows come back raw; TTL interpretation
// happens here in the engine, so that "valid" means one thing only.
type Store interface {
	Get(albumID int) (*db.AlbumCover, error)
	GetBatch(albumIDs []int) (map[int]db.AlbumCover, error)
	Upsert(albumID int, sourceID, coverURL string, source db.CoverSource) error
	Delete(albumID int) (bool, error)
	DeleteAutomatic(albumID int) error
}

// Overrides stores administrator uploaded images and owns the mapping
// from managed cover URLs to files on disk.
type Overrides interface {
	Store(albumID int, src io.Reader) (string, error)
	Owns(coverURL string) bool
	Remove(coverURL string) error
}

type Engine struct {
	store     Store
	spotify   *spotify.Client
	lastfm    *lastfm.Client
	overrides Overrides
	group     singleflight.Group
}

func NewEngine(store Store, spotifyClient *spotify.Client, lastfmClient *lastfm.Client, overrides Overrides) *Engine {
	return &Engine{
		store:     store,
		spotify:   spotifyClient,
		lastfm:    lastfmClient,
		overrides: overrides,
	}
}

// Resolve returns the cover URL for one album, or "" when no source has
// one. Source and storage failures are logged and absorbed. A freshly
// fetched URL is returned even when caching it fails.
func (e *Engine) Resolve(ctx context.Context, albumID int, hint Hint) string {
	persist := true
	entry, err := e.store.Get(albumID)
	if err != nil {
		// no cache available. resolve live, and don't write back blind,
		// since we couldn't see whether a manual row is there
		log.Printf("error reading cover cache for album %d: %v", albumID, err)
		entry, persist = nil, false
	}
	if coverURL, ok := validCover(entry); ok {
		return coverURL
	}
	return e.resolveLive(ctx, albumID, hint, persist)
}

// BatchResolve returns cover URLs for many albums with a single cache
// round trip. Albums that fail all sources are omitted from the map, and
// one source failing for one album never blocks the others.
func (e *Engine) BatchResolve(ctx context.Context, albumIDs []int, hints map[int]Hint) map[int]string {
	persist := true
	cached, err := e.store.GetBatch(albumIDs)
	if err != nil {
		log.Printf("error reading cover cache, resolving %d albums live: %v", len(albumIDs), err)
		cached, persist = nil, false
	}

	results := make(map[int]string, len(albumIDs))
	for _, albumID := range albumIDs {
		if entry, ok := cached[albumID]; ok {
			if coverURL, valid := validCover(&entry); valid {
				results[albumID] = coverURL
				continue
			}
		}
		if coverURL := e.resolveLive(ctx, albumID, hints[albumID], persist); coverURL != "" {
			results[albumID] = coverURL
		}
	}
	return results
}

// UploadCover validates and stores an administrator provided image and
// registers it as the album's permanent cover. A previously uploaded
// file is deleted only after the new file is durable and the row points
// at it.
func (e *Engine) UploadCover(albumID int, src io.Reader) (string, error) {
	prev, err := e.store.Get(albumID)
	if err != nil {
		log.Printf("error reading cover cache for album %d: %v", albumID, err)
		prev = nil
	}

	coverURL, err := e.overrides.Store(albumID, src)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}

	if err := e.store.Upsert(albumID, "", coverURL, db.CoverSourceManual); err != nil {
		// the row must never reference a file that isn't there, and the
		// other way around
		if rerr := e.overrides.Remove(coverURL); rerr != nil {
			log.Printf("error removing orphaned upload %q: %v", coverURL, rerr)
		}
		return "", fmt.Errorf("save manual cover: %w", err)
	}

	if prev != nil && prev.Source == db.CoverSourceManual && prev.CoverURL != coverURL && e.overrides.Owns(prev.CoverURL) {
		if err := e.overrides.Remove(prev.CoverURL); err != nil {
			log.Printf("error removing replaced upload %q: %v", prev.CoverURL, err)
		}
	}
	return coverURL, nil
}

// DeleteCover removes the album's cover row. Manual covers backed by a
// managed file lose the file too. Automatic covers never touch the
// filesystem.
func (e *Engine) DeleteCover(albumID int) error {
	entry, err := e.store.Get(albumID)
	if err != nil {
		return fmt.Errorf("find cover: %w", err)
	}
	if entry == nil {
		return nil
	}
	if entry.Source == db.CoverSourceManual && e.overrides.Owns(entry.CoverURL) {
		if err := e.overrides.Remove(entry.CoverURL); err != nil {
			return fmt.Errorf("remove cover file: %w", err)
		}
	}
	if _, err := e.store.Delete(albumID); err != nil {
		return fmt.Errorf("delete cover row: %w", err)
	}
	return nil
}

// RefreshCache drops automatic entries so the next resolution hits the
// sources again, for one album or for all when albumID is 0. Manual
// covers stay.
func (e *Engine) RefreshCache(albumID int) error {
	if err := e.store.DeleteAutomatic(albumID); err != nil {
		return fmt.Errorf("delete automatic covers: %w", err)
	}
	return nil
}

// validCover reports whether a cached row may be served as is. Manual
// covers always may. Automatic ones only within the TTL; expired rows
// are treated as absent, not purged.
func validCover(entry *db.AlbumCover) (string, bool) {
	if entry == nil {
		return "", false
	}
	switch entry.Source {
	case db.CoverSourceManual:
		return entry.CoverURL, true
	case db.CoverSourceSpotify, db.CoverSourceLastFM:
		if time.Since(entry.UpdatedAt) < keepFor {
			return entry.CoverURL, true
		}
		return "", false
	default:
		return "", false
	}
}

// resolveLive runs the spotify then last.fm cascade. Concurrent calls
// for the same album collapse into one set of source requests.
func (e *Engine) resolveLive(ctx context.Context, albumID int, hint Hint, persist bool) string {
	coverURL, _, _ := e.group.Do(strconv.Itoa(albumID), func() (interface{}, error) {
		return e.lookup(ctx, albumID, hint, persist), nil
	})
	s, _ := coverURL.(string)
	return s
}

func (e *Engine) lookup(ctx context.Context, albumID int, hint Hint, persist bool) string {
	if spotifyID := spotify.AlbumIDFromURL(hint.SpotifyLink); spotifyID != "" {
		coverURL, err := e.spotify.CoverByAlbumID(ctx, spotifyID)
		if err != nil {
			log.Printf("error fetching spotify cover for album %d: %v", albumID, err)
		} else if coverURL != "" {
			e.persist(albumID, spotifyID, coverURL, db.CoverSourceSpotify, persist)
			return coverURL
		}
	}

	if hint.Artist != "" && hint.AlbumName != "" {
		info, err := e.lastfm.AlbumGetInfo(ctx, hint.Artist, hint.AlbumName)
		if err != nil {
			log.Printf("error fetching last.fm cover for album %d: %v", albumID, err)
		} else if coverURL := info.BestImage(); coverURL != "" {
			e.persist(albumID, "", coverURL, db.CoverSourceLastFM, persist)
			return coverURL
		}
	}

	return ""
}

func (e *Engine) persist(albumID int, sourceID, coverURL string, source db.CoverSource, persist bool) {
	if !persist {
		return
	}
	if err := e.store.Upsert(albumID, sourceID, coverURL, source); err != nil {
		log.Printf("error caching %s cover for album %d: %v", source, albumID, err)
	}
}
