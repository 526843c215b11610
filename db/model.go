//nolint:lll // struct tags get very long and can't be split
package db

import (
	"time"
)

type SettingKey string

const (
	LastFMAPIKey SettingKey = "lastfm_api_key"
)

// CoverSource is the provenance of a cached album cover. Manual covers
// never expire and always win over automatic ones.
type CoverSource string

const (
	CoverSourceManual  CoverSource = "manual"
	CoverSourceSpotify CoverSource = "spotify"
	CoverSourceLastFM  CoverSource = "lastfm"
)

func (s CoverSource) Valid() bool {
	switch s {
	case CoverSourceManual, CoverSourceSpotify, CoverSourceLastFM:
		return true
	}
	return false
}

type Setting struct {
	Key   SettingKey `gorm:"not null; primary_key; auto_increment:false" sql:"default: null"`
	Value string     `sql:"default: null"`
}

// Album holds the metadata that cover resolution hints are built from.
type Album struct {
	ID          int `gorm:"primary_key"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Artist      string `gorm:"not null; index" sql:"default: null"`
	Name        string `gorm:"not null" sql:"default: null"`
	SpotifyLink string `sql:"default: null"`
}

// AlbumCover is the resolved cover for one album. The ID matches the
// album's ID, so there is at most one row per album and upserts are
// keyed by album identity.
type AlbumCover struct {
	ID        int `gorm:"primary_key"`
	CreatedAt time.Time
	UpdatedAt time.Time
	SourceID  string      `sql:"default: null"`
	CoverURL  string      `gorm:"not null" sql:"default: null"`
	Source    CoverSource `gorm:"not null; index" sql:"default: null"`
}
