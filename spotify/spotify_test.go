package spotify_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"go.senan.xyz/musicboard/lastfm/mockclient"
	"go.senan.xyz/musicboard/spotify"
)

func TestAlbumIDFromURL(t *testing.T) {
	t.Parallel()

	tcases := []struct {
		link string
		want string
	}{
		{"https://open.spotify.com/album/1A2b3C4d5E6f7G8h9I0jKl", "1A2b3C4d5E6f7G8h9I0jKl"},
		{"https://open.spotify.com/album/1A2b3C4d5E6f7G8h9I0jKl?si=abc123", "1A2b3C4d5E6f7G8h9I0jKl"},
		{"https://open.spotify.com/intl-de/album/1A2b3C4d5E6f7G8h9I0jKl", "1A2b3C4d5E6f7G8h9I0jKl"},
		{"https://open.spotify.com/track/1A2b3C4d5E6f7G8h9I0jKl", ""},
		{"https://open.spotify.com/album/tooshort", ""},
		{"not a url", ""},
		{"", ""},
	}
	for _, tc := range tcases {
		require.Equal(t, tc.want, spotify.AlbumIDFromURL(tc.link), tc.link)
	}
}

func TestCoverByAlbumID(t *testing.T) {
	t.Parallel()

	client := spotify.NewClientCustom(
		mockclient.New(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method)
			require.Equal(t, "/oembed", r.URL.Path)
			require.Equal(t, url.Values{"url": []string{"spotify:album:1A2b3C4d5E6f7G8h9I0jKl"}}, r.URL.Query())

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"thumbnail_url": "https://i.scdn.co/image/ab67616d0000cover1234", "title": "Album 1"}`))
		}),
	)

	coverURL, err := client.CoverByAlbumID(context.Background(), "1A2b3C4d5E6f7G8h9I0jKl")
	require.NoError(t, err)
	require.Equal(t, "https://i.scdn.co/image/ab67616d0000640x6401234", coverURL)
}

func TestCoverByAlbumIDUpgradesEveryOccurrence(t *testing.T) {
	t.Parallel()

	client := spotify.NewClientCustom(
		mockclient.New(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"thumbnail_url": "https://i.scdn.co/cover/ab67616d0000cover1234"}`))
		}),
	)

	coverURL, err := client.CoverByAlbumID(context.Background(), "1A2b3C4d5E6f7G8h9I0jKl")
	require.NoError(t, err)
	require.Equal(t, "https://i.scdn.co/640x640/ab67616d0000640x6401234", coverURL)
}

func TestCoverByAlbumIDBadStatus(t *testing.T) {
	t.Parallel()

	client := spotify.NewClientCustom(
		mockclient.New(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}),
	)

	_, err := client.CoverByAlbumID(context.Background(), "1A2b3C4d5E6f7G8h9I0jKl")
	require.ErrorIs(t, err, spotify.ErrSpotify)
}

func TestCoverByAlbumIDNoThumbnail(t *testing.T) {
	t.Parallel()

	client := spotify.NewClientCustom(
		mockclient.New(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"title": "Album 1"}`))
		}),
	)

	_, err := client.CoverByAlbumID(context.Background(), "1A2b3C4d5E6f7G8h9I0jKl")
	require.ErrorIs(t, err, spotify.ErrSpotify)
}
