// Package spotify fetches album cover URLs from the public Spotify
// oEmbed endpoint. No API key is needed.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.senan.xyz/musicboard"
)

const (
	BaseURL        = "https://open.spotify.com/oembed"
	requestTimeout = 10 * time.Second
)

var ErrSpotify = errors.New("spotify error")

// albumIDExpr matches the 22 character album ID in a spotify album link,
// eg. https://open.spotify.com/album/1A2b3C4d5E6f7G8h9I0jKl
var albumIDExpr = regexp.MustCompile(`album/([a-zA-Z0-9]{22})`)

// AlbumIDFromURL extracts the album ID from a spotify album link,
// returning "" when the link doesn't contain one.
func AlbumIDFromURL(link string) string {
	m := albumIDExpr.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	return m[1]
}

type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return NewClientCustom(&http.Client{Timeout: requestTimeout})
}

func NewClientCustom(httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient}
}

type oembedResponse struct {
	ThumbnailURL string `json:"thumbnail_url"`
	Title        string `json:"title"`
}

// CoverByAlbumID looks up the cover for the given album ID. The oEmbed
// thumbnail is small, so the returned URL is upgraded to the 640x640
// variant by substitution.
func (c *Client) CoverByAlbumID(ctx context.Context, albumID string) (string, error) {
	params := url.Values{}
	params.Add("url", "spotify:album:"+albumID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, BaseURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.URL.RawQuery = params.Encode()
	req.Header.Set("User-Agent", musicboard.Name+"/"+musicboard.Version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %w", resp.StatusCode, ErrSpotify)
	}

	var oembed oembedResponse
	if err := json.NewDecoder(resp.Body).Decode(&oembed); err != nil {
		return "", fmt.Errorf("decoding: %w", err)
	}
	if oembed.ThumbnailURL == "" {
		return "", fmt.Errorf("no thumbnail in response: %w", ErrSpotify)
	}

	return strings.ReplaceAll(oembed.ThumbnailURL, "cover", "640x640"), nil
}
