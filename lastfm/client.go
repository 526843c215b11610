// Package lastfm talks to the last.fm API, as far as album cover
// lookups need it.
package lastfm

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	BaseURL        = "https://ws.audioscrobbler.com/2.0/"
	requestTimeout = 10 * time.Second
)

var (
	ErrLastFM   = errors.New("last.fm error")
	ErrNoAPIKey = errors.New("no last.fm api key present")
)

// APIKeyFunc provides the api key at request time so that key changes
// don't need a new client.
type APIKeyFunc func() (apiKey string, err error)

type Client struct {
	httpClient *http.Client
	apiKey     APIKeyFunc
}

func NewClient(apiKey APIKeyFunc) *Client {
	return NewClientCustom(&http.Client{Timeout: requestTimeout}, apiKey)
}

func NewClientCustom(httpClient *http.Client, apiKey APIKeyFunc) *Client {
	return &Client{httpClient: httpClient, apiKey: apiKey}
}

func (c *Client) AlbumGetInfo(ctx context.Context, artist, albumName string) (Album, error) {
	apiKey, err := c.apiKey()
	if err != nil {
		return Album{}, fmt.Errorf("get api key: %w", err)
	}
	if apiKey == "" {
		return Album{}, ErrNoAPIKey
	}

	params := url.Values{}
	params.Add("method", "album.getinfo")
	params.Add("api_key", apiKey)
	params.Add("artist", artist)
	params.Add("album", albumName)

	resp, err := c.makeRequest(ctx, http.MethodGet, params)
	if err != nil {
		return Album{}, fmt.Errorf("make request: %w", err)
	}
	return resp.Album, nil
}

func (c *Client) makeRequest(ctx context.Context, method string, params url.Values) (LastFM, error) {
	req, _ := http.NewRequestWithContext(ctx, method, BaseURL, nil)
	req.URL.RawQuery = params.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return LastFM{}, fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	var lastfm LastFM
	if err = xml.NewDecoder(resp.Body).Decode(&lastfm); err != nil {
		return LastFM{}, fmt.Errorf("decoding: %w", err)
	}

	if lastfm.Error.Code != 0 {
		return LastFM{}, fmt.Errorf("%v: %w", lastfm.Error.Value, ErrLastFM)
	}
	return lastfm, nil
}
