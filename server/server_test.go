package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"go.senan.xyz/musicboard/covercache"
	"go.senan.xyz/musicboard/covers"
	"go.senan.xyz/musicboard/db"
	"go.senan.xyz/musicboard/lastfm"
	"go.senan.xyz/musicboard/lastfm/mockclient"
	"go.senan.xyz/musicboard/server"
	"go.senan.xyz/musicboard/spotify"
	"go.senan.xyz/musicboard/uploads"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func newServer(t *testing.T) *mux.Router {
	t.Helper()

	testDB, err := db.NewMock()
	require.NoError(t, err)
	require.NoError(t, testDB.Migrate(db.MigrationContext{}))

	require.NoError(t, testDB.Save(&db.Album{
		ID:          1,
		Artist:      "Artist 1",
		Name:        "Album 1",
		SpotifyLink: "https://open.spotify.com/album/1A2b3C4d5E6f7G8h9I0jKl",
	}).Error)
	require.NoError(t, testDB.Save(&db.Album{
		ID:     2,
		Artist: "Artist 2",
		Name:   "Album 2",
	}).Error)

	spotifyClient := spotify.NewClientCustom(mockclient.New(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"thumbnail_url": "https://i.scdn.co/image/coverabc"}`))
	}))
	lastfmClient := lastfm.NewClientCustom(
		mockclient.New(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write(mockclient.AlbumGetInfoResponse)
		}),
		func() (string, error) { return "apiKey1", nil },
	)

	manager, err := uploads.New(t.TempDir(), "uploads/covers")
	require.NoError(t, err)
	engine := covers.NewEngine(covercache.New(testDB), spotifyClient, lastfmClient, manager)

	r := mux.NewRouter()
	server.AddRoutes(server.New(testDB, engine, manager), r, false)
	return r
}

func TestServeGetCovers(t *testing.T) {
	t.Parallel()

	handler := newServer(t)

	// album 1 resolves via spotify, album 2 via last.fm, album 3
	// doesn't exist and gets a placeholder
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/covers?id=1&id=2&id=3", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Covers map[int]string `json:"covers"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "https://i.scdn.co/image/640x640abc", resp.Covers[1])
	require.Equal(t, "https://last.fm/album-1-extralarge.png", resp.Covers[2])
	require.Contains(t, resp.Covers[3], "via.placeholder.com")
}

func TestServeGetCoversBadRequest(t *testing.T) {
	t.Parallel()

	handler := newServer(t)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/covers", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/covers?id=banana", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func multipartBody(t *testing.T, field string, contents []byte) (io.Reader, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, "cover.png")
	require.NoError(t, err)
	_, err = part.Write(contents)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestUploadServeDeleteCover(t *testing.T) {
	t.Parallel()

	handler := newServer(t)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	body, contentType := multipartBody(t, "cover", png)
	req := httptest.NewRequest(http.MethodPost, "/api/covers/1", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		CoverURL string `json:"coverUrl"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.CoverURL)

	// the uploaded file is served back
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/"+resp.CoverURL, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, png, rr.Body.Bytes())

	// and resolution now prefers it over any source
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/covers?id=1", nil))
	var resolved struct {
		Covers map[int]string `json:"covers"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resolved))
	require.Equal(t, resp.CoverURL, resolved.Covers[1])

	// delete removes row and file
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/covers/1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/"+resp.CoverURL, nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUploadCoverRejected(t *testing.T) {
	t.Parallel()

	handler := newServer(t)

	body, contentType := multipartBody(t, "cover", []byte("GIF89a\x01\x00\x01\x00"))
	req := httptest.NewRequest(http.MethodPost, "/api/covers/1", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Contains(t, resp.Error, "unsupported format")
}

func TestUploadCoverTooLargeForBody(t *testing.T) {
	t.Parallel()

	handler := newServer(t)

	// big enough to trip the request body cap before the upload manager
	// ever sees the file. the reason must still mention the size
	big := bytes.Repeat([]byte{0}, uploads.MaxUploadSize+2*(1<<20))
	body, contentType := multipartBody(t, "cover", big)
	req := httptest.NewRequest(http.MethodPost, "/api/covers/1", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Contains(t, resp.Error, "file too large")
}

func TestRefreshCovers(t *testing.T) {
	t.Parallel()

	handler := newServer(t)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/covers/refresh", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/covers/refresh?id=1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/covers/refresh?id=banana", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
