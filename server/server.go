// Package server exposes the cover engine over JSON HTTP for the
// musicboard frontend.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"

	"go.senan.xyz/musicboard/covers"
	"go.senan.xyz/musicboard/db"
	"go.senan.xyz/musicboard/uploads"
)

const placeholderBase = "https://via.placeholder.com/300x300/1a1a1a/ffffff"

type Controller struct {
	dbc     *db.DB
	engine  *covers.Engine
	uploads *uploads.Manager
}

func New(dbc *db.DB, engine *covers.Engine, uploadManager *uploads.Manager) *Controller {
	return &Controller{dbc: dbc, engine: engine, uploads: uploadManager}
}

func AddRoutes(c *Controller, r *mux.Router, withHTTPLog bool) {
	if withHTTPLog {
		r.Use(Log)
	}
	r.Use(BasicCORS)

	r.HandleFunc("/api/covers", c.ServeGetCovers).Methods(http.MethodGet)
	r.HandleFunc("/api/covers/refresh", c.ServeRefreshCovers).Methods(http.MethodPost)
	r.HandleFunc("/api/covers/{albumID:[0-9]+}", c.ServeUploadCover).Methods(http.MethodPost)
	r.HandleFunc("/api/covers/{albumID:[0-9]+}", c.ServeDeleteCover).Methods(http.MethodDelete)
	r.PathPrefix("/uploads/covers/").HandlerFunc(c.ServeUploadedCover).Methods(http.MethodGet)
}

// ServeGetCovers resolves covers for one or more albums, eg.
// /api/covers?id=1&id=2. Albums that resolve nowhere get a placeholder
// image, the cover engine itself never invents one.
func (c *Controller) ServeGetCovers(w http.ResponseWriter, r *http.Request) {
	var albumIDs []int
	for _, raw := range r.URL.Query()["id"] {
		id, err := strconv.Atoi(raw)
		if err != nil || id < 1 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("bad album id %q", raw))
			return
		}
		albumIDs = append(albumIDs, id)
	}
	if len(albumIDs) == 0 {
		writeError(w, http.StatusBadRequest, "please provide at least one album id")
		return
	}

	albums, err := c.albumsByID(albumIDs)
	if err != nil {
		log.Printf("error finding albums: %v", err)
		writeError(w, http.StatusInternalServerError, "find albums")
		return
	}

	hints := make(map[int]covers.Hint, len(albums))
	for id, album := range albums {
		hints[id] = covers.Hint{
			Artist:      album.Artist,
			AlbumName:   album.Name,
			SpotifyLink: album.SpotifyLink,
		}
	}

	resolved := c.engine.BatchResolve(r.Context(), albumIDs, hints)

	coverURLs := make(map[int]string, len(albumIDs))
	for _, id := range albumIDs {
		if coverURL, ok := resolved[id]; ok {
			coverURLs[id] = coverURL
			continue
		}
		coverURLs[id] = placeholderURL(albums[id].Name)
	}

	writeJSON(w, http.StatusOK, struct {
		Covers map[int]string `json:"covers"`
	}{coverURLs})
}

func (c *Controller) ServeUploadCover(w http.ResponseWriter, r *http.Request) {
	albumID, _ := strconv.Atoi(mux.Vars(r)["albumID"])

	r.Body = http.MaxBytesReader(w, r.Body, uploads.MaxUploadSize+(1<<20))
	file, _, err := r.FormFile("cover")
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file too large, max %s", humanize.IBytes(uploads.MaxUploadSize)))
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "please provide a file in the \"cover\" field")
		return
	}
	defer file.Close()

	coverURL, err := c.engine.UploadCover(albumID, file)
	if errors.Is(err, uploads.ErrValidation) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Printf("error uploading cover for album %d: %v", albumID, err)
		writeError(w, http.StatusInternalServerError, "store cover")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		CoverURL string `json:"coverUrl"`
	}{coverURL})
}

func (c *Controller) ServeDeleteCover(w http.ResponseWriter, r *http.Request) {
	albumID, _ := strconv.Atoi(mux.Vars(r)["albumID"])
	if err := c.engine.DeleteCover(albumID); err != nil {
		log.Printf("error deleting cover for album %d: %v", albumID, err)
		writeError(w, http.StatusInternalServerError, "delete cover")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{true})
}

func (c *Controller) ServeRefreshCovers(w http.ResponseWriter, r *http.Request) {
	var albumID int
	if raw := r.URL.Query().Get("id"); raw != "" {
		var err error
		if albumID, err = strconv.Atoi(raw); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("bad album id %q", raw))
			return
		}
	}
	if err := c.engine.RefreshCache(albumID); err != nil {
		log.Printf("error refreshing cover cache: %v", err)
		writeError(w, http.StatusInternalServerError, "refresh cover cache")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{true})
}

func (c *Controller) ServeUploadedCover(w http.ResponseWriter, r *http.Request) {
	coverURL := strings.TrimPrefix(r.URL.Path, "/")
	path, ok := c.uploads.Path(coverURL)
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func (c *Controller) albumsByID(albumIDs []int) (map[int]db.Album, error) {
	var albums []db.Album
	if err := c.dbc.Where("id IN (?)", albumIDs).Find(&albums).Error; err != nil {
		return nil, fmt.Errorf("find albums: %w", err)
	}
	byID := make(map[int]db.Album, len(albums))
	for _, album := range albums {
		byID[album.ID] = album
	}
	return byID, nil
}

func placeholderURL(albumName string) string {
	if albumName == "" {
		albumName = "No Cover"
	}
	return fmt.Sprintf("%s?text=%s", placeholderBase, url.QueryEscape(albumName))
}

func writeJSON(w http.ResponseWriter, status int, resp interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("error writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{message})
}
