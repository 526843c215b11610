// Package uploads stores administrator provided cover images in a
// managed directory. It is the only place that knows how cover URLs map
// to paths on disk. Everything else treats those URLs as opaque.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrValidation marks upload rejections the administrator can act on,
// like a bad file type or an oversized file.
var ErrValidation = errors.New("invalid upload")

const MaxUploadSize = 5 * 1024 * 1024

//nolint:gochecknoglobals
var allowedMIMETypes = []string{"image/jpeg", "image/png", "image/webp"}

type Manager struct {
	baseDir   string
	urlPrefix string
}

// New creates a manager over baseDir. Stored files get URLs under
// urlPrefix, eg. "uploads/covers".
func New(baseDir, urlPrefix string) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &Manager{
		baseDir:   baseDir,
		urlPrefix: strings.Trim(urlPrefix, "/"),
	}, nil
}

// Store validates and writes one uploaded image, returning its URL. The
// file is complete and durable on disk before Store returns, so a cache
// row written afterwards never references a missing file. The caller
// removes any file the new one replaces, after its row is updated.
func (m *Manager) Store(albumID int, src io.Reader) (string, error) {
	tmp, err := os.CreateTemp(m.baseDir, ".upload-"+uuid.NewString()+"-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	// read one byte over the limit so we can tell "at the limit" from
	// "over it" without trusting a client provided length
	n, err := io.Copy(tmp, io.LimitReader(src, MaxUploadSize+1))
	if err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if n > MaxUploadSize {
		return "", fmt.Errorf("%w: file too large, max %s", ErrValidation, humanize.IBytes(MaxUploadSize))
	}

	mtype, err := mimetype.DetectFile(tmp.Name())
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}
	if !mimetype.EqualsAny(mtype.String(), allowedMIMETypes...) {
		return "", fmt.Errorf("%w: unsupported format %s, use JPG, PNG or WebP", ErrValidation, mtype)
	}

	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	filename := fmt.Sprintf("album_%d_%d%s", albumID, time.Now().Unix(), mtype.Extension())
	if err := os.Rename(tmp.Name(), filepath.Join(m.baseDir, filename)); err != nil {
		return "", fmt.Errorf("move upload into place: %w", err)
	}

	return path.Join(m.urlPrefix, filename), nil
}

// Owns reports whether coverURL points into the managed directory.
func (m *Manager) Owns(coverURL string) bool {
	return strings.HasPrefix(coverURL, m.urlPrefix+"/")
}

// Remove deletes the file behind a managed cover URL. Removing a URL
// whose file is already gone is not an error.
func (m *Manager) Remove(coverURL string) error {
	if !m.Owns(coverURL) {
		return fmt.Errorf("url %q is not managed here", coverURL)
	}
	filename := filepath.Base(strings.TrimPrefix(coverURL, m.urlPrefix+"/"))
	if err := os.Remove(filepath.Join(m.baseDir, filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

// Path maps a managed cover URL to its location on disk, for serving.
func (m *Manager) Path(coverURL string) (string, bool) {
	if !m.Owns(coverURL) {
		return "", false
	}
	filename := filepath.Base(strings.TrimPrefix(coverURL, m.urlPrefix+"/"))
	return filepath.Join(m.baseDir, filename), true
}
