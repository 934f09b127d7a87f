// Package attach loads item attachments for embedding.
//
// Image data is only ever held by a Scope, which lives for one unit render
// and drops every buffer on Release.
package attach

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Sentinel errors for attachment loading.
var (
	ErrNotImage      = errors.New("attachment is not an embeddable image")
	ErrTooLarge      = errors.New("attachment exceeds size limit")
	ErrScopeReleased = errors.New("attachment scope already released")
	ErrOutsideRoot   = errors.New("attachment path escapes store root")
	ErrNoStore       = errors.New("no attachment store configured")
)

// DefaultMaxImageBytes caps a single image loaded into memory.
const DefaultMaxImageBytes = 16 << 20

// Attachment references a file attached to an item.
type Attachment struct {
	Name        string
	ContentType string
	Path        string
}

// imageTypes maps MIME types to layout image types.
var imageTypes = map[string]string{
	"image/png":  "PNG",
	"image/jpeg": "JPG",
	"image/jpg":  "JPG",
	"image/gif":  "GIF",
}

// ImageType returns "PNG", "JPG" or "GIF" for embeddable images and "" for
// anything else. The content type wins over the file extension.
func (a Attachment) ImageType() string {
	ct := a.ContentType
	if ct == "" {
		ct = mime.TypeByExtension(strings.ToLower(filepath.Ext(a.Name)))
	}
	if ct == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	return imageTypes[strings.ToLower(ct)]
}

// Store opens attachment content.
type Store interface {
	Open(ctx context.Context, a Attachment) (io.ReadCloser, error)
}

// FileStore reads attachments from the local file system. Relative paths
// resolve against Root; with a Root set, paths may not leave it.
type FileStore struct {
	Root string
}

// Compile-time interface check.
var _ Store = FileStore{}

func (s FileStore) Open(ctx context.Context, a Attachment) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(a.Path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path) // #nosec G304 -- confined to Root when set
	if err != nil {
		return nil, fmt.Errorf("opening attachment %s: %w", a.Name, err)
	}
	return f, nil
}

func (s FileStore) resolve(p string) (string, error) {
	if s.Root == "" {
		return p, nil
	}
	full := p
	if !filepath.IsAbs(p) {
		full = filepath.Join(s.Root, p)
	}
	rel, err := filepath.Rel(s.Root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return full, nil
}

// Scope holds the image buffers of one unit render.
type Scope struct {
	store    Store
	maxBytes int64

	mu       sync.Mutex
	buffers  [][]byte
	held     int64
	released bool
}

// NewScope creates a scope reading from store. maxBytes <= 0 means
// DefaultMaxImageBytes per image.
func NewScope(store Store, maxBytes int64) *Scope {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &Scope{store: store, maxBytes: maxBytes}
}

// LoadImage reads an image attachment into a buffer owned by the scope.
// The returned slice must not be used after Release.
func (s *Scope) LoadImage(ctx context.Context, a Attachment) ([]byte, error) {
	if a.ImageType() == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, a.Name)
	}
	if s.store == nil {
		return nil, ErrNoStore
	}
	if s.isReleased() {
		return nil, ErrScopeReleased
	}

	rc, err := s.store.Open(ctx, a)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading attachment %s: %w", a.Name, err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: %s (max %d bytes)", ErrTooLarge, a.Name, s.maxBytes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, ErrScopeReleased
	}
	s.buffers = append(s.buffers, data)
	s.held += int64(len(data))
	return data, nil
}

func (s *Scope) isReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Held reports how many buffers and bytes the scope currently owns.
func (s *Scope) Held() (buffers int, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffers), s.held
}

// Release drops every buffer. Safe to call more than once.
func (s *Scope) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.buffers {
		s.buffers[i] = nil
	}
	s.buffers = nil
	s.held = 0
	s.released = true
}
