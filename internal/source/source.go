// Package source loads work items for the CLI.
//
// Items come from YAML or JSON files or from a SQLite database. Every source
// returns items in the order they should be exported; parent links are
// resolved later by the hierarchy indexer.
package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alnah/go-taskexport/internal/render"
)

// Sentinel errors for item sources.
var (
	ErrUnsupported  = errors.New("unsupported item source")
	ErrInvalidItems = errors.New("invalid item data")
)

// Source yields the items of one export.
type Source interface {
	Items(ctx context.Context) ([]render.Item, error)
	Close() error
}

var (
	fileExtensions   = []string{".json", ".yaml", ".yml"}
	sqliteExtensions = []string{".db", ".sqlite", ".sqlite3"}
)

// Extensions lists the file extensions Open accepts.
func Extensions() []string {
	return slices.Concat(fileExtensions, sqliteExtensions)
}

// Open picks a source by file extension.
func Open(path string) (Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case slices.Contains(fileExtensions, ext):
		return NewFile(path), nil
	case slices.Contains(sqliteExtensions, ext):
		return OpenSQLite(path)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, path)
}
