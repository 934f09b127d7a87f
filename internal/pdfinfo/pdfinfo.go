// Package pdfinfo reads facts back from finished PDF files.
package pdfinfo

import (
	"errors"
	"fmt"
	"os"

	pdflib "github.com/ledongthuc/pdf"
)

// ErrUnreadable means the file could not be parsed as a PDF.
var ErrUnreadable = errors.New("unreadable PDF")

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (n int, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, r)
		}
	}()

	f, err := os.Open(path) // #nosec G304 -- path is a file this process wrote
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	reader, err := pdflib.NewReader(f, info.Size())
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	return reader.NumPage(), nil
}

// TotalPages sums PageCount over paths.
func TotalPages(paths []string) (int, error) {
	total := 0
	for _, p := range paths {
		n, err := PageCount(p)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
