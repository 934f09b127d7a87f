// Package merge concatenates unit documents into the final export.
//
// Merging shells out to an external PDF tool. Intra-document links that
// point across unit boundaries are not preserved by any supported tool.
package merge

//go:generate go tool mockgen -destination=mocks/mock_merger.go -package=mocks github.com/alnah/go-taskexport/internal/merge Merger

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for merge operations.
var (
	ErrMergeFailed = errors.New("merge failed")
	ErrNoInputs    = errors.New("no documents to merge")
	ErrUnknownTool = errors.New("unknown merge tool")
)

// Merger concatenates PDF files in order.
type Merger interface {
	// Available reports whether the merge capability can be used.
	Available(ctx context.Context) bool
	// Merge writes the concatenation of inputs, in order, to output.
	Merge(ctx context.Context, inputs []string, output string) error
}

// Units merges rendered unit files into output and returns the path of the
// final document. A single unit is returned as is and m is never called.
func Units(ctx context.Context, m Merger, inputs []string, output string) (string, error) {
	switch len(inputs) {
	case 0:
		return "", ErrNoInputs
	case 1:
		return inputs[0], nil
	}
	if m == nil {
		return "", fmt.Errorf("%w: no merge tool for %d units", ErrMergeFailed, len(inputs))
	}
	if err := m.Merge(ctx, inputs, output); err != nil {
		if errors.Is(err, ErrMergeFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrMergeFailed, err)
	}
	return output, nil
}
