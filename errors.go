package taskexport

import (
	"errors"
	"fmt"

	"github.com/alnah/go-taskexport/internal/merge"
	"github.com/alnah/go-taskexport/internal/render"
)

// Sentinel errors for library operations.
var (
	ErrNoItems          = errors.New("no items to export")
	ErrNoOutput         = errors.New("output path cannot be empty")
	ErrInvalidBatchSize = errors.New("invalid batch size")

	// ErrLayoutOverflow means content does not fit the page geometry, such as
	// overview columns wider than the page.
	ErrLayoutOverflow = render.ErrLayoutOverflow
	// ErrMergeFailed means the merge tool ran but failed or produced an
	// unusable document.
	ErrMergeFailed = merge.ErrMergeFailed

	// Page settings validation errors.
	ErrInvalidPageSize    = errors.New("invalid page size")
	ErrInvalidOrientation = errors.New("invalid orientation")
	ErrInvalidMargin      = errors.New("invalid margin")

	// Footer validation errors.
	ErrFooterTooLong = errors.New("footer text too long")
)

// ErrorKind classifies export failures.
type ErrorKind int

const (
	// KindUnclassified covers anything unexpected. Details stay in logs.
	KindUnclassified ErrorKind = iota
	// KindInvalidInput means the request or the items themselves are wrong.
	KindInvalidInput
	// KindLayoutOverflow means content cannot fit the page layout.
	KindLayoutOverflow
	// KindMergeFailure means the merge tool failed.
	KindMergeFailure
	// KindCanceled means the context ended before the export finished.
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindLayoutOverflow:
		return "layout overflow"
	case KindMergeFailure:
		return "merge failure"
	case KindCanceled:
		return "canceled"
	}
	return "unclassified"
}

// ExportError is the only error Export returns. No document exists when it
// is returned.
type ExportError struct {
	Kind  ErrorKind
	State State // state the export was in when it failed
	Err   error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export failed (%s, %s): %v", e.Kind, e.State, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// UserMessage returns text suitable for end users. Unclassified failures get
// a generic message; their detail is only logged.
func (e *ExportError) UserMessage() string {
	switch e.Kind {
	case KindInvalidInput:
		return e.Err.Error()
	case KindLayoutOverflow:
		return fmt.Sprintf("the export does not fit the page layout: %v", e.Err)
	case KindMergeFailure:
		return fmt.Sprintf("export failed: %v", e.Err)
	case KindCanceled:
		return "export canceled"
	}
	return "export failed due to an internal error"
}
