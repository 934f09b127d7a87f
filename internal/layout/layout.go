// Package layout is the page layout collaborator used by unit rendering.
//
// A Document accepts structured content (headings, text, tables, images) and
// calls a footer callback for every page it closes. Each NewDocument call
// starts from a clean page state: page numbers, fonts, links and registered
// images never carry over between documents.
package layout

import (
	"errors"
)

// Sentinel errors for layout operations.
var (
	// ErrOverflow means content cannot fit the page geometry, e.g. a table
	// whose minimum column widths exceed the printable width.
	ErrOverflow      = errors.New("content does not fit the page layout")
	ErrImage         = errors.New("image cannot be embedded")
	ErrDocumentDone  = errors.New("document already finished")
	ErrInvalidTarget = errors.New("invalid link target")
)

// FooterFunc returns the footer text for a page, numbered from 1 within the
// document being laid out.
type FooterFunc func(page int) string

// Page describes page geometry. Size is "letter", "a4" or "legal";
// Orientation is "portrait" or "landscape"; Margin is in inches.
type Page struct {
	Size        string
	Orientation string
	Margin      float64
}

// Settings configures a new document.
type Settings struct {
	Page    Page
	Title   string
	Creator string
	Footer  FooterFunc // nil = no footer
}

// Anchor is an in-document link target. The zero value means "no link".
type Anchor int

// RGB is a text color.
type RGB struct {
	R, G, B uint8
}

// Span is a run of text sharing one style.
type Span struct {
	Text   string
	Bold   bool
	Italic bool
	Mono   bool
	Color  *RGB   // nil = default text color
	URL    string // external link
}

// Column is one table column. MinWidth is in millimetres; spare width is
// shared between columns by Weight.
type Column struct {
	Title    string
	MinWidth float64
	Weight   float64
}

// Row is one table row. Indent shifts the first cell right by nesting steps.
type Row struct {
	Cells  []string
	Indent int
	Link   Anchor
}

// Table is a single-line-per-row table with a header repeated on every page.
type Table struct {
	Columns []Column
	Rows    []Row
}

// Image is an embeddable raster image. Type is "PNG", "JPG" or "GIF".
type Image struct {
	Name    string
	Type    string
	Data    []byte
	Caption string
}

// Document receives content for one finished output document.
type Document interface {
	// Heading starts a section. level 0 is the top level. A non-zero target
	// is pointed at the heading position. Headings also become outline
	// bookmarks.
	Heading(level int, text string, target Anchor)
	// Text writes a wrapped paragraph indented by nesting steps.
	Text(spans []Span, indent int)
	// Code writes preformatted lines in a monospace font.
	Code(lines [][]Span)
	// Rule draws a horizontal separator.
	Rule()
	// Table writes a table. Returns ErrOverflow if the columns cannot fit.
	Table(t Table) error
	// Image embeds an image scaled into the printable area.
	Image(img Image) error
	// NewAnchor reserves a link target for a later Heading.
	NewAnchor() Anchor
	// PageCount returns the number of pages laid out so far.
	PageCount() int
	// WriteFile finishes the document and writes it to path.
	WriteFile(path string) error
	// Discard finishes the document without producing output.
	Discard() error
}

// Engine creates documents.
type Engine interface {
	NewDocument(s Settings) (Document, error)
}
