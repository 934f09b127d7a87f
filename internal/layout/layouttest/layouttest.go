// Package layouttest provides an in-memory layout engine for tests.
//
// Documents do not lay anything out. Every call consumes a fixed number of
// lines and pages break every LinesPerPage lines, so page counts are
// predictable from the content alone.
package layouttest

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/alnah/go-taskexport/internal/layout"
)

// Defaults for a zero Engine.
const (
	DefaultLinesPerPage = 40
	DefaultWidth        = 190.0
)

// Line costs per content kind.
const (
	HeadingLines = 2
	TextLines    = 1
	RuleLines    = 1
	ImageLines   = 10
)

// Engine creates Documents and keeps every one of them for inspection.
type Engine struct {
	LinesPerPage int
	Width        float64 // printable width in mm for table fitting
	// OverflowText makes Table fail with layout.ErrOverflow when any cell
	// equals it.
	OverflowText string
	// FailImages makes Image fail with layout.ErrImage.
	FailImages bool

	mu   sync.Mutex
	docs []*Document
}

// Compile-time interface checks.
var (
	_ layout.Engine   = (*Engine)(nil)
	_ layout.Document = (*Document)(nil)
)

func (e *Engine) NewDocument(s layout.Settings) (layout.Document, error) {
	lpp := e.LinesPerPage
	if lpp <= 0 {
		lpp = DefaultLinesPerPage
	}
	width := e.Width
	if width <= 0 {
		width = DefaultWidth
	}
	d := &Document{
		Settings:     s,
		linesPerPage: lpp,
		width:        width,
		overflowText: e.OverflowText,
		failImages:   e.FailImages,
	}
	e.mu.Lock()
	e.docs = append(e.docs, d)
	e.mu.Unlock()
	return d, nil
}

// Documents returns every document created so far, in creation order.
func (e *Engine) Documents() []*Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Document(nil), e.docs...)
}

// Document records the content it receives.
type Document struct {
	Settings layout.Settings

	Headings []string
	Texts    []string
	Tables   []layout.Table
	Images   []string
	Footers  []string // footer text per page, filled when finished
	Anchors  map[layout.Anchor]string

	Written   string // path passed to WriteFile
	Discarded bool

	linesPerPage int
	width        float64
	overflowText string
	failImages   bool
	lines        int
	nextAnchor   int
	done         bool
}

func (d *Document) add(n int) {
	d.lines += n
}

func (d *Document) Heading(level int, text string, target layout.Anchor) {
	d.add(HeadingLines)
	d.Headings = append(d.Headings, text)
	if target > 0 {
		if d.Anchors == nil {
			d.Anchors = make(map[layout.Anchor]string)
		}
		d.Anchors[target] = text
	}
}

func (d *Document) Text(spans []layout.Span, indent int) {
	d.add(TextLines)
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	d.Texts = append(d.Texts, b.String())
}

func (d *Document) Code(lines [][]layout.Span) {
	d.add(len(lines))
}

func (d *Document) Rule() {
	d.add(RuleLines)
}

func (d *Document) Table(t layout.Table) error {
	var minTotal float64
	for _, c := range t.Columns {
		minTotal += c.MinWidth
	}
	if minTotal > d.width {
		return fmt.Errorf("%w: %.0fmm > %.0fmm", layout.ErrOverflow, minTotal, d.width)
	}
	if d.overflowText != "" {
		for _, r := range t.Rows {
			for _, c := range r.Cells {
				if c == d.overflowText {
					return fmt.Errorf("%w: cell %q", layout.ErrOverflow, c)
				}
			}
		}
	}
	d.Tables = append(d.Tables, t)
	d.add(1 + len(t.Rows))
	return nil
}

func (d *Document) Image(img layout.Image) error {
	if d.failImages || len(img.Data) == 0 {
		return fmt.Errorf("%w: %s", layout.ErrImage, img.Name)
	}
	d.Images = append(d.Images, img.Name)
	d.add(ImageLines)
	return nil
}

func (d *Document) NewAnchor() layout.Anchor {
	d.nextAnchor++
	return layout.Anchor(d.nextAnchor)
}

// PageCount returns the lines used divided by LinesPerPage, rounded up, and
// at least 1.
func (d *Document) PageCount() int {
	if d.lines <= 0 {
		return 1
	}
	return (d.lines + d.linesPerPage - 1) / d.linesPerPage
}

func (d *Document) finish() error {
	if d.done {
		return layout.ErrDocumentDone
	}
	d.done = true
	if d.Settings.Footer != nil {
		for p := 1; p <= d.PageCount(); p++ {
			d.Footers = append(d.Footers, d.Settings.Footer(p))
		}
	}
	return nil
}

// WriteFile writes a plain-text stand-in: one "page N: footer" line per page,
// so merged outputs can be checked for page order.
func (d *Document) WriteFile(path string) error {
	if err := d.finish(); err != nil {
		return err
	}
	d.Written = path
	var b strings.Builder
	for i, f := range d.Footers {
		fmt.Fprintf(&b, "page %d: %s\n", i+1, f)
	}
	if len(d.Footers) == 0 {
		for p := 1; p <= d.PageCount(); p++ {
			fmt.Fprintf(&b, "page %d\n", p)
		}
	}
	return os.WriteFile(path, []byte(b.String()), 0o600)
}

func (d *Document) Discard() error {
	if err := d.finish(); err != nil {
		return err
	}
	d.Discarded = true
	return nil
}
