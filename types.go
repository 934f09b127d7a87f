package taskexport

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/alnah/go-taskexport/internal/attach"
	"github.com/alnah/go-taskexport/internal/hierarchy"
	"github.com/alnah/go-taskexport/internal/layout"
	"github.com/alnah/go-taskexport/internal/markup"
	"github.com/alnah/go-taskexport/internal/merge"
	"github.com/alnah/go-taskexport/internal/render"
)

// Work item types.
type (
	// Item is one work item. ID must be unique within a request; ParentID
	// links it below another item when hierarchy is enabled.
	Item       = render.Item
	Attribute  = render.Attribute
	Attachment = attach.Attachment
	// Format is the encoding of an item description.
	Format = markup.Format
	// Column names an overview table column.
	Column = render.Column
)

// Description formats.
const (
	FormatMarkdown = markup.Markdown
	FormatHTML     = markup.HTML
	FormatText     = markup.Text
)

// Overview columns. The level path column is always shown first.
const (
	ColumnID       = render.ColumnID
	ColumnSubject  = render.ColumnSubject
	ColumnStatus   = render.ColumnStatus
	ColumnAssignee = render.ColumnAssignee
	ColumnPriority = render.ColumnPriority
	ColumnDue      = render.ColumnDue
)

// OrphanPolicy decides what happens to items whose parent is not in the
// request, or whose parent chain loops.
type OrphanPolicy = hierarchy.OrphanPolicy

const (
	// PromoteOrphans exports such items at the top level.
	PromoteOrphans = hierarchy.PromoteOrphans
	// RejectOrphans fails the export.
	RejectOrphans = hierarchy.RejectOrphans
)

// AttachmentStore opens attachment content for embedding.
type AttachmentStore = attach.Store

// Merger concatenates unit documents. The default runs pdfunite.
type Merger = merge.Merger

// Page size constants.
const (
	PageSizeLetter = "letter"
	PageSizeA4     = "a4"
	PageSizeLegal  = "legal"
)

// Orientation constants.
const (
	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"
)

// Margin bounds in inches.
const (
	MinMargin     = 0.25
	MaxMargin     = 3.0
	DefaultMargin = 0.5
)

// DefaultBatchSize is the number of items per unit when exports are split.
const DefaultBatchSize = 100

// MaxFooterTextLength limits Footer.Text.
const MaxFooterTextLength = 200

// PageSettings configures PDF page dimensions.
type PageSettings struct {
	Size        string  // "letter", "a4", "legal"
	Orientation string  // "portrait", "landscape"
	Margin      float64 // inches, applied to all sides
}

// DefaultPageSettings returns page settings with default values.
func DefaultPageSettings() *PageSettings {
	return &PageSettings{
		Size:        PageSizeLetter,
		Orientation: OrientationPortrait,
		Margin:      DefaultMargin,
	}
}

// Validate checks that page settings are valid.
// Returns nil if p is nil (nil means use defaults).
func (p *PageSettings) Validate() error {
	if p == nil {
		return nil
	}

	if !isValidPageSize(p.Size) {
		return fmt.Errorf("%w: %q", ErrInvalidPageSize, p.Size)
	}

	if !isValidOrientation(p.Orientation) {
		return fmt.Errorf("%w: %q", ErrInvalidOrientation, p.Orientation)
	}

	if p.Margin < MinMargin || p.Margin > MaxMargin {
		return fmt.Errorf("%w: %.2f (must be between %.2f and %.2f)", ErrInvalidMargin, p.Margin, MinMargin, MaxMargin)
	}

	return nil
}

func (p *PageSettings) layout() layout.Page {
	if p == nil {
		p = DefaultPageSettings()
	}
	return layout.Page{
		Size:        strings.ToLower(p.Size),
		Orientation: strings.ToLower(p.Orientation),
		Margin:      p.Margin,
	}
}

// isValidPageSize checks if size is a known page size (case-insensitive).
func isValidPageSize(size string) bool {
	switch strings.ToLower(size) {
	case PageSizeLetter, PageSizeA4, PageSizeLegal:
		return true
	}
	return false
}

// isValidOrientation checks if orientation is valid (case-insensitive).
func isValidOrientation(orientation string) bool {
	switch strings.ToLower(orientation) {
	case OrientationPortrait, OrientationLandscape:
		return true
	}
	return false
}

// Footer configures the static part of every page footer. "Page X of N" is
// always appended.
type Footer struct {
	Text string
	Date string // literal date, "auto" or "auto:FORMAT"
}

// Validate checks footer settings. Returns nil if f is nil.
func (f *Footer) Validate() error {
	if f == nil {
		return nil
	}
	if len(f.Text) > MaxFooterTextLength {
		return fmt.Errorf("%w: %d chars (max %d)", ErrFooterTooLong, len(f.Text), MaxFooterTextLength)
	}
	return nil
}

// Request describes one export.
type Request struct {
	Items  []Item // export order; already filtered by the caller
	Output string // final PDF path; its directory must exist

	Hierarchy          bool // nest items under their parents
	IncludeDetails     bool // write a detail section per item
	IncludeAttachments bool // embed image attachments in detail sections

	Title    string        // overview heading; empty = "Work items"
	Footer   *Footer       // nil = page numbers only
	Page     *PageSettings // nil = defaults
	Overview []Column      // overview columns; nil = default set

	// PreviewOutput is where the HTML outline goes when the Exporter was
	// created WithPreview. Empty = Output with an .html extension.
	PreviewOutput string
}

// Document is a finished export.
type Document struct {
	Path     string
	Pages    int
	Units    int  // rendered units merged into Path
	Batched  bool // true when the export was split
	Preview  string
	ExportID string
}

// Option configures an Exporter.
type Option func(*Exporter)

// exporterConfig holds internal configuration for Exporter.
type exporterConfig struct {
	batchSize     int
	orphans       OrphanPolicy
	workDir       string
	mergeTool     string
	mergeBinary   string
	dateFormat    string
	codeStyle     string
	maxImageBytes int64
	preview       bool
}

// WithBatchSize sets the maximum number of items per unit.
func WithBatchSize(n int) Option {
	return func(e *Exporter) {
		e.cfg.batchSize = n
	}
}

// WithOrphanPolicy sets how items with unknown or looping parents are handled.
func WithOrphanPolicy(p OrphanPolicy) Option {
	return func(e *Exporter) {
		e.cfg.orphans = p
	}
}

// WithMerger replaces the external merge tool.
func WithMerger(m Merger) Option {
	return func(e *Exporter) {
		e.merger = m
	}
}

// WithMergeTool selects the merge tool by name ("pdfunite", "qpdf", "gs").
// binary overrides the executable; empty means the name is looked up in PATH.
func WithMergeTool(name, binary string) Option {
	return func(e *Exporter) {
		e.cfg.mergeTool = name
		e.cfg.mergeBinary = binary
	}
}

// WithAttachmentStore sets where attachment content is read from.
func WithAttachmentStore(s AttachmentStore) Option {
	return func(e *Exporter) {
		e.store = s
	}
}

// WithAttachmentRoot reads attachments from the file system below dir.
func WithAttachmentRoot(dir string) Option {
	return WithAttachmentStore(attach.FileStore{Root: dir})
}

// WithLogger sets the logger. Every export logs with an export_id attribute.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) {
		e.logger = l
	}
}

// WithWorkDir sets the parent directory of per-export work directories.
func WithWorkDir(dir string) Option {
	return func(e *Exporter) {
		e.cfg.workDir = dir
	}
}

// WithPreview also writes an HTML outline of every export.
func WithPreview() Option {
	return func(e *Exporter) {
		e.cfg.preview = true
	}
}

// WithDateFormat sets the format of due dates, e.g. "DD/MM/YYYY".
func WithDateFormat(format string) Option {
	return func(e *Exporter) {
		e.cfg.dateFormat = format
	}
}

// WithCodeStyle sets the chroma style used for code in descriptions.
func WithCodeStyle(name string) Option {
	return func(e *Exporter) {
		e.cfg.codeStyle = name
	}
}

// WithMaxImageBytes caps the size of a single embedded image.
func WithMaxImageBytes(n int64) Option {
	return func(e *Exporter) {
		e.cfg.maxImageBytes = n
	}
}

// withLayoutEngine swaps the PDF layout engine.
func withLayoutEngine(engine layout.Engine) Option {
	return func(e *Exporter) {
		e.engine = engine
	}
}
