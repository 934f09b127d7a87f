// Package render lays out one unit of an export as a finished document.
//
// A unit is a contiguous run of the render order. Render produces exactly one
// document per call and reports its page count; the caller threads page
// offsets and the grand total through Context so footers can number pages
// across units.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alnah/go-taskexport/internal/attach"
	"github.com/alnah/go-taskexport/internal/contextutil"
	"github.com/alnah/go-taskexport/internal/hierarchy"
	"github.com/alnah/go-taskexport/internal/layout"
	"github.com/alnah/go-taskexport/internal/markup"
)

// ErrLayoutOverflow means unit content cannot fit the page geometry.
var ErrLayoutOverflow = errors.New("layout overflow")

// Attribute is a named custom field of an item.
type Attribute struct {
	Name  string
	Value string
}

// Item is one work item with everything its detail section shows.
type Item struct {
	ID          string
	ParentID    string
	Subject     string
	Status      string
	Assignee    string
	Priority    string
	Due         time.Time
	Description string
	Format      markup.Format
	Attributes  []Attribute
	Attachments []attach.Attachment
}

// Entry is an item at its place in the render order.
type Entry struct {
	Item *Item
	Path hierarchy.LevelPath
}

// Unit is the slice of the render order laid out in one document.
type Unit struct {
	Index   int // 1-based
	Entries []Entry
}

// Footer is the static part of the page footer.
type Footer struct {
	Text string
	Date string // already resolved
}

// Config holds per-export render settings.
type Config struct {
	Page          layout.Page
	Title         string
	Creator       string
	Footer        Footer
	Columns       []Column // nil = DefaultColumns
	DateFormat    string   // due dates, dateutil format
	CodeStyle     string   // chroma style for code blocks
	MaxImageBytes int64    // per image; 0 = attach.DefaultMaxImageBytes
}

// Context is the per-call state threaded through a pass.
type Context struct {
	IncludeDetails     bool
	IncludeAttachments bool
	// OverviewWritten is set once a previous unit of the pass carried the
	// overview table.
	OverviewWritten bool
	// Overview is the whole render order, listed by the first unit.
	Overview   []Entry
	PageOffset int // pages laid out by earlier units of the pass
	TotalPages int // 0 = unknown
	Output     string
}

// Rendered describes a finished unit.
type Rendered struct {
	Index           int
	Pages           int
	Path            string // empty when the document was discarded
	Images          int
	OverviewWritten bool
}

// Renderer lays out units with a layout engine.
type Renderer struct {
	engine  layout.Engine
	store   attach.Store
	cfg     Config
	columns []column
	markup  *markup.Converter
}

// New creates a Renderer. store may be nil when attachments are never
// embedded.
func New(engine layout.Engine, store attach.Store, cfg Config) (*Renderer, error) {
	if engine == nil {
		return nil, errors.New("render: nil layout engine")
	}
	cols := cfg.Columns
	if cols == nil {
		cols = DefaultColumns
	}
	resolved, err := resolveColumns(cols)
	if err != nil {
		return nil, err
	}
	return &Renderer{
		engine:  engine,
		store:   store,
		cfg:     cfg,
		columns: resolved,
		markup:  markup.NewConverter(cfg.CodeStyle),
	}, nil
}

// Render lays unit out as one document. With rc.Output set the document is
// written there, otherwise it is discarded after counting its pages. Image
// buffers loaded for the unit are released before Render returns.
func (r *Renderer) Render(ctx context.Context, unit Unit, rc Context) (*Rendered, error) {
	log := contextutil.LoggerFromContext(ctx)

	scope := attach.NewScope(r.store, r.cfg.MaxImageBytes)
	defer scope.Release()

	doc, err := r.engine.NewDocument(layout.Settings{
		Page:    r.cfg.Page,
		Title:   r.cfg.Title,
		Creator: r.cfg.Creator,
		Footer:  r.footer(rc.PageOffset, rc.TotalPages),
	})
	if err != nil {
		return nil, fmt.Errorf("unit %d: %w", unit.Index, err)
	}
	finished := false
	defer func() {
		if !finished {
			_ = doc.Discard()
		}
	}()

	anchors := make(map[*Item]layout.Anchor, len(unit.Entries))
	if rc.IncludeDetails {
		for _, e := range unit.Entries {
			anchors[e.Item] = doc.NewAnchor()
		}
	}

	res := &Rendered{Index: unit.Index, OverviewWritten: rc.OverviewWritten}
	if !rc.OverviewWritten {
		if err := r.overview(doc, rc.Overview, anchors); err != nil {
			return nil, r.classify(unit, err)
		}
		res.OverviewWritten = true
	}

	if rc.IncludeDetails {
		for _, e := range unit.Entries {
			n, err := r.detail(ctx, doc, e, anchors[e.Item], scope, rc.IncludeAttachments)
			if err != nil {
				return nil, r.classify(unit, err)
			}
			res.Images += n
		}
	}

	res.Pages = doc.PageCount()
	finished = true
	if rc.Output == "" {
		err = doc.Discard()
	} else {
		err = doc.WriteFile(rc.Output)
		res.Path = rc.Output
	}
	if err != nil {
		return nil, fmt.Errorf("unit %d: %w", unit.Index, err)
	}

	buffers, bytes := scope.Held()
	log.Debug("unit rendered",
		"unit", unit.Index,
		"items", len(unit.Entries),
		"pages", res.Pages,
		"images", res.Images,
		"image_buffers", buffers,
		"image_bytes", bytes,
	)
	return res, nil
}

func (r *Renderer) classify(unit Unit, err error) error {
	if errors.Is(err, layout.ErrOverflow) {
		return fmt.Errorf("%w: unit %d: %v", ErrLayoutOverflow, unit.Index, err)
	}
	return fmt.Errorf("unit %d: %w", unit.Index, err)
}
