package taskexport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alnah/go-taskexport/internal/attach"
	"github.com/alnah/go-taskexport/internal/batch"
	"github.com/alnah/go-taskexport/internal/contextutil"
	"github.com/alnah/go-taskexport/internal/dateutil"
	"github.com/alnah/go-taskexport/internal/fileutil"
	"github.com/alnah/go-taskexport/internal/hierarchy"
	"github.com/alnah/go-taskexport/internal/layout"
	"github.com/alnah/go-taskexport/internal/markup"
	"github.com/alnah/go-taskexport/internal/merge"
	"github.com/alnah/go-taskexport/internal/preview"
	"github.com/alnah/go-taskexport/internal/render"
)

const creator = "go-taskexport"

// probeTimeout bounds the merge tool availability probe.
const probeTimeout = 10 * time.Second

// workDirPrefix names per-export work directories.
const workDirPrefix = "taskexport"

// Exporter turns work items into one PDF document. It is safe for
// concurrent use; every Export call runs single-threaded.
type Exporter struct {
	cfg     exporterConfig
	logger  *slog.Logger
	merger  Merger
	store   AttachmentStore
	engine  layout.Engine
	preview *preview.Writer

	probe     sync.Once
	canMerge  bool
	probeTook time.Duration
}

// NewExporter creates an Exporter. Without WithMerger the merge tool named by
// WithMergeTool (default pdfunite) is used; it is probed at most once, the
// first time an export is large enough to need it.
func NewExporter(opts ...Option) (*Exporter, error) {
	e := &Exporter{
		cfg: exporterConfig{
			batchSize: DefaultBatchSize,
			orphans:   PromoteOrphans,
		},
	}
	for _, opt := range opts {
		opt(e)
	}

	switch {
	case e.cfg.batchSize < 0:
		return nil, fmt.Errorf("%w: %d (must be positive)", ErrInvalidBatchSize, e.cfg.batchSize)
	case e.cfg.batchSize == 0:
		e.cfg.batchSize = DefaultBatchSize
	}
	if e.cfg.dateFormat != "" {
		if _, err := dateutil.Layout(e.cfg.dateFormat); err != nil {
			return nil, err
		}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.merger == nil {
		tool, err := merge.NewTool(e.cfg.mergeTool, e.cfg.mergeBinary)
		if err != nil {
			return nil, err
		}
		e.merger = tool
	}
	if e.store == nil {
		e.store = attach.FileStore{}
	}
	if e.engine == nil {
		e.engine = layout.NewPDFEngine()
	}
	if e.cfg.preview {
		w, err := preview.New(e.cfg.codeStyle)
		if err != nil {
			return nil, err
		}
		e.preview = w
	}
	return e, nil
}

// mergeAvailable probes the merge tool once per Exporter. The probe outlives
// the calling export's cancellation so a canceled export cannot cache a
// negative answer.
func (e *Exporter) mergeAvailable(ctx context.Context) bool {
	e.probe.Do(func() {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), probeTimeout)
		defer cancel()

		start := time.Now()
		e.canMerge = e.merger.Available(pctx)
		e.probeTook = time.Since(start)
		contextutil.LoggerFromContext(ctx).Debug("merge tool probed",
			"available", e.canMerge, "duration", e.probeTook)
	})
	return e.canMerge
}

// export is the state of one Export call.
type export struct {
	e     *Exporter
	req   Request
	log   *slog.Logger
	state State

	entries []render.Entry
	batches []batch.Batch[render.Entry]
	split   bool
	r       *render.Renderer
	footer  render.Footer
	total   int
}

func (x *export) to(s State) {
	x.log.Debug("export state", "from", x.state.String(), "to", s.String())
	x.state = s
}

// Export renders req in two passes and writes the result to req.Output.
// Pass 1 lays out every unit to learn the page total; pass 2 lays them out
// again with the total known, then the units are merged. On failure the
// error is an *ExportError and nothing is written to req.Output.
func (e *Exporter) Export(ctx context.Context, req Request) (doc *Document, err error) {
	id := uuid.NewString()
	x := &export{e: e, req: req, log: e.logger.With("export_id", id), state: StateInit}
	ctx = contextutil.WithLogger(ctx, x.log)

	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, x.fail(ctx, fmt.Errorf("internal error: %v", r))
		}
	}()

	start := time.Now()
	x.log.Info("export started", "items", len(req.Items), "output", req.Output)

	if err := x.prepare(); err != nil {
		return nil, x.fail(ctx, err)
	}
	if err := x.index(); err != nil {
		return nil, x.fail(ctx, err)
	}
	x.plan(ctx)

	if err := x.passOne(ctx); err != nil {
		return nil, x.fail(ctx, err)
	}

	dir, cleanup, err := fileutil.MakeWorkDir(e.cfg.workDir, workDirPrefix)
	if err != nil {
		return nil, x.fail(ctx, err)
	}
	defer cleanup()

	units, pages, err := x.passTwo(ctx, dir)
	if err != nil {
		return nil, x.fail(ctx, err)
	}
	if err := x.merge(ctx, dir, units); err != nil {
		return nil, x.fail(ctx, err)
	}

	doc = &Document{
		Path:     req.Output,
		Pages:    pages,
		Units:    len(units),
		Batched:  x.split,
		ExportID: id,
	}
	doc.Preview = x.writePreview(ctx)

	x.to(StateDone)
	x.log.Info("export finished",
		"pages", doc.Pages,
		"units", doc.Units,
		"duration", time.Since(start),
	)
	return doc, nil
}

// prepare validates the request and builds the renderer.
func (x *export) prepare() error {
	req := x.req
	if len(req.Items) == 0 {
		return ErrNoItems
	}
	if strings.TrimSpace(req.Output) == "" {
		return ErrNoOutput
	}
	if err := req.Page.Validate(); err != nil {
		return err
	}
	if err := req.Footer.Validate(); err != nil {
		return err
	}
	if req.Footer != nil {
		date, err := dateutil.ResolveDate(req.Footer.Date, time.Now())
		if err != nil {
			return err
		}
		x.footer = render.Footer{Text: req.Footer.Text, Date: date}
	}

	r, err := render.New(x.e.engine, x.e.store, render.Config{
		Page:          req.Page.layout(),
		Title:         req.Title,
		Creator:       creator,
		Footer:        x.footer,
		Columns:       req.Overview,
		DateFormat:    x.e.cfg.dateFormat,
		CodeStyle:     x.e.cfg.codeStyle,
		MaxImageBytes: x.e.cfg.maxImageBytes,
	})
	if err != nil {
		return err
	}
	x.r = r
	return nil
}

// index flattens the items into render order. The result serves both passes.
func (x *export) index() error {
	items := x.req.Items
	entries := make([]hierarchy.Entry, len(items))
	for i := range items {
		entries[i] = hierarchy.Entry{ID: items[i].ID, ParentID: items[i].ParentID}
	}
	idx, err := hierarchy.Build(entries, x.req.Hierarchy, x.e.cfg.orphans)
	if err != nil {
		return err
	}
	if promoted := idx.Promoted(); len(promoted) > 0 {
		x.log.Warn("items exported at top level", "count", len(promoted), "first", idx.Node(promoted[0]).ID)
	}

	x.entries = make([]render.Entry, 0, idx.Len())
	for _, pos := range idx.Order() {
		x.entries = append(x.entries, render.Entry{Item: &items[pos], Path: idx.Node(pos).Path})
	}
	x.to(StateIndexBuilt)
	return nil
}

func (x *export) plan(ctx context.Context) {
	size := x.e.cfg.batchSize
	split, reason := batch.ShouldSplit(len(x.entries), size, batch.Preconditions{
		IncludeDetails:     x.req.IncludeDetails,
		IncludeAttachments: x.req.IncludeAttachments,
		MergeAvailable:     func() bool { return x.e.mergeAvailable(ctx) },
	})
	x.split = split
	x.batches = batch.Plan(x.entries, size, split)

	if reason == batch.ReasonMergeUnavailable {
		x.log.Info("merge tool unavailable, rendering a single unit", "items", len(x.entries))
	}
	x.log.Debug("batch plan", "batches", len(x.batches), "split", split, "reason", string(reason))
	x.to(StatePlanChosen)
}

// passOne counts pages. Documents are discarded.
func (x *export) passOne(ctx context.Context) error {
	x.to(StatePass1)
	written := false
	for _, b := range x.batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := x.r.Render(ctx, render.Unit{Index: b.Index, Entries: b.Items}, render.Context{
			IncludeDetails:     x.req.IncludeDetails,
			IncludeAttachments: x.req.IncludeAttachments,
			OverviewWritten:    written,
			Overview:           x.entries,
			PageOffset:         x.total,
		})
		if err != nil {
			return err
		}
		written = res.OverviewWritten
		x.total += res.Pages
	}
	x.to(StateTotalsKnown)
	x.log.Debug("page total known", "pages", x.total)
	return nil
}

// passTwo renders every unit into dir with the page total known.
func (x *export) passTwo(ctx context.Context, dir string) ([]string, int, error) {
	x.to(StatePass2)
	units := make([]string, 0, len(x.batches))
	written := false
	pages := 0
	for _, b := range x.batches {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		res, err := x.r.Render(ctx, render.Unit{Index: b.Index, Entries: b.Items}, render.Context{
			IncludeDetails:     x.req.IncludeDetails,
			IncludeAttachments: x.req.IncludeAttachments,
			OverviewWritten:    written,
			Overview:           x.entries,
			PageOffset:         pages,
			TotalPages:         x.total,
			Output:             filepath.Join(dir, fmt.Sprintf("unit-%04d.pdf", b.Index)),
		})
		if err != nil {
			return nil, 0, err
		}
		written = res.OverviewWritten
		pages += res.Pages
		units = append(units, res.Path)
	}
	if pages != x.total {
		x.log.Warn("page total changed between passes", "pass1", x.total, "pass2", pages)
	}
	return units, pages, nil
}

// merge combines the units and moves the result to the requested output.
func (x *export) merge(ctx context.Context, dir string, units []string) error {
	x.to(StateMerging)
	if err := ctx.Err(); err != nil {
		return err
	}
	merged, err := merge.Units(ctx, x.e.merger, units, filepath.Join(dir, "merged.pdf"))
	if err != nil {
		return err
	}
	return fileutil.MoveFile(merged, x.req.Output)
}

// writePreview writes the HTML outline. Failures are logged only.
func (x *export) writePreview(ctx context.Context) string {
	if x.e.preview == nil {
		return ""
	}
	path := x.req.PreviewOutput
	if path == "" {
		path = strings.TrimSuffix(x.req.Output, filepath.Ext(x.req.Output)) + ".html"
	}
	err := x.e.preview.WriteFile(ctx, path, x.entries, preview.Options{
		Title:      x.req.Title,
		Details:    x.req.IncludeDetails,
		Batches:    len(x.batches),
		DateFormat: x.e.cfg.dateFormat,
	})
	if err != nil {
		x.log.Warn("preview not written", "path", path, "error", err)
		return ""
	}
	return path
}

// fail moves the export to StateErrored and classifies err.
func (x *export) fail(ctx context.Context, err error) error {
	failed := x.state
	x.to(StateErrored)

	xerr := &ExportError{Kind: classify(ctx, err), State: failed, Err: err}
	switch xerr.Kind {
	case KindUnclassified:
		x.log.Error("export failed", "state", failed.String(), "error", err)
	case KindCanceled:
		x.log.Info("export canceled", "state", failed.String())
	default:
		x.log.Warn("export failed", "kind", xerr.Kind.String(), "state", failed.String(), "error", err)
	}
	return xerr
}

var invalidInput = []error{
	ErrNoItems,
	ErrNoOutput,
	ErrInvalidPageSize,
	ErrInvalidOrientation,
	ErrInvalidMargin,
	ErrFooterTooLong,
	dateutil.ErrInvalidDateFormat,
	hierarchy.ErrEmptyID,
	hierarchy.ErrDuplicateID,
	hierarchy.ErrUnknownParent,
	hierarchy.ErrParentCycle,
	hierarchy.ErrInvalidPolicy,
	render.ErrUnknownColumn,
	markup.ErrUnknownFormat,
}

func classify(ctx context.Context, err error) ErrorKind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, render.ErrLayoutOverflow):
		return KindLayoutOverflow
	case errors.Is(err, merge.ErrMergeFailed), errors.Is(err, merge.ErrNoInputs):
		return KindMergeFailure
	}
	for _, target := range invalidInput {
		if errors.Is(err, target) {
			return KindInvalidInput
		}
	}
	if ctx.Err() != nil {
		return KindCanceled
	}
	return KindUnclassified
}
