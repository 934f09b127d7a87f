package taskexport

// Notes:
// - Most tests render with layouttest.Engine: pages are counted from fixed
//   line costs and "written" units are text files holding one footer line per
//   page, so the merged output can be checked for page order.
// - The merge tool is a gomock MockMerger whose Merge concatenates those text
//   files. Merge is never expected unless a test says so.
// - TestExport_RealPDF is the only test that lays out a real PDF.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/alnah/go-taskexport/internal/dateutil"
	"github.com/alnah/go-taskexport/internal/layout"
	"github.com/alnah/go-taskexport/internal/layout/layouttest"
	"github.com/alnah/go-taskexport/internal/merge/mocks"
	"github.com/alnah/go-taskexport/internal/pdfinfo"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func flatItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			ID:      fmt.Sprintf("T-%03d", i+1),
			Subject: fmt.Sprintf("Task %d", i+1),
			Status:  "open",
		}
	}
	return items
}

// chainItems returns n items in parent chains three levels deep.
func chainItems(n int) []Item {
	items := flatItems(n)
	for i := range items {
		if i%3 != 0 {
			items[i].ParentID = items[i-1].ID
		}
		if i%5 == 0 {
			items[i].Attachments = []Attachment{{Name: "notes.txt", Path: "notes.txt"}}
		}
	}
	return items
}

// concatMerge writes the concatenation of the text units to output.
func concatMerge(_ context.Context, inputs []string, output string) error {
	var b strings.Builder
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		b.Write(data)
	}
	return os.WriteFile(output, []byte(b.String()), 0o600)
}

// footerPages parses "page N: ... Page X of T" lines and returns every X and
// the distinct totals seen.
func footerPages(t *testing.T, path string) (pages []int, totals map[int]bool) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	totals = make(map[int]bool)
	for line := range strings.SplitSeq(strings.TrimSpace(string(data)), "\n") {
		_, footer, ok := strings.Cut(line, ": ")
		if !ok {
			t.Fatalf("line %q has no footer", line)
		}
		var x, total int
		if _, err := fmt.Sscanf(footer[strings.LastIndex(footer, "Page "):], "Page %d of %d", &x, &total); err != nil {
			t.Fatalf("footer %q: %v", footer, err)
		}
		pages = append(pages, x)
		totals[total] = true
	}
	return pages, totals
}

func newTestExporter(t *testing.T, engine layout.Engine, m Merger, opts ...Option) *Exporter {
	t.Helper()
	base := []Option{
		withLayoutEngine(engine),
		WithMerger(m),
		WithLogger(quietLogger()),
		WithWorkDir(t.TempDir()),
	}
	e, err := NewExporter(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}
	return e
}

func exportError(t *testing.T, err error) *ExportError {
	t.Helper()
	var xerr *ExportError
	if !errors.As(err, &xerr) {
		t.Fatalf("error = %v (%T), want *ExportError", err, err)
	}
	return xerr
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func TestExport_FlatSingleUnit(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	m := mocks.NewMockMerger(ctrl) // never probed: 5 items fit one batch

	engine := &layouttest.Engine{LinesPerPage: 6}
	e := newTestExporter(t, engine, m)
	out := filepath.Join(t.TempDir(), "out.pdf")

	doc, err := e.Export(context.Background(), Request{
		Items:              flatItems(5),
		Output:             out,
		IncludeDetails:     true,
		IncludeAttachments: true,
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if doc.Units != 1 || doc.Batched {
		t.Errorf("Units = %d, Batched = %v, want 1 unit unbatched", doc.Units, doc.Batched)
	}
	if doc.Path != out || doc.ExportID == "" {
		t.Errorf("Document = %+v", doc)
	}

	docs := engine.Documents()
	if len(docs) != 2 {
		t.Fatalf("documents = %d, want 2 (one per pass)", len(docs))
	}
	if !docs[0].Discarded || docs[0].Written != "" {
		t.Error("pass 1 document was not discarded")
	}
	if docs[1].Written == "" {
		t.Error("pass 2 document was not written")
	}
	if docs[0].PageCount() != doc.Pages {
		t.Errorf("pass 1 total = %d, final pages = %d", docs[0].PageCount(), doc.Pages)
	}

	pages, totals := footerPages(t, out)
	if len(pages) != doc.Pages || !totals[doc.Pages] || len(totals) != 1 {
		t.Errorf("footers = %v totals %v, want %d pages of %d", pages, totals, doc.Pages, doc.Pages)
	}
}

func TestExport_BatchedHierarchy(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	m := mocks.NewMockMerger(ctrl)
	m.EXPECT().Available(gomock.Any()).Return(true).Times(1)
	m.EXPECT().Merge(gomock.Any(), gomock.Len(3), gomock.Any()).DoAndReturn(concatMerge).Times(1)

	engine := &layouttest.Engine{LinesPerPage: 30}
	e := newTestExporter(t, engine, m, WithBatchSize(100))
	out := filepath.Join(t.TempDir(), "out.pdf")

	doc, err := e.Export(context.Background(), Request{
		Items:              chainItems(250),
		Output:             out,
		Hierarchy:          true,
		IncludeDetails:     true,
		IncludeAttachments: true,
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if doc.Units != 3 || !doc.Batched {
		t.Fatalf("Units = %d, Batched = %v, want 3 batched units", doc.Units, doc.Batched)
	}

	docs := engine.Documents()
	if len(docs) != 6 {
		t.Fatalf("documents = %d, want 6", len(docs))
	}
	pass1 := 0
	for _, d := range docs[:3] {
		if !d.Discarded {
			t.Error("pass 1 unit not discarded")
		}
		pass1 += d.PageCount()
	}
	if pass1 != doc.Pages {
		t.Errorf("pass 1 total = %d, final pages = %d", pass1, doc.Pages)
	}

	// Overview only at the start of the first unit.
	if docs[3].Headings[0] != defaultTitleForTest {
		t.Errorf("unit 1 starts with %q", docs[3].Headings[0])
	}
	for i, d := range docs[4:] {
		if d.Headings[0] == defaultTitleForTest {
			t.Errorf("unit %d repeats the overview", i+2)
		}
	}

	// Detail headings per unit: 100, 100, 50, in render order.
	wantFirst := []string{"1 T-001: Task 1", "34.1 T-101: Task 101", "67.1.1 T-201: Task 201"}
	for i, d := range docs[3:] {
		details := d.Headings
		if i == 0 {
			details = details[1:]
		}
		want := []int{100, 100, 50}[i]
		if len(details) != want {
			t.Errorf("unit %d details = %d, want %d", i+1, len(details), want)
		}
		if details[0] != wantFirst[i] {
			t.Errorf("unit %d first detail = %q, want %q", i+1, details[0], wantFirst[i])
		}
	}

	pages, totals := footerPages(t, out)
	if len(totals) != 1 || !totals[doc.Pages] {
		t.Errorf("footer totals = %v, want only %d", totals, doc.Pages)
	}
	for i, p := range pages {
		if p != i+1 {
			t.Fatalf("merged page %d numbered %d", i+1, p)
		}
	}
	if len(pages) != doc.Pages {
		t.Errorf("merged pages = %d, want %d", len(pages), doc.Pages)
	}
}

func TestExport_MergeUnavailable(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	m := mocks.NewMockMerger(ctrl)
	m.EXPECT().Available(gomock.Any()).Return(false).Times(1)

	engine := &layouttest.Engine{LinesPerPage: 30}
	e := newTestExporter(t, engine, m)
	out := filepath.Join(t.TempDir(), "out.pdf")

	doc, err := e.Export(context.Background(), Request{
		Items:              chainItems(250),
		Output:             out,
		Hierarchy:          true,
		IncludeDetails:     true,
		IncludeAttachments: true,
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if doc.Units != 1 || doc.Batched {
		t.Errorf("Units = %d, Batched = %v, want one unit", doc.Units, doc.Batched)
	}
	docs := engine.Documents()
	if len(docs) != 2 {
		t.Fatalf("documents = %d, want 2", len(docs))
	}
	if got := len(docs[1].Headings) - 1; got != 250 {
		t.Errorf("details = %d, want 250", got)
	}
}

func TestExport_LayoutOverflow(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	m := mocks.NewMockMerger(ctrl)

	items := flatItems(5)
	items[2].Subject = "too wide"
	engine := &layouttest.Engine{OverflowText: "too wide"}
	e := newTestExporter(t, engine, m)
	out := filepath.Join(t.TempDir(), "out.pdf")

	doc, err := e.Export(context.Background(), Request{Items: items, Output: out, IncludeDetails: true})
	if doc != nil {
		t.Errorf("Document = %+v, want nil", doc)
	}
	xerr := exportError(t, err)
	if xerr.Kind != KindLayoutOverflow {
		t.Errorf("Kind = %v, want %v", xerr.Kind, KindLayoutOverflow)
	}
	if xerr.State != StatePass1 {
		t.Errorf("State = %v, want %v", xerr.State, StatePass1)
	}
	if !errors.Is(err, ErrLayoutOverflow) {
		t.Error("error does not wrap ErrLayoutOverflow")
	}
	if n := len(engine.Documents()); n != 1 {
		t.Errorf("documents = %d, want 1 (no pass 2)", n)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("output exists after a failed export")
	}
}

// ---------------------------------------------------------------------------
// Merge probe and failures
// ---------------------------------------------------------------------------

func TestExport_ProbesMergeOnce(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	m := mocks.NewMockMerger(ctrl)
	m.EXPECT().Available(gomock.Any()).Return(true).Times(1)
	m.EXPECT().Merge(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(concatMerge).Times(2)

	e := newTestExporter(t, &layouttest.Engine{}, m, WithBatchSize(10))
	for i := range 2 {
		_, err := e.Export(context.Background(), Request{
			Items:              flatItems(25),
			Output:             filepath.Join(t.TempDir(), strconv.Itoa(i)+".pdf"),
			IncludeDetails:     true,
			IncludeAttachments: true,
		})
		if err != nil {
			t.Fatalf("Export() #%d error = %v", i+1, err)
		}
	}
}

func TestExport_CanceledExportKeepsMergeAvailable(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	m := mocks.NewMockMerger(ctrl)
	m.EXPECT().Available(gomock.Any()).DoAndReturn(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}).Times(1)
	m.EXPECT().Merge(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, inputs []string, output string) error {
			dir := filepath.Base(filepath.Dir(inputs[0]))
			if !strings.HasPrefix(dir, workDirPrefix+"-") || strings.HasPrefix(dir, workDirPrefix+"--") {
				t.Errorf("work dir = %q, want %s-<random>", dir, workDirPrefix)
			}
			return concatMerge(ctx, inputs, output)
		}).Times(1)

	e := newTestExporter(t, &layouttest.Engine{}, m, WithBatchSize(10))
	req := func(name string) Request {
		return Request{
			Items:              flatItems(25),
			Output:             filepath.Join(t.TempDir(), name),
			IncludeDetails:     true,
			IncludeAttachments: true,
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Export(ctx, req("canceled.pdf"))
	if xerr := exportError(t, err); xerr.Kind != KindCanceled {
		t.Fatalf("Kind = %v, want %v", xerr.Kind, KindCanceled)
	}

	doc, err := e.Export(context.Background(), req("out.pdf"))
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !doc.Batched || doc.Units != 3 {
		t.Errorf("Batched = %v, Units = %d, want a split into 3 units", doc.Batched, doc.Units)
	}
}

func TestExport_NoSplitWithoutDetails(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		details     bool
		attachments bool
	}{
		{"no details", false, true},
		{"no attachments", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			m := mocks.NewMockMerger(ctrl) // never probed

			e := newTestExporter(t, &layouttest.Engine{}, m, WithBatchSize(10))
			doc, err := e.Export(context.Background(), Request{
				Items:              flatItems(40),
				Output:             filepath.Join(t.TempDir(), "out.pdf"),
				IncludeDetails:     tt.details,
				IncludeAttachments: tt.attachments,
			})
			if err != nil {
				t.Fatalf("Export() error = %v", err)
			}
			if doc.Units != 1 {
				t.Errorf("Units = %d, want 1", doc.Units)
			}
		})
	}
}

func TestExport_MergeFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	m := mocks.NewMockMerger(ctrl)
	m.EXPECT().Available(gomock.Any()).Return(true)
	m.EXPECT().Merge(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("pdfunite: Syntax Error"))

	e := newTestExporter(t, &layouttest.Engine{}, m, WithBatchSize(10))
	out := filepath.Join(t.TempDir(), "out.pdf")

	doc, err := e.Export(context.Background(), Request{
		Items:              flatItems(25),
		Output:             out,
		IncludeDetails:     true,
		IncludeAttachments: true,
	})
	if doc != nil {
		t.Error("Document returned with an error")
	}
	xerr := exportError(t, err)
	if xerr.Kind != KindMergeFailure || xerr.State != StateMerging {
		t.Errorf("Kind = %v, State = %v, want merge failure while merging", xerr.Kind, xerr.State)
	}
	if !strings.Contains(xerr.UserMessage(), "Syntax Error") {
		t.Errorf("UserMessage() = %q, want the tool diagnostic", xerr.UserMessage())
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("output exists after a failed merge")
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestExport_InvalidInput(t *testing.T) {
	t.Parallel()

	dup := flatItems(2)
	dup[1].ID = dup[0].ID

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{
			name:    "no items",
			req:     Request{Output: "out.pdf"},
			wantErr: ErrNoItems,
		},
		{
			name:    "no output",
			req:     Request{Items: flatItems(1), Output: "  "},
			wantErr: ErrNoOutput,
		},
		{
			name:    "bad page size",
			req:     Request{Items: flatItems(1), Output: "out.pdf", Page: &PageSettings{Size: "b5", Orientation: "portrait", Margin: 0.5}},
			wantErr: ErrInvalidPageSize,
		},
		{
			name:    "footer too long",
			req:     Request{Items: flatItems(1), Output: "out.pdf", Footer: &Footer{Text: strings.Repeat("x", MaxFooterTextLength+1)}},
			wantErr: ErrFooterTooLong,
		},
		{
			name:    "unknown column",
			req:     Request{Items: flatItems(1), Output: "out.pdf", Overview: []Column{"effort"}},
			wantErr: nil,
		},
		{
			name: "duplicate id",
			req:  Request{Items: dup, Output: "out.pdf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			e := newTestExporter(t, &layouttest.Engine{}, mocks.NewMockMerger(ctrl))

			_, err := e.Export(context.Background(), tt.req)
			xerr := exportError(t, err)
			if xerr.Kind != KindInvalidInput {
				t.Errorf("Kind = %v, want %v (err %v)", xerr.Kind, KindInvalidInput, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExport_OrphanPolicy(t *testing.T) {
	t.Parallel()

	items := flatItems(3)
	items[1].ParentID = "T-999"

	tests := []struct {
		name    string
		policy  OrphanPolicy
		wantErr bool
	}{
		{"promote", PromoteOrphans, false},
		{"reject", RejectOrphans, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			engine := &layouttest.Engine{}
			e := newTestExporter(t, engine, mocks.NewMockMerger(ctrl), WithOrphanPolicy(tt.policy))

			_, err := e.Export(context.Background(), Request{
				Items:          items,
				Output:         filepath.Join(t.TempDir(), "out.pdf"),
				Hierarchy:      true,
				IncludeDetails: true,
			})
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Export() error = %v", err)
				}
				got := engine.Documents()[1].Headings[2]
				if got != "2 T-002: Task 2" {
					t.Errorf("orphan heading = %q, want top level", got)
				}
				return
			}
			xerr := exportError(t, err)
			if xerr.Kind != KindInvalidInput || xerr.State != StateInit {
				t.Errorf("Kind = %v, State = %v", xerr.Kind, xerr.State)
			}
		})
	}
}

func TestExport_Canceled(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	engine := &layouttest.Engine{}
	e := newTestExporter(t, engine, mocks.NewMockMerger(ctrl))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Export(ctx, Request{Items: flatItems(3), Output: filepath.Join(t.TempDir(), "out.pdf")})
	xerr := exportError(t, err)
	if xerr.Kind != KindCanceled {
		t.Errorf("Kind = %v, want %v", xerr.Kind, KindCanceled)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if n := len(engine.Documents()); n != 0 {
		t.Errorf("documents = %d, want none", n)
	}
}

type panicEngine struct{}

func (panicEngine) NewDocument(layout.Settings) (layout.Document, error) {
	panic("layout exploded")
}

func TestExport_RecoversPanic(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	e := newTestExporter(t, panicEngine{}, mocks.NewMockMerger(ctrl))

	_, err := e.Export(context.Background(), Request{Items: flatItems(1), Output: filepath.Join(t.TempDir(), "out.pdf")})
	xerr := exportError(t, err)
	if xerr.Kind != KindUnclassified {
		t.Errorf("Kind = %v, want %v", xerr.Kind, KindUnclassified)
	}
	if strings.Contains(xerr.UserMessage(), "exploded") {
		t.Errorf("UserMessage() = %q leaks internal detail", xerr.UserMessage())
	}
	if !strings.Contains(err.Error(), "exploded") {
		t.Errorf("Error() = %q, want the panic value", err.Error())
	}
}

func TestNewExporter_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    []Option
		wantErr error
	}{
		{"negative batch size", []Option{WithBatchSize(-1)}, ErrInvalidBatchSize},
		{"invalid date format", []Option{WithDateFormat("[Due DD")}, dateutil.ErrInvalidDateFormat},
		{"unknown merge tool", []Option{WithMergeTool("cat", "")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewExporter(tt.opts...)
			if err == nil {
				t.Fatal("NewExporter() error = nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewExporter_DefaultBatchSize(t *testing.T) {
	t.Parallel()

	e, err := NewExporter(WithBatchSize(0))
	if err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}
	if e.cfg.batchSize != DefaultBatchSize {
		t.Errorf("batchSize = %d, want %d", e.cfg.batchSize, DefaultBatchSize)
	}
}

// ---------------------------------------------------------------------------
// Preview and real output
// ---------------------------------------------------------------------------

func TestExport_Preview(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	e := newTestExporter(t, &layouttest.Engine{}, mocks.NewMockMerger(ctrl), WithPreview())
	out := filepath.Join(t.TempDir(), "items.pdf")

	items := flatItems(2)
	items[0].Description = "Ship **it**"

	doc, err := e.Export(context.Background(), Request{Items: items, Output: out, IncludeDetails: true})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	want := strings.TrimSuffix(out, ".pdf") + ".html"
	if doc.Preview != want {
		t.Fatalf("Preview = %q, want %q", doc.Preview, want)
	}
	html, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("reading preview: %v", err)
	}
	for _, s := range []string{"Task 1", "Task 2", "<strong>it</strong>"} {
		if !strings.Contains(string(html), s) {
			t.Errorf("preview missing %q", s)
		}
	}
}

func TestExport_RealPDF(t *testing.T) {
	t.Parallel()

	e, err := NewExporter(WithLogger(quietLogger()), WithWorkDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}
	out := filepath.Join(t.TempDir(), "out.pdf")

	items := chainItems(30)
	for i := range items {
		items[i].Description = "## Notes\n\n- first\n- second\n\n```go\nfmt.Println(\"hi\")\n```"
	}
	doc, err := e.Export(context.Background(), Request{
		Items:          items,
		Output:         out,
		Hierarchy:      true,
		IncludeDetails: true,
		Footer:         &Footer{Text: "ACME", Date: "2026-10-19"},
		Page:           &PageSettings{Size: PageSizeA4, Orientation: OrientationPortrait, Margin: 0.5},
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	n, err := pdfinfo.PageCount(out)
	if err != nil {
		t.Fatalf("PageCount() error = %v", err)
	}
	if n != doc.Pages {
		t.Errorf("PDF has %d pages, Document.Pages = %d", n, doc.Pages)
	}
	if doc.Pages < 2 {
		t.Errorf("Pages = %d, want several", doc.Pages)
	}
}

const defaultTitleForTest = "Work items"
