package main

// Notes:
// - Exports go through fakePool/fakeExporter so no merge tool or PDF engine
//   is needed; the fake writes a placeholder file at req.Output.
// - Library behavior (batching, merging, page numbering) is tested in the
//   root package; these tests cover flag, config and job plumbing.
// - Tests that call runExport read TASKEXPORT_* variables and use t.Setenv
//   to pin them, so they do not run in parallel.

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	taskexport "github.com/alnah/go-taskexport"
	"github.com/alnah/go-taskexport/internal/config"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const itemsYAML = `items:
  - id: T-1
    subject: Plan release
    status: open
    attachments:
      - name: notes.txt
        path: files/notes.txt
  - id: T-2
    parent: T-1
    subject: Write changelog
    due: "2026-03-01"
`

func writeItems(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(itemsYAML), 0o600); err != nil {
		t.Fatalf("failed to write items file: %v", err)
	}
	return path
}

// fakeExporter records requests and writes a placeholder output.
type fakeExporter struct {
	mu   sync.Mutex
	reqs []taskexport.Request
	err  error
}

func (f *fakeExporter) Export(_ context.Context, req taskexport.Request) (*taskexport.Document, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if err := os.WriteFile(req.Output, []byte("%PDF-1.4\n"), 0o600); err != nil {
		return nil, err
	}
	return &taskexport.Document{Path: req.Output, Pages: 1, Units: 1}, nil
}

func (f *fakeExporter) requests() []taskexport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]taskexport.Request(nil), f.reqs...)
}

// fakePool hands out one shared fakeExporter.
type fakePool struct {
	exp        *fakeExporter
	size       int
	opts       []taskexport.Option
	acquireErr error

	mu       sync.Mutex
	acquired int
	released int
	closed   bool
}

func (p *fakePool) Acquire(context.Context) (Exporter, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	p.mu.Lock()
	p.acquired++
	p.mu.Unlock()
	return p.exp, nil
}

func (p *fakePool) Release(Exporter) {
	p.mu.Lock()
	p.released++
	p.mu.Unlock()
}

func (p *fakePool) Size() int { return p.size }

func (p *fakePool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// testDeps returns dependencies whose NewPool records the created pool.
func testDeps(exp *fakeExporter) (*Dependencies, *bytes.Buffer, *bytes.Buffer, **fakePool) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	var created *fakePool
	deps := &Dependencies{
		Now:    func() time.Time { return time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC) },
		Stdout: stdout,
		Stderr: stderr,
		NewPool: func(size int, opts ...taskexport.Option) Pool {
			created = &fakePool{exp: exp, size: size, opts: opts}
			return created
		},
	}
	return deps, stdout, stderr, &created
}

func clearEnv(t *testing.T) {
	t.Helper()
	for name := range knownEnvVars {
		t.Setenv(name, "")
	}
}

// ---------------------------------------------------------------------------
// TestPlanJobs - Output path resolution
// ---------------------------------------------------------------------------

func TestPlanJobs(t *testing.T) {
	t.Parallel()

	t.Run("next to input by default", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		in := filepath.Join(dir, "sprint.yaml")

		jobs, err := planJobs([]string{in}, "", config.DefaultConfig())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := filepath.Join(dir, "sprint.pdf"); jobs[0].OutputPath != want {
			t.Errorf("OutputPath = %q, want %q", jobs[0].OutputPath, want)
		}
	})

	t.Run("explicit pdf file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		out := filepath.Join(dir, "nested", "report.PDF")

		jobs, err := planJobs([]string{"a.yaml"}, out, config.DefaultConfig())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if jobs[0].OutputPath != out {
			t.Errorf("OutputPath = %q, want %q", jobs[0].OutputPath, out)
		}
		if _, err := os.Stat(filepath.Dir(out)); err != nil {
			t.Errorf("output directory not created: %v", err)
		}
	})

	t.Run("output directory for several inputs", func(t *testing.T) {
		t.Parallel()
		out := filepath.Join(t.TempDir(), "exports")

		jobs, err := planJobs([]string{"x/a.yaml", "y/b.json"}, out, config.DefaultConfig())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{filepath.Join(out, "a.pdf"), filepath.Join(out, "b.pdf")}
		for i, j := range jobs {
			if j.OutputPath != want[i] {
				t.Errorf("jobs[%d].OutputPath = %q, want %q", i, j.OutputPath, want[i])
			}
		}
	})

	t.Run("config default dir", func(t *testing.T) {
		t.Parallel()
		cfg := config.DefaultConfig()
		cfg.Output.DefaultDir = t.TempDir()

		jobs, err := planJobs([]string{"in/tasks.yml"}, "", cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := filepath.Join(cfg.Output.DefaultDir, "tasks.pdf"); jobs[0].OutputPath != want {
			t.Errorf("OutputPath = %q, want %q", jobs[0].OutputPath, want)
		}
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name    string
			inputs  []string
			output  string
			wantErr error
		}{
			{"no inputs", nil, "", ErrNoInput},
			{"pdf output with several inputs", []string{"a.yaml", "b.yaml"}, "out.pdf", ErrOutputNotDir},
		}
		for _, tt := range tests {
			_, err := planJobs(tt.inputs, tt.output, config.DefaultConfig())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("%s: error = %v, want %v", tt.name, err, tt.wantErr)
			}
		}
	})
}

// ---------------------------------------------------------------------------
// TestMergeExportFlags - Flags override config
// ---------------------------------------------------------------------------

func TestMergeExportFlags(t *testing.T) {
	t.Parallel()

	flags, _, err := parseExportFlags([]string{
		"--title", "Sprint 12",
		"--columns", "id, subject ,due",
		"--no-details",
		"--orphans", "reject",
		"-b", "40",
		"-p", "a4",
		"--footer-text", "Confidential",
		"--merge-tool", "qpdf",
		"--preview",
		"items.yaml",
	})
	if err != nil {
		t.Fatalf("parseExportFlags() error = %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Page.Orientation = "landscape"
	mergeExportFlags(flags, cfg)

	if cfg.Export.Title != "Sprint 12" {
		t.Errorf("Title = %q", cfg.Export.Title)
	}
	if got := strings.Join(cfg.Export.Columns, ","); got != "id,subject,due" {
		t.Errorf("Columns = %q, want id,subject,due", got)
	}
	if cfg.Export.Details {
		t.Error("Details should be disabled by --no-details")
	}
	if !cfg.Export.Hierarchy || !cfg.Export.Attachments {
		t.Error("flags not given must keep config values")
	}
	if cfg.Export.Orphans != "reject" || cfg.Export.BatchSize != 40 {
		t.Errorf("Orphans = %q, BatchSize = %d", cfg.Export.Orphans, cfg.Export.BatchSize)
	}
	if cfg.Page.Size != "a4" || cfg.Page.Orientation != "landscape" {
		t.Errorf("Page = %+v", cfg.Page)
	}
	if cfg.Footer.Text != "Confidential" || cfg.Merge.Tool != "qpdf" {
		t.Errorf("Footer.Text = %q, Merge.Tool = %q", cfg.Footer.Text, cfg.Merge.Tool)
	}
	if !cfg.Preview.Enabled {
		t.Error("Preview should be enabled")
	}
}

// ---------------------------------------------------------------------------
// TestBuildRequest - Request assembly
// ---------------------------------------------------------------------------

func TestBuildRequest(t *testing.T) {
	t.Parallel()

	items := []taskexport.Item{{ID: "T-1", Subject: "One"}}
	job := exportJob{InputPath: "in.yaml", OutputPath: "out.pdf"}

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		req, err := buildRequest(config.DefaultConfig(), items, job)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Output != "out.pdf" || len(req.Items) != 1 {
			t.Errorf("Output = %q, Items = %d", req.Output, len(req.Items))
		}
		if !req.Hierarchy || !req.IncludeDetails || !req.IncludeAttachments {
			t.Errorf("content switches = %v/%v/%v, want all true", req.Hierarchy, req.IncludeDetails, req.IncludeAttachments)
		}
		if req.Footer != nil {
			t.Errorf("Footer = %+v, want nil", req.Footer)
		}
		if req.Overview != nil {
			t.Errorf("Overview = %v, want nil for the default set", req.Overview)
		}
		def := taskexport.DefaultPageSettings()
		if *req.Page != *def {
			t.Errorf("Page = %+v, want %+v", req.Page, def)
		}
	})

	t.Run("footer and columns", func(t *testing.T) {
		t.Parallel()
		cfg := config.DefaultConfig()
		cfg.Footer.Date = "auto"
		cfg.Export.Columns = []string{"id", "status"}
		cfg.Page.Size = "legal"

		req, err := buildRequest(cfg, items, job)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Footer == nil || req.Footer.Date != "auto" {
			t.Errorf("Footer = %+v, want date auto", req.Footer)
		}
		if len(req.Overview) != 2 {
			t.Errorf("Overview = %v, want 2 columns", req.Overview)
		}
		if req.Page.Size != "legal" {
			t.Errorf("Page.Size = %q, want legal", req.Page.Size)
		}
	})

	t.Run("unknown column", func(t *testing.T) {
		t.Parallel()
		cfg := config.DefaultConfig()
		cfg.Export.Columns = []string{"sprint"}

		if _, err := buildRequest(cfg, items, job); err == nil {
			t.Error("expected error for unknown column")
		}
	})
}

func TestResolveAttachments(t *testing.T) {
	t.Parallel()

	abs := filepath.Join(t.TempDir(), "abs.png")
	items := []taskexport.Item{{
		ID: "T-1",
		Attachments: []taskexport.Attachment{
			{Name: "rel.png", Path: "img/rel.png"},
			{Name: "abs.png", Path: abs},
			{Name: "none"},
		},
	}}

	resolveAttachments(items, "/data/exports")

	got := items[0].Attachments
	if want := filepath.Join("/data/exports", "img/rel.png"); got[0].Path != want {
		t.Errorf("relative path = %q, want %q", got[0].Path, want)
	}
	if got[1].Path != abs {
		t.Errorf("absolute path changed to %q", got[1].Path)
	}
	if got[2].Path != "" {
		t.Errorf("empty path changed to %q", got[2].Path)
	}
}

// ---------------------------------------------------------------------------
// TestExportBatch - Concurrent jobs
// ---------------------------------------------------------------------------

func TestExportBatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var jobs []exportJob
	for _, name := range []string{"a.yaml", "b.yaml", "c.yaml"} {
		in := writeItems(t, dir, name)
		jobs = append(jobs, exportJob{InputPath: in, OutputPath: filepath.Join(dir, pdfName(name))})
	}

	exp := &fakeExporter{}
	pool := &fakePool{exp: exp, size: 2}
	results := exportBatch(context.Background(), pool, jobs, config.DefaultConfig())

	if len(results) != len(jobs) {
		t.Fatalf("got %d results, want %d", len(results), len(jobs))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Errorf("results[%d].Err = %v", i, r.Err)
		}
		if r.InputPath != jobs[i].InputPath || r.OutputPath != jobs[i].OutputPath {
			t.Errorf("results[%d] = %s -> %s, out of order", i, r.InputPath, r.OutputPath)
		}
		if _, err := os.Stat(r.OutputPath); err != nil {
			t.Errorf("output %s missing: %v", r.OutputPath, err)
		}
	}
	if len(exp.requests()) != 3 {
		t.Errorf("exports = %d, want 3", len(exp.requests()))
	}
	if pool.acquired != pool.released {
		t.Errorf("acquired %d, released %d", pool.acquired, pool.released)
	}
}

func TestExportBatch_Errors(t *testing.T) {
	t.Parallel()

	t.Run("acquire fails", func(t *testing.T) {
		t.Parallel()
		acquireErr := errors.New("pool closed")
		pool := &fakePool{exp: &fakeExporter{}, size: 1, acquireErr: acquireErr}
		jobs := []exportJob{{InputPath: "a.yaml"}, {InputPath: "b.yaml"}}

		for _, r := range exportBatch(context.Background(), pool, jobs, config.DefaultConfig()) {
			if !errors.Is(r.Err, acquireErr) {
				t.Errorf("%s: Err = %v, want %v", r.InputPath, r.Err, acquireErr)
			}
		}
	})

	t.Run("canceled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		pool := &fakePool{exp: &fakeExporter{}, size: 1}
		jobs := []exportJob{{InputPath: "a.yaml"}}

		results := exportBatch(ctx, pool, jobs, config.DefaultConfig())
		if !errors.Is(results[0].Err, context.Canceled) {
			t.Errorf("Err = %v, want context.Canceled", results[0].Err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		pool := &fakePool{exp: &fakeExporter{}, size: 1}
		jobs := []exportJob{{InputPath: filepath.Join(t.TempDir(), "missing.yaml")}}

		results := exportBatch(context.Background(), pool, jobs, config.DefaultConfig())
		if exitCodeFor(results[0].Err) != ExitIO {
			t.Errorf("Err = %v, want an I/O error", results[0].Err)
		}
	})
}

func TestExportFile_ResolvesAttachments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := writeItems(t, dir, "items.yaml")
	exp := &fakeExporter{}

	r := exportFile(context.Background(), exp, exportJob{InputPath: in, OutputPath: filepath.Join(dir, "items.pdf")}, config.DefaultConfig())
	if r.Err != nil {
		t.Fatalf("unexpected error: %v", r.Err)
	}

	reqs := exp.requests()
	if len(reqs) != 1 || len(reqs[0].Items) != 2 {
		t.Fatalf("requests = %+v", reqs)
	}
	if want := filepath.Join(dir, "files/notes.txt"); reqs[0].Items[0].Attachments[0].Path != want {
		t.Errorf("attachment path = %q, want %q", reqs[0].Items[0].Attachments[0].Path, want)
	}
	if r.Duration <= 0 {
		t.Error("Duration should be recorded")
	}
}

// ---------------------------------------------------------------------------
// TestRunExport - Command flow
// ---------------------------------------------------------------------------

func TestRunExportCmd(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	in := writeItems(t, dir, "items.yaml")
	exp := &fakeExporter{}
	deps, stdout, stderr, pool := testDeps(exp)

	code := run([]string{"export", "--title", "Backlog", in}, deps)
	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Created "+filepath.Join(dir, "items.pdf")) {
		t.Errorf("stdout = %q", stdout.String())
	}
	if *pool == nil || !(*pool).closed {
		t.Error("pool should be created and closed")
	}
	if (*pool).size != 1 {
		t.Errorf("pool size = %d, want 1 for a single file", (*pool).size)
	}
	if reqs := exp.requests(); len(reqs) != 1 || reqs[0].Title != "Backlog" {
		t.Errorf("requests = %+v", reqs)
	}
}

func TestRunExportCmd_Failures(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	in := writeItems(t, dir, "items.yaml")

	tests := []struct {
		name      string
		args      []string
		exportErr error
		wantCode  int
		wantErr   string
	}{
		{
			name:     "no input",
			args:     []string{"export"},
			wantCode: ExitIO,
			wantErr:  "no items file",
		},
		{
			name:     "unknown flag",
			args:     []string{"export", "--bogus", in},
			wantCode: ExitUsage,
		},
		{
			name:     "invalid workers",
			args:     []string{"export", "-w", "99", in},
			wantCode: ExitUsage,
			wantErr:  "invalid worker count",
		},
		{
			name:     "invalid merge tool",
			args:     []string{"export", "--merge-tool", "pdftk", in},
			wantCode: ExitUsage,
			wantErr:  "merge.tool",
		},
		{
			name:     "unsupported source",
			args:     []string{"export", filepath.Join(dir, "items.csv")},
			wantCode: ExitUsage,
			wantErr:  "hint:",
		},
		{
			name:      "layout overflow",
			args:      []string{"export", in},
			exportErr: &taskexport.ExportError{Kind: taskexport.KindLayoutOverflow, Err: errors.New("columns too wide")},
			wantCode:  ExitLayout,
			wantErr:   "columns too wide",
		},
		{
			name:      "merge failure",
			args:      []string{"export", in},
			exportErr: &taskexport.ExportError{Kind: taskexport.KindMergeFailure, Err: errors.New("pdfunite: exit 1")},
			wantCode:  ExitMerge,
			wantErr:   "hint:",
		},
		{
			name:      "internal error hidden",
			args:      []string{"export", in},
			exportErr: &taskexport.ExportError{Kind: taskexport.KindUnclassified, Err: errors.New("secret detail")},
			wantCode:  ExitGeneral,
			wantErr:   "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, _, stderr, _ := testDeps(&fakeExporter{err: tt.exportErr})

			code := run(tt.args, deps)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, tt.wantCode, stderr.String())
			}
			if tt.wantErr != "" && !strings.Contains(stderr.String(), tt.wantErr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr.String(), tt.wantErr)
			}
			if strings.Contains(stderr.String(), "secret detail") {
				t.Error("unclassified detail leaked to user output")
			}
		})
	}
}

func TestRunExport_EnvOverrides(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	in := writeItems(t, dir, "items.yaml")
	out := filepath.Join(dir, "out")
	t.Setenv("TASKEXPORT_OUTPUT_DIR", out)
	t.Setenv("TASKEXPORT_PAGE_SIZE", "a4")
	t.Setenv("TASKEXPORT_WORKERS", "4")

	flags, positional, err := parseExportFlags([]string{"-p", "legal", in})
	if err != nil {
		t.Fatalf("parseExportFlags() error = %v", err)
	}
	exp := &fakeExporter{}
	deps, _, _, pool := testDeps(exp)

	results, cfg, err := runExport(context.Background(), positional, flags, deps, newLogger(&bytes.Buffer{}, flags.common))
	if err != nil {
		t.Fatalf("runExport() error = %v", err)
	}
	if results[0].OutputPath != filepath.Join(out, "items.pdf") {
		t.Errorf("OutputPath = %q, want env output dir", results[0].OutputPath)
	}
	if cfg.Page.Size != "legal" {
		t.Errorf("Page.Size = %q, flag must win over env", cfg.Page.Size)
	}
	if (*pool).size != 1 {
		t.Errorf("pool size = %d, want capped to the job count", (*pool).size)
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		flags     commonFlags
		wantDebug bool
		wantWarn  bool
	}{
		{"default", commonFlags{}, false, true},
		{"verbose", commonFlags{verbose: true}, true, true},
		{"quiet", commonFlags{quiet: true}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			logger := newLogger(&buf, tt.flags)
			logger.Debug("debug line")
			logger.Warn("warn line")

			if got := strings.Contains(buf.String(), "debug line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.Contains(buf.String(), "warn line"); got != tt.wantWarn {
				t.Errorf("warn logged = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}
