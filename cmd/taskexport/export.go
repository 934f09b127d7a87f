package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	taskexport "github.com/alnah/go-taskexport"
	"github.com/alnah/go-taskexport/internal/config"
	"github.com/alnah/go-taskexport/internal/hierarchy"
	"github.com/alnah/go-taskexport/internal/hints"
	"github.com/alnah/go-taskexport/internal/merge"
	"github.com/alnah/go-taskexport/internal/render"
	"github.com/alnah/go-taskexport/internal/source"
)

// Sentinel errors for CLI operations.
var (
	ErrNoInput            = errors.New("no items file specified")
	ErrOutputNotDir       = errors.New("output must be a directory when exporting several files")
	ErrCreateOutputDir    = errors.New("failed to create output directory")
	ErrInvalidWorkerCount = errors.New("invalid worker count")
)

// File permission constants.
const dirPermissions = 0o750 // rwxr-x---: owner full, group read+execute

// MaxWorkers caps --workers.
const MaxWorkers = 32

// exportJob is one items file and where its PDF goes.
type exportJob struct {
	InputPath  string
	OutputPath string
}

// ExportResult holds the outcome of a single export.
type ExportResult struct {
	InputPath  string
	OutputPath string
	Doc        *taskexport.Document
	Err        error
	Duration   time.Duration
}

// runExportCmd runs the export command and returns an exit code.
func runExportCmd(args []string, deps *Dependencies) int {
	flags, positional, err := parseExportFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintln(deps.Stderr, err)
		return ExitUsage
	}

	// maxprocs.Set only fails on an invalid GOMAXPROCS value, in which case
	// the runtime default applies.
	if flags.common.verbose {
		_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
			fmt.Fprintf(deps.Stderr, format+"\n", args...)
		}))
	} else {
		_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))
	}

	warnUnknownEnvVars(deps.Stderr)

	ctx, stop := notifyContext(context.Background())
	defer stop()

	logger := newLogger(deps.Stderr, flags.common)
	results, cfg, err := runExport(ctx, positional, flags, deps, logger)
	if err != nil {
		fmt.Fprintln(deps.Stderr, "error: "+formatError(err, flags.common.config, ""))
		return exitCodeFor(err)
	}

	if failed := printResults(results, flags.common, cfg.Merge.Tool, deps); failed != nil {
		return exitCodeFor(failed)
	}
	return ExitSuccess
}

// newLogger logs text to w: debug with --verbose, errors only with --quiet,
// warnings otherwise.
func newLogger(w io.Writer, f commonFlags) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case f.verbose:
		level = slog.LevelDebug
	case f.quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// runExport loads configuration and exports every input. The error covers
// setup only; per-file failures are in the results.
func runExport(ctx context.Context, positional []string, flags *exportFlags, deps *Dependencies, logger *slog.Logger) ([]ExportResult, *config.Config, error) {
	env := loadEnvConfig()

	workers := flags.workers
	if !flags.set["workers"] {
		workers = env.Workers
	}
	if err := validateWorkers(workers); err != nil {
		return nil, nil, err
	}

	cfg, err := loadConfig(flags, env)
	if err != nil {
		return nil, nil, err
	}

	jobs, err := planJobs(positional, flags.output, cfg)
	if err != nil {
		return nil, nil, err
	}

	opts, err := exporterOptions(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	size := min(taskexport.ResolvePoolSize(workers), len(jobs))
	logger.Debug("exporting", "files", len(jobs), "workers", size)
	pool := deps.NewPool(size, opts...)
	defer func() { _ = pool.Close() }()

	return exportBatch(ctx, pool, jobs, cfg), cfg, nil
}

// validateWorkers checks the worker count range. 0 means auto.
func validateWorkers(n int) error {
	if n < 0 || n > MaxWorkers {
		return fmt.Errorf("%w: %d (must be 0-%d)", ErrInvalidWorkerCount, n, MaxWorkers)
	}
	return nil
}

// loadConfig merges config file, environment and flags, in increasing
// precedence.
func loadConfig(flags *exportFlags, env *envConfig) (*config.Config, error) {
	name := flags.common.config
	if name == "" {
		name = env.ConfigPath
	}

	cfg := config.DefaultConfig()
	if name != "" {
		var err error
		if cfg, err = config.LoadConfig(name); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	applyEnvConfig(env, cfg)
	mergeExportFlags(flags, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeExportFlags applies flags given on the command line to cfg.
func mergeExportFlags(f *exportFlags, cfg *config.Config) {
	set := f.set

	if set["title"] {
		cfg.Export.Title = f.content.title
	}
	if set["columns"] {
		cfg.Export.Columns = splitList(f.content.columns)
	}
	if f.content.noHierarchy {
		cfg.Export.Hierarchy = false
	}
	if f.content.noDetails {
		cfg.Export.Details = false
	}
	if f.content.noAttachments {
		cfg.Export.Attachments = false
	}
	if set["orphans"] {
		cfg.Export.Orphans = f.content.orphans
	}
	if set["date-format"] {
		cfg.Export.DateFormat = f.content.dateFormat
	}
	if set["code-style"] {
		cfg.Export.CodeStyle = f.content.codeStyle
	}
	if set["batch-size"] {
		cfg.Export.BatchSize = f.batchSize
	}

	if set["page-size"] {
		cfg.Page.Size = f.page.size
	}
	if set["orientation"] {
		cfg.Page.Orientation = f.page.orientation
	}
	if set["margin"] {
		cfg.Page.Margin = f.page.margin
	}

	if set["footer-text"] {
		cfg.Footer.Text = f.footer.text
	}
	if set["footer-date"] {
		cfg.Footer.Date = f.footer.date
	}

	if set["merge-tool"] {
		cfg.Merge.Tool = f.merge.tool
	}
	if set["merge-binary"] {
		cfg.Merge.Binary = f.merge.binary
	}

	if set["attachments-root"] {
		cfg.Input.AttachmentsRoot = f.attachmentsRoot
	}
	if set["work-dir"] {
		cfg.Output.WorkDir = f.workDir
	}
	if f.preview {
		cfg.Preview.Enabled = true
	}
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// planJobs pairs every input with its output path and creates output
// directories. A single input may name an output file; otherwise the output is
// a directory, defaulting to output.defaultDir and then to the input's own
// directory.
func planJobs(inputs []string, output string, cfg *config.Config) ([]exportJob, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInput
	}

	outputFile := output != "" && strings.EqualFold(filepath.Ext(output), ".pdf")
	if outputFile && len(inputs) > 1 {
		return nil, fmt.Errorf("%w: %s", ErrOutputNotDir, output)
	}

	dir := output
	if dir == "" {
		dir = cfg.Output.DefaultDir
	}

	jobs := make([]exportJob, 0, len(inputs))
	for _, in := range inputs {
		var out string
		switch {
		case outputFile:
			out = output
		case dir != "":
			out = filepath.Join(dir, pdfName(in))
		default:
			out = filepath.Join(filepath.Dir(in), pdfName(in))
		}
		if err := os.MkdirAll(filepath.Dir(out), dirPermissions); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCreateOutputDir, err)
		}
		jobs = append(jobs, exportJob{InputPath: in, OutputPath: out})
	}
	return jobs, nil
}

func pdfName(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".pdf"
}

// exporterOptions translates cfg into exporter options shared by every
// pooled exporter.
func exporterOptions(cfg *config.Config, logger *slog.Logger) ([]taskexport.Option, error) {
	orphans := taskexport.PromoteOrphans
	if cfg.Export.Orphans != "" {
		var err error
		if orphans, err = hierarchy.ParseOrphanPolicy(cfg.Export.Orphans); err != nil {
			return nil, err
		}
	}

	opts := []taskexport.Option{
		taskexport.WithLogger(logger),
		taskexport.WithBatchSize(cfg.Export.BatchSize),
		taskexport.WithOrphanPolicy(orphans),
		taskexport.WithMergeTool(cfg.Merge.Tool, cfg.Merge.Binary),
		taskexport.WithWorkDir(cfg.Output.WorkDir),
		taskexport.WithDateFormat(cfg.Export.DateFormat),
		taskexport.WithCodeStyle(cfg.Export.CodeStyle),
	}
	if cfg.Input.AttachmentsRoot != "" {
		opts = append(opts, taskexport.WithAttachmentRoot(cfg.Input.AttachmentsRoot))
	}
	if cfg.Preview.Enabled {
		opts = append(opts, taskexport.WithPreview())
	}
	return opts, nil
}

// buildRequest creates the export request for one job.
func buildRequest(cfg *config.Config, items []taskexport.Item, job exportJob) (taskexport.Request, error) {
	req := taskexport.Request{
		Items:              items,
		Output:             job.OutputPath,
		Hierarchy:          cfg.Export.Hierarchy,
		IncludeDetails:     cfg.Export.Details,
		IncludeAttachments: cfg.Export.Attachments,
		Title:              cfg.Export.Title,
		Page:               buildPageSettings(cfg.Page),
	}

	if cfg.Footer.Text != "" || cfg.Footer.Date != "" {
		req.Footer = &taskexport.Footer{Text: cfg.Footer.Text, Date: cfg.Footer.Date}
	}

	if len(cfg.Export.Columns) > 0 {
		cols, err := render.ParseColumns(strings.Join(cfg.Export.Columns, ","))
		if err != nil {
			return req, err
		}
		req.Overview = cols
	}
	return req, nil
}

// buildPageSettings fills unset page fields with defaults.
func buildPageSettings(p config.PageConfig) *taskexport.PageSettings {
	ps := taskexport.DefaultPageSettings()
	if p.Size != "" {
		ps.Size = p.Size
	}
	if p.Orientation != "" {
		ps.Orientation = p.Orientation
	}
	if p.Margin > 0 {
		ps.Margin = p.Margin
	}
	return ps
}

// resolveAttachments makes relative attachment paths relative to dir. Used
// when no attachments root is configured, so paths in an items file are
// relative to that file.
func resolveAttachments(items []taskexport.Item, dir string) {
	for i := range items {
		for j := range items[i].Attachments {
			p := items[i].Attachments[j].Path
			if p != "" && !filepath.IsAbs(p) {
				items[i].Attachments[j].Path = filepath.Join(dir, p)
			}
		}
	}
}

// exportBatch runs jobs concurrently on the pool. Each export stays
// single-threaded.
func exportBatch(ctx context.Context, pool Pool, jobs []exportJob, cfg *config.Config) []ExportResult {
	if len(jobs) == 0 {
		return nil
	}

	concurrency := min(pool.Size(), len(jobs))
	results := make([]ExportResult, len(jobs))
	queue := make(chan int, len(jobs))
	for i := range jobs {
		queue <- i
	}
	close(queue)

	var wg sync.WaitGroup
	for range concurrency {
		wg.Go(func() {
			exp, err := pool.Acquire(ctx)
			if err != nil {
				for idx := range queue {
					results[idx] = ExportResult{InputPath: jobs[idx].InputPath, Err: err}
				}
				return
			}
			defer pool.Release(exp)

			for idx := range queue {
				if ctx.Err() != nil {
					results[idx] = ExportResult{InputPath: jobs[idx].InputPath, Err: ctx.Err()}
					continue
				}
				results[idx] = exportFile(ctx, exp, jobs[idx], cfg)
			}
		})
	}

	wg.Wait()
	return results
}

// exportFile reads one items file and exports it.
func exportFile(ctx context.Context, exp Exporter, job exportJob, cfg *config.Config) (result ExportResult) {
	start := time.Now()
	result = ExportResult{InputPath: job.InputPath, OutputPath: job.OutputPath}
	defer func() { result.Duration = time.Since(start) }()

	src, err := source.Open(job.InputPath)
	if err != nil {
		result.Err = err
		return result
	}
	defer func() { _ = src.Close() }()

	items, err := src.Items(ctx)
	if err != nil {
		result.Err = err
		return result
	}
	if cfg.Input.AttachmentsRoot == "" {
		resolveAttachments(items, filepath.Dir(job.InputPath))
	}

	req, err := buildRequest(cfg, items, job)
	if err != nil {
		result.Err = err
		return result
	}

	result.Doc, result.Err = exp.Export(ctx, req)
	return result
}

// printResults reports every result and returns the first failure, if any.
func printResults(results []ExportResult, f commonFlags, mergeTool string, deps *Dependencies) error {
	var first error
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			if first == nil {
				first = r.Err
			}
			fmt.Fprintf(deps.Stderr, "%s %s: %s\n", errorStyle.Render("FAILED"), r.InputPath, formatError(r.Err, f.config, mergeTool))
			continue
		}
		if f.quiet {
			continue
		}
		if f.verbose {
			fmt.Fprintf(deps.Stdout, "%s -> %s (%d pages, %d units, %v)\n",
				r.InputPath, r.OutputPath, r.Doc.Pages, r.Doc.Units, r.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(deps.Stdout, "Created %s (%d pages)\n", r.OutputPath, r.Doc.Pages)
		}
		if r.Doc.Preview != "" {
			fmt.Fprintf(deps.Stdout, "Created %s\n", r.Doc.Preview)
		}
	}

	if !f.quiet && len(results) > 1 {
		fmt.Fprintln(deps.Stdout)
		fmt.Fprintln(deps.Stdout, summaryStyle.Render(fmt.Sprintf("%d succeeded, %d failed", len(results)-failed, failed)))
	}
	return first
}

// userMessage hides unclassified export detail, which is logged instead.
func userMessage(err error) string {
	var xerr *taskexport.ExportError
	if errors.As(err, &xerr) {
		return xerr.UserMessage()
	}
	return err.Error()
}

// formatError appends hints for errors users can act on.
func formatError(err error, configName, mergeTool string) string {
	msg := userMessage(err)

	var xerr *taskexport.ExportError
	switch {
	case errors.As(err, &xerr) && xerr.Kind == taskexport.KindLayoutOverflow:
		msg += hints.ForLayoutOverflow()
	case errors.As(err, &xerr) && xerr.Kind == taskexport.KindMergeFailure:
		if mergeTool == "" {
			mergeTool = merge.DefaultTool
		}
		msg += hints.ForMergeTool(mergeTool)
	case errors.Is(err, config.ErrConfigNotFound) && configName != "":
		msg += hints.ForConfigNotFound(config.SearchPaths(configName))
	case errors.Is(err, source.ErrUnsupported):
		msg += hints.ForItemsSource(source.Extensions())
	case errors.Is(err, ErrCreateOutputDir):
		msg += hints.ForOutputDirectory()
	}
	return msg
}
