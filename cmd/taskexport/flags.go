package main

import (
	"os"

	flag "github.com/spf13/pflag"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// contentFlags selects what an export contains.
type contentFlags struct {
	title         string
	columns       string
	noHierarchy   bool
	noDetails     bool
	noAttachments bool
	orphans       string
	dateFormat    string
	codeStyle     string
}

// pageFlags holds page layout flags.
type pageFlags struct {
	size        string
	orientation string
	margin      float64
}

// footerFlags holds the static footer parts.
type footerFlags struct {
	text string
	date string
}

// mergeFlags selects the merge tool.
type mergeFlags struct {
	tool   string
	binary string
}

// exportFlags holds all flags for the export command.
type exportFlags struct {
	common          commonFlags
	output          string
	workers         int
	batchSize       int
	attachmentsRoot string
	workDir         string
	preview         bool
	content         contentFlags
	page            pageFlags
	footer          footerFlags
	merge           mergeFlags

	// set records the flags given on the command line.
	set map[string]bool
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show debug logs and timing")
}

// addContentFlags adds export content flags to a FlagSet.
func addContentFlags(fs *flag.FlagSet, f *contentFlags) {
	fs.StringVar(&f.title, "title", "", "overview heading")
	fs.StringVar(&f.columns, "columns", "", "overview columns: id,subject,status,assignee,priority,due")
	fs.BoolVar(&f.noHierarchy, "no-hierarchy", false, "export items flat, ignoring parents")
	fs.BoolVar(&f.noDetails, "no-details", false, "overview table only")
	fs.BoolVar(&f.noAttachments, "no-attachments", false, "list attachments instead of embedding images")
	fs.StringVar(&f.orphans, "orphans", "", "items with unknown parents: promote, reject")
	fs.StringVar(&f.dateFormat, "date-format", "", "due date format (e.g. DD/MM/YYYY)")
	fs.StringVar(&f.codeStyle, "code-style", "", "chroma style for code in descriptions")
}

// addPageFlags adds page layout flags to a FlagSet.
func addPageFlags(fs *flag.FlagSet, f *pageFlags) {
	fs.StringVarP(&f.size, "page-size", "p", "", "page size: letter, a4, legal")
	fs.StringVar(&f.orientation, "orientation", "", "page orientation: portrait, landscape")
	fs.Float64Var(&f.margin, "margin", 0, "page margin in inches (0.25-3.0)")
}

// addFooterFlags adds footer flags to a FlagSet.
func addFooterFlags(fs *flag.FlagSet, f *footerFlags) {
	fs.StringVar(&f.text, "footer-text", "", "footer text before the page number")
	fs.StringVar(&f.date, "footer-date", "", "footer date (\"auto\" = today)")
}

// addMergeFlags adds merge tool flags to a FlagSet.
func addMergeFlags(fs *flag.FlagSet, f *mergeFlags) {
	fs.StringVar(&f.tool, "merge-tool", "", "merge tool: pdfunite, qpdf, gs")
	fs.StringVar(&f.binary, "merge-binary", "", "merge tool executable path")
}

// parseExportFlags parses export command flags and returns positional args.
func parseExportFlags(args []string) (*exportFlags, []string, error) {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	f := &exportFlags{set: make(map[string]bool)}

	// I/O flags
	fs.StringVarP(&f.output, "output", "o", "", "output file or directory")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel exports (0 = auto)")
	fs.IntVarP(&f.batchSize, "batch-size", "b", 0, "items per unit when splitting (default 100)")
	fs.StringVar(&f.attachmentsRoot, "attachments-root", "", "directory attachment paths are relative to")
	fs.StringVar(&f.workDir, "work-dir", "", "parent directory for temporary unit files")
	fs.BoolVar(&f.preview, "preview", false, "also write an HTML outline next to each PDF")

	// Flag groups
	addCommonFlags(fs, &f.common)
	addContentFlags(fs, &f.content)
	addPageFlags(fs, &f.page)
	addFooterFlags(fs, &f.footer)
	addMergeFlags(fs, &f.merge)

	fs.Usage = func() { printExportUsage(os.Stderr) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })

	return f, fs.Args(), nil
}
