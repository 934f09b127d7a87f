package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: taskexport <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  export     Export work items to PDF")
	fmt.Fprintln(w, "  doctor     Check merge tool and system setup")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'taskexport help <command>' for details on a specific command.")
}

// printExportUsage prints usage for the export command.
func printExportUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: taskexport export <items>... [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Export work items to one PDF per items file.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  items    Items file: .yaml, .yml, .json, or a SQLite database (.db, .sqlite)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Input/Output:")
	fmt.Fprintln(w, "  -o, --output <path>          Output PDF (one input) or directory")
	fmt.Fprintln(w, "  -c, --config <name>          Config file name or path")
	fmt.Fprintln(w, "  -w, --workers <n>            Parallel exports (0 = auto)")
	fmt.Fprintln(w, "      --attachments-root <dir> Base directory of attachment paths")
	fmt.Fprintln(w, "      --work-dir <dir>         Parent directory for temporary unit files")
	fmt.Fprintln(w, "      --preview                Also write an HTML outline")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Content:")
	fmt.Fprintln(w, "      --title <s>              Overview heading (default \"Work items\")")
	fmt.Fprintln(w, "      --columns <list>         Overview columns: id,subject,status,assignee,priority,due")
	fmt.Fprintln(w, "      --no-hierarchy           Export items flat, ignoring parents")
	fmt.Fprintln(w, "      --no-details             Overview table only")
	fmt.Fprintln(w, "      --no-attachments         List attachments instead of embedding images")
	fmt.Fprintln(w, "      --orphans <s>            Unknown parents: promote (default), reject")
	fmt.Fprintln(w, "      --date-format <s>        Due date format, e.g. DD/MM/YYYY")
	fmt.Fprintln(w, "      --code-style <s>         Chroma style for code in descriptions")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Splitting:")
	fmt.Fprintln(w, "  -b, --batch-size <n>         Items per unit (default 100)")
	fmt.Fprintln(w, "      --merge-tool <s>         Merge tool: pdfunite, qpdf, gs")
	fmt.Fprintln(w, "      --merge-binary <path>    Merge tool executable")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Page:")
	fmt.Fprintln(w, "  -p, --page-size <s>          Page size: letter, a4, legal")
	fmt.Fprintln(w, "      --orientation <s>        Orientation: portrait, landscape")
	fmt.Fprintln(w, "      --margin <f>             Margin in inches (0.25-3.0)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Footer:")
	fmt.Fprintln(w, "      --footer-text <s>        Text before \"Page X of N\"")
	fmt.Fprintln(w, "      --footer-date <s>        Date: \"auto\", \"auto:FORMAT\", or literal")
	fmt.Fprintln(w, "                               Tokens: YYYY, YY, MMMM, MMM, MM, M, DD, D")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -q, --quiet                  Only show errors")
	fmt.Fprintln(w, "  -v, --verbose                Show debug logs and timing")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  TASKEXPORT_CONFIG, TASKEXPORT_OUTPUT_DIR, TASKEXPORT_WORK_DIR,")
	fmt.Fprintln(w, "  TASKEXPORT_ATTACHMENTS_ROOT, TASKEXPORT_MERGE_TOOL, TASKEXPORT_MERGE_BINARY,")
	fmt.Fprintln(w, "  TASKEXPORT_PAGE_SIZE, TASKEXPORT_FOOTER_TEXT, TASKEXPORT_BATCH_SIZE,")
	fmt.Fprintln(w, "  TASKEXPORT_WORKERS. A .env file in the current directory is loaded first.")
}

// runHelp prints help for a specific command.
func runHelp(args []string, deps *Dependencies) int {
	if len(args) == 0 {
		printUsage(deps.Stdout)
		return ExitSuccess
	}

	switch args[0] {
	case "export":
		printExportUsage(deps.Stdout)
	case "doctor":
		fmt.Fprintln(deps.Stdout, "Usage: taskexport doctor [--json]")
		fmt.Fprintln(deps.Stdout)
		fmt.Fprintln(deps.Stdout, "Check the merge tool, config files and temp directory.")
	case "version":
		fmt.Fprintln(deps.Stdout, "Usage: taskexport version")
		fmt.Fprintln(deps.Stdout)
		fmt.Fprintln(deps.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(deps.Stdout, "Usage: taskexport help [command]")
		fmt.Fprintln(deps.Stdout)
		fmt.Fprintln(deps.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(deps.Stderr, "Unknown command: %s\n", args[0])
		printUsage(deps.Stderr)
		return ExitUsage
	}
	return ExitSuccess
}
