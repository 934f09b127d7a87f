// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"os"
	"strings"

	"github.com/alnah/go-taskexport/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// mergePackages names the package shipping each supported merge tool.
var mergePackages = map[string]string{
	"pdfunite": "poppler-utils",
	"qpdf":     "qpdf",
	"gs":       "ghostscript",
}

// ForMergeTool returns hints for a missing or failing merge tool.
// Large exports still succeed without one, rendered as a single batch.
func ForMergeTool(tool string) string {
	var hints []string

	if pkg, ok := mergePackages[tool]; ok {
		if IsInContainer() {
			hints = append(hints, "add "+pkg+" to the image (apt-get install "+pkg+")")
		} else {
			hints = append(hints, "install "+pkg)
		}
	}

	if os.Getenv("TASKEXPORT_MERGE_TOOL") == "" {
		hints = append(hints, "set TASKEXPORT_MERGE_TOOL to pdfunite, qpdf or gs")
	}

	return formatHints(hints)
}

// ForLayoutOverflow returns hints for content that does not fit the page.
func ForLayoutOverflow() string {
	return format("drop overview columns with --columns or use --orientation landscape")
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config flag and creating a config in ~/.config/go-taskexport/.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	for _, p := range searchedPaths {
		if strings.Contains(p, ".config/go-taskexport") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForOutputDirectory returns hints for output directory creation errors.
func ForOutputDirectory() string {
	return format("check parent directory exists and is writable")
}

// ForItemsSource returns hints for unreadable item sources.
func ForItemsSource(supported []string) string {
	if len(supported) == 0 {
		return ""
	}
	return format("supported sources: " + strings.Join(supported, ", "))
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
