package merge

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/alnah/go-taskexport/internal/fileutil"
	"github.com/alnah/go-taskexport/internal/pdfinfo"
)

// DefaultTool is the merge tool used when none is configured.
const DefaultTool = "pdfunite"

// maxDiagnostic caps the tool output quoted in errors.
const maxDiagnostic = 512

// toolSpec describes how to probe and drive one merge binary.
type toolSpec struct {
	version []string
	args    func(inputs []string, output string) []string
}

var toolSpecs = map[string]toolSpec{
	"pdfunite": {
		version: []string{"-v"},
		args: func(inputs []string, output string) []string {
			return append(slices.Clone(inputs), output)
		},
	},
	"qpdf": {
		version: []string{"--version"},
		args: func(inputs []string, output string) []string {
			args := append([]string{"--empty", "--pages"}, inputs...)
			return append(args, "--", output)
		},
	},
	"gs": {
		version: []string{"--version"},
		args: func(inputs []string, output string) []string {
			args := []string{"-dBATCH", "-dNOPAUSE", "-dQUIET", "-sDEVICE=pdfwrite", "-sOutputFile=" + output}
			return append(args, inputs...)
		},
	},
}

// Tools returns the supported merge tool names, sorted.
func Tools() []string {
	names := make([]string, 0, len(toolSpecs))
	for name := range toolSpecs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Tool merges through an external binary.
type Tool struct {
	Name   string // one of Tools()
	Binary string // executable to run; empty means Name looked up in PATH
	Runner CommandRunner

	spec toolSpec
}

// Compile-time interface check.
var _ Merger = (*Tool)(nil)

// NewTool creates a Tool for name with a real command runner. Empty name
// means DefaultTool.
func NewTool(name, binary string) (*Tool, error) {
	if name == "" {
		name = DefaultTool
	}
	spec, ok := toolSpecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownTool, name, strings.Join(Tools(), ", "))
	}
	return &Tool{Name: name, Binary: binary, Runner: &ExecRunner{}, spec: spec}, nil
}

func (t *Tool) binary() string {
	if t.Binary != "" {
		return t.Binary
	}
	return t.Name
}

// Available runs the tool's version query.
func (t *Tool) Available(ctx context.Context) bool {
	_, err := t.Version(ctx)
	return err == nil
}

// Version returns the first line the version query prints.
func (t *Tool) Version(ctx context.Context) (string, error) {
	stdout, stderr, err := t.Runner.Run(ctx, t.binary(), t.spec.version...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", t.Name, err)
	}
	out := strings.TrimSpace(stdout)
	if out == "" {
		// pdfunite -v prints to stderr.
		out = strings.TrimSpace(stderr)
	}
	line, _, _ := strings.Cut(out, "\n")
	return line, nil
}

// Merge runs the tool and verifies its output: it must exist, be non-empty
// and hold exactly as many pages as the inputs together.
func (t *Tool) Merge(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return ErrNoInputs
	}
	if slices.Contains(inputs, output) {
		return fmt.Errorf("%w: output %s is also an input", ErrMergeFailed, output)
	}

	_, stderr, err := t.Runner.Run(ctx, t.binary(), t.spec.args(inputs, output)...)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %s: %v%s", ErrMergeFailed, t.Name, err, diagnostic(stderr))
	}
	return Verify(inputs, output)
}

// Verify checks that output holds the pages of all inputs.
func Verify(inputs []string, output string) error {
	if err := fileutil.CheckNonEmpty(output); err != nil {
		return fmt.Errorf("%w: no output: %v", ErrMergeFailed, err)
	}
	want, err := pdfinfo.TotalPages(inputs)
	if err != nil {
		return fmt.Errorf("%w: counting input pages: %v", ErrMergeFailed, err)
	}
	got, err := pdfinfo.PageCount(output)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMergeFailed, err)
	}
	if got != want {
		return fmt.Errorf("%w: output has %d pages, inputs have %d", ErrMergeFailed, got, want)
	}
	return nil
}

func diagnostic(stderr string) string {
	s := strings.TrimSpace(stderr)
	if s == "" {
		return ""
	}
	if len(s) > maxDiagnostic {
		s = s[:maxDiagnostic] + "..."
	}
	return ": " + s
}
