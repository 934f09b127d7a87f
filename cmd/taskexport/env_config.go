package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alnah/go-taskexport/internal/config"
)

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without requiring YAML files.
type envConfig struct {
	ConfigPath      string // TASKEXPORT_CONFIG: config file name or path
	OutputDir       string // TASKEXPORT_OUTPUT_DIR: default output directory
	WorkDir         string // TASKEXPORT_WORK_DIR: parent of work directories
	AttachmentsRoot string // TASKEXPORT_ATTACHMENTS_ROOT: attachment base directory
	MergeTool       string // TASKEXPORT_MERGE_TOOL: pdfunite, qpdf, gs
	MergeBinary     string // TASKEXPORT_MERGE_BINARY: merge tool executable
	PageSize        string // TASKEXPORT_PAGE_SIZE: a4, letter, legal
	FooterText      string // TASKEXPORT_FOOTER_TEXT: footer text
	BatchSize       int    // TASKEXPORT_BATCH_SIZE: items per unit
	Workers         int    // TASKEXPORT_WORKERS: parallel exports
}

// knownEnvVars lists valid TASKEXPORT_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"TASKEXPORT_CONFIG":           true,
	"TASKEXPORT_OUTPUT_DIR":       true,
	"TASKEXPORT_WORK_DIR":         true,
	"TASKEXPORT_ATTACHMENTS_ROOT": true,
	"TASKEXPORT_MERGE_TOOL":       true,
	"TASKEXPORT_MERGE_BINARY":     true,
	"TASKEXPORT_PAGE_SIZE":        true,
	"TASKEXPORT_FOOTER_TEXT":      true,
	"TASKEXPORT_BATCH_SIZE":       true,
	"TASKEXPORT_WORKERS":          true,
	"TASKEXPORT_CONTAINER":        true, // doctor only
}

// loadEnvConfig reads configuration from environment variables.
// Invalid numbers are ignored.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		ConfigPath:      os.Getenv("TASKEXPORT_CONFIG"),
		OutputDir:       os.Getenv("TASKEXPORT_OUTPUT_DIR"),
		WorkDir:         os.Getenv("TASKEXPORT_WORK_DIR"),
		AttachmentsRoot: os.Getenv("TASKEXPORT_ATTACHMENTS_ROOT"),
		MergeTool:       os.Getenv("TASKEXPORT_MERGE_TOOL"),
		MergeBinary:     os.Getenv("TASKEXPORT_MERGE_BINARY"),
		PageSize:        os.Getenv("TASKEXPORT_PAGE_SIZE"),
		FooterText:      os.Getenv("TASKEXPORT_FOOTER_TEXT"),
	}

	if v := os.Getenv("TASKEXPORT_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BatchSize = n
		}
	}
	if v := os.Getenv("TASKEXPORT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}

	return cfg
}

// warnUnknownEnvVars warns about unrecognized TASKEXPORT_* variables.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "TASKEXPORT_") {
			name, _, _ := strings.Cut(env, "=")
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig applies environment variable values to config.
// Precedence: CLI flags > env vars > config file > defaults
// (CLI flags are applied later via mergeExportFlags).
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.OutputDir != "" {
		cfg.Output.DefaultDir = env.OutputDir
	}
	if env.WorkDir != "" {
		cfg.Output.WorkDir = env.WorkDir
	}
	if env.AttachmentsRoot != "" {
		cfg.Input.AttachmentsRoot = env.AttachmentsRoot
	}
	if env.MergeTool != "" {
		cfg.Merge.Tool = env.MergeTool
	}
	if env.MergeBinary != "" {
		cfg.Merge.Binary = env.MergeBinary
	}
	if env.PageSize != "" {
		cfg.Page.Size = env.PageSize
	}
	if env.FooterText != "" {
		cfg.Footer.Text = env.FooterText
	}
	if env.BatchSize > 0 {
		cfg.Export.BatchSize = env.BatchSize
	}
}
