// Package config loads export settings from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alnah/go-taskexport/internal/dateutil"
	"github.com/alnah/go-taskexport/internal/fileutil"
	"github.com/alnah/go-taskexport/internal/hierarchy"
	"github.com/alnah/go-taskexport/internal/merge"
	"github.com/alnah/go-taskexport/internal/render"
	"github.com/alnah/go-taskexport/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Field length limits.
const (
	MaxTitleLength       = 200
	MaxTextLength        = 500 // footer text
	MaxDateLength        = 30  // "auto:DD/MM/YYYY" or a literal date
	MaxPathLength        = 4096
	MaxPageSizeLength    = 10
	MaxOrientationLength = 10
	MaxStyleLength       = 50
)

// MaxBatchSize bounds export.batchSize.
const MaxBatchSize = 10000

// dirName is the directory under the user config dir searched for names.
const dirName = "go-taskexport"

// Config holds all configuration for an export run.
type Config struct {
	Input   InputConfig   `yaml:"input"`
	Output  OutputConfig  `yaml:"output"`
	Export  ExportConfig  `yaml:"export"`
	Page    PageConfig    `yaml:"page"`
	Footer  FooterConfig  `yaml:"footer"`
	Merge   MergeConfig   `yaml:"merge"`
	Preview PreviewConfig `yaml:"preview"`
}

// InputConfig defines where items and attachments come from.
type InputConfig struct {
	AttachmentsRoot string `yaml:"attachmentsRoot"` // empty = directory of the items file
}

// OutputConfig defines output destination options.
type OutputConfig struct {
	DefaultDir string `yaml:"defaultDir"` // empty = next to the items file
	WorkDir    string `yaml:"workDir"`    // parent of per-export work dirs; empty = os.TempDir()
}

// ExportConfig controls what an export contains.
type ExportConfig struct {
	Title       string   `yaml:"title"`
	Hierarchy   bool     `yaml:"hierarchy"`
	Details     bool     `yaml:"details"`
	Attachments bool     `yaml:"attachments"`
	BatchSize   int      `yaml:"batchSize"` // 0 = default
	Orphans     string   `yaml:"orphans"`   // "promote" or "reject"
	Columns     []string `yaml:"columns"`   // overview columns; empty = default set
	DateFormat  string   `yaml:"dateFormat"`
	CodeStyle   string   `yaml:"codeStyle"` // chroma style name
}

// PageConfig defines PDF page settings.
type PageConfig struct {
	Size        string  `yaml:"size"`        // "letter", "a4", "legal" (default: "letter")
	Orientation string  `yaml:"orientation"` // "portrait", "landscape" (default: "portrait")
	Margin      float64 `yaml:"margin"`      // inches (default: 0.5)
}

// FooterConfig defines the static part of page footers.
type FooterConfig struct {
	Text string `yaml:"text"`
	Date string `yaml:"date"` // literal, "auto" or "auto:FORMAT"
}

// MergeConfig selects the external merge tool.
type MergeConfig struct {
	Tool   string `yaml:"tool"`   // "pdfunite", "qpdf" or "gs"
	Binary string `yaml:"binary"` // override executable path
}

// PreviewConfig enables the HTML outline written next to the PDF.
type PreviewConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Validate checks field lengths and enumerated values. Called by LoadConfig,
// but available for configs assembled from flags and environment.
func (c *Config) Validate() error {
	fields := []struct {
		name  string
		value string
		max   int
	}{
		{"input.attachmentsRoot", c.Input.AttachmentsRoot, MaxPathLength},
		{"output.defaultDir", c.Output.DefaultDir, MaxPathLength},
		{"output.workDir", c.Output.WorkDir, MaxPathLength},
		{"export.title", c.Export.Title, MaxTitleLength},
		{"export.dateFormat", c.Export.DateFormat, MaxDateLength},
		{"export.codeStyle", c.Export.CodeStyle, MaxStyleLength},
		{"page.size", c.Page.Size, MaxPageSizeLength},
		{"page.orientation", c.Page.Orientation, MaxOrientationLength},
		{"footer.text", c.Footer.Text, MaxTextLength},
		{"footer.date", c.Footer.Date, MaxDateLength},
		{"merge.binary", c.Merge.Binary, MaxPathLength},
	}
	for _, f := range fields {
		if err := validateFieldLength(f.name, f.value, f.max); err != nil {
			return err
		}
	}

	if c.Export.BatchSize < 0 || c.Export.BatchSize > MaxBatchSize {
		return fmt.Errorf("%w: export.batchSize must be between 0 and %d, got %d", ErrInvalidValue, MaxBatchSize, c.Export.BatchSize)
	}
	if c.Export.Orphans != "" {
		if _, err := hierarchy.ParseOrphanPolicy(c.Export.Orphans); err != nil {
			return fmt.Errorf("%w: export.orphans: %v", ErrInvalidValue, err)
		}
	}
	if len(c.Export.Columns) > 0 {
		if _, err := render.ParseColumns(strings.Join(c.Export.Columns, ",")); err != nil {
			return fmt.Errorf("%w: export.columns: %v", ErrInvalidValue, err)
		}
	}
	if c.Export.DateFormat != "" {
		if _, err := dateutil.Layout(c.Export.DateFormat); err != nil {
			return fmt.Errorf("%w: export.dateFormat: %v", ErrInvalidValue, err)
		}
	}
	if c.Merge.Tool != "" && !slices.Contains(merge.Tools(), c.Merge.Tool) {
		return fmt.Errorf("%w: merge.tool %q (must be one of %s)", ErrInvalidValue, c.Merge.Tool, strings.Join(merge.Tools(), ", "))
	}
	if c.Page.Margin < 0 {
		return fmt.Errorf("%w: page.margin must not be negative, got %.2f", ErrInvalidValue, c.Page.Margin)
	}
	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// DefaultConfig returns the configuration used when no file is given:
// hierarchical export with detail sections and embedded attachments.
func DefaultConfig() *Config {
	return &Config{
		Export: ExportConfig{
			Hierarchy:   true,
			Details:     true,
			Attachments: true,
			Orphans:     hierarchy.PromoteOrphans.String(),
		},
		Merge: MergeConfig{Tool: merge.DefaultTool},
	}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's searched by name (see SearchPaths). Fields missing from the
// file keep their DefaultConfig values. Returns an error if the file is not
// found.
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !fileutil.IsFilePath(nameOrPath) {
		var err error
		if configPath, err = resolveConfigPath(nameOrPath); err != nil {
			return nil, err
		}
	}

	cfg := DefaultConfig()
	if err := yamlutil.ReadFile(configPath, cfg, true); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SearchPaths lists the files tried for a config name, in order: the current
// directory, then the user config directory, each with .yaml and .yml.
func SearchPaths(name string) []string {
	extensions := []string{".yaml", ".yml"}
	paths := make([]string, 0, len(extensions)*2)
	for _, ext := range extensions {
		paths = append(paths, name+ext)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(dir, dirName, name+ext))
		}
	}
	return paths
}

func resolveConfigPath(name string) (string, error) {
	tried := SearchPaths(name)
	for _, p := range tried {
		if fileutil.FileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(tried, ", "))
}
