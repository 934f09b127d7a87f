package main

// Notes:
// - Tests use t.Setenv(), which prevents t.Parallel().
// - applyEnvConfig: env values override the config file; empty values never
//   clear it.

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alnah/go-taskexport/internal/config"
)

// ---------------------------------------------------------------------------
// TestLoadEnvConfig - Environment variable loading
// ---------------------------------------------------------------------------

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv("TASKEXPORT_CONFIG", "weekly")
	t.Setenv("TASKEXPORT_OUTPUT_DIR", "/out")
	t.Setenv("TASKEXPORT_MERGE_TOOL", "qpdf")
	t.Setenv("TASKEXPORT_PAGE_SIZE", "a4")
	t.Setenv("TASKEXPORT_BATCH_SIZE", "50")
	t.Setenv("TASKEXPORT_WORKERS", "3")

	cfg := loadEnvConfig()

	if cfg.ConfigPath != "weekly" {
		t.Errorf("ConfigPath = %q, want weekly", cfg.ConfigPath)
	}
	if cfg.OutputDir != "/out" {
		t.Errorf("OutputDir = %q, want /out", cfg.OutputDir)
	}
	if cfg.MergeTool != "qpdf" {
		t.Errorf("MergeTool = %q, want qpdf", cfg.MergeTool)
	}
	if cfg.PageSize != "a4" {
		t.Errorf("PageSize = %q, want a4", cfg.PageSize)
	}
	if cfg.BatchSize != 50 || cfg.Workers != 3 {
		t.Errorf("BatchSize = %d, Workers = %d, want 50 and 3", cfg.BatchSize, cfg.Workers)
	}
}

func TestLoadEnvConfig_InvalidNumbers(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not a number", "many"},
		{"zero", "0"},
		{"negative", "-4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TASKEXPORT_BATCH_SIZE", tt.value)
			t.Setenv("TASKEXPORT_WORKERS", tt.value)

			cfg := loadEnvConfig()
			if cfg.BatchSize != 0 || cfg.Workers != 0 {
				t.Errorf("BatchSize = %d, Workers = %d, want both ignored", cfg.BatchSize, cfg.Workers)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestWarnUnknownEnvVars - Typo detection
// ---------------------------------------------------------------------------

func TestWarnUnknownEnvVars(t *testing.T) {
	t.Setenv("TASKEXPORT_MERGE_TOOL", "gs")
	t.Setenv("TASKEXPORT_MERG_TOOL", "gs")

	var buf bytes.Buffer
	warnUnknownEnvVars(&buf)

	out := buf.String()
	if !strings.Contains(out, "TASKEXPORT_MERG_TOOL") {
		t.Errorf("expected warning for typo, got %q", out)
	}
	if strings.Contains(out, "TASKEXPORT_MERGE_TOOL ") {
		t.Errorf("known variable reported: %q", out)
	}
}

// ---------------------------------------------------------------------------
// TestApplyEnvConfig - Priority over the config file
// ---------------------------------------------------------------------------

func TestApplyEnvConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Page.Size = "letter"
	cfg.Footer.Text = "from file"

	applyEnvConfig(&envConfig{
		OutputDir:   "/exports",
		MergeTool:   "gs",
		MergeBinary: "/opt/gs/bin/gs",
		PageSize:    "a4",
		BatchSize:   25,
	}, cfg)

	if cfg.Output.DefaultDir != "/exports" {
		t.Errorf("DefaultDir = %q", cfg.Output.DefaultDir)
	}
	if cfg.Merge.Tool != "gs" || cfg.Merge.Binary != "/opt/gs/bin/gs" {
		t.Errorf("Merge = %+v", cfg.Merge)
	}
	if cfg.Page.Size != "a4" {
		t.Errorf("Page.Size = %q, want a4", cfg.Page.Size)
	}
	if cfg.Export.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want 25", cfg.Export.BatchSize)
	}
	if cfg.Footer.Text != "from file" {
		t.Errorf("Footer.Text = %q, empty env must not clear it", cfg.Footer.Text)
	}
}
