package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/alnah/go-taskexport/internal/config"
	"github.com/alnah/go-taskexport/internal/fileutil"
	"github.com/alnah/go-taskexport/internal/merge"
)

// doctorProbeTimeout bounds each merge tool version query.
const doctorProbeTimeout = 5 * time.Second

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string     `json:"status"` // "ready", "warnings", "errors"
	Merge    mergeInfo  `json:"merge"`
	Tools    []toolInfo `json:"tools"`
	Config   configInfo `json:"config"`
	Env      envInfo    `json:"environment"`
	System   systemInfo `json:"system"`
	Warnings []string   `json:"warnings,omitempty"`
	Errors   []string   `json:"errors,omitempty"`
}

// mergeInfo describes the merge tool exports will use.
type mergeInfo struct {
	Tool      string `json:"tool"`
	Binary    string `json:"binary,omitempty"`
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
}

// toolInfo describes one supported merge tool found on the system.
type toolInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
}

// configInfo lists the default config files found.
type configInfo struct {
	Found []string `json:"found,omitempty"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempWritable bool `json:"temp_writable"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found.
func runDoctorCmd(args []string, deps *Dependencies) int {
	jsonOutput := false
	for _, arg := range args {
		if arg == "--json" {
			jsonOutput = true
		}
	}

	result := runDoctor(context.Background(), loadEnvConfig(), newVersioner)

	if jsonOutput {
		enc := json.NewEncoder(deps.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(deps.Stdout, result)
	}

	if result.Status == "errors" {
		return ExitGeneral
	}
	return ExitSuccess
}

// versioner queries a merge tool's version.
type versioner interface {
	Version(ctx context.Context) (string, error)
}

func newVersioner(name, binary string) (versioner, error) {
	return merge.NewTool(name, binary)
}

// runDoctor performs all diagnostic checks.
func runDoctor(ctx context.Context, env *envConfig, tool func(name, binary string) (versioner, error)) *doctorResult {
	result := &doctorResult{
		Status: "ready",
		Env: envInfo{
			OS:   runtime.GOOS,
			Arch: runtime.GOARCH,
		},
	}

	checkMergeTool(ctx, result, env, tool)
	checkConfig(result)
	checkEnvironment(result)
	checkSystem(result)

	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}
	return result
}

// checkMergeTool probes the configured tool and every supported one.
// A missing tool is a warning: exports still succeed as a single unit.
func checkMergeTool(ctx context.Context, result *doctorResult, env *envConfig, tool func(name, binary string) (versioner, error)) {
	name := env.MergeTool
	if name == "" {
		name = merge.DefaultTool
	}
	result.Merge = mergeInfo{Tool: name, Binary: env.MergeBinary}

	configured, err := tool(name, env.MergeBinary)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	} else {
		result.Merge.Version, result.Merge.Available = probe(ctx, configured)
		if !result.Merge.Available {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Merge tool %s not available: large exports are rendered as one unit", name))
		}
	}

	for _, n := range merge.Tools() {
		info := toolInfo{Name: n}
		if t, err := tool(n, ""); err == nil {
			info.Version, info.Available = probe(ctx, t)
		}
		result.Tools = append(result.Tools, info)
	}
}

func probe(ctx context.Context, v versioner) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, doctorProbeTimeout)
	defer cancel()
	version, err := v.Version(ctx)
	return version, err == nil
}

// checkConfig lists the default config files that exist.
func checkConfig(result *doctorResult) {
	for _, p := range config.SearchPaths("default") {
		if fileutil.FileExists(p) {
			result.Config.Found = append(result.Config.Found, p)
		}
	}
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult) {
	result.Env.Container, result.Env.ContainerHint = isContainer()

	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"} {
		if os.Getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer() (bool, string) {
	if os.Getenv("TASKEXPORT_CONTAINER") == "1" {
		return true, "TASKEXPORT_CONTAINER=1"
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true, "/.dockerenv"
	}
	if v := os.Getenv("container"); v != "" {
		return true, "container=" + v
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkSystem verifies the temp directory can hold unit files.
func checkSystem(result *doctorResult) {
	tmpDir := os.TempDir()
	testFile := filepath.Join(tmpDir, "taskexport-doctor-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Temp directory not writable: %s", tmpDir))
		return
	}
	_ = os.Remove(testFile)
	result.System.TempWritable = true
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, titleStyle.Render("taskexport doctor"))
	fmt.Fprintln(w)

	fmt.Fprintln(w, titleStyle.Render("Merge tool"))
	if r.Merge.Available {
		fmt.Fprintf(w, "  %s %s: %s\n", labelOK, r.Merge.Tool, r.Merge.Version)
	} else {
		fmt.Fprintf(w, "  %s %s: not available\n", labelWarn, r.Merge.Tool)
	}
	for _, t := range r.Tools {
		if t.Name == r.Merge.Tool {
			continue
		}
		if t.Available {
			fmt.Fprintf(w, "  %s %s: %s (alternative)\n", labelOK, t.Name, t.Version)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, titleStyle.Render("Config"))
	if len(r.Config.Found) == 0 {
		fmt.Fprintf(w, "  %s No default config (built-in defaults apply)\n", labelOK)
	}
	for _, p := range r.Config.Found {
		fmt.Fprintf(w, "  %s Found %s\n", labelOK, p)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, titleStyle.Render("Environment"))
	fmt.Fprintf(w, "  %s Platform: %s/%s\n", labelOK, r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintf(w, "  %s Container: detected (%s)\n", labelOK, r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintf(w, "  %s CI: detected\n", labelOK)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, titleStyle.Render("System"))
	if r.System.TempWritable {
		fmt.Fprintf(w, "  %s Temp directory: writable\n", labelOK)
	} else {
		fmt.Fprintf(w, "  %s Temp directory: not writable\n", labelError)
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  %s %s\n", labelWarn, warn)
		}
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  %s %s\n", labelError, err)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case "ready":
		fmt.Fprintln(w, "Status: Ready to export")
	case "warnings":
		fmt.Fprintln(w, "Status: Ready with warnings")
	case "errors":
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}
