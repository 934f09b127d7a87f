//go:build windows

package process

import (
	"os/exec"
	"strconv"
)

// Detach is a no-op on Windows; KillGroup walks the tree with taskkill.
func Detach(cmd *exec.Cmd) {}

// KillGroup kills a process and all its children using taskkill.
// /F = force kill, /T = terminate child processes (tree kill).
func KillGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}
