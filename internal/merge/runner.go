package merge

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/alnah/go-taskexport/internal/process"
)

// waitDelay bounds how long Run waits for output pipes after a kill.
const waitDelay = 5 * time.Second

// CommandRunner abstracts command execution to enable testing without real subprocesses.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout string, stderr string, err error)
}

// ExecRunner implements CommandRunner using os/exec. Canceling ctx kills the
// whole process group of the command.
type ExecRunner struct{}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 -- tool name comes from a fixed table
	process.Detach(cmd)
	cmd.Cancel = func() error {
		process.KillGroup(cmd.Process.Pid)
		return cmd.Process.Kill()
	}
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		err = ctxErr
	}
	return stdout.String(), stderr.String(), err
}
