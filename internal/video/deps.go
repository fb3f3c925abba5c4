package video

import (
	"bytes"
	"context"
	"os/exec"
)

// commandRunner executes external commands, keeping stdout and stderr apart.
// Raw frames arrive on stdout while ffmpeg reports on stderr.
type commandRunner interface {
	Output(ctx context.Context, name string, args []string) (stdout, stderr []byte, err error)
}

// osCommandRunner implements commandRunner using exec.CommandContext.
type osCommandRunner struct{}

func (osCommandRunner) Output(ctx context.Context, name string, args []string) ([]byte, []byte, error) {
	// #nosec G204 -- name and args are built by this package, not user input
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
