package audio

import (
	"context"
	"os"
	"os/exec"
)

// commandRunner executes external commands and returns their combined output.
type commandRunner interface {
	CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error)
}

// fileSystem is the subset of filesystem operations the chunker needs.
type fileSystem interface {
	Stat(name string) (os.FileInfo, error)
	MkdirTemp(dir, pattern string) (string, error)
	RemoveAll(path string) error
}

// osCommandRunner implements commandRunner using exec.CommandContext.
type osCommandRunner struct{}

func (osCommandRunner) CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error) {
	// #nosec G204 -- name and args are built by this package, not user input
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// osFileSystem implements fileSystem with the os package.
type osFileSystem struct{}

func (osFileSystem) Stat(name string) (os.FileInfo, error)         { return os.Stat(name) }
func (osFileSystem) MkdirTemp(dir, pattern string) (string, error) { return os.MkdirTemp(dir, pattern) }
func (osFileSystem) RemoveAll(path string) error                   { return os.RemoveAll(path) }
