package cdrwatch

import (
	"context"
	"fmt"
	"os/exec"
)

// Launcher starts the CDR executable. Launch returns once the process has
// started; it does not wait for the process to exit.
type Launcher interface {
	Launch(ctx context.Context) error
}

// ExecLauncher launches an executable on the host.
type ExecLauncher struct {
	Path   string
	Args   []string
	Logger *Logger

	// makeCmd overrides command creation for testing. If nil, exec.Command is used.
	makeCmd func(name string, args ...string) *exec.Cmd
}

// NewExecLauncher returns a launcher for the executable at path.
func NewExecLauncher(path string, logger *Logger) *ExecLauncher {
	return &ExecLauncher{Path: path, Logger: logger}
}

// Launch starts the executable and reaps it in the background. The child is
// not bound to ctx, so stopping the watcher never kills a sweep in progress.
func (l *ExecLauncher) Launch(_ context.Context) error {
	newCmd := l.makeCmd
	if newCmd == nil {
		newCmd = exec.Command
	}
	cmd := newCmd(l.Path, l.Args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", l.Path, err)
	}

	pid := cmd.Process.Pid
	go func() {
		if err := cmd.Wait(); err != nil {
			l.Logger.Write(LevelDebug, fmt.Sprintf("CDR executable (pid %d) exited", pid), err)
			return
		}
		l.Logger.Debug("CDR executable (pid %d) exited cleanly", pid)
	}()
	return nil
}
