package transcoder

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"mediadrop/internal/logging"
)

// Command is one external program invocation.
type Command struct {
	Name   string
	Args   []string
	Stdout io.Writer
	Stderr io.Writer
}

func (c Command) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// CommandRunner starts external programs. Tests substitute a fake.
type CommandRunner interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands with os/exec and tracks live processes so they can
// be killed on shutdown.
type ExecRunner struct {
	mu        sync.Mutex
	processes map[*exec.Cmd]string
}

// NewExecRunner creates a runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{processes: make(map[*exec.Cmd]string)}
}

// LookPath resolves a binary on PATH.
func (r *ExecRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Run starts cmd and waits for it. The process is killed when ctx is done.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr

	if err := c.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", cmd.Name, err)
	}

	r.mu.Lock()
	r.processes[c] = cmd.Name
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.processes, c)
		r.mu.Unlock()
	}()

	return c.Wait()
}

// Active returns the number of running processes.
func (r *ExecRunner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.processes)
}

// Cleanup kills all running processes.
func (r *ExecRunner) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c, name := range r.processes {
		if c.Process != nil {
			logging.Info("Killing %s process (pid %d)", name, c.Process.Pid)
			if err := c.Process.Kill(); err != nil {
				logging.Warn("failed to kill %s process: %v", name, err)
			}
		}
	}
}
