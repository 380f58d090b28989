package proc

import (
	"errors"
	"io"
	"log"
	"os"
	"os/exec"
	"syscall"
)

// Process records a command started for one line and, once waited on, its
// exit status.
type Process struct {
	// Argv holds the command and its arguments.
	Argv []string
	// Path is the resolved executable, empty if resolution failed.
	Path string

	cmd     *exec.Cmd
	err     error
	status  int
	done    bool
	closers []io.Closer
	log     *log.Logger
}

// Name returns the command name.
func (p *Process) Name() string {
	if len(p.Argv) == 0 {
		return ""
	}
	return p.Argv[0]
}

// Pid returns the OS process ID or 0 if no process was started.
func (p *Process) Pid() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Started is true if an OS process was created.
func (p *Process) Started() bool {
	return p.cmd != nil
}

// Err returns the reason the command failed to start, if any.
func (p *Process) Err() error {
	return p.err
}

// Wait blocks until the process terminates and returns its exit status.
// Processes killed by a signal report 128 plus the signal number.
//
// The OS process is waited on exactly once; later calls return the recorded
// status.
func (p *Process) Wait() int {
	if p.done {
		return p.status
	}
	p.done = true

	// Wait only returns for exited or signaled children, never stopped ones.
	// Other errors come from copying output and don't change the status.
	var exitErr *exec.ExitError
	if err := p.cmd.Wait(); err != nil && !errors.As(err, &exitErr) && p.log != nil {
		p.log.Printf("%s: %v", p.Name(), err)
	}
	p.status = exitStatus(p.cmd.ProcessState)
	p.close()

	return p.status
}

func (p *Process) close() {
	for _, c := range p.closers {
		c.Close()
	}
	p.closers = nil
}

func exitStatus(state *os.ProcessState) int {
	if state == nil {
		return 1
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

// Group holds the processes started for a single line.
type Group []*Process

// Wait waits for every process in the group and returns their statuses in
// order.
func (g Group) Wait() []int {
	out := make([]int, len(g))
	for i, p := range g {
		out[i] = p.Wait()
	}
	return out
}
