package proc

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"

	"github.com/josephlewis42/dash/core/shell"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// RedirectPerm is the mode used to create redirection targets.
const RedirectPerm os.FileMode = 0700

var (
	// ErrRedirect is returned if a redirection target can't be opened.
	ErrRedirect = errors.New("couldn't open redirection target")

	// ErrExec is returned if a resolved file couldn't be executed.
	ErrExec = errors.New("couldn't execute file")

	// ErrResources is returned if the system couldn't create a process.
	ErrResources = errors.New("couldn't create process")
)

// Launcher starts external commands.
type Launcher struct {
	// Checker tests files for execute permission, defaults to AccessChecker.
	Checker Checker
	// Fs opens redirection targets, defaults to the OS filesystem.
	Fs afero.Fs

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Log receives diagnostic details about failures.
	Log *log.Logger

	// Start creates the child process, defaults to (*exec.Cmd).Start.
	Start func(*exec.Cmd) error

	stdout io.Writer
	stderr io.Writer
}

// outputs returns Stdout and Stderr guarded by a shared lock. Children of a
// parallel group copy into in-memory writers concurrently; files are passed
// to children directly and need no lock.
func (l *Launcher) outputs() (io.Writer, io.Writer) {
	if l.stdout == nil && l.stderr == nil {
		mu := &sync.Mutex{}
		l.stdout = newSafeWriter(mu, l.Stdout)
		l.stderr = newSafeWriter(mu, l.Stderr)

		// Children then share a single pipe, keeping their output in order.
		if interfaceEqual(l.Stdout, l.Stderr) {
			l.stderr = l.stdout
		}
	}
	return l.stdout, l.stderr
}

// ErrorStream returns Stderr guarded by the same lock children write with.
// Stdout and Stderr must not be changed after it or Launch is first called.
func (l *Launcher) ErrorStream() io.Writer {
	_, stderr := l.outputs()
	return stderr
}

func (l *Launcher) checker() Checker {
	if l.Checker == nil {
		return AccessChecker{}
	}
	return l.Checker
}

func (l *Launcher) fs() afero.Fs {
	if l.Fs == nil {
		return afero.NewOsFs()
	}
	return l.Fs
}

func (l *Launcher) start(cmd *exec.Cmd) error {
	if l.Start == nil {
		return cmd.Start()
	}
	return l.Start(cmd)
}

func (l *Launcher) logf(format string, v ...interface{}) {
	if l.Log != nil {
		l.Log.Printf(format, v...)
	}
}

// Launch starts cmd in dir without waiting for it to finish.
//
// Resolution, redirection and execution failures write the error message and
// return a Process that already exited with status 1, as if a child had
// reported the failure itself. If no process could be created at all, the
// error message is written and an error wrapping ErrResources is returned
// without a Process.
func (l *Launcher) Launch(cmd shell.Command, sp *SearchPath, dir string) (*Process, error) {
	proc := &Process{Argv: cmd.Argv, log: l.Log}
	stdout, stderr := l.outputs()
	errStream := stderr

	path, err := LookPath(l.checker(), sp, dir, cmd.Name())
	if err != nil {
		return l.fail(proc, errStream, err), nil
	}
	proc.Path = path

	if cmd.Redirect.Set {
		target := Abs(dir, cmd.Redirect.Target)
		fd, err := l.fs().OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, RedirectPerm)
		if err != nil {
			return l.fail(proc, errStream, fmt.Errorf("%w: %v", ErrRedirect, err)), nil
		}
		proc.closers = append(proc.closers, fd)
		stdout, stderr = fd, fd
	}

	execCmd := &exec.Cmd{
		Path:   path,
		Args:   cmd.Argv,
		Dir:    dir,
		Stdin:  l.Stdin,
		Stdout: stdout,
		Stderr: stderr,
	}

	if err := l.start(execCmd); err != nil {
		if isResourceExhaustion(err) {
			proc.close()
			WriteError(errStream)
			l.logf("%s: %v", cmd.Name(), err)
			return nil, fmt.Errorf("%w: %v", ErrResources, err)
		}

		// Without a child the message goes wherever the child's stderr would.
		return l.fail(proc, stderr, fmt.Errorf("%w: %v", ErrExec, err)), nil
	}

	proc.cmd = execCmd
	return proc, nil
}

func (l *Launcher) fail(proc *Process, w io.Writer, err error) *Process {
	WriteError(w)
	l.logf("%s: %v", proc.Name(), err)

	proc.close()
	proc.err = err
	proc.status = 1
	proc.done = true
	return proc
}

func isResourceExhaustion(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.ENOMEM)
}

type safeWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func newSafeWriter(mu *sync.Mutex, w io.Writer) io.Writer {
	switch w.(type) {
	case nil, *os.File:
		return w
	}
	return &safeWriter{mu: mu, w: w}
}

func (s *safeWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func interfaceEqual(a, b interface{}) bool {
	defer func() {
		recover()
	}()
	return a == b
}
