package core

import (
	"errors"
	"io"
	"io/ioutil"
	"log"
	"os"

	"github.com/josephlewis42/dash/core/logger"
	"github.com/josephlewis42/dash/core/proc"
	"github.com/josephlewis42/dash/core/shell"
	"github.com/spf13/afero"
)

// Options configures a new Shell. Zero values are replaced with defaults.
type Options struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Path is the initial search path, defaults to /bin.
	Path *proc.SearchPath
	// Dir is the initial working directory, defaults to the process's.
	Dir string

	// Checker tests files for execute permission.
	Checker proc.Checker
	// Fs is used to open redirection targets.
	Fs afero.Fs

	Events *logger.SessionLogger
	Log    *log.Logger
}

// Shell executes dash command lines.
type Shell struct {
	// Path is the current search path. The path builtin replaces it.
	Path *proc.SearchPath
	// Dir is the working directory commands are started in.
	Dir string

	Launcher *proc.Launcher
	Events   *logger.SessionLogger
	Log      *log.Logger

	// Set to true to quit the shell
	Quit bool
}

// New creates a shell.
func New(opts Options) *Shell {
	if opts.Path == nil {
		opts.Path = proc.DefaultSearchPath()
	}
	if opts.Dir == "" {
		opts.Dir, _ = os.Getwd()
	}
	if opts.Log == nil {
		opts.Log = log.New(ioutil.Discard, "", 0)
	}
	if opts.Events == nil {
		opts.Events = logger.NewNopLogger().NewSession()
	}

	return &Shell{
		Path: opts.Path,
		Dir:  opts.Dir,
		Launcher: &proc.Launcher{
			Checker: opts.Checker,
			Fs:      opts.Fs,
			Stdin:   opts.Stdin,
			Stdout:  opts.Stdout,
			Stderr:  opts.Stderr,
			Log:     opts.Log,
		},
		Events: opts.Events,
		Log:    opts.Log,
	}
}

// Run processes lines from r until end of input or exit. It returns the
// status the interpreter should exit with.
func (s *Shell) Run(r LineReader) int {
	for !s.Quit {
		line, err := r.ReadLine()
		switch {
		case err == io.EOF:
			return 0
		case err != nil:
			s.writeError()
			s.Log.Printf("read: %v", err)
			return 1
		}

		s.ProcessLine(line)
	}
	return 0
}

// ProcessLine executes a single line. Every command of a parallel group is
// started before any is waited on, and all are finished before it returns.
func (s *Shell) ProcessLine(line string) {
	if shell.IsBlank(line) {
		return
	}

	subs, err := shell.SplitLine(line)
	if err != nil {
		s.syntaxError(line, err)
		return
	}

	var group proc.Group
	for _, sub := range subs {
		cmd, err := shell.ParseCommand(sub)
		if err != nil {
			s.syntaxError(sub, err)
			continue
		}
		if cmd.Empty() {
			continue
		}

		if builtin, ok := AllBuiltins[cmd.Name()]; ok {
			s.runBuiltin(builtin, cmd, group)
			if s.Quit {
				return
			}
			continue
		}

		if p := s.launch(cmd); p != nil {
			group = append(group, p)
		}
	}

	s.wait(group)
}

func (s *Shell) writeError() {
	proc.WriteError(s.Launcher.ErrorStream())
}

func (s *Shell) record(event string, fields logger.Fields) {
	if err := s.Events.Record(event, fields); err != nil {
		s.Log.Printf("event log: %v", err)
	}
}

func (s *Shell) syntaxError(line string, err error) {
	s.writeError()
	s.Log.Printf("%v: %q", err, line)
	s.record(logger.EventSyntaxError, logger.Fields{
		logger.FieldLine:  line,
		logger.FieldError: err.Error(),
	})
}

func (s *Shell) runBuiltin(builtin ShellBuiltin, cmd shell.Command, siblings proc.Group) {
	if cmd.Redirect.Set {
		s.Log.Printf("%s: builtins ignore redirection to %q", cmd.Name(), cmd.Redirect.Target)
	}

	fields := logger.Fields{logger.FieldCommand: logger.Strings(cmd.Argv)}
	if err := builtin.Main(s, cmd.Argv, siblings); err != nil {
		s.writeError()
		s.Log.Printf("%s: %v", cmd.Name(), err)
		fields[logger.FieldError] = err.Error()
		s.record(logger.EventBuiltinError, fields)
		return
	}
	s.record(logger.EventBuiltin, fields)
}

func (s *Shell) launch(cmd shell.Command) *proc.Process {
	fields := logger.Fields{logger.FieldCommand: logger.Strings(cmd.Argv)}

	p, err := s.Launcher.Launch(cmd, s.Path, s.Dir)
	switch {
	case err != nil:
		fields[logger.FieldError] = err.Error()
		s.record(logger.EventLaunchError, fields)
		return nil

	case !p.Started():
		fields[logger.FieldError] = p.Err().Error()
		if errors.Is(p.Err(), proc.ErrNotFound) || errors.Is(p.Err(), proc.ErrEmptyPath) {
			s.record(logger.EventUnknownCommand, fields)
		} else {
			s.record(logger.EventLaunchError, fields)
		}

	default:
		fields[logger.FieldResolvedPath] = p.Path
		fields[logger.FieldPid] = p.Pid()
		s.record(logger.EventRunCommand, fields)
	}

	return p
}

// wait blocks until every process in the group has terminated.
func (s *Shell) wait(group proc.Group) {
	for i, status := range group.Wait() {
		p := group[i]
		if !p.Started() {
			continue
		}
		s.record(logger.EventExitStatus, logger.Fields{
			logger.FieldCommand: logger.Strings(p.Argv),
			logger.FieldPid:     p.Pid(),
			logger.FieldStatus:  status,
		})
	}
}
