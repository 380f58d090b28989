package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/josephlewis42/dash/core/proc"
	"golang.org/x/sys/unix"
)

// ErrUsage is returned when a builtin is called with the wrong arguments.
var ErrUsage = errors.New("wrong number of arguments")

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]ShellBuiltin)

// ShellBuiltin runs inside the shell process rather than in a child.
//
// siblings holds the processes already started for the current line so far,
// it's empty outside of a parallel group.
type ShellBuiltin interface {
	Main(s *Shell, args []string, siblings proc.Group) error
}

type ShellBuiltinFunc func(s *Shell, args []string, siblings proc.Group) error

func (f ShellBuiltinFunc) Main(s *Shell, args []string, siblings proc.Group) error {
	return f(s, args, siblings)
}

var _ ShellBuiltin = (ShellBuiltinFunc)(nil)

// BuiltinNames returns the sorted names of all builtins.
func BuiltinNames() []string {
	var names []string
	for k := range AllBuiltins {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Exit quits the shell once the processes already started on the line
// finish.
func Exit(s *Shell, args []string, siblings proc.Group) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: exit takes none, got %d", ErrUsage, len(args)-1)
	}

	s.wait(siblings)
	s.Quit = true
	return nil
}

// Cd is the cd shell builtin
func Cd(s *Shell, args []string, siblings proc.Group) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: cd takes 1, got %d", ErrUsage, len(args)-1)
	}

	// Left uncleaned, ".." is resolved by the kernel after symlinks.
	target := args[1]
	if !filepath.IsAbs(target) {
		target = s.Dir + string(filepath.Separator) + target
	}

	info, err := os.Stat(target)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &fs.PathError{Op: "chdir", Path: target, Err: syscall.ENOTDIR}
	}
	if err := unix.Access(target, unix.X_OK); err != nil {
		return &fs.PathError{Op: "chdir", Path: target, Err: err}
	}

	physical, err := filepath.EvalSymlinks(target)
	if err != nil {
		return err
	}

	s.Dir = physical
	return nil
}

// Path replaces the search path with its arguments.
func Path(s *Shell, args []string, siblings proc.Group) error {
	s.Path = proc.NewSearchPath(args[1:]...)
	s.Log.Printf("path: %q", s.Path.Dirs())
	return nil
}

func init() {
	AllBuiltins["exit"] = ShellBuiltinFunc(Exit)
	AllBuiltins["cd"] = ShellBuiltinFunc(Cd)
	AllBuiltins["path"] = ShellBuiltinFunc(Path)
}
