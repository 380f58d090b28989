package proc

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"golang.org/x/sys/unix"
)

var (
	// ErrNotFound is returned if no directory in the search path holds an
	// executable with the requested name.
	ErrNotFound = errors.New("executable file not found in search path")

	// ErrEmptyPath is returned when resolving against an empty search path.
	ErrEmptyPath = errors.New("search path is empty")
)

// Checker tests whether a file may be executed.
type Checker interface {
	Executable(path string) error
}

// AccessChecker asks the kernel whether the current user may execute a file.
type AccessChecker struct{}

var _ Checker = AccessChecker{}

func (AccessChecker) Executable(path string) error {
	if err := unix.Access(path, unix.X_OK); err != nil {
		return &fs.PathError{Op: "access", Path: path, Err: err}
	}
	return nil
}

// LookPath searches the directories of sp, in order, for an executable named
// name. Relative directories are resolved against dir.
//
// Only the failure of the last directory probed is reported.
func LookPath(checker Checker, sp *SearchPath, dir, name string) (string, error) {
	if sp.Len() == 0 {
		return "", ErrEmptyPath
	}

	var lastErr error
	for _, searchDir := range sp.Dirs() {
		candidate := filepath.Join(Abs(dir, searchDir), name)
		if lastErr = checker.Executable(candidate); lastErr == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %s: %v", ErrNotFound, name, lastErr)
}

// Abs resolves path against dir if path is relative and dir is set.
func Abs(dir, path string) string {
	if dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
