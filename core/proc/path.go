package proc

import (
	"path/filepath"
	"strings"
)

// DefaultDir is the directory searched for commands when a shell starts.
const DefaultDir = "/bin"

// SearchPath is an ordered list of directories used to resolve command names.
//
// A SearchPath is never modified after creation; the path builtin replaces
// it with a new one. An empty SearchPath resolves nothing.
type SearchPath struct {
	dirs []string
}

// NewSearchPath creates a search path from the given directories in order.
func NewSearchPath(dirs ...string) *SearchPath {
	return &SearchPath{dirs: append([]string{}, dirs...)}
}

// DefaultSearchPath returns a search path containing only DefaultDir.
func DefaultSearchPath() *SearchPath {
	return NewSearchPath(DefaultDir)
}

// Dirs returns a copy of the directories in search order.
func (sp *SearchPath) Dirs() []string {
	if sp == nil {
		return nil
	}
	return append([]string{}, sp.dirs...)
}

// Len returns the number of directories.
func (sp *SearchPath) Len() int {
	if sp == nil {
		return 0
	}
	return len(sp.dirs)
}

func (sp *SearchPath) String() string {
	return strings.Join(sp.Dirs(), string(filepath.ListSeparator))
}
