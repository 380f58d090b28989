// Package shell validates and tokenizes dash command lines.
package shell

/**
The dash grammar is deliberately small:

1. A line is split into sub-commands on the parallel separator (&). Every
sub-command is started before any of them is waited on.

2. A sub-command may contain at most one output redirection (>) followed by
exactly one file name. Standard output and standard error both go to the file.

3. The remaining text is split on whitespace into the argument vector. There is
no quoting, escaping, globbing or variable expansion.
**/

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// RedirectOp sends stdout and stderr of a command to a file.
	RedirectOp = '>'
	// SeparatorOp separates commands that run in parallel.
	SeparatorOp = '&'
)

var (
	// ErrSyntax is returned for malformed redirection or separator usage.
	ErrSyntax = errors.New("syntax error")
)

// Redirect holds the output redirection of a command, if any.
type Redirect struct {
	// Target is the file stdout and stderr are written to.
	Target string
	// Set is true if the command had a valid redirection.
	Set bool
}

// Command is a single tokenized sub-command.
type Command struct {
	// Argv holds the command name at index 0 followed by its arguments. It
	// never contains the redirection target.
	Argv []string

	Redirect Redirect
}

// Name returns the command name or the empty string if there is none.
func (c Command) Name() string {
	if len(c.Argv) == 0 {
		return ""
	}
	return c.Argv[0]
}

// Args returns the arguments after the command name.
func (c Command) Args() []string {
	if len(c.Argv) == 0 {
		return nil
	}
	return c.Argv[1:]
}

// Empty is true if the command has no name.
func (c Command) Empty() bool {
	return len(c.Argv) == 0
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\r', '\n', '\v', '\f':
		return true
	}
	return false
}

func fields(s string) []string {
	return strings.FieldsFunc(s, isSpace)
}

// IsBlank returns true if the line holds nothing but whitespace.
func IsBlank(line string) bool {
	return len(fields(line)) == 0
}

// CountRedirections counts the redirection operators in s.
//
// A return value of 0 means there is no redirection and 1 means there is
// exactly one valid redirection. -1 is returned if there is nothing before or
// after the operator. Any file token after the first one increments the count
// so the result is always greater than 1 for invalid targets.
func CountRedirections(s string) int {
	count := strings.Count(s, string(RedirectOp))
	if count != 1 {
		return count
	}

	before, after, _ := strings.Cut(s, string(RedirectOp))
	if IsBlank(before) || IsBlank(after) {
		return -1
	}

	return count + len(fields(after)) - 1
}

// CountSeparators counts the parallel separators in s.
//
// If there is exactly one separator it must have a command before it,
// otherwise -1 is returned. Any negative value means the entire line must be
// rejected.
func CountSeparators(s string) int {
	count := strings.Count(s, string(SeparatorOp))
	if count != 1 {
		return count
	}

	before, _, _ := strings.Cut(s, string(SeparatorOp))
	if IsBlank(before) {
		return -1
	}

	return count
}

// SplitCommands splits a line into the commands of a parallel group.
//
// A line without separators is returned as the only element. Empty entries
// between adjacent separators are kept; callers skip them.
func SplitCommands(line string) []string {
	return strings.Split(line, string(SeparatorOp))
}

// Tokenize splits a validated sub-command into its argument vector and
// redirection. The redirection operator acts as a delimiter and its target is
// extracted rather than kept in the argument vector.
func Tokenize(sub string) Command {
	before, after, found := strings.Cut(sub, string(RedirectOp))

	cmd := Command{
		Argv: fields(before),
	}

	if found {
		if targets := fields(after); len(targets) > 0 {
			cmd.Redirect = Redirect{Target: targets[0], Set: true}
		}
	}

	return cmd
}

// ParseCommand validates the redirection of a sub-command and tokenizes it.
func ParseCommand(sub string) (Command, error) {
	switch n := CountRedirections(sub); {
	case n < 0:
		return Command{}, fmt.Errorf("%w: missing command or target around %q", ErrSyntax, string(RedirectOp))
	case n > 1:
		return Command{}, fmt.Errorf("%w: expected one %q and one target, got %d", ErrSyntax, string(RedirectOp), n)
	}

	return Tokenize(sub), nil
}

// SplitLine validates the parallel separators of a line and splits it into
// sub-commands.
func SplitLine(line string) ([]string, error) {
	if CountSeparators(line) < 0 {
		return nil, fmt.Errorf("%w: %q without a command before it", ErrSyntax, string(SeparatorOp))
	}

	return SplitCommands(line), nil
}
