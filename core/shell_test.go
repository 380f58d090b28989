package core

import (
	"bytes"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/josephlewis42/dash/core/logger"
	"github.com/josephlewis42/dash/core/proc"
	"github.com/josephlewis42/dash/core/proc/proctest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// testScripts are installed into the shell's bin directory. Scripts that
// "mark" create a file in the working directory so tests can tell whether
// they ran.
var testScripts = map[string]string{
	"echo":   `echo "$@"`,
	"both":   `echo out; echo err >&2`,
	"false":  `exit 1`,
	"mark":   `: > "${1:-marked}"`,
	"pwd":    `pwd`,
	"sleepy": `sleep 0.2; : > slept`,
}

type shellFixture struct {
	*Shell
	bin    string
	dir    string
	out    *bytes.Buffer
	events *bytes.Buffer
}

func newShellFixture(t *testing.T) *shellFixture {
	t.Helper()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.Nil(t, err)
	bin := filepath.Join(dir, "bin")
	for name, body := range testScripts {
		proctest.Script(t, bin, name, body)
	}

	out := &bytes.Buffer{}
	events := &bytes.Buffer{}
	s := New(Options{
		Stdout: out,
		Stderr: out,
		Path:   proc.NewSearchPath(bin),
		Dir:    dir,
		Events: logger.NewJsonLinesLogRecorder(events).NewSession(),
	})

	return &shellFixture{Shell: s, bin: bin, dir: dir, out: out, events: events}
}

func (f *shellFixture) exists(name string) bool {
	_, err := os.Stat(filepath.Join(f.dir, name))
	return err == nil
}

func (f *shellFixture) errorCount() int {
	return strings.Count(f.out.String(), proc.ErrorMessage)
}

func (f *shellFixture) eventNames(t *testing.T) []string {
	t.Helper()

	var names []string
	require.Nil(t, logger.ReadJSONLinesLog(bytes.NewReader(f.events.Bytes()), func(le *logger.LogEntry) {
		names = append(names, logger.EventName(le))
	}))
	return names
}

func TestProcessLine_blank(t *testing.T) {
	for _, line := range []string{"", "\n", "   \t  \n", "\r\n"} {
		f := newShellFixture(t)
		f.ProcessLine(line)
		assert.Equal(t, "", f.out.String())
		assert.Empty(t, f.eventNames(t))
	}
}

func TestProcessLine_simple(t *testing.T) {
	f := newShellFixture(t)

	f.ProcessLine("echo hello   world\n")
	assert.Equal(t, "hello world\n", f.out.String())
	assert.Equal(t, []string{logger.EventRunCommand, logger.EventExitStatus}, f.eventNames(t))
}

func TestProcessLine_redirection(t *testing.T) {
	f := newShellFixture(t)

	f.ProcessLine("both > out.txt\n")
	assert.Equal(t, "", f.out.String())
	assert.Equal(t, "out\nerr\n", proctest.ReadFile(t, filepath.Join(f.dir, "out.txt")))
}

func TestProcessLine_badRedirection(t *testing.T) {
	for _, line := range []string{"mark >", "> marked", "mark > f1 f2", "mark > a > b"} {
		t.Run(line, func(t *testing.T) {
			f := newShellFixture(t)

			f.ProcessLine(line + "\n")
			assert.Equal(t, proc.ErrorMessage, f.out.String())
			assert.False(t, f.exists("marked"))
			assert.False(t, f.exists("f1"))
			assert.Equal(t, []string{logger.EventSyntaxError}, f.eventNames(t))
		})
	}
}

func TestProcessLine_parallel(t *testing.T) {
	f := newShellFixture(t)

	f.ProcessLine("mark one & mark two & mark three\n")
	assert.Equal(t, "", f.out.String())
	assert.True(t, f.exists("one"))
	assert.True(t, f.exists("two"))
	assert.True(t, f.exists("three"))
}

func TestProcessLine_leadingSeparator(t *testing.T) {
	f := newShellFixture(t)

	f.ProcessLine("& mark\n")
	assert.Equal(t, proc.ErrorMessage, f.out.String())
	assert.False(t, f.exists("marked"))
}

func TestProcessLine_emptySubCommands(t *testing.T) {
	cases := map[string][]string{
		"trailing":  {"mark a &\n", "a"},
		"doubled":   {"mark a && mark b\n", "a", "b"},
		"separated": {"mark a & & mark b\n", "a", "b"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			f := newShellFixture(t)

			f.ProcessLine(tc[0])
			assert.Equal(t, "", f.out.String())
			for _, marker := range tc[1:] {
				assert.True(t, f.exists(marker), marker)
			}
		})
	}
}

func TestProcessLine_badSubCommandSkipped(t *testing.T) {
	f := newShellFixture(t)

	f.ProcessLine("mark a & mark b > x y & mark c\n")
	assert.Equal(t, 1, f.errorCount())
	assert.True(t, f.exists("a"))
	assert.False(t, f.exists("b"))
	assert.True(t, f.exists("c"))
}

func TestProcessLine_parallelOverlaps(t *testing.T) {
	f := newShellFixture(t)
	proctest.Script(t, f.bin, "waitfor", `i=0
while [ ! -f "$1" ]; do
	sleep 0.05
	i=$((i+1))
	[ "$i" -gt 200 ] && exit 1
done
: > waited`)

	// waitfor only finishes if mark runs while it's still alive.
	f.ProcessLine("waitfor flag & mark flag\n")
	assert.True(t, f.exists("waited"))
}

func TestProcessLine_parallelFailures(t *testing.T) {
	f := newShellFixture(t)

	f.ProcessLine("false & false & false\n")
	f.ProcessLine("echo next\n")

	assert.False(t, f.Quit)
	assert.Equal(t, "next\n", f.out.String())
}

func TestProcessLine_resourceExhaustion(t *testing.T) {
	f := newShellFixture(t)
	f.Launcher.Start = func(cmd *exec.Cmd) error {
		if filepath.Base(cmd.Path) == "echo" {
			return &os.SyscallError{Syscall: "fork/exec", Err: unix.EAGAIN}
		}
		return cmd.Start()
	}

	f.ProcessLine("echo a & mark b\n")
	assert.Equal(t, proc.ErrorMessage, f.out.String())
	assert.True(t, f.exists("b"))
	assert.Equal(t, []string{
		logger.EventLaunchError,
		logger.EventRunCommand,
		logger.EventExitStatus,
	}, f.eventNames(t))
}

func TestProcessLine_notFound(t *testing.T) {
	f := newShellFixture(t)

	f.ProcessLine("nosuchcommand arg\n")
	f.ProcessLine("echo still running\n")

	assert.Equal(t, proc.ErrorMessage+"still running\n", f.out.String())
	assert.Equal(t, []string{
		logger.EventUnknownCommand,
		logger.EventRunCommand,
		logger.EventExitStatus,
	}, f.eventNames(t))
}

func TestPath(t *testing.T) {
	f := newShellFixture(t)
	a := filepath.Join(f.dir, "a")
	b := filepath.Join(f.dir, "b")
	proctest.Script(t, b, "onlyb", `echo from b`)
	require.Nil(t, os.MkdirAll(a, 0755))

	f.ProcessLine("path " + a + " " + b + "\n")
	assert.Equal(t, []string{a, b}, f.Path.Dirs())

	f.ProcessLine("onlyb\n")
	assert.Equal(t, "from b\n", f.out.String())
}

func TestPath_empty(t *testing.T) {
	f := newShellFixture(t)

	f.ProcessLine("path\n")
	assert.Equal(t, 0, f.Path.Len())
	assert.NotNil(t, f.Path)

	f.ProcessLine("echo one\n")
	f.ProcessLine("echo two\n")
	assert.Equal(t, 2, f.errorCount())

	f.ProcessLine("path " + f.bin + "\n")
	f.ProcessLine("echo three\n")
	assert.Equal(t, strings.Repeat(proc.ErrorMessage, 2)+"three\n", f.out.String())
}

func TestPath_inParallelGroup(t *testing.T) {
	f := newShellFixture(t)

	f.ProcessLine("path & mark\n")
	assert.Equal(t, proc.ErrorMessage, f.out.String())
	assert.False(t, f.exists("marked"))
}

func TestPath_relative(t *testing.T) {
	f := newShellFixture(t)

	f.ProcessLine("path bin\n")
	f.ProcessLine("echo relative\n")
	assert.Equal(t, "relative\n", f.out.String())
}

func TestExit(t *testing.T) {
	f := newShellFixture(t)

	f.ProcessLine("exit\n")
	assert.True(t, f.Quit)
	assert.Equal(t, "", f.out.String())
}

func TestExit_withArgs(t *testing.T) {
	f := newShellFixture(t)

	f.ProcessLine("exit extra\n")
	assert.False(t, f.Quit)
	assert.Equal(t, proc.ErrorMessage, f.out.String())
	assert.Equal(t, []string{logger.EventBuiltinError}, f.eventNames(t))
}

func TestExit_waitsForGroup(t *testing.T) {
	f := newShellFixture(t)

	f.ProcessLine("sleepy & exit\n")
	assert.True(t, f.Quit)
	assert.True(t, f.exists("slept"))
}

func TestExit_skipsLaterCommands(t *testing.T) {
	f := newShellFixture(t)

	f.ProcessLine("mark a & exit & mark b\n")
	assert.True(t, f.Quit)
	assert.True(t, f.exists("a"))
	assert.False(t, f.exists("b"))
}

func TestCd(t *testing.T) {
	f := newShellFixture(t)
	sub := filepath.Join(f.dir, "sub")
	require.Nil(t, os.MkdirAll(sub, 0755))

	f.ProcessLine("cd sub\n")
	assert.Equal(t, sub, f.Dir)

	f.ProcessLine("pwd\n")
	f.ProcessLine("mark here\n")
	assert.Equal(t, sub+"\n", f.out.String())
	assert.True(t, f.exists(filepath.Join("sub", "here")))

	f.ProcessLine("cd ..\n")
	assert.Equal(t, f.dir, f.Dir)
}

func TestCd_relativeSearchPath(t *testing.T) {
	f := newShellFixture(t)
	other := filepath.Join(f.dir, "other")
	proctest.Script(t, filepath.Join(other, "bin"), "echo", `echo other "$@"`)

	f.ProcessLine("path bin\n")
	f.ProcessLine("echo before\n")
	f.ProcessLine("cd " + other + "\n")
	f.ProcessLine("echo after\n")

	assert.Equal(t, "before\nother after\n", f.out.String())
}

func TestCd_symlinkParent(t *testing.T) {
	f := newShellFixture(t)
	target := filepath.Join(f.dir, "x", "target")
	require.Nil(t, os.MkdirAll(target, 0755))
	require.Nil(t, os.Symlink(target, filepath.Join(f.dir, "link")))

	f.ProcessLine("cd link\n")
	assert.Equal(t, target, f.Dir)

	// .. is the parent of the directory the link points to.
	f.ProcessLine("cd ..\n")
	f.ProcessLine("pwd\n")
	assert.Equal(t, filepath.Join(f.dir, "x"), f.Dir)
	assert.Equal(t, filepath.Join(f.dir, "x")+"\n", f.out.String())
}

func TestCd_errors(t *testing.T) {
	cases := map[string]string{
		"no-args":        "cd\n",
		"many-args":      "cd a b\n",
		"nonexistent":    "cd /nonexistent/dash/dir\n",
		"file":           "cd bin/echo\n",
		"missing-parent": "cd nosuchdir/..\n",
		"missing-root":   "cd /nonexistent/..\n",
	}

	for tn, line := range cases {
		t.Run(tn, func(t *testing.T) {
			f := newShellFixture(t)

			f.ProcessLine(line)
			assert.Equal(t, proc.ErrorMessage, f.out.String())
			assert.Equal(t, f.dir, f.Dir)
			assert.False(t, f.Quit)
		})
	}
}

func TestBuiltin_exactMatch(t *testing.T) {
	f := newShellFixture(t)

	// Not builtins, so they're looked up on the search path and not found.
	f.ProcessLine("EXIT\n")
	f.ProcessLine("exit2\n")
	assert.False(t, f.Quit)
	assert.Equal(t, 2, f.errorCount())
}

func TestBuiltinNames(t *testing.T) {
	assert.Equal(t, []string{"cd", "exit", "path"}, BuiltinNames())
}

func TestRun(t *testing.T) {
	f := newShellFixture(t)

	status := f.Run(NewScriptReader(strings.NewReader("echo one\n\necho two\nexit\necho three\n")))
	assert.Equal(t, 0, status)
	assert.Equal(t, "one\ntwo\n", f.out.String())
}

func TestRun_noTrailingNewline(t *testing.T) {
	f := newShellFixture(t)

	status := f.Run(NewScriptReader(strings.NewReader("echo one\necho last")))
	assert.Equal(t, 0, status)
	assert.Equal(t, "one\nlast\n", f.out.String())
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, errors.New("device on fire")
}

func TestRun_readError(t *testing.T) {
	f := newShellFixture(t)

	status := f.Run(NewScriptReader(errReader{}))
	assert.Equal(t, 1, status)
	assert.Equal(t, proc.ErrorMessage, f.out.String())
}

func TestPlainPromptReader(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewPlainPromptReader(strings.NewReader("ls\npwd"), out, "dash> ")

	line, err := r.ReadLine()
	assert.Nil(t, err)
	assert.Equal(t, "ls\n", line)

	line, err = r.ReadLine()
	assert.Nil(t, err)
	assert.Equal(t, "pwd", line)

	_, err = r.ReadLine()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "dash> dash> ", out.String())
}

