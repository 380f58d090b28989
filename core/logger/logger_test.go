package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSession(l *Logger, id string) *SessionLogger {
	return &SessionLogger{
		Logger:    l,
		sessionID: id,
		now: func() time.Time {
			return time.Date(2006, 1, 2, 3, 4, 5, 0, time.UTC)
		},
	}
}

func TestJsonLinesLogRecorder(t *testing.T) {
	buf := &bytes.Buffer{}
	session := fixedSession(NewJsonLinesLogRecorder(buf), "1234")

	require.Nil(t, session.Record(EventRunCommand, Fields{
		FieldCommand:      Strings([]string{"ls", "-la"}),
		FieldResolvedPath: "/bin/ls",
		FieldPid:          42,
	}))
	require.Nil(t, session.Record(EventSyntaxError, Fields{FieldLine: "& ls"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.Nil(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "run_command", first["event"])
	assert.Equal(t, "1234", first["session_id"])
	assert.Equal(t, "/bin/ls", first["resolved_path"])
	assert.Equal(t, []interface{}{"ls", "-la"}, first["command"])
	assert.Equal(t, float64(42), first["pid"])
	assert.Equal(t, float64(1136171045000000), first["timestamp_micros"])
}

func TestNopLogger(t *testing.T) {
	session := NewNopLogger().NewSession()
	assert.NotEmpty(t, session.SessionID())
	assert.Nil(t, session.Record(EventBuiltin, Fields{FieldCommand: Strings([]string{"cd"})}))
}

func TestRecord_invalidField(t *testing.T) {
	session := fixedSession(NewNopLogger(), "1")
	assert.NotNil(t, session.Record(EventBuiltin, Fields{"bad": make(chan int)}))
}

func TestReport(t *testing.T) {
	buf := &bytes.Buffer{}
	recorder := NewJsonLinesLogRecorder(buf)
	a := fixedSession(recorder, "a")
	b := fixedSession(recorder, "b")

	ls := Strings([]string{"ls", "-l"})
	a.Record(EventRunCommand, Fields{FieldCommand: ls, FieldResolvedPath: "/bin/ls"})
	a.Record(EventExitStatus, Fields{FieldCommand: ls, FieldStatus: 0})
	a.Record(EventBuiltin, Fields{FieldCommand: Strings([]string{"cd", "/tmp"})})
	b.Record(EventBuiltinError, Fields{FieldCommand: Strings([]string{"exit", "now"})})
	b.Record(EventUnknownCommand, Fields{FieldCommand: Strings([]string{"nope"})})
	b.Record(EventSyntaxError, Fields{FieldLine: "ls > a b\n"})
	b.Record("mystery", nil)

	var report Report
	require.Nil(t, ReadJSONLinesLog(buf, report.Update))

	assert.Equal(t, 7, report.LogEntries)
	assert.Equal(t, 3, report.Sessions.Get("a"))
	assert.Equal(t, 4, report.Sessions.Get("b"))
	assert.Equal(t, 1, report.RunCommand.CommandNames.Get("ls"))
	assert.Equal(t, 1, report.RunCommand.ResolvedCommandPaths.Get("/bin/ls"))
	assert.Equal(t, 1, report.ExitStatus.Statuses.Get("ls", "0"))
	assert.Equal(t, 1, report.Builtin.Invocations.Get("cd"))
	assert.Equal(t, 1, report.Builtin.Errors.Get("exit"))
	assert.Equal(t, 1, report.UnknownCommand.CommandNames.Get("nope"))
	assert.Equal(t, 1, report.SyntaxError.Count)
	assert.Equal(t, 1, report.SyntaxError.Lines.Get("ls > a b"))
	assert.Equal(t, 1, report.InvalidEntries.Get("mystery"))

	out, err := json.Marshal(&report)
	require.Nil(t, err)
	assert.Contains(t, string(out), `"log_entries":7`)
}

func TestReadJSONLinesLog_invalid(t *testing.T) {
	err := ReadJSONLinesLog(strings.NewReader("{\"a\": 1}\nnot json\n"), func(*LogEntry) {})
	assert.NotNil(t, err)
}

func TestPathCounter(t *testing.T) {
	ctr := NewPathCounter("command", "status")
	ctr.Increment("ls", "0")
	ctr.Increment("ls", "0")
	ctr.Increment("false", "1")

	out, err := json.Marshal(ctr)
	require.Nil(t, err)
	assert.JSONEq(t, `[
		{"count": 2, "event": {"command": "ls", "status": "0"}},
		{"count": 1, "event": {"command": "false", "status": "1"}}
	]`, string(out))

	assert.Panics(t, func() { ctr.Increment("only-one") })
}
