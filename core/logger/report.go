package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var rawEntry json.RawMessage
		if err := decoder.Decode(&rawEntry); err != nil {
			return err
		}

		var logEntry LogEntry
		if err := protojson.Unmarshal(rawEntry, &logEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}

// EventName returns the event type of an entry.
func EventName(le *LogEntry) string {
	return stringField(le, FieldEvent)
}

func field(le *LogEntry, name string) *structpb.Value {
	return le.GetFields()[name]
}

func stringField(le *LogEntry, name string) string {
	return field(le, name).GetStringValue()
}

// Command returns the command argument vector of an entry.
func Command(le *LogEntry) []string {
	var out []string
	for _, v := range field(le, FieldCommand).GetListValue().GetValues() {
		out = append(out, v.GetStringValue())
	}
	return out
}

func commandName(le *LogEntry) string {
	if cmd := Command(le); len(cmd) > 0 {
		return cmd[0]
	}
	return ""
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	Sessions       StrCounter `json:"sessions"`
	Events         StrCounter `json:"events"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`

	RunCommand     RunCommandReport     `json:"run_command_report"`
	UnknownCommand UnknownCommandReport `json:"unknown_command_report"`
	Builtin        BuiltinReport        `json:"builtin_report"`
	ExitStatus     ExitStatusReport     `json:"exit_status_report"`
	SyntaxError    SyntaxErrorReport    `json:"syntax_error_report"`
}

// Update adds the entry to the report.
func (r *Report) Update(le *LogEntry) {
	r.LogEntries++
	r.Sessions.Increment(stringField(le, FieldSessionID))

	event := EventName(le)
	r.Events.Increment(event)

	switch event {
	case EventRunCommand:
		r.RunCommand.update(le)
	case EventUnknownCommand, EventLaunchError:
		r.UnknownCommand.update(le)
	case EventBuiltin, EventBuiltinError:
		r.Builtin.update(le)
	case EventExitStatus:
		r.ExitStatus.update(le)
	case EventSyntaxError:
		r.SyntaxError.update(le)
	default:
		r.InvalidEntries.Increment(event)
	}
}

type RunCommandReport struct {
	// Name of the resolved command
	ResolvedCommandPaths StrCounter `json:"resolved_command_paths"`
	// Name of the command
	CommandNames StrCounter `json:"command_names"`
}

func (r *RunCommandReport) update(le *LogEntry) {
	r.ResolvedCommandPaths.Increment(stringField(le, FieldResolvedPath))
	if name := commandName(le); name != "" {
		r.CommandNames.Increment(name)
	}
}

type UnknownCommandReport struct {
	CommandNames StrCounter `json:"command_names"`
}

func (r *UnknownCommandReport) update(le *LogEntry) {
	if name := commandName(le); name != "" {
		r.CommandNames.Increment(name)
	}
}

type BuiltinReport struct {
	Invocations StrCounter `json:"invocations"`
	Errors      StrCounter `json:"errors"`
}

func (r *BuiltinReport) update(le *LogEntry) {
	name := commandName(le)
	if EventName(le) == EventBuiltinError {
		r.Errors.Increment(name)
		return
	}
	r.Invocations.Increment(name)
}

type ExitStatusReport struct {
	Statuses *PathCounter `json:"statuses"`
}

func (r *ExitStatusReport) update(le *LogEntry) {
	if r.Statuses == nil {
		r.Statuses = NewPathCounter("command", "status")
	}
	status := fmt.Sprintf("%d", int(field(le, FieldStatus).GetNumberValue()))
	r.Statuses.Increment(commandName(le), status)
}

type SyntaxErrorReport struct {
	Count int        `json:"count"`
	Lines StrCounter `json:"lines"`
}

func (r *SyntaxErrorReport) update(le *LogEntry) {
	r.Count++
	r.Lines.Increment(strings.TrimSpace(stringField(le, FieldLine)))
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Get returns the count for a key.
func (s *StrCounter) Get(key string) int {
	return s.internal[key]
}

// MarshalJSON implemnts custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts the number of strings seen.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// Get returns the count for a key.
func (ctr *PathCounter) Get(vals ...string) int {
	return ctr.internal[toKey(vals...)]
}

// MarshalJSON implemnts custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	var out []Count
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}
