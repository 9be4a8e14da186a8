package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
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

		var record structpb.Struct
		if err := protojson.Unmarshal(rawEntry, &record); err != nil {
			return err
		}

		logEntry, err := entryFromStruct(&record)
		if err != nil {
			return err
		}
		handler(logEntry)
	}
	return nil
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	Sessions       StrCounter `json:"sessions"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`

	RunPipeline       RunPipelineReport       `json:"run_pipeline_report"`
	MalformedPipeline MalformedPipelineReport `json:"malformed_pipeline_report"`
	CommandNotFound   CommandNotFoundReport   `json:"command_not_found_report"`
	RedirectFailure   RedirectFailureReport   `json:"redirect_failure_report"`
	ResourceExhausted ResourceExhaustedReport `json:"resource_exhausted_report"`
	Builtin           BuiltinReport           `json:"builtin_report"`
}

func (r *Report) Update(le *LogEntry) {
	r.LogEntries++
	r.Sessions.Increment(le.SessionID)

	switch le.Type {
	case TypeRunPipeline:
		r.RunPipeline.update(le)
	case TypeMalformedPipeline:
		r.MalformedPipeline.update(le)
	case TypeCommandNotFound:
		r.CommandNotFound.update(le)
	case TypeRedirectFailure:
		r.RedirectFailure.update(le)
	case TypeResourceExhausted:
		r.ResourceExhausted.update(le)
	case TypeBuiltin:
		r.Builtin.update(le)
	default:
		r.InvalidEntries.Increment(le.Type)
	}
}

type RunPipelineReport struct {
	Count int `json:"count"`
	// Number of stages per pipeline.
	Lengths StrCounter `json:"lengths"`
	// Name of every program run in any stage.
	CommandNames StrCounter `json:"command_names"`
	// Exit status of the pipeline as a whole.
	Statuses StrCounter `json:"statuses"`
	// How stages ended.
	Outcomes   StrCounter `json:"outcomes"`
	Background int        `json:"background"`
}

func (r *RunPipelineReport) update(le *LogEntry) {
	r.Count++
	r.Statuses.Increment(strconv.Itoa(le.GetInt("status")))
	if le.Event.GetFields()["background"].GetBoolValue() {
		r.Background++
	}

	stages := le.Event.GetFields()["stages"].GetListValue().GetValues()
	r.Lengths.Increment(strconv.Itoa(len(stages)))
	for _, stage := range stages {
		fields := stage.GetStructValue().GetFields()
		if command := listStrings(fields["command"]); len(command) > 0 {
			r.CommandNames.Increment(command[0])
		}
		r.Outcomes.Increment(fields["outcome"].GetStringValue())
	}
}

type MalformedPipelineReport struct {
	Errors *PathCounter `json:"errors"`
}

func (r *MalformedPipelineReport) update(le *LogEntry) {
	if r.Errors == nil {
		r.Errors = NewPathCounter("token", "error")
	}
	r.Errors.Increment(le.GetString("token"), le.GetString("error"))
}

type CommandNotFoundReport struct {
	CommandNames StrCounter `json:"command_names"`
}

func (r *CommandNotFoundReport) update(le *LogEntry) {
	if command := le.GetStrings("command"); len(command) > 0 {
		r.CommandNames.Increment(command[0])
	}
}

type RedirectFailureReport struct {
	Paths StrCounter `json:"paths"`
}

func (r *RedirectFailureReport) update(le *LogEntry) {
	r.Paths.Increment(le.GetString("path"))
}

type ResourceExhaustedReport struct {
	Errors StrCounter `json:"errors"`
}

func (r *ResourceExhaustedReport) update(le *LogEntry) {
	r.Errors.Increment(le.GetString("error"))
}

type BuiltinReport struct {
	Commands StrCounter `json:"commands"`
}

func (r *BuiltinReport) update(le *LogEntry) {
	r.Commands.Increment(strings.Join(le.GetStrings("command"), " "))
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

// Get returns the count for key.
func (s *StrCounter) Get(key string) int {
	return s.internal[key]
}

// MarshalJSON implements a custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts tuples of strings.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic(fmt.Sprintf("wrong number of columns to add: got %d, want %d", len(toAdd), len(ctr.cols)))
	}

	ctr.internal[toKey(toAdd...)]++
}

// Get returns the count for the tuple.
func (ctr *PathCounter) Get(vals ...string) int {
	return ctr.internal[toKey(vals...)]
}

// MarshalJSON implements a custom JSON marshaler.
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
