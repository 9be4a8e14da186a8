package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordAll(t *testing.T, events ...LogType) (*bytes.Buffer, *SessionLogger) {
	t.Helper()
	var buf bytes.Buffer
	session := NewJsonLinesLogRecorder(&buf).NewSession()
	for _, e := range events {
		require.NoError(t, session.Record(e))
	}
	return &buf, session
}

func readAll(t *testing.T, buf *bytes.Buffer) []*LogEntry {
	t.Helper()
	var out []*LogEntry
	require.NoError(t, ReadJSONLinesLog(buf, func(le *LogEntry) {
		out = append(out, le)
	}))
	return out
}

func TestJsonLinesLogRecorder(t *testing.T) {
	buf, session := recordAll(t,
		&RunPipeline{
			Line: "cat in | sort",
			Stages: []StageResult{
				{Command: []string{"cat", "in"}, Outcome: "exited", Status: 0},
				{Command: []string{"sort"}, Outcome: "exited", Status: 2},
			},
			Status: 2,
		},
		&CommandNotFound{Command: []string{"nosuch", "-x"}, Error: "executable file not found in $PATH"},
	)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2, "one record per line")
	for _, line := range lines {
		assert.True(t, json.Valid([]byte(line)), line)
	}

	entries := readAll(t, buf)
	require.Len(t, entries, 2)

	run := entries[0]
	assert.Equal(t, TypeRunPipeline, run.Type)
	assert.Equal(t, session.SessionID(), run.SessionID)
	assert.NotZero(t, run.TimestampMicros)
	assert.Equal(t, "cat in | sort", run.GetString("line"))
	assert.Equal(t, 2, run.GetInt("status"))

	notFound := entries[1]
	assert.Equal(t, TypeCommandNotFound, notFound.Type)
	assert.Equal(t, []string{"nosuch", "-x"}, notFound.GetStrings("command"))
}

func TestReadJSONLinesLog_invalid(t *testing.T) {
	cases := map[string]string{
		"not-json": "{oops\n",
		"no-type":  `{"session_id":"1","event":{}}` + "\n",
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			err := ReadJSONLinesLog(strings.NewReader(tc), func(*LogEntry) {})
			assert.Error(t, err)
		})
	}
}

func TestReport(t *testing.T) {
	buf, session := recordAll(t,
		&RunPipeline{
			Line: "ls | wc",
			Stages: []StageResult{
				{Command: []string{"ls"}, Outcome: "exited"},
				{Command: []string{"wc"}, Outcome: "exited"},
			},
		},
		&RunPipeline{
			Line:       "ls &",
			Stages:     []StageResult{{Command: []string{"ls"}, Outcome: "signaled", Status: 143}},
			Status:     143,
			Background: true,
		},
		&MalformedPipeline{Line: "ls |", Token: "|", Error: "missing command after pipe"},
		&MalformedPipeline{Line: "| ls", Token: "|", Error: "missing command after pipe"},
		&CommandNotFound{Command: []string{"frob"}},
		&RedirectFailure{Command: []string{"cat"}, Path: "/missing", Error: "no such file or directory"},
		&ResourceExhausted{Line: "a | b", Launched: 1, Error: "resource temporarily unavailable"},
		&Builtin{Command: []string{"exit", "3"}},
	)

	var report Report
	require.NoError(t, ReadJSONLinesLog(buf, report.Update))

	assert.Equal(t, 8, report.LogEntries)
	assert.Equal(t, 8, report.Sessions.Get(session.SessionID()))

	assert.Equal(t, 2, report.RunPipeline.Count)
	assert.Equal(t, 1, report.RunPipeline.Background)
	assert.Equal(t, 2, report.RunPipeline.CommandNames.Get("ls"))
	assert.Equal(t, 1, report.RunPipeline.Lengths.Get("2"))
	assert.Equal(t, 1, report.RunPipeline.Statuses.Get("143"))
	assert.Equal(t, 1, report.RunPipeline.Outcomes.Get("signaled"))

	assert.Equal(t, 2, report.MalformedPipeline.Errors.Get("|", "missing command after pipe"))
	assert.Equal(t, 1, report.CommandNotFound.CommandNames.Get("frob"))
	assert.Equal(t, 1, report.RedirectFailure.Paths.Get("/missing"))
	assert.Equal(t, 1, report.ResourceExhausted.Errors.Get("resource temporarily unavailable"))
	assert.Equal(t, 1, report.Builtin.Commands.Get("exit 3"))

	out, err := json.Marshal(&report)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"log_entries":8`)
}

func TestReport_unknownType(t *testing.T) {
	var report Report
	report.Update(&LogEntry{Type: "teleport"})

	assert.Equal(t, 1, report.LogEntries)
	assert.Equal(t, 1, report.InvalidEntries.Get("teleport"))
}

func TestPathCounter(t *testing.T) {
	ctr := NewPathCounter("command", "error")
	ctr.Increment("ls", "boom")
	ctr.Increment("ls", "boom")
	ctr.Increment("cat", "bang")

	out, err := json.Marshal(ctr)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"count": 2, "event": {"command": "ls", "error": "boom"}},
		{"count": 1, "event": {"command": "cat", "error": "bang"}}
	]`, string(out))

	assert.Panics(t, func() { ctr.Increment("only-one") })
}
