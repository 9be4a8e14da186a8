package pipeline

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"sigs.k8s.io/yaml"
)

func TestScan(t *testing.T) {
	cases := map[string]struct {
		tokens   []string
		expected []Stage
	}{
		"single": {
			tokens:   []string{"ls"},
			expected: []Stage{{Argv: []string{"ls"}}},
		},
		"arguments": {
			tokens:   []string{"/bin/echo", "hello", "world"},
			expected: []Stage{{Argv: []string{"/bin/echo", "hello", "world"}}},
		},
		"redirects": {
			tokens:   []string{"sort", "<", "in.txt", ">", "out.txt"},
			expected: []Stage{{Argv: []string{"sort"}, Stdin: "in.txt", Stdout: "out.txt"}},
		},
		"redirect-before-program": {
			tokens:   []string{"<", "in.txt", "sort", "-r"},
			expected: []Stage{{Argv: []string{"sort", "-r"}, Stdin: "in.txt"}},
		},
		"three-stages": {
			tokens: []string{"a", "|", "b", "|", "c"},
			expected: []Stage{
				{Argv: []string{"a"}},
				{Argv: []string{"b"}},
				{Argv: []string{"c"}},
			},
		},
		"redirects-at-ends": {
			tokens: []string{"cat", "<", "in", "|", "tr", "a-z", "A-Z", ">", "out"},
			expected: []Stage{
				{Argv: []string{"cat"}, Stdin: "in"},
				{Argv: []string{"tr", "a-z", "A-Z"}, Stdout: "out"},
			},
		},
		"redirect-on-middle-stage": {
			tokens: []string{"a", "|", "b", ">", "mid", "|", "c"},
			expected: []Stage{
				{Argv: []string{"a"}},
				{Argv: []string{"b"}, Stdout: "mid"},
				{Argv: []string{"c"}},
			},
		},
		"last-redirect-wins": {
			tokens:   []string{"cmd", ">", "first", "<", "in1", ">", "second", "<", "in2"},
			expected: []Stage{{Argv: []string{"cmd"}, Stdin: "in2", Stdout: "second"}},
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			actual, err := Scan(tc.tokens)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, actual.Stages)
		})
	}
}

func TestScan_empty(t *testing.T) {
	for _, tokens := range [][]string{nil, {}} {
		actual, err := Scan(tokens)
		assert.NoError(t, err)
		assert.True(t, actual.Empty())
		assert.Equal(t, 0, actual.Len())
	}
}

func TestScan_malformed(t *testing.T) {
	cases := map[string]struct {
		tokens []string
		index  int
	}{
		"trailing-pipe":        {[]string{"cmd1", "|", "cmd2", "|"}, 3},
		"leading-pipe":         {[]string{"|", "cmd"}, 0},
		"consecutive-pipes":    {[]string{"cmd1", "|", "|", "cmd2"}, 2},
		"only-pipe":            {[]string{"|"}, 0},
		"dangling-output":      {[]string{"cmd", ">"}, 1},
		"dangling-input":       {[]string{"cmd", "<"}, 1},
		"operator-as-target":   {[]string{"cmd", ">", "|", "other"}, 1},
		"redirect-as-target":   {[]string{"cmd", "<", ">", "out"}, 1},
		"redirect-only":        {[]string{"<", "in.txt"}, 1},
		"redirect-only-stage":  {[]string{"cmd", "|", ">", "out"}, 3},
		"redirect-after-pipe":  {[]string{"cmd", "|", "<", "in", "|", "x"}, 4},
		"dangling-after-stage": {[]string{"a", "|", "b", ">"}, 3},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			actual, err := Scan(tc.tokens)
			assert.Nil(t, actual)
			assert.True(t, errors.Is(err, ErrMalformedPipeline), "got %v", err)

			var malformedErr *MalformedPipelineError
			if assert.True(t, errors.As(err, &malformedErr)) {
				assert.Equal(t, tc.index, malformedErr.Index)
			}
		})
	}
}

func TestScan_verbatim(t *testing.T) {
	tokens := []string{"grep", "-e", "foo bar", "--", "file"}

	actual, err := Scan(tokens)
	assert.NoError(t, err)
	assert.Len(t, actual.Stages, 1)
	assert.Equal(t, tokens, actual.Stages[0].Argv)
	assert.Empty(t, actual.Stages[0].Stdin)
	assert.Empty(t, actual.Stages[0].Stdout)
}

func TestScan_idempotent(t *testing.T) {
	tokens := []string{"cat", "<", "in", "|", "sort", "|", "uniq", "-c", ">", "out"}
	original := append([]string{}, tokens...)

	first, err := Scan(tokens)
	assert.NoError(t, err)
	second, err := Scan(tokens)
	assert.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, original, tokens, "tokens must not be modified")
}

func TestPipeline_String(t *testing.T) {
	p, err := Scan([]string{"cat", "<", "in", "|", "sort", ">", "out"})
	assert.NoError(t, err)
	assert.Equal(t, "cat < in | sort > out", p.String())
}

func TestScan_golden(t *testing.T) {
	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithNameSuffix(".golden"),
	)

	cases := map[string][]string{
		"scan-empty":     {},
		"scan-redirects": {"sort", "<", "in.txt", ">", "out.txt"},
		"scan-pipeline":  {"cat", "in.txt", "|", "sort", "-r", "|", "uniq", "-c", ">", "out.txt"},
	}

	for tn, tokens := range cases {
		t.Run(tn, func(t *testing.T) {
			p, err := Scan(tokens)
			assert.NoError(t, err)

			out, err := yaml.Marshal(p)
			assert.NoError(t, err)

			g.Assert(t, tn, out)
		})
	}
}
