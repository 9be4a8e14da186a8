package shell

import (
	"fmt"

	shlex "github.com/anmitsu/go-shlex"
)

// Background is the token that asks for a pipeline to run in the background.
const Background = "&"

// Line is a tokenized command line.
type Line struct {
	Tokens     []string
	Background bool
}

// Empty is true if there's nothing to run.
func (l *Line) Empty() bool {
	return len(l.Tokens) == 0
}

// ParseLine splits a command line into tokens.
func ParseLine(line string) (*Line, error) {
	tokens, err := shlex.Split(line, true)
	if err != nil {
		return nil, fmt.Errorf("syntax error: %v", err)
	}

	out := &Line{Tokens: tokens}
	if n := len(tokens); n > 0 && tokens[n-1] == Background {
		out.Background = true
		out.Tokens = tokens[:n-1]
	}
	return out, nil
}
