package pipeline

import (
	"strings"
)

// Stage is a single command in a pipeline.
type Stage struct {
	// Argv holds the program name followed by its arguments. Never empty.
	Argv []string `json:"argv"`
	// Stdin is the file the stage reads from, if any.
	Stdin string `json:"stdin,omitempty"`
	// Stdout is the file the stage writes to, if any.
	Stdout string `json:"stdout,omitempty"`
}

// Name returns the program name of the stage.
func (s Stage) Name() string {
	if len(s.Argv) == 0 {
		return ""
	}
	return s.Argv[0]
}

// String formats the stage the way it would be typed.
func (s Stage) String() string {
	parts := append([]string{}, s.Argv...)
	if s.Stdin != "" {
		parts = append(parts, OpRedirectIn, s.Stdin)
	}
	if s.Stdout != "" {
		parts = append(parts, OpRedirectOut, s.Stdout)
	}
	return strings.Join(parts, " ")
}

// Pipeline is an ordered chain of stages connected by pipes.
type Pipeline struct {
	Stages []Stage `json:"stages"`
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Stages)
}

// Empty is true if there's nothing to run.
func (p *Pipeline) Empty() bool {
	return p.Len() == 0
}

// String formats the pipeline the way it would be typed.
func (p *Pipeline) String() string {
	var stages []string
	for _, s := range p.Stages {
		stages = append(stages, s.String())
	}
	return strings.Join(stages, " "+OpPipe+" ")
}
