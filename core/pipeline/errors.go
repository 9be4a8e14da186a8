package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPipeline is matched by every structural token error.
	ErrMalformedPipeline = errors.New("malformed pipeline")

	// ErrResourceExhausted is matched when a pipe or process couldn't be
	// created.
	ErrResourceExhausted = errors.New("resource exhausted")
)

// Exit statuses recorded for stages that never reached their program.
const (
	ExitRedirectFailure = 1
	ExitExecFailure     = 126
	ExitCommandNotFound = 127
)

// MalformedPipelineError describes a token list that can't form a pipeline.
type MalformedPipelineError struct {
	// Index of the offending token.
	Index int
	// Token is the offending token.
	Token string
	// Reason is a short human readable description.
	Reason string
}

func (e *MalformedPipelineError) Error() string {
	return fmt.Sprintf("syntax error near %q: %s", e.Token, e.Reason)
}

func (e *MalformedPipelineError) Unwrap() error {
	return ErrMalformedPipeline
}

func malformed(tokens []string, index int, reason string) error {
	tok := ""
	if index >= 0 && index < len(tokens) {
		tok = tokens[index]
	}
	return &MalformedPipelineError{Index: index, Token: tok, Reason: reason}
}

// ResourceExhaustedError is returned when the runner couldn't allocate a
// pipe or start a process. Stages that had already started were waited on
// before it was returned.
type ResourceExhaustedError struct {
	// Op is the failed operation, "pipe" or "spawn".
	Op string
	// Launched holds the number of stages that reached execution.
	Launched int
	// Err is the underlying error.
	Err error
}

func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("%s: %v (%d stage(s) launched)", e.Op, e.Err, e.Launched)
}

func (e *ResourceExhaustedError) Unwrap() error {
	return e.Err
}

// Is matches ErrResourceExhausted.
func (e *ResourceExhaustedError) Is(target error) bool {
	return target == ErrResourceExhausted
}

// Outcome describes how a stage ended.
type Outcome int

const (
	// NotLaunched stages were skipped after an earlier spawn failure.
	NotLaunched Outcome = iota
	// Exited stages ran and exited normally.
	Exited
	// Signaled stages ran and were terminated by a signal.
	Signaled
	// NotFound stages named a program that couldn't be executed.
	NotFound
	// RedirectFailed stages couldn't open their redirect file.
	RedirectFailed
	// ExecFailed stages found their program but the exec was refused.
	ExecFailed
)

var outcomeNames = map[Outcome]string{
	NotLaunched:    "not launched",
	Exited:         "exited",
	Signaled:       "signaled",
	NotFound:       "not found",
	RedirectFailed: "redirect failed",
	ExecFailed:     "exec failed",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// StageError is a failure local to one stage. It never aborts the rest of
// the pipeline.
type StageError struct {
	Outcome Outcome
	// Name is the program or file name the failure is about.
	Name string
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ExitCode is the status recorded for the stage.
func (e *StageError) ExitCode() int {
	switch e.Outcome {
	case NotFound:
		return ExitCommandNotFound
	case ExecFailed:
		return ExitExecFailure
	default:
		return ExitRedirectFailure
	}
}
