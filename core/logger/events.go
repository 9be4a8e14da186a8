package logger

// Event types written to the log.
const (
	TypeRunPipeline       = "run_pipeline"
	TypeMalformedPipeline = "malformed_pipeline"
	TypeCommandNotFound   = "command_not_found"
	TypeRedirectFailure   = "redirect_failure"
	TypeResourceExhausted = "resource_exhausted"
	TypeBuiltin           = "builtin"
)

// LogType is an event that can be recorded.
type LogType interface {
	// Type is the event's name in the log.
	Type() string
	fields() map[string]interface{}
}

// StageResult is the outcome of one stage of a pipeline.
type StageResult struct {
	Command []string
	Outcome string
	Status  int
}

// RunPipeline is recorded after every pipeline the shell runs.
type RunPipeline struct {
	Line       string
	Stages     []StageResult
	Status     int
	Background bool
}

func (*RunPipeline) Type() string { return TypeRunPipeline }

func (e *RunPipeline) fields() map[string]interface{} {
	stages := make([]interface{}, 0, len(e.Stages))
	for _, s := range e.Stages {
		stages = append(stages, map[string]interface{}{
			"command": stringList(s.Command),
			"outcome": s.Outcome,
			"status":  s.Status,
		})
	}
	return map[string]interface{}{
		"line":       e.Line,
		"stages":     stages,
		"status":     e.Status,
		"background": e.Background,
	}
}

// MalformedPipeline is recorded for lines that couldn't be scanned.
type MalformedPipeline struct {
	Line  string
	Token string
	Error string
}

func (*MalformedPipeline) Type() string { return TypeMalformedPipeline }

func (e *MalformedPipeline) fields() map[string]interface{} {
	return map[string]interface{}{
		"line":  e.Line,
		"token": e.Token,
		"error": e.Error,
	}
}

// CommandNotFound is recorded for every stage naming a program that
// couldn't be executed.
type CommandNotFound struct {
	Command []string
	Error   string
}

func (*CommandNotFound) Type() string { return TypeCommandNotFound }

func (e *CommandNotFound) fields() map[string]interface{} {
	return map[string]interface{}{
		"command": stringList(e.Command),
		"error":   e.Error,
	}
}

// RedirectFailure is recorded when a stage's redirect file couldn't be
// opened.
type RedirectFailure struct {
	Command []string
	Path    string
	Error   string
}

func (*RedirectFailure) Type() string { return TypeRedirectFailure }

func (e *RedirectFailure) fields() map[string]interface{} {
	return map[string]interface{}{
		"command": stringList(e.Command),
		"path":    e.Path,
		"error":   e.Error,
	}
}

// ResourceExhausted is recorded when a pipeline was cut short because a
// pipe or process couldn't be created.
type ResourceExhausted struct {
	Line     string
	Launched int
	Error    string
}

func (*ResourceExhausted) Type() string { return TypeResourceExhausted }

func (e *ResourceExhausted) fields() map[string]interface{} {
	return map[string]interface{}{
		"line":     e.Line,
		"launched": e.Launched,
		"error":    e.Error,
	}
}

// Builtin is recorded when a line is handled by the shell itself.
type Builtin struct {
	Command []string
}

func (*Builtin) Type() string { return TypeBuiltin }

func (e *Builtin) fields() map[string]interface{} {
	return map[string]interface{}{
		"command": stringList(e.Command),
	}
}

// stringList converts to the list type structpb accepts.
func stringList(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
