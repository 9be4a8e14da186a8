package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/josephlewis42/tsh/core/config"
	"github.com/josephlewis42/tsh/core/logger"
	"github.com/josephlewis42/tsh/core/pipeline"
)

// ExitSyntaxError is the status of a line that couldn't be parsed.
const ExitSyntaxError = 2

var (
	ColorBoldGreen = color.New(color.FgGreen, color.Bold)
	ColorBoldRed   = color.New(color.FgRed, color.Bold)
	ColorBoldCyan  = color.New(color.FgCyan, color.Bold)
)

// Options configures a Shell. Only Config is required.
type Options struct {
	// Stdin, Stdout and Stderr default to the process's own.
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	Config *config.Configuration
	Events *logger.SessionLogger
	Logger *zap.Logger
}

type Shell struct {
	opts   Options
	cfg    *config.Configuration
	runner *pipeline.Runner
	input  lineReader
	events *logger.SessionLogger
	log    *zap.Logger

	lastRet  int
	quit     bool
	exitCode int
}

// New creates a shell. The caller must Close it.
func New(opts Options) (*Shell, error) {
	if opts.Config == nil {
		return nil, errors.New("no configuration")
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Config.MergeStderr {
		opts.Stderr = opts.Stdout
	}
	if opts.Events == nil {
		opts.Events = logger.NewNopLogger().NewSession()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Shell{
		opts:   opts,
		cfg:    opts.Config,
		events: opts.Events,
		log:    opts.Logger,
		runner: &pipeline.Runner{
			Stdin:      opts.Stdin,
			Stdout:     opts.Stdout,
			Stderr:     opts.Stderr,
			SearchPath: opts.Config.SearchPath,
			Logger:     opts.Logger.Named("pipeline"),
		},
	}

	if opts.Config.TerminalHandoff && isTerminal(opts.Stdin) {
		s.runner.TTY = opts.Stdin
	}

	if isTerminal(opts.Stdin) {
		input, err := newTerminalReader(opts.Stdin, opts.Stdout, opts.Stderr, opts.Config.HistoryPath())
		if err != nil {
			return nil, err
		}
		s.input = input
	} else {
		s.input = newScriptReader(opts.Stdin, opts.Stdout)
	}

	return s, nil
}

// Close releases the line editor.
func (s *Shell) Close() error {
	return s.input.Close()
}

func (s *Shell) stdout() io.Writer {
	return s.opts.Stdout
}

func (s *Shell) stderr() io.Writer {
	return s.opts.Stderr
}

func (s *Shell) prompt() string {
	if !s.cfg.EmitPrompt {
		return ""
	}
	return s.cfg.Prompt
}

// LastStatus is the status of the most recent line.
func (s *Shell) LastStatus() int {
	return s.lastRet
}

// Exit makes the shell stop reading lines and exit with code.
func (s *Shell) Exit(code int) {
	s.quit = true
	s.exitCode = code
}

// Exited reports whether a builtin asked the shell to exit.
func (s *Shell) Exited() bool {
	return s.quit
}

// Run reads and runs lines until the input ends or a builtin exits. It
// returns the shell's exit status.
func (s *Shell) Run() int {
	for !s.quit {
		line, err := s.input.ReadLine(s.prompt())

		switch {
		case err == io.EOF:
			return 0
		case err == readline.ErrInterrupt:
			// Interrupt clears the line.
			continue
		case err != nil:
			fmt.Fprintf(s.stderr(), "tsh: %v\n", err)
			return 1
		}

		s.RunLine(line)
	}
	return s.exitCode
}

// RunLine runs a single command line and returns its status.
func (s *Shell) RunLine(text string) int {
	line, err := ParseLine(text)
	if err != nil {
		fmt.Fprintf(s.stderr(), "tsh: %v\n", err)
		s.record(&logger.MalformedPipeline{Line: text, Error: err.Error()})
		s.lastRet = ExitSyntaxError
		return s.lastRet
	}
	if line.Empty() {
		return s.lastRet
	}

	if builtin, ok := AllBuiltins[line.Tokens[0]]; ok {
		s.record(&logger.Builtin{Command: line.Tokens})
		s.lastRet = builtin.Main(s, line.Tokens)
		return s.lastRet
	}

	p, err := pipeline.Scan(line.Tokens)
	if err != nil {
		fmt.Fprintf(s.stderr(), "tsh: %v\n", err)
		event := &logger.MalformedPipeline{Line: text, Error: err.Error()}
		var malformed *pipeline.MalformedPipelineError
		if errors.As(err, &malformed) {
			event.Token = malformed.Token
			event.Error = malformed.Reason
		}
		s.record(event)
		s.lastRet = ExitSyntaxError
		return s.lastRet
	}

	if line.Background {
		s.log.Info("background execution isn't supported, running in the foreground", zap.Stringer("pipeline", p))
	}

	res, runErr := s.runner.Run(p)
	s.recordResult(text, p, res, line.Background)

	s.lastRet = res.ExitCode()
	if runErr != nil {
		fmt.Fprintf(s.stderr(), "tsh: %v\n", runErr)
		var exhausted *pipeline.ResourceExhaustedError
		launched := res.Spawned()
		if errors.As(runErr, &exhausted) {
			launched = exhausted.Launched
		}
		s.record(&logger.ResourceExhausted{Line: text, Launched: launched, Error: runErr.Error()})
		s.lastRet = 1
	}

	if s.cfg.Verbose {
		s.printStatus(res)
	}
	return s.lastRet
}

func (s *Shell) recordResult(text string, p *pipeline.Pipeline, res *pipeline.Result, background bool) {
	event := &logger.RunPipeline{
		Line:       text,
		Status:     res.ExitCode(),
		Background: background,
	}

	for i, st := range res.Stages {
		event.Stages = append(event.Stages, logger.StageResult{
			Command: st.Argv,
			Outcome: st.Outcome.String(),
			Status:  st.ExitCode,
		})

		var stageErr *pipeline.StageError
		if !errors.As(st.Err, &stageErr) {
			continue
		}
		switch stageErr.Outcome {
		case pipeline.NotFound:
			s.record(&logger.CommandNotFound{Command: st.Argv, Error: stageErr.Err.Error()})
		case pipeline.RedirectFailed:
			s.record(&logger.RedirectFailure{Command: p.Stages[i].Argv, Path: stageErr.Name, Error: stageErr.Err.Error()})
		}
	}

	s.record(event)
}

// printStatus writes one line per stage describing how it ended.
func (s *Shell) printStatus(res *pipeline.Result) {
	w := s.stderr()
	for i, st := range res.Stages {
		c := ColorBoldGreen
		if st.Outcome != pipeline.Exited || st.ExitCode != 0 {
			c = ColorBoldRed
		}

		detail := fmt.Sprintf("%s %d", st.Outcome, st.ExitCode)
		if st.Outcome == pipeline.Signaled {
			detail = fmt.Sprintf("%s %v (%d)", st.Outcome, st.Signal, st.ExitCode)
		}

		ColorBoldCyan.Fprintf(w, "[%d] ", i)
		fmt.Fprintf(w, "pid %d pgid %d %s: ", st.Pid, res.Pgid, strings.Join(st.Argv, " "))
		c.Fprintln(w, detail)
	}
}

func (s *Shell) record(event logger.LogType) {
	if err := s.events.Record(event); err != nil {
		s.log.Warn("couldn't record event", zap.String("type", event.Type()), zap.Error(err))
	}
}
