package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Runner starts pipelines and waits for them to finish.
//
// The zero value runs stages with the process's own standard streams and
// environment, and executes program names as given.
type Runner struct {
	// Stdin, Stdout and Stderr are inherited by stages that aren't connected
	// to a pipe or a redirect file. nil means the process's own.
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// Diagnostics receives per-stage failure messages such as
	// "foo: Command not found". nil means Stdout.
	Diagnostics io.Writer

	// Env is the environment given to every stage. nil means os.Environ().
	Env []string

	// SearchPath resolves program names without a slash using PATH.
	SearchPath bool

	// Fs is the filesystem PATH lookups happen in. nil means the OS.
	Fs afero.Fs

	// TTY, if set, is the controlling terminal. Each pipeline is put in the
	// terminal's foreground while it runs and the runner takes it back
	// afterwards.
	TTY *os.File

	Logger *zap.Logger

	ignoreTTOU sync.Once
}

// StageStatus is what happened to one stage.
type StageStatus struct {
	Argv    []string
	Pid     int
	Outcome Outcome
	// ExitCode is the exit status, 128+signal for signaled stages, or the
	// status recorded for a stage that never reached its program.
	ExitCode int
	Signal   syscall.Signal
	// Err is set for stages that never reached their program.
	Err error
}

// Result holds the collected status of every stage of a pipeline.
type Result struct {
	// Pgid is the process group shared by every started stage.
	Pgid int
	// Pipes is the number of pipes that were allocated.
	Pipes int
	// Stages is indexed like the pipeline's stages.
	Stages []StageStatus
	// Reaped holds stage indexes in the order their processes were waited on.
	Reaped []int
}

// Spawned returns the number of stages that reached execution.
func (r *Result) Spawned() int {
	count := 0
	for _, s := range r.Stages {
		if s.Pid != 0 {
			count++
		}
	}
	return count
}

// ExitCode is the status of the last stage, which is the status of the
// pipeline as a whole.
func (r *Result) ExitCode() int {
	if len(r.Stages) == 0 {
		return 0
	}
	return r.Stages[len(r.Stages)-1].ExitCode
}

// Success is true if the last stage exited with status 0.
func (r *Result) Success() bool {
	if len(r.Stages) == 0 {
		return true
	}
	last := r.Stages[len(r.Stages)-1]
	return last.Outcome == Exited && last.ExitCode == 0
}

// Run starts every stage of p and waits for all of them to exit.
//
// A pipeline without stages is a no-op. Failures local to one stage, like
// a missing program or an unreadable redirect file, are recorded in that
// stage's status and reported on Diagnostics. If a pipe or process can't be
// created, no further stages are started, the ones already running are
// waited on, and a *ResourceExhaustedError is returned with the partial
// result.
func (r *Runner) Run(p *Pipeline) (*Result, error) {
	res := &Result{}
	if p.Empty() {
		return res, nil
	}

	n := p.Len()
	res.Stages = make([]StageStatus, n)
	for i, stage := range p.Stages {
		res.Stages[i].Argv = stage.Argv
	}

	log := r.logger()

	if r.TTY != nil {
		// Both the leader taking the terminal and the runner taking it back
		// happen from a background group.
		r.ignoreTTOU.Do(func() {
			signal.Ignore(syscall.SIGTTOU)
		})
	}

	pipes, err := BuildPipes(n)
	if err != nil {
		return res, err
	}
	res.Pipes = pipes.Len()
	log.Debug("allocated pipes", zap.Int("stages", n), zap.Int("pipes", res.Pipes))

	// pid -> stage index for everything that must still be waited on.
	running := make(map[int]int, n)

	var spawnErr error
	for i := range p.Stages {
		pid, err := r.launchStage(p, i, pipes, res.Pgid)

		// The ends handed to this stage are the child's now, the runner
		// must not keep them alive.
		if relErr := releaseStageEnds(pipes, i, n); relErr != nil {
			log.Warn("releasing pipe ends", zap.Int("stage", i), zap.Error(relErr))
		}

		if err != nil {
			var stageErr *StageError
			if !errors.As(err, &stageErr) {
				spawnErr = &ResourceExhaustedError{Op: "spawn", Launched: len(running), Err: err}
				break
			}
			status := &res.Stages[i]
			status.Outcome = stageErr.Outcome
			status.ExitCode = stageErr.ExitCode()
			status.Err = stageErr
			r.reportStageError(stageErr)
			log.Debug("stage failed", zap.Int("stage", i), zap.Error(stageErr))
			continue
		}

		if res.Pgid == 0 {
			res.Pgid = pid
		}
		r.checkGroup(pid, res.Pgid)
		running[pid] = i
		res.Stages[i].Pid = pid
		log.Debug("started stage",
			zap.Int("stage", i),
			zap.Int("pid", pid),
			zap.Int("pgid", res.Pgid),
			zap.Strings("argv", p.Stages[i].Argv))
	}

	// Anything left is only owned because spawning stopped early; closing it
	// lets the running stages see end-of-stream instead of hanging.
	if err := pipes.Close(); err != nil {
		log.Warn("closing pipes", zap.Error(err))
	}

	r.wait(res, running)
	if res.Pgid != 0 {
		r.reclaimTerminal()
	}

	return res, spawnErr
}

// releaseStageEnds closes the runner's copies of the pipe ends that were
// handed to stage i of n.
func releaseStageEnds(pipes *PipeSet, i, n int) error {
	var err error
	if i > 0 {
		err = multierr.Append(err, pipes.ReleaseRead(i-1))
	}
	if i < n-1 {
		err = multierr.Append(err, pipes.ReleaseWrite(i))
	}
	return err
}

// wait reaps every process in running, in whatever order they exit.
func (r *Runner) wait(res *Result, running map[int]int) {
	log := r.logger()

	// Any member of the group may be reaped next. Stages that moved
	// themselves to another group are waited on by pid once the group is
	// empty.
	byPid := false
	for len(running) > 0 {
		target := -res.Pgid
		if byPid {
			for pid := range running {
				target = pid
				break
			}
		}

		var ws unix.WaitStatus
		pid, err := unix.Wait4(target, &ws, 0, nil)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.ECHILD && !byPid:
			byPid = true
			continue
		case err != nil:
			log.Error("wait failed", zap.Int("target", target), zap.Error(err))
			return
		}

		i, ok := running[pid]
		if !ok {
			continue
		}
		delete(running, pid)
		res.Reaped = append(res.Reaped, i)

		status := &res.Stages[i]
		switch {
		case ws.Exited():
			status.Outcome = Exited
			status.ExitCode = ws.ExitStatus()
		case ws.Signaled():
			status.Outcome = Signaled
			status.Signal = ws.Signal()
			status.ExitCode = 128 + int(ws.Signal())
		}
		log.Debug("reaped stage",
			zap.Int("stage", i),
			zap.Int("pid", pid),
			zap.Stringer("outcome", status.Outcome),
			zap.Int("status", status.ExitCode))
	}
}

// checkGroup confirms the child joined the pipeline's process group.
//
// The child joins before exec, and a child that has already exec'd can't be
// moved by its parent, so there's nothing left to set here.
func (r *Runner) checkGroup(pid, pgid int) {
	got, err := unix.Getpgid(pid)
	if err != nil {
		// Already gone, it'll be reaped.
		return
	}
	if got != pgid {
		r.logger().Warn("stage is not in the pipeline's process group",
			zap.Int("pid", pid),
			zap.Int("pgid", got),
			zap.Int("want", pgid))
	}
}

func (r *Runner) reclaimTerminal() {
	if r.TTY == nil {
		return
	}
	if err := unix.IoctlSetPointerInt(int(r.TTY.Fd()), unix.TIOCSPGRP, unix.Getpgrp()); err != nil {
		r.logger().Warn("reclaiming terminal", zap.Error(err))
	}
}

func (r *Runner) reportStageError(err *StageError) {
	switch err.Outcome {
	case NotFound:
		fmt.Fprintf(r.diagnostics(), "%s: Command not found\n", err.Name)
	default:
		fmt.Fprintf(r.diagnostics(), "%s: %v\n", err.Name, err.Err)
	}
}

func (r *Runner) stdin() *os.File {
	if r.Stdin != nil {
		return r.Stdin
	}
	return os.Stdin
}

func (r *Runner) stdout() *os.File {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *Runner) stderr() *os.File {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}

func (r *Runner) diagnostics() io.Writer {
	if r.Diagnostics != nil {
		return r.Diagnostics
	}
	return r.stdout()
}

func (r *Runner) environ() []string {
	if r.Env != nil {
		return r.Env
	}
	return os.Environ()
}

func (r *Runner) getenv(key string) string {
	prefix := key + "="
	value := ""
	// Later entries win, like os/exec.
	for _, kv := range r.environ() {
		if strings.HasPrefix(kv, prefix) {
			value = kv[len(prefix):]
		}
	}
	return value
}

func (r *Runner) fs() afero.Fs {
	if r.Fs != nil {
		return r.Fs
	}
	return afero.NewOsFs()
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return zap.NewNop()
}
