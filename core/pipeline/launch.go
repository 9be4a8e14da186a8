package pipeline

import (
	"errors"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"syscall"

	"go.uber.org/multierr"
)

// forkExec is swapped out in tests to simulate process table exhaustion.
var forkExec = syscall.ForkExec

type fileList []*os.File

func (fl fileList) Close() error {
	var err error
	for _, f := range fl {
		err = multierr.Append(err, f.Close())
	}
	return err
}

// launchStage starts stage i of p and returns its pid.
//
// The new process gets exactly three descriptors: stdin is the read end of
// pipe i-1 or the stage's input file, stdout is the write end of pipe i or
// the stage's output file, and stderr is the runner's. Pipe redirects take
// precedence over file redirects. Nothing else crosses the exec because
// every other descriptor the runner owns is close-on-exec.
//
// pgid is the process group to join, 0 makes the stage the group leader.
//
// Failures local to the stage are returned as *StageError. Any other error
// means the system is out of resources and no process was created.
func (r *Runner) launchStage(p *Pipeline, i int, pipes *PipeSet, pgid int) (int, error) {
	stage := p.Stages[i]
	last := len(p.Stages) - 1

	// Redirect files are only needed until the child has its own copy.
	var opened fileList
	defer func() {
		if err := opened.Close(); err != nil {
			r.logger().Sugar().Warnf("closing redirect files: %v", err)
		}
	}()

	files := []*os.File{r.stdin(), r.stdout(), r.stderr()}

	switch {
	case i > 0:
		files[0] = pipes.Read(i - 1)
	case stage.Stdin != "":
		f, err := os.Open(stage.Stdin)
		if err != nil {
			return 0, redirectError(stage.Stdin, err)
		}
		opened = append(opened, f)
		files[0] = f
	}

	switch {
	case i < last:
		files[1] = pipes.Write(i)
	case stage.Stdout != "":
		f, err := os.OpenFile(stage.Stdout, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return 0, redirectError(stage.Stdout, err)
		}
		opened = append(opened, f)
		files[1] = f
	}

	path, err := r.resolve(stage.Name())
	if err != nil {
		return 0, &StageError{Outcome: NotFound, Name: stage.Name(), Err: err}
	}

	sys := &syscall.SysProcAttr{Setpgid: true, Pgid: pgid}
	if pgid == 0 && r.TTY != nil {
		sys.Foreground = true
		sys.Ctty = int(r.TTY.Fd())
	}

	fds := make([]uintptr, len(files))
	for n, f := range files {
		fds[n] = f.Fd()
	}

	pid, err := forkExec(path, stage.Argv, &syscall.ProcAttr{
		Env:   r.environ(),
		Files: fds,
		Sys:   sys,
	})
	runtime.KeepAlive(files)

	switch {
	case err == nil:
		return pid, nil
	case exhausted(err):
		return 0, err
	case notRunnable(err):
		return 0, &StageError{Outcome: NotFound, Name: stage.Name(), Err: err}
	default:
		return 0, &StageError{Outcome: ExecFailed, Name: stage.Name(), Err: err}
	}
}

func redirectError(name string, err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		err = pathErr.Err
	}
	return &StageError{Outcome: RedirectFailed, Name: name, Err: err}
}

// exhausted reports whether a launch error means the system ran out of
// processes, memory or descriptors. Only these stop the pipeline.
func exhausted(err error) bool {
	for _, errno := range []syscall.Errno{
		syscall.EAGAIN,
		syscall.ENOMEM,
		syscall.EMFILE,
		syscall.ENFILE,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// notRunnable reports whether a launch error means there is no program the
// stage could run.
func notRunnable(err error) bool {
	for _, errno := range []syscall.Errno{
		syscall.ENOENT,
		syscall.EACCES,
		syscall.ENOEXEC,
		syscall.ENOTDIR,
		syscall.EISDIR,
		syscall.ELOOP,
		syscall.ENAMETOOLONG,
		syscall.ETXTBSY,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// resolve finds the program a stage names.
func (r *Runner) resolve(name string) (string, error) {
	if !r.SearchPath || strings.Contains(name, "/") {
		return name, nil
	}
	return LookPath(r.fs(), r.getenv("PATH"), name)
}
