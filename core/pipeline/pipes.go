package pipeline

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// pipe2 is swapped out in tests to simulate descriptor exhaustion.
var pipe2 = unix.Pipe2

type pipe struct {
	r *os.File
	w *os.File
}

// PipeSet holds the pipes connecting adjacent stages. Pipe i joins stage i
// to stage i+1.
//
// The set owns every end until it is released, and each end is closed
// exactly once.
type PipeSet struct {
	pipes []pipe
}

// BuildPipes allocates the stages-1 pipes needed to connect a pipeline.
//
// All pipes are close-on-exec. If allocation fails partway, every pipe
// created so far is closed and a *ResourceExhaustedError is returned.
func BuildPipes(stages int) (*PipeSet, error) {
	ps := &PipeSet{}
	for i := 0; i < stages-1; i++ {
		var fds [2]int
		if err := pipe2(fds[:], unix.O_CLOEXEC); err != nil {
			return nil, &ResourceExhaustedError{
				Op:  "pipe",
				Err: multierr.Append(err, ps.Close()),
			}
		}

		ps.pipes = append(ps.pipes, pipe{
			r: os.NewFile(uintptr(fds[0]), fmt.Sprintf("pipe%d:r", i)),
			w: os.NewFile(uintptr(fds[1]), fmt.Sprintf("pipe%d:w", i)),
		})
	}

	return ps, nil
}

// Len returns the number of pipes in the set.
func (ps *PipeSet) Len() int {
	return len(ps.pipes)
}

// Read returns the read end of pipe i, or nil if it has been released.
func (ps *PipeSet) Read(i int) *os.File {
	return ps.pipes[i].r
}

// Write returns the write end of pipe i, or nil if it has been released.
func (ps *PipeSet) Write(i int) *os.File {
	return ps.pipes[i].w
}

// ReleaseRead closes the set's copy of the read end of pipe i.
func (ps *PipeSet) ReleaseRead(i int) error {
	f := ps.pipes[i].r
	ps.pipes[i].r = nil
	if f == nil {
		return nil
	}
	return f.Close()
}

// ReleaseWrite closes the set's copy of the write end of pipe i.
func (ps *PipeSet) ReleaseWrite(i int) error {
	f := ps.pipes[i].w
	ps.pipes[i].w = nil
	if f == nil {
		return nil
	}
	return f.Close()
}

// Open returns the number of pipe ends the set still owns.
func (ps *PipeSet) Open() int {
	count := 0
	for _, p := range ps.pipes {
		if p.r != nil {
			count++
		}
		if p.w != nil {
			count++
		}
	}
	return count
}

// Close releases every end the set still owns. It's safe to call more
// than once.
func (ps *PipeSet) Close() error {
	var err error
	for i := range ps.pipes {
		err = multierr.Append(err, ps.ReleaseRead(i))
		err = multierr.Append(err, ps.ReleaseWrite(i))
	}
	return err
}
