package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func isOpenFd(fd int) bool {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	return err == nil
}

func TestBuildPipes(t *testing.T) {
	cases := map[string]struct {
		stages int
		pipes  int
	}{
		"none":   {0, 0},
		"single": {1, 0},
		"pair":   {2, 1},
		"three":  {3, 2},
		"many":   {8, 7},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			ps, err := BuildPipes(tc.stages)
			require.NoError(t, err)
			defer ps.Close()

			assert.Equal(t, tc.pipes, ps.Len())
			assert.Equal(t, 2*tc.pipes, ps.Open())
		})
	}
}

func TestBuildPipes_closeOnExec(t *testing.T) {
	ps, err := BuildPipes(3)
	require.NoError(t, err)
	defer ps.Close()

	for i := 0; i < ps.Len(); i++ {
		for _, f := range []uintptr{ps.Read(i).Fd(), ps.Write(i).Fd()} {
			flags, err := unix.FcntlInt(f, unix.F_GETFD, 0)
			require.NoError(t, err)
			assert.NotZero(t, flags&unix.FD_CLOEXEC, "descriptor %d must be close-on-exec", f)
		}
	}
}

func TestPipeSet_release(t *testing.T) {
	ps, err := BuildPipes(3)
	require.NoError(t, err)

	readFd := int(ps.Read(0).Fd())
	writeFd := int(ps.Write(1).Fd())

	assert.NoError(t, ps.ReleaseRead(0))
	assert.Nil(t, ps.Read(0))
	assert.False(t, isOpenFd(readFd))
	assert.Equal(t, 3, ps.Open())

	// Releasing twice is a no-op.
	assert.NoError(t, ps.ReleaseRead(0))
	assert.Equal(t, 3, ps.Open())

	assert.NoError(t, ps.ReleaseWrite(1))
	assert.False(t, isOpenFd(writeFd))
	assert.Equal(t, 2, ps.Open())

	assert.NoError(t, ps.Close())
	assert.Equal(t, 0, ps.Open())
	assert.NoError(t, ps.Close())
}

func TestBuildPipes_partialFailure(t *testing.T) {
	var created []int
	calls := 0
	pipe2 = func(p []int, flags int) error {
		calls++
		if calls == 3 {
			return unix.EMFILE
		}
		err := unix.Pipe2(p, flags)
		created = append(created, p[0], p[1])
		return err
	}
	defer func() { pipe2 = unix.Pipe2 }()

	ps, err := BuildPipes(5)
	assert.Nil(t, ps)
	assert.True(t, errors.Is(err, ErrResourceExhausted))
	assert.True(t, errors.Is(err, unix.EMFILE))

	var exhausted *ResourceExhaustedError
	if assert.True(t, errors.As(err, &exhausted)) {
		assert.Equal(t, "pipe", exhausted.Op)
		assert.Equal(t, 0, exhausted.Launched)
	}

	assert.Len(t, created, 4)
	for _, fd := range created {
		assert.False(t, isOpenFd(fd), "descriptor %d leaked", fd)
	}
}
