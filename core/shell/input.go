package shell

import (
	"fmt"
	"io"
	"os"

	"github.com/abiosoft/readline"
	"golang.org/x/term"
)

// lineReader reads command lines.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// byteReader reads at most one byte per call so a line is never read past
// its newline. Whatever follows is left for the pipeline's first stage.
type byteReader struct {
	r io.Reader
}

func (b byteReader) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return b.r.Read(p)
}

// scriptReader reads lines from a file or pipe.
type scriptReader struct {
	in  byteReader
	out io.Writer
}

func newScriptReader(in io.Reader, out io.Writer) *scriptReader {
	return &scriptReader{in: byteReader{in}, out: out}
}

func (s *scriptReader) ReadLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(s.out, prompt)
	}

	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := s.in.Read(buf)
		if n == 1 {
			if buf[0] == '\n' {
				return string(line), nil
			}
			line = append(line, buf[0])
		}

		switch {
		case err == io.EOF && len(line) > 0:
			// Last line without a newline.
			return string(line), nil
		case err != nil:
			return "", err
		}
	}
}

func (s *scriptReader) Close() error {
	return nil
}

// terminalReader reads lines with editing and history.
type terminalReader struct {
	rl *readline.Instance
}

func newTerminalReader(in *os.File, out io.Writer, errOut io.Writer, historyFile string) (*terminalReader, error) {
	fd := int(in.Fd())
	cfg := &readline.Config{
		Stdin:       readline.NewCancelableStdin(byteReader{in}),
		Stdout:      out,
		Stderr:      errOut,
		HistoryFile: historyFile,
		FuncGetWidth: func() int {
			width, _, err := term.GetSize(fd)
			if err != nil {
				return 80
			}
			return width
		},
		FuncIsTerminal: func() bool {
			return term.IsTerminal(fd)
		},
	}

	if err := cfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}
	return &terminalReader{rl: rl}, nil
}

func (t *terminalReader) ReadLine(prompt string) (string, error) {
	t.rl.SetPrompt(prompt)
	return t.rl.Readline()
}

func (t *terminalReader) Close() error {
	return t.rl.Close()
}

func isTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}
