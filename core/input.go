package core

import (
	"bufio"
	"io"

	"github.com/abiosoft/readline"
)

// LineReader supplies the shell with command lines.
type LineReader interface {
	// ReadLine returns the next line or io.EOF once input is exhausted.
	ReadLine() (string, error)
}

type bufferedReader struct {
	r      *bufio.Reader
	out    io.Writer
	prompt string
	eof    bool
}

// NewScriptReader reads lines from a script without prompting.
func NewScriptReader(r io.Reader) LineReader {
	return &bufferedReader{r: bufio.NewReader(r)}
}

// NewPlainPromptReader writes prompt to out before reading each line from r.
// It's used when stdin isn't a terminal.
func NewPlainPromptReader(r io.Reader, out io.Writer, prompt string) LineReader {
	return &bufferedReader{r: bufio.NewReader(r), out: out, prompt: prompt}
}

func (b *bufferedReader) ReadLine() (string, error) {
	if b.eof {
		return "", io.EOF
	}
	if b.out != nil && b.prompt != "" {
		io.WriteString(b.out, b.prompt)
	}

	line, err := b.r.ReadString('\n')
	if err == io.EOF && line != "" {
		// The last line had no trailing newline; run it before quitting.
		b.eof = true
		return line, nil
	}
	return line, err
}

// PromptReader reads lines from a terminal with line editing and history.
type PromptReader struct {
	Readline *readline.Instance
}

var _ LineReader = (*PromptReader)(nil)

// NewPromptReader creates a PromptReader.
func NewPromptReader(cfg *readline.Config) (*PromptReader, error) {
	if err := cfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}
	return &PromptReader{Readline: rl}, nil
}

func (p *PromptReader) ReadLine() (string, error) {
	for {
		line, err := p.Readline.Readline()
		if err == readline.ErrInterrupt {
			// Interrupt clears line.
			continue
		}
		return line, err
	}
}

func (p *PromptReader) Close() error {
	return p.Readline.Close()
}
