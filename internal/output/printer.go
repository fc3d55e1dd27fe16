package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/andrewcai8/agentswarm/internal/ansi"
)

// Printer writes application messages and the output of helper commands (dependency install, workspace reset) that
// run before the orchestrator starts.
type Printer struct {
	out                io.Writer
	appStyle           ansi.Style
	commandStyle       ansi.Style
	commandOutputStyle ansi.Style
	last               outputKind
}

type outputKind int

const (
	outputNone outputKind = iota
	outputApp
	outputCommand
)

// NewPrinter creates a Printer that writes to out, styled for profile.
func NewPrinter(out io.Writer, profile ansi.ColorProfile) *Printer {
	if out == nil {
		out = io.Discard
	}
	return &Printer{
		out: out,
		appStyle: profile.Style(ansi.Style{
			Bold: ansi.StyleSetOn,
		}),
		commandStyle: profile.Style(ansi.Style{
			Foreground: ansi.ANSICyan,
		}),
		commandOutputStyle: profile.Style(ansi.Style{
			Faint: ansi.StyleSetOn,
		}),
		last: outputNone,
	}
}

// App writes bold application output.
func (p *Printer) App(text string) error {
	if text == "" {
		return nil
	}
	if err := p.ensureGapBeforeApp(); err != nil {
		return err
	}
	if err := p.writeStyled(p.appStyle, ensureTrailingNewline(text)); err != nil {
		return err
	}
	p.last = outputApp
	return nil
}

func (p *Printer) Appf(format string, args ...any) error {
	return p.App(fmt.Sprintf(format, args...))
}

// RunCommandStreaming prints the command line, then runs it in dir and streams stdout/stderr through the printer as it
// arrives, while capturing the combined output. The returned error is the command's *exec.ExitError when it ran but
// failed.
func (p *Printer) RunCommandStreaming(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	if err := p.ensureGapBeforeCommand(); err != nil {
		return nil, err
	}
	commandLine := formatCommand(name, args)
	if err := p.writeStyled(p.commandStyle, ensureTrailingNewline("$ "+commandLine)); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	var buf lockedBuffer
	writer := &styledWriter{
		style: p.commandOutputStyle,
		out:   p.out,
	}
	copyStream := func(r io.Reader) error {
		_, err := io.Copy(writer, io.TeeReader(r, &buf))
		return err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	errCh := make(chan error, 2)
	go func() { errCh <- copyStream(stdout) }()
	go func() { errCh <- copyStream(stderr) }()

	var copyErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && copyErr == nil {
			copyErr = err
		}
	}

	waitErr := cmd.Wait()
	p.last = outputCommand

	if waitErr != nil {
		return buf.Bytes(), waitErr
	}
	return buf.Bytes(), copyErr
}

func (p *Printer) ensureGapBeforeCommand() error {
	switch p.last {
	case outputApp, outputCommand:
		_, err := io.WriteString(p.out, "\n")
		return err
	default:
		return nil
	}
}

func (p *Printer) ensureGapBeforeApp() error {
	if p.last != outputCommand {
		return nil
	}
	_, err := io.WriteString(p.out, "\n")
	return err
}

func (p *Printer) writeStyled(style ansi.Style, text string) error {
	if text == "" {
		return nil
	}
	_, err := io.WriteString(p.out, style.Apply(text))
	return err
}

type styledWriter struct {
	style ansi.Style
	out   io.Writer
	mu    sync.Mutex
}

func (w *styledWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.out.Write([]byte(w.style.Apply(string(p))))
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// lockedBuffer is a bytes.Buffer shared by the stdout and stderr copiers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func ensureTrailingNewline(text string) string {
	if strings.HasSuffix(text, "\n") {
		return text
	}
	return text + "\n"
}

func formatCommand(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteArg(name))
	for _, arg := range args {
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}

func quoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsAny(arg, " \t\n'\"\\$&|;<>*?[]{}()") {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", "'\"'\"'") + "'"
}
