// Package logging builds the diagnostic logger. Diagnostics go to stderr so they never interleave with the rendered
// orchestrator output on stdout.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Prefix is printed before every diagnostic line.
const Prefix = "longshot"

// Palette shared by diagnostic output.
const (
	colorMuted   = lipgloss.Color("#6B7280")
	colorInfo    = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
)

// Options configure New.
type Options struct {
	Out   io.Writer // defaults to os.Stderr
	Debug bool
}

// New returns a logger at Info level, or Debug level with timestamps when opts.Debug is set.
func New(opts Options) *log.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	level := log.InfoLevel
	if opts.Debug {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(out, log.Options{
		Prefix:          Prefix,
		Level:           level,
		ReportTimestamp: opts.Debug,
		TimeFormat:      "15:04:05.000",
	})
	logger.SetStyles(styles())
	return logger
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	logger := log.New(io.Discard)
	logger.SetLevel(log.FatalLevel)
	return logger
}

func styles() *log.Styles {
	s := log.DefaultStyles()
	s.Prefix = lipgloss.NewStyle().Bold(true).Foreground(colorMuted)
	s.Levels[log.DebugLevel] = levelStyle("DEBUG", colorMuted)
	s.Levels[log.InfoLevel] = levelStyle("INFO", colorInfo)
	s.Levels[log.WarnLevel] = levelStyle("WARN", colorWarning)
	s.Levels[log.ErrorLevel] = levelStyle("ERROR", colorError)
	return s
}

func levelStyle(label string, color lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().SetString(label).Bold(true).MaxWidth(5).Foreground(color)
}
