package logstream

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/andrewcai8/agentswarm/internal/logging"
	"github.com/andrewcai8/agentswarm/internal/render"
	"github.com/andrewcai8/agentswarm/internal/types"
)

// Renderer is the subset of render.Renderer the router drives.
type Renderer interface {
	Text(text string)
	RunFiles(files types.RunFiles)
	Metrics(m types.Metrics, elapsed time.Duration)
	Record(rec types.Record)
}

var _ Renderer = (*render.Renderer)(nil)

// Forwarder receives a verbatim copy of every raw line. A non-nil error detaches it for the rest of the run.
type Forwarder interface {
	Forward(raw []byte) error
}

// Router dispatches lines in arrival order. It owns the latest metrics and run files; it is not safe for concurrent
// use.
type Router struct {
	renderer  Renderer
	forwarder Forwarder
	logger    *log.Logger
	elapsed   func() time.Duration

	metrics  *types.Metrics
	runFiles *types.RunFiles
}

// NewRouter creates a Router. forwarder may be nil. elapsed reports time since the run started.
func NewRouter(renderer Renderer, forwarder Forwarder, logger *log.Logger, elapsed func() time.Duration) *Router {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Router{renderer: renderer, forwarder: forwarder, logger: logger, elapsed: elapsed}
}

// Route handles one raw line read from the child.
func (r *Router) Route(raw []byte) {
	line, ok := Parse(raw)
	if !ok {
		return
	}

	if r.forwarder != nil {
		if err := r.forwarder.Forward(raw); err != nil {
			r.logger.Debug("secondary consumer detached", "err", err)
			r.forwarder = nil
		}
	}

	switch line.Kind {
	case KindText:
		r.renderer.Text(line.Text)
	case KindRunFiles:
		if r.runFiles != nil {
			r.logger.Debug("ignoring repeated run files announcement")
			return
		}
		files, _ := types.RunFilesFromData(line.Record.Data)
		r.runFiles = &files
		r.renderer.RunFiles(files)
	case KindFinalSummary:
		m := types.MetricsFromData(line.Record.Data)
		r.metrics = &m
		if r.runFiles == nil {
			if files, ok := types.RunFilesFromData(line.Record.Data); ok {
				r.runFiles = &files
			}
		}
	case KindMetrics:
		m := types.MetricsFromData(line.Record.Data)
		r.metrics = &m
		r.renderer.Metrics(m, r.elapsed())
	case KindGeneric:
		r.renderer.Record(line.Record)
	}
}

// Metrics returns the latest metrics snapshot, or nil if none was seen.
func (r *Router) Metrics() *types.Metrics {
	return r.metrics
}

// RunFiles returns the announced run files, or nil if none were announced.
func (r *Router) RunFiles() *types.RunFiles {
	return r.runFiles
}
