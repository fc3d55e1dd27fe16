// Package supervise runs the orchestrator as a child process, streams its output through the log router for the
// lifetime of the run, and coordinates shutdown on child exit or signal.
package supervise

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/andrewcai8/agentswarm/internal/logging"
	"github.com/andrewcai8/agentswarm/internal/logstream"
	"github.com/andrewcai8/agentswarm/internal/render"
)

// DefaultGrace is how long a process gets to exit after a termination request before it is killed.
const DefaultGrace = 10 * time.Second

// Options configure a Supervisor.
type Options struct {
	Command []string // orchestrator argv
	Dir     string
	Env     []string

	Secondary       []string  // consumer argv; nil disables it
	SecondaryStdout io.Writer // defaults to os.Stdout
	SecondaryStderr io.Writer // defaults to os.Stderr

	Grace    time.Duration
	Renderer *render.Renderer
	Logger   *log.Logger
	Now      func() time.Time
}

// Supervisor owns one orchestrator run.
type Supervisor struct {
	opts   Options
	logger *log.Logger
	now    func() time.Time
}

// New creates a Supervisor, filling unset options with defaults.
func New(opts Options) *Supervisor {
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.SecondaryStdout == nil {
		opts.SecondaryStdout = os.Stdout
	}
	if opts.SecondaryStderr == nil {
		opts.SecondaryStderr = os.Stderr
	}
	if opts.Renderer == nil {
		opts.Renderer = render.New(io.Discard, render.Options{})
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Supervisor{opts: opts, logger: logger, now: now}
}

// run is the state of one Run call. Only the goroutine executing Run touches it.
type run struct {
	*Supervisor
	start     time.Time
	child     *Child
	secondary *Secondary
	router    *logstream.Router
	stop      chan struct{}
}

// Run starts the child and supervises it until it exits or ctx is canceled (a shutdown signal). It returns the final
// shutdown state; err is non-nil only if the child could not be started.
func (s *Supervisor) Run(ctx context.Context) (ShutdownState, error) {
	r := &run{Supervisor: s, start: s.now(), stop: make(chan struct{})}

	child, err := StartChild(s.opts.Command, s.opts.Dir, s.opts.Env)
	if err != nil {
		return ShutdownState{}, err
	}
	r.child = child
	s.logger.Debug("orchestrator started", "pid", child.cmd.Process.Pid, "argv", s.opts.Command)
	defer func() {
		close(r.stop)
		_ = child.Close()
	}()

	var forwarder logstream.Forwarder
	if len(s.opts.Secondary) > 0 {
		sec, err := StartSecondary(s.opts.Secondary, s.opts.Dir, s.opts.SecondaryStdout, s.opts.SecondaryStderr, s.logger)
		if err != nil {
			s.logger.Warn("could not start secondary consumer; continuing without it", "err", err)
		} else {
			r.secondary = sec
			forwarder = sec
		}
	}
	r.router = logstream.NewRouter(s.opts.Renderer, forwarder, s.logger, r.elapsed)

	lines := make(chan []byte)
	go readLines(child.Output(), lines, r.stop)

	for {
		select {
		case raw, ok := <-lines:
			if !ok {
				return r.shutdown(ctx, ReasonChildExit), nil
			}
			r.router.Route(raw)
		case <-ctx.Done():
			return r.shutdown(ctx, ReasonSignal), nil
		}
	}
}

// readLines sends each line of r, newline included, until EOF, a read error, or stop.
func readLines(r io.Reader, out chan<- []byte, stop <-chan struct{}) {
	defer close(out)
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			select {
			case out <- line:
			case <-stop:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (r *run) elapsed() time.Duration {
	return r.now().Sub(r.start)
}

// shutdown is the single exit path for a started run. Best-effort cleanup errors are logged and never change the exit
// code.
func (r *run) shutdown(ctx context.Context, reason Reason) ShutdownState {
	out := r.opts.Renderer

	if reason == ReasonChildExit {
		select {
		case <-r.child.Done():
		case <-ctx.Done():
			return r.shutdown(ctx, ReasonSignal)
		}
	}

	state := ShutdownState{
		Reason:   reason,
		Elapsed:  r.elapsed(),
		Metrics:  r.router.Metrics(),
		RunFiles: r.router.RunFiles(),
	}
	r.logger.Debug("shutting down", "reason", reason)

	switch reason {
	case ReasonSignal:
		out.ShuttingDown()
		out.Summary(state.Summary())

		var g errgroup.Group
		g.Go(func() error {
			forced, err := r.child.Terminate(r.opts.Grace)
			state.ForcedKill = forced
			if forced {
				r.logger.Warn("orchestrator did not exit in time; killed", "grace", r.opts.Grace)
			}
			return err
		})
		if r.secondary != nil {
			g.Go(func() error {
				return r.secondary.Terminate(r.opts.Grace)
			})
		}
		if err := g.Wait(); err != nil {
			r.logger.Warn("termination failed", "err", err)
		}
		if code, ok := r.child.exitCodeNow(); ok {
			state.ChildExitCode = code
		} else {
			state.ChildExitCode = -1
		}

	case ReasonChildExit:
		state.ChildExitCode = r.child.ExitCode()
		if r.secondary != nil {
			if err := r.secondary.Close(r.opts.Grace); err != nil {
				r.logger.Warn("secondary consumer did not shut down cleanly", "err", err)
			}
		}
		out.Finished(state.ChildExitCode)
		out.Summary(state.Summary())
		out.Blank()
	}

	if err := out.Err(); err != nil {
		r.logger.Debug("output write failed", "err", err)
	}
	return state
}
