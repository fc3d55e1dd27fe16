package supervise

import (
	"time"

	"github.com/andrewcai8/agentswarm/internal/render"
	"github.com/andrewcai8/agentswarm/internal/types"
)

// Reason is what started the shutdown.
type Reason int

const (
	ReasonChildExit Reason = iota // the child's output ended and it exited
	ReasonSignal                  // interrupt or termination signal
)

func (r Reason) String() string {
	switch r {
	case ReasonChildExit:
		return "child-exit"
	case ReasonSignal:
		return "signal"
	default:
		return "unknown"
	}
}

// SignalExitCode is the process exit code after a signal-initiated shutdown.
const SignalExitCode = 0

// ShutdownState is assembled once, at shutdown, from what the run observed.
type ShutdownState struct {
	Reason        Reason
	Elapsed       time.Duration
	Metrics       *types.Metrics
	RunFiles      *types.RunFiles
	ChildExitCode int // -1 if the child was still running when a signal shutdown gave up on it
	ForcedKill    bool
}

// ExitCode is the exit code for the whole process: the child's own code after a normal exit, SignalExitCode after a
// signal.
func (s ShutdownState) ExitCode() int {
	if s.Reason == ReasonSignal {
		return SignalExitCode
	}
	return s.ChildExitCode
}

// Summary returns the data for the run summary.
func (s ShutdownState) Summary() render.Summary {
	return render.Summary{Elapsed: s.Elapsed, Metrics: s.Metrics, RunFiles: s.RunFiles}
}
