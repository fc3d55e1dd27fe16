package supervise

import (
	"errors"
	"os"
	"os/exec"
	"time"
)

// process is a started command whose exit is observed by a single Wait goroutine.
type process struct {
	cmd   *exec.Cmd
	done  chan struct{}
	state *os.ProcessState
}

func startProcess(cmd *exec.Cmd) (*process, error) {
	configureProcess(cmd)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &process{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		p.state = cmd.ProcessState
		close(p.done)
	}()
	return p, nil
}

// Done is closed once the process has exited and been reaped.
func (p *process) Done() <-chan struct{} {
	return p.done
}

// ExitCode blocks until the process exits and returns its exit code.
func (p *process) ExitCode() int {
	<-p.done
	return exitCode(p.state)
}

func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Signal delivery, replaced in tests.
var (
	sendTerminate = terminateProcess
	sendKill      = killProcess
)

// ErrNotReaped reports a process that was still running after it had been killed and given another grace period.
var ErrNotReaped = errors.New("process did not exit after kill")

// exitCodeNow returns the exit code if the process has already been reaped.
func (p *process) exitCodeNow() (int, bool) {
	if !p.exited() {
		return 0, false
	}
	return exitCode(p.state), true
}

// wait reports whether the process exits within d.
func (p *process) wait(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-p.done:
		return true
	case <-timer.C:
		return false
	}
}

// Terminate asks the process to stop and waits up to grace before killing it. A termination request that cannot be
// delivered goes straight to the kill. After the kill it waits up to grace once more, so it always returns; err is
// ErrNotReaped (joined with any signalling errors) if the process is still running then. forced reports whether the
// kill was needed.
func (p *process) Terminate(grace time.Duration) (forced bool, err error) {
	if p.exited() {
		return false, nil
	}
	termErr := sendTerminate(p.cmd.Process)
	if errors.Is(termErr, os.ErrProcessDone) {
		termErr = nil
	}
	if termErr == nil && p.wait(grace) {
		return false, nil
	}
	if p.exited() {
		return false, nil
	}

	killErr := sendKill(p.cmd.Process)
	if errors.Is(killErr, os.ErrProcessDone) {
		killErr = nil
	}
	if !p.wait(grace) {
		return true, errors.Join(termErr, killErr, ErrNotReaped)
	}
	return true, nil
}
