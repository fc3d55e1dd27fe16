//go:build windows

package supervise

import (
	"os"
	"os/exec"
)

func configureProcess(cmd *exec.Cmd) {}

// terminateProcess kills outright; Windows has no SIGTERM equivalent for console processes.
func terminateProcess(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}

func killProcess(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}

func exitCode(state *os.ProcessState) int {
	if state == nil {
		return 1
	}
	if code := state.ExitCode(); code >= 0 {
		return code
	}
	return 1
}
