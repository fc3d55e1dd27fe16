package supervise

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Environment variables passed to the orchestrator.
const (
	PromptsRootEnv = "LONGSHOT_PROMPTS_ROOT"
	LogLevelEnv    = "LOG_LEVEL"
)

// ChildEnv returns base plus the variables pointing the runtime at its own assets and, in debug mode, raising its log
// level. Later entries win, so the overrides are appended.
func ChildEnv(base []string, runtimeRoot string, debug bool) []string {
	env := append([]string(nil), base...)
	env = append(env, PromptsRootEnv+"="+runtimeRoot)
	if debug {
		env = append(env, LogLevelEnv+"=debug")
	}
	return env
}

// Child is the orchestrator process. Its stdout and stderr are merged into one stream read through Output.
type Child struct {
	*process
	output *os.File
}

// StartChild starts argv in dir with env. argv[0] is resolved through PATH.
func StartChild(argv []string, dir string, env []string) (*Child, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create output pipe: %w", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = pw
	cmd.Stderr = pw

	p, err := startProcess(cmd)
	// The child holds its own copy of the write end; ours must be closed so EOF arrives when the child exits.
	_ = pw.Close()
	if err != nil {
		_ = pr.Close()
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}
	return &Child{process: p, output: pr}, nil
}

// Output is the combined stdout/stderr stream.
func (c *Child) Output() io.Reader {
	return c.output
}

// Close releases the read end of the output stream, unblocking any pending read.
func (c *Child) Close() error {
	return c.output.Close()
}
