package cli

import (
	"errors"
	"fmt"
)

// ExitError carries a process exit code out of a command. Err may be nil when everything worth saying has already been
// printed (a failed reset, a child that exited non-zero).
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps err to the code the process should exit with: 0 for nil, the carried code for an *ExitError, and 1
// for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// silent reports whether err has nothing left to print.
func silent(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Err == nil
}
