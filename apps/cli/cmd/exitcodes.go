package cmd

import "fmt"

// Exit codes for collectspec CLI
const (
	// ExitSuccess indicates every case passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more cases failed
	ExitTestFailure = 1

	// ExitHookError indicates a before or after hook failed
	ExitHookError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitRunnerError indicates the runner could not be started
	ExitRunnerError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// ExitError makes the CLI exit with Code. Err is printed when set.
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

func exitWith(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}
