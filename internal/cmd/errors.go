package cmd

// ExitError wraps an error with a specific process exit code.
// Config load failures use code 2. Use errors.As to extract it from an
// error chain.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }
