package daemon

import "fmt"

// ErrorKind classifies engine failures for the typed error event.
type ErrorKind string

const (
	// ErrorValidation: a setting was out of range or malformed. Corrected
	// locally, never fatal.
	ErrorValidation ErrorKind = "validation"
	// ErrorOperation: a collaborator call failed mid-run. Aborts the
	// current session and reverts to Idle.
	ErrorOperation ErrorKind = "operation"
	// ErrorScheduling: the interval timer could not be installed. The
	// scheduler stays Idle.
	ErrorScheduling ErrorKind = "scheduling"
)

// EngineError pairs a failure with its kind so listeners can react
// without string matching.
type EngineError struct {
	Kind ErrorKind
	Err  error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

func operationError(err error) *EngineError {
	return &EngineError{Kind: ErrorOperation, Err: err}
}

var (
	ErrRefreshInProgress = &refreshError{"a refresh is already in progress"}
	ErrRefreshNotRunning = &refreshError{"no refresh is running"}
	ErrEngineClosed      = &refreshError{"engine is closed"}
	ErrEngineDisabled    = &refreshError{"engine is disabled"}
)

type refreshError struct{ msg string }

func (e *refreshError) Error() string { return e.msg }
