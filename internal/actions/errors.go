// internal/actions/errors.go
package actions

import "fmt"

// ErrorCode is a string type used for structured error reporting from action
// execution. Using a custom type ensures only predefined constants can be
// used where an ErrorCode is expected.
type ErrorCode string

const (
	ErrCodeUnknownAction    ErrorCode = "UNKNOWN_ACTION"
	ErrCodeInvalidArguments ErrorCode = "INVALID_ARGUMENTS"
	ErrCodeElementNotFound  ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeExecutionFailure ErrorCode = "EXECUTION_FAILURE"
)

// ParseError reports input that does not match the action grammar. It is
// caught at the step boundary like any other action failure.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("action parse error: %s (input: %q)", e.Reason, e.Input)
}

// ExecError reports a failed action execution with a structured code.
type ExecError struct {
	Code   ErrorCode
	Action string
	Msg    string
	Cause  error
}

func (e *ExecError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("action %q failed [%s]: %s: %v", e.Action, e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("action %q failed [%s]: %s", e.Action, e.Code, e.Msg)
}

func (e *ExecError) Unwrap() error { return e.Cause }

func execErr(code ErrorCode, action, format string, args ...any) *ExecError {
	return &ExecError{Code: code, Action: action, Msg: fmt.Sprintf(format, args...)}
}
