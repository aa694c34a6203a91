package broker

import (
	"errors"
	"fmt"
)

// ErrorCode is the small taxonomy every live-broker failure is mapped into.
// Callers branch on the code, never on a raw transport error.
type ErrorCode string

const (
	CodeAuthFailure       ErrorCode = "auth_failure"
	CodeRejected          ErrorCode = "rejected"
	CodeInsufficientFunds ErrorCode = "insufficient_funds"
	CodeConnectivity      ErrorCode = "connectivity_failure"
)

// ExecError is a typed execution failure from an Executor.
type ExecError struct {
	Code ErrorCode
	Msg  string
	Err  error
}

func (e *ExecError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("execution error: %s", e.Code)
	}
	return fmt.Sprintf("execution error: %s: %s", e.Code, e.Msg)
}

func (e *ExecError) Unwrap() error { return e.Err }

// IsCode reports whether err is an ExecError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}
