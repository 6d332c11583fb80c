package transport

import (
	"errors"
	"fmt"
)

// Normalized command outcomes.
var (
	ErrBusy        = errors.New("BUSY")
	ErrDenied      = errors.New("DENIED")
	ErrUnsupported = errors.New("UNSUPPORTED")
	ErrInternal    = errors.New("INTERNAL")
)

// ResultCode is a MAV_RESULT value.
type ResultCode uint8

const (
	ResultAccepted            ResultCode = 0
	ResultTemporarilyRejected ResultCode = 1
	ResultDenied              ResultCode = 2
	ResultUnsupported         ResultCode = 3
	ResultFailed              ResultCode = 4
	ResultInProgress          ResultCode = 5
	ResultCancelled           ResultCode = 6
)

var resultNames = map[ResultCode]string{
	ResultAccepted:            "ACCEPTED",
	ResultTemporarilyRejected: "TEMPORARILY_REJECTED",
	ResultDenied:              "DENIED",
	ResultUnsupported:         "UNSUPPORTED",
	ResultFailed:              "FAILED",
	ResultInProgress:          "IN_PROGRESS",
	ResultCancelled:           "CANCELLED",
}

func (r ResultCode) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("RESULT_%d", uint8(r))
}

// resultErrors maps every non-accepted MAV_RESULT onto a normalized error.
// Codes missing from the table map to ErrInternal.
var resultErrors = map[ResultCode]error{
	ResultTemporarilyRejected: ErrBusy,
	ResultInProgress:          ErrBusy,
	ResultDenied:              ErrDenied,
	ResultCancelled:           ErrDenied,
	ResultUnsupported:         ErrUnsupported,
	ResultFailed:              ErrInternal,
}

// ResultError wraps a rejected MAV_RESULT with its normalized code.
type ResultError struct {
	Code    error
	Result  ResultCode
	Command uint16
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("%v (command %d: %s)", e.Code, e.Command, e.Result)
}

func (e *ResultError) Unwrap() error {
	return e.Code
}

// NormalizeResult returns nil for an accepted command and a *ResultError otherwise.
func NormalizeResult(command uint16, result ResultCode) error {
	if result == ResultAccepted {
		return nil
	}
	code, ok := resultErrors[result]
	if !ok {
		code = ErrInternal
	}
	return &ResultError{Code: code, Result: result, Command: command}
}
