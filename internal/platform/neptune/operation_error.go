package neptune

import (
	"errors"
	"fmt"
)

type OperationErrorCode string

const (
	// OperationErrorValidation covers bad arguments and disallowed targets.
	OperationErrorValidation OperationErrorCode = "validation_failed"
	// OperationErrorConflict is the store's optimistic-concurrency signal;
	// it is the only code the client retries inline.
	OperationErrorConflict OperationErrorCode = "concurrent_modification"
	// OperationErrorTimeout and OperationErrorTransportFailed are transient;
	// callers defer them to the recovery pass.
	OperationErrorTimeout         OperationErrorCode = "timeout"
	OperationErrorTransportFailed OperationErrorCode = "transport_failed"
	// OperationErrorQueryFailed is a permanent remote rejection.
	OperationErrorQueryFailed  OperationErrorCode = "query_failed"
	OperationErrorEncodeFailed OperationErrorCode = "encode_failed"
	OperationErrorDecodeFailed OperationErrorCode = "decode_failed"
)

type OperationError struct {
	Code       OperationErrorCode
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *OperationError) Error() string {
	if e == nil {
		return "neptune operation failed"
	}
	if e.Message != "" {
		return fmt.Sprintf(
			"neptune operation failed (op=%s code=%s status=%d): %s",
			e.Operation, e.Code, e.StatusCode, e.Message,
		)
	}
	if e.Cause != nil {
		return fmt.Sprintf(
			"neptune operation failed (op=%s code=%s status=%d): %v",
			e.Operation, e.Code, e.StatusCode, e.Cause,
		)
	}
	return fmt.Sprintf(
		"neptune operation failed (op=%s code=%s status=%d)",
		e.Operation, e.Code, e.StatusCode,
	)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func opErr(op string, code OperationErrorCode, message string, cause error) *OperationError {
	return &OperationError{Code: code, Operation: op, Message: message, Cause: cause}
}

// IsConflict reports whether err is the store's optimistic-concurrency error.
func IsConflict(err error) bool {
	return errCode(err) == OperationErrorConflict
}

// IsTransient reports whether err should be deferred to the recovery pass
// rather than treated as a permanent rejection.
func IsTransient(err error) bool {
	code := errCode(err)
	return code == OperationErrorTimeout || code == OperationErrorTransportFailed
}

func errCode(err error) OperationErrorCode {
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe.Code
	}
	return ""
}
