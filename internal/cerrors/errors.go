package cerrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e == nil {
		return "OK"
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithCause returns a shallow copy of e with Cause.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	c := *e
	c.Cause = err
	return &c
}

// WithMessage returns a shallow copy with an overridden message.
func (e *AppError) WithMessage(msg string, a ...any) *AppError {
	if e == nil {
		return nil
	}
	c := *e
	if len(a) > 0 {
		c.Message = fmt.Sprintf(msg, a...)
	} else {
		c.Message = msg
	}
	return &c
}

// CodeOf returns the code if err is *AppError; "UNKNOWN" otherwise; "OK" for nil.
func CodeOf(err error) string {
	switch e := err.(type) {
	case nil:
		return "OK"
	case *AppError:
		return e.Code
	default:
		return "UNKNOWN"
	}
}

// MessageOf returns the message if err is *AppError; err.Error() otherwise; "OK" for nil.
func MessageOf(err error) string {
	switch e := err.(type) {
	case nil:
		return "OK"
	case *AppError:
		if e.Message != "" {
			return e.Message
		}
		return e.Code
	default:
		return e.Error()
	}
}

// HTTPStatusOf returns the HTTP status if err is *AppError; otherwise 500; 200 for nil.
func HTTPStatusOf(err error) int {
	switch e := err.(type) {
	case nil:
		return http.StatusOK
	case *AppError:
		if e.HTTPStatus != 0 {
			return e.HTTPStatus
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// IsCode reports whether err is an *AppError with the given code.
func IsCode(err error, code string) bool {
	var e *AppError
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// def is a small constructor for sentinels.
func def(code, msg string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: msg, HTTPStatus: httpStatus}
}

var (
	OK = def("OK", "OK", http.StatusOK)
)

var (
	ErrGenericBadRequest      = def("400000", "bad request error", http.StatusBadRequest)
	ErrGenericUnknownAPIPath  = def("400004", "unknown api path", http.StatusNotFound)
	ErrPayloadTooLarge        = def("400013", "request body too large", http.StatusRequestEntityTooLarge)
	ErrGenericInternalServer  = def("500000", "internal server error", http.StatusInternalServerError)
	ErrGenericRequestTimedOut = def("500004", "request timeout error", http.StatusGatewayTimeout)
)

var (
	ErrNotNumeric       = def("460001", "signal is not numeric", http.StatusUnprocessableEntity)
	ErrOutOfUnitRange   = def("460002", "signal is not expressed as a 0.0 to 1.0 fraction", http.StatusUnprocessableEntity)
	ErrUnresolvedRole   = def("460003", "required signal role has no column", http.StatusUnprocessableEntity)
	ErrInvalidThreshold = def("460004", "invalid rule threshold", http.StatusBadRequest)
	ErrInvalidDataset   = def("460005", "invalid dataset", http.StatusBadRequest)
	ErrUnknownRule      = def("460006", "unknown fault rule", http.StatusNotFound)
)

// Is reports whether err carries the same code as target.
func Is(err error, target *AppError) bool {
	if target == nil {
		return err == nil
	}
	return IsCode(err, target.Code)
}

// NotNumeric reports that the column bound to role holds non-float cells.
func NotNumeric(role string) *AppError {
	return ErrNotNumeric.WithMessage("%s column failed with a check that the data is a float", role)
}

// OutOfUnitRange reports a fractional signal with a value above 1.0.
func OutOfUnitRange(role string) *AppError {
	return ErrOutOfUnitRange.WithMessage("%s column failed with a check that the data is between 0.0 and 1.0", role)
}

// UnresolvedRole lists the roles a rule needs but the column map does not provide.
func UnresolvedRole(roles ...string) *AppError {
	return ErrUnresolvedRole.WithMessage("missing column mapping for roles: %s", strings.Join(roles, ", "))
}

// InvalidThreshold reports an unusable rule parameter.
func InvalidThreshold(key, reason string) *AppError {
	return ErrInvalidThreshold.WithMessage("threshold %s is invalid: %s", key, reason)
}
