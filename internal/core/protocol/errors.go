package protocol

import (
	"errors"
	"fmt"
)

// Frame and payload errors
var (
	ErrInvalidFrame    = errors.New("invalid frame")
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrUnknownMessage  = errors.New("unknown message type")
	ErrMissingField    = errors.New("missing required field")
	ErrInvalidLocation = errors.New("invalid resource location")
	ErrFetchFailed     = errors.New("resource fetch failed")
)

// Transport errors
var (
	ErrTransportClosed   = errors.New("transport is closed")
	ErrNotConnected      = errors.New("transport is not connected")
	ErrFrameTooLarge     = errors.New("frame too large")
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
)

// ErrorCode classifies failures that cross the decode/apply boundary.
type ErrorCode int

const (
	ErrorCodeSuccess ErrorCode = 0

	// Frame error codes (1000-1999)

	ErrorCodeMalformedFrame ErrorCode = 1001
	ErrorCodeUnknownType    ErrorCode = 1002
	ErrorCodeBadPayload     ErrorCode = 1003

	// Reference error codes (2000-2999)

	ErrorCodeDanglingReference ErrorCode = 2001
	ErrorCodeStaleGeneration   ErrorCode = 2002

	// Format error codes (3000-3999)

	ErrorCodeUnsupportedFormat ErrorCode = 3001
	ErrorCodeOutOfRange        ErrorCode = 3002

	// Transport error codes (7000-7999)

	ErrorCodeTransportFailed ErrorCode = 7001
	ErrorCodeDialFailed      ErrorCode = 7002
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeSuccess:
		return "success"
	case ErrorCodeMalformedFrame:
		return "malformed_frame"
	case ErrorCodeUnknownType:
		return "unknown_type"
	case ErrorCodeBadPayload:
		return "bad_payload"
	case ErrorCodeDanglingReference:
		return "dangling_reference"
	case ErrorCodeStaleGeneration:
		return "stale_generation"
	case ErrorCodeUnsupportedFormat:
		return "unsupported_format"
	case ErrorCodeOutOfRange:
		return "out_of_range"
	case ErrorCodeTransportFailed:
		return "transport_failed"
	case ErrorCodeDialFailed:
		return "dial_failed"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Error represents a protocol-specific error with additional context
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds a coded error. cause may be nil.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the code of the first *Error in err's chain.
func CodeOf(err error) ErrorCode {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Code
	}
	if err == nil {
		return ErrorCodeSuccess
	}
	return ErrorCodeTransportFailed
}
