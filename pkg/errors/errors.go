// Package errors defines the error taxonomy shared by the dump pipeline.
//
// Every failure carries a code. Decoders return INVALID_ARTIFACT for input
// they cannot make sense of and CONSISTENCY_FAULT when the accounting they
// maintain stops adding up; the outer layers add the I/O codes.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CodeUnknown          = "UNKNOWN_ERROR"
	CodeInvalidArtifact  = "INVALID_ARTIFACT"
	CodeConsistencyFault = "CONSISTENCY_FAULT"
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeConfigError      = "CONFIG_ERROR"
	CodeDatabaseError    = "DATABASE_ERROR"
	CodeUploadError      = "UPLOAD_ERROR"
	CodeDownloadError    = "DOWNLOAD_ERROR"
)

// AppError is a coded error with an optional cause.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error renders "[CODE] message: cause". Causes carrying the same code are
// flattened so annotated chains print the code once.
func (e *AppError) Error() string {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(e.Code)
	sb.WriteString("] ")
	e.chain(&sb)
	return sb.String()
}

func (e *AppError) chain(sb *strings.Builder) {
	sb.WriteString(e.Message)
	if e.Err == nil {
		return
	}
	sb.WriteString(": ")
	if inner, ok := e.Err.(*AppError); ok && inner.Code == e.Code {
		inner.chain(sb)
		return
	}
	sb.WriteString(e.Err.Error())
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches any AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && e.Code == t.Code
}

func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Newf(code, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code and message to err.
func Wrap(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Annotate prefixes err with context and keeps its code.
func Annotate(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(GetErrorCode(err), fmt.Sprintf(format, args...), err)
}

// ErrNotFound matches every NOT_FOUND error.
var ErrNotFound = New(CodeNotFound, "resource not found")

// InvalidArtifact reports a header or layout that cannot be decoded.
func InvalidArtifact(format string, args ...interface{}) *AppError {
	return Newf(CodeInvalidArtifact, format, args...)
}

// ConsistencyFault reports a violated decoder or accounting invariant.
func ConsistencyFault(format string, args ...interface{}) *AppError {
	return Newf(CodeConsistencyFault, format, args...)
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		if e, ok := err.(*AppError); ok && e.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

func IsInvalidArtifact(err error) bool  { return HasCode(err, CodeInvalidArtifact) }
func IsConsistencyFault(err error) bool { return HasCode(err, CodeConsistencyFault) }
func IsNotFound(err error) bool         { return HasCode(err, CodeNotFound) }
func IsDatabaseError(err error) bool    { return HasCode(err, CodeDatabaseError) }

// GetErrorCode returns the code of the outermost AppError in err's chain.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage returns the message of the outermost AppError, or err's text.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
