package common

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error codes carried by AppError.
const (
	CodeConfigMissing     = "CONFIG_MISSING"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeInvalidUpload     = "INVALID_UPLOAD"
	CodeBackendCallFailed = "BACKEND_CALL_FAILED"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeConfigError       = "CONFIG_ERROR"
	CodeInternal          = "INTERNAL"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil && !isSentinel(e.Cause) {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel that belongs to the error code, so errors.Is works
// even when Cause is the underlying backend error.
func (e *AppError) Is(target error) bool {
	s, ok := codeSentinels[e.Code]
	return ok && s == target
}

// Detail is the text shown to a user: the message plus the cause, without the code.
func (e *AppError) Detail() string {
	if e.Cause != nil && !isSentinel(e.Cause) {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Common application errors
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInternal          = errors.New("internal error")
	ErrDatabase          = errors.New("database error")
	ErrConfigMissing     = errors.New("configuration missing")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrInvalidUpload     = errors.New("invalid upload")
	ErrBackendCall       = errors.New("backend call failed")
)

var codeSentinels = map[string]error{
	CodeConfigMissing:     ErrConfigMissing,
	CodeUnsupportedFormat: ErrUnsupportedFormat,
	CodeInvalidUpload:     ErrInvalidUpload,
	CodeBackendCallFailed: ErrBackendCall,
	CodeInvalidInput:      ErrInvalidInput,
	CodeInternal:          ErrInternal,
}

func isSentinel(err error) bool {
	for _, s := range codeSentinels {
		if err == s {
			return true
		}
	}
	return false
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func ConfigMissing(message string) *AppError {
	return NewAppError(CodeConfigMissing, message, ErrConfigMissing)
}

func UnsupportedFormat(message string) *AppError {
	return NewAppError(CodeUnsupportedFormat, message, ErrUnsupportedFormat)
}

func InvalidUpload(message string) *AppError {
	return NewAppError(CodeInvalidUpload, message, ErrInvalidUpload)
}

func InvalidInput(message string) *AppError {
	return NewAppError(CodeInvalidInput, message, ErrInvalidInput)
}

// BackendCallFailed keeps the underlying error text intact.
func BackendCallFailed(source string, err error) *AppError {
	if err == nil {
		err = ErrBackendCall
	}
	return NewAppError(CodeBackendCallFailed, source, err)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Severity separates user-facing warnings from errors.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "none"
	}
}

// CodeOf returns the AppError code in err's chain, CodeInternal for other errors, "" for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// SeverityOf classifies err. Rejections made before any external call are warnings.
func SeverityOf(err error) Severity {
	switch CodeOf(err) {
	case "":
		return SeverityNone
	case CodeConfigMissing, CodeUnsupportedFormat, CodeInvalidUpload:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// UserMessage renders err for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Detail()
	}
	return err.Error()
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case "":
		return http.StatusOK
	case CodeConfigMissing, CodeUnsupportedFormat:
		return http.StatusUnprocessableEntity
	case CodeInvalidUpload:
		return http.StatusUnprocessableEntity
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeBackendCallFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// GRPCError converts err to a gRPC status error.
func GRPCError(err error) error {
	if err == nil {
		return nil
	}
	msg := UserMessage(err)
	switch CodeOf(err) {
	case CodeConfigMissing, CodeUnsupportedFormat:
		return status.Error(codes.FailedPrecondition, msg)
	case CodeInvalidUpload, CodeInvalidInput:
		return InvalidArgumentError(msg)
	case CodeBackendCallFailed:
		return status.Error(codes.Unavailable, msg)
	default:
		return InternalError(msg)
	}
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}
