package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors. Kind is one of the
// sentinel errors below and is matched by errors.Is.
type AppError struct {
	Code    string
	Message string
	Kind    error
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")

	ErrTransient = errors.New("transient failure")
	ErrUpstream  = errors.New("upstream rejected request")
	ErrMalformed = errors.New("malformed response")
	ErrParse     = errors.New("parse failure")
	ErrNoText    = errors.New("no text extractable")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewKindError builds an AppError classified as kind.
func NewKindError(kind error, code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Kind: kind, Cause: cause}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// StatusError classifies a non-2xx HTTP response of an upstream service.
func StatusError(service string, statusCode int, body []byte) *AppError {
	msg := fmt.Sprintf("%s status %d: %s", service, statusCode, truncateBody(body, 512))
	code := fmt.Sprintf("%s_HTTP_%d", service, statusCode)
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return NewKindError(ErrUnauthorized, code, msg, nil)
	case statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusTooEarly,
		statusCode == http.StatusTooManyRequests,
		statusCode >= 500:
		return NewKindError(ErrTransient, code, msg, nil)
	default:
		return NewKindError(ErrUpstream, code, msg, nil)
	}
}

// Classify returns the sentinel kind of err, or ErrInternal when it is unknown.
// Timeouts and connection resets count as transient.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrUnauthorized, ErrTransient, ErrMalformed, ErrParse, ErrNoText, ErrUpstream, ErrInvalidInput, ErrNotFound, ErrDatabase} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTransient
	}
	return ErrInternal
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool { return Classify(err) == ErrTransient }

// IsAuth reports an authentication or authorization failure.
func IsAuth(err error) bool { return Classify(err) == ErrUnauthorized }

// ToStatus maps err onto a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch Classify(err) {
	case ErrInvalidInput, ErrNoText:
		return status.Error(codes.InvalidArgument, err.Error())
	case ErrNotFound:
		return status.Error(codes.NotFound, err.Error())
	case ErrUnauthorized:
		return status.Error(codes.Unauthenticated, err.Error())
	case ErrTransient:
		if errors.Is(err, context.DeadlineExceeded) {
			return status.Error(codes.DeadlineExceeded, err.Error())
		}
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
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

func truncateBody(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "...(truncated)"
}
