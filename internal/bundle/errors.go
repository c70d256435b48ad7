package bundle

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/noah-isme/bundle-admin/internal/jobpoll"
	"github.com/noah-isme/bundle-admin/internal/lock"
	"github.com/noah-isme/bundle-admin/internal/shopify"
)

var (
	// ErrNotFound is returned when a bundle does not exist for the shop.
	ErrNotFound = errors.New("bundle: not found")
	// ErrVersionConflict is returned when a bundle changed since it was read.
	ErrVersionConflict = errors.New("bundle: version conflict")
)

// ErrorKind classifies orchestrator failures.
type ErrorKind string

const (
	ErrorValidation       ErrorKind = "validation"
	ErrorRemoteValidation ErrorKind = "remote_validation"
	ErrorJobFailed        ErrorKind = "job_failed"
	ErrorJobTimeout       ErrorKind = "job_timeout"
	ErrorTransport        ErrorKind = "transport"
	ErrorPersistence      ErrorKind = "persistence"
	ErrorNotFound         ErrorKind = "not_found"
	ErrorConflict         ErrorKind = "conflict"
)

// Error is the typed failure returned by Service operations.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
	Details any
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the error kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case ErrorValidation, ErrorRemoteValidation:
		return http.StatusUnprocessableEntity
	case ErrorNotFound:
		return http.StatusNotFound
	case ErrorConflict:
		return http.StatusConflict
	case ErrorJobTimeout:
		return http.StatusGatewayTimeout
	case ErrorJobFailed, ErrorTransport:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Code is the machine readable error code of the response envelope.
func (e *Error) Code() string {
	switch e.Kind {
	case ErrorValidation:
		return "VALIDATION_ERROR"
	case ErrorRemoteValidation:
		return "REMOTE_VALIDATION_ERROR"
	case ErrorJobFailed:
		return "JOB_FAILED"
	case ErrorJobTimeout:
		return "JOB_TIMEOUT"
	case ErrorTransport:
		return "UPSTREAM_ERROR"
	case ErrorNotFound:
		return "BUNDLE_NOT_FOUND"
	case ErrorConflict:
		return "BUNDLE_CONFLICT"
	}
	return "INTERNAL"
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func validationError(message string, details any) *Error {
	return &Error{Kind: ErrorValidation, Message: message, Details: details}
}

// remoteError classifies a failure of a platform call or job.
func remoteError(step string, err error) *Error {
	var (
		userErrs *shopify.UserErrorsError
		failed   *jobpoll.FailedError
	)
	switch {
	case errors.As(err, &userErrs):
		return &Error{Kind: ErrorRemoteValidation, Err: err, Details: userErrs.Errors}
	case errors.As(err, &failed):
		return &Error{Kind: ErrorJobFailed, Err: err, Details: failed.UserErrors}
	case errors.Is(err, jobpoll.ErrTimedOut):
		return &Error{Kind: ErrorJobTimeout, Message: step, Err: err}
	}
	return &Error{Kind: ErrorTransport, Message: step, Err: err}
}

// storeError classifies a repository failure.
func storeError(step string, err error) *Error {
	switch {
	case errors.Is(err, ErrNotFound):
		return &Error{Kind: ErrorNotFound, Message: "Bundle not found", Err: err}
	case errors.Is(err, ErrVersionConflict), errors.Is(err, lock.ErrNotAcquired):
		return &Error{Kind: ErrorConflict, Message: "Bundle was modified concurrently", Err: err}
	}
	return &Error{Kind: ErrorPersistence, Message: step, Err: err}
}
