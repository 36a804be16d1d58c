package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the CLI, the assignment loop and the status API.
const (
	CodeConfiguration     = "CONFIGURATION_ERROR"
	CodeUnknownTeam       = "UNKNOWN_TEAM"
	CodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	CodeUpdateFailed      = "UPDATE_FAILED"
	CodeProcessorFailure  = "PROCESSOR_FAILURE"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeInternal          = "INTERNAL_ERROR"
)

// Process exit codes returned by ExitCode.
const (
	ExitOK                = 0
	ExitFailure           = 1
	ExitConfiguration     = 2
	ExitSourceUnavailable = 3
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewConfigurationError reports a fatal setup problem detected before any network call.
func NewConfigurationError(message string, details map[string]any) error {
	return NewDomainError(CodeConfiguration, message, http.StatusInternalServerError, details)
}

// NewUnknownTeam is the configuration error returned for a team key missing from the registry.
func NewUnknownTeam(team string) error {
	return NewDomainError(CodeUnknownTeam, fmt.Sprintf("unknown team %q", team), http.StatusNotFound,
		map[string]any{"team": team})
}

func NewSourceUnavailable(err error) error {
	return &DomainError{
		Code:       CodeSourceUnavailable,
		Message:    "ticket source unavailable",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewUpdateFailed(ticketID string, err error) error {
	return &DomainError{
		Code:       CodeUpdateFailed,
		Message:    "ticket update failed",
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"ticket_id": ticketID},
		Err:        err,
	}
}

func NewProcessorFailure(ticketID string, err error) error {
	return &DomainError{
		Code:       CodeProcessorFailure,
		Message:    "ticket processing failed",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"ticket_id": ticketID},
		Err:        err,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func hasCode(err error, codes ...string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	for _, code := range codes {
		if domainErr.Code == code {
			return true
		}
	}
	return false
}

// IsConfiguration reports whether err aborts the run before any ticket is touched.
func IsConfiguration(err error) bool {
	return hasCode(err, CodeConfiguration, CodeUnknownTeam)
}

// IsSourceUnavailable reports whether err came from a failed ticket fetch.
func IsSourceUnavailable(err error) bool {
	return hasCode(err, CodeSourceUnavailable)
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return ExitOK
	case IsConfiguration(err):
		return ExitConfiguration
	case IsSourceUnavailable(err):
		return ExitSourceUnavailable
	default:
		return ExitFailure
	}
}
