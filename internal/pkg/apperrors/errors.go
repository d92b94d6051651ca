package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrConfiguration     ErrorType = "CONFIGURATION_ERROR"
	ErrTransientRead     ErrorType = "TRANSIENT_READ_ERROR"
	ErrStateUnavailable  ErrorType = "STATE_UNAVAILABLE"
	ErrAddressResolution ErrorType = "ADDRESS_RESOLUTION_ERROR"
	ErrAccountCreation   ErrorType = "ACCOUNT_CREATION_ERROR"
	ErrExecution         ErrorType = "EXECUTION_ERROR"
	ErrInvalidAmount     ErrorType = "INVALID_AMOUNT"
	ErrInvalidRequest    ErrorType = "INVALID_REQUEST"
	ErrUpstream          ErrorType = "UPSTREAM_ERROR"
	ErrLocked            ErrorType = "LOCKED"
	ErrNotFound          ErrorType = "NOT_FOUND"
	ErrInternal          ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application.
// Step and Details carry what a caller needs to resume a failed run by hand.
type AppError struct {
	Type       ErrorType         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Step       string            `json:"step,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	HTTPStatus int               `json:"-"`
	Cause      error             `json:"-"`
}

func (e *AppError) Error() string {
	msg := e.Message
	if e.Step != "" {
		msg = e.Step + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on Type so errors.Is(err, apperrors.Kind(t)) works through wrapping.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// WithStep records the orchestration step that failed. It keeps an earlier step if one is set.
func (e *AppError) WithStep(step string) *AppError {
	if e.Step == "" {
		e.Step = step
	}
	return e
}

// WithDetail attaches a key/value diagnostic (address, tx hash) to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

// Kind returns a bare AppError usable as an errors.Is target.
func Kind(errType ErrorType) *AppError {
	return &AppError{Type: errType}
}

func IsType(err error, errType ErrorType) bool {
	return errors.Is(err, Kind(errType))
}

func NewConfiguration(msg string) *AppError {
	return New(ErrConfiguration, msg, nil)
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidRequest, ErrInvalidAmount:
		return http.StatusBadRequest
	case ErrLocked:
		return http.StatusConflict
	case ErrNotFound:
		return http.StatusNotFound
	case ErrUpstream, ErrExecution, ErrAccountCreation:
		return http.StatusBadGateway
	case ErrTransientRead, ErrStateUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrConfiguration, ErrAddressResolution:
		return "Check contract addresses and operator settings for this chain."
	case ErrStateUnavailable:
		return "The node has not indexed the account yet; retry the failed step later."
	case ErrAccountCreation:
		return "Inspect the deployment receipt and resume with the account address."
	case ErrExecution:
		return "Do not resubmit blindly; inspect the reverted transaction first."
	case ErrLocked:
		return "Another run holds the operator key; retry after it finishes."
	case ErrInvalidAmount:
		return "Amounts must be non-negative integers in base units."
	default:
		return ""
	}
}
