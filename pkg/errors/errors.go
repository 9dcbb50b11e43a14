package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain sentinels used by the chat core. The coordinator maps these to its
// silent-no-op policy; the REST surface maps them to AppError responses.
var (
	// ErrEmptyName rejects a join or rename with an empty character name.
	ErrEmptyName = errors.New("character name is empty")
	// ErrNoSession marks an intent from a connection with no bound session.
	ErrNoSession = errors.New("no session bound to connection")
	// ErrNotAuthorized marks an edit by neither the author nor the storyteller.
	ErrNotAuthorized = errors.New("not authorized to edit message")
	// ErrMessageNotFound marks an edit targeting an unknown message id.
	ErrMessageNotFound = errors.New("message not found")
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(code string, message string) *AppError {
	return NewError(http.StatusBadRequest, code, message)
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(code string, message string) *AppError {
	return NewError(http.StatusNotFound, code, message)
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(code string, message string) *AppError {
	return NewError(http.StatusInternalServerError, code, message)
}

// FromError converts any error to an AppError, defaulting to a 500
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalServerError("SERVER_ERROR", err.Error())
}
