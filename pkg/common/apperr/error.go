package apperr

import "fmt"

// AppError is an error carrying an application code and the HTTP status to
// report it with.
type AppError struct {
	Code       int
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates an AppError.
func New(code int, msg string, httpStatus int, cause error) *AppError {
	return &AppError{Code: code, Message: msg, HTTPStatus: httpStatus, Cause: cause}
}

// Wrap wraps err into an AppError. It returns nil when err is nil.
func Wrap(err error, code int, msg string, httpStatus int) *AppError {
	if err == nil {
		return nil
	}
	return New(code, msg, httpStatus, err)
}
