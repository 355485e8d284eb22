package models

import (
	"fmt"
	"net/http"
)

const (
	NotFoundErrorCode       = http.StatusNotFound
	ForbiddenErrorCode      = http.StatusForbidden
	ConflictErrorCode       = http.StatusConflict
	ValidationErrorCode     = http.StatusBadRequest
	InternalServerErrorCode = http.StatusInternalServerError
)

var defaultMessages = map[int]string{
	InternalServerErrorCode: "internal server error",
	ValidationErrorCode:     "bad request",
	NotFoundErrorCode:       "not found",
	ForbiddenErrorCode:      "forbidden",
	ConflictErrorCode:       "conflict",
}

// AppError — custom error type to handle service layer errors
type AppError struct {
	Code    int
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("code=%d, message=%s", e.Code, e.Message)
}

func NewAppError(code int, message string) *AppError {
	if message == "" {
		if defMsg, ok := defaultMessages[code]; ok {
			message = defMsg
		} else {
			message = "error"
		}
	}
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func IsConflict(err error) bool {
	e, ok := err.(*AppError)
	return ok && e.Code == ConflictErrorCode
}

func IsNotFound(err error) bool {
	e, ok := err.(*AppError)
	return ok && e.Code == NotFoundErrorCode
}
