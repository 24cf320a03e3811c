package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeNotFound         Code = "NOT_FOUND"
	CodeConflict         Code = "CONFLICT"
	CodeInternal         Code = "INTERNAL"
	CodeInvalidState     Code = "INVALID_STATE"
	CodeLimitExceeded    Code = "LIMIT_EXCEEDED"
	CodeDuplicateRequest Code = "DUPLICATE_REQUEST"
	CodeNoCopies         Code = "NO_COPIES"
	CodeBelowMinimum     Code = "BELOW_MINIMUM"
	CodeUnauthorized     Code = "UNAUTHORIZED"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *APIError      { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError     { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError     { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError     { return &APIError{Code: CodeInternal, Message: msg} }
func ErrInvalidState(msg string) *APIError { return &APIError{Code: CodeInvalidState, Message: msg} }
func ErrLimitExceeded(msg string) *APIError {
	return &APIError{Code: CodeLimitExceeded, Message: msg}
}
func ErrDuplicateRequest(msg string) *APIError {
	return &APIError{Code: CodeDuplicateRequest, Message: msg}
}
func ErrNoCopies(msg string) *APIError     { return &APIError{Code: CodeNoCopies, Message: msg} }
func ErrBelowMinimum(msg string) *APIError { return &APIError{Code: CodeBelowMinimum, Message: msg} }
func ErrUnauthorized(msg string) *APIError { return &APIError{Code: CodeUnauthorized, Message: msg} }

func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeNotFound:
			return http.StatusNotFound
		case CodeConflict, CodeDuplicateRequest:
			return http.StatusConflict
		case CodeInvalidState, CodeLimitExceeded, CodeNoCopies, CodeBelowMinimum:
			return http.StatusUnprocessableEntity
		case CodeUnauthorized:
			return http.StatusUnauthorized
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries the given domain code.
func HasCode(err error, code Code) bool {
	var api *APIError
	return errors.As(err, &api) && api.Code == code
}

type ErrorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func Body(code Code, msg string) ErrorDTO {
	var e ErrorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func FromErr(err error) ErrorDTO {
	var api *APIError
	if errors.As(err, &api) {
		return Body(api.Code, api.Message)
	}
	return Body(CodeInternal, err.Error())
}
