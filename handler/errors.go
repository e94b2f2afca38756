package handler

import (
	"errors"
	"net/http"
)

// ErrNilResponse indicates a handler returned nil instead of a Response
var ErrNilResponse = errors.New("handler returned nil response")

// HTTPError is an error with a status code and a message safe to show to clients.
type HTTPError struct {
	Code    int
	Message string
}

func (e HTTPError) Error() string {
	return e.Message
}

var (
	ErrBadRequest            = HTTPError{Code: http.StatusBadRequest, Message: "bad request"}
	ErrUnauthorized          = HTTPError{Code: http.StatusUnauthorized, Message: "unauthorized"}
	ErrNotFound              = HTTPError{Code: http.StatusNotFound, Message: "not found"}
	ErrRequestEntityTooLarge = HTTPError{Code: http.StatusRequestEntityTooLarge, Message: "request entity too large"}
	ErrUnsupportedMediaType  = HTTPError{Code: http.StatusUnsupportedMediaType, Message: "unsupported media type"}
	ErrInternalServerError   = HTTPError{Code: http.StatusInternalServerError, Message: "internal server error"}
	ErrBadGateway            = HTTPError{Code: http.StatusBadGateway, Message: "payment provider unavailable"}
)

// NewHTTPError creates a custom HTTP error.
func NewHTTPError(code int, message string) HTTPError {
	return HTTPError{Code: code, Message: message}
}
