package api

import (
	"errors"
	"net/http"

	"github.com/samcharles93/specdraft/internal/specdecode"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// classify maps a drafting error onto an HTTP status and error type.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, specdecode.ErrInvalidSampleLen),
		errors.Is(err, specdecode.ErrInvalidNumLevels):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, specdecode.ErrUnsupported):
		return http.StatusNotImplemented, "unsupported_error"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}
