package api

import (
	"errors"
	"net/http"
	"strconv"
)

// RequestError reports a backend call that reached the server but did not
// succeed: a non-2xx status or an envelope carrying an error payload.
type RequestError struct {
	Path       string
	StatusCode int
	Code       string
	Message    string

	// Err is set when the body could not be decoded.
	Err error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	// Example: api: request "/v1/cards" failed with status 500: "boom"
	msg := "api: request " + strconv.Quote(e.Path) + " failed with status " + strconv.Itoa(e.StatusCode)
	if e.Message != "" {
		msg += ": " + strconv.Quote(e.Message)
	}
	return msg
}

// Unwrap returns the decode error, if any.
func (e *RequestError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the same call could succeed.
func (e *RequestError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// IsRequestError reports whether err wraps a *RequestError.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}
