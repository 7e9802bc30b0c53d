package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a 2xx response whose body could not be decoded.
	ErrorClassDecode ErrorClass = "decode"
)

// ErrInvalidConfig is returned by New for unusable configurations.
var ErrInvalidConfig = errors.New("invalid client config")

// RequestError is a transport-level failure: no response was received.
type RequestError struct {
	Method   string
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Endpoint, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// Class returns ErrorClassNetwork.
func (e *RequestError) Class() ErrorClass {
	return ErrorClassNetwork
}

// StatusError reports a non-2xx response from the remote service.
type StatusError struct {
	Method     string
	Endpoint   string
	StatusCode int
	// Body is a bounded excerpt of the response body.
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: %s error (status %d): %s",
			e.Method, e.Endpoint, e.Class(), e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s: %s error (status %d)",
		e.Method, e.Endpoint, e.Class(), e.StatusCode)
}

// Class classifies the status code.
func (e *StatusError) Class() ErrorClass {
	return classifyStatus(e.StatusCode)
}

// DecodeError reports a 2xx response whose JSON body could not be decoded.
type DecodeError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Endpoint, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Classify returns the ErrorClass of err, or "" if err is not a client error.
func Classify(err error) ErrorClass {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return ErrorClassNetwork
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Class()
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return ErrorClassDecode
	}
	return ""
}

// IsNotFound reports whether err is a 404 from the remote service.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// classifyStatus maps an HTTP status code to an ErrorClass; 2xx/3xx yield "".
func classifyStatus(code int) ErrorClass {
	switch {
	case code >= 400 && code < 500:
		return ErrorClassClient
	case code >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
