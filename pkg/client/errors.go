package client

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrQuotaExhausted is returned when the shared quota blocks the request.
	ErrQuotaExhausted = errors.New("request blocked: quota exhausted")
)

// StatusError is a non-2xx response from the record store.
type StatusError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Class      ErrorClass

	// Message is the store's error message, or the HTTP status text.
	Message string

	// RetryAfter is the delay requested by a 429/503 response.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %s error (status %d): %s",
		e.Method, e.Endpoint, e.Class, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the record store.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// ClassOf returns the error class of err, or "" if unclassified.
func ClassOf(err error) ErrorClass {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Class
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ErrorClassNetwork
	}
	return ""
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case code >= 400 && code < 500:
		return ErrorClassClient
	case code >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// shouldRetry determines if an error class is retried.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// 4xx are permanent for the request as sent
		return false
	}
}
