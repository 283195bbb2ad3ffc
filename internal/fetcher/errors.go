package fetcher

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error that occurred during a fetch operation
type ErrorType string

const (
	// ErrorTypeConfiguration indicates the provider is missing required configuration (e.g. credential)
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeNetwork indicates a network-level error (connection refused, DNS, etc.)
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeRateLimit indicates the request was rejected due to rate limiting (HTTP 429)
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeServer indicates a server error (HTTP 5xx)
	ErrorTypeServer ErrorType = "server"
	// ErrorTypeClient indicates a client error (HTTP 4xx except 429)
	ErrorTypeClient ErrorType = "client"
	// ErrorTypeMalformed indicates the response was received but the payload was unusable
	ErrorTypeMalformed ErrorType = "malformed"
	// ErrorTypeTimeout indicates the request timed out
	ErrorTypeTimeout ErrorType = "timeout"
)

// FetchError represents a structured error from a fetch operation
type FetchError struct {
	Type       ErrorType
	Retryable  bool
	StatusCode int
	Ticker     Ticker
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	prefix := string(e.Type)
	if e.Ticker != "" {
		prefix = fmt.Sprintf("%s %s", e.Ticker, e.Type)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", prefix, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s error: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error: %s", prefix, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// NewConfigurationError creates a fatal, non-retryable configuration error
func NewConfigurationError(message string) *FetchError {
	return &FetchError{
		Type:      ErrorTypeConfiguration,
		Retryable: false,
		Message:   message,
	}
}

// NewNetworkError creates a network error
func NewNetworkError(ticker Ticker, cause error) *FetchError {
	return &FetchError{
		Type:      ErrorTypeNetwork,
		Retryable: true,
		Ticker:    ticker,
		Message:   "network request failed",
		Cause:     cause,
	}
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(ticker Ticker, cause error) *FetchError {
	return &FetchError{
		Type:      ErrorTypeTimeout,
		Retryable: true,
		Ticker:    ticker,
		Message:   "request timed out",
		Cause:     cause,
	}
}

// NewMalformedError creates an error for a response body that cannot be turned into a quote
func NewMalformedError(ticker Ticker, message string) *FetchError {
	return &FetchError{
		Type:      ErrorTypeMalformed,
		Retryable: true,
		Ticker:    ticker,
		Message:   message,
	}
}

// ClassifyHTTPError classifies a non-success HTTP status code into a FetchError.
// Every non-success status is retryable; the remote endpoint is rate limited
// and frequently answers 4xx/429 under load.
func ClassifyHTTPError(ticker Ticker, statusCode int) *FetchError {
	e := &FetchError{
		Retryable:  true,
		StatusCode: statusCode,
		Ticker:     ticker,
	}
	switch {
	case statusCode == http.StatusTooManyRequests:
		e.Type = ErrorTypeRateLimit
		e.Message = "rate limit exceeded"
	case statusCode >= 500:
		e.Type = ErrorTypeServer
		e.Message = "server returned an error"
	default:
		e.Type = ErrorTypeClient
		e.Message = fmt.Sprintf("unexpected status: HTTP %d", statusCode)
	}
	return e
}

// BatchError reports that a FetchMany/GetMany call failed because at least
// one ticker exhausted its retries. No partial result accompanies it.
type BatchError struct {
	Size int
	Err  error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch of %d tickers failed: %v", e.Size, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// IsConfiguration reports whether err is (or wraps) a configuration error.
func IsConfiguration(err error) bool {
	return hasType(err, ErrorTypeConfiguration)
}

// IsMalformed reports whether err is (or wraps) a malformed-response error.
func IsMalformed(err error) bool {
	return hasType(err, ErrorTypeMalformed)
}

// IsTransient reports whether err is a retryable network-class failure
// (timeout, connection, non-success status).
func IsTransient(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Retryable && fe.Type != ErrorTypeMalformed
}

// IsRetryable reports whether a retry may succeed where err failed.
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return true
}

func hasType(err error, t ErrorType) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Type == t
}
