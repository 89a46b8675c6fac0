package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// CreateNetworkError creates a FeedError for a failed content source request
func CreateNetworkError(err error, sourceURL string) *FeedError {
	errorType := ErrorTypeNetwork
	message := "Network error occurred"

	switch {
	case isTimeoutError(err):
		errorType = ErrorTypeTimeout
		message = "Request timed out"
	case isDNSError(err):
		errorType = ErrorTypeDNSResolution
		message = "DNS resolution failed"
	case isConnectionError(err):
		errorType = ErrorTypeConnectionFailed
		message = "Connection failed"
	}

	return NewFeedErrorWithCause(errorType, message, err).
		WithURL(sourceURL).
		WithOperation("load_source").
		WithComponent("http_client")
}

// CreateHTTPError creates a FeedError for a non-2xx content source response
func CreateHTTPError(resp *http.Response, sourceURL string) *FeedError {
	var errorType ErrorType
	var message string

	status := resp.StatusCode

	switch {
	case status >= 400 && status < 500:
		errorType = ErrorTypeHTTPClientError
		message = fmt.Sprintf("Client error: %s", resp.Status)
	case status >= 500:
		errorType = ErrorTypeHTTPServerError
		message = fmt.Sprintf("Server error: %s", resp.Status)
	default:
		errorType = ErrorTypeHTTP
		message = fmt.Sprintf("HTTP error: %s", resp.Status)
	}

	return NewFeedError(errorType, message).
		WithURL(sourceURL).
		WithOperation("load_source").
		WithComponent("http_client").
		WithHTTP(status, resp.Header)
}

// CreateParsingError creates a FeedError for a payload that is not a node list
func CreateParsingError(err error, sourceURL string) *FeedError {
	return NewFeedErrorWithCause(ErrorTypeParsing, "Failed to decode content source", err).
		WithURL(sourceURL).
		WithOperation("decode_nodes").
		WithComponent("content_source")
}

// CreateValidationError creates a FeedError for URL validation issues
func CreateValidationError(err error, sourceURL string) *FeedError {
	errorType := ErrorTypeValidation
	message := "URL validation failed"

	switch {
	case errors.Is(err, ErrInvalidURL):
		errorType = ErrorTypeInvalidURL
		message = "Invalid URL format"
	case errors.Is(err, ErrUnsupportedScheme):
		errorType = ErrorTypeUnsupportedScheme
		message = "Unsupported URL scheme"
	case errors.Is(err, ErrPrivateIPBlocked):
		errorType = ErrorTypePrivateIP
		message = "Private IP address blocked"
	case errors.Is(err, ErrMissingHost):
		errorType = ErrorTypeInvalidURL
		message = "URL missing host"
	case errors.Is(err, ErrEmptyURL):
		errorType = ErrorTypeInvalidURL
		message = "URL cannot be empty"
	}

	return NewFeedErrorWithCause(errorType, message, err).
		WithURL(sourceURL).
		WithOperation("validate_url").
		WithComponent("url_validator")
}

// CreateCircuitBreakerError creates a FeedError for circuit breaker events
func CreateCircuitBreakerError(sourceURL string, cause error) *FeedError {
	return NewFeedErrorWithCause(ErrorTypeCircuitBreaker, "Circuit breaker is open", cause).
		WithURL(sourceURL).
		WithOperation("load_source").
		WithComponent("circuit_breaker")
}

func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return containsAny(err, "timeout", "deadline exceeded", "timed out")
}

func isDNSError(err error) bool {
	if err == nil {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return containsAny(err, "no such host", "name resolution", "name or service not known")
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err,
		"connection refused", "connection reset", "connection aborted",
		"host unreachable", "network unreachable", "no route to host",
	)
}

func containsAny(err error, keywords ...string) bool {
	errStr := strings.ToLower(err.Error())
	for _, keyword := range keywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}
