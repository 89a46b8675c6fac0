// Package model defines shared records, error types and logging for feed-rss.
package model

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrorType represents different categories of errors that can occur
type ErrorType string

const (
	// ErrorTypeNetwork represents general network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeTimeout represents request timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConnectionFailed represents connection establishment failures
	ErrorTypeConnectionFailed ErrorType = "connection_failed"
	// ErrorTypeDNSResolution represents DNS resolution failures
	ErrorTypeDNSResolution ErrorType = "dns_resolution"

	// ErrorTypeHTTP represents general HTTP errors
	ErrorTypeHTTP ErrorType = "http"
	// ErrorTypeHTTPClientError represents HTTP 4xx client errors
	ErrorTypeHTTPClientError ErrorType = "http_client_error" // 4xx
	// ErrorTypeHTTPServerError represents HTTP 5xx server errors
	ErrorTypeHTTPServerError ErrorType = "http_server_error" // 5xx

	// ErrorTypeParsing represents undecodable content source payloads
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeDatabase represents content database failures
	ErrorTypeDatabase ErrorType = "database"
	// ErrorTypeNotFound represents unknown channels or sources
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeValidation represents URL validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeInvalidURL represents invalid URL format errors
	ErrorTypeInvalidURL ErrorType = "invalid_url"
	// ErrorTypeUnsupportedScheme represents unsupported URL scheme errors
	ErrorTypeUnsupportedScheme ErrorType = "unsupported_scheme"
	// ErrorTypePrivateIP represents private IP address blocked errors
	ErrorTypePrivateIP ErrorType = "private_ip_blocked"

	// ErrorTypeConfiguration represents configuration-related errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeTransport represents transport configuration errors
	ErrorTypeTransport ErrorType = "transport"

	// ErrorTypeCircuitBreaker represents circuit breaker state errors
	ErrorTypeCircuitBreaker ErrorType = "circuit_breaker"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeCache represents caching-related errors
	ErrorTypeCache ErrorType = "cache"

	// ErrorTypeRender represents failures while serializing a feed
	ErrorTypeRender ErrorType = "render"
	// ErrorTypeWrite represents failures while handing a feed to a response
	ErrorTypeWrite ErrorType = "write"

	// ErrorTypeInternal represents internal server errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeUnknown represents unknown or unclassified errors
	ErrorTypeUnknown ErrorType = "unknown"
)

// FeedError represents a structured error with additional context for debugging
type FeedError struct {
	ID         string    `json:"id"`         // Unique correlation ID for tracking
	Timestamp  time.Time `json:"timestamp"`  // When the error occurred
	ErrorType  ErrorType `json:"error_type"` // Category of error
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion"`

	URL       string `json:"url,omitempty"`
	Operation string `json:"operation,omitempty"`
	Component string `json:"component,omitempty"`

	HTTPStatus  int               `json:"http_status,omitempty"`
	HTTPHeaders map[string]string `json:"http_headers,omitempty"`

	Cause error `json:"-"`
}

// Error implements the error interface
func (fe *FeedError) Error() string {
	var parts []string

	if fe.Message != "" {
		parts = append(parts, fe.Message)
	}
	if fe.URL != "" {
		parts = append(parts, fmt.Sprintf("URL: %s", fe.URL))
	}
	if fe.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation: %s", fe.Operation))
	}
	if fe.HTTPStatus != 0 {
		parts = append(parts, fmt.Sprintf("HTTP Status: %d", fe.HTTPStatus))
	}
	if fe.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause: %v", fe.Cause))
	}

	parts = append(parts, fmt.Sprintf("Type: %s", fe.ErrorType), fmt.Sprintf("ID: %s", fe.ID))

	return strings.Join(parts, " | ")
}

// Unwrap returns the underlying cause for error wrapping support
func (fe *FeedError) Unwrap() error {
	return fe.Cause
}

// NewFeedError creates a new FeedError with basic information
func NewFeedError(errorType ErrorType, message string) *FeedError {
	id, _ := gonanoid.New()

	return &FeedError{
		ID:         id,
		Timestamp:  time.Now().UTC(),
		ErrorType:  errorType,
		Message:    message,
		Suggestion: getSuggestionForErrorType(errorType),
	}
}

// NewFeedErrorWithCause creates a new FeedError wrapping an existing error
func NewFeedErrorWithCause(errorType ErrorType, message string, cause error) *FeedError {
	fe := NewFeedError(errorType, message)
	fe.Cause = cause
	return fe
}

// WithURL adds URL context to the error
func (fe *FeedError) WithURL(url string) *FeedError {
	fe.URL = url
	return fe
}

// WithOperation adds operation context to the error
func (fe *FeedError) WithOperation(operation string) *FeedError {
	fe.Operation = operation
	return fe
}

// WithComponent adds component context to the error
func (fe *FeedError) WithComponent(component string) *FeedError {
	fe.Component = component
	return fe
}

// WithHTTP adds HTTP-specific context to the error
func (fe *FeedError) WithHTTP(status int, headers http.Header) *FeedError {
	fe.HTTPStatus = status

	if headers != nil {
		fe.HTTPHeaders = make(map[string]string)

		relevantHeaders := []string{
			"Content-Type", "Content-Length", "Server", "Cache-Control",
			"Etag", "Last-Modified", "Retry-After",
		}

		for _, header := range relevantHeaders {
			if value := headers.Get(header); value != "" {
				fe.HTTPHeaders[header] = value
			}
		}
	}

	return fe
}

// getSuggestionForErrorType returns actionable suggestions based on error type
func getSuggestionForErrorType(errorType ErrorType) string {
	suggestions := map[ErrorType]string{
		ErrorTypeTimeout:           "Check network connectivity or increase timeout duration",
		ErrorTypeConnectionFailed:  "Verify the content source is accessible and the server is running",
		ErrorTypeDNSResolution:     "Check DNS settings and verify the domain name is correct",
		ErrorTypeHTTPClientError:   "Verify the content source URL is correct and accessible",
		ErrorTypeHTTPServerError:   "The content source is experiencing issues, try again later",
		ErrorTypeParsing:           "Ensure the content source returns a JSON array of nodes",
		ErrorTypeDatabase:          "Check the database path and that the nodes table exists",
		ErrorTypeNotFound:          "Check the channel name against the configuration",
		ErrorTypeInvalidURL:        "Check the URL format and ensure it's a valid HTTP/HTTPS URL",
		ErrorTypeUnsupportedScheme: "Only HTTP and HTTPS URLs are supported",
		ErrorTypePrivateIP:         "Private IP addresses are blocked for security, use --allow-private-ips if needed",
		ErrorTypeCircuitBreaker:    "Content source is temporarily unavailable due to repeated failures",
		ErrorTypeRateLimit:         "Request rate limit exceeded, reduce the number of concurrent requests",
		ErrorTypeRender:            "The feed could not be serialized, check item fields for invalid characters",
		ErrorTypeWrite:             "The response could not be written, the client may have disconnected",
		ErrorTypeTransport:         "Check transport configuration (stdio, http-with-sse)",
		ErrorTypeConfiguration:     "Review configuration parameters for correctness",
		ErrorTypeInternal:          "Internal server error occurred, check logs for details",
	}

	if suggestion, exists := suggestions[errorType]; exists {
		return suggestion
	}

	return "Check the error details and try again"
}
