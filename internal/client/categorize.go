package client

import (
	"context"
	"errors"
	"net/http"
)

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

const (
	ErrorCategoryTimeout          ErrorCategory = "timeout"
	ErrorCategoryNetwork          ErrorCategory = "network"
	ErrorCategoryInvalidAPIKey    ErrorCategory = "invalid_api_key"
	ErrorCategoryLocationNotFound ErrorCategory = "location_not_found"
	ErrorCategoryRateLimited      ErrorCategory = "rate_limited"
	ErrorCategoryCircuitOpen      ErrorCategory = "circuit_open"
	ErrorCategoryUpstream4xx      ErrorCategory = "upstream_4xx"
	ErrorCategoryUpstream5xx      ErrorCategory = "upstream_5xx"
	ErrorCategoryParsing          ErrorCategory = "parsing"
	ErrorCategoryUnknown          ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory for metrics.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		if transportErr.Timeout {
			return ErrorCategoryTimeout
		}
		return ErrorCategoryNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}
	if errors.Is(err, ErrLocationNotFound) {
		return ErrorCategoryLocationNotFound
	}
	if errors.Is(err, ErrCircuitOpen) {
		return ErrorCategoryCircuitOpen
	}

	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		switch {
		case upstreamErr.Status == http.StatusUnauthorized:
			return ErrorCategoryInvalidAPIKey
		case upstreamErr.Status == http.StatusTooManyRequests:
			return ErrorCategoryRateLimited
		case upstreamErr.Err != nil && upstreamErr.Status < 300:
			return ErrorCategoryParsing
		case upstreamErr.Status >= 500:
			return ErrorCategoryUpstream5xx
		default:
			return ErrorCategoryUpstream4xx
		}
	}
	if errors.Is(err, ErrInvalidAPIKey) {
		return ErrorCategoryInvalidAPIKey
	}
	return ErrorCategoryUnknown
}
