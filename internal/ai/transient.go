package ai

import (
	"errors"

	"github.com/liushuangls/go-anthropic/v2"
)

// isRetryable classifies a transport error. Anthropic API errors are only
// worth retrying on rate limiting or overload; every other API error
// (bad request, auth) will fail the same way on the next attempt.
// Non-API errors are assumed to be network-level and transient.
func isRetryable(err error) bool {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRateLimitErr() || apiErr.IsOverloadedErr()
	}
	return true
}
