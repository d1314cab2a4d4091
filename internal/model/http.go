package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/paimy-ai/paimy/internal/errors"
)

// newRetryPolicy returns the retry policy shared by the provider clients.
func newRetryPolicy(maxRetries int) *errors.Policy {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &errors.Policy{
		MaxAttempts:  maxRetries,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		RetryIf: func(err error) bool {
			category := errors.GetCategory(err)
			return category == errors.CategoryTemporary || category == errors.CategoryRateLimit
		},
	}
}

// postJSON sends body to url with retry and returns the raw 200 response body.
func postJSON(ctx context.Context, client *http.Client, policy *errors.Policy, provider, url string, headers map[string]string, body []byte) ([]byte, error) {
	return errors.DoWithResult(ctx, policy, func() ([]byte, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeModelUnavailable, "failed to create HTTP request", errors.CategoryPermanent)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			httpReq.Header.Set(k, v)
		}

		r, err := client.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), errors.CodeModelTimeout, provider+" request canceled", errors.CategoryPermanent)
			}
			return nil, errors.Wrap(err, errors.CodeModelUnavailable, provider+" request failed", errors.CategoryTemporary)
		}

		b, readErr := io.ReadAll(r.Body)
		r.Body.Close()
		if readErr != nil {
			return nil, errors.Wrap(readErr, errors.CodeModelUnavailable, "failed to read response body", errors.CategoryTemporary)
		}

		if r.StatusCode == http.StatusOK {
			return b, nil
		}
		return nil, statusError(provider, r, b)
	})
}

// statusError maps a non-200 provider response onto an AppError.
func statusError(provider string, r *http.Response, body []byte) error {
	switch {
	case r.StatusCode == http.StatusTooManyRequests:
		return errors.RateLimit(errors.CodeModelRateLimit, provider+" rate limit exceeded", retryAfter(r.Header))
	case r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden:
		return errors.NewBuilder(errors.CodeModelUnavailable, provider+": invalid API key").
			System().
			WithSuggestion("Check the api_key in the [model] section or the provider environment variable").
			Build()
	case r.StatusCode == http.StatusBadRequest || r.StatusCode == http.StatusNotFound:
		return errors.NewBuilder(errors.CodeModelInvalidResponse, provider+": bad request, check model name and parameters").
			Permanent().
			WithContext("response", string(body)).
			Build()
	case r.StatusCode >= 500:
		return errors.Temporary(errors.CodeModelUnavailable, fmt.Sprintf("%s unavailable: %s", provider, r.Status))
	default:
		return errors.Permanent(errors.CodeModelUnavailable, fmt.Sprintf("%s error (status %d): %s", provider, r.StatusCode, string(body)))
	}
}

// retryAfter reads a Retry-After header in seconds, defaulting to one second.
func retryAfter(h http.Header) time.Duration {
	if secs, err := strconv.Atoi(h.Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Second
}
