package remote

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// APIError is a failed call to the chart service. StatusCode is 0 when the
// request never got a response; Err then holds the transport failure.
type APIError struct {
	StatusCode int            `json:"-"`
	Code       string         `json:"code,omitempty"`
	Message    string         `json:"message,omitempty"`
	Raw        map[string]any `json:"-"`
	RequestID  string         `json:"-"`
	Err        error          `json:"-"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	if e.StatusCode == 0 {
		b.WriteString("api error: request failed")
	} else {
		fmt.Fprintf(&b, "api error: status=%d", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " code=%s", e.Code)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " request_id=%s", e.RequestID)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, " message=%s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *APIError) Unwrap() error { return e.Err }

// AuthError indicates authentication/authorization failures (401/403).
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.APIError.Error())
}

func (e *AuthError) Unwrap() error { return e.APIError }

// RateLimitError indicates 429 responses and may include a Retry-After.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.APIError.Error())
}

func (e *RateLimitError) Unwrap() error { return e.APIError }

// BadRequestError indicates the service rejected the request (400, 404, 422).
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.APIError.Error()) }

func (e *BadRequestError) Unwrap() error { return e.APIError }

// ServerError indicates 5xx errors from the chart service.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("chart service error: %s", e.APIError.Error()) }

func (e *ServerError) Unwrap() error { return e.APIError }

// AlignmentError means a response cannot be paired up as label/value groups.
// No comparison records are produced when it occurs.
type AlignmentError struct {
	Reason string
	Labels int
	Values int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("alignment error: %s", e.Reason)
}

// classifyAPIError maps a generic APIError to a typed error by status.
func classifyAPIError(apiErr *APIError, resp *http.Response) error {
	sc := apiErr.StatusCode
	switch {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case sc == http.StatusTooManyRequests:
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{APIError: apiErr, RetryAfter: ra}
	case sc == http.StatusBadRequest || sc == http.StatusNotFound || sc == http.StatusUnprocessableEntity:
		return &BadRequestError{APIError: apiErr}
	case sc >= 500 && sc <= 599:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

// parseRetryAfterSeconds interprets a Retry-After value as seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, k := range []string{"X-Request-Id", "X-Correlation-Id", "X-Amzn-Requestid"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}
