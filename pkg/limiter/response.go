package limiter

import (
	"net/http"
	"strconv"
	"time"
)

const (
	denyError   = "Too many requests"
	denyMessage = "Rate limit exceeded. Please try again later."
)

// DenyBody is the JSON payload of a 429 response.
type DenyBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}

// DenyResponse is a fully rendered rejection: status, headers, and body.
// Middleware writes it verbatim; nothing about the limiter's internal
// state leaks beyond the standard rate-limit headers.
type DenyResponse struct {
	Status  int
	Headers http.Header
	Body    DenyBody
}

// BuildDenyResponse renders dec as the wire-level 429. Pure function: it
// touches no limiter state and can be called any number of times for the
// same decision.
func (l *Limiter) BuildDenyResponse(dec Decision) DenyResponse {
	retry := RetryAfterSeconds(dec.RetryAfter)
	h := http.Header{}
	h.Set("Retry-After", strconv.Itoa(retry))
	h.Set("X-RateLimit-Limit", strconv.FormatInt(l.cfg.MaxRequests, 10))
	h.Set("X-RateLimit-Remaining", "0")
	h.Set("X-RateLimit-Reset", dec.ResetTime.UTC().Format(time.RFC3339))
	h.Set("Content-Type", "application/json")
	return DenyResponse{
		Status:  http.StatusTooManyRequests,
		Headers: h,
		Body:    DenyBody{Error: denyError, Message: denyMessage, RetryAfter: retry},
	}
}

// RetryAfterSeconds rounds a wait up to whole seconds for the Retry-After
// header. A denial always advertises at least its true wait, never less.
func RetryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
