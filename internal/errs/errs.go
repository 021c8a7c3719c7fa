package errs

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for retry, circuit breaker and recovery decisions.
type Kind string

const (
	KindValidation             Kind = "validation_error"
	KindCategoryNotFound       Kind = "category_not_found"
	KindCategoryInvalid        Kind = "category_invalid"
	KindGoogleNewsUnavailable  Kind = "google_news_unavailable"
	KindRateLimitExceeded      Kind = "rate_limit_exceeded"
	KindExtractionTimeout      Kind = "extraction_timeout"
	KindExtractionNetwork      Kind = "extraction_network"
	KindExtractionParsing      Kind = "extraction_parsing"
	KindDatabaseConnection     Kind = "database_connection"
	KindCircuitBreakerOpen     Kind = "circuit_breaker_open"
	KindInternal               Kind = "internal_error"
)

// Error is the tagged error carried through the pipeline. Retryable and
// RetryAfter inform the retrier; Kind informs breakers and recovery.
type Error struct {
	Kind       Kind
	Message    string
	Retryable  bool
	RetryAfter time.Duration
	Details    map[string]interface{}
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a key/value to the error's details.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause attaches an underlying error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

func newError(kind Kind, retryable bool, format string, args ...interface{}) *Error {
	return &Error{
		Kind:      kind,
		Message:   fmt.Sprintf(format, args...),
		Retryable: retryable,
	}
}

func Validation(format string, args ...interface{}) *Error {
	return newError(KindValidation, false, format, args...)
}

func CategoryNotFound(id string) *Error {
	return newError(KindCategoryNotFound, false, "category not found: %s", id).
		WithDetail("category_id", id)
}

func CategoryInvalid(format string, args ...interface{}) *Error {
	return newError(KindCategoryInvalid, false, format, args...)
}

func GoogleNewsUnavailable(format string, args ...interface{}) *Error {
	e := newError(KindGoogleNewsUnavailable, true, format, args...)
	e.RetryAfter = 5 * time.Minute
	return e
}

// RateLimitExceeded floors the retry hint at 60 seconds regardless of what
// the upstream Retry-After header asked for.
func RateLimitExceeded(retryAfter time.Duration) *Error {
	if retryAfter < time.Minute {
		retryAfter = time.Minute
	}
	e := newError(KindRateLimitExceeded, true, "rate limit exceeded, retry after %s", retryAfter)
	e.RetryAfter = retryAfter
	return e
}

func ExtractionTimeout(url string, timeout time.Duration) *Error {
	return newError(KindExtractionTimeout, true, "extraction timed out after %s", timeout).
		WithDetail("url", url)
}

func ExtractionNetwork(url string, cause error) *Error {
	return newError(KindExtractionNetwork, true, "network failure fetching %s", url).
		WithCause(cause).
		WithDetail("url", url)
}

func ExtractionParsing(url string, format string, args ...interface{}) *Error {
	return newError(KindExtractionParsing, false, format, args...).
		WithDetail("url", url)
}

func DatabaseConnection(cause error) *Error {
	e := newError(KindDatabaseConnection, true, "database operation failed")
	e.RetryAfter = 30 * time.Second
	e.Cause = cause
	return e
}

// CircuitBreakerOpen is retryable: the hint points at the breaker's next
// probe window so a wrapping retrier backs off instead of giving up.
func CircuitBreakerOpen(service string, nextRetry time.Time) *Error {
	e := newError(KindCircuitBreakerOpen, true, "circuit breaker open for %s", service)
	if wait := time.Until(nextRetry); wait > 0 {
		e.RetryAfter = wait
	}
	e.WithDetail("service", service)
	e.WithDetail("next_retry_time", nextRetry)
	return e
}

func Internal(format string, args ...interface{}) *Error {
	return newError(KindInternal, false, format, args...)
}

// As extracts a tagged error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of a tagged error, or KindInternal for untagged ones.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether the error is tagged retryable. Untagged errors
// are not retryable.
func IsRetryable(err error) bool {
	if e, ok := As(err); ok {
		return e.Retryable
	}
	return false
}

// RetryAfter returns the error's retry hint when one is set.
func RetryAfter(err error) (time.Duration, bool) {
	if e, ok := As(err); ok && e.RetryAfter > 0 {
		return e.RetryAfter, true
	}
	return 0, false
}
