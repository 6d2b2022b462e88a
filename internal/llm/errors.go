package llm

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies provider failures for logging and alerting. The
// pipeline treats all kinds the same way (terminal for the message); the
// kind tells operators whether to fix credentials, back off, or wait out an
// outage.
type ErrorKind string

const (
	KindAuth      ErrorKind = "auth"
	KindRateLimit ErrorKind = "rate_limit"
	KindTransient ErrorKind = "transient"
)

// ProviderError reports a failed generation attempt.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s provider %s error: %s", e.Provider, e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s provider %s error: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s provider %s error (status %d)", e.Provider, e.Kind, e.StatusCode)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status to an error kind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	default:
		return KindTransient
	}
}
