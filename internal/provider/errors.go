package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrRemoteUnavailable covers transport failures, non-2xx replies and timeouts.
	ErrRemoteUnavailable = errors.New("remote backend unavailable")
	// ErrMalformedResponse means the reply did not contain the expected text.
	ErrMalformedResponse = fmt.Errorf("%w: malformed response", ErrRemoteUnavailable)
	// ErrRateLimited is a transient 429.
	ErrRateLimited = fmt.Errorf("%w: rate limited", ErrRemoteUnavailable)
	// ErrQuotaExhausted disables a backend until it is reset.
	ErrQuotaExhausted = errors.New("quota exhausted")
	// ErrInvalidCredential disables a backend until it is reset.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrSessionLimit is returned locally when a session has used its budget.
	ErrSessionLimit = errors.New("session request limit reached")
)

// StatusError is a non-2xx reply from a backend.
type StatusError struct {
	Backend string
	Status  int
	Code    string
	Message string
	Kind    error
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "no message"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: HTTP %d (%s): %s", e.Backend, e.Status, e.Code, msg)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Backend, e.Status, msg)
}

func (e *StatusError) Unwrap() error {
	return e.Kind
}

// IsSticky reports whether err should disable the backend that returned it.
func IsSticky(err error) bool {
	return errors.Is(err, ErrQuotaExhausted) || errors.Is(err, ErrInvalidCredential)
}

// classifyStatus turns an error reply into a StatusError. The body is read
// as the OpenAI style {"error":{"message","code"}} envelope when possible.
func classifyStatus(backend string, status int, body []byte) *StatusError {
	e := &StatusError{Backend: backend, Status: status}
	if gjson.ValidBytes(body) {
		res := gjson.ParseBytes(body)
		e.Message = res.Get("error.message").String()
		e.Code = res.Get("error.code").String()
		if e.Message == "" && res.Get("error").Type == gjson.String {
			e.Message = res.Get("error").String()
		}
	}

	switch {
	case status == 401:
		e.Kind = ErrInvalidCredential
	case status == 429:
		if mentionsQuota(e.Message) || e.Code == "insufficient_quota" {
			e.Kind = ErrQuotaExhausted
		} else {
			e.Kind = ErrRateLimited
		}
	case mentionsQuota(e.Message):
		e.Kind = ErrQuotaExhausted
	default:
		e.Kind = ErrRemoteUnavailable
	}
	return e
}

func mentionsQuota(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "billing") ||
		strings.Contains(msg, "insufficient_quota")
}
