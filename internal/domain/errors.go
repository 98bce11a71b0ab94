package domain

import (
	"errors"
	"fmt"
)

// ErrKind is used to map domain errors to HTTP status codes consistently.
type ErrKind string

const (
	KindValidation     ErrKind = "validation"     // 400
	KindAuth           ErrKind = "auth"           // 401
	KindForbidden      ErrKind = "forbidden"      // 403
	KindNotFound       ErrKind = "not_found"      // 404
	KindConflict       ErrKind = "conflict"       // 409
	KindRateLimited    ErrKind = "rate_limited"   // 429
	KindUpstream       ErrKind = "upstream"       // 502
	KindInfrastructure ErrKind = "infrastructure" // 500
	KindInternal       ErrKind = "internal"       // 500
)

// Error is a structured domain error.
// - Kind: high-level category for HTTP mapping
// - Code: stable machine code (do not change casually)
// - Message: safe summary for clients (avoid leaking sensitive details)
// - Meta: optional details (field, reason, etc.)
// - Cause: wrapped internal error for logging/diagnostics
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind ErrKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind ErrKind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

func WithMeta(err *Error, meta map[string]string) *Error {
	err.Meta = meta
	return err
}

func Is(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// KindOf returns the kind of a domain error, or KindInternal for anything else.
func KindOf(err error) ErrKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// ----------------------
// Validation errors (400)
// ----------------------

func ErrInvalidJSON(cause error) *Error {
	return Wrap(KindValidation, "invalid_json", "invalid JSON body", cause)
}

func ErrMissingField(field string) *Error {
	return WithMeta(New(KindValidation, "missing_field", "missing required field"), map[string]string{
		"field": field,
	})
}

func ErrInvalidField(field, reason string) *Error {
	return WithMeta(New(KindValidation, "invalid_field", "invalid field"), map[string]string{
		"field":  field,
		"reason": reason,
	})
}

func ErrUnsupportedProvider(provider string) *Error {
	return WithMeta(New(KindValidation, "unsupported_provider", "unsupported identity provider"), map[string]string{
		"provider": provider,
	})
}

// Deletion link errors carry the exact text shown to the account holder.

func ErrDeletionLinkMissing() *Error {
	return New(KindValidation, "missing_token", "Missing token")
}

func ErrDeletionLinkInvalid() *Error {
	return New(KindValidation, "invalid_link", "Invalid link")
}

func ErrDeletionLinkExpired() *Error {
	return New(KindValidation, "expired_link", "Expired link")
}

// ----------------------
// Auth errors (401)
// ----------------------

// Deliberately carries no reason; callers must not learn why.
func ErrNotAuthenticated() *Error {
	return New(KindAuth, "not_authenticated", "authentication required")
}

func ErrTokenInvalid() *Error {
	return New(KindAuth, "token_invalid", "invalid token")
}

func ErrTokenExpired() *Error {
	return New(KindAuth, "token_expired", "token is expired")
}

func ErrSessionNotFound() *Error {
	return New(KindAuth, "session_not_found", "session not found")
}

func ErrOAuthStateInvalid() *Error {
	return New(KindAuth, "oauth_state_invalid", "invalid or expired oauth state")
}

// ----------------------
// Not Found (404)
// ----------------------

func ErrAccountNotFound() *Error {
	return New(KindNotFound, "account_not_found", "account not found")
}

func ErrDeletionTokenNotFound() *Error {
	return New(KindNotFound, "deletion_token_not_found", "deletion token not found")
}

// ----------------------
// Rate limit (429)
// ----------------------

func ErrRateLimited(scope string) *Error {
	return WithMeta(New(KindRateLimited, "rate_limited", "too many requests"), map[string]string{
		"scope": scope,
	})
}

// ----------------------
// Upstream identity provider (502)
// ----------------------

func ErrProviderDenied(reason string) *Error {
	return WithMeta(New(KindUpstream, "provider_denied", "identity provider denied the request"), map[string]string{
		"reason": reason,
	})
}

func ErrProviderExchange(cause error) *Error {
	return Wrap(KindUpstream, "provider_exchange_failed", "identity provider exchange failed", cause)
}

// ----------------------
// Infrastructure / internal (5xx)
// ----------------------

func ErrDBUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "db_unavailable", "database unavailable", cause)
}

func ErrRedisUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "redis_unavailable", "cache unavailable", cause)
}

func ErrRabbitUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "rabbit_unavailable", "message broker unavailable", cause)
}

func ErrEmailUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "email_unavailable", "email delivery unavailable", cause)
}

func ErrTokenSignFailed(cause error) *Error {
	return Wrap(KindInternal, "token_sign_failed", "token signing failed", cause)
}

func ErrRandomFailed(cause error) *Error {
	return Wrap(KindInternal, "random_failed", "random generation failed", cause)
}

func ErrInternal(cause error) *Error {
	return Wrap(KindInternal, "internal_error", "internal error", cause)
}
