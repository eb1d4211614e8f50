package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Provider error codes. Both credential verifiers report failures with these.
const (
	CodeInvalidEmail      = "auth/invalid-email"
	CodeUserNotFound      = "auth/user-not-found"
	CodeWrongPassword     = "auth/wrong-password"
	CodeInvalidCredential = "auth/invalid-credential"
	CodeTooManyRequests   = "auth/too-many-requests"
	CodeUserDisabled      = "auth/user-disabled"
)

// MinPasswordLength is the shortest birthday string accepted before any
// network call is attempted.
const MinPasswordLength = 6

var (
	// ErrPasswordTooShort is returned by Auth.SignIn without contacting the verifier.
	ErrPasswordTooShort = errors.New("password shorter than minimum length")
	// ErrSessionNotFound is returned for unknown or expired session tokens.
	ErrSessionNotFound = errors.New("session not found")
)

// AuthError is a credential failure reported by a verifier.
type AuthError struct {
	Code string
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *AuthError) Unwrap() error { return e.Err }

// CredentialErrorKind is the local classification of a sign-in failure.
type CredentialErrorKind string

const (
	KindPrecondition    CredentialErrorKind = "precondition"
	KindInvalidEmail    CredentialErrorKind = "invalid_email"
	KindBadCredentials  CredentialErrorKind = "bad_credentials"
	KindTooManyAttempts CredentialErrorKind = "too_many_attempts"
	KindUnknown         CredentialErrorKind = "unknown"
)

// CredentialError is what the credential-entry screen shows.
type CredentialError struct {
	Kind    CredentialErrorKind `json:"kind"`
	Message string              `json:"message"`
}

// StatusCode is the HTTP status used by the JSON API for this kind.
func (c CredentialError) StatusCode() int {
	switch c.Kind {
	case KindPrecondition, KindInvalidEmail:
		return http.StatusBadRequest
	case KindBadCredentials:
		return http.StatusUnauthorized
	case KindTooManyAttempts:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

var credentialMessages = map[CredentialErrorKind]string{
	KindPrecondition:    fmt.Sprintf("birthday (password) must be at least %d characters", MinPasswordLength),
	KindInvalidEmail:    "email address format is invalid",
	KindBadCredentials:  "email address or birthday is incorrect",
	KindTooManyAttempts: "too many login attempts, try again later",
	KindUnknown:         "login failed",
}

// codeKinds maps provider codes to local kinds. Unknown account and wrong
// credential share one kind so the message never reveals which was wrong.
var codeKinds = map[string]CredentialErrorKind{
	CodeInvalidEmail:      KindInvalidEmail,
	CodeUserNotFound:      KindBadCredentials,
	CodeWrongPassword:     KindBadCredentials,
	CodeInvalidCredential: KindBadCredentials,
	CodeTooManyRequests:   KindTooManyAttempts,
}

// DescribeAuthError translates any sign-in error into a CredentialError.
// This is the only place that knows provider codes.
func DescribeAuthError(err error) CredentialError {
	kind := KindUnknown

	var authErr *AuthError
	switch {
	case errors.Is(err, ErrPasswordTooShort):
		kind = KindPrecondition
	case errors.As(err, &authErr):
		if k, ok := codeKinds[authErr.Code]; ok {
			kind = k
		}
	}

	return CredentialError{Kind: kind, Message: credentialMessages[kind]}
}
