package auth

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
	ErrInvalidToken  = errors.New("auth: invalid token")
	ErrNoIdentity    = errors.New("auth: no signed-in identity")
)

// ErrorCode enumerates provider error codes surfaced to credential forms.
type ErrorCode string

const (
	CodeInvalidCredential ErrorCode = "auth/invalid-credential"
	CodeUserNotFound      ErrorCode = "auth/user-not-found"
	CodeWrongPassword     ErrorCode = "auth/wrong-password"
	CodeInvalidEmail      ErrorCode = "auth/invalid-email"
	CodeEmailAlreadyInUse ErrorCode = "auth/email-already-in-use"
	CodeWeakPassword      ErrorCode = "auth/weak-password"
	CodeInternal          ErrorCode = "auth/internal-error"
	CodeUnknown           ErrorCode = "auth/unknown"
)

var knownCodes = map[ErrorCode]struct{}{
	CodeInvalidCredential: {},
	CodeUserNotFound:      {},
	CodeWrongPassword:     {},
	CodeInvalidEmail:      {},
	CodeEmailAlreadyInUse: {},
	CodeWeakPassword:      {},
	CodeInternal:          {},
}

// AuthError is the only error shape returned by Provider operations.
type AuthError struct {
	Code ErrorCode
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func newAuthError(code ErrorCode, err error) error {
	return &AuthError{Code: code, Err: err}
}

// CodeOf extracts the provider code from err. Anything that is not an
// AuthError carrying a known code yields CodeUnknown.
func CodeOf(err error) ErrorCode {
	var ae *AuthError
	if !errors.As(err, &ae) {
		return CodeUnknown
	}
	if _, ok := knownCodes[ae.Code]; !ok {
		return CodeUnknown
	}
	return ae.Code
}
