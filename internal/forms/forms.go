// Package forms implements the login and signup submissions: credential
// validation, the provider call sequence and error-code to message mapping.
package forms

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"pocketheist.org/internal/auth"
)

const (
	MsgInvalidCredentials = "Invalid email or password."
	MsgInvalidEmail       = "Please enter a valid email address."
	MsgEmailInUse         = "An account with this email already exists."
	MsgWeakPassword       = "Password must be at least 6 characters."
	MsgGeneric            = "Something went wrong. Please try again."
	MsgLoggedIn           = "You're logged in!"

	LabelLogin     = "Log In"
	LabelLoggingIn = "Logging in…"
	LabelSignup    = "Sign Up"
	LabelSigningUp = "Signing up…"
)

// ErrSubmissionInFlight rejects a second submit while one is running.
var ErrSubmissionInFlight = errors.New("forms: submission already in flight")

// Credentials is the payload of both forms.
type Credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// Failure carries the alert text for a failed submission.
type Failure struct {
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Message
	}
	return fmt.Sprintf("%s (%v)", f.Message, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// MessageOf returns the alert text for err, falling back to MsgGeneric.
func MessageOf(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Message
	}
	return MsgGeneric
}

// LoginMessage maps a sign-in error code to its alert text.
func LoginMessage(code auth.ErrorCode) string {
	switch code {
	case auth.CodeInvalidCredential, auth.CodeUserNotFound, auth.CodeWrongPassword:
		return MsgInvalidCredentials
	case auth.CodeInvalidEmail:
		return MsgInvalidEmail
	default:
		return MsgGeneric
	}
}

// SignupMessage maps a sign-up error code to its alert text.
func SignupMessage(code auth.ErrorCode) string {
	switch code {
	case auth.CodeEmailAlreadyInUse:
		return MsgEmailInUse
	case auth.CodeWeakPassword:
		return MsgWeakPassword
	case auth.CodeInvalidEmail:
		return MsgInvalidEmail
	default:
		return MsgGeneric
	}
}

var validate = validator.New()

// checkCredentials rejects a malformed email with MsgInvalidEmail and a
// missing password with passwordMsg.
func checkCredentials(c Credentials, passwordMsg string) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Email" {
		return &Failure{Message: MsgInvalidEmail, Err: err}
	}
	return &Failure{Message: passwordMsg, Err: err}
}

// inflight is the submitting flag shared by both forms.
type inflight struct {
	busy atomic.Bool
}

func (f *inflight) enter() bool { return f.busy.CompareAndSwap(false, true) }

func (f *inflight) leave() { f.busy.Store(false) }

// Submitting reports whether a submission is running.
func (f *inflight) Submitting() bool { return f.busy.Load() }
