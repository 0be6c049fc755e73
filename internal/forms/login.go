package forms

import (
	"context"

	"pocketheist.org/internal/audit"
	"pocketheist.org/internal/auth"
	"pocketheist.org/internal/obs"
)

// Signer is the provider surface the login form needs.
type Signer interface {
	SignIn(ctx context.Context, email, password string) (auth.Identity, error)
}

// Login submits credentials to the identity provider.
type Login struct {
	inflight
	provider Signer
}

func NewLogin(p Signer) *Login {
	return &Login{provider: p}
}

// Label is the submit control text for the current state.
func (l *Login) Label() string {
	if l.Submitting() {
		return LabelLoggingIn
	}
	return LabelLogin
}

// Submit signs in. No navigation happens here; the public-only guard moves
// the user on the next render.
func (l *Login) Submit(ctx context.Context, c Credentials) (auth.Identity, error) {
	if err := checkCredentials(c, MsgInvalidCredentials); err != nil {
		return auth.Identity{}, err
	}
	if !l.enter() {
		return auth.Identity{}, ErrSubmissionInFlight
	}
	defer l.leave()

	id, err := l.provider.SignIn(ctx, c.Email, c.Password)
	code := auth.CodeOf(err)
	if err != nil {
		obs.ObserveAuth("signin", string(code))
		return auth.Identity{}, &Failure{Message: LoginMessage(code), Err: err}
	}
	obs.ObserveAuth("signin", "ok")
	_ = audit.LogEvent(ctx, "auth.signin", map[string]any{"uid": id.UID})
	return id, nil
}
