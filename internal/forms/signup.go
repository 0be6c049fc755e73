package forms

import (
	"context"

	"pocketheist.org/internal/audit"
	"pocketheist.org/internal/auth"
	"pocketheist.org/internal/codename"
	"pocketheist.org/internal/docstore"
	"pocketheist.org/internal/heist"
	"pocketheist.org/internal/obs"
)

// Registrar is the provider surface the signup form needs.
type Registrar interface {
	SignUp(ctx context.Context, email, password string) (auth.Identity, error)
	SetDisplayName(ctx context.Context, id auth.Identity, name string) error
}

// Signup creates an account, names it and writes its profile record.
type Signup struct {
	inflight
	provider Registrar
	store    docstore.Store
	names    codename.Source
}

// SignupOption configures a Signup.
type SignupOption func(*Signup)

// WithNameSource fixes the random source used for codenames.
func WithNameSource(src codename.Source) SignupOption {
	return func(s *Signup) { s.names = src }
}

func NewSignup(p Registrar, store docstore.Store, opts ...SignupOption) *Signup {
	s := &Signup{provider: p, store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Label is the submit control text for the current state.
func (s *Signup) Label() string {
	if s.Submitting() {
		return LabelSigningUp
	}
	return LabelSignup
}

// Submit runs account creation, display-name assignment and the profile
// write in order. The first failing step aborts the rest. A failure after
// the account exists leaves it signed in without a profile record; that is
// logged as auth.signup.partial and not reconciled.
func (s *Signup) Submit(ctx context.Context, c Credentials) (auth.Identity, error) {
	if err := checkCredentials(c, MsgWeakPassword); err != nil {
		return auth.Identity{}, err
	}
	if !s.enter() {
		return auth.Identity{}, ErrSubmissionInFlight
	}
	defer s.leave()

	id, err := s.provider.SignUp(ctx, c.Email, c.Password)
	if err != nil {
		code := auth.CodeOf(err)
		obs.ObserveAuth("signup", string(code))
		return auth.Identity{}, &Failure{Message: SignupMessage(code), Err: err}
	}

	name := codename.Generate(s.names)
	if err := s.provider.SetDisplayName(ctx, id, name); err != nil {
		return auth.Identity{}, s.partial(ctx, id, "display_name", err)
	}
	id.DisplayName = name

	if err := heist.WriteProfile(ctx, s.store, heist.Profile{ID: id.UID, Codename: name}); err != nil {
		return auth.Identity{}, s.partial(ctx, id, "profile", err)
	}

	obs.ObserveAuth("signup", "ok")
	_ = audit.LogEvent(ctx, "auth.signup", map[string]any{"uid": id.UID, "codename": name})
	return id, nil
}

func (s *Signup) partial(ctx context.Context, id auth.Identity, step string, err error) error {
	code := auth.CodeOf(err)
	obs.ObserveAuth("signup", string(code))
	obs.Error("signup incomplete", err, map[string]any{"uid": id.UID, "step": step})
	_ = audit.LogEvent(ctx, "auth.signup.partial", map[string]any{"uid": id.UID, "step": step})
	return &Failure{Message: SignupMessage(code), Err: err}
}
