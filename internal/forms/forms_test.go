package forms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pocketheist.org/internal/auth"
	"pocketheist.org/internal/docstore"
	"pocketheist.org/internal/heist"
)

type firstWords struct{}

func (firstWords) IntN(int) int { return 0 }

func newClient(t *testing.T) *auth.Client {
	t.Helper()
	tokens, err := auth.NewTokens("forms-secret", time.Hour)
	require.NoError(t, err)
	c := auth.NewClient(auth.NewInMemoryAccounts(), tokens)
	t.Cleanup(c.Close)
	require.NoError(t, c.Restore(context.Background()))
	return c
}

type failingStore struct {
	docstore.Store
}

func (failingStore) WriteAt(context.Context, string, string, any) error {
	return docstore.Wrap("write", docstore.Users, errors.New("unavailable"))
}

type stubProvider struct {
	signInErr error
	signUpErr error
	nameErr   error
	block     chan struct{}
}

func (p *stubProvider) SignIn(ctx context.Context, email, password string) (auth.Identity, error) {
	if p.block != nil {
		<-p.block
	}
	return auth.Identity{UID: "u1", Email: email}, p.signInErr
}

func (p *stubProvider) SignUp(ctx context.Context, email, password string) (auth.Identity, error) {
	if p.signUpErr != nil {
		return auth.Identity{}, p.signUpErr
	}
	return auth.Identity{UID: "u1", Email: email}, nil
}

func (p *stubProvider) SetDisplayName(context.Context, auth.Identity, string) error {
	return p.nameErr
}

func TestLoginMessages(t *testing.T) {
	cases := map[auth.ErrorCode]string{
		auth.CodeInvalidCredential: MsgInvalidCredentials,
		auth.CodeUserNotFound:      MsgInvalidCredentials,
		auth.CodeWrongPassword:     MsgInvalidCredentials,
		auth.CodeInvalidEmail:      MsgInvalidEmail,
		auth.CodeEmailAlreadyInUse: MsgGeneric,
		auth.CodeUnknown:           MsgGeneric,
		"auth/too-many-requests":   MsgGeneric,
	}
	for code, want := range cases {
		require.Equal(t, want, LoginMessage(code), code)
	}
}

func TestSignupMessages(t *testing.T) {
	cases := map[auth.ErrorCode]string{
		auth.CodeEmailAlreadyInUse: MsgEmailInUse,
		auth.CodeWeakPassword:      MsgWeakPassword,
		auth.CodeInvalidEmail:      MsgInvalidEmail,
		auth.CodeInvalidCredential: MsgGeneric,
		auth.CodeInternal:          MsgGeneric,
	}
	for code, want := range cases {
		require.Equal(t, want, SignupMessage(code), code)
	}
}

func TestLoginAgainstClient(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	_, err := c.SignUp(ctx, "agent@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, c.SignOut(ctx))

	login := NewLogin(c)
	_, err = login.Submit(ctx, Credentials{Email: "agent@example.com", Password: "wrong-pass"})
	require.Equal(t, MsgInvalidCredentials, MessageOf(err))
	require.False(t, login.Submitting())

	_, err = login.Submit(ctx, Credentials{Email: "nobody@example.com", Password: "secret1"})
	require.Equal(t, MsgInvalidCredentials, MessageOf(err))

	id, err := login.Submit(ctx, Credentials{Email: "agent@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NotEmpty(t, id.UID)
	cur, ok := c.Current()
	require.True(t, ok)
	require.Equal(t, id.UID, cur.UID)
}

func TestLoginRejectsMalformedEmail(t *testing.T) {
	p := &stubProvider{}
	_, err := NewLogin(p).Submit(context.Background(), Credentials{Email: "not-an-email", Password: "x"})
	require.Equal(t, MsgInvalidEmail, MessageOf(err))
}

func TestLoginUnknownCodeFallsBack(t *testing.T) {
	p := &stubProvider{signInErr: errors.New("network down")}
	_, err := NewLogin(p).Submit(context.Background(), Credentials{Email: "a@b.co", Password: "x"})
	require.Equal(t, MsgGeneric, MessageOf(err))
}

func TestLoginInFlight(t *testing.T) {
	p := &stubProvider{block: make(chan struct{})}
	login := NewLogin(p)
	done := make(chan error, 1)
	go func() {
		_, err := login.Submit(context.Background(), Credentials{Email: "a@b.co", Password: "x"})
		done <- err
	}()
	require.Eventually(t, login.Submitting, time.Second, time.Millisecond)
	require.Equal(t, LabelLoggingIn, login.Label())

	_, err := login.Submit(context.Background(), Credentials{Email: "a@b.co", Password: "x"})
	require.ErrorIs(t, err, ErrSubmissionInFlight)

	close(p.block)
	require.NoError(t, <-done)
	require.Equal(t, LabelLogin, login.Label())
}

func TestSignupWritesProfile(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	store := docstore.NewInMemory()
	signup := NewSignup(c, store, WithNameSource(firstWords{}))

	id, err := signup.Submit(ctx, Credentials{Email: "new@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, "SilentFoxRogue", id.DisplayName)

	roster, err := heist.LoadRoster(ctx, store)
	require.NoError(t, err)
	require.Equal(t, []heist.RosterEntry{{ID: id.UID, Codename: "SilentFoxRogue"}}, roster)

	cur, ok := c.Current()
	require.True(t, ok)
	require.Equal(t, "SilentFoxRogue", cur.DisplayName)
	require.False(t, signup.Submitting())
}

func TestSignupProviderErrors(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	store := docstore.NewInMemory()
	signup := NewSignup(c, store)

	_, err := signup.Submit(ctx, Credentials{Email: "new@example.com", Password: "short"})
	require.Equal(t, MsgWeakPassword, MessageOf(err))

	_, err = signup.Submit(ctx, Credentials{Email: "new@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = signup.Submit(ctx, Credentials{Email: "new@example.com", Password: "secret1"})
	require.Equal(t, MsgEmailInUse, MessageOf(err))
}

func TestSignupAbortsAfterFailedStep(t *testing.T) {
	ctx := context.Background()

	p := &stubProvider{nameErr: &auth.AuthError{Code: auth.CodeInternal}}
	store := docstore.NewInMemory()
	_, err := NewSignup(p, store).Submit(ctx, Credentials{Email: "a@b.co", Password: "secret1"})
	require.Equal(t, MsgGeneric, MessageOf(err))
	docs, err := store.ListAll(ctx, docstore.Users)
	require.NoError(t, err)
	require.Empty(t, docs)

	signup := NewSignup(&stubProvider{}, failingStore{Store: store})
	_, err = signup.Submit(ctx, Credentials{Email: "a@b.co", Password: "secret1"})
	require.Equal(t, MsgGeneric, MessageOf(err))
	var se *docstore.StoreError
	require.ErrorAs(t, err, &se)
	require.False(t, signup.Submitting())
}
