package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"pocketheist.org/internal/ids"
)

// Unsubscribe releases a subscription. Calling it more than once is a no-op.
type Unsubscribe func()

// Provider is the identity provider contract consumed by the session holder
// and the credential forms. Every failure is an *AuthError.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Identity, error)
	SignUp(ctx context.Context, email, password string) (Identity, error)
	SetDisplayName(ctx context.Context, id Identity, name string) error
	SignOut(ctx context.Context) error
	// Subscribe streams authentication-state changes. Once the provider has
	// resolved its initial state the current value is delivered first.
	Subscribe() (<-chan Change, Unsubscribe)
}

var _ Provider = (*Client)(nil)

// Client is the in-process identity provider: it verifies credentials
// against Accounts, holds the signed-in identity and persists a session token.
type Client struct {
	accounts Accounts
	tokens   *Tokens
	persist  Persistence
	validate *validator.Validate

	mu       sync.Mutex
	current  *Identity
	resolved bool
	changes  *broadcaster
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithPersistence keeps the session token across restarts.
func WithPersistence(p Persistence) ClientOption {
	return func(c *Client) {
		if p != nil {
			c.persist = p
		}
	}
}

// WithClock overrides the token clock (tests).
func WithClock(fn func() time.Time) ClientOption {
	return func(c *Client) {
		if fn != nil && c.tokens != nil {
			c.tokens.now = fn
		}
	}
}

// NewClient constructs a Client. The client stays unresolved, and
// subscribers receive nothing, until Restore is called.
func NewClient(accounts Accounts, tokens *Tokens, opts ...ClientOption) *Client {
	c := &Client{
		accounts: accounts,
		tokens:   tokens,
		persist:  &MemoryPersistence{},
		validate: validator.New(),
		changes:  newBroadcaster(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore resolves the initial state from the persisted token and notifies
// subscribers. An invalid or stale token resolves to "signed out".
func (c *Client) Restore(ctx context.Context) error {
	var restored *Identity
	var loadErr error
	token, err := c.persist.Load()
	switch {
	case err != nil:
		loadErr = err
	case token != "":
		restored, loadErr = c.identityFromToken(ctx, token)
		if errors.Is(loadErr, ErrInvalidToken) || errors.Is(loadErr, ErrNotFound) {
			_ = c.persist.Clear()
			loadErr = nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		// A sign-in or sign-out finished first and already published.
		return loadErr
	}
	c.current = restored
	c.resolved = true
	c.changes.publish(Change{Identity: cloneIdentity(restored)})
	return loadErr
}

func (c *Client) identityFromToken(ctx context.Context, token string) (*Identity, error) {
	claims, err := c.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	acct, err := c.accounts.Find(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	id := acct.Identity()
	return &id, nil
}

// Current returns the signed-in identity, if any.
func (c *Client) Current() (Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Identity{}, false
	}
	return *c.current, true
}

func (c *Client) SignIn(ctx context.Context, email, password string) (Identity, error) {
	email = normalizeEmail(email)
	if err := c.validate.Var(email, "required,email"); err != nil {
		return Identity{}, newAuthError(CodeInvalidEmail, err)
	}
	acct, err := c.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, newAuthError(CodeInvalidCredential, err)
		}
		return Identity{}, newAuthError(CodeInternal, err)
	}
	if err := VerifyPassword(acct.PasswordHash, password); err != nil {
		return Identity{}, newAuthError(CodeInvalidCredential, err)
	}
	id := acct.Identity()
	if err := c.establish(id); err != nil {
		return Identity{}, newAuthError(CodeInternal, err)
	}
	return id, nil
}

func (c *Client) SignUp(ctx context.Context, email, password string) (Identity, error) {
	email = normalizeEmail(email)
	if err := c.validate.Var(email, "required,email"); err != nil {
		return Identity{}, newAuthError(CodeInvalidEmail, err)
	}
	hash, err := HashPassword(password)
	if err != nil {
		if errors.Is(err, errWeakPassword) {
			return Identity{}, newAuthError(CodeWeakPassword, err)
		}
		return Identity{}, newAuthError(CodeInternal, err)
	}
	acct := &Account{UID: ids.New(), Email: email, PasswordHash: hash}
	if err := c.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return Identity{}, newAuthError(CodeEmailAlreadyInUse, err)
		}
		return Identity{}, newAuthError(CodeInternal, err)
	}
	id := acct.Identity()
	if err := c.establish(id); err != nil {
		return Identity{}, newAuthError(CodeInternal, err)
	}
	return id, nil
}

// SetDisplayName updates the account and, when id is the signed-in
// identity, republishes it so consumers see the new name.
func (c *Client) SetDisplayName(ctx context.Context, id Identity, name string) error {
	name = strings.TrimSpace(name)
	if id.UID == "" {
		return newAuthError(CodeInternal, ErrInvalidInput)
	}
	if err := c.accounts.UpdateDisplayName(ctx, id.UID, name); err != nil {
		return newAuthError(CodeInternal, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.UID == id.UID {
		c.current.DisplayName = name
		c.changes.publish(Change{Identity: cloneIdentity(c.current)})
	}
	return nil
}

func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.persist.Clear(); err != nil {
		return newAuthError(CodeInternal, err)
	}
	c.current = nil
	c.resolved = true
	c.changes.publish(Change{})
	return nil
}

func (c *Client) Subscribe() (<-chan Change, Unsubscribe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ch := c.changes.add()
	if c.resolved {
		c.changes.sendTo(id, Change{Identity: cloneIdentity(c.current)})
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() { c.changes.remove(id) })
	}
}

// Close ends every open subscription.
func (c *Client) Close() {
	c.changes.closeAll()
}

func (c *Client) establish(id Identity) error {
	token, _, err := c.tokens.Mint(id)
	if err != nil {
		return err
	}
	// The token and the published identity change together, so a concurrent
	// SignOut lands either before or after both.
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.persist.Save(token); err != nil {
		return err
	}
	c.current = cloneIdentity(&id)
	c.resolved = true
	c.changes.publish(Change{Identity: cloneIdentity(c.current)})
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}
