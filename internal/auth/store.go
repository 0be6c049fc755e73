package auth

import "context"

// Accounts describes persistence operations required by the identity provider.
type Accounts interface {
	// Create stores a new account. It returns ErrAlreadyExists when the
	// email is taken.
	Create(ctx context.Context, a *Account) error
	Find(ctx context.Context, uid string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	UpdateDisplayName(ctx context.Context, uid, name string) error
}

// Persistence keeps the session token between process restarts.
type Persistence interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}
