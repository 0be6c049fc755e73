package auth

import "time"

// Identity is the authenticated principal handed to the rest of the
// application. DisplayName carries the codename once one has been set.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
}

// Account is the provider-side record behind an Identity.
type Account struct {
	UID          string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity projects the account into the value exposed to consumers.
func (a *Account) Identity() Identity {
	return Identity{UID: a.UID, Email: a.Email, DisplayName: a.DisplayName}
}

// Change is a single authentication-state notification. A nil Identity
// means nobody is signed in.
type Change struct {
	Identity *Identity
}
