package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrIdentityNotFound  = errors.New("identity not found")
	ErrDuplicateUsername = errors.New("username is already taken")
)

// Identity is a registered principal as held by the credential store.
type Identity struct {
	ID           string
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
	Country      string
	Role         Role
	CreatedAt    time.Time
}

// Authorities returns the granted authorities of the identity. An identity
// holds exactly one role.
func (i Identity) Authorities() []string {
	return []string{string(i.Role)}
}

// CredentialStore persists identities. FindByUsername returns
// ErrIdentityNotFound when no identity matches; Save assigns the identifier and
// returns ErrDuplicateUsername when the username already exists.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*Identity, error)
	Save(ctx context.Context, identity Identity) (*Identity, error)
}

// Principal is the secret-free view of an Identity carried by an AuthResult.
type Principal struct {
	ID        string
	Username  string
	FirstName string
	LastName  string
	Country   string
	Role      Role
}

func principalOf(identity Identity) Principal {
	return Principal{
		ID:        identity.ID,
		Username:  identity.Username,
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		Country:   identity.Country,
		Role:      identity.Role,
	}
}

// AuthResult is the authenticated context of a single request. It is created
// once by the Gate and never mutated afterwards.
type AuthResult struct {
	Principal       Principal
	Authorities     []string
	RemoteAddr      string
	UserAgent       string
	AuthenticatedAt time.Time
}

type contextKey string

const authResultKey contextKey = "authResult"

// WithAuthResult returns a copy of ctx carrying result.
func WithAuthResult(ctx context.Context, result *AuthResult) context.Context {
	return context.WithValue(ctx, authResultKey, result)
}

// FromContext returns the AuthResult established for the request, if any.
func FromContext(ctx context.Context) (*AuthResult, bool) {
	if ctx == nil {
		return nil, false
	}
	result, ok := ctx.Value(authResultKey).(*AuthResult)
	if !ok || result == nil {
		return nil, false
	}
	return result, true
}
