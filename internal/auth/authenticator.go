package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/witw-events/server/internal/validation"
)

// ErrInvalidCredentials is returned for both unknown usernames and wrong
// passwords.
var ErrInvalidCredentials = errors.New("invalid username or password")

// dummyPassword is hashed once so that logins for unknown usernames still pay
// for a full digest comparison.
const dummyPassword = "witw-timing-equalizer"

// RegisterInput is a self-registration request.
type RegisterInput struct {
	Username  string `json:"username" validate:"required,min=3,max=64,nocontrol"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
	FirstName string `json:"firstname" validate:"max=100,nocontrol"`
	LastName  string `json:"lastname" validate:"max=100,nocontrol"`
	Country   string `json:"country" validate:"max=100,nocontrol"`
}

// Authenticator handles login and registration.
type Authenticator struct {
	store    CredentialStore
	hasher   PasswordHasher
	issuer   *TokenIssuer
	validate *validator.Validate
	logger   zerolog.Logger

	dummyOnce   sync.Once
	dummyDigest string
}

func NewAuthenticator(store CredentialStore, hasher PasswordHasher, issuer *TokenIssuer, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		store:    store,
		hasher:   hasher,
		issuer:   issuer,
		validate: validation.New(),
		logger:   logger.With().Str("component", "authenticator").Logger(),
	}
}

// Login verifies username and password and issues a session token.
func (a *Authenticator) Login(ctx context.Context, username, password string) (SessionToken, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" || validation.HasControl(username) {
		a.equalizeTiming(password)
		return SessionToken{}, ErrInvalidCredentials
	}

	identity, err := a.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			a.equalizeTiming(password)
			return SessionToken{}, ErrInvalidCredentials
		}
		return SessionToken{}, fmt.Errorf("lookup identity: %w", err)
	}

	if !a.hasher.Verify(password, identity.PasswordHash) {
		return SessionToken{}, ErrInvalidCredentials
	}

	token, err := a.issuer.Issue(*identity)
	if err != nil {
		return SessionToken{}, fmt.Errorf("issue token: %w", err)
	}
	a.logger.Debug().Str("username", identity.Username).Msg("login succeeded")
	return token, nil
}

// Register creates an identity with the default role and issues its first
// session token. An existing username is never modified.
func (a *Authenticator) Register(ctx context.Context, input RegisterInput) (SessionToken, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Country = strings.TrimSpace(input.Country)

	if err := validation.Struct(a.validate, input); err != nil {
		return SessionToken{}, err
	}
	if strings.ContainsFunc(input.Username, unicode.IsSpace) {
		return SessionToken{}, validation.Error{Field: "username", Message: "must not contain whitespace"}
	}

	_, err := a.store.FindByUsername(ctx, input.Username)
	switch {
	case err == nil:
		return SessionToken{}, ErrDuplicateUsername
	case !errors.Is(err, ErrIdentityNotFound):
		return SessionToken{}, fmt.Errorf("lookup identity: %w", err)
	}

	digest, err := a.hasher.Hash(input.Password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return SessionToken{}, validation.Error{Field: "password", Message: "must be at most 72 bytes"}
		}
		return SessionToken{}, err
	}

	saved, err := a.store.Save(ctx, Identity{
		Username:     input.Username,
		PasswordHash: digest,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Country:      input.Country,
		Role:         DefaultRole,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return SessionToken{}, ErrDuplicateUsername
		}
		return SessionToken{}, fmt.Errorf("save identity: %w", err)
	}

	token, err := a.issuer.Issue(*saved)
	if err != nil {
		return SessionToken{}, fmt.Errorf("issue token: %w", err)
	}
	a.logger.Info().Str("username", saved.Username).Str("identity_id", saved.ID).Msg("identity registered")
	return token, nil
}

func (a *Authenticator) equalizeTiming(password string) {
	a.dummyOnce.Do(func() {
		digest, err := a.hasher.Hash(dummyPassword)
		if err != nil {
			a.logger.Warn().Err(err).Msg("failed to prepare dummy digest")
			return
		}
		a.dummyDigest = digest
	})
	if a.dummyDigest == "" {
		return
	}
	if password == "" {
		password = dummyPassword + "-"
	}
	_ = a.hasher.Verify(password, a.dummyDigest)
}
