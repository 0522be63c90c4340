package auth

import (
	"time"
)

// DefaultTokenWindow applies when no expiry is configured.
const DefaultTokenWindow = 24 * time.Hour

// SessionToken is the result of a successful login or registration.
type SessionToken struct {
	Token     string    `json:"token"`
	Subject   string    `json:"-"`
	IssuedAt  time.Time `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// TokenIssuer mints session tokens for identities. Issued tokens are not
// stored anywhere.
type TokenIssuer struct {
	codec  *JWTManager
	window time.Duration
}

func NewTokenIssuer(codec *JWTManager, window time.Duration) *TokenIssuer {
	if window <= 0 {
		window = DefaultTokenWindow
	}
	return &TokenIssuer{codec: codec, window: window}
}

func (i *TokenIssuer) Issue(identity Identity) (SessionToken, error) {
	issuedAt := i.codec.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(i.window)
	token, err := i.codec.Encode(identity.Username, issuedAt, expiresAt)
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{
		Token:     token,
		Subject:   identity.Username,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}
