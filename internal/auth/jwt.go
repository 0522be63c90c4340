package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptySecret      = errors.New("signing secret cannot be empty")
	ErrEmptySubject     = errors.New("token subject cannot be empty")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrMalformed        = errors.New("malformed token")
)

// Claims carries sub, iat, exp and iss. Nothing else is read from a token.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTManager encodes and decodes HS256 session tokens. The key is copied at
// construction and never changes, so a manager is safe for concurrent use.
//
// Tokens cannot be revoked before they expire.
type JWTManager struct {
	key    []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

type JWTOption func(*JWTManager)

// WithClock replaces time.Now for validity checks.
func WithClock(now func() time.Time) JWTOption {
	return func(m *JWTManager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewJWTManager(key []byte, issuer string, opts ...JWTOption) (*JWTManager, error) {
	if len(key) == 0 {
		return nil, ErrEmptySecret
	}
	m := &JWTManager{
		key:    append([]byte(nil), key...),
		issuer: issuer,
		now:    time.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
			jwt.WithStrictDecoding(),
		),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Encode signs a token for subject valid from issuedAt until expiresAt.
func (m *JWTManager) Encode(subject string, issuedAt, expiresAt time.Time) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", ErrEmptySubject
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and returns the claims. Expiry is not checked
// here; see IsValid.
//
// The HMAC is checked over everything before the last '.' before any segment
// is decoded, so a token altered in any single character reports
// ErrInvalidSignature. ErrMalformed is reserved for blank input, input without
// a signature separator, and correctly signed content that is not a JWT.
func (m *JWTManager) Decode(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMalformed
	}
	cut := strings.LastIndexByte(token, '.')
	if cut < 0 {
		return nil, ErrMalformed
	}

	signature, err := base64.RawURLEncoding.Strict().DecodeString(token[cut+1:])
	if err != nil {
		return nil, ErrInvalidSignature
	}
	if err := jwt.SigningMethodHS256.Verify(token[:cut], signature, m.key); err != nil {
		return nil, ErrInvalidSignature
	}

	claims := &Claims{}
	parsed, err := m.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.key, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrMalformed
	}
	return claims, nil
}

// IsValid reports whether token was signed by this manager for identity's
// username and has not yet expired.
func (m *JWTManager) IsValid(token string, identity Identity) bool {
	claims, err := m.Decode(token)
	if err != nil {
		return false
	}
	return m.claimsValidFor(claims, identity)
}

func (m *JWTManager) claimsValidFor(claims *Claims, identity Identity) bool {
	if claims == nil || claims.Subject == "" || claims.Subject != identity.Username {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return m.now().Before(claims.ExpiresAt.Time)
}

// TokenFromHeader extracts the credential of an "Authorization: Bearer <token>"
// header. The scheme match is case-insensitive.
func TokenFromHeader(authHeader string) (string, bool) {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}
