package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestJWTManagerEncodeDecode(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, clock)

	token, err := codec.Encode("alice", clock.Now(), clock.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(token, "."))

	claims, err := codec.Decode(token)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
	require.Equal(t, "witw-test", claims.Issuer)
	require.True(t, claims.IssuedAt.Time.Equal(clock.Now()))
	require.True(t, claims.ExpiresAt.Time.Equal(clock.Now().Add(time.Hour)))
}

func TestJWTManagerRejectsEmptyInputs(t *testing.T) {
	_, err := NewJWTManager(nil, "witw")
	require.ErrorIs(t, err, ErrEmptySecret)

	codec := newTestCodec(t, nil)
	_, err = codec.Encode("  ", time.Now(), time.Now().Add(time.Minute))
	require.ErrorIs(t, err, ErrEmptySubject)
}

func TestDecodeMalformed(t *testing.T) {
	codec := newTestCodec(t, nil)

	for _, token := range []string{"", "   ", "no-separators-at-all"} {
		_, err := codec.Decode(token)
		require.ErrorIs(t, err, ErrMalformed, "token %q", token)
	}
}

func TestDecodeMalformedClaimsWithValidSignature(t *testing.T) {
	codec := newTestCodec(t, nil)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`not json`))
	signingString := header + "." + payload

	sig, err := jwt.SigningMethodHS256.Sign(signingString, codec.key)
	require.NoError(t, err)

	_, err = codec.Decode(signingString + "." + base64.RawURLEncoding.EncodeToString(sig))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsForeignKey(t *testing.T) {
	codec := newTestCodec(t, nil)
	other, err := NewJWTManager([]byte("a-completely-different-signing-key"), "witw-test")
	require.NoError(t, err)

	token, err := other.Encode("alice", time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = codec.Decode(token)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestDecodeRejectsUnsignedToken(t *testing.T) {
	codec := newTestCodec(t, nil)
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = codec.Decode(token)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestDecodeDetectsEverySingleCharacterMutation(t *testing.T) {
	codec := newTestCodec(t, nil)
	issuer := NewTokenIssuer(codec, time.Hour)

	session, err := issuer.Issue(Identity{Username: "alice"})
	require.NoError(t, err)
	token := session.Token

	replacements := []byte{'A', 'z', '0', '_', '-', '.'}
	for i := 0; i < len(token); i++ {
		for _, r := range replacements {
			if token[i] == r {
				continue
			}
			mutated := token[:i] + string(r) + token[i+1:]
			claims, err := codec.Decode(mutated)
			require.ErrorIs(t, err, ErrInvalidSignature, "position %d replaced with %q", i, r)
			require.Nil(t, claims)
		}
	}
}

func TestIsValid(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, clock)
	issuer := NewTokenIssuer(codec, 2*time.Hour)
	alice := Identity{Username: "alice"}
	bob := Identity{Username: "bob"}

	session, err := issuer.Issue(alice)
	require.NoError(t, err)

	require.True(t, codec.IsValid(session.Token, alice))
	require.False(t, codec.IsValid(session.Token, bob))
	require.False(t, codec.IsValid(session.Token+"x", alice))

	clock.Advance(2*time.Hour - time.Second)
	require.True(t, codec.IsValid(session.Token, alice))

	clock.Advance(time.Second)
	require.False(t, codec.IsValid(session.Token, alice), "token is invalid at its expiry instant")

	// Expiry is not a decode failure.
	claims, err := codec.Decode(session.Token)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
}

func TestIsValidWithoutExpiry(t *testing.T) {
	codec := newTestCodec(t, nil)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}).SignedString(codec.key)
	require.NoError(t, err)

	require.False(t, codec.IsValid(token, Identity{Username: "alice"}))
}

func TestTokenIssuerWindow(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)}
	codec := newTestCodec(t, clock)

	issuer := NewTokenIssuer(codec, 0)

	session, err := issuer.Issue(Identity{Username: "alice"})
	require.NoError(t, err)
	require.Equal(t, "alice", session.Subject)
	require.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), session.IssuedAt)
	require.Equal(t, session.IssuedAt.Add(DefaultTokenWindow), session.ExpiresAt)
	require.NotEmpty(t, session.Token)

	claims, err := codec.Decode(session.Token)
	require.NoError(t, err)
	require.True(t, claims.ExpiresAt.Time.Equal(session.ExpiresAt))
}

func TestTokenFromHeader(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc.def.ghi", want: "abc.def.ghi", ok: true},
		{header: "bearer abc", want: "abc", ok: true},
		{header: "Basic dXNlcjpwYXNz"},
		{header: "Bearer"},
		{header: "Bearer a b"},
		{header: ""},
	}
	for _, tt := range tests {
		got, ok := TokenFromHeader(tt.header)
		require.Equal(t, tt.ok, ok, "header %q", tt.header)
		require.Equal(t, tt.want, got, "header %q", tt.header)
	}
}
