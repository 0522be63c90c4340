package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type gateFixture struct {
	clock  *testClock
	codec  *JWTManager
	issuer *TokenIssuer
	store  *fakeStore
	gate   *Gate
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, clock)
	store := newFakeStore()
	store.put(Identity{Username: "alice", PasswordHash: "$2a$04$not-a-real-digest", FirstName: "Alice", Role: RoleUser})
	return &gateFixture{
		clock:  clock,
		codec:  codec,
		issuer: NewTokenIssuer(codec, time.Hour),
		store:  store,
		gate:   NewGate(codec, store, nil),
	}
}

func (f *gateFixture) token(t *testing.T, username string) string {
	t.Helper()
	session, err := f.issuer.Issue(Identity{Username: username})
	require.NoError(t, err)
	return session.Token
}

func requestWithToken(path, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "203.0.113.7:51234"
	req.Header.Set("User-Agent", "gate-test/1.0")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestGateExemptPaths(t *testing.T) {
	f := newGateFixture(t)

	require.True(t, f.gate.Exempt("/auth/login"))
	require.True(t, f.gate.Exempt("/auth/register"))
	require.False(t, f.gate.Exempt("/api/resource"))

	outcome := f.gate.Evaluate(requestWithToken("/auth/login", f.token(t, "alice")))
	require.Equal(t, StatePassThrough, outcome.State)
	require.Equal(t, ReasonExemptPath, outcome.Reason)
	require.Zero(t, f.store.findCalls)
}

func TestGateCustomExemptPrefixes(t *testing.T) {
	f := newGateFixture(t)
	gate := NewGate(f.codec, f.store, []string{" /public/ ", ""})

	require.True(t, gate.Exempt("/public/info"))
	require.False(t, gate.Exempt("/auth/login"))
}

func TestGateWithoutHeaderSkipsStore(t *testing.T) {
	f := newGateFixture(t)

	outcome := f.gate.Evaluate(requestWithToken("/api/v1/events", ""))
	require.Equal(t, StatePassThrough, outcome.State)
	require.Equal(t, ReasonNoCredential, outcome.Reason)
	require.Nil(t, outcome.Result)
	require.Zero(t, f.store.findCalls)
}

func TestGateNonBearerHeader(t *testing.T) {
	f := newGateFixture(t)
	req := requestWithToken("/api/v1/events", "")
	req.Header.Set("Authorization", "Basic YWxpY2U6c2VjcmV0")

	outcome := f.gate.Evaluate(req)
	require.Equal(t, ReasonNoCredential, outcome.Reason)
	require.Zero(t, f.store.findCalls)
}

func TestGateTamperedToken(t *testing.T) {
	f := newGateFixture(t)
	token := f.token(t, "alice")
	tampered := token[:len(token)-3] + "AAA"
	if tampered == token {
		tampered = token[:len(token)-3] + "BBB"
	}

	outcome := f.gate.Evaluate(requestWithToken("/api/v1/events", tampered))
	require.Equal(t, StatePassThrough, outcome.State)
	require.Equal(t, ReasonInvalidSignature, outcome.Reason)
	require.ErrorIs(t, outcome.Err, ErrInvalidSignature)
	require.Zero(t, f.store.findCalls)
}

func TestGateMalformedToken(t *testing.T) {
	f := newGateFixture(t)

	outcome := f.gate.Evaluate(requestWithToken("/api/v1/events", "garbage"))
	require.Equal(t, ReasonMalformedToken, outcome.Reason)
	require.Zero(t, f.store.findCalls)
}

func TestGateTokenWithoutSubject(t *testing.T) {
	f := newGateFixture(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": f.clock.Now().Add(time.Hour).Unix(),
	}).SignedString(f.codec.key)
	require.NoError(t, err)

	outcome := f.gate.Evaluate(requestWithToken("/api/v1/events", token))
	require.Equal(t, ReasonMissingSubject, outcome.Reason)
	require.Zero(t, f.store.findCalls)
}

func TestGateKeepsExistingResult(t *testing.T) {
	f := newGateFixture(t)
	existing := &AuthResult{Principal: Principal{Username: "alice"}}
	req := requestWithToken("/api/v1/events", f.token(t, "alice"))
	req = req.WithContext(WithAuthResult(req.Context(), existing))

	outcome := f.gate.Evaluate(req)
	require.Equal(t, StateAuthenticated, outcome.State)
	require.Equal(t, ReasonAlreadyAuthenticated, outcome.Reason)
	require.Same(t, existing, outcome.Result)
	require.Zero(t, f.store.findCalls)
}

func TestGateUnknownIdentity(t *testing.T) {
	f := newGateFixture(t)

	outcome := f.gate.Evaluate(requestWithToken("/api/v1/events", f.token(t, "ghost")))
	require.Equal(t, ReasonIdentityNotFound, outcome.Reason)
	require.Equal(t, 1, f.store.findCalls)
}

func TestGateStoreFailure(t *testing.T) {
	f := newGateFixture(t)
	f.store.findErr = errors.New("db down")

	outcome := f.gate.Evaluate(requestWithToken("/api/v1/events", f.token(t, "alice")))
	require.Equal(t, StatePassThrough, outcome.State)
	require.Equal(t, ReasonLookupFailed, outcome.Reason)
	require.Error(t, outcome.Err)
}

func TestGateExpiredToken(t *testing.T) {
	f := newGateFixture(t)
	token := f.token(t, "alice")
	f.clock.Advance(time.Hour)

	_, err := f.codec.Decode(token)
	require.NoError(t, err, "signature still verifies after expiry")

	outcome := f.gate.Evaluate(requestWithToken("/api/v1/events", token))
	require.Equal(t, StatePassThrough, outcome.State)
	require.Equal(t, ReasonTokenInvalid, outcome.Reason)
	require.Nil(t, outcome.Result)
}

func TestGateAuthenticates(t *testing.T) {
	f := newGateFixture(t)

	outcome := f.gate.Evaluate(requestWithToken("/api/v1/events", f.token(t, "alice")))
	require.Equal(t, StateAuthenticated, outcome.State)
	require.Equal(t, ReasonAuthenticated, outcome.Reason)
	require.NotNil(t, outcome.Result)
	require.Equal(t, "alice", outcome.Result.Principal.Username)
	require.Equal(t, "Alice", outcome.Result.Principal.FirstName)
	require.Equal(t, []string{"USER"}, outcome.Result.Authorities)
	require.Equal(t, "203.0.113.7", outcome.Result.RemoteAddr)
	require.Equal(t, "gate-test/1.0", outcome.Result.UserAgent)
	require.Equal(t, 1, f.store.findCalls)
}

func TestAuthResultContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	result := &AuthResult{Principal: Principal{Username: "alice"}}
	got, ok := FromContext(WithAuthResult(context.Background(), result))
	require.True(t, ok)
	require.Same(t, result, got)
}
