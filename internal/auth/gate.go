package auth

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
)

// GateState is a step of per-request authentication.
type GateState string

const (
	StateUnauthenticated  GateState = "unauthenticated"
	StateHeaderChecked    GateState = "header_checked"
	StateTokenDecoded     GateState = "token_decoded"
	StateIdentityResolved GateState = "identity_resolved"
	StateAuthenticated    GateState = "authenticated"
	StatePassThrough      GateState = "pass_through"
)

// Reasons recorded on an Outcome.
const (
	ReasonExemptPath           = "exempt_path"
	ReasonNoCredential         = "no_credential"
	ReasonInvalidSignature     = "invalid_signature"
	ReasonMalformedToken       = "malformed_token"
	ReasonMissingSubject       = "missing_subject"
	ReasonAlreadyAuthenticated = "already_authenticated"
	ReasonIdentityNotFound     = "identity_not_found"
	ReasonLookupFailed         = "lookup_failed"
	ReasonTokenInvalid         = "token_invalid"
	ReasonAuthenticated        = "authenticated"
)

// DefaultExemptPrefixes are skipped by the gate entirely.
var DefaultExemptPrefixes = []string{"/auth/"}

// Outcome is the terminal state reached for one request. Result is set when
// State is StateAuthenticated.
type Outcome struct {
	State  GateState
	Reason string
	Result *AuthResult
	Err    error
}

// Gate establishes an AuthResult from a bearer token. It never rejects a
// request: every failure ends in StatePassThrough and authorization is left to
// the handler chain.
type Gate struct {
	codec  *JWTManager
	store  CredentialStore
	exempt []string
	now    func() time.Time
}

func NewGate(codec *JWTManager, store CredentialStore, exemptPrefixes []string) *Gate {
	if exemptPrefixes == nil {
		exemptPrefixes = DefaultExemptPrefixes
	}
	prefixes := make([]string, 0, len(exemptPrefixes))
	for _, prefix := range exemptPrefixes {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			prefixes = append(prefixes, prefix)
		}
	}
	return &Gate{codec: codec, store: store, exempt: prefixes, now: codec.now}
}

// Exempt reports whether path bypasses the gate.
func (g *Gate) Exempt(path string) bool {
	for _, prefix := range g.exempt {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Evaluate runs the gate for r. It performs at most one credential store
// lookup and does not modify r.
func (g *Gate) Evaluate(r *http.Request) Outcome {
	if g.Exempt(r.URL.Path) {
		return passThrough(ReasonExemptPath, nil)
	}

	// unauthenticated -> header_checked
	token, ok := TokenFromHeader(r.Header.Get("Authorization"))
	if !ok {
		return passThrough(ReasonNoCredential, nil)
	}

	// header_checked -> token_decoded
	claims, err := g.codec.Decode(token)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			return passThrough(ReasonInvalidSignature, err)
		}
		return passThrough(ReasonMalformedToken, err)
	}
	subject := claims.Subject
	if strings.TrimSpace(subject) == "" {
		return passThrough(ReasonMissingSubject, nil)
	}

	ctx := r.Context()
	if existing, ok := FromContext(ctx); ok {
		return Outcome{State: StateAuthenticated, Reason: ReasonAlreadyAuthenticated, Result: existing}
	}

	// token_decoded -> identity_resolved
	identity, err := g.store.FindByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return passThrough(ReasonIdentityNotFound, nil)
		}
		return passThrough(ReasonLookupFailed, err)
	}

	// identity_resolved -> authenticated
	if !g.codec.claimsValidFor(claims, *identity) {
		return passThrough(ReasonTokenInvalid, nil)
	}

	return Outcome{
		State:  StateAuthenticated,
		Reason: ReasonAuthenticated,
		Result: &AuthResult{
			Principal:       principalOf(*identity),
			Authorities:     identity.Authorities(),
			RemoteAddr:      remoteHost(r.RemoteAddr),
			UserAgent:       r.UserAgent(),
			AuthenticatedAt: g.now().UTC(),
		},
	}
}

func passThrough(reason string, err error) Outcome {
	return Outcome{State: StatePassThrough, Reason: reason, Err: err}
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
