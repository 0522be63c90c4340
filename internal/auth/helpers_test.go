package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeStore struct {
	mu        sync.Mutex
	byName    map[string]Identity
	findCalls int
	saveCalls int
	findErr   error
	saveErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{byName: map[string]Identity{}}
}

func (s *fakeStore) FindByUsername(_ context.Context, username string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	if s.findErr != nil {
		return nil, s.findErr
	}
	identity, ok := s.byName[username]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	return &identity, nil
}

func (s *fakeStore) Save(_ context.Context, identity Identity) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	if _, exists := s.byName[identity.Username]; exists {
		return nil, ErrDuplicateUsername
	}
	identity.ID = uuid.NewString()
	identity.CreatedAt = time.Now().UTC()
	s.byName[identity.Username] = identity
	return &identity, nil
}

func (s *fakeStore) put(identity Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	s.byName[identity.Username] = identity
}

// testClock is a settable clock shared by a codec and its issuer.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCodec(t *testing.T, clock *testClock) *JWTManager {
	t.Helper()
	key, err := DeriveSessionKey([]byte("test-master-secret-with-enough-entropy"))
	require.NoError(t, err)
	opts := []JWTOption{}
	if clock != nil {
		opts = append(opts, WithClock(clock.Now))
	}
	codec, err := NewJWTManager(key, "witw-test", opts...)
	require.NoError(t, err)
	return codec
}

func newTestHasher() *BcryptHasher {
	return NewBcryptHasher(bcrypt.MinCost)
}
