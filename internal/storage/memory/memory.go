// Package memory is a process-local storage backend used by "serve --memory"
// and by tests that exercise the full router without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/witw-events/server/internal/auth"
	"github.com/witw-events/server/internal/domain/events"
)

type Repository struct {
	users  *UserStore
	events *EventStore
}

func NewRepository() *Repository {
	return &Repository{
		users:  &UserStore{byName: map[string]auth.Identity{}},
		events: &EventStore{},
	}
}

func (r *Repository) Users() auth.CredentialStore { return r.users }

func (r *Repository) Events() events.Repository { return r.events }

func (r *Repository) Ping(context.Context) error { return nil }

// UserStore keeps identities keyed by username.
type UserStore struct {
	mu     sync.RWMutex
	byName map[string]auth.Identity
}

func (s *UserStore) FindByUsername(_ context.Context, username string) (*auth.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.byName[username]
	if !ok {
		return nil, auth.ErrIdentityNotFound
	}
	return &identity, nil
}

func (s *UserStore) Save(_ context.Context, identity auth.Identity) (*auth.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[identity.Username]; exists {
		return nil, auth.ErrDuplicateUsername
	}
	identity.ID = uuid.NewString()
	identity.CreatedAt = time.Now().UTC()
	if identity.Role == "" {
		identity.Role = auth.DefaultRole
	}
	s.byName[identity.Username] = identity
	return &identity, nil
}

// EventStore keeps events in insertion order.
type EventStore struct {
	mu    sync.RWMutex
	items []events.Event
}

func (s *EventStore) Create(_ context.Context, event events.Event) (*events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.CreatedAt = time.Now().UTC()
	event = cloneEvent(event)
	s.items = append(s.items, event)
	out := cloneEvent(event)
	return &out, nil
}

func (s *EventStore) List(context.Context) ([]events.Event, error) {
	return s.filter(func(events.Event) bool { return true }), nil
}

func (s *EventStore) SearchByName(_ context.Context, fragment string) ([]events.Event, error) {
	needle := strings.ToLower(fragment)
	return s.filter(func(e events.Event) bool {
		return strings.Contains(strings.ToLower(e.Name), needle)
	}), nil
}

func (s *EventStore) ListCheaperThan(_ context.Context, maxPrice float64) ([]events.Event, error) {
	return s.filter(func(e events.Event) bool { return e.Price < maxPrice }), nil
}

func (s *EventStore) ListScheduledAfter(_ context.Context, t time.Time) ([]events.Event, error) {
	out := s.filter(func(e events.Event) bool {
		return e.Schedule != nil && e.Schedule.After(t)
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Schedule.Before(*out[j].Schedule)
	})
	return out, nil
}

func (s *EventStore) GetByULID(_ context.Context, id string) (*events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.items {
		if e.ID == id {
			out := cloneEvent(e)
			return &out, nil
		}
	}
	return nil, events.ErrNotFound
}

func (s *EventStore) filter(keep func(events.Event) bool) []events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []events.Event{}
	for _, e := range s.items {
		if keep(e) {
			out = append(out, cloneEvent(e))
		}
	}
	return out
}

// cloneEvent copies the schedule so stored events share no memory with callers.
func cloneEvent(e events.Event) events.Event {
	if e.Schedule != nil {
		schedule := *e.Schedule
		e.Schedule = &schedule
	}
	return e
}
