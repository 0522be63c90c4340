package events

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("event not found")

// Event is a stored event record. Address is resolved from the coordinates
// when the event is created.
type Event struct {
	ID        string
	Name      string
	Price     float64
	Schedule  *time.Time
	Latitude  float64
	Longitude float64
	Address   string
	CreatedBy string
	CreatedAt time.Time
}

// Repository persists events. Listing methods return events in insertion
// order unless stated otherwise.
type Repository interface {
	Create(ctx context.Context, event Event) (*Event, error)
	List(ctx context.Context) ([]Event, error)
	SearchByName(ctx context.Context, fragment string) ([]Event, error)
	ListCheaperThan(ctx context.Context, maxPrice float64) ([]Event, error)
	// ListScheduledAfter returns events scheduled strictly after t, earliest first.
	ListScheduledAfter(ctx context.Context, t time.Time) ([]Event, error)
	GetByULID(ctx context.Context, id string) (*Event, error)
}

// AddressResolver turns coordinates into a human-readable address. It always
// returns a displayable string, falling back to a fixed message on failure.
type AddressResolver interface {
	Address(ctx context.Context, latitude, longitude float64) string
}
