// Package storage defines the persistence boundary shared by the Postgres and
// in-memory backends.
package storage

import (
	"context"

	"github.com/witw-events/server/internal/auth"
	"github.com/witw-events/server/internal/domain/events"
)

// Repository groups data access by domain.
type Repository interface {
	Users() auth.CredentialStore
	Events() events.Repository

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
