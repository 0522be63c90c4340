package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/witw-events/server/internal/domain/ids"
	"github.com/witw-events/server/internal/validation"
)

type Service struct {
	repo     Repository
	geocoder AddressResolver
	validate *validator.Validate
	logger   zerolog.Logger
	location *time.Location
	now      func() time.Time
}

type Option func(*Service)

// WithLocation sets the zone used for schedules given without an offset.
// Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(repo Repository, geocoder AddressResolver, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		geocoder: geocoder,
		validate: validation.New(),
		logger:   logger.With().Str("component", "events").Logger(),
		location: time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates input, resolves the address of its coordinates and stores
// the event on behalf of createdBy.
func (s *Service) Create(ctx context.Context, input EventInput, createdBy string) (*Event, error) {
	valid, err := validateEventInput(s.validate, input, s.location)
	if err != nil {
		return nil, err
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate event id: %w", err)
	}

	address := s.geocoder.Address(ctx, valid.Latitude, valid.Longitude)

	created, err := s.repo.Create(ctx, Event{
		ID:        id,
		Name:      valid.Name,
		Price:     valid.Price,
		Schedule:  valid.Schedule,
		Latitude:  valid.Latitude,
		Longitude: valid.Longitude,
		Address:   address,
		CreatedBy: createdBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.logger.Info().
		Str("event_id", created.ID).
		Str("created_by", createdBy).
		Msg("event created")
	return created, nil
}

func (s *Service) List(ctx context.Context) ([]Event, error) {
	return s.repo.List(ctx)
}

// SearchByName matches name fragments case-insensitively. A blank fragment
// matches every event.
func (s *Service) SearchByName(ctx context.Context, fragment string) ([]Event, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return s.repo.List(ctx)
	}
	return s.repo.SearchByName(ctx, fragment)
}

// Cheaper returns events priced strictly below maxPrice.
func (s *Service) Cheaper(ctx context.Context, maxPrice float64) ([]Event, error) {
	return s.repo.ListCheaperThan(ctx, maxPrice)
}

// Upcoming returns events scheduled after the current time, soonest first.
func (s *Service) Upcoming(ctx context.Context) ([]Event, error) {
	return s.repo.ListScheduledAfter(ctx, s.now().UTC())
}

func (s *Service) Get(ctx context.Context, id string) (*Event, error) {
	if err := ids.ValidateULID(id); err != nil {
		return nil, validation.Error{Field: "id", Message: "must be a ULID"}
	}
	return s.repo.GetByULID(ctx, ids.NormalizeULID(id))
}
