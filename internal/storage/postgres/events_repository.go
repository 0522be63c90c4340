package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/witw-events/server/internal/domain/events"
	"github.com/witw-events/server/internal/metrics"
)

type EventRepository struct {
	pool *pgxpool.Pool
}

const eventColumns = `ulid, name, price, schedule, latitude, longitude, address, created_by, created_at`

func (r *EventRepository) Create(ctx context.Context, event events.Event) (_ *events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("insert_event", start, err) }(time.Now())

	row := r.pool.QueryRow(ctx, `
INSERT INTO events (ulid, name, price, schedule, latitude, longitude, address, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING `+eventColumns,
		event.ID,
		event.Name,
		event.Price,
		event.Schedule,
		event.Latitude,
		event.Longitude,
		event.Address,
		event.CreatedBy,
	)
	created, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return created, nil
}

func (r *EventRepository) List(ctx context.Context) (_ []events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("list_events", start, err) }(time.Now())

	return queryEvents(ctx, r.pool, `SELECT `+eventColumns+` FROM events ORDER BY seq`)
}

func (r *EventRepository) SearchByName(ctx context.Context, fragment string) (_ []events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("search_events", start, err) }(time.Now())

	pattern := "%" + escapeILIKEPattern(fragment) + "%"
	return queryEvents(ctx, r.pool, `
SELECT `+eventColumns+`
  FROM events
 WHERE name ILIKE $1 ESCAPE '\'
 ORDER BY seq`, pattern)
}

func (r *EventRepository) ListCheaperThan(ctx context.Context, maxPrice float64) (_ []events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("cheap_events", start, err) }(time.Now())

	return queryEvents(ctx, r.pool, `
SELECT `+eventColumns+`
  FROM events
 WHERE price < $1
 ORDER BY seq`, maxPrice)
}

func (r *EventRepository) ListScheduledAfter(ctx context.Context, t time.Time) (_ []events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("upcoming_events", start, err) }(time.Now())

	return queryEvents(ctx, r.pool, `
SELECT `+eventColumns+`
  FROM events
 WHERE schedule > $1
 ORDER BY schedule, seq`, t)
}

func (r *EventRepository) GetByULID(ctx context.Context, id string) (_ *events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("get_event", start, err) }(time.Now())

	row := r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE ulid = $1`, id)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func queryEvents(ctx context.Context, q queryer, sql string, args ...any) ([]events.Event, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	items := []events.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		items = append(items, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return items, nil
}

func scanEvent(row pgx.Row) (*events.Event, error) {
	var event events.Event
	if err := row.Scan(
		&event.ID,
		&event.Name,
		&event.Price,
		&event.Schedule,
		&event.Latitude,
		&event.Longitude,
		&event.Address,
		&event.CreatedBy,
		&event.CreatedAt,
	); err != nil {
		return nil, err
	}
	if event.Schedule != nil {
		utc := event.Schedule.UTC()
		event.Schedule = &utc
	}
	event.CreatedAt = event.CreatedAt.UTC()
	return &event, nil
}
