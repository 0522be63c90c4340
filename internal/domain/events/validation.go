package events

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/witw-events/server/internal/sanitize"
	"github.com/witw-events/server/internal/validation"
)

const maxNameLength = 500

// localScheduleLayouts are accepted in addition to RFC 3339 and are read in the
// service's location.
var localScheduleLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// EventInput is the payload for creating an event.
type EventInput struct {
	Name      string   `json:"name" validate:"required,nocontrol"`
	Price     *float64 `json:"price" validate:"required,gte=0"`
	Schedule  string   `json:"schedule,omitempty"`
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

type validatedInput struct {
	Name      string
	Price     float64
	Schedule  *time.Time
	Latitude  float64
	Longitude float64
}

func validateEventInput(v *validator.Validate, input EventInput, loc *time.Location) (validatedInput, error) {
	if err := validation.Struct(v, input); err != nil {
		return validatedInput{}, err
	}

	name := sanitize.PlainText(input.Name)
	if name == "" {
		return validatedInput{}, validation.Error{Field: "name", Message: "is required"}
	}
	if len([]rune(name)) > maxNameLength {
		return validatedInput{}, validation.Error{Field: "name", Message: "must be at most 500 characters"}
	}

	schedule, err := parseSchedule(input.Schedule, loc)
	if err != nil {
		return validatedInput{}, err
	}

	return validatedInput{
		Name:      name,
		Price:     *input.Price,
		Schedule:  schedule,
		Latitude:  *input.Latitude,
		Longitude: *input.Longitude,
	}, nil
}

func parseSchedule(value string, loc *time.Location) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		utc := parsed.UTC()
		return &utc, nil
	}
	for _, layout := range localScheduleLayouts {
		if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
			utc := parsed.UTC()
			return &utc, nil
		}
	}
	return nil, validation.Error{Field: "schedule", Message: "must be an RFC 3339 timestamp or YYYY-MM-DDTHH:MM[:SS]"}
}
