package problem

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

const contentType = "application/problem+json"

const typeBase = "https://witw.events/problems/"

// Problem type URIs.
const (
	TypeValidation  = typeBase + "validation-error"
	TypeForbidden   = typeBase + "forbidden"
	TypeConflict    = typeBase + "conflict"
	TypeNotFound    = typeBase + "not-found"
	TypeInvalidJSON = typeBase + "invalid-json"
	TypeTooLarge    = typeBase + "payload-too-large"
	TypeRateLimited = typeBase + "rate-limited"
	TypeServerError = typeBase + "server-error"
)

type ProblemDetails struct {
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Status   int            `json:"status"`
	Detail   string         `json:"detail,omitempty"`
	Instance string         `json:"instance,omitempty"`
	Errors   map[string]any `json:"errors,omitempty"`
}

type Option func(*ProblemDetails)

func WithDetail(detail string) Option {
	return func(p *ProblemDetails) {
		p.Detail = detail
	}
}

// WithFieldError attaches a single field-level message.
func WithFieldError(field, message string) Option {
	return func(p *ProblemDetails) {
		if p.Errors == nil {
			p.Errors = make(map[string]any)
		}
		p.Errors[field] = message
	}
}

// Write renders a problem document. The error text becomes the detail only in
// development and test environments; elsewhere the status text is used.
// Errors are logged through the request logger: 5xx at error, 4xx at warn.
func Write(w http.ResponseWriter, r *http.Request, status int, typ, title string, err error, env string, opts ...Option) {
	p := ProblemDetails{
		Type:   typ,
		Title:  title,
		Status: status,
	}
	for _, opt := range opts {
		opt(&p)
	}

	if p.Detail == "" && err != nil {
		if env == "development" || env == "test" {
			p.Detail = err.Error()
		} else {
			p.Detail = http.StatusText(status)
		}
	}
	if p.Instance == "" && r != nil {
		p.Instance = r.URL.Path
	}

	if err != nil && r != nil {
		logger := zerolog.Ctx(r.Context())
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = logger.Error()
		case status >= 400:
			ev = logger.Warn()
		}
		if ev != nil {
			ev.Err(err).
				Int("status", status).
				Str("type", typ).
				Str("path", r.URL.Path).
				Str("method", r.Method).
				Msg(title)
		}
	}

	WriteProblem(w, p)
}

func WriteProblem(w http.ResponseWriter, p ProblemDetails) {
	payload, err := json.Marshal(p)
	w.Header().Set("Content-Type", contentType)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"about:blank","title":"Internal Server Error","status":500}`))
		return
	}
	w.WriteHeader(p.Status)
	_, _ = w.Write(payload)
}

// Forbidden writes the generic 403 used for every authentication failure so
// callers cannot tell why access was refused.
func Forbidden(w http.ResponseWriter, r *http.Request) {
	WriteProblem(w, ProblemDetails{
		Type:     TypeForbidden,
		Title:    "Forbidden",
		Status:   http.StatusForbidden,
		Detail:   "Access denied",
		Instance: r.URL.Path,
	})
}
