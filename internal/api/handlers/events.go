package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/witw-events/server/internal/api/problem"
	"github.com/witw-events/server/internal/audit"
	"github.com/witw-events/server/internal/auth"
	"github.com/witw-events/server/internal/domain/events"
	"github.com/witw-events/server/internal/metrics"
	"github.com/witw-events/server/internal/validation"
)

type EventsHandler struct {
	Service *events.Service
	Audit   *audit.Logger
	Env     string
}

func NewEventsHandler(service *events.Service, auditLogger *audit.Logger, env string) *EventsHandler {
	return &EventsHandler{Service: service, Audit: auditLogger, Env: env}
}

type eventResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Price     float64    `json:"price"`
	Schedule  *time.Time `json:"schedule,omitempty"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Address   string     `json:"address"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
}

type listResponse struct {
	Items []eventResponse `json:"items"`
}

func toResponse(e events.Event) eventResponse {
	return eventResponse{
		ID:        e.ID,
		Name:      e.Name,
		Price:     e.Price,
		Schedule:  e.Schedule,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		Address:   e.Address,
		CreatedBy: e.CreatedBy,
		CreatedAt: e.CreatedAt,
	}
}

func (h *EventsHandler) writeList(w http.ResponseWriter, r *http.Request, items []events.Event, err error) {
	if err != nil {
		writeServerError(w, r, h.Env, err)
		return
	}
	out := make([]eventResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toResponse(item))
	}
	writeJSON(w, http.StatusOK, listResponse{Items: out})
}

// Create handles POST /api/v1/events on behalf of the authenticated principal.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	result, ok := auth.FromContext(r.Context())
	if !ok {
		problem.Forbidden(w, r)
		return
	}

	var input events.EventInput
	if !decodeJSON(w, r, h.Env, &input) {
		return
	}

	created, err := h.Service.Create(r.Context(), input, result.Principal.Username)
	if err != nil {
		var verr validation.Error
		if errors.As(err, &verr) {
			writeValidation(w, r, h.Env, verr)
			return
		}
		writeServerError(w, r, h.Env, err)
		return
	}

	metrics.EventsCreated.Inc()
	h.Audit.LogRequest(r, audit.ActionEvent, result.Principal.Username, created.ID, audit.StatusSuccess, "")
	w.Header().Set("Location", "/api/v1/events/"+created.ID)
	writeJSON(w, http.StatusCreated, toResponse(*created))
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.List(r.Context())
	h.writeList(w, r, items, err)
}

// Search handles GET /api/v1/events/search?name=.
func (h *EventsHandler) Search(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.SearchByName(r.Context(), r.URL.Query().Get("name"))
	h.writeList(w, r, items, err)
}

// Cheap handles GET /api/v1/events/cheap?price=.
func (h *EventsHandler) Cheap(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("price"))
	if raw == "" {
		writeValidation(w, r, h.Env, validation.Error{Field: "price", Message: "is required"})
		return
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		writeValidation(w, r, h.Env, validation.Error{Field: "price", Message: "must be a number"})
		return
	}

	items, err := h.Service.Cheaper(r.Context(), price)
	h.writeList(w, r, items, err)
}

func (h *EventsHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.Upcoming(r.Context())
	h.writeList(w, r, items, err)
}

// Get handles GET /api/v1/events/{id}.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.Service.Get(r.Context(), strings.TrimSpace(r.PathValue("id")))
	if err != nil {
		var verr validation.Error
		switch {
		case errors.As(err, &verr):
			writeValidation(w, r, h.Env, verr)
		case errors.Is(err, events.ErrNotFound):
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, h.Env)
		default:
			writeServerError(w, r, h.Env, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, toResponse(*item))
}
