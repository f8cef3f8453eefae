package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/coalops/minesafe/internal/scoring"
	"github.com/coalops/minesafe/internal/validation"
	"github.com/coalops/minesafe/pkg/models"
	"github.com/coalops/minesafe/pkg/repository"
)

const maxEventBody = 64 << 10 // 64 KiB

type EventsHandler struct {
	userRepo  repository.UserRepo
	eventRepo repository.EventRepo
	updater   *scoring.Updater
	validator *validation.Loader
}

func NewEventsHandler(ur repository.UserRepo, er repository.EventRepo, updater *scoring.Updater, validator *validation.Loader) *EventsHandler {
	return &EventsHandler{userRepo: ur, eventRepo: er, updater: updater, validator: validator}
}

type postEventRequest struct {
	Type       string          `json:"type"`
	Metadata   models.Metadata `json:"metadata,omitempty"`
	OccurredAt string          `json:"occurred_at,omitempty"`
}

type postEventResponse struct {
	Success bool  `json:"success"`
	EventID int64 `json:"eventId"`
}

// CreateEvent ingests one engagement event for the authenticated user. The
// event row is written before the snapshot updater runs; an updater failure is
// logged but never rolls the event back.
func (h *EventsHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, _ := callerIdentity(r)
	if userID <= 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	var req postEventRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if !models.ValidEventType(req.Type) {
		http.Error(w, fmt.Sprintf("unsupported event type %q", req.Type), http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	if h.validator != nil {
		if err := h.validator.Validate(ctx, req.Type, body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	occurredAt := time.Now().UTC()
	if req.OccurredAt != "" {
		t, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			http.Error(w, "invalid occurred_at: expected RFC 3339 timestamp", http.StatusBadRequest)
			return
		}
		occurredAt = t.UTC()
	}

	user, err := h.userRepo.GetByID(ctx, userID)
	if err != nil {
		http.Error(w, "failed to load user", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	event := &models.EngagementEvent{
		UserID:     userID,
		Type:       req.Type,
		Metadata:   req.Metadata,
		OccurredAt: occurredAt.UnixMilli(),
	}
	eventID, err := h.eventRepo.CreateEvent(ctx, event)
	if err != nil {
		http.Error(w, "failed to store event", http.StatusInternalServerError)
		return
	}
	event.ID = eventID

	// snapshot scoring is derived, best-effort state; the event log is the
	// source of truth
	if _, err := h.updater.ApplyEvent(ctx, user, event); err != nil {
		logger.Error("apply event to snapshot", "user_id", userID, "event_id", eventID, "err", err)
	}

	writeJSON(w, postEventResponse{Success: true, EventID: eventID}, http.StatusCreated)
}

// ListEvents returns a page of the caller's event log. Supervisory roles may
// list any user's events via user_id.
func (h *EventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	callerID, role := callerIdentity(r)
	if callerID <= 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	userID := callerID
	if s := q.Get("user_id"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v <= 0 {
			http.Error(w, "invalid user_id", http.StatusBadRequest)
			return
		}
		if v != callerID && !models.IsSupervisory(role) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		userID = v
	}

	// pagination: limit and offset params
	limit := 50
	if l := q.Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	offset := 0
	if o := q.Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	ctx := r.Context()

	events, err := h.eventRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		http.Error(w, "failed to list events", http.StatusInternalServerError)
		return
	}
	total, err := h.eventRepo.CountByUser(ctx, userID)
	if err != nil {
		http.Error(w, "failed to count events", http.StatusInternalServerError)
		return
	}

	if events == nil {
		events = []models.EngagementEvent{}
	}

	resp := map[string]any{
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"items":  events,
	}

	writeJSON(w, resp, http.StatusOK)
}
