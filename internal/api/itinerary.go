package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tripcraft/tripcraft/internal/domain"
	"github.com/tripcraft/tripcraft/internal/identity"
)

type createItineraryRequest struct {
	Destination string            `json:"destination"`
	Interests   string            `json:"interests,omitempty"`
	Dates       string            `json:"dates,omitempty"`
	Content     *domain.Itinerary `json:"content,omitempty"`
	UserID      string            `json:"user_id,omitempty"`
}

// CreateItinerary inserts a new itinerary. When no document content is
// given, an empty one seeded with the destination is stored.
func (h *Handler) CreateItinerary(w http.ResponseWriter, r *http.Request) {
	var req createItineraryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Destination == "" && req.Content == nil {
		Error(w, http.StatusBadRequest, "destination or content is required")
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = identity.UserIDFromContext(r.Context())
	}

	content := req.Content
	if content == nil {
		content = domain.NewItinerary()
		content.Destination = req.Destination
	}
	if req.Destination == "" {
		req.Destination = content.Destination
	}

	now := time.Now()
	rec := &domain.ItineraryRecord{
		ID:          uuid.NewString(),
		UserID:      userID,
		Destination: req.Destination,
		Interests:   req.Interests,
		Dates:       req.Dates,
		Content:     content,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.repo.CreateItinerary(r.Context(), rec); err != nil {
		Error(w, http.StatusInternalServerError, "failed to create itinerary")
		return
	}
	JSON(w, http.StatusCreated, rec)
}

// GetItinerary returns one itinerary by id.
func (h *Handler) GetItinerary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "itineraryID")
	rec, err := h.repo.GetItinerary(r.Context(), id)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load itinerary")
		return
	}
	if rec == nil {
		Error(w, http.StatusNotFound, "itinerary not found")
		return
	}
	JSON(w, http.StatusOK, rec)
}

// RegisterRoutes registers itinerary CRUD routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/itineraries", func(r chi.Router) {
		r.Post("/", h.CreateItinerary)
		r.Get("/{itineraryID}", h.GetItinerary)
	})
}
