package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/tripcraft/tripcraft/internal/api"
	"github.com/tripcraft/tripcraft/internal/domain"
	"github.com/tripcraft/tripcraft/internal/edit"
	"github.com/tripcraft/tripcraft/internal/identity"
	"github.com/tripcraft/tripcraft/internal/parser"
)

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

// visitorLimiter rate-limits message parsing per user. The key is the user
// id, not the session, so rotating sessions does not bypass throttling.
type visitorLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitorEntry
	rps      rate.Limit
	burst    int
}

type visitorEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newVisitorLimiter(rps float64, burst int) *visitorLimiter {
	l := &visitorLimiter{
		visitors: make(map[string]*visitorEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
	go l.evictLoop()
	return l
}

func (l *visitorLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.visitors[key]
	if !ok {
		entry = &visitorEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

func (l *visitorLimiter) evictLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		l.mu.Lock()
		for key, entry := range l.visitors {
			if entry.lastSeen.Before(cutoff) {
				delete(l.visitors, key)
			}
		}
		l.mu.Unlock()
	}
}

// Handler exposes the chat editing flow over HTTP.
type Handler struct {
	svc     *Service
	limiter *visitorLimiter
}

// NewHandler creates a chat handler with per-user rate limiting on message
// parsing.
func NewHandler(svc *Service, rps float64, burst int) *Handler {
	return &Handler{
		svc:     svc,
		limiter: newVisitorLimiter(rps, burst),
	}
}

// RegisterRoutes registers chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/message", h.Message)
		r.Post("/apply-edit", h.ApplyEdit)
		r.Post("/undo", h.Undo)
		r.Get("/history/{itineraryID}", h.History)
	})
}

type messageRequest struct {
	ItineraryID string `json:"itinerary_id"`
	Message     string `json:"message"`
	UserID      string `json:"user_id,omitempty"`
}

// Message parses one user message and returns edit suggestions with routing
// flags.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ItineraryID == "" || req.Message == "" {
		api.Error(w, http.StatusBadRequest, "itinerary_id and message are required")
		return
	}

	userID := h.resolveUserID(r, req.UserID)
	if !h.limiter.allow(userID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	result, err := h.svc.ProcessMessage(r.Context(), req.ItineraryID, req.Message, userID)
	if err != nil {
		h.writeError(w, err, "process message")
		return
	}
	api.JSON(w, http.StatusOK, result)
}

type applyEditRequest struct {
	ItineraryID string             `json:"itinerary_id"`
	EditCommand domain.EditCommand `json:"edit_command"`
	UserID      string             `json:"user_id,omitempty"`
}

type applyEditResponse struct {
	Success          bool              `json:"success"`
	ChangeID         string            `json:"change_id"`
	Diff             edit.Delta        `json:"diff"`
	UpdatedItinerary *domain.Itinerary `json:"updated_itinerary"`
	Message          string            `json:"message"`
}

// ApplyEdit applies a structured edit command to the itinerary.
func (h *Handler) ApplyEdit(w http.ResponseWriter, r *http.Request) {
	var req applyEditRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ItineraryID == "" {
		api.Error(w, http.StatusBadRequest, "itinerary_id is required")
		return
	}

	result, err := h.svc.ApplyEdit(r.Context(), req.ItineraryID, req.EditCommand, h.resolveUserID(r, req.UserID))
	if err != nil {
		h.writeError(w, err, "apply edit")
		return
	}
	api.JSON(w, http.StatusOK, applyEditResponse{
		Success:          true,
		ChangeID:         result.ChangeID,
		Diff:             result.Diff,
		UpdatedItinerary: result.UpdatedItinerary,
		Message:          "Edit applied successfully",
	})
}

type undoRequest struct {
	ChangeID    string `json:"change_id"`
	ItineraryID string `json:"itinerary_id"`
}

type undoResponse struct {
	Success           bool              `json:"success"`
	RevertedItinerary *domain.Itinerary `json:"reverted_itinerary"`
	Message           string            `json:"message"`
}

// Undo reverts a previously applied edit.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	var req undoRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ChangeID == "" || req.ItineraryID == "" {
		api.Error(w, http.StatusBadRequest, "change_id and itinerary_id are required")
		return
	}

	result, err := h.svc.UndoEdit(r.Context(), req.ChangeID, req.ItineraryID)
	if err != nil {
		h.writeError(w, err, "undo edit")
		return
	}
	api.JSON(w, http.StatusOK, undoResponse{
		Success:           true,
		RevertedItinerary: result.RevertedItinerary,
		Message:           "Edit reverted successfully",
	})
}

// History lists recent edits for an itinerary, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	itineraryID := chi.URLParam(r, "itineraryID")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	records, err := h.svc.History(r.Context(), itineraryID, limit)
	if err != nil {
		h.writeError(w, err, "list history")
		return
	}
	if records == nil {
		records = []*domain.EditRecord{}
	}
	api.JSON(w, http.StatusOK, map[string]any{"edits": records})
}

func (h *Handler) resolveUserID(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if id := identity.UserIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.RemoteAddr
}

// writeError maps domain failures to HTTP statuses. Every failure still
// produces a structured JSON body.
func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrItineraryNotFound):
		api.Error(w, http.StatusNotFound, "itinerary not found")
	case errors.Is(err, edit.ErrChangeNotFound):
		api.Error(w, http.StatusNotFound, "edit not found")
	case errors.Is(err, edit.ErrAlreadyReverted):
		api.Error(w, http.StatusConflict, "edit already reverted")
	case errors.Is(err, parser.ErrUnavailable):
		slog.Error("intent oracle unavailable", "op", op, "error", err)
		api.Error(w, http.StatusServiceUnavailable, "intent parsing is temporarily unavailable")
	default:
		slog.Error("chat request failed", "op", op, "error", err)
		api.Error(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
