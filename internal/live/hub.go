// Package live streams applied and reverted edit events to websocket
// subscribers so open chat widgets see itinerary changes without polling.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

// subscriberBuffer bounds the per-connection event queue. A subscriber that
// falls this far behind starts dropping events rather than stalling the
// publisher.
const subscriberBuffer = 16

type subscriber struct {
	events chan []byte
}

// Hub tracks websocket subscribers per itinerary and fans out edit events.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}

	allowedOrigin string
	isDev         bool
}

// NewHub creates an empty hub.
func NewHub(allowedOrigin string, isDev bool) *Hub {
	return &Hub{
		subs:          make(map[string]map[*subscriber]struct{}),
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// Publish broadcasts an event to every subscriber of the itinerary. Slow
// subscribers lose events instead of blocking the caller.
func (h *Hub) Publish(itineraryID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to encode live event", "itinerary_id", itineraryID, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[itineraryID] {
		select {
		case sub.events <- data:
		default:
			slog.Debug("dropping live event for slow subscriber", "itinerary_id", itineraryID)
		}
	}
}

// SubscriberCount reports active subscribers for an itinerary.
func (h *Hub) SubscriberCount(itineraryID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[itineraryID])
}

func (h *Hub) register(itineraryID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[itineraryID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[itineraryID] = set
	}
	set[sub] = struct{}{}
}

func (h *Hub) unregister(itineraryID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[itineraryID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, itineraryID)
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("websocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// ServeHTTP upgrades the connection and streams edit events for the
// itinerary named in the URL until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	itineraryID := chi.URLParam(r, "itineraryID")
	if itineraryID == "" {
		http.Error(w, "itinerary id required", http.StatusBadRequest)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("failed to accept websocket", "itinerary_id", itineraryID, "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("failed to close websocket", "error", closeErr)
		}
	}()

	sub := &subscriber{events: make(chan []byte, subscriberBuffer)}
	h.register(itineraryID, sub)
	defer h.unregister(itineraryID, sub)

	slog.Info("live subscriber connected", "itinerary_id", itineraryID, "ip", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Read loop: drains client frames so pings are answered and a close is
	// noticed promptly.
	go func() {
		defer cancel()
		for {
			_, _, err := ws.Read(ctx)
			if err != nil {
				if websocket.CloseStatus(err) != -1 {
					slog.Debug("websocket closed by client", "itinerary_id", itineraryID)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-sub.events:
			if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
				slog.Debug("websocket write error", "itinerary_id", itineraryID, "error", err)
				return
			}
		}
	}
}
