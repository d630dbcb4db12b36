package parser

import (
	"context"
	"regexp"
	"strings"

	"github.com/tripcraft/tripcraft/internal/domain"
	"github.com/tripcraft/tripcraft/internal/edit"
)

// Heuristic is a deterministic keyword parser. It is the terminal fallback
// oracle: always available, never errors, and deliberately conservative
// about confidence so its guesses route to confirmation or clarification
// rather than auto-apply.
type Heuristic struct{}

// NewHeuristic creates the keyword parser.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

var (
	dayRef       = regexp.MustCompile(`(?i)\bday\s*(\d+)\b`)
	timeSlotRef  = regexp.MustCompile(`(?i)\b(morning|afternoon|evening)\b`)
	amountRef    = regexp.MustCompile(`[$€£]?\s*\d[\d,]*(?:\.\d+)?`)
	addPOIRef    = regexp.MustCompile(`(?i)\b(?:add|include|insert|schedule)\s+(?:the\s+)?(.+?)(?:\s+(?:to|on|for)\s+day\s*\d+|\s+in\s+the\s+(?:morning|afternoon|evening)|$)`)
	removePOIRef = regexp.MustCompile(`(?i)\b(?:remove|delete|cancel|skip)\s+(?:the\s+)?(.+?)(?:\s+(?:from|on)\s+day\s*\d+|$)`)
	hotelNameRef = regexp.MustCompile(`(?i)\b(?:hotel|accommodation)\s+to\s+(.+)$`)
)

var confirmPhrases = map[string]string{
	"yes": "confirm", "confirm": "confirm", "ok": "confirm", "sure": "confirm", "do it": "confirm",
	"no": "cancel", "cancel": "cancel", "never mind": "cancel",
}

// Parse classifies the message by keyword buckets and extracts what entities
// it can with regular expressions.
func (h *Heuristic) Parse(_ context.Context, message string, _ *domain.ItineraryRecord) (*domain.ParsedIntent, error) {
	lower := strings.ToLower(strings.TrimSpace(message))

	if intent, ok := confirmPhrases[lower]; ok {
		return h.result(message, intent, map[string]any{}), nil
	}

	intent := h.classify(lower)
	if intent == "clarify" {
		return &domain.ParsedIntent{
			Intent:       "clarify",
			Entities:     map[string]any{},
			Command:      edit.Build("clarify", nil),
			Confidence:   0.2,
			HumanPreview: "I need more information to understand your request",
		}, nil
	}

	return h.result(message, intent, h.extractEntities(message, intent)), nil
}

func (h *Heuristic) classify(lower string) string {
	switch {
	case containsAny(lower, "add", "include", "insert", "schedule"):
		return "add_activity"
	case containsAny(lower, "remove", "delete", "cancel", "skip"):
		return "remove_activity"
	case containsAny(lower, "move", "shift", "reschedule"):
		return "move_activity"
	case containsAny(lower, "hotel", "accommodation"):
		return "change_hotel"
	case containsAny(lower, "budget", "cost"):
		return "update_cost"
	}
	return "clarify"
}

func (h *Heuristic) extractEntities(message, intent string) map[string]any {
	entities := map[string]any{}

	if m := dayRef.FindStringSubmatch(message); m != nil {
		entities["day"] = m[1]
	}
	if m := timeSlotRef.FindStringSubmatch(message); m != nil {
		entities["time_slot"] = strings.ToLower(m[1])
	}

	switch intent {
	case "add_activity":
		if m := addPOIRef.FindStringSubmatch(message); m != nil {
			entities["poi"] = strings.TrimSpace(m[1])
		}
	case "remove_activity", "move_activity":
		if m := removePOIRef.FindStringSubmatch(message); m != nil {
			entities["poi"] = strings.TrimSpace(m[1])
		}
	case "change_hotel":
		if m := hotelNameRef.FindStringSubmatch(message); m != nil {
			entities["hotel_name"] = strings.TrimSpace(m[1])
		}
	case "update_cost":
		if m := amountRef.FindString(message); m != "" {
			entities["amount"] = strings.TrimSpace(m)
		}
	}

	return entities
}

func (h *Heuristic) result(message, intent string, entities map[string]any) *domain.ParsedIntent {
	return &domain.ParsedIntent{
		Intent:       intent,
		Entities:     entities,
		Command:      edit.Build(intent, entities),
		Confidence:   estimateConfidence(message, intent, entities),
		HumanPreview: edit.Preview(intent, entities),
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
