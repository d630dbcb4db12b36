package parser

import "strings"

// intentKeywords lists surface cues that corroborate each intent. A parse
// whose intent agrees with a cue found in the raw message earns a bonus.
var intentKeywords = map[string][]string{
	"add_activity":    {"add", "include", "insert", "schedule"},
	"remove_activity": {"remove", "delete", "cancel", "skip"},
	"change_time":     {"change time", "shift", "reschedule", "move to"},
	"change_hotel":    {"change hotel", "switch hotel", "book"},
	"update_cost":     {"budget", "cost", "increase", "decrease"},
}

// estimateConfidence scores how certain a parse is: a 0.5 base, +0.1 per
// extracted entity capped at +0.3, +0.15 when the message contains a keyword
// matching the parsed intent, 0.95 for confirm/cancel, capped at 0.99.
func estimateConfidence(message, intent string, entities map[string]any) float64 {
	confidence := 0.5

	if intent == "confirm" || intent == "cancel" {
		confidence = 0.95
	}

	filled := 0
	for _, v := range entities {
		if v != nil && v != "" {
			filled++
		}
	}
	bonus := float64(filled) * 0.1
	if bonus > 0.3 {
		bonus = 0.3
	}
	confidence += bonus

	lower := strings.ToLower(message)
	for _, kw := range intentKeywords[intent] {
		if strings.Contains(lower, kw) {
			confidence += 0.15
			break
		}
	}

	if confidence > 0.99 {
		confidence = 0.99
	}
	return confidence
}
