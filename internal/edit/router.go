package edit

// Decision is the routing outcome for a parsed intent.
type Decision string

const (
	// DecisionAutoApply means the edit is unambiguous enough to apply
	// without asking.
	DecisionAutoApply Decision = "auto_apply"
	// DecisionConfirm means the edit should be shown to the user for
	// confirmation before applying.
	DecisionConfirm Decision = "confirm"
	// DecisionClarify means the request was too ambiguous to act on.
	DecisionClarify Decision = "clarify"
)

// Confidence bands. The boundaries are half-open: 0.4 and 0.7 belong to the
// band above them. These values are part of the observable contract and are
// exercised exactly in tests; do not make them configurable per call.
const (
	clarifyBelow = 0.4
	autoApplyAt  = 0.7
)

// Route classifies an oracle confidence into one of three mutually exclusive
// outcomes. A "clarify" intent always routes to clarification regardless of
// confidence.
func Route(confidence float64, intent string) Decision {
	if intent == "clarify" || confidence < clarifyBelow {
		return DecisionClarify
	}
	if confidence < autoApplyAt {
		return DecisionConfirm
	}
	return DecisionAutoApply
}
