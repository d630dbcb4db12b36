package domain

// Action identifies the kind of edit a command performs.
type Action string

const (
	ActionAdd     Action = "add"
	ActionRemove  Action = "remove"
	ActionUpdate  Action = "update"
	ActionMove    Action = "move"
	ActionCombine Action = "combine"
	ActionSplit   Action = "split"
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"
	ActionClarify Action = "clarify"
	ActionUnknown Action = "unknown"
)

// Target identifies which part of the itinerary a command addresses.
// TargetNone is used for control-flow commands (confirm/cancel/clarify) and
// unrecognized intents.
type Target string

const (
	TargetActivity  Target = "activity"
	TargetBudget    Target = "budget"
	TargetHotel     Target = "hotel"
	TargetTime      Target = "time"
	TargetTransport Target = "transport"
	TargetDays      Target = "days"
	TargetDay       Target = "day"
	TargetNone      Target = ""
)

// EditCommand is the canonical structured form of a requested change. It is
// immutable once built and is the sole input accepted by the applier; this
// is the contract boundary decoupling parsing from mutation.
//
// Optional numeric fields use pointers so "not supplied" is distinguishable
// from zero: a nil Day means no day reference was extracted, a nil Amount
// means the applier must leave the current value unchanged.
type EditCommand struct {
	Action Action `json:"action"`
	Target Target `json:"target,omitempty"`

	POI        string `json:"poi,omitempty"`
	Day        *int   `json:"day,omitempty"`
	TimeSlot   string `json:"time_slot,omitempty"`
	Duration   string `json:"duration,omitempty"`
	ActivityID string `json:"activity_id,omitempty"`

	FromDay  *int   `json:"from_day,omitempty"`
	ToDay    *int   `json:"to_day,omitempty"`
	FromTime string `json:"from_time,omitempty"`
	ToTime   string `json:"to_time,omitempty"`
	NewTime  string `json:"new_time,omitempty"`

	HotelName     string `json:"hotel_name,omitempty"`
	TransportMode string `json:"transport_mode,omitempty"`

	Amount *float64 `json:"amount,omitempty"`
	Days   []int    `json:"days,omitempty"`
}

// ParsedIntent is the oracle's reading of one user message together with the
// canonical command lowered from it. Produced once per message and kept only
// in the chat transcript.
type ParsedIntent struct {
	Intent       string         `json:"intent"`
	Entities     map[string]any `json:"entities"`
	Command      EditCommand    `json:"edit_command"`
	Confidence   float64        `json:"confidence"`
	HumanPreview string         `json:"human_preview"`
}
