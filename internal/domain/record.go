package domain

import "time"

// EditStatus tracks whether a recorded edit is still in effect.
type EditStatus string

const (
	EditStatusApplied  EditStatus = "applied"
	EditStatusReverted EditStatus = "reverted"
)

// EditRecord is one ledger entry: a command that was applied to an itinerary
// together with full before/after snapshots. The before snapshot is what
// undo restores verbatim, so a revert is exact regardless of any
// non-determinism in the applier (generated ids in particular).
//
// Status transitions applied -> reverted exactly once; the snapshots are
// never modified after the record is written.
type EditRecord struct {
	ChangeID       string      `json:"change_id"`
	ItineraryID    string      `json:"itinerary_id"`
	UserID         string      `json:"user_id,omitempty"`
	Intent         string      `json:"intent"`
	Command        EditCommand `json:"edit_command"`
	BeforeSnapshot *Itinerary  `json:"before_snapshot"`
	AfterSnapshot  *Itinerary  `json:"after_snapshot"`
	Confidence     float64     `json:"confidence"`
	Status         EditStatus  `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	RevertedAt     *time.Time  `json:"reverted_at,omitempty"`
}
