package edit

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tripcraft/tripcraft/internal/domain"
)

var (
	// ErrChangeNotFound is returned when a change id has no ledger entry.
	ErrChangeNotFound = errors.New("change not found")
	// ErrAlreadyReverted is returned when a change has already been undone.
	// Double-revert is rejected, not treated as a no-op.
	ErrAlreadyReverted = errors.New("edit already reverted")
)

// RecordStore persists ledger entries. Get returns (nil, nil) when the
// change id is unknown. UpdateEditStatus must only succeed when the stored
// status differs from the new one, so a lost revert race is detectable.
type RecordStore interface {
	PutEditRecord(ctx context.Context, rec *domain.EditRecord) error
	GetEditRecord(ctx context.Context, changeID string) (*domain.EditRecord, error)
	UpdateEditStatus(ctx context.Context, changeID string, status domain.EditStatus, revertedAt time.Time) error
}

// Ledger records every applied command with its before/after snapshots and
// drives the applied -> reverted status transition for undo.
type Ledger struct {
	records RecordStore
	now     func() time.Time
}

// NewLedger creates a ledger over the given record store.
func NewLedger(records RecordStore) *Ledger {
	return &Ledger{records: records, now: time.Now}
}

// RecordParams carries everything one ledger entry captures about an apply.
type RecordParams struct {
	ItineraryID string
	UserID      string
	Intent      string
	Command     domain.EditCommand
	Before      *domain.Itinerary
	After       *domain.Itinerary
	Confidence  float64
}

// Record writes one ledger entry for a successful apply and returns its
// change id. Snapshots are stored as full deep copies so later mutation of
// the live document cannot corrupt the history.
func (l *Ledger) Record(ctx context.Context, p RecordParams) (string, error) {
	u := uuid.New()
	changeID := "change_" + hex.EncodeToString(u[:])[:8]

	rec := &domain.EditRecord{
		ChangeID:       changeID,
		ItineraryID:    p.ItineraryID,
		UserID:         p.UserID,
		Intent:         p.Intent,
		Command:        p.Command,
		BeforeSnapshot: p.Before.Clone(),
		AfterSnapshot:  p.After.Clone(),
		Confidence:     p.Confidence,
		Status:         domain.EditStatusApplied,
		CreatedAt:      l.now(),
	}
	if err := l.records.PutEditRecord(ctx, rec); err != nil {
		return "", fmt.Errorf("record edit %s: %w", changeID, err)
	}
	return changeID, nil
}

// Find returns the ledger entry for a change id.
func (l *Ledger) Find(ctx context.Context, changeID string) (*domain.EditRecord, error) {
	rec, err := l.records.GetEditRecord(ctx, changeID)
	if err != nil {
		return nil, fmt.Errorf("load edit %s: %w", changeID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrChangeNotFound, changeID)
	}
	return rec, nil
}

// Revert flips a ledger entry to reverted and returns it; the caller
// restores the entry's BeforeSnapshot verbatim. Unknown change ids and
// second reverts fail without touching any state. The entry's snapshots are
// never modified, only its status and reverted timestamp.
func (l *Ledger) Revert(ctx context.Context, changeID string) (*domain.EditRecord, error) {
	rec, err := l.Find(ctx, changeID)
	if err != nil {
		return nil, err
	}
	if rec.Status == domain.EditStatusReverted {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyReverted, changeID)
	}

	revertedAt := l.now()
	if err := l.records.UpdateEditStatus(ctx, changeID, domain.EditStatusReverted, revertedAt); err != nil {
		return nil, fmt.Errorf("mark edit %s reverted: %w", changeID, err)
	}

	rec.Status = domain.EditStatusReverted
	rec.RevertedAt = &revertedAt
	return rec, nil
}
