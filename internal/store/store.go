// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tripcraft/tripcraft/internal/domain"
)

// ErrStatusConflict is returned by UpdateEditStatus when no row was updated,
// which happens when two reverts race on the same change id.
var ErrStatusConflict = errors.New("edit status conflict")

// Repository defines the interface for persisting itineraries, edit records,
// and chat sessions. Lookups return (nil, nil) when the row is absent.
type Repository interface {
	// CreateItinerary inserts a new itinerary row.
	CreateItinerary(ctx context.Context, rec *domain.ItineraryRecord) error

	// GetItinerary retrieves an itinerary by id.
	GetItinerary(ctx context.Context, id string) (*domain.ItineraryRecord, error)

	// PutItinerary persists the current document content and metadata for an
	// existing itinerary.
	PutItinerary(ctx context.Context, rec *domain.ItineraryRecord) error

	// PutEditRecord inserts one ledger entry.
	PutEditRecord(ctx context.Context, rec *domain.EditRecord) error

	// GetEditRecord retrieves a ledger entry by change id.
	GetEditRecord(ctx context.Context, changeID string) (*domain.EditRecord, error)

	// UpdateEditStatus flips a ledger entry's status. The update is
	// conditional on the stored status differing from the new one.
	UpdateEditStatus(ctx context.Context, changeID string, status domain.EditStatus, revertedAt time.Time) error

	// ListEditRecords returns the most recent ledger entries for an
	// itinerary, newest first.
	ListEditRecords(ctx context.Context, itineraryID string, limit int) ([]*domain.EditRecord, error)

	// LatestChatSession returns the most recently created session for an
	// itinerary.
	LatestChatSession(ctx context.Context, itineraryID string) (*domain.ChatSession, error)

	// PutChatSession creates or updates a chat session transcript.
	PutChatSession(ctx context.Context, session *domain.ChatSession) error

	// CleanupStaleSessions removes chat sessions idle longer than ttl.
	CleanupStaleSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
