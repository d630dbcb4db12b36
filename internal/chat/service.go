// Package chat orchestrates the conversational editing flow: parsing user
// messages, routing them by confidence, applying confirmed commands, and
// undoing recorded edits.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tripcraft/tripcraft/internal/domain"
	"github.com/tripcraft/tripcraft/internal/edit"
	"github.com/tripcraft/tripcraft/internal/parser"
	"github.com/tripcraft/tripcraft/internal/store"
)

// ErrItineraryNotFound is returned when the addressed itinerary is absent.
var ErrItineraryNotFound = errors.New("itinerary not found")

// EventPublisher pushes edit events to live subscribers. A nil publisher is
// allowed; events are then dropped.
type EventPublisher interface {
	Publish(itineraryID string, event any)
}

// EditEvent is broadcast to live subscribers after an apply or undo.
type EditEvent struct {
	Type        string     `json:"type"`
	ItineraryID string     `json:"itinerary_id"`
	ChangeID    string     `json:"change_id"`
	Diff        edit.Delta `json:"diff,omitempty"`
}

// Service implements the message -> suggestion -> apply/undo flow. Writes to
// one itinerary are serialized with a per-itinerary mutex: the design has a
// read-modify-write window between loading the before snapshot and
// persisting the after snapshot, and concurrent editors on the same
// itinerary would race through it otherwise.
type Service struct {
	repo    store.Repository
	parser  parser.IntentParser
	applier *edit.Applier
	ledger  *edit.Ledger
	events  EventPublisher
	logger  *slog.Logger

	locks sync.Map // itinerary id -> *sync.Mutex
	now   func() time.Time
}

// NewService wires the orchestration service.
func NewService(repo store.Repository, intents parser.IntentParser, applier *edit.Applier, ledger *edit.Ledger, events EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		parser:  intents,
		applier: applier,
		ledger:  ledger,
		events:  events,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Service) lock(itineraryID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(itineraryID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// MessageResult is the outcome of parsing one user message.
type MessageResult struct {
	Suggestions        []domain.ParsedIntent `json:"suggestions"`
	NeedsConfirmation  bool                  `json:"needs_confirmation"`
	NeedsClarification bool                  `json:"needs_clarification"`
	SessionID          string                `json:"session_id"`
}

// ProcessMessage parses a free-text request against the itinerary, routes it
// by confidence, and appends the exchange to the active chat session.
func (s *Service) ProcessMessage(ctx context.Context, itineraryID, message, userID string) (*MessageResult, error) {
	rec, err := s.repo.GetItinerary(ctx, itineraryID)
	if err != nil {
		return nil, fmt.Errorf("load itinerary %s: %w", itineraryID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrItineraryNotFound, itineraryID)
	}

	parsed, err := s.parser.Parse(ctx, message, rec)
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	decision := edit.Route(parsed.Confidence, parsed.Intent)
	s.logger.Info("message parsed",
		"itinerary_id", itineraryID,
		"intent", parsed.Intent,
		"confidence", parsed.Confidence,
		"decision", decision)

	sessionID, err := s.appendToSession(ctx, itineraryID, userID, message, parsed)
	if err != nil {
		// A transcript failure should not eat the suggestion; the parse
		// already succeeded.
		s.logger.Error("failed to persist chat transcript", "itinerary_id", itineraryID, "error", err)
	}

	return &MessageResult{
		Suggestions:        []domain.ParsedIntent{*parsed},
		NeedsConfirmation:  decision == edit.DecisionConfirm,
		NeedsClarification: decision == edit.DecisionClarify,
		SessionID:          sessionID,
	}, nil
}

func (s *Service) appendToSession(ctx context.Context, itineraryID, userID, message string, parsed *domain.ParsedIntent) (string, error) {
	session, err := s.repo.LatestChatSession(ctx, itineraryID)
	if err != nil {
		return "", fmt.Errorf("load chat session: %w", err)
	}
	if session == nil {
		session = &domain.ChatSession{
			ID:          uuid.NewString(),
			ItineraryID: itineraryID,
			UserID:      userID,
			CreatedAt:   s.now(),
		}
	}

	session.Append(domain.ChatMessage{
		Role:      "user",
		Content:   message,
		Timestamp: s.now(),
		Parsed:    parsed,
	})

	if err := s.repo.PutChatSession(ctx, session); err != nil {
		return session.ID, err
	}
	return session.ID, nil
}

// ApplyResult is the outcome of applying one edit command.
type ApplyResult struct {
	ChangeID         string            `json:"change_id"`
	Diff             edit.Delta        `json:"diff"`
	UpdatedItinerary *domain.Itinerary `json:"updated_itinerary"`
}

// ApplyEdit runs a command against the itinerary, persists the result, and
// records the change in the ledger. The whole load-apply-persist-record
// sequence holds the itinerary's write lock.
func (s *Service) ApplyEdit(ctx context.Context, itineraryID string, cmd domain.EditCommand, userID string) (*ApplyResult, error) {
	mu := s.lock(itineraryID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.repo.GetItinerary(ctx, itineraryID)
	if err != nil {
		return nil, fmt.Errorf("load itinerary %s: %w", itineraryID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrItineraryNotFound, itineraryID)
	}

	before := rec.Content
	updated := s.applier.Apply(before, cmd)

	rec.Content = updated
	rec.UpdatedAt = s.now()
	if err := s.repo.PutItinerary(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist itinerary %s: %w", itineraryID, err)
	}

	changeID, err := s.ledger.Record(ctx, edit.RecordParams{
		ItineraryID: itineraryID,
		UserID:      userID,
		Intent:      string(cmd.Action),
		Command:     cmd,
		Before:      before,
		After:       updated,
		Confidence:  1.0, // a directly applied command is a certainty
	})
	if err != nil {
		return nil, err
	}

	delta := edit.Diff(before, updated)
	s.publish(itineraryID, EditEvent{
		Type:        "edit_applied",
		ItineraryID: itineraryID,
		ChangeID:    changeID,
		Diff:        delta,
	})

	return &ApplyResult{
		ChangeID:         changeID,
		Diff:             delta,
		UpdatedItinerary: updated,
	}, nil
}

// UndoResult is the outcome of reverting one recorded edit.
type UndoResult struct {
	RevertedItinerary *domain.Itinerary `json:"reverted_itinerary"`
}

// UndoEdit flips the ledger entry to reverted, then restores its before
// snapshot verbatim as the itinerary's content. The status flip happens
// first so a racing second undo is rejected before any document write.
func (s *Service) UndoEdit(ctx context.Context, changeID, itineraryID string) (*UndoResult, error) {
	mu := s.lock(itineraryID)
	mu.Lock()
	defer mu.Unlock()

	edited, err := s.ledger.Revert(ctx, changeID)
	if err != nil {
		return nil, err
	}

	rec, err := s.repo.GetItinerary(ctx, itineraryID)
	if err != nil {
		return nil, fmt.Errorf("load itinerary %s: %w", itineraryID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrItineraryNotFound, itineraryID)
	}

	restored := edited.BeforeSnapshot.Clone()
	rec.Content = restored
	rec.UpdatedAt = s.now()
	if err := s.repo.PutItinerary(ctx, rec); err != nil {
		return nil, fmt.Errorf("restore itinerary %s: %w", itineraryID, err)
	}

	s.publish(itineraryID, EditEvent{
		Type:        "edit_reverted",
		ItineraryID: itineraryID,
		ChangeID:    changeID,
	})

	return &UndoResult{RevertedItinerary: restored}, nil
}

// History returns the most recent ledger entries for an itinerary.
func (s *Service) History(ctx context.Context, itineraryID string, limit int) ([]*domain.EditRecord, error) {
	records, err := s.repo.ListEditRecords(ctx, itineraryID, limit)
	if err != nil {
		return nil, fmt.Errorf("list edits for %s: %w", itineraryID, err)
	}
	return records, nil
}

func (s *Service) publish(itineraryID string, event EditEvent) {
	if s.events == nil {
		return
	}
	s.events.Publish(itineraryID, event)
}
