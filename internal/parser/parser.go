// Package parser implements the intent-oracle boundary: turning raw user
// text plus itinerary context into a ParsedIntent. Implementations are
// swappable; the rest of the system depends only on this contract.
package parser

import (
	"context"
	"errors"

	"github.com/tripcraft/tripcraft/internal/domain"
)

// ErrUnavailable indicates the oracle could not be reached or did not answer
// within its deadline. Callers surface it as a service condition; it is
// never mapped to a low-confidence parse.
var ErrUnavailable = errors.New("intent parser unavailable")

// IntentParser maps one user message, in the context of the itinerary being
// edited, to a parsed intent with a canonical edit command.
type IntentParser interface {
	Parse(ctx context.Context, message string, itinerary *domain.ItineraryRecord) (*domain.ParsedIntent, error)
}
