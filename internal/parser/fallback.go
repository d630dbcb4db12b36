package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tripcraft/tripcraft/internal/domain"
)

// Fallback tries each parser in order with a bounded per-attempt timeout.
// At most one oracle call is in flight at a time; there are no retries
// within an attempt. Unavailability only surfaces after every parser in the
// chain has failed.
type Fallback struct {
	parsers        []IntentParser
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// NewFallback builds a fallback chain. A zero timeout disables the
// per-attempt deadline.
func NewFallback(logger *slog.Logger, attemptTimeout time.Duration, parsers ...IntentParser) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{
		parsers:        parsers,
		attemptTimeout: attemptTimeout,
		logger:         logger,
	}
}

// Parse delegates to the first parser that answers.
func (f *Fallback) Parse(ctx context.Context, message string, itinerary *domain.ItineraryRecord) (*domain.ParsedIntent, error) {
	var errs []error
	for i, p := range f.parsers {
		attemptCtx := ctx
		cancel := func() {}
		if f.attemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, f.attemptTimeout)
		}

		parsed, err := p.Parse(attemptCtx, message, itinerary)
		cancel()
		if err == nil {
			return parsed, nil
		}
		errs = append(errs, err)
		f.logger.Warn("intent parser failed, trying next", "position", i, "error", err)

		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, errors.Join(errs...))
}
