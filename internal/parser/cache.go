package parser

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/tripcraft/tripcraft/internal/domain"
)

// Cached memoizes parse results per itinerary and message for a short TTL,
// so the confirm round-trip (suggest, user confirms, apply) does not pay for
// a second oracle call. Only successful parses are cached; failures always
// retry the underlying chain.
type Cached struct {
	inner IntentParser
	cache *gocache.Cache
}

// NewCached wraps a parser with a TTL cache.
func NewCached(inner IntentParser, ttl, cleanupInterval time.Duration) *Cached {
	return &Cached{
		inner: inner,
		cache: gocache.New(ttl, cleanupInterval),
	}
}

func cacheKey(itinerary *domain.ItineraryRecord, message string) string {
	id := ""
	if itinerary != nil {
		id = itinerary.ID
	}
	return id + "|" + message
}

// Parse returns the cached result when present, otherwise delegates.
func (c *Cached) Parse(ctx context.Context, message string, itinerary *domain.ItineraryRecord) (*domain.ParsedIntent, error) {
	key := cacheKey(itinerary, message)
	if v, ok := c.cache.Get(key); ok {
		parsed := v.(domain.ParsedIntent)
		return &parsed, nil
	}

	parsed, err := c.inner.Parse(ctx, message, itinerary)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, *parsed, gocache.DefaultExpiration)
	return parsed, nil
}
