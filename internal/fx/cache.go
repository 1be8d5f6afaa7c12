package fx

import (
	"context"
	"strings"
	"time"

	"github.com/wonny/atlas/internal/contracts"
	"github.com/wonny/atlas/pkg/logger"
	"github.com/wonny/atlas/pkg/redis"
)

// Cached wraps a provider with the shared Redis quote cache. Cache
// failures degrade to the underlying source, never to an error.
type Cached struct {
	source contracts.FxProvider
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewCached creates a caching provider with the given TTL
func NewCached(source contracts.FxProvider, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *Cached {
	if ttl <= 0 {
		ttl = redis.TTLMedium
	}
	return &Cached{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: log,
	}
}

// Quote returns the cached USD rate, filling the cache on a miss
func (c *Cached) Quote(ctx context.Context, ccy string) (float64, error) {
	ccy = strings.ToUpper(ccy)
	if ccy == "USD" {
		return 1.0, nil
	}

	key := redis.FxQuoteKey(ccy)

	var rate float64
	if found, err := c.cache.Get(ctx, key, &rate); err == nil && found && rate > 0 {
		return rate, nil
	}

	rate, err := c.source.Quote(ctx, ccy)
	if err != nil {
		return 0, err
	}

	if err := c.cache.Set(ctx, key, rate, c.ttl); err != nil {
		c.logger.WithError(err).WithField("currency", ccy).Warn("환율 캐시 저장 실패")
	}
	return rate, nil
}
