// Package fx supplies USD spot quotes for result-currency conversion.
// Sources are layered: a JSON rate API, an HTML quote-board fallback,
// a Redis cache in front of both, and an optional websocket feed that
// keeps the cache warm. Every source implements contracts.FxProvider.
package fx

import (
	"context"
	"fmt"
	"strings"

	"github.com/wonny/atlas/internal/contracts"
	"github.com/wonny/atlas/pkg/config"
	"github.com/wonny/atlas/pkg/httputil"
	"github.com/wonny/atlas/pkg/logger"
	"github.com/wonny/atlas/pkg/redis"
)

// New assembles the provider chain from configuration: JSON API first,
// quote board as fallback when configured, wrapped in the Redis cache
// when one is available.
// ⭐ SSOT: 환율 공급자 체인 조립은 여기서만
func New(cfg *config.Config, httpClient *httputil.Client, redisClient *redis.Client, log *logger.Logger) contracts.FxProvider {
	var limiter *redis.RateLimiter
	if redisClient != nil && redisClient.Enabled() {
		limiter = redis.NewRateLimiter(redisClient, "atlas")
	}

	sources := []contracts.FxProvider{
		withLimit(NewClient(cfg.FX.BaseURL, httpClient, log), limiter, redis.FXQuoteRateLimit),
	}
	if cfg.FX.BoardURL != "" {
		sources = append(sources, withLimit(NewScraper(cfg.FX.BoardURL, httpClient, log), limiter, redis.FXBoardRateLimit))
	}

	var provider contracts.FxProvider = NewFallback(log, sources...)
	if redisClient != nil && redisClient.Enabled() {
		provider = NewCached(provider, redis.NewCache(redisClient, "atlas"), cfg.FX.CacheTTL, log)
	}
	return provider
}

// limited applies the shared Redis rate limit before hitting a source.
// Instances share the window, so concurrent workers and the API server
// stay under the upstream's budget together.
type limited struct {
	inner   contracts.FxProvider
	limiter *redis.RateLimiter
	cfg     redis.RateLimitConfig
}

func withLimit(inner contracts.FxProvider, limiter *redis.RateLimiter, cfg redis.RateLimitConfig) contracts.FxProvider {
	if limiter == nil {
		return inner
	}
	return &limited{inner: inner, limiter: limiter, cfg: cfg}
}

// Quote waits for a rate limit slot and delegates to the source
func (l *limited) Quote(ctx context.Context, ccy string) (float64, error) {
	if err := l.limiter.Wait(ctx, l.cfg); err != nil {
		return 0, fmt.Errorf("fx rate limit: %w", err)
	}
	return l.inner.Quote(ctx, ccy)
}

// Fallback tries each source in order and returns the first quote
type Fallback struct {
	sources []contracts.FxProvider
	logger  *logger.Logger
}

// NewFallback creates a provider chain over the given sources
func NewFallback(log *logger.Logger, sources ...contracts.FxProvider) *Fallback {
	return &Fallback{sources: sources, logger: log}
}

// Quote returns the first successful quote from the chain
func (f *Fallback) Quote(ctx context.Context, ccy string) (float64, error) {
	ccy = strings.ToUpper(ccy)
	if ccy == "USD" {
		return 1.0, nil
	}
	if len(f.sources) == 0 {
		return 0, fmt.Errorf("no fx sources configured")
	}

	var lastErr error
	for i, src := range f.sources {
		rate, err := src.Quote(ctx, ccy)
		if err == nil {
			return rate, nil
		}
		lastErr = err

		if i < len(f.sources)-1 {
			f.logger.WithError(err).WithField("currency", ccy).Warn("환율 소스 실패, 다음 소스로 전환")
		}
	}
	return 0, fmt.Errorf("all fx sources failed for %s: %w", ccy, lastErr)
}
