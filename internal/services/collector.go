package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"traffic-probe-service/internal/domain"
	"traffic-probe-service/internal/platform/metrics"
	"traffic-probe-service/internal/platform/obs"
	"traffic-probe-service/internal/ports"
	"traffic-probe-service/internal/ratelimit"
)

// Annotation attached to a batch served from stale cache.
const staleCacheNote = "Using cached traffic due to live fetch failure"

// CollectorConfig carries the per-deployment acquisition knobs.
type CollectorConfig struct {
	// Service keys rate-limiter state, e.g. "tomtom".
	Service string

	// HasCredential gates the limiter check: sample cycles issue no live
	// calls and must not consume the interval.
	HasCredential bool

	CacheTTL    time.Duration // freshness window for cache reuse, default 300s
	StaleMaxAge time.Duration // stale-tolerant fallback window, default 24h

	MaxAttempts    int           // total attempts incl. the first, default 3
	InitialBackoff time.Duration // doubled between attempts, default 2s
}

func (c CollectorConfig) withDefaults() CollectorConfig {
	if c.CacheTTL == 0 {
		c.CacheTTL = 300 * time.Second
	}
	if c.StaleMaxAge == 0 {
		c.StaleMaxAge = 24 * time.Hour
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = 2 * time.Second
	}
	return c
}

// Collector orchestrates one acquisition cycle over the probe set.
//
// It coordinates:
//   - Aggregate and per-probe cache reuse
//   - One rate-limiter check per batch of surviving live calls
//   - The segment provider, with whole-batch failure on any probe failure
//   - Retry with backoff and stale-cache degradation (CollectWithFallback)
//
// The collector holds no mutable state of its own; sharing across callers is
// mediated by the injected cache and limiter instances.
type Collector struct {
	probes   []domain.ProbePoint
	provider ports.SegmentProvider
	cache    ports.Cache
	limiter  *ratelimit.Limiter
	cfg      CollectorConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewCollector(
	probes []domain.ProbePoint,
	provider ports.SegmentProvider,
	cache ports.Cache,
	limiter *ratelimit.Limiter,
	cfg CollectorConfig,
) *Collector {
	return &Collector{
		probes:   probes,
		provider: provider,
		cache:    cache,
		limiter:  limiter,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Cache keys carry the endpoint style and version so a provider upgrade
// cannot serve entries written by an older schema.
func probeCacheKey(mode domain.Mode, p domain.ProbePoint) string {
	return fmt.Sprintf("tt_v4_abs10_%s_%s_%.3f_%.3f", mode, p.ID, p.Lat, p.Lon)
}

func aggregateCacheKey(mode domain.Mode) string {
	return fmt.Sprintf("tomtom_batch_v4_abs10_%s", mode)
}

// cacheRead treats storage failures as misses: caching is an optimization,
// never a reason to abort an acquisition cycle.
func (c *Collector) cacheRead(ctx context.Context, key string, maxAge time.Duration, tier string) ([]byte, bool) {
	payload, ok, err := c.cache.Read(ctx, key, maxAge)
	if err != nil {
		log.Printf("cache read failed: key=%s err=%v", key, err)
		return nil, false
	}
	if ok {
		metrics.CacheHitsTotal.WithLabelValues(tier).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(tier).Inc()
	}
	return payload, ok
}

func (c *Collector) cacheWrite(ctx context.Context, key string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("cache marshal failed: key=%s err=%v", key, err)
		return
	}
	if err := c.cache.Write(ctx, key, payload); err != nil {
		log.Printf("cache write failed: key=%s err=%v", key, err)
	}
}

// Collect runs one acquisition cycle: cache reuse, a single limiter check for
// the remaining live calls, then one provider call per uncached probe.
// Failure of any single probe fails the whole batch; the downstream model
// needs every configured probe for a physically meaningful computation.
func (c *Collector) Collect(ctx context.Context, mode domain.Mode) (_ *domain.BatchResult, err error) {
	defer obs.Time(ctx, "collector.Collect")(&err)

	start := time.Now()
	defer func() { metrics.CollectDurationSeconds.Observe(time.Since(start).Seconds()) }()

	// Fresh aggregate short-circuits the whole cycle.
	aggKey := aggregateCacheKey(mode)
	if payload, ok := c.cacheRead(ctx, aggKey, c.cfg.CacheTTL, "aggregate"); ok {
		var cached domain.BatchResult
		if err := json.Unmarshal(payload, &cached); err == nil {
			return &cached, nil
		}
		log.Printf("aggregate cache entry undecodable: key=%s", aggKey)
	}

	segments := make([]domain.CanonicalSegment, 0, len(c.probes))
	toFetch := make([]domain.ProbePoint, 0, len(c.probes))

	// Reuse per-probe entries first so partially warm caches only pay for
	// the probes that actually expired.
	for _, p := range c.probes {
		payload, ok := c.cacheRead(ctx, probeCacheKey(mode, p), c.cfg.CacheTTL, "probe")
		if !ok {
			toFetch = append(toFetch, p)
			continue
		}
		var seg domain.CanonicalSegment
		if err := json.Unmarshal(payload, &seg); err != nil {
			log.Printf("probe cache entry undecodable: probe=%s", p.ID)
			toFetch = append(toFetch, p)
			continue
		}
		segments = append(segments, seg)
	}

	// One limiter check per batch, not per probe: the second and third probe
	// of the same refresh must not be throttled by the first.
	if len(toFetch) > 0 && c.cfg.HasCredential {
		allowed, waitSeconds := c.limiter.CanCall(c.cfg.Service)
		if !allowed {
			return nil, &domain.RateLimitedError{Service: c.cfg.Service, WaitSeconds: waitSeconds}
		}
	}

	for _, p := range toFetch {
		seg, err := c.provider.FetchSegment(ctx, p, mode)
		if err != nil {
			return nil, fmt.Errorf("collect probe %q: %w", p.ID, err)
		}
		segments = append(segments, *seg)
		c.cacheWrite(ctx, probeCacheKey(mode, p), seg)
	}

	result := &domain.BatchResult{
		SourceID:         c.provider.SourceID(mode),
		FetchedAt:        c.now().UTC(),
		VehicleCountMode: domain.DeriveVehicleCountMode(segments),
		Segments:         segments,
	}

	c.cacheWrite(ctx, aggKey, result)
	return result, nil
}

// CollectWithFallback wraps Collect with bounded retry and exponential
// backoff. Rate limiting and other terminal failures are not retried. When
// every attempt fails, the most recent aggregate entry inside the stale
// window is served with a degradation annotation; with no cache either, the
// last failure propagates unmodified. The pipeline never fabricates
// plausible-looking telemetry to mask an outage.
func (c *Collector) CollectWithFallback(ctx context.Context, mode domain.Mode) (*domain.BatchResult, error) {
	backoff := c.cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		result, err := c.Collect(ctx, mode)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !domain.Retryable(err) || attempt == c.cfg.MaxAttempts {
			break
		}

		log.Printf("collect attempt %d/%d failed, retrying in %s: %v",
			attempt, c.cfg.MaxAttempts, backoff, err)
		if err := c.sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
		backoff *= 2
	}

	if payload, ok := c.cacheRead(ctx, aggregateCacheKey(mode), c.cfg.StaleMaxAge, "aggregate"); ok {
		var cached domain.BatchResult
		if err := json.Unmarshal(payload, &cached); err == nil {
			log.Printf("serving stale cached batch after live failure: %v", lastErr)
			metrics.DegradedResultsTotal.Inc()
			cached.Errors = append(cached.Errors, staleCacheNote)
			return &cached, nil
		}
	}

	return nil, lastErr
}
