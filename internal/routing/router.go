package routing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sarahcodeswell/sarahs-library-sub002/internal/cache"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/embedding"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/observability"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/vector"
)

// Router routes requests with a keyword pre-filter and, when no rule fires,
// an embedding probe against the catalog.
type Router struct {
	logger   *observability.Logger
	cache    cache.Client
	embedder embedding.Embedder
	matcher  vector.Matcher
	rules    []Rule
	config   RouterConfig
	metrics  *RouterMetrics
}

// RouterConfig holds router configuration.
type RouterConfig struct {
	MatchCount       int
	MatchThreshold   float64
	HighConfidence   float64
	MediumConfidence float64
	ProbeTimeout     time.Duration
	CacheDecisions   bool
	DecisionTTL      time.Duration
}

// DefaultRouterConfig returns the production probe settings.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		MatchCount:       5,
		MatchThreshold:   0.30,
		HighConfidence:   0.50,
		MediumConfidence: 0.40,
		ProbeTimeout:     3 * time.Second,
		CacheDecisions:   true,
		DecisionTTL:      10 * time.Minute,
	}
}

// RouterMetrics counts decisions per path.
type RouterMetrics struct {
	mu          sync.Mutex
	byPath      map[Path]int64
	probeErrors int64
	cacheHits   int64
}

// NewRouterMetrics creates a new metrics tracker.
func NewRouterMetrics() *RouterMetrics {
	return &RouterMetrics{byPath: make(map[Path]int64)}
}

func (m *RouterMetrics) record(d Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byPath[d.Path]++
	if d.Reason == ReasonProbeFailed {
		m.probeErrors++
	}
	if d.Cached {
		m.cacheHits++
	}
}

// MetricsSnapshot is a point-in-time copy of RouterMetrics.
type MetricsSnapshot struct {
	ByPath      map[Path]int64 `json:"by_path"`
	ProbeErrors int64          `json:"probe_errors"`
	CacheHits   int64          `json:"cache_hits"`
}

// Snapshot returns a copy of the counters.
func (m *RouterMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := MetricsSnapshot{
		ByPath:      make(map[Path]int64, len(m.byPath)),
		ProbeErrors: m.probeErrors,
		CacheHits:   m.cacheHits,
	}
	for k, v := range m.byPath {
		s.ByPath[k] = v
	}
	return s
}

// NewRouter creates a router. embedder, matcher and cacheClient may be nil;
// without an embedder or matcher every unmatched query routes to WORLD.
func NewRouter(
	logger *observability.Logger,
	cacheClient cache.Client,
	embedder embedding.Embedder,
	matcher vector.Matcher,
	cfg RouterConfig,
) *Router {
	d := DefaultRouterConfig()
	if cfg.MatchCount <= 0 {
		cfg.MatchCount = d.MatchCount
	}
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = d.MatchThreshold
	}
	if cfg.HighConfidence <= 0 {
		cfg.HighConfidence = d.HighConfidence
	}
	if cfg.MediumConfidence <= 0 {
		cfg.MediumConfidence = d.MediumConfidence
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = d.ProbeTimeout
	}
	if cfg.DecisionTTL <= 0 {
		cfg.DecisionTTL = d.DecisionTTL
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Router{
		logger:   logger.WithComponent("router"),
		cache:    cacheClient,
		embedder: embedder,
		matcher:  matcher,
		rules:    DefaultRules(),
		config:   cfg,
		metrics:  NewRouterMetrics(),
	}
}

// Metrics returns the router's decision counters.
func (r *Router) Metrics() *RouterMetrics {
	return r.metrics
}

// Route classifies query. It never fails: collaborator errors degrade to WORLD.
func (r *Router) Route(ctx context.Context, query string) Decision {
	start := time.Now()

	var d Decision
	if rule, ok := Prefilter(r.rules, query); ok {
		d = Decision{
			Path:       rule.Path,
			Reason:     rule.Reason,
			Confidence: ConfidenceNone,
			Stage:      StagePrefilter,
		}
	} else {
		r.logger.Debug().Str("reason", ReasonNoKeywordMatch).Msg("No pre-filter rule matched, probing catalog")
		d = r.probe(ctx, query)
	}

	r.metrics.record(d)

	r.logger.WithContext(ctx).Debug().
		Str("path", string(d.Path)).
		Str("reason", d.Reason).
		Str("stage", string(d.Stage)).
		Str("confidence", string(d.Confidence)).
		Float64("top_similarity", d.TopSimilarity).
		Bool("cached", d.Cached).
		Dur("latency", time.Since(start)).
		Msg("Routing decision")

	return d
}

func (r *Router) probe(ctx context.Context, query string) Decision {
	if r.embedder == nil || r.matcher == nil {
		return Decision{Path: PathWorld, Reason: ReasonProbeUnavailable, Confidence: ConfidenceNone, Stage: StageProbe}
	}

	key := decisionCacheKey(query)
	if cached, ok := r.checkCache(ctx, key); ok {
		return cached
	}

	probeCtx, cancel := context.WithTimeout(ctx, r.config.ProbeTimeout)
	defer cancel()

	vec, err := r.embedder.EmbedSingle(probeCtx, query)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Query embedding failed, routing to WORLD")
		return failedDecision()
	}

	matches, err := r.matcher.Match(probeCtx, vec, r.config.MatchCount, r.config.MatchThreshold)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Catalog match failed, routing to WORLD")
		return failedDecision()
	}

	d := r.bucket(matches)
	r.cacheDecision(ctx, key, d)
	return d
}

func failedDecision() Decision {
	return Decision{Path: PathWorld, Reason: ReasonProbeFailed, Confidence: ConfidenceNone, Stage: StageProbe}
}

// bucket maps the best similarity to a path.
func (r *Router) bucket(matches []vector.Match) Decision {
	d := Decision{Stage: StageProbe}

	top := -1.0
	for _, m := range matches {
		if m.Similarity > top {
			top = m.Similarity
		}
	}
	if len(matches) > 0 {
		d.TopSimilarity = top
	}

	switch {
	case len(matches) > 0 && top >= r.config.HighConfidence:
		d.Path, d.Reason, d.Confidence = PathCatalog, ReasonHighConfidence, ConfidenceHigh
	case len(matches) > 0 && top >= r.config.MediumConfidence:
		d.Path, d.Reason, d.Confidence = PathHybrid, ReasonMediumConfidence, ConfidenceMedium
	case len(matches) > 0 && top >= r.config.MatchThreshold:
		d.Path, d.Reason, d.Confidence = PathWorld, ReasonLowConfidence, ConfidenceLow
	default:
		d.Path, d.Reason, d.Confidence = PathWorld, ReasonNoCatalogMatch, ConfidenceNone
	}
	return d
}

func decisionCacheKey(query string) string {
	sum := sha256.Sum256([]byte(normalizeQuery(query)))
	return cache.Key("route", hex.EncodeToString(sum[:]))
}

func (r *Router) checkCache(ctx context.Context, key string) (Decision, bool) {
	if !r.config.CacheDecisions || r.cache == nil {
		return Decision{}, false
	}

	data, err := r.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn().Err(err).Msg("Decision cache read failed")
		}
		return Decision{}, false
	}

	var d Decision
	if err := json.Unmarshal(data, &d); err != nil || !d.Path.Valid() {
		r.logger.Warn().Str("key", key).Msg("Discarding unreadable cached decision")
		return Decision{}, false
	}
	d.Cached = true
	return d, true
}

func (r *Router) cacheDecision(ctx context.Context, key string, d Decision) {
	if !r.config.CacheDecisions || r.cache == nil {
		return
	}

	data, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, data, r.config.DecisionTTL); err != nil {
		r.logger.Warn().Err(err).Msg("Decision cache write failed")
	}
}
