// Package app wires configuration into the recommendation service and its
// collaborators. It is shared by the API server and the CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sarahcodeswell/sarahs-library-sub002/internal/cache"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/catalog"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/config"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/embedding"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/llm"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/observability"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/ratelimit"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/recommend"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/routing"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/storage"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/vector"
)

// App holds the wired collaborators. Fields other than Config, Logger,
// Cache, Router and Service may be nil when the matching backend is not
// configured.
type App struct {
	Config  *config.Config
	Logger  *observability.Logger
	Books   []catalog.Book
	Cache   cache.Client
	DB      *sql.DB
	Router  *routing.Router
	Service *recommend.Service
	History *History

	redis   *cache.RedisClient
	closers []func() error
}

// New builds an App from cfg. Missing API keys degrade the service instead
// of failing: without an embedder every unmatched query routes to WORLD and
// without a completer only previews are served.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*App, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	a := &App{Config: cfg, Logger: logger}

	if err := a.openDatabase(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.loadCatalog(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openCache(); err != nil {
		a.Close()
		return nil, err
	}

	embedder := a.newEmbedder()
	matcher, err := a.newMatcher()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Router = routing.NewRouter(logger, a.Cache, embedder, matcher, routing.RouterConfig{
		MatchCount:       cfg.Routing.MatchCount,
		MatchThreshold:   cfg.Routing.MatchThreshold,
		HighConfidence:   cfg.Routing.HighConfidence,
		MediumConfidence: cfg.Routing.MediumConfidence,
		ProbeTimeout:     cfg.Routing.ProbeTimeout,
		CacheDecisions:   cfg.Routing.CacheDecisions,
		DecisionTTL:      cfg.Routing.DecisionTTL,
	})

	a.Service = recommend.NewService(logger, a.Router, a.newCompleter(), a.Books,
		recommend.WithShortlistOptions(cfg.Shortlist))

	logger.Info().
		Int("catalog_size", len(a.Books)).
		Str("catalog_source", cfg.Catalog.Source).
		Str("cache", cfg.Cache.Driver).
		Str("matcher", cfg.Routing.Matcher).
		Bool("history", a.History != nil).
		Msg("Recommendation service ready")

	return a, nil
}

// dbRequired reports whether the configuration cannot work without a database.
func (a *App) dbRequired() bool {
	return a.Config.Catalog.Source == "database" || a.Config.Routing.Matcher == "pgvector"
}

func (a *App) openDatabase(ctx context.Context) error {
	db, err := OpenDatabase(ctx, a.Config)
	if err != nil {
		if a.dbRequired() {
			return err
		}
		a.Logger.Warn().Err(err).Msg("Database unavailable, reader history disabled")
		return nil
	}

	a.DB = db
	a.History = NewHistory(db)
	a.closers = append(a.closers, db.Close)
	return nil
}

// OpenDatabase opens the configured database and creates missing tables.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	pg := cfg.Database.Postgres
	driver := cfg.DatabaseDriverName()

	db, err := storage.Open(ctx, driver, cfg.DatabaseDSN(), storage.PoolConfig{
		MaxOpenConns:    pg.MaxOpenConns,
		MaxIdleConns:    pg.MaxIdleConns,
		ConnMaxLifetime: pg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := storage.Bootstrap(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database: %w", err)
	}
	return db, nil
}

func (a *App) loadCatalog(ctx context.Context) error {
	var (
		books []catalog.Book
		err   error
	)
	if a.Config.Catalog.Source == "database" {
		books, err = storage.NewBookRepository(a.DB).List(ctx)
	} else {
		books, err = catalog.LoadSnapshot(a.Config.Catalog.SnapshotPath)
	}
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	a.Books = books
	return nil
}

func (a *App) openCache() error {
	cfg := a.Config.Cache
	if cfg.Driver == "redis" {
		rc, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return fmt.Errorf("cache: %w", err)
		}
		a.redis = rc
		a.Cache = rc
		a.closers = append(a.closers, rc.Close)
		return nil
	}

	lc, err := cache.NewLocalClient(cache.LocalConfig{MaxCost: cfg.MaxCost})
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	a.Cache = lc
	a.closers = append(a.closers, lc.Close)
	return nil
}

func (a *App) newEmbedder() embedding.Embedder {
	e, err := NewEmbedder(a.Config.Embedding)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Embedding client disabled, similarity probe unavailable")
		return nil
	}
	return e
}

// NewEmbedder builds the configured embedding client.
func NewEmbedder(cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	if cfg.Provider == "mock" {
		return embedding.NewMockClient(cfg.Dimension), nil
	}
	client, err := embedding.NewClient(embedding.Config{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		Dimension: cfg.Dimension,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (a *App) newMatcher() (vector.Matcher, error) {
	if a.Config.Routing.Matcher == "pgvector" {
		return vector.NewPGMatcher(a.DB), nil
	}
	idx, err := vector.NewMemoryIndexFromBooks(a.Books)
	if err != nil {
		return nil, fmt.Errorf("build similarity index: %w", err)
	}
	if idx.Len() == 0 {
		a.Logger.Warn().Msg("Catalog carries no embeddings, similarity probe will find no matches")
	}
	return idx, nil
}

func (a *App) newCompleter() llm.Completer {
	cfg := a.Config.LLM
	client, err := llm.NewClient(llm.Config{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.Timeout,
	})
	if err != nil {
		a.Logger.Warn().Err(err).Msg("LLM client disabled, only previews are served")
		return nil
	}
	return client
}

// RateLimitStore returns the store backing the request limiter: Redis when
// the cache is Redis, otherwise an in-process limiter. The caller owns the
// returned stop function.
func (a *App) RateLimitStore() (ratelimit.Store, func()) {
	cfg := ratelimit.Config{
		MaxRequests: a.Config.RateLimit.MaxRequests,
		Window:      a.Config.RateLimit.Window,
	}
	if a.redis != nil {
		return ratelimit.NewRedisStore(a.redis.Raw(), a.redis.Prefix(), cfg), func() {}
	}
	s := ratelimit.NewLocalStore(cfg)
	return s, s.Stop
}

// Close releases every opened backend in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// History loads a reader's queue and owned books from storage.
type History struct {
	queue *storage.ReadingQueueRepository
	owned *storage.OwnedBookRepository
}

// NewHistory creates a History over db.
func NewHistory(db storage.DB) *History {
	return &History{
		queue: storage.NewReadingQueueRepository(db),
		owned: storage.NewOwnedBookRepository(db),
	}
}

// Load returns the user's reading queue and owned books.
func (h *History) Load(ctx context.Context, userID uuid.UUID) ([]catalog.ReadingQueueItem, []catalog.OwnedBook, error) {
	queue, err := h.queue.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	owned, err := h.owned.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return queue, owned, nil
}
