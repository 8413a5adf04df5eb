package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarahcodeswell/sarahs-library-sub002/internal/catalog"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/config"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/ratelimit"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/recommend"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/routing"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/storage"
)

const testSnapshot = `[
  {"title": "The Overstory", "author": "Richard Powers", "genre": "Literary Fiction", "themes": ["trees", "activism"]},
  {"title": "Pachinko", "author": "Min Jin Lee", "genre": "Historical Fiction", "themes": ["family", "migration"]}
]`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	snapshot := filepath.Join(dir, "books.json")
	require.NoError(t, os.WriteFile(snapshot, []byte(testSnapshot), 0o644))

	cfg := config.DefaultConfig()
	cfg.Database.SQLite.Path = filepath.Join(dir, "library.db")
	cfg.Catalog.SnapshotPath = snapshot
	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Dimension = 32
	cfg.LLM.APIKey = ""
	return cfg
}

func TestNew_SnapshotCatalog(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Len(t, a.Books, 2)
	assert.Equal(t, 2, a.Service.CatalogSize())
	assert.NotNil(t, a.DB)
	assert.NotNil(t, a.History)

	// no embeddings in the snapshot: unmatched queries fall through to WORLD
	d := a.Router.Route(context.Background(), "something quiet and sad")
	assert.Equal(t, routing.PathWorld, d.Path)

	// no API key: previews work, completions do not
	_, err = a.Service.Recommend(context.Background(), recommend.Request{Query: "books like Pachinko"})
	assert.ErrorIs(t, err, recommend.ErrNoCompleter)
}

func TestNew_DatabaseCatalog(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	db, err := storage.Open(ctx, storage.DriverSQLite, cfg.Database.SQLite.Path, storage.PoolConfig{})
	require.NoError(t, err)
	require.NoError(t, storage.Bootstrap(ctx, db, storage.DriverSQLite))
	require.NoError(t, storage.NewBookRepository(db).Upsert(ctx, catalog.Book{Title: "Beloved", Author: "Toni Morrison"}))
	require.NoError(t, db.Close())

	cfg.Catalog.Source = "database"
	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	require.Len(t, a.Books, 1)
	assert.Equal(t, "Beloved", a.Books[0].Title)
}

func TestNew_MissingSnapshot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Catalog.SnapshotPath = filepath.Join(t.TempDir(), "missing.json")

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNew_DatabaseOptionalForSnapshot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.SQLite.Path = ""

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.DB)
	assert.Nil(t, a.History)
}

func TestHistory_Load(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	user := uuid.New()
	require.NoError(t, storage.NewReadingQueueRepository(a.DB).Add(ctx, user,
		catalog.ReadingQueueItem{BookTitle: "Beloved", Status: catalog.StatusFinished, Rating: 5}))
	require.NoError(t, storage.NewOwnedBookRepository(a.DB).Add(ctx, user,
		catalog.OwnedBook{Title: "Pachinko", Author: "Min Jin Lee"}))

	queue, owned, err := a.History.Load(ctx, user)
	require.NoError(t, err)
	assert.Len(t, queue, 1)
	assert.Len(t, owned, 1)
}

func TestRateLimitStore_Local(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	store, stop := a.RateLimitStore()
	defer stop()

	_, ok := store.(*ratelimit.LocalStore)
	assert.True(t, ok)
}
