package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarahcodeswell/sarahs-library-sub002/internal/catalog"
)

func openTestDB(t *testing.T) DB {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, "sqlite", ":memory:", PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Bootstrap(ctx, db, DriverSQLite))
	// idempotent
	require.NoError(t, Bootstrap(ctx, db, DriverSQLite))
	return db
}

func TestOpen_InvalidDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x", PoolConfig{})
	assert.ErrorIs(t, err, ErrInvalidDriver)

	_, err = Open(context.Background(), DriverSQLite, "", PoolConfig{})
	assert.Error(t, err)
}

func TestBookRepository_UpsertAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewBookRepository(openTestDB(t))

	require.NoError(t, repo.Upsert(ctx, catalog.Book{
		Title: "The Overstory", Author: "Richard Powers", Genre: "Literary Fiction",
		Themes: []string{"nature", "activism"}, Favorite: true, ISBN13: "9780393635522",
	}))
	require.NoError(t, repo.Upsert(ctx, catalog.Book{Title: "Pachinko", Author: "Min Jin Lee"}))

	// same key, different casing: updates in place
	require.NoError(t, repo.Upsert(ctx, catalog.Book{
		Title: "THE OVERSTORY", Author: "richard powers", Genre: "Fiction", Favorite: false,
	}))

	books, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)

	assert.Equal(t, "THE OVERSTORY", books[0].Title)
	assert.Equal(t, "Fiction", books[0].Genre)
	assert.False(t, books[0].Favorite)
	assert.Nil(t, books[0].Themes)
	assert.Equal(t, "Pachinko", books[1].Title)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Error(t, repo.Upsert(ctx, catalog.Book{Title: "  "}))
}

func TestBookRepository_GetByTitle(t *testing.T) {
	ctx := context.Background()
	repo := NewBookRepository(openTestDB(t))

	require.NoError(t, repo.Upsert(ctx, catalog.Book{
		Title: "Braiding Sweetgrass", Author: "Robin Wall Kimmerer", Themes: []string{"plants"},
	}))

	b, err := repo.GetByTitle(ctx, "braiding sweetgrass (paperback)", "Robin Wall Kimmerer")
	require.NoError(t, err)
	assert.Equal(t, []string{"plants"}, b.Themes)

	_, err = repo.GetByTitle(ctx, "Missing", "Nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadingQueueRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewReadingQueueRepository(db)

	user := uuid.New()
	other := uuid.New()

	require.NoError(t, repo.Add(ctx, user, catalog.ReadingQueueItem{BookTitle: "A", BookAuthor: "X", Status: catalog.StatusFinished, Rating: 5}))
	require.NoError(t, repo.Add(ctx, user, catalog.ReadingQueueItem{BookTitle: "B", Status: catalog.StatusWantToRead}))
	require.NoError(t, repo.Add(ctx, other, catalog.ReadingQueueItem{BookTitle: "C", Status: catalog.StatusAlreadyRead, Rating: 2}))
	assert.Error(t, repo.Add(ctx, user, catalog.ReadingQueueItem{BookTitle: "D", Status: "abandoned"}))

	// rows written by other tools with unknown statuses are ignored
	_, err := db.ExecContext(ctx, `INSERT INTO reading_queue (user_id, book_title, status) VALUES ($1, 'E', 'dnf')`, user.String())
	require.NoError(t, err)

	items, err := repo.ListByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, catalog.ReadingQueueItem{BookTitle: "A", BookAuthor: "X", Status: catalog.StatusFinished, Rating: 5}, items[0])
	assert.Equal(t, 0, items[1].Rating)

	none, err := repo.ListByUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOwnedBookRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewOwnedBookRepository(openTestDB(t))
	user := uuid.New()

	require.NoError(t, repo.Add(ctx, user, catalog.OwnedBook{Title: "First", Author: "A"}))
	require.NoError(t, repo.Add(ctx, user, catalog.OwnedBook{Title: "Second", Author: "B"}))

	owned, err := repo.ListByUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []catalog.OwnedBook{{Title: "Second", Author: "B"}, {Title: "First", Author: "A"}}, owned)
}
