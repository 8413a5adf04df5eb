package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarahcodeswell/sarahs-library-sub002/internal/app"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/catalog"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/recommend"
)

func TestQueryArg(t *testing.T) {
	q, err := queryArg([]string{"books", "like", "Circe"})
	require.NoError(t, err)
	assert.Equal(t, "books like Circe", q)

	_, err = queryArg([]string{"  "})
	assert.ErrorIs(t, err, recommend.ErrEmptyQuery)
}

func TestReaderFlags_HistoryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"reading_queue": [{"book_title": "Circe", "book_author": "Madeline Miller", "status": "finished", "rating": 5}],
		"owned": [{"title": "Beloved", "author": "Toni Morrison"}]
	}`), 0o600))

	f := readerFlags{historyFile: path}
	req, err := f.build(context.Background(), &app.App{}, "something mythic")
	require.NoError(t, err)

	assert.Equal(t, "something mythic", req.Query)
	require.Len(t, req.ReadingQueue, 1)
	assert.Equal(t, catalog.StatusFinished, req.ReadingQueue[0].Status)
	assert.Equal(t, []catalog.OwnedBook{{Title: "Beloved", Author: "Toni Morrison"}}, req.Owned)
}

func TestReaderFlags_Errors(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"reading_queue":[{"book_title":"A","status":"dnf"}]}`), 0o600))

	tests := []struct {
		name  string
		flags readerFlags
	}{
		{"invalid user id", readerFlags{userID: "nope"}},
		{"user without database", readerFlags{userID: "7b0c5a55-3a0e-4c55-8f3c-4f0f7d5b9a11"}},
		{"missing history file", readerFlags{historyFile: filepath.Join(t.TempDir(), "missing.json")}},
		{"invalid status", readerFlags{historyFile: bad}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.flags.build(context.Background(), &app.App{}, "q")
			assert.Error(t, err)
		})
	}
}

type fakeBookWriter struct {
	books  []catalog.Book
	failAt int
}

func (f *fakeBookWriter) Upsert(ctx context.Context, b catalog.Book) error {
	if f.failAt > 0 && len(f.books)+1 == f.failAt {
		return errors.New("constraint violation")
	}
	f.books = append(f.books, b)
	return nil
}

func TestImportBooks(t *testing.T) {
	books := []catalog.Book{{Title: "A"}, {Title: "B"}, {Title: "C"}}

	w := &fakeBookWriter{}
	n, err := importBooks(context.Background(), w, books, false)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, w.books, 3)

	w = &fakeBookWriter{failAt: 2}
	n, err = importBooks(context.Background(), w, books, false)
	assert.Error(t, err)
	assert.Equal(t, 1, n)
}
