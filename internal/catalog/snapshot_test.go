package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"bare array", `[{"title":"Beloved","author":"Toni Morrison"}]`, 1, false},
		{"wrapped object", `{"books":[{"title":"A"},{"title":"B"}]}`, 2, false},
		{"drops untitled entries", `[{"title":""},{"author":"X"},{"title":"C"}]`, 1, false},
		{"empty input", "   ", 0, false},
		{"scalar", `"nope"`, 0, true},
		{"malformed", `[{"title":`, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			books, err := DecodeSnapshot(strings.NewReader(tc.input))
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSnapshot)
				return
			}
			require.NoError(t, err)
			assert.Len(t, books, tc.want)
		})
	}
}

func TestLoadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.json")
	body := `[{"title":"The Overstory","author":"Richard Powers","genre":"Literary Fiction",
	  "themes":["nature","interconnection"],"favorite":true,"isbn13":"9780393635522","embedding":[0.1,0.2]}]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	books, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, books, 1)

	b := books[0]
	assert.Equal(t, "The Overstory", b.Title)
	assert.True(t, b.Favorite)
	assert.Equal(t, []string{"nature", "interconnection"}, b.Themes)
	assert.Equal(t, "9780393635522", b.PreferredISBN())
	assert.Len(t, b.Embedding, 2)

	_, err = LoadSnapshot(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestQueueStatus(t *testing.T) {
	assert.True(t, StatusFinished.IsRead())
	assert.True(t, StatusAlreadyRead.IsRead())
	assert.False(t, StatusWantToRead.IsRead())
	assert.True(t, StatusWantToRead.Valid())
	assert.False(t, QueueStatus("abandoned").Valid())
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Beloved by Toni Morrison", ReadingQueueItem{BookTitle: "Beloved", BookAuthor: "Toni Morrison"}.Label())
	assert.Equal(t, "Beloved", OwnedBook{Title: " Beloved "}.Label())
	assert.True(t, ReadingQueueItem{Rating: 5}.HasRating())
	assert.False(t, ReadingQueueItem{Rating: 0}.HasRating())
	assert.False(t, ReadingQueueItem{Rating: 6}.HasRating())
}

func TestBook_EmbeddingText(t *testing.T) {
	b := Book{
		Title: "Braiding Sweetgrass", Author: "Robin Wall Kimmerer", Genre: "Nonfiction",
		Themes: []string{"plants", "indigenous knowledge"}, Description: "Essays on reciprocity.",
	}
	assert.Equal(t,
		"Braiding Sweetgrass by Robin Wall Kimmerer. Nonfiction. Themes: plants, indigenous knowledge. Essays on reciprocity.",
		b.EmbeddingText())

	assert.Equal(t, "Circe", Book{Title: "Circe"}.EmbeddingText())
}

func TestWriteSnapshot_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.json")
	books := []Book{
		{Title: "Circe", Author: "Madeline Miller", Themes: []string{"myth"}, Embedding: []float32{0.5, -0.5}},
	}
	require.NoError(t, WriteSnapshot(path, books))

	got, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, books, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
