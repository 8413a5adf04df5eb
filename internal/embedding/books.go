package embedding

import (
	"context"
	"fmt"

	"github.com/sarahcodeswell/sarahs-library-sub002/internal/catalog"
)

// DefaultBatchSize is the number of books embedded per request.
const DefaultBatchSize = 64

// EmbedBooks fills the Embedding field of every book in place, batchSize
// books per request. progress, if set, is called with the number of books
// completed by each batch.
func EmbedBooks(ctx context.Context, e Embedder, books []catalog.Book, batchSize int, progress func(n int)) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	for start := 0; start < len(books); start += batchSize {
		end := start + batchSize
		if end > len(books) {
			end = len(books)
		}

		texts := make([]string, 0, end-start)
		for _, b := range books[start:end] {
			texts = append(texts, b.EmbeddingText())
		}

		vecs, err := e.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed books %d-%d: %w", start, end-1, err)
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("embed books %d-%d: got %d embeddings for %d texts", start, end-1, len(vecs), len(texts))
		}
		for i, v := range vecs {
			books[start+i].Embedding = v
		}

		if progress != nil {
			progress(end - start)
		}
	}
	return nil
}
