package vector

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

const matchBooksQuery = `SELECT title, author, similarity FROM match_books($1::vector, $2, $3)`

// PGMatcher delegates similarity search to the match_books SQL function
// backed by pgvector.
type PGMatcher struct {
	db *sql.DB
}

// NewPGMatcher creates a matcher over a Postgres connection opened with lib/pq.
func NewPGMatcher(db *sql.DB) *PGMatcher {
	return &PGMatcher{db: db}
}

// Match calls match_books(query_embedding, match_threshold, match_count).
func (p *PGMatcher) Match(ctx context.Context, embedding []float32, limit int, threshold float64) ([]Match, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := p.db.QueryContext(ctx, matchBooksQuery, VectorLiteral(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("match_books: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m      Match
			author sql.NullString
		)
		if err := rows.Scan(&m.Title, &author, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Author = author.String
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}

	return matches, nil
}

// VectorLiteral formats v in pgvector text form, e.g. [0.1,0.2].
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

var _ Matcher = (*PGMatcher)(nil)
