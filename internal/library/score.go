package library

import (
	"sort"
	"strings"

	"github.com/sarahcodeswell/sarahs-library-sub002/internal/catalog"
)

// Scoring weights. Whole-query containment dominates per-token hits.
const (
	WeightQueryInTitle       = 10.0
	WeightQueryInAuthor      = 6.0
	WeightQueryInDescription = 3.0

	WeightTokenInTitle       = 3.0
	WeightTokenInAuthor      = 2.0
	WeightTokenInGenre       = 1.5
	WeightTokenInTheme       = 1.5
	WeightTokenInDescription = 1.0

	FavoriteBonus = 0.5
)

// ScoredCandidate pairs a catalog book with its lexical score.
type ScoredCandidate struct {
	Book  catalog.Book
	Score float64
	Index int // position in the source catalog
}

// Score returns a non-negative lexical match score of book against query.
func Score(query string, book catalog.Book) float64 {
	return scoreWithTokens(strings.ToLower(strings.TrimSpace(query)), Tokenize(query), book)
}

func scoreWithTokens(q string, tokens []string, book catalog.Book) float64 {
	title := strings.ToLower(book.Title)
	author := strings.ToLower(book.Author)
	genre := strings.ToLower(book.Genre)
	description := strings.ToLower(book.Description)

	score := 0.0

	if q != "" {
		if strings.Contains(title, q) {
			score += WeightQueryInTitle
		}
		if strings.Contains(author, q) {
			score += WeightQueryInAuthor
		}
		if strings.Contains(description, q) {
			score += WeightQueryInDescription
		}
	}

	for _, tok := range tokens {
		if strings.Contains(title, tok) {
			score += WeightTokenInTitle
		}
		if strings.Contains(author, tok) {
			score += WeightTokenInAuthor
		}
		if genre != "" && strings.Contains(genre, tok) {
			score += WeightTokenInGenre
		}
		for _, theme := range book.Themes {
			if strings.Contains(strings.ToLower(theme), tok) {
				score += WeightTokenInTheme
				break
			}
		}
		if description != "" && strings.Contains(description, tok) {
			score += WeightTokenInDescription
		}
	}

	if book.Favorite {
		score += FavoriteBonus
	}

	return score
}

// ScoreCatalog scores every book and returns the positive-scoring ones,
// highest first. Ties keep catalog order.
func ScoreCatalog(query string, books []catalog.Book) []ScoredCandidate {
	if len(books) == 0 {
		return nil
	}

	q := strings.ToLower(strings.TrimSpace(query))
	tokens := Tokenize(query)

	scored := make([]ScoredCandidate, 0, len(books))
	for i, b := range books {
		s := scoreWithTokens(q, tokens, b)
		if s <= 0 {
			continue
		}
		scored = append(scored, ScoredCandidate{Book: b, Score: s, Index: i})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Index < scored[j].Index
	})

	return scored
}
