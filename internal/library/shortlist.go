package library

import (
	"fmt"
	"strings"

	"github.com/sarahcodeswell/sarahs-library-sub002/internal/catalog"
)

// ShortlistOptions bounds the shortlist. Zero fields take the defaults.
type ShortlistOptions struct {
	FavoriteLimit int `yaml:"favorite_limit"` // favorites taken first (default 12)
	TopLimit      int `yaml:"top_limit"`      // top lexical matches taken next (default 24)
	MaxBooks      int `yaml:"max_books"`      // hard cap on unique books (default 28)
	SnippetLines  int `yaml:"snippet_lines"`  // leading lines that carry a description (default 10)
	SnippetLength int `yaml:"snippet_length"` // max runes per snippet, ellipsis included (default 120)
}

// DefaultShortlistOptions returns the production shortlist bounds.
func DefaultShortlistOptions() ShortlistOptions {
	return ShortlistOptions{
		FavoriteLimit: 12,
		TopLimit:      24,
		MaxBooks:      28,
		SnippetLines:  10,
		SnippetLength: 120,
	}
}

func (o ShortlistOptions) withDefaults() ShortlistOptions {
	d := DefaultShortlistOptions()
	if o.FavoriteLimit <= 0 {
		o.FavoriteLimit = d.FavoriteLimit
	}
	if o.TopLimit <= 0 {
		o.TopLimit = d.TopLimit
	}
	if o.MaxBooks <= 0 {
		o.MaxBooks = d.MaxBooks
	}
	if o.SnippetLines < 0 {
		o.SnippetLines = 0
	} else if o.SnippetLines == 0 {
		o.SnippetLines = d.SnippetLines
	}
	if o.SnippetLength <= 3 {
		o.SnippetLength = d.SnippetLength
	}
	return o
}

// Shortlist is the ordered, deduplicated subset of the catalog shown to the model.
type Shortlist struct {
	Books        []catalog.Book
	CatalogSize  int
	snippetLines int
	snippetLen   int
}

// Titles returns the shortlisted titles in order.
func (s Shortlist) Titles() []string {
	titles := make([]string, len(s.Books))
	for i, b := range s.Books {
		titles[i] = b.Title
	}
	return titles
}

// Len returns the number of shortlisted books.
func (s Shortlist) Len() int {
	return len(s.Books)
}

// BuildShortlist ranks books against query and merges favorites, top matches
// and the remaining matches into at most opts.MaxBooks unique books.
func BuildShortlist(query string, books []catalog.Book, opts ShortlistOptions) Shortlist {
	opts = opts.withDefaults()

	list := Shortlist{
		CatalogSize:  len(books),
		snippetLines: opts.SnippetLines,
		snippetLen:   opts.SnippetLength,
	}

	ranked := ScoreCatalog(query, books)
	if len(ranked) == 0 {
		return list
	}

	favorites := make([]ScoredCandidate, 0, opts.FavoriteLimit)
	for _, c := range ranked {
		if len(favorites) == opts.FavoriteLimit {
			break
		}
		if c.Book.Favorite {
			favorites = append(favorites, c)
		}
	}

	top := ranked
	if len(top) > opts.TopLimit {
		top = top[:opts.TopLimit]
	}

	seen := make(map[string]struct{}, opts.MaxBooks)
	list.Books = make([]catalog.Book, 0, opts.MaxBooks)

	add := func(group []ScoredCandidate) bool {
		for _, c := range group {
			if len(list.Books) >= opts.MaxBooks {
				return false
			}
			key := BookKey(c.Book.Title, c.Book.Author)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			list.Books = append(list.Books, c.Book)
		}
		return len(list.Books) < opts.MaxBooks
	}

	if add(favorites) && add(top) {
		add(ranked)
	}

	return list
}

// Render formats the shortlist as the catalog block of the user message.
func (s Shortlist) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sarah's curated library (showing %d of %d books):", len(s.Books), s.CatalogSize)

	snippetLines := s.snippetLines
	snippetLen := s.snippetLen
	if snippetLen == 0 {
		d := DefaultShortlistOptions()
		snippetLines, snippetLen = d.SnippetLines, d.SnippetLength
	}

	for i, book := range s.Books {
		b.WriteString("\n- \"")
		b.WriteString(strings.TrimSpace(book.Title))
		b.WriteString("\"")
		if author := strings.TrimSpace(book.Author); author != "" {
			b.WriteString(" by ")
			b.WriteString(author)
		}
		if genre := strings.TrimSpace(book.Genre); genre != "" {
			b.WriteString(" (")
			b.WriteString(genre)
			b.WriteString(")")
		}
		if i < snippetLines {
			if snippet := Snippet(book.Description, snippetLen); snippet != "" {
				b.WriteString(": ")
				b.WriteString(snippet)
			}
		}
	}
	return b.String()
}

// Snippet collapses whitespace in text and truncates it to at most max runes,
// ending truncated output with "...".
func Snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 3 {
		return string(runes[:max])
	}
	cut := strings.TrimRight(string(runes[:max-3]), " ")
	return cut + "..."
}
