// Package catalog defines the curated book catalog and reading-queue records.
package catalog

import (
	"strings"
)

// Book is a curated catalog entry. Books are read-only at request time.
type Book struct {
	Title       string    `json:"title" yaml:"title"`
	Author      string    `json:"author" yaml:"author"`
	Genre       string    `json:"genre,omitempty" yaml:"genre,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Themes      []string  `json:"themes,omitempty" yaml:"themes,omitempty"`
	Favorite    bool      `json:"favorite,omitempty" yaml:"favorite,omitempty"`
	ISBN        string    `json:"isbn,omitempty" yaml:"isbn,omitempty"`
	ISBN13      string    `json:"isbn13,omitempty" yaml:"isbn13,omitempty"`
	ISBN10      string    `json:"isbn10,omitempty" yaml:"isbn10,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty" yaml:"-"`
}

// PreferredISBN returns the most specific identifier available.
func (b Book) PreferredISBN() string {
	switch {
	case b.ISBN13 != "":
		return b.ISBN13
	case b.ISBN != "":
		return b.ISBN
	default:
		return b.ISBN10
	}
}

// QueueStatus is the relationship between a reader and a book.
type QueueStatus string

const (
	StatusWantToRead  QueueStatus = "want_to_read"
	StatusFinished    QueueStatus = "finished"
	StatusAlreadyRead QueueStatus = "already_read"
)

// Valid reports whether s is a known queue status.
func (s QueueStatus) Valid() bool {
	switch s {
	case StatusWantToRead, StatusFinished, StatusAlreadyRead:
		return true
	}
	return false
}

// IsRead reports whether the reader has finished the book.
func (s QueueStatus) IsRead() bool {
	return s == StatusFinished || s == StatusAlreadyRead
}

// ReadingQueueItem is a reader's relationship to one book.
// Rating is 1-5; zero means unrated.
type ReadingQueueItem struct {
	BookTitle  string      `json:"book_title"`
	BookAuthor string      `json:"book_author,omitempty"`
	Status     QueueStatus `json:"status"`
	Rating     int         `json:"rating,omitempty"`
}

// HasRating reports whether the item carries a valid 1-5 rating.
func (i ReadingQueueItem) HasRating() bool {
	return i.Rating >= 1 && i.Rating <= 5
}

// Label renders the item as "Title by Author" for prompts.
func (i ReadingQueueItem) Label() string {
	return label(i.BookTitle, i.BookAuthor)
}

// OwnedBook is a book in the reader's personal collection.
type OwnedBook struct {
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
}

// Label renders the book as "Title by Author" for prompts.
func (o OwnedBook) Label() string {
	return label(o.Title, o.Author)
}

func label(title, author string) string {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	if author == "" {
		return title
	}
	return title + " by " + author
}

// EmbeddingText is the text embedded for similarity routing.
func (b Book) EmbeddingText() string {
	parts := []string{label(b.Title, b.Author)}
	if g := strings.TrimSpace(b.Genre); g != "" {
		parts = append(parts, g)
	}
	if len(b.Themes) > 0 {
		parts = append(parts, "Themes: "+strings.Join(b.Themes, ", "))
	}
	if d := strings.TrimSpace(b.Description); d != "" {
		parts = append(parts, d)
	}
	return strings.Join(parts, ". ")
}
