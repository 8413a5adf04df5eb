package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sarahcodeswell/sarahs-library-sub002/internal/catalog"
	"github.com/sarahcodeswell/sarahs-library-sub002/internal/library"
)

// BookRepository reads and writes catalog books.
type BookRepository struct {
	db DB
}

// NewBookRepository creates a new book repository.
func NewBookRepository(db DB) *BookRepository {
	return &BookRepository{db: db}
}

// List returns every book in insertion order.
func (r *BookRepository) List(ctx context.Context) ([]catalog.Book, error) {
	query := `
		SELECT title, author, genre, description, themes, favorite, isbn, isbn13, isbn10
		FROM books ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []catalog.Book
	for rows.Next() {
		var (
			b      catalog.Book
			themes string
		)
		if err := rows.Scan(&b.Title, &b.Author, &b.Genre, &b.Description, &themes,
			&b.Favorite, &b.ISBN, &b.ISBN13, &b.ISBN10); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		b.Themes = decodeThemes(themes)
		books = append(books, b)
	}
	return books, rows.Err()
}

// GetByTitle returns the book whose normalized title and author match.
func (r *BookRepository) GetByTitle(ctx context.Context, title, author string) (*catalog.Book, error) {
	query := `
		SELECT title, author, genre, description, themes, favorite, isbn, isbn13, isbn10
		FROM books WHERE book_key = $1
	`
	var (
		b      catalog.Book
		themes string
	)
	err := r.db.QueryRowContext(ctx, query, library.BookKey(title, author)).Scan(
		&b.Title, &b.Author, &b.Genre, &b.Description, &themes,
		&b.Favorite, &b.ISBN, &b.ISBN13, &b.ISBN10,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	b.Themes = decodeThemes(themes)
	return &b, nil
}

// Upsert inserts a book or updates the existing row with the same
// title and author key.
func (r *BookRepository) Upsert(ctx context.Context, b catalog.Book) error {
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("book title is required")
	}

	themes, err := json.Marshal(nonNil(b.Themes))
	if err != nil {
		return fmt.Errorf("encode themes: %w", err)
	}

	query := `
		INSERT INTO books (book_key, title, author, genre, description, themes, favorite, isbn, isbn13, isbn10)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (book_key) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			genre = excluded.genre,
			description = excluded.description,
			themes = excluded.themes,
			favorite = excluded.favorite,
			isbn = excluded.isbn,
			isbn13 = excluded.isbn13,
			isbn10 = excluded.isbn10,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err = r.db.ExecContext(ctx, query,
		library.BookKey(b.Title, b.Author), b.Title, b.Author, b.Genre, b.Description,
		string(themes), b.Favorite, b.ISBN, b.ISBN13, b.ISBN10,
	)
	if err != nil {
		return fmt.Errorf("upsert book %q: %w", b.Title, err)
	}
	return nil
}

// Count returns the number of catalog books.
func (r *BookRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return n, nil
}

func decodeThemes(raw string) []string {
	if raw == "" {
		return nil
	}
	var themes []string
	if err := json.Unmarshal([]byte(raw), &themes); err != nil {
		return nil
	}
	if len(themes) == 0 {
		return nil
	}
	return themes
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ReadingQueueRepository reads a user's reading queue.
type ReadingQueueRepository struct {
	db DB
}

// NewReadingQueueRepository creates a new reading queue repository.
func NewReadingQueueRepository(db DB) *ReadingQueueRepository {
	return &ReadingQueueRepository{db: db}
}

// ListByUser returns the user's queue items, oldest first. Rows with an
// unknown status are skipped.
func (r *ReadingQueueRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]catalog.ReadingQueueItem, error) {
	query := `
		SELECT book_title, book_author, status, rating
		FROM reading_queue WHERE user_id = $1 ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list reading queue: %w", err)
	}
	defer rows.Close()

	var items []catalog.ReadingQueueItem
	for rows.Next() {
		var (
			item   catalog.ReadingQueueItem
			status string
			rating sql.NullInt64
		)
		if err := rows.Scan(&item.BookTitle, &item.BookAuthor, &status, &rating); err != nil {
			return nil, fmt.Errorf("scan reading queue: %w", err)
		}
		item.Status = catalog.QueueStatus(status)
		if !item.Status.Valid() {
			continue
		}
		if rating.Valid {
			item.Rating = int(rating.Int64)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Add appends an item to the user's queue.
func (r *ReadingQueueRepository) Add(ctx context.Context, userID uuid.UUID, item catalog.ReadingQueueItem) error {
	if !item.Status.Valid() {
		return fmt.Errorf("invalid queue status %q", item.Status)
	}

	var rating sql.NullInt64
	if item.HasRating() {
		rating = sql.NullInt64{Int64: int64(item.Rating), Valid: true}
	}

	query := `
		INSERT INTO reading_queue (user_id, book_title, book_author, status, rating)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, userID.String(), item.BookTitle, item.BookAuthor, string(item.Status), rating)
	if err != nil {
		return fmt.Errorf("add reading queue item: %w", err)
	}
	return nil
}

// OwnedBookRepository reads the books a user owns.
type OwnedBookRepository struct {
	db DB
}

// NewOwnedBookRepository creates a new owned book repository.
func NewOwnedBookRepository(db DB) *OwnedBookRepository {
	return &OwnedBookRepository{db: db}
}

// ListByUser returns the user's owned books, most recently added first.
func (r *OwnedBookRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]catalog.OwnedBook, error) {
	query := `SELECT title, author FROM user_books WHERE user_id = $1 ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list owned books: %w", err)
	}
	defer rows.Close()

	var books []catalog.OwnedBook
	for rows.Next() {
		var b catalog.OwnedBook
		if err := rows.Scan(&b.Title, &b.Author); err != nil {
			return nil, fmt.Errorf("scan owned book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// Add records an owned book.
func (r *OwnedBookRepository) Add(ctx context.Context, userID uuid.UUID, b catalog.OwnedBook) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_books (user_id, title, author) VALUES ($1, $2, $3)`,
		userID.String(), b.Title, b.Author,
	)
	if err != nil {
		return fmt.Errorf("add owned book: %w", err)
	}
	return nil
}
