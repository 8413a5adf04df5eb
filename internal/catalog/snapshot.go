package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidSnapshot indicates a catalog snapshot that is not a JSON array of books.
var ErrInvalidSnapshot = errors.New("invalid catalog snapshot")

// LoadSnapshot reads a JSON catalog snapshot from disk.
func LoadSnapshot(path string) ([]Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog snapshot: %w", err)
	}
	defer f.Close()

	books, err := DecodeSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return books, nil
}

// DecodeSnapshot decodes a catalog snapshot. Both a bare array and an
// object with a "books" array are accepted. Entries without a title are
// dropped.
func DecodeSnapshot(r io.Reader) ([]Book, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var books []Book
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &books); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
	case '{':
		var wrapped struct {
			Books []Book `json:"books"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
		books = wrapped.Books
	default:
		return nil, ErrInvalidSnapshot
	}

	out := books[:0]
	for _, b := range books {
		if strings.TrimSpace(b.Title) == "" {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// WriteSnapshot writes books to path as an indented JSON array. The file is
// replaced atomically.
func WriteSnapshot(path string, books []Book) error {
	if books == nil {
		books = []Book{}
	}
	data, err := json.MarshalIndent(books, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".books-*.json")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
