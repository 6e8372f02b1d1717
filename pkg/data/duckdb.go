// Package data persists the parsed catalog in DuckDB and answers the
// queries the CLI needs. It deduplicates by LibID; everything else about a
// record is taken as-is from the importer.
package data

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
)

// ErrBookNotFound marks a LibID with no catalog row.
var ErrBookNotFound = errors.New("data: book not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS books (
    libid          BIGINT PRIMARY KEY,
    title          TEXT NOT NULL,
    authors        TEXT NOT NULL DEFAULT '',
    genres         TEXT NOT NULL DEFAULT '',
    series         TEXT NOT NULL DEFAULT '',
    serno          INTEGER NOT NULL DEFAULT 0,
    file_stub      TEXT NOT NULL DEFAULT '',
    file_ext       TEXT NOT NULL DEFAULT '',
    folder         TEXT NOT NULL DEFAULT '',
    size           BIGINT NOT NULL DEFAULT 0,
    date           DATE,
    lang           TEXT NOT NULL DEFAULT '',
    deleted        BOOLEAN NOT NULL DEFAULT FALSE,
    fb2_archive    TEXT NOT NULL DEFAULT '',
    cover_archive  TEXT NOT NULL DEFAULT '',
    images_archive TEXT NOT NULL DEFAULT ''
);
`

const bookColumns = `libid, title, authors, genres, series, serno, file_stub,
	file_ext, folder, size, date, lang, deleted, fb2_archive, cover_archive,
	images_archive`

// Repository is the catalog store. Safe for concurrent use; database/sql
// serializes access to the single DuckDB handle.
type Repository struct {
	db *sql.DB
}

// Open connects to the DuckDB database at path (empty path means
// in-memory) and creates the schema when missing.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Close closes the underlying database handle.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveBooks inserts the batch inside one transaction, silently skipping
// LibIDs already present. Returns the number of rows actually inserted.
func (r *Repository) SaveBooks(books []*Book) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO books (` + bookColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, b := range books {
		res, err := stmt.Exec(
			b.LibID, b.Title, joinList(b.Authors), joinList(b.Genres),
			b.Series, b.SerNo, b.FileStub, b.FileExt, b.Folder, b.Size,
			nullableDate(b.Date), b.Lang, b.Deleted,
			b.FB2Archive, b.CoverArchive, b.ImagesArchive,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert book %d: %w", b.LibID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("commit batch: %w", err)
	}
	return inserted, nil
}

// SaveBook inserts one record; false means the LibID was already stored.
func (r *Repository) SaveBook(b *Book) (bool, error) {
	n, err := r.SaveBooks([]*Book{b})
	return n == 1, err
}

// GetBook fetches one record by LibID.
func (r *Repository) GetBook(libID int) (*Book, error) {
	row := r.db.QueryRow(`SELECT `+bookColumns+` FROM books WHERE libid = ?`, libID)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %d: %w", libID, ErrBookNotFound)
	}
	return b, err
}

// ListBooks returns up to limit records ordered by LibID; limit <= 0 means
// no limit.
func (r *Repository) ListBooks(limit int) ([]*Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books ORDER BY libid`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return collectBooks(rows)
}

// SearchBooks matches the query case-insensitively against title, authors
// and series.
func (r *Repository) SearchBooks(query string) ([]*Book, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := r.db.Query(`SELECT `+bookColumns+` FROM books
		WHERE lower(title) LIKE ? OR lower(authors) LIKE ? OR lower(series) LIKE ?
		ORDER BY libid`, pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return collectBooks(rows)
}

// CountBooks reports the catalog size.
func (r *Repository) CountBooks() (int64, error) {
	var n int64
	if err := r.db.QueryRow(`SELECT count(*) FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*Book, error) {
	var (
		b       Book
		authors string
		genres  string
		date    sql.NullTime
	)
	err := row.Scan(
		&b.LibID, &b.Title, &authors, &genres, &b.Series, &b.SerNo,
		&b.FileStub, &b.FileExt, &b.Folder, &b.Size, &date, &b.Lang,
		&b.Deleted, &b.FB2Archive, &b.CoverArchive, &b.ImagesArchive,
	)
	if err != nil {
		return nil, err
	}
	b.Authors = splitList(authors)
	b.Genres = splitList(genres)
	if date.Valid {
		b.Date = date.Time
	}
	return &b, nil
}

func collectBooks(rows *sql.Rows) ([]*Book, error) {
	defer rows.Close()
	var books []*Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func nullableDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
