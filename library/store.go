package library

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Store provides durable catalog storage for books and users on SQLite. It
// is the system's record-by-id CRUD layer: the borrowing rules live in the
// BorrowCoordinator, which is hydrated from the store at startup and flushed
// back on save.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger

	addBookStmt *sql.Stmt
	addUserStmt *sql.Stmt
}

// NewStore opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements.
func NewStore(dbPath string, logger zerolog.Logger) (*Store, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Enable busy_timeout and foreign keys.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	store := &Store{db: db, logger: logger.With().Str("component", "store").Logger()}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases prepared statements and closes the DB.
func (s *Store) Close() error {
	if s.addBookStmt != nil {
		s.addBookStmt.Close()
	}
	if s.addUserStmt != nil {
		s.addUserStmt.Close()
	}
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            genre TEXT NOT NULL,
            total_copies INTEGER NOT NULL DEFAULT 0,
            available_copies INTEGER NOT NULL DEFAULT 0,
            borrow_count INTEGER NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS user_interests (
            user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            interest TEXT NOT NULL,
            UNIQUE(user_id, interest)
        );`,
		`CREATE TABLE IF NOT EXISTS loans (
            user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
            UNIQUE(user_id, book_id)
        );`,
		// FTS5 virtual table over catalog metadata
		`CREATE VIRTUAL TABLE IF NOT EXISTS books_fts USING fts5(
            book_id UNINDEXED, title, author, genre
        );`,
		// Triggers to keep FTS in sync
		`CREATE TRIGGER IF NOT EXISTS trg_books_ai AFTER INSERT ON books BEGIN
            INSERT INTO books_fts(book_id,title,author,genre) VALUES(new.id,new.title,new.author,new.genre);
        END;`,
		`CREATE TRIGGER IF NOT EXISTS trg_books_ad AFTER DELETE ON books BEGIN
            DELETE FROM books_fts WHERE book_id=old.id;
        END;`,
		`CREATE TRIGGER IF NOT EXISTS trg_books_au AFTER UPDATE OF title,author,genre ON books BEGIN
            DELETE FROM books_fts WHERE book_id=old.id;
            INSERT INTO books_fts(book_id,title,author,genre) VALUES(new.id,new.title,new.author,new.genre);
        END;`,
		`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, schemaVersion); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (s *Store) prepareStatements() error {
	var err error
	if s.addBookStmt, err = s.db.Prepare(
		`INSERT INTO books(id,title,author,genre,total_copies,available_copies,borrow_count) VALUES(?,?,?,?,?,?,?)`); err != nil {
		return err
	}
	if s.addUserStmt, err = s.db.Prepare(`INSERT INTO users(id,name) VALUES(?,?)`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Book CRUD
// ---------------------------------------------------------------------------

// AddBook inserts a book. Re-adding an existing id merges the copy counts
// into the stored record instead of failing.
func (s *Store) AddBook(book *Book) error {
	if err := validate.Struct(book); err != nil {
		return fmt.Errorf("invalid book: %w", err)
	}

	var exists bool
	if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM books WHERE id=?)`, book.ID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		_, err := s.db.Exec(
			`UPDATE books SET total_copies=total_copies+?, available_copies=available_copies+? WHERE id=?`,
			book.TotalCopies, book.AvailableCopies, book.ID)
		return err
	}

	_, err := s.addBookStmt.Exec(
		book.ID, book.Title, book.Author, book.Genre,
		book.TotalCopies, book.AvailableCopies, book.BorrowCount)
	return err
}

// GetBook fetches a single book.
func (s *Store) GetBook(bookID string) (*Book, error) {
	var b Book
	err := s.db.QueryRow(
		`SELECT id,title,author,genre,total_copies,available_copies,borrow_count FROM books WHERE id=?`, bookID).
		Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.TotalCopies, &b.AvailableCopies, &b.BorrowCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateBook replaces all stored fields of a book.
func (s *Store) UpdateBook(book *Book) error {
	if err := validate.Struct(book); err != nil {
		return fmt.Errorf("invalid book: %w", err)
	}
	result, err := s.db.Exec(
		`UPDATE books SET title=?, author=?, genre=?, total_copies=?, available_copies=?, borrow_count=? WHERE id=?`,
		book.Title, book.Author, book.Genre, book.TotalCopies, book.AvailableCopies, book.BorrowCount, book.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrBookNotFound
	}
	return nil
}

// UpdateBookCounters writes back only the mutable circulation counters.
func (s *Store) UpdateBookCounters(book *Book) error {
	result, err := s.db.Exec(
		`UPDATE books SET total_copies=?, available_copies=?, borrow_count=? WHERE id=?`,
		book.TotalCopies, book.AvailableCopies, book.BorrowCount, book.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrBookNotFound
	}
	return nil
}

// RemoveBook deletes a book and, via foreign keys, its loans.
func (s *Store) RemoveBook(bookID string) error {
	result, err := s.db.Exec(`DELETE FROM books WHERE id=?`, bookID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrBookNotFound
	}
	return nil
}

// AllBooks returns the catalog ordered by id.
func (s *Store) AllBooks() ([]*Book, error) {
	rows, err := s.db.Query(
		`SELECT id,title,author,genre,total_copies,available_copies,borrow_count FROM books ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.TotalCopies, &b.AvailableCopies, &b.BorrowCount); err != nil {
			return nil, err
		}
		books = append(books, &b)
	}
	return books, rows.Err()
}

// Genres returns the distinct catalog genres, sorted.
func (s *Store) Genres() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT genre FROM books ORDER BY genre`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var genres []string
	for rows.Next() {
		var genre string
		if err := rows.Scan(&genre); err != nil {
			return nil, err
		}
		genres = append(genres, genre)
	}
	return genres, rows.Err()
}

// SearchBooks leverages FTS5 over title, author and genre.
func (s *Store) SearchBooks(query string) ([]*Book, error) {
	if strings.TrimSpace(query) == "" {
		return []*Book{}, nil
	}
	rows, err := s.db.Query(`
        SELECT b.id, b.title, b.author, b.genre, b.total_copies, b.available_copies, b.borrow_count
        FROM books_fts fts
        JOIN books b ON b.id = fts.book_id
        WHERE books_fts MATCH ?
        ORDER BY rank;`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.TotalCopies, &b.AvailableCopies, &b.BorrowCount); err != nil {
			return nil, err
		}
		results = append(results, &b)
	}
	return results, rows.Err()
}

// ---------------------------------------------------------------------------
// User CRUD
// ---------------------------------------------------------------------------

// AddUser inserts a user with their interests. Adding an existing id updates
// the name and replaces the interests.
func (s *Store) AddUser(user *User) error {
	if err := validate.Struct(user); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO users(id,name) VALUES(?,?) ON CONFLICT(id) DO UPDATE SET name=excluded.name`,
		user.ID, user.Name); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM user_interests WHERE user_id=?`, user.ID); err != nil {
		return err
	}
	for _, interest := range user.Interests {
		if _, err := tx.Exec(`INSERT INTO user_interests(user_id,interest) VALUES(?,?)`, user.ID, interest); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetUser fetches a user with interests and currently held books.
func (s *Store) GetUser(userID string) (*User, error) {
	var u User
	err := s.db.QueryRow(`SELECT id,name FROM users WHERE id=?`, userID).Scan(&u.ID, &u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadUserDetails(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// AllUsers returns all users with interests and held books, ordered by id.
func (s *Store) AllUsers() ([]*User, error) {
	rows, err := s.db.Query(`SELECT id,name FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, u := range users {
		if err := s.loadUserDetails(u); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// RemoveUser deletes a user and, via foreign keys, their interests and loans.
func (s *Store) RemoveUser(userID string) error {
	result, err := s.db.Exec(`DELETE FROM users WHERE id=?`, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ReplaceLoans rewrites the held-book set for a user.
func (s *Store) ReplaceLoans(userID string, bookIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM loans WHERE user_id=?`, userID); err != nil {
		return err
	}
	for _, bookID := range bookIDs {
		if _, err := tx.Exec(`INSERT INTO loans(user_id,book_id) VALUES(?,?)`, userID, bookID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// loadUserDetails fills interests and the held-book set.
func (s *Store) loadUserDetails(u *User) error {
	rows, err := s.db.Query(`SELECT interest FROM user_interests WHERE user_id=? ORDER BY interest`, u.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	u.Interests = nil
	for rows.Next() {
		var interest string
		if err := rows.Scan(&interest); err != nil {
			return err
		}
		u.Interests = append(u.Interests, interest)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	loanRows, err := s.db.Query(`SELECT book_id FROM loans WHERE user_id=?`, u.ID)
	if err != nil {
		return err
	}
	defer loanRows.Close()
	u.Borrowed = make(map[string]bool)
	for loanRows.Next() {
		var bookID string
		if err := loanRows.Scan(&bookID); err != nil {
			return err
		}
		u.Borrowed[bookID] = true
	}
	return loanRows.Err()
}
