package library

import (
	"fmt"

	"github.com/rs/zerolog"
)

// LibraryManager is the façade the CLI talks to. It wires the durable catalog
// store to the in-memory BorrowCoordinator and RecommendationEngine: on open
// it hydrates the coordinator from the store plus the state snapshot, each
// mutating operation is written through to the store, and the snapshot is
// re-written on Save/Close.
type LibraryManager struct {
	store        *Store
	coordinator  *BorrowCoordinator
	engine       *RecommendationEngine
	snapshotPath string
	logger       zerolog.Logger
}

// NewLibraryManager opens (or creates) the store at cfg.DatabasePath and
// rebuilds the borrowing state from the snapshot at cfg.SnapshotPath.
func NewLibraryManager(cfg *Config, logger zerolog.Logger) (*LibraryManager, error) {
	store, err := NewStore(cfg.DatabasePath, logger)
	if err != nil {
		return nil, err
	}

	coordinator := NewBorrowCoordinator(logger)
	if err := hydrate(store, coordinator, cfg.SnapshotPath); err != nil {
		store.Close()
		return nil, err
	}

	engine, err := NewRecommendationEngine(coordinator, cfg.Recommend, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &LibraryManager{
		store:        store,
		coordinator:  coordinator,
		engine:       engine,
		snapshotPath: cfg.SnapshotPath,
		logger:       logger.With().Str("component", "manager").Logger(),
	}, nil
}

// hydrate loads catalogs from the store into the coordinator and applies the
// snapshot (queues, graph, counters) on top.
func hydrate(store *Store, coordinator *BorrowCoordinator, snapshotPath string) error {
	books, err := store.AllBooks()
	if err != nil {
		return fmt.Errorf("load books: %w", err)
	}
	for _, book := range books {
		coordinator.AddBook(book)
	}

	users, err := store.AllUsers()
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	for _, user := range users {
		coordinator.AddUser(user)
	}

	snapshot, err := ReadSnapshot(snapshotPath)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snapshot == nil {
		return nil
	}
	if err := coordinator.RestoreSnapshot(snapshot); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	return nil
}

// Save flushes book counters and loans to the store and writes the snapshot.
func (lm *LibraryManager) Save() error {
	for _, book := range lm.coordinator.Books() {
		if err := lm.store.UpdateBookCounters(book); err != nil {
			return fmt.Errorf("flush book %s: %w", book.ID, err)
		}
	}
	for _, user := range lm.coordinator.Users() {
		if err := lm.store.ReplaceLoans(user.ID, user.HeldBooks()); err != nil {
			return fmt.Errorf("flush loans for %s: %w", user.ID, err)
		}
	}
	if err := WriteSnapshot(lm.snapshotPath, lm.coordinator.ExportSnapshot()); err != nil {
		return err
	}
	lm.logger.Debug().Msg("state saved")
	return nil
}

// Close saves the current state and closes the store.
func (lm *LibraryManager) Close() error {
	if err := lm.Save(); err != nil {
		lm.store.Close()
		return err
	}
	return lm.store.Close()
}

// ------------------ Catalog helpers ------------------

// AddBook registers a book in the store and the coordinator. Re-adding an
// existing id merges copy counts in both; queued requests satisfied by the
// merged-in copies are written through.
func (lm *LibraryManager) AddBook(book *Book) error {
	if err := lm.store.AddBook(book); err != nil {
		return err
	}
	for _, satisfied := range lm.coordinator.AddBook(book) {
		if err := lm.syncAfterLend(satisfied.UserID, satisfied.BookID); err != nil {
			return err
		}
	}
	return nil
}

// RemoveBook drops a book from the store, the coordinator and its backlog.
func (lm *LibraryManager) RemoveBook(bookID string) error {
	if err := lm.store.RemoveBook(bookID); err != nil {
		return err
	}
	lm.coordinator.RemoveBook(bookID)
	return nil
}

// UpdateBook replaces a book's stored fields and refreshes the in-memory
// record.
func (lm *LibraryManager) UpdateBook(book *Book) error {
	if err := lm.store.UpdateBook(book); err != nil {
		return err
	}
	if existing, ok := lm.coordinator.Book(book.ID); ok && existing != book {
		*existing = *book
	}
	return nil
}

func (lm *LibraryManager) GetBook(bookID string) (*Book, error) {
	book, ok := lm.coordinator.Book(bookID)
	if !ok {
		return nil, ErrBookNotFound
	}
	return book, nil
}

func (lm *LibraryManager) AllBooks() []*Book { return lm.coordinator.Books() }

// SearchBooks runs a full-text query over title, author and genre.
func (lm *LibraryManager) SearchBooks(query string) ([]*Book, error) {
	return lm.store.SearchBooks(query)
}

// Genres lists the distinct genres in the catalog.
func (lm *LibraryManager) Genres() ([]string, error) { return lm.store.Genres() }

// ------------------ User helpers ------------------

// AddUser registers a user in the store and the coordinator.
func (lm *LibraryManager) AddUser(user *User) error {
	if err := lm.store.AddUser(user); err != nil {
		return err
	}
	lm.coordinator.AddUser(user)
	return nil
}

// RemoveUser deletes a user. Any pending requests of theirs are dropped
// lazily during backlog reconciliation.
func (lm *LibraryManager) RemoveUser(userID string) error {
	if err := lm.store.RemoveUser(userID); err != nil {
		return err
	}
	lm.coordinator.RemoveUser(userID)
	return nil
}

func (lm *LibraryManager) GetUser(userID string) (*User, error) {
	user, ok := lm.coordinator.User(userID)
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (lm *LibraryManager) AllUsers() []*User { return lm.coordinator.Users() }

// ------------------ Circulation ------------------

// Borrow hands out a copy or queues a request, then writes the affected
// records through to the store.
func (lm *LibraryManager) Borrow(userID, bookID string) (BorrowOutcome, error) {
	outcome, err := lm.coordinator.Borrow(userID, bookID)
	if err != nil {
		return 0, err
	}
	if outcome == OutcomeBorrowed {
		if err := lm.syncAfterLend(userID, bookID); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

// Return takes a book back and reports the queued request the freed copy
// satisfied, if any.
func (lm *LibraryManager) Return(userID, bookID string) (*BorrowRequest, error) {
	satisfied, err := lm.coordinator.Return(userID, bookID)
	if err != nil {
		return nil, err
	}
	if err := lm.syncAfterLend(userID, bookID); err != nil {
		return satisfied, err
	}
	if satisfied != nil {
		if user, ok := lm.coordinator.User(satisfied.UserID); ok {
			if err := lm.store.ReplaceLoans(user.ID, user.HeldBooks()); err != nil {
				return satisfied, fmt.Errorf("flush loans for %s: %w", user.ID, err)
			}
		}
	}
	return satisfied, nil
}

// syncAfterLend writes a book's counters and one user's loans back to the
// store after a circulation change.
func (lm *LibraryManager) syncAfterLend(userID, bookID string) error {
	if book, ok := lm.coordinator.Book(bookID); ok {
		if err := lm.store.UpdateBookCounters(book); err != nil {
			return fmt.Errorf("flush book %s: %w", bookID, err)
		}
	}
	if user, ok := lm.coordinator.User(userID); ok {
		if err := lm.store.ReplaceLoans(user.ID, user.HeldBooks()); err != nil {
			return fmt.Errorf("flush loans for %s: %w", userID, err)
		}
	}
	return nil
}

// PendingRequests returns the backlog for a book, front first.
func (lm *LibraryManager) PendingRequests(bookID string) []BorrowRequest {
	return lm.coordinator.PendingRequests(bookID)
}

// TopKByBorrowCount returns the k most borrowed books.
func (lm *LibraryManager) TopKByBorrowCount(k int) []*Book {
	return lm.coordinator.TopKByBorrowCount(k)
}

// Recommend returns up to limit new-to-the-user book ids, best first.
func (lm *LibraryManager) Recommend(userID string, limit int) []string {
	return lm.engine.Recommend(userID, limit)
}
