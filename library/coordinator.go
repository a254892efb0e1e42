package library

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BorrowCoordinator orchestrates the borrow/return workflow. It owns the
// per-book backlog queues and the interaction graph, and is the only
// component that mutates book availability counters and user held sets.
// Operations are synchronous and single-actor; there is no locking.
type BorrowCoordinator struct {
	books    map[string]*Book
	users    map[string]*User
	backlogs map[string]*Queue[BorrowRequest]
	graph    *InteractionGraph
	logger   zerolog.Logger
}

// NewBorrowCoordinator returns a coordinator with an empty catalog and graph.
func NewBorrowCoordinator(logger zerolog.Logger) *BorrowCoordinator {
	return &BorrowCoordinator{
		books:    make(map[string]*Book),
		users:    make(map[string]*User),
		backlogs: make(map[string]*Queue[BorrowRequest]),
		graph:    NewInteractionGraph(),
		logger:   logger.With().Str("component", "coordinator").Logger(),
	}
}

// AddBook registers a book. Re-adding an existing id merges the copy counts
// into the existing record instead of replacing it; the merged-in copies go
// straight to queued waiters, and the satisfied requests are returned in
// order.
func (c *BorrowCoordinator) AddBook(book *Book) []BorrowRequest {
	if existing, ok := c.books[book.ID]; ok {
		existing.TotalCopies += book.TotalCopies
		existing.AvailableCopies += book.AvailableCopies
		return c.reconcile(existing)
	}
	c.books[book.ID] = book
	c.graph.AddNode(BookNode(book.ID))
	return nil
}

// RemoveBook deletes a book and its backlog queue. Graph edges stay: they are
// interaction history. Reports whether the book existed.
func (c *BorrowCoordinator) RemoveBook(bookID string) bool {
	if _, ok := c.books[bookID]; !ok {
		return false
	}
	delete(c.books, bookID)
	delete(c.backlogs, bookID)
	return true
}

// AddUser registers a user. A no-op if the id is already present.
func (c *BorrowCoordinator) AddUser(user *User) {
	if _, ok := c.users[user.ID]; ok {
		return
	}
	if user.Borrowed == nil {
		user.Borrowed = make(map[string]bool)
	}
	c.users[user.ID] = user
	c.graph.AddNode(UserNode(user.ID))
}

// RemoveUser deletes a user. Their queued requests stay in the backlogs and
// are dropped during reconciliation when they reach the front. Reports
// whether the user existed.
func (c *BorrowCoordinator) RemoveUser(userID string) bool {
	if _, ok := c.users[userID]; !ok {
		return false
	}
	delete(c.users, userID)
	return true
}

// Book looks up a book by id.
func (c *BorrowCoordinator) Book(bookID string) (*Book, bool) {
	book, ok := c.books[bookID]
	return book, ok
}

// User looks up a user by id.
func (c *BorrowCoordinator) User(userID string) (*User, bool) {
	user, ok := c.users[userID]
	return user, ok
}

// Books returns the catalog sorted by book id.
func (c *BorrowCoordinator) Books() []*Book {
	books := make([]*Book, 0, len(c.books))
	for _, book := range c.books {
		books = append(books, book)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books
}

// Users returns the registered users sorted by user id.
func (c *BorrowCoordinator) Users() []*User {
	users := make([]*User, 0, len(c.users))
	for _, user := range c.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

// Graph exposes the interaction graph for read-only consumers.
func (c *BorrowCoordinator) Graph() *InteractionGraph { return c.graph }

// PendingRequests returns the backlog for a book, front first.
func (c *BorrowCoordinator) PendingRequests(bookID string) []BorrowRequest {
	backlog, ok := c.backlogs[bookID]
	if !ok {
		return nil
	}
	return backlog.Items()
}

// Borrow hands a copy of the book to the user if one is available, or queues
// a borrow request if not. A user cannot hold the same book twice and cannot
// have two pending requests for the same book.
func (c *BorrowCoordinator) Borrow(userID, bookID string) (BorrowOutcome, error) {
	book, ok := c.books[bookID]
	if !ok {
		return 0, ErrBookNotFound
	}
	user, ok := c.users[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	if user.Holds(bookID) {
		return 0, ErrAlreadyBorrowed
	}

	if book.CanBorrow() {
		c.lend(book, user)
		c.logger.Debug().Str("user", userID).Str("book", bookID).Msg("borrowed")
		return OutcomeBorrowed, nil
	}

	backlog := c.backlog(bookID)
	for _, pending := range backlog.Items() {
		if pending.UserID == userID {
			return 0, ErrDuplicateRequest
		}
	}
	backlog.Enqueue(BorrowRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		BookID:    bookID,
		CreatedAt: time.Now().UTC(),
	})
	c.logger.Debug().Str("user", userID).Str("book", bookID).Int("backlog", backlog.Len()).Msg("request queued")
	return OutcomeQueued, nil
}

// Return takes a held copy back from the user and reconciles the book's
// backlog. Since one return frees exactly one copy, at most one request is
// satisfied per call; the satisfied request is returned, or nil if the copy
// simply became available.
func (c *BorrowCoordinator) Return(userID, bookID string) (*BorrowRequest, error) {
	book, ok := c.books[bookID]
	if !ok {
		return nil, ErrBookNotFound
	}
	user, ok := c.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	if !user.Holds(bookID) {
		return nil, ErrNotBorrowed
	}

	delete(user.Borrowed, bookID)
	book.AvailableCopies++
	c.logger.Debug().Str("user", userID).Str("book", bookID).Msg("returned")

	satisfied := c.reconcile(book)
	if len(satisfied) == 0 {
		return nil, nil
	}
	return &satisfied[0], nil
}

// reconcile hands available copies of the book to queued requests in FIFO
// order. Stale requests are dropped silently: the user was deleted meanwhile,
// or already holds the book (their request was overtaken by a direct borrow).
// Lending to a holder would leak the copy, since the held-set write is
// idempotent. Returns the satisfied requests in order.
func (c *BorrowCoordinator) reconcile(book *Book) []BorrowRequest {
	backlog, ok := c.backlogs[book.ID]
	if !ok {
		return nil
	}
	var satisfied []BorrowRequest
	for book.CanBorrow() && !backlog.IsEmpty() {
		request, _ := backlog.Dequeue()
		waiter, ok := c.users[request.UserID]
		if !ok {
			c.logger.Warn().Str("user", request.UserID).Str("book", book.ID).Msg("dropping stale request for deleted user")
			continue
		}
		if waiter.Holds(book.ID) {
			c.logger.Warn().Str("user", waiter.ID).Str("book", book.ID).Msg("dropping stale request from current holder")
			continue
		}
		c.lend(book, waiter)
		c.logger.Debug().Str("user", waiter.ID).Str("book", book.ID).Msg("queued request satisfied")
		satisfied = append(satisfied, request)
	}
	return satisfied
}

// TopKByBorrowCount returns the k most borrowed books, ties broken by book id
// ascending so output is deterministic. k <= 0 yields nil; k beyond the
// catalog size yields the whole catalog sorted.
func (c *BorrowCoordinator) TopKByBorrowCount(k int) []*Book {
	if k <= 0 {
		return nil
	}
	books := c.Books()
	sort.SliceStable(books, func(i, j int) bool { return books[i].BorrowCount > books[j].BorrowCount })
	if k > len(books) {
		k = len(books)
	}
	return books[:k]
}

// lend performs the bookkeeping of a successful borrow: availability down,
// popularity up, held set and interaction edge recorded.
func (c *BorrowCoordinator) lend(book *Book, user *User) {
	book.AvailableCopies--
	book.BorrowCount++
	user.Borrowed[book.ID] = true
	c.graph.AddEdge(UserNode(user.ID), BookNode(book.ID))
}

// backlog returns the queue for a book, creating it on first use.
func (c *BorrowCoordinator) backlog(bookID string) *Queue[BorrowRequest] {
	queue, ok := c.backlogs[bookID]
	if !ok {
		queue = NewQueue[BorrowRequest]()
		c.backlogs[bookID] = queue
	}
	return queue
}
