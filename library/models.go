package library

import (
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate checks model and config structs against their struct tags.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Book represents a title in the catalog and its current availability.
// AvailableCopies stays within [0, TotalCopies]; it decreases by one only on
// a successful borrow and increases by one only on a return. BorrowCount is
// the number of successful borrows ever, so it never decreases.
type Book struct {
	ID              string `json:"id" validate:"required"`
	Title           string `json:"title" validate:"required"`
	Author          string `json:"author" validate:"required"`
	Genre           string `json:"genre" validate:"required"`
	TotalCopies     int    `json:"total_copies" validate:"gte=0"`
	AvailableCopies int    `json:"available_copies" validate:"gte=0,ltefield=TotalCopies"`
	BorrowCount     int    `json:"borrow_count" validate:"gte=0"`
}

// CanBorrow reports whether a copy is available right now.
func (b *Book) CanBorrow() bool { return b.AvailableCopies > 0 }

// User represents a registered member. Interests are normalized to lowercase
// for case-insensitive genre matching. Borrowed holds the ids of books the
// user currently has out and is mutated only by the BorrowCoordinator.
type User struct {
	ID        string          `json:"id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Interests []string        `json:"interests"`
	Borrowed  map[string]bool `json:"borrowed_books"`
}

// NewUser builds a user with normalized, sorted interests and an empty
// borrowed set.
func NewUser(id, name string, interests ...string) *User {
	u := &User{
		ID:       id,
		Name:     name,
		Borrowed: make(map[string]bool),
	}
	u.SetInterests(interests)
	return u
}

// SetInterests replaces the user's interests, lowercasing and deduplicating.
func (u *User) SetInterests(interests []string) {
	seen := make(map[string]bool, len(interests))
	normalized := make([]string, 0, len(interests))
	for _, interest := range interests {
		interest = strings.ToLower(strings.TrimSpace(interest))
		if interest == "" || seen[interest] {
			continue
		}
		seen[interest] = true
		normalized = append(normalized, interest)
	}
	sort.Strings(normalized)
	u.Interests = normalized
}

// HasInterest reports whether a genre is among the user's interests,
// case-insensitively.
func (u *User) HasInterest(genre string) bool {
	genre = strings.ToLower(strings.TrimSpace(genre))
	for _, interest := range u.Interests {
		if interest == genre {
			return true
		}
	}
	return false
}

// Holds reports whether the user currently has the book out.
func (u *User) Holds(bookID string) bool { return u.Borrowed[bookID] }

// HeldBooks returns the ids of currently held books, sorted.
func (u *User) HeldBooks() []string {
	held := make([]string, 0, len(u.Borrowed))
	for bookID := range u.Borrowed {
		held = append(held, bookID)
	}
	sort.Strings(held)
	return held
}

// BorrowRequest is a pending request for a book with no available copies.
// Requests are immutable once created and are consumed when matched to a
// freed copy.
type BorrowRequest struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	BookID    string    `json:"book_id"`
	CreatedAt time.Time `json:"created_at"`
}

// BorrowOutcome reports how a borrow call concluded: the copy was handed out
// immediately, or the request was queued for later.
type BorrowOutcome int

const (
	// OutcomeBorrowed means a copy was available and is now held by the user.
	OutcomeBorrowed BorrowOutcome = iota
	// OutcomeQueued means no copy was available and a request was enqueued.
	OutcomeQueued
)

// String returns a human-readable name for the outcome.
func (o BorrowOutcome) String() string {
	switch o {
	case OutcomeBorrowed:
		return "borrowed"
	case OutcomeQueued:
		return "queued"
	default:
		return "unknown"
	}
}
