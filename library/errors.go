package library

import "errors"

var (
	// ErrBookNotFound is returned when an operation references an unknown book id.
	ErrBookNotFound = errors.New("book not found")

	// ErrUserNotFound is returned when an operation references an unknown user id.
	ErrUserNotFound = errors.New("user not found")

	// ErrAlreadyBorrowed is returned when a user tries to borrow a book they
	// currently hold.
	ErrAlreadyBorrowed = errors.New("book already borrowed by this user")

	// ErrNotBorrowed is returned when a user tries to return a book they do not
	// currently hold.
	ErrNotBorrowed = errors.New("book not borrowed by this user")

	// ErrDuplicateRequest is returned when a user already has a pending borrow
	// request for the same book.
	ErrDuplicateRequest = errors.New("borrow request already pending for this book")

	// ErrEmptyQueue is returned by Dequeue and Peek on an empty queue.
	ErrEmptyQueue = errors.New("queue is empty")

	// ErrInvalidSnapshot is returned when snapshot data is malformed or has an
	// unsupported version.
	ErrInvalidSnapshot = errors.New("snapshot data is not valid")
)
