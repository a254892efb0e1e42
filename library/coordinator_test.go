package library

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBook(id, genre string, copies int) *Book {
	return &Book{
		ID:              id,
		Title:           "Title " + id,
		Author:          "Author " + id,
		Genre:           genre,
		TotalCopies:     copies,
		AvailableCopies: copies,
	}
}

// newTestCoordinator seeds one single-copy book, one double-copy book and
// three users.
func newTestCoordinator(t *testing.T) *BorrowCoordinator {
	t.Helper()
	c := NewBorrowCoordinator(zerolog.Nop())
	c.AddBook(testBook("b1", "technology", 1))
	c.AddBook(testBook("b2", "fiction", 2))
	c.AddUser(NewUser("u1", "Alice", "technology"))
	c.AddUser(NewUser("u2", "Bob", "fiction"))
	c.AddUser(NewUser("u3", "Carol"))
	return c
}

func requireInvariants(t *testing.T, c *BorrowCoordinator) {
	t.Helper()
	for _, book := range c.Books() {
		require.GreaterOrEqual(t, book.AvailableCopies, 0, "book %s", book.ID)
		require.LessOrEqual(t, book.AvailableCopies, book.TotalCopies, "book %s", book.ID)
		require.GreaterOrEqual(t, book.BorrowCount, 0, "book %s", book.ID)
	}
}

func TestBorrowDirect(t *testing.T) {
	c := newTestCoordinator(t)

	outcome, err := c.Borrow("u1", "b1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeBorrowed, outcome)

	book, _ := c.Book("b1")
	assert.Equal(t, 0, book.AvailableCopies)
	assert.Equal(t, 1, book.BorrowCount)

	user, _ := c.User("u1")
	assert.True(t, user.Holds("b1"))
	assert.True(t, c.Graph().HasEdge(UserNode("u1"), BookNode("b1")))
	requireInvariants(t, c)
}

func TestBorrowUnknownIDs(t *testing.T) {
	c := newTestCoordinator(t)

	_, err := c.Borrow("u1", "missing")
	assert.ErrorIs(t, err, ErrBookNotFound)

	_, err = c.Borrow("missing", "b1")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestBorrowAlreadyHeld(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Borrow("u1", "b1")
	require.NoError(t, err)

	_, err = c.Borrow("u1", "b1")
	assert.ErrorIs(t, err, ErrAlreadyBorrowed)

	book, _ := c.Book("b1")
	assert.Equal(t, 1, book.BorrowCount)
}

func TestBorrowExhaustedQueues(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Borrow("u1", "b1")
	require.NoError(t, err)

	outcome, err := c.Borrow("u2", "b1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, outcome)

	book, _ := c.Book("b1")
	assert.Equal(t, 0, book.AvailableCopies, "queuing must not touch availability")
	assert.Equal(t, 1, book.BorrowCount, "queuing must not count as a borrow")

	pending := c.PendingRequests("b1")
	require.Len(t, pending, 1)
	assert.Equal(t, "u2", pending[0].UserID)
	assert.Equal(t, "b1", pending[0].BookID)
	assert.NotEmpty(t, pending[0].ID)

	// Queuing leaves no interaction edge; only successful borrows do.
	assert.False(t, c.Graph().HasEdge(UserNode("u2"), BookNode("b1")))
	requireInvariants(t, c)
}

func TestBorrowDuplicatePendingRequest(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Borrow("u1", "b1")
	require.NoError(t, err)

	_, err = c.Borrow("u2", "b1")
	require.NoError(t, err)

	_, err = c.Borrow("u2", "b1")
	assert.ErrorIs(t, err, ErrDuplicateRequest)
	assert.Len(t, c.PendingRequests("b1"), 1)

	// A different user may still queue behind.
	outcome, err := c.Borrow("u3", "b1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, outcome)

	pending := c.PendingRequests("b1")
	require.Len(t, pending, 2)
	assert.Equal(t, "u2", pending[0].UserID)
	assert.Equal(t, "u3", pending[1].UserID)
}

func TestReturnErrors(t *testing.T) {
	c := newTestCoordinator(t)

	_, err := c.Return("u1", "missing")
	assert.ErrorIs(t, err, ErrBookNotFound)

	_, err = c.Return("missing", "b1")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = c.Return("u1", "b1")
	assert.ErrorIs(t, err, ErrNotBorrowed)
}

func TestReturnWithoutBacklog(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Borrow("u1", "b1")
	require.NoError(t, err)

	satisfied, err := c.Return("u1", "b1")
	require.NoError(t, err)
	assert.Nil(t, satisfied)

	book, _ := c.Book("b1")
	assert.Equal(t, 1, book.AvailableCopies)
	assert.Equal(t, 1, book.BorrowCount)

	user, _ := c.User("u1")
	assert.False(t, user.Holds("b1"))
	requireInvariants(t, c)
}

// The walkthrough scenario: a single-copy book held by u1 with u2 queued.
// The return hands the copy straight to u2.
func TestReturnSatisfiesQueuedRequest(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Borrow("u1", "b1")
	require.NoError(t, err)
	outcome, err := c.Borrow("u2", "b1")
	require.NoError(t, err)
	require.Equal(t, OutcomeQueued, outcome)

	satisfied, err := c.Return("u1", "b1")
	require.NoError(t, err)
	require.NotNil(t, satisfied)
	assert.Equal(t, "u2", satisfied.UserID)

	book, _ := c.Book("b1")
	assert.Equal(t, 0, book.AvailableCopies, "freed copy goes straight to the waiter")
	assert.Equal(t, 2, book.BorrowCount)

	u1, _ := c.User("u1")
	u2, _ := c.User("u2")
	assert.False(t, u1.Holds("b1"))
	assert.True(t, u2.Holds("b1"))
	assert.Empty(t, c.PendingRequests("b1"))
	assert.True(t, c.Graph().HasEdge(UserNode("u2"), BookNode("b1")))
	requireInvariants(t, c)
}

func TestReturnSatisfiesAtMostOneRequest(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Borrow("u1", "b1")
	require.NoError(t, err)
	_, err = c.Borrow("u2", "b1")
	require.NoError(t, err)
	_, err = c.Borrow("u3", "b1")
	require.NoError(t, err)

	satisfied, err := c.Return("u1", "b1")
	require.NoError(t, err)
	require.NotNil(t, satisfied)
	assert.Equal(t, "u2", satisfied.UserID, "front of the queue is served first")

	pending := c.PendingRequests("b1")
	require.Len(t, pending, 1, "exactly one request per freed copy")
	assert.Equal(t, "u3", pending[0].UserID)
	requireInvariants(t, c)
}

func TestReturnSkipsRequestsFromDeletedUsers(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Borrow("u1", "b1")
	require.NoError(t, err)
	_, err = c.Borrow("u2", "b1")
	require.NoError(t, err)
	_, err = c.Borrow("u3", "b1")
	require.NoError(t, err)

	require.True(t, c.RemoveUser("u2"))

	satisfied, err := c.Return("u1", "b1")
	require.NoError(t, err)
	require.NotNil(t, satisfied)
	assert.Equal(t, "u3", satisfied.UserID, "stale request dropped, next in line served")
	assert.Empty(t, c.PendingRequests("b1"))

	u3, _ := c.User("u3")
	assert.True(t, u3.Holds("b1"))
	requireInvariants(t, c)
}

func TestReturnLeavesCopyAvailableWhenBacklogIsAllStale(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Borrow("u1", "b1")
	require.NoError(t, err)
	_, err = c.Borrow("u2", "b1")
	require.NoError(t, err)
	require.True(t, c.RemoveUser("u2"))

	satisfied, err := c.Return("u1", "b1")
	require.NoError(t, err)
	assert.Nil(t, satisfied)

	book, _ := c.Book("b1")
	assert.Equal(t, 1, book.AvailableCopies)
	assert.Empty(t, c.PendingRequests("b1"))
}

func TestGraphEdgeSurvivesReturnAndReborrow(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Borrow("u1", "b1")
	require.NoError(t, err)
	_, err = c.Return("u1", "b1")
	require.NoError(t, err)

	assert.True(t, c.Graph().HasEdge(UserNode("u1"), BookNode("b1")), "history persists across returns")

	_, err = c.Borrow("u1", "b1")
	require.NoError(t, err)
	assert.Len(t, c.Graph().Neighbors(UserNode("u1")), 1, "re-borrowing must not duplicate the edge")
}

func TestBorrowCountMonotonicAcrossCycles(t *testing.T) {
	c := newTestCoordinator(t)
	previous := 0
	for i := 0; i < 4; i++ {
		_, err := c.Borrow("u1", "b1")
		require.NoError(t, err)
		book, _ := c.Book("b1")
		assert.Equal(t, previous+1, book.BorrowCount)
		previous = book.BorrowCount

		_, err = c.Return("u1", "b1")
		require.NoError(t, err)
		book, _ = c.Book("b1")
		assert.Equal(t, previous, book.BorrowCount, "returns never change the borrow count")
		requireInvariants(t, c)
	}
}

func TestMultiCopyBookServesTwoUsers(t *testing.T) {
	c := newTestCoordinator(t)

	outcome, err := c.Borrow("u1", "b2")
	require.NoError(t, err)
	assert.Equal(t, OutcomeBorrowed, outcome)

	outcome, err = c.Borrow("u2", "b2")
	require.NoError(t, err)
	assert.Equal(t, OutcomeBorrowed, outcome)

	outcome, err = c.Borrow("u3", "b2")
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, outcome)
	requireInvariants(t, c)
}

func TestAddBookMergesCopies(t *testing.T) {
	c := newTestCoordinator(t)
	satisfied := c.AddBook(testBook("b1", "technology", 2))
	assert.Empty(t, satisfied)

	book, _ := c.Book("b1")
	assert.Equal(t, 3, book.TotalCopies)
	assert.Equal(t, 3, book.AvailableCopies)
}

func TestAddBookMergeServesQueuedWaiters(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Borrow("u1", "b1")
	require.NoError(t, err)
	_, err = c.Borrow("u2", "b1")
	require.NoError(t, err)
	_, err = c.Borrow("u3", "b1")
	require.NoError(t, err)

	// Two new copies serve both waiters in queue order.
	satisfied := c.AddBook(testBook("b1", "technology", 2))
	require.Len(t, satisfied, 2)
	assert.Equal(t, "u2", satisfied[0].UserID)
	assert.Equal(t, "u3", satisfied[1].UserID)
	assert.Empty(t, c.PendingRequests("b1"))

	book, _ := c.Book("b1")
	assert.Equal(t, 3, book.TotalCopies)
	assert.Equal(t, 0, book.AvailableCopies)
	assert.Equal(t, 3, book.BorrowCount)

	u2, _ := c.User("u2")
	u3, _ := c.User("u3")
	assert.True(t, u2.Holds("b1"))
	assert.True(t, u3.Holds("b1"))
	requireInvariants(t, c)
}

func TestAddBookMergeLeavesSpareCopiesAvailable(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Borrow("u1", "b1")
	require.NoError(t, err)
	_, err = c.Borrow("u2", "b1")
	require.NoError(t, err)

	satisfied := c.AddBook(testBook("b1", "technology", 3))
	require.Len(t, satisfied, 1)
	assert.Equal(t, "u2", satisfied[0].UserID)

	book, _ := c.Book("b1")
	assert.Equal(t, 4, book.TotalCopies)
	assert.Equal(t, 2, book.AvailableCopies)
	requireInvariants(t, c)
}

// A backlog can hold a request from a user who obtained the book some other
// way in the meantime, for example through restored state. Reconciliation
// must drop it: lending to a current holder would decrement availability
// without recording a new loan.
func TestReturnSkipsRequestFromCurrentHolder(t *testing.T) {
	c := newTestCoordinator(t)
	c.AddBook(testBook("b3", "fiction", 2))
	_, err := c.Borrow("u1", "b3")
	require.NoError(t, err)
	_, err = c.Borrow("u2", "b3")
	require.NoError(t, err)

	snapshot := c.ExportSnapshot()
	snapshot.Queues["b3"] = []BorrowRequest{{ID: "r1", UserID: "u2", BookID: "b3"}}
	require.NoError(t, c.RestoreSnapshot(snapshot))

	satisfied, err := c.Return("u1", "b3")
	require.NoError(t, err)
	assert.Nil(t, satisfied, "request from the current holder is dropped, not lent")
	assert.Empty(t, c.PendingRequests("b3"))

	book, _ := c.Book("b3")
	assert.Equal(t, 1, book.AvailableCopies, "the freed copy stays available")
	assert.Equal(t, 2, book.BorrowCount, "no phantom borrow is counted")

	u2, _ := c.User("u2")
	heldCopies := 0
	for _, user := range c.Users() {
		if user.Holds("b3") {
			heldCopies++
		}
	}
	assert.True(t, u2.Holds("b3"))
	assert.Equal(t, book.TotalCopies, heldCopies+book.AvailableCopies, "copies are conserved")
	requireInvariants(t, c)
}

func TestTopKByBorrowCount(t *testing.T) {
	c := NewBorrowCoordinator(zerolog.Nop())
	c.AddUser(NewUser("u1", "Alice"))
	for _, id := range []string{"b1", "b2", "b3"} {
		c.AddBook(testBook(id, "fiction", 5))
	}

	// b2 borrowed twice, b3 once, b1 never.
	for _, bookID := range []string{"b2", "b3", "b2"} {
		_, err := c.Borrow("u1", bookID)
		require.NoError(t, err)
		_, err = c.Return("u1", bookID)
		require.NoError(t, err)
	}

	ids := func(books []*Book) []string {
		out := make([]string, len(books))
		for i, b := range books {
			out[i] = b.ID
		}
		return out
	}

	assert.Empty(t, c.TopKByBorrowCount(0))
	assert.Empty(t, c.TopKByBorrowCount(-3))
	assert.Equal(t, []string{"b2"}, ids(c.TopKByBorrowCount(1)))
	assert.Equal(t, []string{"b2", "b3", "b1"}, ids(c.TopKByBorrowCount(10)), "k beyond catalog returns all, sorted")
}

func TestTopKTiesBreakByID(t *testing.T) {
	c := NewBorrowCoordinator(zerolog.Nop())
	c.AddUser(NewUser("u1", "Alice"))
	for _, id := range []string{"b3", "b1", "b2"} {
		c.AddBook(testBook(id, "fiction", 1))
		_, err := c.Borrow("u1", id)
		require.NoError(t, err)
		_, err = c.Return("u1", id)
		require.NoError(t, err)
	}

	top := c.TopKByBorrowCount(3)
	require.Len(t, top, 3)
	assert.Equal(t, "b1", top[0].ID)
	assert.Equal(t, "b2", top[1].ID)
	assert.Equal(t, "b3", top[2].ID)
}

func TestRemoveBookDropsBacklog(t *testing.T) {
	c := newTestCoordinator(t)
	_, err := c.Borrow("u1", "b1")
	require.NoError(t, err)
	_, err = c.Borrow("u2", "b1")
	require.NoError(t, err)

	require.True(t, c.RemoveBook("b1"))
	assert.False(t, c.RemoveBook("b1"))
	assert.Empty(t, c.PendingRequests("b1"))

	_, err = c.Borrow("u3", "b1")
	assert.ErrorIs(t, err, ErrBookNotFound)
}
