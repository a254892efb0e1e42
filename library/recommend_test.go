package library

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recommendFixture builds a small community around alice:
//
//	alice (technology) borrowed and returned b1
//	bob borrowed b1, b2 and b3
//	carol borrowed b2
//
// which makes b2 and b3 reachable from alice through bob at three hops,
// leaves b4 and b5 untouched, and gives borrow counts b1=2, b2=2, b3=1.
func recommendFixture(t *testing.T) (*BorrowCoordinator, *RecommendationEngine) {
	t.Helper()
	c := NewBorrowCoordinator(zerolog.Nop())
	c.AddBook(testBook("b1", "technology", 3))
	c.AddBook(testBook("b2", "fiction", 3))
	c.AddBook(testBook("b3", "technology", 3))
	c.AddBook(testBook("b4", "fiction", 3))
	c.AddBook(testBook("b5", "history", 3))
	c.AddUser(NewUser("alice", "Alice", "technology"))
	c.AddUser(NewUser("bob", "Bob"))
	c.AddUser(NewUser("carol", "Carol"))

	borrow := func(userID, bookID string) {
		t.Helper()
		_, err := c.Borrow(userID, bookID)
		require.NoError(t, err)
	}
	borrow("alice", "b1")
	_, err := c.Return("alice", "b1")
	require.NoError(t, err)
	borrow("bob", "b1")
	borrow("bob", "b2")
	borrow("bob", "b3")
	borrow("carol", "b2")

	engine, err := NewRecommendationEngine(c, DefaultRecommendConfig(), zerolog.Nop())
	require.NoError(t, err)
	return c, engine
}

func TestRecommendRanksGraphCandidatesByScore(t *testing.T) {
	_, engine := recommendFixture(t)

	// b3 scores 1/(1+3) + 0.5 interest + 0.3*(1/2) popularity = 0.90,
	// b2 scores 1/(1+3) + 0.3*(2/2) = 0.55. b1 is excluded by history.
	assert.Equal(t, []string{"b3", "b2"}, engine.Recommend("alice", 2))
	assert.Equal(t, []string{"b3"}, engine.Recommend("alice", 1))
}

func TestRecommendFillsWithPopularFallback(t *testing.T) {
	_, engine := recommendFixture(t)

	// b4 and b5 are unreachable from alice; both score zero and fall back
	// in id order after the graph candidates.
	assert.Equal(t, []string{"b3", "b2", "b4", "b5"}, engine.Recommend("alice", 5))
}

func TestRecommendExcludesHistoryAndHeldBooks(t *testing.T) {
	c, engine := recommendFixture(t)

	results := engine.Recommend("alice", 10)
	assert.NotContains(t, results, "b1", "previously borrowed books are never recommended")

	_, err := c.Borrow("alice", "b4")
	require.NoError(t, err)
	assert.NotContains(t, engine.Recommend("alice", 10), "b4", "currently held books are never recommended")
}

func TestRecommendIsolatedUserGetsPopularityOnly(t *testing.T) {
	c, engine := recommendFixture(t)
	c.AddUser(NewUser("dave", "Dave"))

	// No edges, no interests: pure popularity with id tie-breaks.
	assert.Equal(t, []string{"b1", "b2", "b3", "b4", "b5"}, engine.Recommend("dave", 5))
}

func TestRecommendUnknownUserAndBadLimit(t *testing.T) {
	_, engine := recommendFixture(t)

	assert.Nil(t, engine.Recommend("nobody", 5))
	assert.Nil(t, engine.Recommend("alice", 0))
	assert.Nil(t, engine.Recommend("alice", -1))
}

func TestRecommendEmptyCatalog(t *testing.T) {
	c := NewBorrowCoordinator(zerolog.Nop())
	c.AddUser(NewUser("alice", "Alice"))
	engine, err := NewRecommendationEngine(c, DefaultRecommendConfig(), zerolog.Nop())
	require.NoError(t, err)

	assert.Empty(t, engine.Recommend("alice", 5))
}

func TestRecommendDeterministic(t *testing.T) {
	_, engine := recommendFixture(t)

	first := engine.Recommend("alice", 5)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, engine.Recommend("alice", 5))
	}
}

func TestRecommendMaxHopsBoundsCandidates(t *testing.T) {
	c, _ := recommendFixture(t)

	// One hop reaches only alice's own history, so everything comes from
	// the fallback, where b3 wins on the interest match.
	cfg := DefaultRecommendConfig()
	cfg.MaxHops = 1
	engine, err := NewRecommendationEngine(c, cfg, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"b3", "b2", "b4", "b5"}, engine.Recommend("alice", 5))
}

func TestNewRecommendationEngineRejectsInvalidConfig(t *testing.T) {
	c := NewBorrowCoordinator(zerolog.Nop())

	bad := DefaultRecommendConfig()
	bad.MaxHops = 0
	_, err := NewRecommendationEngine(c, bad, zerolog.Nop())
	assert.Error(t, err)

	bad = DefaultRecommendConfig()
	bad.ProximityWeight = -1
	_, err = NewRecommendationEngine(c, bad, zerolog.Nop())
	assert.Error(t, err)
}
