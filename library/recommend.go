package library

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// RecommendConfig holds the scoring weights and traversal bound for the
// recommendation engine. Keeping them in an explicit validated struct makes
// ranking behavior tunable and deterministic under test.
type RecommendConfig struct {
	// ProximityWeight scales the graph-proximity sub-score 1/(1+hops).
	ProximityWeight float64 `koanf:"proximity_weight" validate:"gte=0"`
	// InterestWeight scales the binary genre/interest match sub-score.
	InterestWeight float64 `koanf:"interest_weight" validate:"gte=0"`
	// PopularityWeight scales borrow count normalized to the catalog maximum.
	PopularityWeight float64 `koanf:"popularity_weight" validate:"gte=0"`
	// MaxHops bounds the BFS candidate search in the interaction graph.
	MaxHops int `koanf:"max_hops" validate:"gte=1,lte=6"`
}

// DefaultRecommendConfig returns the weights used when no configuration is
// supplied.
func DefaultRecommendConfig() RecommendConfig {
	return RecommendConfig{
		ProximityWeight:  1.0,
		InterestWeight:   0.5,
		PopularityWeight: 0.3,
		MaxHops:          3,
	}
}

// RecommendationEngine ranks books for a user by combining interaction-graph
// proximity, declared interests and global popularity. It only reads the
// coordinator's state; all mutation stays with the coordinator.
type RecommendationEngine struct {
	coordinator *BorrowCoordinator
	config      RecommendConfig
	logger      zerolog.Logger
}

// NewRecommendationEngine validates the config and builds an engine over the
// coordinator's graph and catalog.
func NewRecommendationEngine(coordinator *BorrowCoordinator, config RecommendConfig, logger zerolog.Logger) (*RecommendationEngine, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid recommend config: %w", err)
	}
	return &RecommendationEngine{
		coordinator: coordinator,
		config:      config,
		logger:      logger.With().Str("component", "recommend").Logger(),
	}, nil
}

// scoredBook is a ranking candidate. Hops is 0 for popularity-fallback
// entries, which never outrank graph candidates because they are appended
// after them.
type scoredBook struct {
	book  *Book
	score float64
}

// Recommend returns up to limit book ids the user has never borrowed, best
// candidates first. Graph-derived candidates are ranked by
//
//	score = w1*proximity + w2*interestMatch + w3*normalizedPopularity
//
// with ties broken by borrow count descending, then book id ascending. When
// the graph yields fewer than limit candidates, the globally most popular
// unseen books are appended. The call never fails: an unknown user, an
// isolated user or an empty catalog simply produce fewer (or zero) results.
func (e *RecommendationEngine) Recommend(userID string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	user, ok := e.coordinator.User(userID)
	if !ok {
		return nil
	}

	maxBorrowCount := 0
	for _, book := range e.coordinator.Books() {
		if book.BorrowCount > maxBorrowCount {
			maxBorrowCount = book.BorrowCount
		}
	}

	graph := e.coordinator.Graph()
	candidates := make([]scoredBook, 0)
	seen := make(map[string]bool)
	for _, reached := range graph.BooksWithinDistance(userID, e.config.MaxHops) {
		if seen[reached.BookID] {
			continue
		}
		seen[reached.BookID] = true
		book, ok := e.excludableBook(user, reached.BookID)
		if !ok {
			continue
		}
		score := e.config.ProximityWeight / float64(1+reached.Hops)
		score += e.interestScore(user, book)
		score += e.popularityScore(book, maxBorrowCount)
		candidates = append(candidates, scoredBook{book: book, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].book.BorrowCount != candidates[j].book.BorrowCount {
			return candidates[i].book.BorrowCount > candidates[j].book.BorrowCount
		}
		return candidates[i].book.ID < candidates[j].book.ID
	})

	results := make([]string, 0, limit)
	for _, candidate := range candidates {
		if len(results) == limit {
			break
		}
		results = append(results, candidate.book.ID)
	}

	if len(results) < limit {
		results = e.appendPopularFallback(user, seen, results, limit, maxBorrowCount)
	}

	e.logger.Debug().Str("user", userID).Int("results", len(results)).Msg("recommendations computed")
	return results
}

// appendPopularFallback fills remaining slots with the most popular books the
// user has not seen, keeping the same exclusions and ordering rules.
func (e *RecommendationEngine) appendPopularFallback(user *User, seen map[string]bool, results []string, limit, maxBorrowCount int) []string {
	fallback := make([]scoredBook, 0)
	for _, book := range e.coordinator.Books() {
		if seen[book.ID] {
			continue
		}
		candidate, ok := e.excludableBook(user, book.ID)
		if !ok {
			continue
		}
		score := e.interestScore(user, candidate) + e.popularityScore(candidate, maxBorrowCount)
		fallback = append(fallback, scoredBook{book: candidate, score: score})
	}
	sort.SliceStable(fallback, func(i, j int) bool {
		if fallback[i].score != fallback[j].score {
			return fallback[i].score > fallback[j].score
		}
		if fallback[i].book.BorrowCount != fallback[j].book.BorrowCount {
			return fallback[i].book.BorrowCount > fallback[j].book.BorrowCount
		}
		return fallback[i].book.ID < fallback[j].book.ID
	})
	for _, candidate := range fallback {
		if len(results) == limit {
			break
		}
		results = append(results, candidate.book.ID)
	}
	return results
}

// excludableBook resolves a candidate id and applies the exclusion rules:
// recommendations must be new to the user, so currently held books and books
// with an existing interaction edge are out.
func (e *RecommendationEngine) excludableBook(user *User, bookID string) (*Book, bool) {
	book, ok := e.coordinator.Book(bookID)
	if !ok {
		return nil, false
	}
	if user.Holds(bookID) {
		return nil, false
	}
	if e.coordinator.Graph().HasEdge(UserNode(user.ID), BookNode(bookID)) {
		return nil, false
	}
	return book, true
}

func (e *RecommendationEngine) interestScore(user *User, book *Book) float64 {
	if user.HasInterest(book.Genre) {
		return e.config.InterestWeight
	}
	return 0
}

func (e *RecommendationEngine) popularityScore(book *Book, maxBorrowCount int) float64 {
	if maxBorrowCount == 0 {
		return 0
	}
	return e.config.PopularityWeight * float64(book.BorrowCount) / float64(maxBorrowCount)
}
