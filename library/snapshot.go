package library

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

// snapshotVersion guards against loading state written by an incompatible
// build.
const snapshotVersion = 1

var snapshotJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Snapshot is the serialized borrowing state the catalog store does not
// carry: backlog queue contents in order, the interaction graph adjacency,
// and the borrow counters. Together with the book and user catalogs it fully
// reconstructs a coordinator.
type Snapshot struct {
	Version      int                        `json:"version"`
	Queues       map[string][]BorrowRequest `json:"queues"`
	Adjacency    map[string][]string        `json:"adjacency"`
	BorrowCounts map[string]int             `json:"borrow_counts"`
}

// Validate ensures the snapshot can be applied to a coordinator.
func (s *Snapshot) Validate() error {
	if s.Version != snapshotVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidSnapshot, s.Version)
	}
	return nil
}

// ExportSnapshot captures the coordinator's borrowing state.
func (c *BorrowCoordinator) ExportSnapshot() *Snapshot {
	snapshot := &Snapshot{
		Version:      snapshotVersion,
		Queues:       make(map[string][]BorrowRequest),
		Adjacency:    c.graph.Adjacency(),
		BorrowCounts: make(map[string]int, len(c.books)),
	}
	for bookID, backlog := range c.backlogs {
		if backlog.IsEmpty() {
			continue
		}
		snapshot.Queues[bookID] = backlog.Items()
	}
	for bookID, book := range c.books {
		snapshot.BorrowCounts[bookID] = book.BorrowCount
	}
	return snapshot
}

// RestoreSnapshot replaces the coordinator's backlogs, graph and borrow
// counters with the snapshot's contents. The book and user catalogs must be
// loaded first; queue entries and counters referencing unknown books are
// dropped, matching the best-effort reconciliation on return.
func (c *BorrowCoordinator) RestoreSnapshot(snapshot *Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	c.backlogs = make(map[string]*Queue[BorrowRequest])
	for bookID, requests := range snapshot.Queues {
		if _, ok := c.books[bookID]; !ok {
			c.logger.Warn().Str("book", bookID).Msg("dropping backlog for unknown book")
			continue
		}
		backlog := NewQueue[BorrowRequest]()
		for _, request := range requests {
			backlog.Enqueue(request)
		}
		c.backlogs[bookID] = backlog
	}

	c.graph = GraphFromAdjacency(snapshot.Adjacency)
	for bookID := range c.books {
		c.graph.AddNode(BookNode(bookID))
	}
	for userID := range c.users {
		c.graph.AddNode(UserNode(userID))
	}

	for bookID, count := range snapshot.BorrowCounts {
		if book, ok := c.books[bookID]; ok {
			book.BorrowCount = count
		}
	}
	return nil
}

// WriteSnapshot serializes a snapshot to path, creating parent directories on
// first run.
func WriteSnapshot(path string, snapshot *Snapshot) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	data, err := snapshotJSON.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot from path. A missing file is not an error:
// it simply means a fresh state, so both return values are nil.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if !snapshotJSON.Valid(data) {
		return nil, ErrInvalidSnapshot
	}
	var snapshot Snapshot
	if err := snapshotJSON.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	return &snapshot, nil
}
