package library

import "strings"

const (
	userNodePrefix = "user:"
	bookNodePrefix = "book:"
)

// UserNode returns the graph node id for a user.
func UserNode(userID string) string { return userNodePrefix + userID }

// BookNode returns the graph node id for a book.
func BookNode(bookID string) string { return bookNodePrefix + bookID }

// IsBookNode reports whether a node id belongs to the book namespace.
func IsBookNode(node string) bool { return strings.HasPrefix(node, bookNodePrefix) }

// BookIDFromNode strips the book namespace prefix from a node id.
func BookIDFromNode(node string) string { return strings.TrimPrefix(node, bookNodePrefix) }

// InteractionGraph is an undirected graph recording which users have borrowed
// which books. Nodes are namespaced string ids ("user:<id>", "book:<id>") so
// the two id spaces cannot collide. Edges carry no weight, only presence, and
// are never removed: the graph is an interaction history, not a record of
// current loans.
//
// Neighbor lists preserve edge insertion order, which makes BFS sibling order
// deterministic. Downstream ranking relies on that stability for tie-breaks.
type InteractionGraph struct {
	adj   map[string][]string
	edges map[string]map[string]bool
}

// NewInteractionGraph returns an empty graph.
func NewInteractionGraph() *InteractionGraph {
	return &InteractionGraph{
		adj:   make(map[string][]string),
		edges: make(map[string]map[string]bool),
	}
}

// AddNode ensures a node exists in the adjacency map.
func (g *InteractionGraph) AddNode(node string) {
	if _, ok := g.edges[node]; ok {
		return
	}
	g.adj[node] = nil
	g.edges[node] = make(map[string]bool)
}

// AddEdge records an undirected edge between two nodes, creating the nodes if
// needed. Self-loops are ignored. The operation is idempotent: adding an
// existing edge changes nothing.
func (g *InteractionGraph) AddEdge(a, b string) {
	if a == b {
		return
	}
	g.AddNode(a)
	g.AddNode(b)
	if g.edges[a][b] {
		return
	}
	g.edges[a][b] = true
	g.edges[b][a] = true
	g.adj[a] = append(g.adj[a], b)
	g.adj[b] = append(g.adj[b], a)
}

// HasEdge reports whether an edge exists between two nodes.
func (g *InteractionGraph) HasEdge(a, b string) bool { return g.edges[a][b] }

// Neighbors returns the nodes adjacent to node in edge insertion order. An
// unknown node yields an empty slice, not an error.
func (g *InteractionGraph) Neighbors(node string) []string {
	neighbors := make([]string, len(g.adj[node]))
	copy(neighbors, g.adj[node])
	return neighbors
}

// BookDistance pairs a book id with its shortest hop distance from a BFS
// start node.
type BookDistance struct {
	BookID string
	Hops   int
}

// BooksWithinDistance runs a breadth-first traversal from the user's node and
// returns every book node reachable within maxHops edges, tagged with its
// shortest distance. One hop reaches books the user borrowed, two hops their
// co-borrowers, three hops the books those co-borrowers borrowed. A visited
// set guarantees each node is reported once, at its shortest distance, and
// results follow BFS order so output is deterministic for a given edge
// insertion order. An unknown user yields an empty slice.
func (g *InteractionGraph) BooksWithinDistance(userID string, maxHops int) []BookDistance {
	start := UserNode(userID)
	if _, ok := g.edges[start]; !ok {
		return nil
	}

	type hop struct {
		node string
		dist int
	}

	visited := map[string]bool{start: true}
	frontier := NewQueue[hop]()
	frontier.Enqueue(hop{node: start, dist: 0})

	var books []BookDistance
	for !frontier.IsEmpty() {
		current, _ := frontier.Dequeue()
		if IsBookNode(current.node) {
			books = append(books, BookDistance{BookID: BookIDFromNode(current.node), Hops: current.dist})
		}
		if current.dist >= maxHops {
			continue
		}
		for _, neighbor := range g.adj[current.node] {
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			frontier.Enqueue(hop{node: neighbor, dist: current.dist + 1})
		}
	}
	return books
}

// Adjacency returns a copy of the adjacency map with neighbor lists in edge
// insertion order. This is the shape the persistence layer stores.
func (g *InteractionGraph) Adjacency() map[string][]string {
	adjacency := make(map[string][]string, len(g.adj))
	for node, neighbors := range g.adj {
		adjacency[node] = append([]string(nil), neighbors...)
	}
	return adjacency
}

// GraphFromAdjacency rebuilds a graph from a stored adjacency map, keeping
// each neighbor list in its stored order so BFS sibling order survives a
// save/load cycle. Self-loops and duplicate neighbors are dropped.
func GraphFromAdjacency(adjacency map[string][]string) *InteractionGraph {
	g := NewInteractionGraph()
	for node, neighbors := range adjacency {
		g.AddNode(node)
		for _, neighbor := range neighbors {
			g.AddNode(neighbor)
		}
	}
	for node, neighbors := range adjacency {
		for _, neighbor := range neighbors {
			if neighbor == node || g.edges[node][neighbor] {
				continue
			}
			g.edges[node][neighbor] = true
			g.adj[node] = append(g.adj[node], neighbor)
		}
	}
	return g
}

// NodeCount returns the number of nodes in the graph.
func (g *InteractionGraph) NodeCount() int { return len(g.edges) }
