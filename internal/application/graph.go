package application

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ahrav/go-gavel/internal/domain"
)

// Sentinel errors surfaced on edge rejection and storage access, per
// spec.md §7 (EdgeRejected{cycle|io_mismatch}, OutOfRangeId, PortMissing).
var (
	ErrOutOfRange      = errors.New("node or batch id out of range")
	ErrWouldCycle      = errors.New("edge would create a cycle")
	ErrIOMismatch      = errors.New("no shared port name between source outputs and target inputs")
	ErrPortOwnership   = errors.New("input port already claimed by another predecessor")
	ErrStorageNotReady = errors.New("storage not initialized")
)

// Graph holds a dense, index-keyed sequence of Graph Nodes (a node's
// identity is its insertion index, stable for the graph's lifetime), a
// square boolean adjacency matrix, a derived root list, and the
// per-execution 3-level port storage: store[nodeID][batchID][portName].
//
// Grounded on internal/application/dag.go's Graph (tentative-edge cycle
// check with DFS coloring, AddEdge rollback), generalized from a
// string-keyed adjacency list to an index-keyed boolean matrix and from
// sequential TopologicalSort execution to a readiness-oracle-driven
// store, per spec.md §3–§4.2.
type Graph struct {
	mu    sync.RWMutex
	nodes []*Node
	adj   [][]bool
	roots []int

	storeMu    sync.Mutex // guards store and numBatches; see spec.md §5 option (b)
	store      [][]map[string]domain.MiniBatch
	numBatches int
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{}
}

// AddNode appends the node, returning its stable index. The adjacency
// matrix grows by one row and one column (both false); if storage was
// already initialized, a new per-node slot is grown (with one empty
// batch map per existing batch); the root list is recomputed.
func (g *Graph) AddNode(n *Node) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := len(g.nodes)
	g.nodes = append(g.nodes, n)

	for i := range g.adj {
		g.adj[i] = append(g.adj[i], false)
	}
	g.adj = append(g.adj, make([]bool, len(g.nodes)))

	g.storeMu.Lock()
	if g.numBatches > 0 {
		batches := make([]map[string]domain.MiniBatch, g.numBatches)
		for b := range batches {
			batches[b] = defaultPortMap(n)
		}
		g.store = append(g.store, batches)
	}
	g.storeMu.Unlock()

	g.recomputeRootsLocked()
	return id
}

// AddEdge records a directed edge from -> to. It rejects (returning
// false) unless both indices are in range, the edge would not create a
// cycle, at least one output port name of from equals an input port
// name of to (IO-compat, §4.4), and no other existing predecessor of to
// already supplies one of those shared port names (§9's port-ownership
// tightening of the propagate-write race). On success the edge is
// recorded and the root list is recomputed; on failure the graph is
// left byte-identical to before the call.
func (g *Graph) AddEdge(from, to int) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if from < 0 || from >= len(g.nodes) || to < 0 || to >= len(g.nodes) {
		return false, fmt.Errorf("add edge %d->%d: %w", from, to, ErrOutOfRange)
	}
	if from == to {
		return false, fmt.Errorf("add edge %d->%d: %w", from, to, ErrWouldCycle)
	}
	if g.adj[from][to] {
		return false, fmt.Errorf("add edge %d->%d: edge already exists", from, to)
	}

	shared := sharedPortNames(g.nodes[from], g.nodes[to])
	if len(shared) == 0 {
		return false, fmt.Errorf("add edge %d->%d: %w", from, to, ErrIOMismatch)
	}

	if owner := g.conflictingPredecessorLocked(from, to, shared); owner != -1 {
		return false, fmt.Errorf("add edge %d->%d: node %d already supplies that port: %w", from, to, owner, ErrPortOwnership)
	}

	g.adj[from][to] = true
	if g.hasCycleLocked() {
		g.adj[from][to] = false
		return false, fmt.Errorf("add edge %d->%d: %w", from, to, ErrWouldCycle)
	}

	g.recomputeRootsLocked()
	return true, nil
}

// conflictingPredecessorLocked returns the index of an existing
// predecessor of `to` (other than `from`) whose shared output/input
// port names overlap with `shared`, or -1 if none.
func (g *Graph) conflictingPredecessorLocked(from, to int, shared map[string]struct{}) int {
	for k := range g.nodes {
		if k == from || !g.adj[k][to] {
			continue
		}
		for name := range sharedPortNames(g.nodes[k], g.nodes[to]) {
			if _, ok := shared[name]; ok {
				return k
			}
		}
	}
	return -1
}

func sharedPortNames(from, to *Node) map[string]struct{} {
	outs := from.OutputNames()
	inSet := make(map[string]struct{}, len(to.InputNames()))
	for _, name := range to.InputNames() {
		inSet[name] = struct{}{}
	}
	shared := make(map[string]struct{})
	for _, name := range outs {
		if _, ok := inSet[name]; ok {
			shared[name] = struct{}{}
		}
	}
	return shared
}

// HasCycle reports whether the graph currently contains a cycle. It
// should always be false after a sequence of accepted AddEdge calls.
func (g *Graph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked runs DFS with visited/on-stack coloring over the whole
// graph in O(V+E), visiting neighbors in ascending target index order
// so behavior is deterministic. Must be called with g.mu held.
func (g *Graph) hasCycleLocked() bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(g.nodes))

	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for v := 0; v < len(g.nodes); v++ {
			if !g.adj[u][v] {
				continue
			}
			if color[v] == gray {
				return true
			}
			if color[v] == white && dfs(v) {
				return true
			}
		}
		color[u] = black
		return false
	}

	for u := range g.nodes {
		if color[u] == white && dfs(u) {
			return true
		}
	}
	return false
}

// recomputeRootsLocked rebuilds the root list: a node is a root iff its
// column in the adjacency matrix is all false. Must be called with g.mu
// held. The list is kept in ascending index order.
func (g *Graph) recomputeRootsLocked() {
	roots := make([]int, 0, len(g.nodes))
	for j := range g.nodes {
		isRoot := true
		for i := range g.nodes {
			if g.adj[i][j] {
				isRoot = false
				break
			}
		}
		if isRoot {
			roots = append(roots, j)
		}
	}
	g.roots = roots
}

// Size returns the number of nodes in the graph.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeExists reports whether an edge from -> to is currently recorded.
func (g *Graph) EdgeExists(from, to int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if from < 0 || from >= len(g.nodes) || to < 0 || to >= len(g.nodes) {
		return false
	}
	return g.adj[from][to]
}

// IsRoot reports whether node id has no incoming edges.
func (g *Graph) IsRoot(id int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, r := range g.roots {
		if r == id {
			return true
		}
	}
	return false
}

// GetRootNodes returns the root indices in ascending order.
func (g *Graph) GetRootNodes() []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]int, len(g.roots))
	copy(out, g.roots)
	return out
}

// Node returns the node at the given index.
func (g *Graph) Node(id int) (*Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if id < 0 || id >= len(g.nodes) {
		return nil, fmt.Errorf("node %d: %w", id, ErrOutOfRange)
	}
	return g.nodes[id], nil
}

// FindNode returns the index of the node whose ID() matches id, or -1
// if no node carries that ID. Node identity is the insertion index
// (§3), so this is a linear scan over the declared IDs, not a field
// lookup; callers that need repeated lookups (the declarative loader)
// keep their own id-to-index map instead of calling this in a loop.
func (g *Graph) FindNode(id string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for i, n := range g.nodes {
		if n.ID() == id {
			return i
		}
	}
	return -1
}

// Downstream returns the indices m for which an edge id -> m exists, in
// ascending order.
func (g *Graph) Downstream(id int) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []int
	for j := range g.nodes {
		if g.adj[id][j] {
			out = append(out, j)
		}
	}
	return out
}

func defaultPortMap(n *Node) map[string]domain.MiniBatch {
	m := make(map[string]domain.MiniBatch)
	for _, name := range n.InputNames() {
		m[name] = domain.NewMiniBatch(name)
	}
	for _, name := range n.OutputNames() {
		m[name] = domain.NewMiniBatch(name)
	}
	return m
}

// InitStorage prepares per-execution port storage for numBatches
// batches. Postconditions: store[i] has length numBatches for every
// node i; every batch map contains one entry per input and output port
// of its owning node, defaulting to empty Mini-Batches unless already
// seeded. Calling InitStorage again with the same or a smaller
// numBatches leaves the shape unchanged; a larger value grows every
// node's storage to the new count. Already-seeded Mini-Batches are
// preserved in either case.
func (g *Graph) InitStorage(numBatches int) {
	g.mu.RLock()
	nodes := g.nodes
	g.mu.RUnlock()

	g.storeMu.Lock()
	defer g.storeMu.Unlock()

	if numBatches > g.numBatches {
		g.numBatches = numBatches
	}

	if g.store == nil {
		g.store = make([][]map[string]domain.MiniBatch, len(nodes))
	}
	for i, n := range nodes {
		if len(g.store[i]) < g.numBatches {
			grown := make([]map[string]domain.MiniBatch, g.numBatches)
			copy(grown, g.store[i])
			for b := len(g.store[i]); b < g.numBatches; b++ {
				grown[b] = defaultPortMap(n)
			}
			g.store[i] = grown
		}
		for b := 0; b < g.numBatches; b++ {
			if g.store[i][b] == nil {
				g.store[i][b] = defaultPortMap(n)
				continue
			}
			for _, name := range n.InputNames() {
				if _, ok := g.store[i][b][name]; !ok {
					g.store[i][b][name] = domain.NewMiniBatch(name)
				}
			}
			for _, name := range n.OutputNames() {
				if _, ok := g.store[i][b][name]; !ok {
					g.store[i][b][name] = domain.NewMiniBatch(name)
				}
			}
		}
	}
}

// SeedMiniBatch installs b at store[nodeID][batchID][port], overwriting
// whatever was there. Callers use it to seed root nodes' inputs before
// Executor.Run; the Executor itself publishes downstream values with
// AppendCell.
func (g *Graph) SeedMiniBatch(nodeID, batchID int, port string, b domain.MiniBatch) error {
	g.storeMu.Lock()
	defer g.storeMu.Unlock()
	if err := g.checkBoundsLocked(nodeID, batchID); err != nil {
		return err
	}
	if g.store[nodeID][batchID] == nil {
		g.store[nodeID][batchID] = make(map[string]domain.MiniBatch)
	}
	g.store[nodeID][batchID][port] = b
	return nil
}

// GetMiniBatch returns the Mini-Batch at store[nodeID][batchID][port],
// creating an empty slot on miss for defensive use. It never reshapes
// the outer per-node/per-batch vectors.
func (g *Graph) GetMiniBatch(nodeID, batchID int, port string) (domain.MiniBatch, error) {
	g.storeMu.Lock()
	defer g.storeMu.Unlock()
	if err := g.checkBoundsLocked(nodeID, batchID); err != nil {
		return domain.MiniBatch{}, err
	}
	if g.store[nodeID][batchID] == nil {
		g.store[nodeID][batchID] = make(map[string]domain.MiniBatch)
	}
	b, ok := g.store[nodeID][batchID][port]
	if !ok {
		b = domain.NewMiniBatch(port)
		g.store[nodeID][batchID][port] = b
	}
	return b, nil
}

func (g *Graph) checkBoundsLocked(nodeID, batchID int) error {
	if nodeID < 0 || nodeID >= len(g.store) {
		return fmt.Errorf("node %d: %w", nodeID, ErrOutOfRange)
	}
	if batchID < 0 || batchID >= len(g.store[nodeID]) {
		return fmt.Errorf("batch %d: %w", batchID, ErrOutOfRange)
	}
	return nil
}

// IsReady reports whether every input port of nodeID holds at least one
// Cell for batchID. Existence of the slot is necessary but not
// sufficient: an empty default slot does not satisfy readiness, per
// spec.md §4.2's tightened oracle.
func (g *Graph) IsReady(nodeID, batchID int) (bool, error) {
	g.mu.RLock()
	if nodeID < 0 || nodeID >= len(g.nodes) {
		g.mu.RUnlock()
		return false, fmt.Errorf("node %d: %w", nodeID, ErrOutOfRange)
	}
	inputNames := g.nodes[nodeID].InputNames()
	g.mu.RUnlock()

	g.storeMu.Lock()
	defer g.storeMu.Unlock()
	if err := g.checkBoundsLocked(nodeID, batchID); err != nil {
		return false, err
	}
	batch := g.store[nodeID][batchID]
	for _, name := range inputNames {
		b, ok := batch[name]
		if !ok || b.Len() == 0 {
			return false, nil
		}
	}
	return true, nil
}

// AppendCell appends c to store[nodeID][batchID][port], creating the
// slot on miss.
func (g *Graph) AppendCell(nodeID, batchID int, port string, c domain.Cell) error {
	g.storeMu.Lock()
	defer g.storeMu.Unlock()
	if err := g.checkBoundsLocked(nodeID, batchID); err != nil {
		return err
	}
	if g.store[nodeID][batchID] == nil {
		g.store[nodeID][batchID] = make(map[string]domain.MiniBatch)
	}
	b := g.store[nodeID][batchID][port]
	if b.Name() == "" {
		b.SetName(port)
	}
	b.Append(c)
	g.store[nodeID][batchID][port] = b
	return nil
}
