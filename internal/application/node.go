package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/ahrav/go-gavel/internal/domain"
	"github.com/ahrav/go-gavel/internal/ports"
)

// Node is a Graph Node: a compute-placement tag, its declared input and
// output port names with their default-valued Cells, and a processing
// body per placement. Nodes are value entities at registration time —
// Graph.AddNode moves them into the graph, which then owns them by
// stable index.
//
// A Node carries no per-execution input/output state: distinct
// (node, batch) tasks for the same node run concurrently on distinct
// goroutines (per ports.NodeBody's concurrency contract), so Execute
// takes its inputs as a parameter and returns freshly allocated outputs
// rather than mutating anything shared. inputDefaults/outputDefaults
// are written once while the graph is being built and read thereafter;
// the RWMutex guards against that narrow build/run overlap, not against
// concurrent executions of the node.
//
// Grounded on ports/unit.go's Name/Execute shape and dag.go's
// mutex-guarded mutable component pattern, narrowed to the port-map
// model spec.md §4.3 requires.
type Node struct {
	id        string
	placement ports.Placement

	mu             sync.RWMutex
	inputDefaults  map[string]domain.Cell
	outputDefaults map[string]domain.Cell

	bodies map[ports.Placement]ports.NodeBody
}

// NewNode creates a Graph Node with the given identifier and default
// compute placement. Use SetBody to register a body for that
// placement before adding the node to a Graph.
func NewNode(id string, placement ports.Placement) *Node {
	return &Node{
		id:             id,
		placement:      placement,
		inputDefaults:  make(map[string]domain.Cell),
		outputDefaults: make(map[string]domain.Cell),
		bodies:         make(map[ports.Placement]ports.NodeBody),
	}
}

// ID returns the node's identifier. Note: the node's identity within a
// Graph is its insertion index (see Graph.AddNode); ID is a separate,
// user-facing label used for diagnostics and declarative configuration.
func (n *Node) ID() string { return n.id }

// Placement returns the node's compute-placement tag.
func (n *Node) Placement() ports.Placement { return n.placement }

// AddInput declares an input port, seeding it with a default-valued Cell.
func (n *Node) AddInput(name string, def domain.Cell) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.inputDefaults[name] = def
}

// AddOutput declares an output port, seeding it with a default-valued Cell.
func (n *Node) AddOutput(name string, def domain.Cell) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outputDefaults[name] = def
}

// InputNames returns the declared input port names, in no particular order.
func (n *Node) InputNames() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.inputDefaults))
	for name := range n.inputDefaults {
		names = append(names, name)
	}
	return names
}

// OutputNames returns the declared output port names, in no particular order.
func (n *Node) OutputNames() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.outputDefaults))
	for name := range n.outputDefaults {
		names = append(names, name)
	}
	return names
}

// SetBody registers the processing body invoked for the given placement.
// A node carries at most one body per placement; a later call for the
// same placement replaces the earlier one.
func (n *Node) SetBody(placement ports.Placement, body ports.NodeBody) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bodies[placement] = body
}

// Execute invokes the body registered for the node's own placement tag
// against the given inputs, returning a freshly allocated outputs map
// seeded from the node's declared output defaults. If no body is
// registered, Execute is a no-op that returns the defaults unchanged.
// Ports the body does not write remain at their default value.
//
// inputs and the returned outputs belong solely to this call: Execute
// neither reads nor writes any state shared with a concurrent Execute
// of the same node for a different batch or cell position, so callers
// may invoke it concurrently without synchronization of their own.
func (n *Node) Execute(ctx context.Context, inputs map[string]domain.Cell) (map[string]domain.Cell, error) {
	n.mu.RLock()
	body := n.bodies[n.placement]
	outputs := cloneCells(n.outputDefaults)
	n.mu.RUnlock()

	if body == nil {
		return outputs, nil
	}

	if err := body.Run(ctx, inputs, outputs); err != nil {
		return nil, fmt.Errorf("node %s: body execution failed: %w", n.id, err)
	}
	return outputs, nil
}

func cloneCells(m map[string]domain.Cell) map[string]domain.Cell {
	out := make(map[string]domain.Cell, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
