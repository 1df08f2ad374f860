// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer. These
// interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/go-gavel/internal/domain"
)

// Placement identifies where a Graph Node's body runs.
type Placement int

const (
	// CPU runs the node body in-process, synchronously, on the worker
	// goroutine that picked up the task.
	CPU Placement = iota
	// Device runs the node body by handing data off-process to an
	// accelerator or external compute resource (e.g. a GPU kernel
	// launcher, or — as this repository's concrete device-offload
	// bodies do — an LLM completion call). The core engine does not
	// constrain how the body does this beyond requiring it to return
	// with outputs populated.
	Device
)

// String returns the canonical lowercase name of the Placement.
func (p Placement) String() string {
	switch p {
	case CPU:
		return "cpu"
	case Device:
		return "device"
	default:
		return "unknown"
	}
}

// NodeBody is the user-supplied processing logic of a Graph Node. It
// reads the input port map and writes the output port map. Ports the
// body does not write remain at their previous value. A nil NodeBody
// makes the owning node's Execute a no-op.
//
// Implementations must be safe for concurrent use across different
// (node, batch) tasks — the engine never invokes the same node's body
// concurrently for the same (node, batch) pair, but distinct batches of
// the same node may run concurrently on distinct goroutines.
type NodeBody interface {
	// Run executes the body's transformation, reading inputs and
	// writing outputs in place. The context carries cancellation and
	// deadlines for device-offload bodies that perform I/O.
	Run(ctx context.Context, inputs map[string]domain.Cell, outputs map[string]domain.Cell) error
}

// NodeBodyFunc is a function adapter that implements NodeBody, mirroring
// the common "plain function as interface value" idiom.
type NodeBodyFunc func(ctx context.Context, inputs map[string]domain.Cell, outputs map[string]domain.Cell) error

// Run implements NodeBody for NodeBodyFunc.
func (f NodeBodyFunc) Run(ctx context.Context, inputs map[string]domain.Cell, outputs map[string]domain.Cell) error {
	return f(ctx, inputs, outputs)
}

// NodeBodyFactory creates a NodeBody from type-specific configuration.
// Each node-body type registered with a NodeBodyRegistry provides one of
// these.
type NodeBodyFactory func(id string, config map[string]any, llm LLMClient) (NodeBody, error)

// NodeBodyRegistry manages node-body factories keyed by type name, used
// by the declarative YAML graph loader to instantiate node bodies named
// in a graph specification.
type NodeBodyRegistry interface {
	// CreateBody creates a new NodeBody instance based on the provided
	// type and configuration.
	CreateBody(bodyType string, id string, config map[string]any) (NodeBody, error)

	// RegisterBodyFactory registers a factory function for a specific
	// node-body type.
	RegisterBodyFactory(bodyType string, factory NodeBodyFactory) error

	// SupportedTypes returns all registered node-body type names.
	SupportedTypes() []string
}
