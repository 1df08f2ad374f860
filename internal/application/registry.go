package application

import (
	"fmt"
	"sync"

	"github.com/ahrav/go-gavel/infrastructure/nodebodies"
	"github.com/ahrav/go-gavel/internal/ports"
)

// Registry manages node-body factories and their shared dependencies.
// It implements ports.NodeBodyRegistry for the declarative YAML graph
// loader. The zero value is not usable; use NewRegistry.
//
// Grounded on infrastructure/units' former Registry (factory map keyed
// by type name, panics on duplicate registration, returns descriptive
// errors on unknown type), narrowed to the ports.NodeBodyRegistry
// contract.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ports.NodeBodyFactory
	llmClient ports.LLMClient
}

// NewRegistry creates a registry bound to an optional LLM client. Pass
// nil if only deterministic (non-device) node bodies will be used.
func NewRegistry(llmClient ports.LLMClient) *Registry {
	return &Registry{
		factories: make(map[string]ports.NodeBodyFactory),
		llmClient: llmClient,
	}
}

// RegisterBodyFactory adds a factory for a node-body type. It panics if
// bodyType is already registered: a duplicate registration indicates a
// programming error that should fail fast during initialization, not
// silently overwrite an existing factory.
func (r *Registry) RegisterBodyFactory(bodyType string, factory ports.NodeBodyFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[bodyType]; exists {
		panic(fmt.Sprintf("node body type %q already registered", bodyType))
	}
	r.factories[bodyType] = factory
	return nil
}

// CreateBody instantiates a node body using the registered factory for
// bodyType, passing along the registry's shared LLM client.
func (r *Registry) CreateBody(bodyType string, id string, config map[string]any) (ports.NodeBody, error) {
	if id == "" {
		return nil, fmt.Errorf("node body id cannot be empty")
	}

	r.mu.RLock()
	factory, exists := r.factories[bodyType]
	llm := r.llmClient
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown node body type: %s", bodyType)
	}
	return factory(id, config, llm)
}

// SupportedTypes returns the registered node-body type names. The
// returned slice is a copy and safe to modify.
func (r *Registry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	return types
}

// RegisterBuiltinBodies registers every node-body type this repository
// ships: the deterministic matching and pooling bodies, plus the LLM
// device-offload body (registered three times under the names the
// teacher's units used, since each differs only in prompt/parse
// configuration, not behavior).
func (r *Registry) RegisterBuiltinBodies() {
	r.RegisterBodyFactory("exact_match", nodebodies.NewExactMatchFromConfig)
	r.RegisterBodyFactory("fuzzy_match", nodebodies.NewFuzzyMatchFromConfig)
	r.RegisterBodyFactory("arithmetic_mean", nodebodies.NewArithmeticMeanFromConfig)
	r.RegisterBodyFactory("max_pool", nodebodies.NewMaxPoolFromConfig)
	r.RegisterBodyFactory("median_pool", nodebodies.NewMedianPoolFromConfig)
	r.RegisterBodyFactory("answerer", nodebodies.NewLLMOffloadFromConfig)
	r.RegisterBodyFactory("score_judge", nodebodies.NewLLMOffloadFromConfig)
	r.RegisterBodyFactory("verification", nodebodies.NewLLMOffloadFromConfig)
}

var _ ports.NodeBodyRegistry = (*Registry)(nil)
