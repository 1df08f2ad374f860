package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-gavel/internal/domain"
	"github.com/ahrav/go-gavel/internal/ports"
)

// GraphLoader provides YAML configuration parsing, validation, and caching
// for compute graphs, transforming declarative GraphConfig specifications
// into executable Graph structures.
// Use GraphLoader to load graphs from files or readers while benefiting
// from SHA256-based caching and comprehensive validation.
//
// Grounded on the teacher's graph_loader.go (same SHA256-keyed cache,
// singleflight-deduplicated compilation, strict-mode YAML decoding),
// narrowed from unit/pipeline/layer/executable construction to
// node/port/edge construction over a NodeBodyRegistry.
type GraphLoader struct {
	// validator performs struct field validation and custom validation
	// rules for graph configurations and their nested components.
	validator *validator.Validate
	// bodyRegistry provides factory methods for creating node bodies
	// based on their type and configuration parameters.
	bodyRegistry ports.NodeBodyRegistry
	// cache stores compiled graphs indexed by SHA256 hash of source YAML
	// to avoid recompilation of identical configurations.
	// WARNING: Cached graphs MUST NOT be mutated. AddNode and AddEdge
	// should never be called again on a graph returned from the cache.
	cache map[string]*Graph // SHA256 hash -> compiled graph
	// cacheMu provides thread-safe access to the cache map during
	// concurrent read and write operations.
	cacheMu sync.RWMutex
	// sf prevents duplicate graph compilation when multiple goroutines
	// request the same graph simultaneously.
	sf singleflight.Group
}

// NewGraphLoader creates a new graph loader with validation capabilities
// and an empty cache, ready to load and compile graphs.
// NewGraphLoader registers custom validators for semantic validation
// beyond basic struct field validation.
// NewGraphLoader returns an error if validator registration fails.
func NewGraphLoader(bodyRegistry ports.NodeBodyRegistry) (*GraphLoader, error) {
	v := validator.New()

	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	return &GraphLoader{
		validator:    v,
		bodyRegistry: bodyRegistry,
		cache:        make(map[string]*Graph),
	}, nil
}

// load is the common implementation for loading graphs from byte data,
// utilizing singleflight to prevent duplicate compilation and SHA256-based
// caching for efficiency.
// load validates the config and builds a graph on a cache miss; on a hit
// it returns the graph built earlier for the same config hash.
// WARNING: The returned graph is a pointer to a cached instance. Callers
// MUST NOT mutate the graph by calling AddNode or AddEdge methods.
func (gl *GraphLoader) load(ctx context.Context, data []byte) (*Graph, error) {
	config, err := gl.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	hash, err := gl.calculateConfigHash(config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := gl.sf.Do(hash, func() (any, error) {
		if graph, ok := gl.getCachedGraph(hash); ok {
			return graph, nil
		}

		if err := gl.validateConfig(config); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}

		graph, err := gl.buildGraph(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to build graph: %w", err)
		}

		gl.cacheGraph(hash, graph)
		return graph, nil
	})

	if err != nil {
		return nil, err
	}
	return v.(*Graph), nil
}

// LoadFromFile loads and compiles a graph from a YAML file, utilizing
// SHA256-based caching to avoid recompilation of identical files.
// LoadFromFile performs comprehensive validation including struct
// validation, semantic validation, and node parameter validation.
// WARNING: The returned graph is a pointer to a cached instance. Callers
// MUST NOT mutate the graph by calling AddNode or AddEdge methods.
func (gl *GraphLoader) LoadFromFile(ctx context.Context, path string) (*Graph, error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return gl.load(ctx, data)
}

// LoadFromReader loads and compiles a graph from an io.Reader, supporting
// any source that implements the Reader interface.
// WARNING: The returned graph is a pointer to a cached instance. Callers
// MUST NOT mutate the graph by calling AddNode or AddEdge methods.
func (gl *GraphLoader) LoadFromReader(ctx context.Context, r io.Reader) (*Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return gl.load(ctx, data)
}

// parseYAML unmarshals YAML byte data into a structured GraphConfig.
// parseYAML uses strict decoding to detect unknown fields, preventing
// configuration typos from being silently ignored.
func (gl *GraphLoader) parseYAML(data []byte) (*GraphConfig, error) {
	var config GraphConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &config, nil
}

// validateConfig performs comprehensive validation on a parsed graph
// configuration, including both struct field validation and semantic
// validation of relationships between configuration elements.
func (gl *GraphLoader) validateConfig(config *GraphConfig) error {
	if err := gl.validator.Struct(config); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	if err := gl.validateSemantics(config); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

// validateSemantics performs domain-specific validation rules that
// cannot be expressed through struct tags: global ID uniqueness across
// nodes, pipelines, and layers; pipeline/layer/edge reference integrity;
// and per-node parameter validation.
func (gl *GraphLoader) validateSemantics(config *GraphConfig) error {
	allIDs := make(map[string]string) // ID -> category, for diagnostics
	nodeIDs := make(map[string]struct{})

	for _, node := range config.Nodes {
		if category, exists := allIDs[node.ID]; exists {
			return fmt.Errorf("duplicate ID %q: already used by %s", node.ID, category)
		}
		allIDs[node.ID] = "node"
		nodeIDs[node.ID] = struct{}{}

		if err := ValidateNodeParameters(node.Type, node.Parameters); err != nil {
			return fmt.Errorf("node %s parameter validation failed: %w", node.ID, err)
		}
	}

	for _, pipeline := range config.Graph.Pipelines {
		if category, exists := allIDs[pipeline.ID]; exists {
			return fmt.Errorf("duplicate ID %q: already used by %s", pipeline.ID, category)
		}
		allIDs[pipeline.ID] = "pipeline"

		for _, nodeID := range pipeline.Nodes {
			if _, exists := nodeIDs[nodeID]; !exists {
				return fmt.Errorf("pipeline %s references non-existent node: %s", pipeline.ID, nodeID)
			}
		}
	}

	for _, layer := range config.Graph.Layers {
		if category, exists := allIDs[layer.ID]; exists {
			return fmt.Errorf("duplicate ID %q: already used by %s", layer.ID, category)
		}
		allIDs[layer.ID] = "layer"

		for _, nodeID := range layer.Nodes {
			if _, exists := nodeIDs[nodeID]; !exists {
				return fmt.Errorf("layer %s references non-existent node: %s", layer.ID, nodeID)
			}
		}
	}

	for _, edge := range config.Graph.Edges {
		if _, exists := nodeIDs[edge.From]; !exists {
			return fmt.Errorf("edge references non-existent source node: %s", edge.From)
		}
		if _, exists := nodeIDs[edge.To]; !exists {
			return fmt.Errorf("edge references non-existent target node: %s", edge.To)
		}
	}

	return nil
}

// buildGraph constructs an executable Graph from a validated
// configuration: one application.Node per NodeConfig (ports seeded from
// PortConfig.Kind, body instantiated through the NodeBodyRegistry),
// pipeline chains desugared into consecutive edges, layer membership
// validated but left edge-less, and explicit edges added last. buildGraph
// returns an error if port-kind parsing, body instantiation, or edge
// construction fails.
func (gl *GraphLoader) buildGraph(_ context.Context, config *GraphConfig) (*Graph, error) {
	graph := NewGraph()
	indexByID := make(map[string]int, len(config.Nodes))

	for _, nodeConfig := range config.Nodes {
		node, err := gl.buildNode(nodeConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to build node %s: %w", nodeConfig.ID, err)
		}
		indexByID[nodeConfig.ID] = graph.AddNode(node)
	}

	for _, pipeline := range config.Graph.Pipelines {
		for i := 0; i+1 < len(pipeline.Nodes); i++ {
			from, to := indexByID[pipeline.Nodes[i]], indexByID[pipeline.Nodes[i+1]]
			if _, err := graph.AddEdge(from, to); err != nil {
				return nil, fmt.Errorf("pipeline %s: failed to add edge %s->%s: %w",
					pipeline.ID, pipeline.Nodes[i], pipeline.Nodes[i+1], err)
			}
		}
	}

	// Layers carry no edges of their own: membership was already checked
	// for reference integrity in validateSemantics, so there is nothing
	// further to wire here.

	for _, edge := range config.Graph.Edges {
		from, to := indexByID[edge.From], indexByID[edge.To]
		if _, err := graph.AddEdge(from, to); err != nil {
			return nil, fmt.Errorf("failed to add edge %s->%s: %w", edge.From, edge.To, err)
		}
	}

	if graph.HasCycle() {
		return nil, fmt.Errorf("graph contains cycles")
	}
	return graph, nil
}

// buildNode constructs an application.Node from a NodeConfig: it parses
// the placement tag, declares input/output ports seeded with
// domain.ZeroCell for their declared Kind, merges the node's YAML
// parameters with its budget/retry/timeout settings, and instantiates the
// node's body through the loader's NodeBodyRegistry.
func (gl *GraphLoader) buildNode(config NodeConfig) (*Node, error) {
	placement := ports.CPU
	if config.Placement == "device" {
		placement = ports.Device
	}

	node := NewNode(config.ID, placement)

	for _, port := range config.Inputs {
		kind, err := domain.ParseKind(port.Kind)
		if err != nil {
			return nil, fmt.Errorf("input port %s: %w", port.Name, err)
		}
		node.AddInput(port.Name, domain.ZeroCell(kind))
	}
	for _, port := range config.Outputs {
		kind, err := domain.ParseKind(port.Kind)
		if err != nil {
			return nil, fmt.Errorf("output port %s: %w", port.Name, err)
		}
		node.AddOutput(port.Name, domain.ZeroCell(kind))
	}

	bodyConfig, err := gl.mergeBodyConfig(config)
	if err != nil {
		return nil, err
	}

	body, err := gl.bodyRegistry.CreateBody(config.Type, config.ID, bodyConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create node body: %w", err)
	}
	node.SetBody(placement, body)

	return node, nil
}

// mergeBodyConfig decodes a node's type-specific YAML parameters and
// merges them with its model, budget, retry, and timeout settings into
// the flat map a NodeBodyFactory expects.
func (gl *GraphLoader) mergeBodyConfig(config NodeConfig) (map[string]any, error) {
	var params map[string]any
	if err := config.Parameters.Decode(&params); err != nil {
		return nil, fmt.Errorf("failed to decode parameters: %w", err)
	}

	merged := map[string]any{
		"model":   config.Model,
		"budget":  config.Budget,
		"retry":   config.Retry,
		"timeout": config.Timeout,
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged, nil
}

// calculateConfigHash computes the SHA256 hash of a normalized GraphConfig
// for cache indexing, ensuring semantically identical configurations
// produce the same hash regardless of whitespace or key ordering
// differences.
func (gl *GraphLoader) calculateConfigHash(config *GraphConfig) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

// getCachedGraph attempts to retrieve a previously compiled graph from
// the cache using its SHA256 hash as the lookup key. getCachedGraph is
// safe for concurrent use.
func (gl *GraphLoader) getCachedGraph(hash string) (*Graph, bool) {
	gl.cacheMu.RLock()
	defer gl.cacheMu.RUnlock()
	graph, ok := gl.cache[hash]
	return graph, ok
}

// cacheGraph stores a compiled graph in the cache indexed by its source
// YAML's SHA256 hash for future retrieval. cacheGraph is safe for
// concurrent use and will overwrite any existing entry with the same
// hash.
func (gl *GraphLoader) cacheGraph(hash string, graph *Graph) {
	gl.cacheMu.Lock()
	defer gl.cacheMu.Unlock()
	gl.cache[hash] = graph
}

// ClearCache removes all cached graphs and reinitializes the cache map,
// forcing subsequent loads to recompile from source. ClearCache is safe
// for concurrent use and is useful for development or when memory
// management is needed.
func (gl *GraphLoader) ClearCache() {
	gl.cacheMu.Lock()
	defer gl.cacheMu.Unlock()
	gl.cache = make(map[string]*Graph)
}
