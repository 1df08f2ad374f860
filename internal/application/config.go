package application

import (
	"gopkg.in/yaml.v3"
)

// GraphConfig defines the complete declarative specification for a
// Graph: its nodes, their port declarations, and the topology
// connecting them. Use GraphConfig as the primary configuration entry
// point for building DAG compute engines from YAML.
type GraphConfig struct {
	// Version specifies the configuration schema version using semantic
	// versioning to ensure compatibility across system updates.
	Version string `yaml:"version" validate:"required,semver"`
	// Metadata contains descriptive information about the graph
	// including name, tags, and labels for organization and discovery.
	Metadata Metadata `yaml:"metadata" validate:"required"`
	// Nodes defines the individual Graph Nodes that will execute within
	// this graph, each with its own placement, ports, and configuration.
	Nodes []NodeConfig `yaml:"nodes" validate:"required,min=1,dive"`
	// Graph specifies the execution topology connecting nodes.
	Graph GraphTopology `yaml:"graph" validate:"required"`
}

// Metadata provides descriptive information about a graph to support
// organization, discovery, and operational management.
type Metadata struct {
	// Name is the human-readable identifier for this graph and must be
	// unique within the deployment scope.
	Name string `yaml:"name" validate:"required,min=1,max=255"`
	// Description provides a detailed explanation of the graph's purpose.
	Description string `yaml:"description" validate:"max=1000"`
	// Tags are categorical labels that enable filtering and grouping.
	Tags []string `yaml:"tags" validate:"max=20,dive,min=1,max=50"`
	// Labels are arbitrary key-value pairs for flexible metadata.
	Labels map[string]string `yaml:"labels" validate:"max=50"`
}

// NodeConfig defines the specification for a single Graph Node,
// including its compute placement, port declarations, body type, and
// error-handling policies.
type NodeConfig struct {
	// ID is the unique identifier for this node within the graph and
	// must be alphanumeric for safe referencing in topologies.
	ID string `yaml:"id" validate:"required,alphanum,min=1,max=100"`
	// Type selects the node-body implementation to instantiate via the
	// NodeBodyRegistry, determining available Parameters and behavior.
	Type string `yaml:"type" validate:"required,oneof=answerer score_judge verification arithmetic_mean max_pool median_pool exact_match fuzzy_match custom"`
	// Placement selects where this node's body runs: "cpu" (default) or
	// "device" for an accelerator/LLM-offload body.
	Placement string `yaml:"placement" validate:"omitempty,oneof=cpu device"`
	// Model specifies the LLM provider and model to use for device
	// bodies, in the format "provider/model" or "provider/model@version".
	// Omitted for cpu-placed bodies.
	Model string `yaml:"model,omitempty" validate:"omitempty,modelformat"`
	// Inputs declares the node's input ports and their expected Cell kinds.
	Inputs []PortConfig `yaml:"inputs" validate:"dive"`
	// Outputs declares the node's output ports and their Cell kinds.
	Outputs []PortConfig `yaml:"outputs" validate:"required,min=1,dive"`
	// Budget defines resource constraints limiting the node's
	// consumption of tokens, cost, time, and retry attempts.
	Budget BudgetConfig `yaml:"budget"`
	// Parameters contains type-specific configuration as flexible YAML,
	// validated according to the node's Type.
	Parameters yaml.Node `yaml:"parameters"`
	// Retry configures error recovery behavior for transient failures.
	Retry RetryConfig `yaml:"retry"`
	// Timeout defines execution time limits for this node.
	Timeout TimeoutConfig `yaml:"timeout"`
}

// PortConfig declares one named port and the Cell kind it carries.
type PortConfig struct {
	// Name is the port's identifier, matched against other nodes' ports
	// of the same name to determine edge IO-compatibility.
	Name string `yaml:"name" validate:"required,min=1,max=100"`
	// Kind is the Cell variant this port carries, e.g. "f64", "text",
	// "seq<f64>". See domain.Kind for the full set of variant names.
	Kind string `yaml:"kind" validate:"required"`
}

// BudgetConfig establishes resource consumption limits for a node to
// prevent runaway costs and ensure predictable resource usage.
type BudgetConfig struct {
	// MaxTokens limits the total tokens a device-placed body may
	// consume, preventing excessive LLM API usage.
	MaxTokens int64 `yaml:"max_tokens" validate:"omitempty,min=1,max=1000000"`
	// MaxCost sets the maximum monetary cost in dollars this node may incur.
	MaxCost float64 `yaml:"max_cost" validate:"omitempty,min=0,max=10000"`
	// MaxCalls limits the number of device calls this node may make.
	MaxCalls int64 `yaml:"max_calls" validate:"omitempty,min=0,max=1000"`
	// TimeoutSeconds specifies the maximum execution time in seconds
	// before the node is forcibly terminated.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"omitempty,min=1,max=3600"`
}

// RetryConfig specifies the error recovery strategy for a node when
// transient failures occur during execution.
type RetryConfig struct {
	// MaxAttempts defines the total number of execution attempts
	// including the initial attempt; 0 disables retries.
	MaxAttempts int `yaml:"max_attempts" validate:"min=0,max=10"`
	// BackoffType determines the delay calculation strategy between
	// retry attempts.
	BackoffType string `yaml:"backoff_type" validate:"omitempty,oneof=constant exponential linear"`
	// InitialWait specifies the base delay in milliseconds before the
	// first retry attempt.
	InitialWait int `yaml:"initial_wait_ms" validate:"omitempty,min=0,max=60000"`
	// MaxWait caps the maximum delay in milliseconds between attempts.
	MaxWait int `yaml:"max_wait_ms" validate:"omitempty,min=0,max=300000"`
}

// TimeoutConfig controls execution time limits for a node.
type TimeoutConfig struct {
	// ExecutionTimeout specifies the maximum time in seconds this node
	// is allowed to execute before being interrupted.
	ExecutionTimeout int `yaml:"execution_timeout_seconds" validate:"omitempty,min=1,max=3600"`
	// GracefulShutdown defines additional cleanup time in seconds after
	// a termination signal.
	GracefulShutdown int `yaml:"graceful_shutdown_seconds" validate:"omitempty,min=0,max=300"`
}

// GraphTopology specifies the structural organization and execution
// flow of nodes within a graph.
type GraphTopology struct {
	// Pipelines define sequential chains desugared into one edge per
	// consecutive pair of listed node IDs at load time.
	Pipelines []PipelineConfig `yaml:"pipelines" validate:"dive"`
	// Layers document groups of nodes intended to execute concurrently;
	// the engine schedules ready nodes concurrently regardless, so
	// Layers carry no edges of their own — they exist for readability
	// and for semantic validation (membership, uniqueness).
	Layers []LayerConfig `yaml:"layers" validate:"dive"`
	// Edges specify directed connections between nodes, sharing data on
	// any port name present on both ends (see Graph.AddEdge).
	Edges []EdgeConfig `yaml:"edges" validate:"dive"`
}

// PipelineConfig defines a sequential execution chain: node i's output
// ports feed node i+1's input ports of the same name.
type PipelineConfig struct {
	// ID is the unique identifier for this pipeline, used only for
	// diagnostics — pipelines desugar to edges and do not appear in the
	// built Graph as a distinct entity.
	ID string `yaml:"id" validate:"required,alphanum,min=1,max=100"`
	// Nodes lists the node IDs in execution order.
	Nodes []string `yaml:"nodes" validate:"required,min=1,dive,alphanum"`
}

// LayerConfig documents a parallel execution group of independent nodes.
type LayerConfig struct {
	// ID is the unique identifier for this layer.
	ID string `yaml:"id" validate:"required,alphanum,min=1,max=100"`
	// Nodes lists the node IDs that belong to this layer.
	Nodes []string `yaml:"nodes" validate:"required,min=2,dive,alphanum"`
}

// EdgeConfig establishes a directed connection between two nodes.
type EdgeConfig struct {
	// From identifies the source node.
	From string `yaml:"from" validate:"required,alphanum"`
	// To identifies the target node.
	To string `yaml:"to" validate:"required,alphanum"`
}
