package application

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	r := NewRegistry(nil)
	r.RegisterBuiltinBodies()
	return r
}

// TestGraphLoader_LoadFromReader tests the loading of a graph from a YAML
// configuration. It covers simple graphs, pipelines, layers, and error
// conditions like cyclic dependencies and invalid configurations.
func TestGraphLoader_LoadFromReader(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		errMsg  string
		verify  func(t *testing.T, graph *Graph)
	}{
		{
			name: "loads simple graph successfully",
			yaml: `
version: "1.0.0"
metadata:
  name: "simple-graph"
nodes:
  - id: matcher1
    type: exact_match
    inputs:
      - name: candidate
        kind: text
      - name: reference
        kind: text
    outputs:
      - name: score
        kind: f64
    budget: {}
    parameters: {}
graph:
  edges: []
`,
			verify: func(t *testing.T, graph *Graph) {
				require.NotNil(t, graph)
				assert.Equal(t, 1, graph.Size())
			},
		},
		{
			name: "loads pipeline graph",
			yaml: `
version: "1.0.0"
metadata:
  name: "pipeline-graph"
nodes:
  - id: matcher1
    type: exact_match
    inputs:
      - name: candidate
        kind: text
      - name: reference
        kind: text
    outputs:
      - name: score
        kind: f64
    budget: {}
    parameters: {}
  - id: pool1
    type: arithmetic_mean
    inputs:
      - name: score
        kind: f64
    outputs:
      - name: score
        kind: f64
    budget: {}
    parameters: {}
graph:
  pipelines:
    - id: pipeline1
      nodes: ["matcher1", "pool1"]
  edges: []
`,
			verify: func(t *testing.T, graph *Graph) {
				require.NotNil(t, graph)
				require.Equal(t, 2, graph.Size())
				assert.True(t, graph.EdgeExists(0, 1))
			},
		},
		{
			name: "loads layer graph",
			yaml: `
version: "1.0.0"
metadata:
  name: "layer-graph"
nodes:
  - id: matcher1
    type: exact_match
    inputs:
      - name: candidate
        kind: text
      - name: reference
        kind: text
    outputs:
      - name: score
        kind: f64
    budget: {}
    parameters: {}
  - id: matcher2
    type: fuzzy_match
    inputs:
      - name: candidate
        kind: text
      - name: reference
        kind: text
    outputs:
      - name: score
        kind: f64
    budget: {}
    parameters: {}
graph:
  layers:
    - id: layer1
      nodes: ["matcher1", "matcher2"]
  edges: []
`,
			verify: func(t *testing.T, graph *Graph) {
				require.NotNil(t, graph)
				// Layers carry no edges: both nodes remain independent roots.
				assert.Equal(t, 2, graph.Size())
				assert.ElementsMatch(t, []int{0, 1}, graph.GetRootNodes())
			},
		},
		{
			name: "loads graph with edges",
			yaml: `
version: "1.0.0"
metadata:
  name: "edge-graph"
nodes:
  - id: matcher1
    type: exact_match
    inputs:
      - name: candidate
        kind: text
      - name: reference
        kind: text
    outputs:
      - name: score
        kind: f64
    budget: {}
    parameters: {}
  - id: pool1
    type: arithmetic_mean
    inputs:
      - name: score
        kind: f64
    outputs:
      - name: score
        kind: f64
    budget: {}
    parameters: {}
graph:
  edges:
    - from: matcher1
      to: pool1
`,
			verify: func(t *testing.T, graph *Graph) {
				require.NotNil(t, graph)
				require.Equal(t, 2, graph.Size())
				assert.True(t, graph.EdgeExists(0, 1))
				assert.False(t, graph.HasCycle())
			},
		},
		{
			name: "detects cycle in graph",
			yaml: `
version: "1.0.0"
metadata:
  name: "cycle-graph"
nodes:
  - id: pool1
    type: arithmetic_mean
    inputs:
      - name: score
        kind: f64
    outputs:
      - name: score
        kind: f64
    budget: {}
    parameters: {}
  - id: pool2
    type: max_pool
    inputs:
      - name: score
        kind: f64
    outputs:
      - name: score
        kind: f64
    budget: {}
    parameters: {}
graph:
  edges:
    - from: pool1
      to: pool2
    - from: pool2
      to: pool1
`,
			wantErr: true,
			errMsg:  "cycle",
		},
		{
			name: "validates semantic errors",
			yaml: `
version: "1.0.0"
metadata:
  name: "invalid-graph"
nodes:
  - id: matcher1
    type: exact_match
    inputs:
      - name: candidate
        kind: text
      - name: reference
        kind: text
    outputs:
      - name: score
        kind: f64
    budget: {}
    parameters: {}
graph:
  pipelines:
    - id: pipeline1
      nodes: ["matcher1", "nonexistent"]
  edges: []
`,
			wantErr: true,
			errMsg:  "non-existent node",
		},
		{
			name: "validates node parameters",
			yaml: `
version: "1.0.0"
metadata:
  name: "invalid-params"
nodes:
  - id: judge1
    type: score_judge
    placement: device
    outputs:
      - name: text
        kind: text
    budget:
      max_tokens: 1000
    parameters:
      # Missing the required 'prompt' parameter.
      temperature: 0.8
graph:
  edges: []
`,
			wantErr: true,
			errMsg:  "prompt",
		},
		{
			name: "rejects malformed node parameters",
			yaml: `
version: "1.0.0"
metadata:
  name: "creation-error"
nodes:
  - id: matcher1
    type: exact_match
    inputs:
      - name: candidate
        kind: text
    outputs:
      - name: score
        kind: f64
    budget: {}
    parameters:
      case_sensitive: "not-a-bool"
graph:
  edges: []
`,
			wantErr: true,
			errMsg:  "case_sensitive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, err := NewGraphLoader(newTestRegistry())
			require.NoError(t, err)

			reader := strings.NewReader(tt.yaml)
			graph, err := loader.LoadFromReader(context.Background(), reader)

			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
				return
			}
			require.NoError(t, err)
			if tt.verify != nil {
				tt.verify(t, graph)
			}
		})
	}
}

// TestGraphLoader_Caching verifies that the GraphLoader correctly caches
// compiled graphs. It loads the same graph configuration multiple times
// and checks the cache is hit, then clears the cache and confirms a fresh
// compile still succeeds.
func TestGraphLoader_Caching(t *testing.T) {
	yaml := `
version: "1.0.0"
metadata:
  name: "cache-test"
nodes:
  - id: matcher1
    type: exact_match
    inputs:
      - name: candidate
        kind: text
      - name: reference
        kind: text
    outputs:
      - name: score
        kind: f64
    budget: {}
    parameters: {}
graph:
  edges: []
`

	loader, err := NewGraphLoader(newTestRegistry())
	require.NoError(t, err)

	graph1, err := loader.LoadFromReader(context.Background(), strings.NewReader(yaml))
	require.NoError(t, err)

	graph2, err := loader.LoadFromReader(context.Background(), strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Same(t, graph1, graph2)

	loader.ClearCache()
	graph3, err := loader.LoadFromReader(context.Background(), strings.NewReader(yaml))
	require.NoError(t, err)
	assert.NotNil(t, graph3)
	assert.NotSame(t, graph1, graph3)
}

// TestGraphLoader_ComplexGraph tests loading a graph combining layers,
// pipelines, and explicit edges, confirming the desugared topology
// matches expectations.
func TestGraphLoader_ComplexGraph(t *testing.T) {
	yaml := `
version: "1.0.0"
metadata:
  name: "complex-evaluation"
  description: "A complex multi-stage evaluation pipeline"
  tags: ["production", "ml"]
  labels:
    team: "platform"
    env: "prod"
nodes:
  - id: matcher1
    type: exact_match
    inputs:
      - name: candidate
        kind: text
      - name: reference
        kind: text
    outputs:
      - name: score_a
        kind: f64
    budget: {}
    parameters: {}
  - id: matcher2
    type: fuzzy_match
    inputs:
      - name: candidate
        kind: text
      - name: reference
        kind: text
    outputs:
      - name: score_b
        kind: f64
    budget: {}
    parameters: {}
  - id: pool1
    type: arithmetic_mean
    inputs:
      - name: score_a
        kind: f64
    outputs:
      - name: final
        kind: f64
    budget: {}
    parameters: {}
graph:
  layers:
    - id: matching
      nodes: ["matcher1", "matcher2"]
  pipelines:
    - id: finalpipeline
      nodes: ["matcher1", "pool1"]
  edges: []
`

	loader, err := NewGraphLoader(newTestRegistry())
	require.NoError(t, err)

	graph, err := loader.LoadFromReader(context.Background(), strings.NewReader(yaml))
	require.NoError(t, err)
	require.NotNil(t, graph)

	require.Equal(t, 3, graph.Size())
	// matcher1 -> pool1 from the pipeline desugaring.
	assert.True(t, graph.EdgeExists(0, 2))
	// matcher2 has no edges: the layer it belongs to carries none of its own.
	assert.False(t, graph.EdgeExists(1, 0))
	assert.False(t, graph.EdgeExists(1, 2))
	assert.False(t, graph.HasCycle())
}
