//go:build go1.18
// +build go1.18

package application

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-gavel/internal/domain"
	"github.com/ahrav/go-gavel/internal/ports"
)

// FuzzGraphLoader_ParseYAML tests the YAML parsing logic of the GraphLoader
// with random inputs. It aims to uncover panics, crashes, or unexpected
// behavior when parsing a wide variety of potentially malformed or complex
// YAML strings.
func FuzzGraphLoader_ParseYAML(f *testing.F) {
	testcases := []string{
		// Valid minimal YAML.
		`version: "1.0.0"
metadata:
  name: "test"
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
  edges: []`,

		// Invalid YAML syntax.
		`version: "1.0.0
metadata:
  name: test"
nodes:
  - id: node1`,

		// Missing required fields.
		`metadata:
  name: "test"
nodes: []
graph:
  edges: []`,

		// Invalid structure.
		`version: 1
metadata: "invalid"
nodes: "should be array"
graph: null`,

		// Malformed YAML.
		`version: "1.0.0"
metadata:
  name: [[[[[
nodes:
  - id: !!!
    type: @#$%^&*
    budget: {{{{{`,

		// Deeply nested structure.
		`version: "1.0.0"
metadata:
  name: "nested"
  labels:
    a:
      b:
        c:
          d:
            e: "deep"
nodes:
 - id: matcher1
   type: exact_match
   outputs:
     - name: score
       kind: f64
   budget: {}
   parameters:
     nested:
       deeply:
         very:
           much:
             so: "value"
graph:
 edges: []`,

		// Unicode and special characters.
		`version: "1.0.0"
metadata:
 name: "测试 🚀 тест"
 description: "Multi-line\nstring with\ttabs"
nodes:
 - id: matcher1
   type: exact_match
   outputs:
     - name: score
       kind: f64
   budget: {}
   parameters: {}
graph:
 edges: []`,

		// Large numbers and other edge cases.
		`version: "999999999.0.0"
metadata:
 name: "x"
nodes:
  - id: matcher1
    type: exact_match
    outputs:
      - name: score
        kind: f64
    budget:
      max_tokens: 99999999999999999999
      max_cost: 1.7976931348623157e+308
      timeout_seconds: -1
    parameters: {}
graph:
  edges: []`,
	}

	for _, tc := range testcases {
		f.Add(tc)
	}

	loader, err := NewGraphLoader(newTestRegistry())
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, yamlInput string) {
		reader := strings.NewReader(yamlInput)
		graph, err := loader.LoadFromReader(context.Background(), reader)

		if err == nil && graph != nil {
			_ = graph.HasCycle()
			_ = graph.Size()
		}

		loader.ClearCache()
	})
}

// FuzzGraphLoader_Validation tests the semantic validation logic of the
// GraphLoader. It uses a corpus of YAML strings with common semantic
// errors, such as duplicate IDs, cyclic dependencies, and invalid
// references, to ensure the validator is robust.
func FuzzGraphLoader_Validation(f *testing.F) {
	testcases := []string{
		// Duplicate node IDs.
		`version: "1.0.0"
metadata:
  name: "duplicate"
nodes:
  - id: node1
    type: exact_match
    outputs:
      - name: score
        kind: f64
    budget: {}
    parameters: {}
  - id: node1
    type: exact_match
    outputs:
      - name: score
        kind: f64
    budget: {}
    parameters: {}
graph:
  edges: []`,

		// Invalid node references in a pipeline.
		`version: "1.0.0"
metadata:
  name: "invalid-ref"
nodes:
  - id: node1
    type: exact_match
    outputs:
      - name: score
        kind: f64
    budget: {}
    parameters: {}
graph:
  pipelines:
    - id: pipeline1
      nodes: ["node1", "nonexistent"]
  edges: []`,

		// Cyclic dependencies in the graph.
		`version: "1.0.0"
metadata:
  name: "cycle"
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
      to: pool1`,

		// Invalid node types.
		`version: "1.0.0"
metadata:
  name: "invalid-type"
nodes:
  - id: node1
    type: "unknown_type_!@#$%"
    budget: {}
    parameters: {}
graph:
  edges: []`,

		// Invalid parameter types.
		`version: "1.0.0"
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
      max_tokens: "not a number"
    parameters:
      prompt: 123
      temperature: "high"
graph:
  edges: []`,
	}

	for _, tc := range testcases {
		f.Add(tc)
	}

	loader, err := NewGraphLoader(newTestRegistry())
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, yamlInput string) {
		reader := strings.NewReader(yamlInput)
		_, _ = loader.LoadFromReader(context.Background(), reader)
		loader.ClearCache()
	})
}

// FuzzValidateNodeParameters tests the validation of node parameters. It
// fuzzes the node type and a JSON string representing the parameters to
// ensure that the validation logic can handle a wide range of inputs
// without panicking.
func FuzzValidateNodeParameters(f *testing.F) {
	testcases := []struct {
		nodeType string
		params   string
	}{
		{"answerer", `{"prompt": "test", "temperature": 0.7}`},
		{"score_judge", `{"temperature": 3.0}`},
		{"verification", `{"prompt": ""}`},
		{"answerer", `{"prompt": null}`},
		{"score_judge", `{}`},
		{"exact_match", `{"case_sensitive": true, "trim_whitespace": false}`},
		{"fuzzy_match", `{"algorithm": "levenshtein", "threshold": 0.5}`},
		{"fuzzy_match", `{"algorithm": "unknown"}`},
		{"arithmetic_mean", `{"tie_breaker": "first"}`},
		{"arithmetic_mean", `{"tie_breaker": "unknown"}`},
		{"custom", `{"any": "value", "nested": {"deep": true}}`},
		{"unknown_type", `{"some": "params"}`},
	}

	for _, tc := range testcases {
		f.Add(tc.nodeType, tc.params)
	}

	f.Fuzz(func(t *testing.T, nodeType string, paramsJSON string) {
		var params map[string]interface{}
		if err := yaml.Unmarshal([]byte(paramsJSON), &params); err != nil {
			return
		}

		yamlBytes, err := yaml.Marshal(params)
		if err != nil {
			return
		}

		var node yaml.Node
		if err := yaml.Unmarshal(yamlBytes, &node); err != nil {
			return
		}

		_ = ValidateNodeParameters(nodeType, node)
	})
}

// FuzzGraphOperations tests the core operations of the Graph, such as
// cycle detection and edge addition, with randomly generated graph
// structures. This ensures the robustness of the graph algorithms against
// various edge cases.
func FuzzGraphOperations(f *testing.F) {
	testcases := []string{
		`0,1;1,2`,
		`0,1;0,2;1,3;2,3`,
		`0,1;2,3`,
		`0,0`,
		`0,1;1,2;2,3;0,3;1,3;0,2`,
		`0,1;1,2;2,3;3,4;4,5;5,6;6,7;7,8;8,9`,
	}

	for _, tc := range testcases {
		f.Add(tc)
	}

	f.Fuzz(func(t *testing.T, graphSpec string) {
		graph := NewGraph()

		maxID := -1
		edges := strings.Split(graphSpec, ";")
		pairs := make([][2]int, 0, len(edges))
		for _, edge := range edges {
			parts := strings.Split(edge, ",")
			if len(parts) != 2 {
				continue
			}
			from, errFrom := strconv.Atoi(strings.TrimSpace(parts[0]))
			to, errTo := strconv.Atoi(strings.TrimSpace(parts[1]))
			if errFrom != nil || errTo != nil {
				continue
			}
			if from > maxID {
				maxID = from
			}
			if to > maxID {
				maxID = to
			}
			pairs = append(pairs, [2]int{from, to})
		}
		if maxID < 0 || maxID > 64 {
			return
		}

		for i := 0; i <= maxID; i++ {
			n := NewNode(strconv.Itoa(i), ports.CPU)
			n.AddOutput("p", domain.NewF64(0))
			n.AddInput("p", domain.NewF64(0))
			graph.AddNode(n)
		}

		for _, p := range pairs {
			if p[0] < 0 || p[0] > maxID || p[1] < 0 || p[1] > maxID {
				continue
			}
			_, _ = graph.AddEdge(p[0], p[1])
		}

		_ = graph.HasCycle()
		_ = graph.GetRootNodes()
	})
}
