// Command demo loads a declarative graph spec, seeds its root nodes with
// one batch of text, runs it to completion with tracing and Prometheus
// metrics attached, and prints every node's output Cells.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/ahrav/go-gavel/infrastructure/metrics"
	"github.com/ahrav/go-gavel/infrastructure/tracing"
	"github.com/ahrav/go-gavel/internal/application"
	"github.com/ahrav/go-gavel/internal/domain"
)

func main() {
	var (
		graphPath = flag.String("graph", "examples/graph.yaml", "Path to a declarative graph spec")
		workers   = flag.Int("workers", 4, "Executor worker count")
	)
	flag.Parse()

	ctx := context.Background()

	registry := application.NewRegistry(nil)
	registry.RegisterBuiltinBodies()

	loader, err := application.NewGraphLoader(registry)
	if err != nil {
		log.Fatalf("create graph loader: %v", err)
	}

	graph, err := loader.LoadFromFile(ctx, *graphPath)
	if err != nil {
		log.Fatalf("load graph %s: %v", *graphPath, err)
	}

	const batchID = 0
	graph.InitStorage(batchID + 1)

	candidate := domain.NewText("the quick brown fox")
	reference := domain.NewText("the quick brown fox jumps")
	for _, nodeID := range graph.GetRootNodes() {
		for _, port := range []struct {
			name string
			cell domain.Cell
		}{
			{"candidate", candidate},
			{"reference", reference},
		} {
			b := domain.NewMiniBatch(port.name)
			b.Append(port.cell)
			if err := graph.SeedMiniBatch(nodeID, batchID, port.name, b); err != nil {
				log.Fatalf("seed node %d port %s: %v", nodeID, port.name, err)
			}
		}
	}

	guard := application.NewProgressGuard(100)
	executor := application.NewExecutor(graph, *workers, guard)
	executor.SetTracer(tracing.NewNodeTracer("go-gavel-demo"))
	executor.SetMetrics(metrics.NewPrometheusMetrics())

	if err := executor.Run(ctx, batchID+1); err != nil {
		log.Fatalf("execute graph: %v", err)
	}

	fmt.Println("graph execution complete:")
	for nodeID := 0; nodeID < graph.Size(); nodeID++ {
		node, err := graph.Node(nodeID)
		if err != nil {
			log.Fatalf("node %d: %v", nodeID, err)
		}
		for _, port := range node.OutputNames() {
			b, err := graph.GetMiniBatch(nodeID, batchID, port)
			if err != nil {
				log.Fatalf("read node %d port %s: %v", nodeID, port, err)
			}
			if b.Len() == 0 {
				continue
			}
			c, err := b.At(b.Len() - 1)
			if err != nil {
				log.Fatalf("read node %d port %s: %v", nodeID, port, err)
			}
			fmt.Printf("  node %s [%s] = %s\n", node.ID(), port, formatCell(c))
		}
	}
}

// formatCell renders a Cell's underlying value for display, dispatching
// on Kind since Cell itself exposes no Stringer (it's a tagged union
// meant to be consumed through its typed accessors, not printed raw).
func formatCell(c domain.Cell) string {
	switch c.Kind() {
	case domain.KindText:
		v, _ := c.Text()
		return v
	case domain.KindF64:
		v, _ := c.F64()
		return fmt.Sprintf("%.4f", v)
	case domain.KindSeqF64:
		v, _ := c.SeqF64()
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("<%s>", c.Kind())
	}
}
