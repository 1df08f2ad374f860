package application

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-gavel/infrastructure/tracing"
	"github.com/ahrav/go-gavel/internal/domain"
	"github.com/ahrav/go-gavel/internal/ports"
)

// task identifies one unit of scheduled work: execute nodeID against
// the data seeded for batchID. sentinelNode is pushed once per worker
// to unblock Queue.WaitAndPop once the schedule has drained.
const sentinelNode = -1

type task struct {
	nodeID, batchID int
}

// Executor runs every (node, batch) pair in a Graph to completion using
// a fixed pool of workers pulling from a shared Queue.
//
// Rather than the literal spin/requeue-on-not-ready discipline (push a
// task back to the tail and let a worker re-check it later), this
// Executor is event-driven: a task is pushed only once its node's
// readiness oracle (Graph.IsReady) actually turns true, driven by the
// propagation step that follows every node's execution. spec.md §9
// permits either discipline; the event-driven form was chosen because
// it does not burn worker cycles re-polling not-ready nodes and because
// it composes cleanly with Queue's existing push/wait_and_pop contract
// — no separate retry-count bookkeeping per task is needed.
//
// Grounded on dag.go's WaitGroup/semaphore goroutine fan-out, rewired
// onto golang.org/x/sync/errgroup for first-error propagation and
// cancellation, and on Queue (§4.1) for the shared work list.
type Executor struct {
	graph   *Graph
	queue   *Queue[task]
	workers int
	guard   *ProgressGuard

	mu       sync.Mutex
	enqueued map[task]bool

	completed int64 // atomic

	tracer  *tracing.NodeTracer
	metrics ports.MetricsCollector
}

// SetTracer attaches an OpenTelemetry tracer that spans every (node,
// batch) task. Passing nil (the default) disables tracing.
func (e *Executor) SetTracer(t *tracing.NodeTracer) { e.tracer = t }

// SetMetrics attaches a metrics collector that records task completions,
// failures, and execution latency. Passing nil (the default) disables
// metrics collection.
func (e *Executor) SetMetrics(m ports.MetricsCollector) { e.metrics = m }

// NewExecutor creates an Executor with the given worker count. guard
// may be nil to disable stuck-schedule detection.
func NewExecutor(g *Graph, workers int, guard *ProgressGuard) *Executor {
	if workers < 1 {
		workers = 1
	}
	if guard == nil {
		guard = NewProgressGuard(0)
	}
	return &Executor{
		graph:    g,
		queue:    NewQueue[task](),
		workers:  workers,
		guard:    guard,
		enqueued: make(map[task]bool),
	}
}

// Run executes the whole graph over numBatches batches of data and
// blocks until every (node, batch) pair has completed, the context is
// canceled, a node body returns an error, or the progress guard trips.
// The caller must have already called Graph.InitStorage(numBatches) and
// seeded whatever root input ports the graph's nodes declare; root
// nodes with no declared input ports need no seeding and are scheduled
// immediately.
func (e *Executor) Run(ctx context.Context, numBatches int) error {
	total := int64(e.graph.Size()) * int64(numBatches)
	if total == 0 {
		return nil
	}

	parentCtx := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, root := range e.graph.GetRootNodes() {
		for b := 0; b < numBatches; b++ {
			ready, err := e.graph.IsReady(root, b)
			if err != nil {
				return err
			}
			if ready {
				e.maybeEnqueue(root, b)
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	guardDone := make(chan struct{})
	// watchProgress watches gctx, not the outer ctx: gctx is canceled
	// both by this Run's own cancel() and by errgroup the moment any
	// worker returns an error, so either way the other workers get
	// woken out of their blocking WaitAndPop.
	go e.watchProgress(gctx, cancel, guardDone)
	defer func() { <-guardDone }()

	for i := 0; i < e.workers; i++ {
		g.Go(func() error { return e.work(gctx, total) })
	}

	err := g.Wait()
	cancel()
	if err != nil {
		return err
	}
	if atomic.LoadInt64(&e.completed) < total {
		if cerr := parentCtx.Err(); cerr != nil {
			return cerr
		}
		return ErrNoProgress
	}
	return nil
}

// watchProgress polls the completed-task count and, on either the
// guard tripping or the context ending, cancels the context and wakes
// every worker blocked in Queue.WaitAndPop with a sentinel task so that
// work() goroutines observe the cancellation instead of blocking
// forever on a queue nothing will ever push to again.
func (e *Executor) watchProgress(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(defaultIdleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.wakeWorkers()
			return
		case <-ticker.C:
			if e.guard.Tick(atomic.LoadInt64(&e.completed)) {
				cancel()
				e.wakeWorkers()
				return
			}
		}
	}
}

func (e *Executor) wakeWorkers() {
	for i := 0; i < e.workers; i++ {
		e.queue.Push(task{nodeID: sentinelNode})
	}
}

func (e *Executor) work(ctx context.Context, total int64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t := e.queue.WaitAndPop()
		if t.nodeID == sentinelNode {
			return nil
		}

		if err := e.runTask(ctx, t); err != nil {
			return fmt.Errorf("node %d batch %d: %w", t.nodeID, t.batchID, err)
		}

		if atomic.AddInt64(&e.completed, 1) == total {
			for i := 0; i < e.workers; i++ {
				e.queue.Push(task{nodeID: sentinelNode})
			}
			return nil
		}
	}
}

// runTask executes one (node, batch) pair. Per spec.md §4.6, a node
// with multi-cell input Mini-Batches is invoked once per cell position:
// for position i it builds an inputs map of the i-th Cell of every
// declared input port, calls the node's body, and appends the Cell each
// output port receives to that port's Mini-Batch — so k input Cells on
// a port yield k output Cells on every port the body writes. Each
// position's inputs/outputs are built fresh and handed directly to
// Node.Execute rather than routed through any state shared with the
// node's other (node, batch) tasks, so distinct batches of the same
// node may run this concurrently without racing on anything.
//
// Every produced output Cell, from every position, is then propagated
// to downstream nodes whose input ports share a name with an output
// just written, enqueueing any downstream (node, batch) that becomes
// ready as a result.
func (e *Executor) runTask(ctx context.Context, t task) (err error) {
	n, err := e.graph.Node(t.nodeID)
	if err != nil {
		return err
	}

	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.StartNodeTask(ctx, t.nodeID, fmt.Sprintf("%d", t.nodeID), n.Placement().String(), t.batchID)
		defer func() { tracing.EndNodeTask(span, err) }()
	}
	if e.metrics != nil {
		start := time.Now()
		labels := map[string]string{
			"node_id":   fmt.Sprintf("%d", t.nodeID),
			"placement": n.Placement().String(),
		}
		defer func() {
			e.metrics.RecordLatency("node_execution", time.Since(start), labels)
			if err != nil {
				e.metrics.RecordCounter("tasks_failed", 1, labels)
			} else {
				e.metrics.RecordCounter("tasks_completed", 1, labels)
			}
		}()
	}

	inputNames := n.InputNames()
	inputBatches := make(map[string]domain.MiniBatch, len(inputNames))
	positions := 1
	for _, name := range inputNames {
		b, err := e.graph.GetMiniBatch(t.nodeID, t.batchID, name)
		if err != nil {
			return err
		}
		inputBatches[name] = b
		if b.Len() > positions {
			positions = b.Len()
		}
	}

	outputNames := n.OutputNames()
	produced := make(map[string][]domain.Cell, len(outputNames))

	for i := 0; i < positions; i++ {
		inputs := make(map[string]domain.Cell, len(inputNames))
		for _, name := range inputNames {
			c, err := inputBatches[name].At(i)
			if err != nil {
				return fmt.Errorf("port %s: %w", name, err)
			}
			inputs[name] = c
		}

		outputs, err := n.Execute(ctx, inputs)
		if err != nil {
			return err
		}

		for _, name := range outputNames {
			c, ok := outputs[name]
			if !ok {
				continue
			}
			if err := e.graph.AppendCell(t.nodeID, t.batchID, name, c); err != nil {
				return err
			}
			produced[name] = append(produced[name], c)
		}
	}

	for _, d := range e.graph.Downstream(t.nodeID) {
		dn, err := e.graph.Node(d)
		if err != nil {
			return err
		}
		wrote := false
		for _, name := range dn.InputNames() {
			cells, ok := produced[name]
			if !ok {
				continue
			}
			for _, c := range cells {
				if err := e.graph.AppendCell(d, t.batchID, name, c); err != nil {
					return err
				}
			}
			wrote = true
		}
		if !wrote {
			continue
		}
		ready, err := e.graph.IsReady(d, t.batchID)
		if err != nil {
			return err
		}
		if ready {
			e.maybeEnqueue(d, t.batchID)
		}
	}

	return nil
}

// maybeEnqueue pushes (nodeID, batchID) exactly once across the
// lifetime of this Executor.
func (e *Executor) maybeEnqueue(nodeID, batchID int) {
	key := task{nodeID: nodeID, batchID: batchID}
	e.mu.Lock()
	if e.enqueued[key] {
		e.mu.Unlock()
		return
	}
	e.enqueued[key] = true
	e.mu.Unlock()
	e.queue.Push(key)
	if e.metrics != nil {
		e.metrics.RecordGauge("queue_depth", float64(e.queue.Len()), nil)
	}
}
