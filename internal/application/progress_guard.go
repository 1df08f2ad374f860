package application

import (
	"errors"
	"sync"
	"time"
)

// ErrNoProgress is returned by Executor.Run when the schedule has made
// no forward progress (no task has completed) for MaxIdleTicks
// consecutive checks, indicating a stuck graph rather than a slow one.
var ErrNoProgress = errors.New("schedule made no progress: graph is stuck")

// ProgressGuard watches a monotonically increasing completed-task count
// and flags the schedule as stuck once it has gone MaxIdleTicks checks
// without increasing. It replaces a literal requeue budget (counting
// retries of one task) with a count of idle observation ticks across
// the whole schedule, since this Executor's event-driven dispatch never
// requeues a not-ready task in the first place.
//
// Grounded on the teacher's budget-tracking discipline (a bounded
// counter that trips an error once exhausted), adapted from per-request
// token budgets to a per-schedule liveness budget.
type ProgressGuard struct {
	mu            sync.Mutex
	maxIdleTicks  int
	lastCompleted int64
	idleTicks     int
}

// NewProgressGuard creates a guard that trips after maxIdleTicks
// consecutive no-progress observations. A non-positive value disables
// the guard (Tick always reports progress).
func NewProgressGuard(maxIdleTicks int) *ProgressGuard {
	return &ProgressGuard{maxIdleTicks: maxIdleTicks}
}

// Tick records an observation of the current completed-task count and
// reports whether the guard has tripped.
func (g *ProgressGuard) Tick(completed int64) (stuck bool) {
	if g.maxIdleTicks <= 0 {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if completed > g.lastCompleted {
		g.lastCompleted = completed
		g.idleTicks = 0
		return false
	}
	g.idleTicks++
	return g.idleTicks >= g.maxIdleTicks
}

// defaultIdleInterval is the polling period between progress checks.
const defaultIdleInterval = 50 * time.Millisecond
