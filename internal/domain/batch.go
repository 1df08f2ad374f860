package domain

// MiniBatch is a named, ordered, append-only sequence of Cells: the unit
// of data flow on a single port for one batch. MiniBatch is a value
// type — copying it copies the name and the slice header, matching the
// "mini-batches are values, not identities" contract in spec.md §3.
type MiniBatch struct {
	name  string
	cells []Cell
}

// NewMiniBatch creates an empty, optionally named Mini-Batch.
func NewMiniBatch(name string) MiniBatch {
	return MiniBatch{name: name}
}

// Append adds a Cell to the end of the Mini-Batch.
func (b *MiniBatch) Append(c Cell) {
	b.cells = append(b.cells, c)
}

// At returns the Cell at the given index, or a BatchError if the index
// is out of range.
func (b MiniBatch) At(i int) (Cell, error) {
	if i < 0 || i >= len(b.cells) {
		return Cell{}, &BatchError{Batch: b.name, Index: i, Len: len(b.cells)}
	}
	return b.cells[i], nil
}

// Len returns the number of Cells currently held.
func (b MiniBatch) Len() int { return len(b.cells) }

// Clear removes all Cells, preserving the name.
func (b *MiniBatch) Clear() { b.cells = nil }

// Name returns the Mini-Batch's name.
func (b MiniBatch) Name() string { return b.name }

// SetName assigns the Mini-Batch's name.
func (b *MiniBatch) SetName(name string) { b.name = name }

// Cells returns the Mini-Batch's underlying cells. The returned slice
// must not be mutated by callers; use Append to grow the batch.
func (b MiniBatch) Cells() []Cell { return b.cells }

// Equal reports whether two Mini-Batches have matching names and
// pairwise-equal cells in the same order.
func (b MiniBatch) Equal(other MiniBatch) bool {
	if b.name != other.name || len(b.cells) != len(other.cells) {
		return false
	}
	for i := range b.cells {
		if !b.cells[i].Equal(other.cells[i]) {
			return false
		}
	}
	return true
}
