package domain

import "fmt"

// Kind identifies the active variant held by a Cell. The variant set is
// closed and fixed: there is no dynamic subtyping and no implicit
// conversion between kinds.
type Kind int

const (
	// KindInvalid is the zero value and never holds a usable Cell.
	KindInvalid Kind = iota
	KindI32
	KindI64
	KindIWide
	KindU32
	KindU64
	KindUWide
	KindF32
	KindF64
	KindFWide
	KindText
	KindSeqI32
	KindSeqI64
	KindSeqF32
	KindSeqF64
	KindSeqText
)

// String returns the canonical lowercase name of the Kind, used in
// error messages and YAML configuration.
func (k Kind) String() string {
	switch k {
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	case KindIWide:
		return "iwide"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindUWide:
		return "uwide"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindFWide:
		return "fwide"
	case KindText:
		return "text"
	case KindSeqI32:
		return "seq<i32>"
	case KindSeqI64:
		return "seq<i64>"
	case KindSeqF32:
		return "seq<f32>"
	case KindSeqF64:
		return "seq<f64>"
	case KindSeqText:
		return "seq<text>"
	default:
		return "invalid"
	}
}

// Cell is a tagged value carrier holding exactly one of the enumerated
// scalar or sequence variants. Cells are values: copying a Cell copies
// its tag and (for sequence variants) the underlying slice header, not
// a deep copy of the backing array. Callers that need independent
// mutation of a sequence variant should clone it explicitly.
type Cell struct {
	kind Kind

	i64 int64   // backs i32, i64, iwide
	u64 uint64  // backs u32, u64, uwide
	f64 float64 // backs f32, f64, fwide
	txt string

	seqI32  []int32
	seqI64  []int64
	seqF32  []float32
	seqF64  []float64
	seqText []string
}

// Kind reports the active variant of the Cell.
func (c Cell) Kind() Kind { return c.kind }

// IsZero reports whether the Cell was never assigned a variant (the
// default value of the Cell type, distinct from any valid variant).
func (c Cell) IsZero() bool { return c.kind == KindInvalid }

// --- constructors ---

func NewI32(v int32) Cell     { return Cell{kind: KindI32, i64: int64(v)} }
func NewI64(v int64) Cell     { return Cell{kind: KindI64, i64: v} }
func NewIWide(v int64) Cell   { return Cell{kind: KindIWide, i64: v} }
func NewU32(v uint32) Cell    { return Cell{kind: KindU32, u64: uint64(v)} }
func NewU64(v uint64) Cell    { return Cell{kind: KindU64, u64: v} }
func NewUWide(v uint64) Cell  { return Cell{kind: KindUWide, u64: v} }
func NewF32(v float32) Cell   { return Cell{kind: KindF32, f64: float64(v)} }
func NewF64(v float64) Cell   { return Cell{kind: KindF64, f64: v} }
func NewFWide(v float64) Cell { return Cell{kind: KindFWide, f64: v} }
func NewText(v string) Cell   { return Cell{kind: KindText, txt: v} }

func NewSeqI32(v []int32) Cell    { return Cell{kind: KindSeqI32, seqI32: v} }
func NewSeqI64(v []int64) Cell    { return Cell{kind: KindSeqI64, seqI64: v} }
func NewSeqF32(v []float32) Cell  { return Cell{kind: KindSeqF32, seqF32: v} }
func NewSeqF64(v []float64) Cell  { return Cell{kind: KindSeqF64, seqF64: v} }
func NewSeqText(v []string) Cell  { return Cell{kind: KindSeqText, seqText: v} }

// ParseKind looks up the Kind whose String() matches name, for
// deserializing port declarations out of declarative configuration.
func ParseKind(name string) (Kind, error) {
	for k := KindI32; k <= KindSeqText; k++ {
		if k.String() == name {
			return k, nil
		}
	}
	return KindInvalid, &CellError{Op: "ParseKind", Want: KindInvalid, Got: KindInvalid, Err: fmt.Errorf("%w: %q", ErrUnknownVariant, name)}
}

// ZeroCell returns the default-valued Cell for kind: an empty sequence
// for sequence variants, the zero scalar otherwise. It is used to seed
// a newly declared port before any value has been written to it.
func ZeroCell(kind Kind) Cell {
	switch kind {
	case KindI32:
		return NewI32(0)
	case KindI64:
		return NewI64(0)
	case KindIWide:
		return NewIWide(0)
	case KindU32:
		return NewU32(0)
	case KindU64:
		return NewU64(0)
	case KindUWide:
		return NewUWide(0)
	case KindF32:
		return NewF32(0)
	case KindF64:
		return NewF64(0)
	case KindFWide:
		return NewFWide(0)
	case KindText:
		return NewText("")
	case KindSeqI32:
		return NewSeqI32(nil)
	case KindSeqI64:
		return NewSeqI64(nil)
	case KindSeqF32:
		return NewSeqF32(nil)
	case KindSeqF64:
		return NewSeqF64(nil)
	case KindSeqText:
		return NewSeqText(nil)
	default:
		return Cell{}
	}
}

// --- typed retrieval: fails loudly on variant mismatch ---

func (c Cell) I32() (int32, error) {
	if c.kind != KindI32 {
		return 0, &CellError{Op: "I32", Want: KindI32, Got: c.kind, Err: mismatchErr(c.kind)}
	}
	return int32(c.i64), nil
}

func (c Cell) I64() (int64, error) {
	if c.kind != KindI64 {
		return 0, &CellError{Op: "I64", Want: KindI64, Got: c.kind, Err: mismatchErr(c.kind)}
	}
	return c.i64, nil
}

func (c Cell) IWide() (int64, error) {
	if c.kind != KindIWide {
		return 0, &CellError{Op: "IWide", Want: KindIWide, Got: c.kind, Err: mismatchErr(c.kind)}
	}
	return c.i64, nil
}

func (c Cell) U32() (uint32, error) {
	if c.kind != KindU32 {
		return 0, &CellError{Op: "U32", Want: KindU32, Got: c.kind, Err: mismatchErr(c.kind)}
	}
	return uint32(c.u64), nil
}

func (c Cell) U64() (uint64, error) {
	if c.kind != KindU64 {
		return 0, &CellError{Op: "U64", Want: KindU64, Got: c.kind, Err: mismatchErr(c.kind)}
	}
	return c.u64, nil
}

func (c Cell) UWide() (uint64, error) {
	if c.kind != KindUWide {
		return 0, &CellError{Op: "UWide", Want: KindUWide, Got: c.kind, Err: mismatchErr(c.kind)}
	}
	return c.u64, nil
}

func (c Cell) F32() (float32, error) {
	if c.kind != KindF32 {
		return 0, &CellError{Op: "F32", Want: KindF32, Got: c.kind, Err: mismatchErr(c.kind)}
	}
	return float32(c.f64), nil
}

func (c Cell) F64() (float64, error) {
	if c.kind != KindF64 {
		return 0, &CellError{Op: "F64", Want: KindF64, Got: c.kind, Err: mismatchErr(c.kind)}
	}
	return c.f64, nil
}

func (c Cell) FWide() (float64, error) {
	if c.kind != KindFWide {
		return 0, &CellError{Op: "FWide", Want: KindFWide, Got: c.kind, Err: mismatchErr(c.kind)}
	}
	return c.f64, nil
}

func (c Cell) Text() (string, error) {
	if c.kind != KindText {
		return "", &CellError{Op: "Text", Want: KindText, Got: c.kind, Err: mismatchErr(c.kind)}
	}
	return c.txt, nil
}

func (c Cell) SeqI32() ([]int32, error) {
	if c.kind != KindSeqI32 {
		return nil, &CellError{Op: "SeqI32", Want: KindSeqI32, Got: c.kind, Err: mismatchErr(c.kind)}
	}
	return c.seqI32, nil
}

func (c Cell) SeqI64() ([]int64, error) {
	if c.kind != KindSeqI64 {
		return nil, &CellError{Op: "SeqI64", Want: KindSeqI64, Got: c.kind, Err: mismatchErr(c.kind)}
	}
	return c.seqI64, nil
}

func (c Cell) SeqF32() ([]float32, error) {
	if c.kind != KindSeqF32 {
		return nil, &CellError{Op: "SeqF32", Want: KindSeqF32, Got: c.kind, Err: mismatchErr(c.kind)}
	}
	return c.seqF32, nil
}

func (c Cell) SeqF64() ([]float64, error) {
	if c.kind != KindSeqF64 {
		return nil, &CellError{Op: "SeqF64", Want: KindSeqF64, Got: c.kind, Err: mismatchErr(c.kind)}
	}
	return c.seqF64, nil
}

func (c Cell) SeqText() ([]string, error) {
	if c.kind != KindSeqText {
		return nil, &CellError{Op: "SeqText", Want: KindSeqText, Got: c.kind, Err: mismatchErr(c.kind)}
	}
	return c.seqText, nil
}

func mismatchErr(got Kind) error {
	if got == KindInvalid {
		return ErrUnknownVariant
	}
	return ErrVariantMismatch
}

// Equal reports whether two Cells hold the same variant and the same
// value. Sequence variants compare element-wise.
func (c Cell) Equal(other Cell) bool {
	if c.kind != other.kind {
		return false
	}
	switch c.kind {
	case KindI32, KindI64, KindIWide:
		return c.i64 == other.i64
	case KindU32, KindU64, KindUWide:
		return c.u64 == other.u64
	case KindF32, KindF64, KindFWide:
		return c.f64 == other.f64
	case KindText:
		return c.txt == other.txt
	case KindSeqI32:
		return equalSlice(c.seqI32, other.seqI32)
	case KindSeqI64:
		return equalSlice(c.seqI64, other.seqI64)
	case KindSeqF32:
		return equalSlice(c.seqF32, other.seqF32)
	case KindSeqF64:
		return equalSlice(c.seqF64, other.seqF64)
	case KindSeqText:
		return equalSlice(c.seqText, other.seqText)
	default:
		return true // both KindInvalid
	}
}

func equalSlice[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
