package object

import (
	"fmt"
	"math"

	"krait/internal/alloc"
)

// Value is a tagged machine word.
type Value uint64

const (
	tagMask    = 3
	tagSpecial = 0
	tagInt     = 1
	tagFloat   = 2
	tagHeap    = 3
)

// Special singletons. Nil is the zero Value: an unbound local, an absent
// receiver in the calling convention, or "no value" in Go APIs.
const (
	Nil Value = iota << 2
	None
	False
	True
	NotImplemented
	Ellipsis
	// YieldMarker is returned by the dispatch loop when a generator frame suspends.
	YieldMarker
	// PendingMarker tells END_FINALLY to resume a pending return/break/continue.
	PendingMarker
)

const (
	MaxSmallInt = 1<<61 - 1
	MinSmallInt = -1 << 61
)

// SmallInt tags i; ok is false when i needs boxing.
func SmallInt(i int64) (Value, bool) {
	if i < MinSmallInt || i > MaxSmallInt {
		return Nil, false
	}
	return Value(uint64(i)<<2 | tagInt), true // #nosec G115 -- two's complement shift is intended
}

// SmallFloat tags f; ok is false when its two low mantissa bits are set.
func SmallFloat(f float64) (Value, bool) {
	b := math.Float64bits(f)
	if b&tagMask != 0 {
		return Nil, false
	}
	return Value(b | tagFloat), true
}

// FromHandle wraps an allocator handle.
func FromHandle(h alloc.Handle) Value { return Value(uint64(h)<<2 | tagHeap) }

func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

func (v Value) tag() uint64 { return uint64(v) & tagMask }

func (v Value) IsSmallInt() bool   { return v.tag() == tagInt }
func (v Value) IsSmallFloat() bool { return v.tag() == tagFloat }
func (v Value) IsHeap() bool       { return v.tag() == tagHeap }
func (v Value) IsSpecial() bool    { return v.tag() == tagSpecial }
func (v Value) IsNil() bool        { return v == Nil }
func (v Value) IsNone() bool       { return v == None }
func (v Value) IsBool() bool       { return v == True || v == False }

// Int returns the payload of a tagged integer.
func (v Value) Int() int64 { return int64(v) >> 2 } // #nosec G115 -- arithmetic shift restores the sign

// Float returns the payload of a tagged float.
func (v Value) Float() float64 { return math.Float64frombits(uint64(v) &^ tagMask) }

// Handle returns the allocator handle of a heap value.
func (v Value) Handle() alloc.Handle { return alloc.Handle(uint64(v) >> 2) }

func (v Value) String() string {
	switch v.tag() {
	case tagInt:
		return fmt.Sprintf("int(%d)", v.Int())
	case tagFloat:
		return fmt.Sprintf("float(%g)", v.Float())
	case tagHeap:
		return fmt.Sprintf("obj(%s)", v.Handle())
	}
	switch v {
	case Nil:
		return "nil"
	case None:
		return "None"
	case False:
		return "False"
	case True:
		return "True"
	case NotImplemented:
		return "NotImplemented"
	case Ellipsis:
		return "Ellipsis"
	case YieldMarker:
		return "<yield>"
	case PendingMarker:
		return "<pending>"
	}
	return fmt.Sprintf("special(%d)", uint64(v))
}
