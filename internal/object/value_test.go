package object

import (
	"math"
	"testing"

	"krait/internal/alloc"
)

func TestSmallIntRoundTrip(t *testing.T) {
	for _, i := range []int64{0, 1, -1, 42, -42, MaxSmallInt, MinSmallInt} {
		v, ok := SmallInt(i)
		if !ok {
			t.Fatalf("SmallInt(%d) rejected", i)
		}
		if !v.IsSmallInt() || v.Int() != i {
			t.Fatalf("SmallInt(%d) -> %v (%d)", i, v, v.Int())
		}
	}
	for _, i := range []int64{MaxSmallInt + 1, MinSmallInt - 1, math.MaxInt64, math.MinInt64} {
		if _, ok := SmallInt(i); ok {
			t.Fatalf("SmallInt(%d) should need boxing", i)
		}
	}
}

func TestSmallFloat(t *testing.T) {
	for _, f := range []float64{0, 1.5, -2.25, 1e300, math.Inf(1)} {
		v, ok := SmallFloat(f)
		if !ok {
			t.Fatalf("SmallFloat(%g) rejected", f)
		}
		if !v.IsSmallFloat() || v.Float() != f {
			t.Fatalf("SmallFloat(%g) -> %v", f, v)
		}
	}
	// 0.1 has low mantissa bits set
	if _, ok := SmallFloat(0.1); ok {
		t.Fatal("0.1 should be boxed")
	}
	v, _ := SmallFloat(0)
	if v == Nil {
		t.Fatal("0.0 must differ from Nil")
	}
}

func TestSpecialsAndHandles(t *testing.T) {
	specials := []Value{Nil, None, False, True, NotImplemented, Ellipsis, YieldMarker, PendingMarker}
	seen := map[Value]bool{}
	for _, s := range specials {
		if !s.IsSpecial() || seen[s] {
			t.Fatalf("bad special %v", s)
		}
		seen[s] = true
	}
	if Bool(true) != True || Bool(false) != False {
		t.Fatal("Bool mismatch")
	}

	h := NewHeap()
	v, _ := h.New(KList, Nil, 0)
	if !v.IsHeap() {
		t.Fatalf("heap value tagged as %v", v)
	}
	if h.Get(v) == nil {
		t.Fatal("heap value does not resolve")
	}
	if v.Handle().Class() != alloc.Large {
		t.Fatalf("list routed to %s", v.Handle().Class())
	}
}
