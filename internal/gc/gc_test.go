package gc

import (
	"testing"

	"krait/internal/object"
)

type rootSet []object.Value

func (r *rootSet) EachRoot(mark func(object.Value)) {
	for _, v := range *r {
		mark(v)
	}
}

func TestCycleReclaimed(t *testing.T) {
	heap := object.NewHeap()
	roots := &rootSet{}
	c := New(heap, roots, 16)
	before := heap.Stats().Blocks()

	a := heap.NewList(object.Nil, nil)
	b := heap.NewList(object.Nil, []object.Value{a})
	heap.Get(a).Items = append(heap.Get(a).Items, b)

	if freed := c.Collect(); freed != 2 {
		t.Fatalf("freed %d, want 2", freed)
	}
	if got := heap.Stats().Blocks(); got != before {
		t.Fatalf("blocks %d after collect, want %d", got, before)
	}
}

func TestReachableSurvives(t *testing.T) {
	heap := object.NewHeap()
	roots := &rootSet{}
	c := New(heap, roots, 16)

	s := heap.NewStr(object.Nil, "kept")
	inner := heap.NewTuple(object.Nil, []object.Value{s})
	d := object.NewDict(0)
	outer := heap.NewDict(object.Nil, d)
	heap.Get(outer).Attr = object.NewNameDict(0)
	heap.Get(outer).Attr.Set(1, inner)
	*roots = append(*roots, outer)
	garbage := heap.NewStr(object.Nil, "garbage")

	var deleted []object.Value
	c.OnDelete = func(v object.Value, o *object.Object) {
		if o == nil || o.Str != "garbage" {
			t.Errorf("hook got %v %+v", v, o)
		}
		deleted = append(deleted, v)
	}
	if freed := c.Collect(); freed != 1 {
		t.Fatalf("freed %d, want 1", freed)
	}
	if len(deleted) != 1 || deleted[0] != garbage {
		t.Fatalf("deleted %v", deleted)
	}
	for _, v := range []object.Value{s, inner, outer} {
		o := heap.Get(v)
		if o == nil {
			t.Fatalf("%v reclaimed while reachable", v)
		}
		if o.Marked() {
			t.Fatalf("%v still marked after the cycle", v)
		}
	}
}

func TestPinnedIsRoot(t *testing.T) {
	heap := object.NewHeap()
	c := New(heap, nil, 16)
	typ := heap.NewList(object.Nil, nil)
	heap.Pin(typ)
	child := heap.NewStr(object.Nil, "method")
	heap.Get(typ).Items = []object.Value{child}
	if freed := c.Collect(); freed != 0 {
		t.Fatalf("freed %d objects reachable from a pinned one", freed)
	}
}

func TestThresholdAndLock(t *testing.T) {
	heap := object.NewHeap()
	roots := &rootSet{}
	c := New(heap, roots, 8)

	for range 7 {
		heap.NewStr(object.Nil, "x")
	}
	if c.MaybeCollect() != 0 {
		t.Fatal("collected below threshold")
	}
	heap.NewStr(object.Nil, "x")
	c.Lock()
	if c.MaybeCollect() != 0 {
		t.Fatal("collected while locked")
	}
	c.Unlock()
	if freed := c.MaybeCollect(); freed != 8 {
		t.Fatalf("freed %d, want 8", freed)
	}

	for range 20 {
		*roots = append(*roots, heap.NewStr(object.Nil, "live"))
	}
	c.Collect()
	if st := c.Stats(); st.Threshold != 40 || st.Survivors != 20 || st.Collections != 2 {
		t.Fatalf("stats %+v", st)
	}

	c.SetEnabled(false)
	for range 100 {
		heap.NewStr(object.Nil, "y")
	}
	if c.MaybeCollect() != 0 {
		t.Fatal("collected while disabled")
	}
}
