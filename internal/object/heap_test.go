package object

import "testing"

func TestHeapTuplesInline(t *testing.T) {
	h := NewHeap()
	pair := h.NewTuple(Nil, []Value{iv(1), iv(2)})
	o := h.Get(pair)
	if o.Items != nil || len(o.Elems()) != 2 || o.Elems()[1] != iv(2) {
		t.Fatalf("pair elems %v", o.Elems())
	}
	big := h.NewTuple(Nil, []Value{iv(1), iv(2), iv(3)})
	if got := h.Get(big).Elems(); len(got) != 3 {
		t.Fatalf("tuple of 3 has %d elems", len(got))
	}
	empty := h.NewTuple(Nil, nil)
	if len(h.Get(empty).Elems()) != 0 {
		t.Fatal("empty tuple not empty")
	}
}

func TestHeapChildrenAndPin(t *testing.T) {
	h := NewHeap()
	s := h.NewStr(Nil, "héllo")
	l := h.NewList(Nil, []Value{s, iv(3)})
	var seen []Value
	Children(h.Get(l), func(v Value) { seen = append(seen, v) })
	if len(seen) != 3 || seen[1] != s {
		t.Fatalf("children %v", seen)
	}
	so := h.Get(s)
	if so.ASCII() || StrLen(so) != 5 || Substr(so, 1, 3) != "él" {
		t.Fatalf("str helpers: ascii=%v len=%d sub=%q", so.ASCII(), StrLen(so), Substr(so, 1, 3))
	}
	h.Pin(s)
	if so.Traced() {
		t.Fatal("pinned object still traced")
	}
	n := 0
	h.EachPinned(func(Value) { n++ })
	if n != 1 {
		t.Fatalf("pinned %d", n)
	}
	if err := h.Free(l); err != nil {
		t.Fatal(err)
	}
	if h.Free(l) == nil {
		t.Fatal("double free not reported")
	}
	if h.Live() != 1 || h.Recent() != 2 {
		t.Fatalf("live %d recent %d", h.Live(), h.Recent())
	}
}
