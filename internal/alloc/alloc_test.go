package alloc

import "testing"

type block struct {
	a, b int64
	tag  string
}

func TestHandleRoundTrip(t *testing.T) {
	h := makeHandle(Large, 1<<arenaBits-1, 0xFFFFFFFF)
	if h.Class() != Large || h.Arena() != 1<<arenaBits-1 || h.Index() != 0xFFFFFFFF {
		t.Fatalf("handle fields lost: %s", h)
	}
	if uint64(h)>>62 != 0 {
		t.Fatalf("handle must fit in 62 bits: %x", uint64(h))
	}
}

func TestPoolAllocFree(t *testing.T) {
	p := NewPool[block](Small, SmallBlockSize)
	h, b := p.Alloc()
	b.tag = "x"
	if got := p.Get(h); got == nil || got.tag != "x" {
		t.Fatalf("Get returned %+v", got)
	}
	if err := p.Free(h); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if p.Get(h) != nil {
		t.Fatal("freed handle must not resolve")
	}
	if err := p.Free(h); err == nil {
		t.Fatal("double free must be rejected")
	}
}

func TestArenaLifecycle(t *testing.T) {
	p := NewPool[block](Large, LargeBlockSize)
	per := ArenaBytes / LargeBlockSize

	handles := make([]Handle, 0, per+1)
	for range per + 1 {
		h, _ := p.Alloc()
		handles = append(handles, h)
	}
	st := p.Stats()
	if st.Full != 1 || st.Active != 1 || st.Blocks != per+1 {
		t.Fatalf("after fill: %+v", st)
	}

	for _, h := range handles {
		if err := p.Free(h); err != nil {
			t.Fatal(err)
		}
	}
	st = p.Stats()
	if st.Empty != 2 || st.Active != 0 || st.Full != 0 || st.Blocks != 0 {
		t.Fatalf("after free: %+v", st)
	}

	// пустая арена переиспользуется раньше новой
	p.Alloc()
	st = p.Stats()
	if st.Arenas() != 2 || st.PeakArenas != 2 {
		t.Fatalf("empty arena was not recycled: %+v", st)
	}
}

func TestEmptyArenasBounded(t *testing.T) {
	p := NewPool[block](Large, LargeBlockSize)
	per := ArenaBytes / LargeBlockSize
	n := (MaxEmptyArenas + 3) * per

	handles := make([]Handle, 0, n)
	for range n {
		h, _ := p.Alloc()
		handles = append(handles, h)
	}
	for _, h := range handles {
		if err := p.Free(h); err != nil {
			t.Fatal(err)
		}
	}
	st := p.Stats()
	if st.Empty != MaxEmptyArenas || st.Released != 3 {
		t.Fatalf("expected %d retained, 3 released: %+v", MaxEmptyArenas, st)
	}
}

func TestChurnKeepsArenaCountStable(t *testing.T) {
	a := New[block]()
	for range 50 {
		hs := make([]Handle, 0, 2000)
		for range 2000 {
			h, _ := a.Alloc(48)
			hs = append(hs, h)
		}
		for _, h := range hs {
			if err := a.Free(h); err != nil {
				t.Fatal(err)
			}
		}
	}
	per := ArenaBytes / SmallBlockSize
	want := (2000 + per - 1) / per
	if got := a.Stats().Small.PeakArenas; got != want {
		t.Fatalf("peak arenas = %d, want %d", got, want)
	}
}

func TestAllocatorRouting(t *testing.T) {
	a := New[block]()
	hs, _ := a.Alloc(16)
	hl, _ := a.Alloc(100)
	hg, _ := a.Alloc(4096)
	if hs.Class() != Small || hl.Class() != Large || hg.Class() != Generic || hg.Arena() != 0 {
		t.Fatalf("routing: %s %s %s", hs, hl, hg)
	}
	count := 0
	a.Each(func(Handle, *block) { count++ })
	if count != 3 || a.Stats().Blocks() != 3 {
		t.Fatalf("expected 3 live blocks, saw %d", count)
	}
	if err := a.Free(hg); err != nil || a.Get(hg) != nil {
		t.Fatalf("generic free failed: %v", err)
	}
}
