package alloc

import (
	"fmt"

	"fortio.org/safecast"
)

// Table is the null-arena path: one Go allocation per object, addressed by
// index. Index 0 is never handed out.
type Table[T any] struct {
	slots []*T
	free  []uint32
	live  int
}

func NewTable[T any]() *Table[T] {
	return &Table[T]{slots: make([]*T, 1)}
}

func (t *Table[T]) Alloc() (Handle, *T) {
	lock()
	defer unlock()

	obj := new(T)
	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
		t.slots[idx] = obj
	} else {
		n, err := safecast.Conv[uint32](len(t.slots))
		if err != nil {
			panic(fmt.Errorf("alloc: generic table overflow: %w", err))
		}
		idx = n
		t.slots = append(t.slots, obj)
	}
	t.live++
	return makeHandle(Generic, 0, idx), obj
}

func (t *Table[T]) Get(h Handle) *T {
	lock()
	defer unlock()
	if h.Class() != Generic || h.Arena() != 0 {
		return nil
	}
	idx := h.Index()
	if idx == 0 || int(idx) >= len(t.slots) {
		return nil
	}
	return t.slots[idx]
}

func (t *Table[T]) Free(h Handle) error {
	lock()
	defer unlock()

	idx := h.Index()
	if h.Class() != Generic || idx == 0 || int(idx) >= len(t.slots) || t.slots[idx] == nil {
		return fmt.Errorf("alloc: invalid free of %s", h)
	}
	t.slots[idx] = nil
	t.free = append(t.free, idx)
	t.live--
	return nil
}

func (t *Table[T]) Each(fn func(Handle, *T)) {
	for i, obj := range t.slots {
		if obj != nil {
			fn(makeHandle(Generic, 0, uint32(i)), obj) // #nosec G115 -- table length checked on growth
		}
	}
}

func (t *Table[T]) Len() int { return t.live }
