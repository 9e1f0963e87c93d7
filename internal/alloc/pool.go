package alloc

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

type listKind uint8

const (
	onActive listKind = iota
	onFull
	onEmpty
)

type arena[T any] struct {
	id     uint32
	blocks []T
	inUse  []bool
	free   []uint32 // стек свободных индексов
	live   int
	list   listKind
}

func newArena[T any](id uint32, n int) *arena[T] {
	a := &arena[T]{
		id:     id,
		blocks: make([]T, n),
		inUse:  make([]bool, n),
		free:   make([]uint32, n),
	}
	// индексы раздаём по возрастанию: последний элемент стека — 0
	for i := range n {
		a.free[n-1-i] = uint32(i) // #nosec G115 -- n <= ArenaBytes
	}
	return a
}

// Pool is a fixed block-size slab pool of T values.
type Pool[T any] struct {
	class     Class
	blockSize int
	perArena  int

	arenas   []*arena[T] // by id-1; nil slots are released arenas
	freeIDs  []uint32
	active   []uint32 // front = most recent
	full     []uint32
	empty    []uint32
	inUse    int
	peak     int
	released int
}

// NewPool creates a pool whose arenas hold ArenaBytes/blockSize blocks.
func NewPool[T any](class Class, blockSize int) *Pool[T] {
	return &Pool[T]{
		class:     class,
		blockSize: blockSize,
		perArena:  ArenaBytes / blockSize,
	}
}

// Alloc returns a zeroed block.
func (p *Pool[T]) Alloc() (Handle, *T) {
	lock()
	defer unlock()

	if len(p.active) == 0 {
		p.refill()
	}
	a := p.arenas[p.active[0]-1]
	idx := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	a.inUse[idx] = true
	a.live++
	p.inUse++
	if len(a.free) == 0 {
		p.move(a, onFull)
	}
	return makeHandle(p.class, a.id, idx), &a.blocks[idx]
}

// refill puts an arena on the front of the active list: a retained empty one
// first, a new one otherwise.
func (p *Pool[T]) refill() {
	if n := len(p.empty); n > 0 {
		a := p.arenas[p.empty[n-1]-1]
		p.move(a, onActive)
		return
	}
	var id uint32
	if n := len(p.freeIDs); n > 0 {
		id = p.freeIDs[n-1]
		p.freeIDs = p.freeIDs[:n-1]
		p.arenas[id-1] = newArena[T](id, p.perArena)
	} else {
		n, err := safecast.Conv[uint32](len(p.arenas) + 1)
		if err != nil || n >= 1<<arenaBits {
			panic(fmt.Errorf("alloc: arena table overflow"))
		}
		id = n
		p.arenas = append(p.arenas, newArena[T](id, p.perArena))
	}
	a := p.arenas[id-1]
	a.list = onActive
	p.active = slices.Insert(p.active, 0, id)
	p.peak = max(p.peak, p.arenaCount())
}

// Get resolves a handle; it returns nil for freed or foreign handles.
func (p *Pool[T]) Get(h Handle) *T {
	lock()
	defer unlock()
	a := p.arenaOf(h)
	if a == nil {
		return nil
	}
	idx := h.Index()
	if int(idx) >= len(a.blocks) || !a.inUse[idx] {
		return nil
	}
	return &a.blocks[idx]
}

// Free returns a block to its arena. Freeing a block twice is reported as an error.
func (p *Pool[T]) Free(h Handle) error {
	lock()
	defer unlock()

	a := p.arenaOf(h)
	idx := h.Index()
	if a == nil || int(idx) >= len(a.blocks) || !a.inUse[idx] {
		return fmt.Errorf("alloc: invalid free of %s", h)
	}
	var zero T
	a.blocks[idx] = zero
	a.inUse[idx] = false
	a.free = append(a.free, idx)
	a.live--
	p.inUse--

	switch {
	case a.live == 0:
		p.retire(a)
	case a.list == onFull:
		p.move(a, onActive)
	}
	return nil
}

// retire moves a fully free arena to the empty list, or releases it when the
// empty list is already at capacity.
func (p *Pool[T]) retire(a *arena[T]) {
	if len(p.empty) < MaxEmptyArenas {
		p.move(a, onEmpty)
		return
	}
	p.unlink(a)
	p.arenas[a.id-1] = nil
	p.freeIDs = append(p.freeIDs, a.id)
	p.released++
}

func (p *Pool[T]) move(a *arena[T], to listKind) {
	p.unlink(a)
	a.list = to
	switch to {
	case onActive:
		p.active = slices.Insert(p.active, 0, a.id)
	case onFull:
		p.full = append(p.full, a.id)
	case onEmpty:
		p.empty = append(p.empty, a.id)
	}
}

func (p *Pool[T]) unlink(a *arena[T]) {
	var list *[]uint32
	switch a.list {
	case onActive:
		list = &p.active
	case onFull:
		list = &p.full
	case onEmpty:
		list = &p.empty
	}
	if i := slices.Index(*list, a.id); i >= 0 {
		*list = slices.Delete(*list, i, i+1)
	}
}

func (p *Pool[T]) arenaOf(h Handle) *arena[T] {
	if h.Class() != p.class {
		return nil
	}
	id := h.Arena()
	if id == 0 || int(id) > len(p.arenas) {
		return nil
	}
	return p.arenas[id-1]
}

func (p *Pool[T]) arenaCount() int {
	return len(p.active) + len(p.full) + len(p.empty)
}

// Each visits every allocated block. The callback may free the visited block.
func (p *Pool[T]) Each(fn func(Handle, *T)) {
	for _, a := range p.arenas {
		if a == nil {
			continue
		}
		for i := range a.blocks {
			if a.inUse[i] {
				fn(makeHandle(p.class, a.id, uint32(i)), &a.blocks[i]) // #nosec G115 -- bounded by arena size
			}
		}
	}
}

// Stats reports the pool's current shape.
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Class:      p.class.String(),
		BlockSize:  p.blockSize,
		Active:     len(p.active),
		Full:       len(p.full),
		Empty:      len(p.empty),
		Blocks:     p.inUse,
		PeakArenas: p.peak,
		Released:   p.released,
	}
}
