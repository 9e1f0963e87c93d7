package alloc

// Allocator routes requests by nominal size: up to SmallBlockSize to the small
// pool, up to LargeBlockSize to the large pool, the rest to the generic table.
type Allocator[T any] struct {
	small   *Pool[T]
	large   *Pool[T]
	generic *Table[T]
}

func New[T any]() *Allocator[T] {
	return &Allocator[T]{
		small:   NewPool[T](Small, SmallBlockSize),
		large:   NewPool[T](Large, LargeBlockSize),
		generic: NewTable[T](),
	}
}

// Alloc returns a zeroed block sized for a payload of size bytes.
func (a *Allocator[T]) Alloc(size int) (Handle, *T) {
	switch {
	case size <= SmallBlockSize:
		return a.small.Alloc()
	case size <= LargeBlockSize:
		return a.large.Alloc()
	default:
		return a.generic.Alloc()
	}
}

func (a *Allocator[T]) Get(h Handle) *T {
	switch h.Class() {
	case Small:
		return a.small.Get(h)
	case Large:
		return a.large.Get(h)
	default:
		return a.generic.Get(h)
	}
}

func (a *Allocator[T]) Free(h Handle) error {
	switch h.Class() {
	case Small:
		return a.small.Free(h)
	case Large:
		return a.large.Free(h)
	default:
		return a.generic.Free(h)
	}
}

// Each visits every live block in every pool.
func (a *Allocator[T]) Each(fn func(Handle, *T)) {
	a.small.Each(fn)
	a.large.Each(fn)
	a.generic.Each(fn)
}

// PoolStats describes one pool.
type PoolStats struct {
	Class      string `msgpack:"class" json:"class"`
	BlockSize  int    `msgpack:"block_size" json:"block_size"`
	Active     int    `msgpack:"active" json:"active"`
	Full       int    `msgpack:"full" json:"full"`
	Empty      int    `msgpack:"empty" json:"empty"`
	Blocks     int    `msgpack:"blocks" json:"blocks"`
	PeakArenas int    `msgpack:"peak_arenas" json:"peak_arenas"`
	Released   int    `msgpack:"released" json:"released"`
}

// Arenas is the number of arenas the pool currently holds.
func (s PoolStats) Arenas() int { return s.Active + s.Full + s.Empty }

// Stats aggregates every pool.
type Stats struct {
	Small   PoolStats `msgpack:"small" json:"small"`
	Large   PoolStats `msgpack:"large" json:"large"`
	Generic int       `msgpack:"generic" json:"generic"`
}

// Blocks is the total number of live blocks including generic objects.
func (s Stats) Blocks() int { return s.Small.Blocks + s.Large.Blocks + s.Generic }

// PeakArenas is the peak arena count summed over both pools.
func (s Stats) PeakArenas() int { return s.Small.PeakArenas + s.Large.PeakArenas }

func (a *Allocator[T]) Stats() Stats {
	return Stats{
		Small:   a.small.Stats(),
		Large:   a.large.Stats(),
		Generic: a.generic.Len(),
	}
}
