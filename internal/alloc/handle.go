package alloc

import "fmt"

// Class selects the pool a block comes from.
type Class uint8

const (
	// Generic marks the null-arena path for objects above the largest block size.
	Generic Class = iota
	Small
	Large
)

const (
	SmallBlockSize = 64
	LargeBlockSize = 128
	ArenaBytes     = 64 << 10

	// MaxEmptyArenas bounds the number of fully free arenas retained per pool.
	MaxEmptyArenas = 4

	arenaBits = 28
	indexBits = 32
)

// Handle addresses one block: class (2 bits) | arena (28 bits) | index (32 bits).
// It fits in 62 bits so a tagged value can carry it.
type Handle uint64

func makeHandle(c Class, arena, index uint32) Handle {
	return Handle(uint64(c)<<(arenaBits+indexBits) | uint64(arena)<<indexBits | uint64(index))
}

func (h Handle) Class() Class   { return Class(h >> (arenaBits + indexBits)) }
func (h Handle) Arena() uint32  { return uint32(h>>indexBits) & (1<<arenaBits - 1) }
func (h Handle) Index() uint32  { return uint32(h) }
func (h Handle) String() string { return fmt.Sprintf("%d:%d:%d", h.Class(), h.Arena(), h.Index()) }

func (c Class) String() string {
	switch c {
	case Small:
		return "small"
	case Large:
		return "large"
	default:
		return "generic"
	}
}
