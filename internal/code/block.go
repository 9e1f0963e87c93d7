package code

// BlockType is the kind of a block-table region.
type BlockType uint8

const (
	BlockFor BlockType = iota
	BlockWhile
	BlockWith
	BlockTry
	BlockExcept
	BlockFinally
)

func (t BlockType) String() string {
	switch t {
	case BlockFor:
		return "for"
	case BlockWhile:
		return "while"
	case BlockWith:
		return "with"
	case BlockTry:
		return "try"
	case BlockExcept:
		return "except"
	case BlockFinally:
		return "finally"
	}
	return "?"
}

// IsLoop reports whether break/continue may target the block.
func (t BlockType) IsLoop() bool { return t == BlockFor || t == BlockWhile }

// Block is a region [Start, End) of a unit's instructions.
//
// Depth is the value-stack depth above the locals inside the block; Owned of
// those slots belong to the block itself (the loop iterator, the context
// manager, the caught exception) and are dropped when it is left.
//
// Handler means: the except dispatch for Try, the finally body for Finally,
// the continuation after WITH_EXIT for With, and the break target for loops.
type Block struct {
	Type     BlockType
	Parent   int32
	Start    uint32
	End      uint32
	Handler  uint32
	Continue uint32
	Depth    uint16
	Owned    uint16
}

// Base returns the depth the block was entered at.
func (b *Block) Base() int { return int(b.Depth) - int(b.Owned) }
