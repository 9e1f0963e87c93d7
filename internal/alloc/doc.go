// Package alloc implements the engine's slab allocator.
//
// Memory is organised in two fixed block-size pools (64 and 128 byte classes)
// plus a generic table for anything larger. A pool owns arenas; an arena is a
// fixed-capacity block array with an index free list. Arenas live on one of
// three lists:
//
//   - active: has free blocks, most recently used first;
//   - full: no free blocks;
//   - empty: every block free, kept for reuse (at most MaxEmptyArenas).
//
// Allocation always takes from the front of the active list; an empty arena is
// moved back to the front before a new arena is created. Blocks are addressed by
// Handle (class, arena, index), never by Go pointer, so a freed block can be
// detected and reused without dangling references.
//
// Building with -tags krait_gil serialises every entry point behind one
// process-wide mutex.
package alloc
