// Package object defines the runtime value representation.
//
// A Value is one machine word whose low two bits are a tag:
//
//	00  special singletons (Nil, None, False, True, NotImplemented, Ellipsis, markers)
//	01  62-bit signed integer
//	10  float64 whose two low mantissa bits are zero
//	11  heap handle (alloc.Handle) of an Object
//
// Integers and floats that do not fit the tagged form are boxed as heap
// objects of kind KInt/KFloat; callers go through the accessors in this
// package and never see the difference.
//
// Heap objects share one struct (Object) allocated from the slab allocator.
// The variant is a closed Kind; per-kind behaviour used by the collector lives
// in a flat table (kinds.go) rather than behind interfaces.
package object
