package vm

import (
	"fmt"
	"io"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"krait/internal/alloc"
	"krait/internal/gc"
	"krait/internal/object"
)

// heapDumpSchema is bumped whenever HeapDump changes shape.
const heapDumpSchema uint16 = 1

// TypeCount is the number of live objects of one type.
type TypeCount struct {
	Type  string `msgpack:"type" json:"type"`
	Count int    `msgpack:"count" json:"count"`
}

// HeapDump is a snapshot of the heap shape.
type HeapDump struct {
	Schema  uint16      `msgpack:"schema" json:"schema"`
	Live    int         `msgpack:"live" json:"live"`
	Alloc   alloc.Stats `msgpack:"alloc" json:"alloc"`
	GC      gc.Stats    `msgpack:"gc" json:"gc"`
	Modules []string    `msgpack:"modules" json:"modules"`
	Types   []TypeCount `msgpack:"types" json:"types"`
}

// Snapshot counts live objects per type name, most common first.
func (vm *VM) Snapshot() HeapDump {
	counts := make(map[string]int)
	vm.Heap.Each(func(_ Value, o *object.Object) {
		name := "?"
		if ti := vm.typeInfo(o.Type); ti != nil {
			name = ti.Name
		}
		counts[name]++
	})
	types := make([]TypeCount, 0, len(counts))
	for t, n := range counts {
		types = append(types, TypeCount{Type: t, Count: n})
	}
	sort.Slice(types, func(i, j int) bool {
		if types[i].Count != types[j].Count {
			return types[i].Count > types[j].Count
		}
		return types[i].Type < types[j].Type
	})
	return HeapDump{
		Schema:  heapDumpSchema,
		Live:    vm.Heap.Live(),
		Alloc:   vm.Heap.Stats(),
		GC:      vm.GC.Stats(),
		Modules: vm.Modules(),
		Types:   types,
	}
}

// WriteHeapDump encodes a snapshot of the heap with MessagePack.
func (vm *VM) WriteHeapDump(w io.Writer) error {
	return msgpack.NewEncoder(w).Encode(vm.Snapshot())
}

// ReadHeapDump decodes a dump written by WriteHeapDump.
func ReadHeapDump(r io.Reader) (*HeapDump, error) {
	var d HeapDump
	if err := msgpack.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("heap dump: %w", err)
	}
	if d.Schema != heapDumpSchema {
		return nil, fmt.Errorf("heap dump: schema %d, want %d", d.Schema, heapDumpSchema)
	}
	return &d, nil
}
