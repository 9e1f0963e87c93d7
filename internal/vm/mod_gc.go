package vm

import "krait/internal/object"

func (vm *VM) gcModule() Value {
	return vm.nativeModule("gc", map[string]modFn{
		"collect": {argc: 0, fn: func(vm *VM, _, _ []Value) (Value, error) {
			return vm.NewInt(int64(vm.GC.Collect())), nil
		}},
		"enable": {argc: 0, fn: func(vm *VM, _, _ []Value) (Value, error) {
			vm.GC.SetEnabled(true)
			return None, nil
		}},
		"disable": {argc: 0, fn: func(vm *VM, _, _ []Value) (Value, error) {
			vm.GC.SetEnabled(false)
			return None, nil
		}},
		"isenabled": {argc: 0, fn: func(vm *VM, _, _ []Value) (Value, error) {
			return object.Bool(vm.GC.Enabled()), nil
		}},
		"stats": {argc: 0, fn: func(vm *VM, _, _ []Value) (Value, error) {
			return vm.gcStats()
		}},
	})
}

// gcStats reports collector and allocator counters as a dict.
func (vm *VM) gcStats() (Value, error) {
	s := vm.GC.Stats()
	m := vm.Heap.Stats()
	d := object.NewDict(12)
	fields := []struct {
		k string
		v int
	}{
		{"collections", s.Collections},
		{"freed", s.Freed},
		{"last_freed", s.LastFreed},
		{"survivors", s.Survivors},
		{"threshold", s.Threshold},
		{"live", vm.Heap.Live()},
		{"blocks", m.Blocks()},
		{"arenas", m.Small.Arenas() + m.Large.Arenas()},
		{"peak_arenas", m.PeakArenas()},
	}
	for _, f := range fields {
		if err := d.Set(vm, vm.NewStr(f.k), vm.NewInt(int64(f.v))); err != nil {
			return Nil, err
		}
	}
	if err := d.Set(vm, vm.NewStr("enabled"), object.Bool(s.Enabled)); err != nil {
		return Nil, err
	}
	return vm.Heap.NewDict(vm.types.dict, d), nil
}
