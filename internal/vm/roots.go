package vm

import (
	"krait/internal/object"
	"krait/internal/symbol"
)

// EachRoot enumerates every value the VM holds outside the heap.
func (vm *VM) EachRoot(mark func(Value)) {
	for _, v := range vm.stack[:vm.sp] {
		mark(v)
	}
	for _, f := range vm.frames {
		f.roots(mark)
	}
	mark(vm.exc)
	mark(vm.lastExc)
	mark(vm.yielded)
	for _, v := range vm.temps {
		mark(v)
	}
	for _, v := range vm.scratch {
		mark(v)
	}
	for _, m := range vm.modules {
		mark(m)
	}
	vm.builtins.Each(func(_ symbol.Name, v Value) bool {
		mark(v)
		return true
	})
	for t, c := range vm.ctors {
		mark(t)
		mark(c)
	}
	for _, t := range vm.excTypes {
		mark(t)
	}

	// released units no longer run, their constants go with them
	live := vm.units[:0]
	for _, u := range vm.units {
		if u.Released() {
			continue
		}
		live = append(live, u)
		if c, ok := u.Cache.(*unitCache); ok {
			for _, v := range c.consts {
				mark(v)
			}
		}
	}
	clear(vm.units[len(live):])
	vm.units = live
}

// deleteHook runs for every object the collector reclaims.
func (vm *VM) deleteHook(v Value, o *object.Object) {
	if vm.onDelete != nil {
		vm.onDelete(v, o)
	}
	if o.Kind == object.KFunction {
		if fn, ok := o.Data.(*object.Function); ok && fn.Decl != nil {
			fn.Decl.Release()
			fn.Decl = nil
		}
	}
}
