package vm

import (
	"krait/internal/code"
	"krait/internal/object"
	"krait/internal/symbol"
)

// unwind looks for a handler of vm.exc, popping frames that have none. It
// returns errThrown when the exception escaped an entry frame.
func (vm *VM) unwind() error {
	for {
		f := vm.top()
		exc := vm.exc
		vm.addTrace(f, exc)

		bi := vm.unwindFrom
		vm.unwindFrom = noBlock
		if bi == noBlock {
			bi = vm.blockAt(f)
		}
		for bi >= 0 {
			b := &f.Unit.Blocks[bi]
			parent := int(b.Parent)
			switch b.Type {
			case code.BlockTry, code.BlockFinally:
				vm.truncate(f.sb() + int(b.Depth))
				f.dropPending(vm.sp)
				f.dropClasses(b.Start)
				vm.push(exc)
				vm.lastExc = exc
				vm.exc = Nil
				f.IP = int(b.Handler)
				return nil
			case code.BlockWith:
				top := f.sb() + int(b.Depth)
				if top > vm.sp || top <= f.sb() {
					return vm.eb.badBlock(f.Unit, bi)
				}
				mgr := vm.stack[top-1]
				vm.truncate(top)
				f.dropPending(vm.sp)
				f.dropClasses(b.Start)
				suppress, err := vm.withExitExc(mgr, exc)
				switch {
				case err != nil && err != errThrown:
					if _, fatal := err.(*FatalError); fatal {
						return err
					}
					vm.exc = vm.excFromError(err)
					fallthrough
				case err != nil:
					// __exit__ raised: the new exception replaces the old one
					if vm.exc != exc {
						exc = vm.exc
						vm.addTrace(f, exc)
					}
				case suppress:
					vm.truncate(f.sb() + b.Base())
					vm.exc = Nil
					f.IP = int(b.Handler)
					return nil
				}
				vm.exc = exc
				vm.truncate(f.sb() + b.Base())
			}
			bi = parent
		}

		entry := f.entry
		vm.finishFrame(f)
		if entry {
			return errThrown
		}
	}
}

// withExitExc calls mgr.__exit__(type, exc, None) and reports whether the
// exception is suppressed.
func (vm *VM) withExitExc(mgr, exc Value) (bool, error) {
	n := vm.pin(exc)
	defer vm.unpinTo(n)
	r, err := vm.callMethod(mgr, symbol.Exit, vm.typeOf(exc), exc, None)
	if err != nil {
		return false, err
	}
	return vm.truth(r)
}

// exitBlocks leaves the blocks from bi up to, but excluding, target for a
// return, break or continue. With blocks are exited; at a finally block the
// action is postponed and handled reports true.
func (vm *VM) exitBlocks(f *Frame, bi, target int, act pending) (handled bool, err error) {
	for bi >= 0 && bi != target {
		b := &f.Unit.Blocks[bi]
		parent := int(b.Parent)
		switch b.Type {
		case code.BlockWith:
			mgr := vm.stack[f.sb()+int(b.Depth)-1]
			if _, err := vm.callMethod(mgr, symbol.Exit, None, None, None); err != nil {
				vm.unwindFrom = parent
				return false, err
			}
		case code.BlockFinally:
			vm.truncate(f.sb() + int(b.Depth))
			act.slot = vm.sp - f.Base
			f.pending = append(f.pending, act)
			vm.push(object.PendingMarker)
			f.IP = int(b.Handler)
			return true, nil
		}
		bi = parent
	}
	return false, nil
}

// loopJump performs break or continue from the instruction in block bi.
func (vm *VM) loopJump(f *Frame, bi int, act pending) error {
	target := int(act.target)
	handled, err := vm.exitBlocks(f, bi, target, act)
	if err != nil || handled {
		return err
	}
	b := &f.Unit.Blocks[target]
	if act.kind == pendBreak {
		vm.truncate(f.sb() + b.Base())
		f.IP = int(b.Handler)
	} else {
		vm.truncate(f.sb() + int(b.Depth))
		f.IP = int(b.Continue)
	}
	f.dropPending(vm.sp)
	return nil
}

// endFinally ends a finally body or an except dispatch: None falls through,
// the pending marker resumes the postponed action, an exception re-raises.
func (vm *VM) endFinally(f *Frame) (Value, bool, error) {
	v := vm.pop()
	switch v {
	case None:
		return Nil, false, nil
	case object.PendingMarker:
		if len(f.pending) == 0 {
			return Nil, false, vm.eb.stackCorrupt("END_FINALLY without a pending action")
		}
		p := f.pending[len(f.pending)-1]
		f.pending = f.pending[:len(f.pending)-1]
		bi := vm.blockAt(f)
		switch p.kind {
		case pendReturn:
			return vm.doReturn(f, bi, p.value)
		default:
			return Nil, false, vm.loopJump(f, bi, p)
		}
	}
	return Nil, false, vm.reraise(v)
}

// reraise propagates exc again without extending its trace in this frame.
func (vm *VM) reraise(exc Value) error {
	if info, ok := vm.excInfo(exc); ok {
		info.Raised = true
	}
	return vm.raise(exc)
}

func (vm *VM) doRaise(arg int) error {
	switch arg {
	case code.RaiseBare:
		if vm.lastExc == Nil {
			return vm.raisef(vm.types.runtimeError, "No active exception to reraise")
		}
		return vm.reraise(vm.lastExc)
	case code.RaiseCause:
		exc, err := vm.makeException(vm.peek(1))
		if err != nil {
			return err
		}
		cause := vm.peek(0)
		if cause != None {
			n := vm.pin(exc)
			cause, err = vm.makeException(cause)
			vm.unpinTo(n)
			if err != nil {
				return err
			}
		}
		vm.popN(2)
		info, _ := vm.excInfo(exc)
		info.Cause = cause
		return vm.raise(exc)
	}
	exc, err := vm.makeException(vm.peek(0))
	if err != nil {
		return err
	}
	vm.pop()
	return vm.raise(exc)
}

// makeException instantiates exception classes; instances pass through.
func (vm *VM) makeException(v Value) (Value, error) {
	if vm.isExceptionValue(v) {
		return v, nil
	}
	if vm.isType(v) && vm.isSubtype(v, vm.types.baseException) {
		exc, err := vm.Call(v)
		if err != nil {
			return Nil, err
		}
		if !vm.isExceptionValue(exc) {
			return Nil, vm.typeError("calling %s should have returned an instance of BaseException", vm.typeInfo(v).Name)
		}
		return exc, nil
	}
	return Nil, vm.typeError("exceptions must derive from BaseException")
}

// exceptionMatch implements "except T": T is a class or a tuple of classes.
func (vm *VM) exceptionMatch(exc, typ Value) (bool, error) {
	if items, ok := vm.elems(typ); ok && vm.is(typ, object.KTuple) {
		for _, t := range items {
			m, err := vm.exceptionMatch(exc, t)
			if err != nil || m {
				return m, err
			}
		}
		return false, nil
	}
	if !vm.isType(typ) || !vm.isSubtype(typ, vm.types.baseException) {
		return false, vm.typeError("catching classes that do not inherit from BaseException is not allowed")
	}
	return vm.isInstance(exc, typ), nil
}
