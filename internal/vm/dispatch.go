package vm

import (
	"krait/internal/code"
	"krait/internal/object"
	"krait/internal/symbol"
)

// run dispatches instructions until the entry frame at index stop returns
// or an exception escapes it.
func (vm *VM) run(stop int) (Value, error) {
	for len(vm.frames) > stop {
		f := vm.frames[len(vm.frames)-1]
		vm.GC.MaybeCollect()
		if f.IP >= len(f.Unit.Code) {
			return Nil, vm.eb.stackCorrupt("instruction pointer ran off the end of " + f.Unit.Name)
		}
		in := f.Unit.Code[f.IP]
		f.IP++
		if vm.Exec != nil {
			vm.Exec.instr(vm, f, f.IP-1, in)
		}

		v, done, err := vm.step(f, in)
		if err == nil {
			if done {
				return v, nil
			}
			continue
		}
		if _, fatal := err.(*FatalError); fatal {
			return Nil, err
		}
		if err = vm.throw(err); err != errThrown {
			return Nil, err
		}
		// an entry frame that already returned raised into its caller
		if len(vm.frames) <= stop {
			return Nil, errThrown
		}
		if err := vm.unwind(); err != nil {
			return Nil, err
		}
	}
	return Nil, vm.eb.stackCorrupt("run loop left without an entry frame")
}

// replace pops n values and pushes v.
func (vm *VM) replace(n int, v Value) {
	vm.popN(n)
	vm.push(v)
}

// step executes one instruction. done reports that an entry frame returned
// or a generator frame suspended; v is then the result of run.
func (vm *VM) step(f *Frame, in code.Instr) (v Value, done bool, err error) {
	arg := int(in.Arg)
	switch in.Op {
	case code.NOP:
	case code.POP_TOP:
		vm.pop()
	case code.DUP_TOP:
		vm.push(vm.peek(0))
	case code.DUP_TOP_TWO:
		a, b := vm.peek(1), vm.peek(0)
		vm.push(a)
		vm.push(b)
	case code.ROT_TWO:
		s := vm.stack[vm.sp-2 : vm.sp]
		s[0], s[1] = s[1], s[0]
	case code.ROT_THREE:
		s := vm.stack[vm.sp-3 : vm.sp]
		s[0], s[1], s[2] = s[2], s[0], s[1]
	case code.PUSH_NIL:
		vm.push(Nil)

	case code.LOAD_CONST:
		vm.push(f.consts[arg])
	case code.LOAD_NONE:
		vm.push(None)
	case code.LOAD_TRUE:
		vm.push(True)
	case code.LOAD_FALSE:
		vm.push(False)
	case code.LOAD_ELLIPSIS:
		vm.push(Ellipsis)
	case code.LOAD_INTEGER:
		vm.push(vm.NewInt(int64(int16(in.Arg)))) // #nosec G115 -- the immediate is signed
	case code.LOAD_FAST:
		x := vm.loadLocal(f, arg)
		if x == Nil {
			return Nil, false, vm.unboundLocal(f.Unit.Varnames[arg])
		}
		vm.push(x)
	case code.LOAD_NAME:
		x, err := vm.loadName(f, f.Unit.Names[arg])
		if err != nil {
			return Nil, false, err
		}
		vm.push(x)
	case code.LOAD_NONLOCAL:
		x, err := vm.loadNonlocal(f, f.Unit.Names[arg])
		if err != nil {
			return Nil, false, err
		}
		vm.push(x)
	case code.LOAD_GLOBAL:
		x, err := vm.loadGlobal(f, f.Unit.Names[arg])
		if err != nil {
			return Nil, false, err
		}
		vm.push(x)
	case code.LOAD_ATTR:
		x, err := vm.getattr(vm.peek(0), f.Unit.Names[arg])
		if err != nil {
			return Nil, false, err
		}
		vm.stack[vm.sp-1] = x
	case code.LOAD_METHOD:
		fn, self, err := vm.loadMethod(vm.peek(0), f.Unit.Names[arg])
		if err != nil {
			return Nil, false, err
		}
		vm.stack[vm.sp-1] = fn
		vm.push(self)
	case code.LOAD_SUBSCR:
		x, err := vm.getitem(vm.peek(1), vm.peek(0))
		if err != nil {
			return Nil, false, err
		}
		vm.replace(2, x)
	case code.LOAD_FUNCTION:
		vm.push(vm.newFunction(f, f.Unit.Funcs[arg]))

	case code.STORE_FAST:
		vm.storeLocal(f, arg, vm.pop())
	case code.STORE_NAME:
		vm.storeName(f, f.Unit.Names[arg], vm.pop())
	case code.STORE_NONLOCAL:
		if err := vm.storeNonlocal(f, f.Unit.Names[arg], vm.peek(0)); err != nil {
			return Nil, false, err
		}
		vm.pop()
	case code.STORE_GLOBAL:
		f.Globals.Set(f.Unit.Names[arg], vm.pop())
	case code.STORE_ATTR:
		if err := vm.setattr(vm.peek(0), f.Unit.Names[arg], vm.peek(1)); err != nil {
			return Nil, false, err
		}
		vm.popN(2)
	case code.STORE_SUBSCR:
		if err := vm.setitem(vm.peek(1), vm.peek(0), vm.peek(2)); err != nil {
			return Nil, false, err
		}
		vm.popN(3)
	case code.STORE_CLASS_ATTR:
		if len(f.classes) == 0 {
			return Nil, false, vm.eb.stackCorrupt("STORE_CLASS_ATTR outside a class body")
		}
		vm.storeClassAttr(f.classes[len(f.classes)-1].typ, f.Unit.Names[arg], vm.pop())

	case code.DELETE_FAST:
		if vm.loadLocal(f, arg) == Nil {
			return Nil, false, vm.unboundLocal(f.Unit.Varnames[arg])
		}
		vm.deleteLocal(f, arg)
	case code.DELETE_NAME:
		if err := vm.deleteName(f, f.Unit.Names[arg]); err != nil {
			return Nil, false, err
		}
	case code.DELETE_NONLOCAL:
		if err := vm.deleteNonlocal(f, f.Unit.Names[arg]); err != nil {
			return Nil, false, err
		}
	case code.DELETE_GLOBAL:
		if !f.Globals.Delete(f.Unit.Names[arg]) {
			return Nil, false, vm.nameError(f.Unit.Names[arg])
		}
	case code.DELETE_ATTR:
		if err := vm.delattr(vm.peek(0), f.Unit.Names[arg]); err != nil {
			return Nil, false, err
		}
		vm.pop()
	case code.DELETE_SUBSCR:
		if err := vm.delitem(vm.peek(1), vm.peek(0)); err != nil {
			return Nil, false, err
		}
		vm.popN(2)

	case code.BUILD_LIST:
		items := make([]Value, arg)
		copy(items, vm.stack[vm.sp-arg:vm.sp])
		vm.replace(arg, vm.NewList(items))
	case code.BUILD_TUPLE:
		vm.replace(arg, vm.NewTuple(vm.stack[vm.sp-arg:vm.sp]))
	case code.BUILD_DICT:
		d := vm.NewDict()
		dd, _ := vm.dictOf(d)
		vm.push(d)
		pairs := vm.stack[vm.sp-1-2*arg : vm.sp-1]
		for i := 0; i < len(pairs); i += 2 {
			if err := dd.Set(vm, pairs[i], pairs[i+1]); err != nil {
				return Nil, false, err
			}
		}
		vm.replace(2*arg+1, d)
	case code.BUILD_SLICE:
		s := &object.Slice{Start: vm.peek(arg - 1), Stop: vm.peek(arg - 2), Step: None}
		if arg == 3 {
			s.Step = vm.peek(0)
		}
		x, _ := vm.Heap.NewData(object.KSlice, vm.types.slice, s)
		vm.replace(arg, x)
	case code.BUILD_STRING:
		x, err := vm.concatStrings(vm.stack[vm.sp-arg : vm.sp])
		if err != nil {
			return Nil, false, err
		}
		vm.replace(arg, x)
	case code.LIST_APPEND:
		lo := vm.obj(vm.stack[vm.sp-1-arg])
		lo.Items = append(lo.Items, vm.pop())
	case code.LIST_EXTEND:
		if err := vm.listExtend(vm.stack[vm.sp-1-arg], vm.peek(0)); err != nil {
			return Nil, false, err
		}
		vm.pop()
	case code.DICT_ADD:
		d, _ := vm.dictOf(vm.stack[vm.sp-2-arg])
		if err := d.Set(vm, vm.peek(1), vm.peek(0)); err != nil {
			return Nil, false, err
		}
		vm.popN(2)
	case code.DICT_UPDATE:
		if err := vm.dictUpdate(vm.stack[vm.sp-1-arg], vm.peek(0)); err != nil {
			return Nil, false, err
		}
		vm.pop()
	case code.LIST_TO_TUPLE:
		vm.stack[vm.sp-1] = vm.NewTuple(vm.obj(vm.peek(0)).Items)
	case code.UNPACK_SEQUENCE:
		if err := vm.unpack(arg); err != nil {
			return Nil, false, err
		}
	case code.UNPACK_EX:
		before, after := code.SplitUnpackEx(in.Arg)
		if err := vm.unpackEx(before, after); err != nil {
			return Nil, false, err
		}

	case code.BINARY_OP:
		x, err := vm.binary(code.BinaryOp(in.Arg), vm.peek(1), vm.peek(0))
		if err != nil {
			return Nil, false, err
		}
		vm.replace(2, x)
	case code.COMPARE_OP:
		x, err := vm.compare(code.CompareOp(in.Arg), vm.peek(1), vm.peek(0))
		if err != nil {
			return Nil, false, err
		}
		vm.replace(2, x)
	case code.IS_OP:
		same := vm.peek(1) == vm.peek(0)
		vm.replace(2, object.Bool(same != (arg == 1)))
	case code.CONTAINS_OP:
		found, err := vm.contains(vm.peek(0), vm.peek(1))
		if err != nil {
			return Nil, false, err
		}
		vm.replace(2, object.Bool(found != (arg == 1)))
	case code.UNARY_NEGATIVE, code.UNARY_POSITIVE, code.UNARY_INVERT:
		x, err := vm.unary(in.Op, vm.peek(0))
		if err != nil {
			return Nil, false, err
		}
		vm.stack[vm.sp-1] = x
	case code.UNARY_NOT:
		t, err := vm.truth(vm.peek(0))
		if err != nil {
			return Nil, false, err
		}
		vm.stack[vm.sp-1] = object.Bool(!t)

	case code.JUMP_ABSOLUTE:
		f.IP = arg
	case code.POP_JUMP_IF_FALSE, code.POP_JUMP_IF_TRUE:
		t, err := vm.truth(vm.peek(0))
		if err != nil {
			return Nil, false, err
		}
		vm.pop()
		if t == (in.Op == code.POP_JUMP_IF_TRUE) {
			f.IP = arg
		}
	case code.JUMP_IF_FALSE_OR_POP, code.JUMP_IF_TRUE_OR_POP:
		t, err := vm.truth(vm.peek(0))
		if err != nil {
			return Nil, false, err
		}
		if t == (in.Op == code.JUMP_IF_TRUE_OR_POP) {
			f.IP = arg
		} else {
			vm.pop()
		}
	case code.LOOP_BREAK:
		if err := vm.loopJump(f, vm.blockAt(f), pending{kind: pendBreak, target: int32(in.Arg)}); err != nil { // #nosec G115 -- block indices fit
			return Nil, false, err
		}
	case code.LOOP_CONTINUE:
		if err := vm.loopJump(f, vm.blockAt(f), pending{kind: pendContinue, target: int32(in.Arg)}); err != nil { // #nosec G115 -- block indices fit
			return Nil, false, err
		}

	case code.GET_ITER:
		it, err := vm.iter(vm.peek(0))
		if err != nil {
			return Nil, false, err
		}
		vm.stack[vm.sp-1] = it
	case code.FOR_ITER:
		x, ok, err := vm.iterNext(vm.peek(0))
		if err != nil {
			return Nil, false, err
		}
		if ok {
			vm.push(x)
		} else {
			vm.pop()
			f.IP = arg
		}
	case code.CALL:
		argc, kwc := code.SplitCallArg(in.Arg)
		fi := vm.sp - argc - 2*kwc - 2
		if _, err := vm.invoke(fi, argc, kwc, false); err != nil {
			return Nil, false, err
		}
	case code.CALL_EX:
		if err := vm.callEx(arg == 1); err != nil {
			return Nil, false, err
		}
	case code.RETURN_VALUE:
		return vm.doReturn(f, vm.blockAt(f), vm.pop())
	case code.YIELD_VALUE:
		return vm.suspend(f, vm.pop()), true, nil
	case code.YIELD_FROM:
		x, finished, err := vm.delegate(vm.peek(1), vm.peek(0))
		if err != nil {
			return Nil, false, err
		}
		if finished {
			vm.replace(2, x)
			return Nil, false, nil
		}
		vm.pop()
		f.IP--
		return vm.suspend(f, x), true, nil

	case code.BEGIN_CLASS:
		if err := vm.beginClass(f, f.Unit.Names[arg]); err != nil {
			return Nil, false, err
		}
	case code.END_CLASS:
		c := f.classes[len(f.classes)-1]
		f.classes = f.classes[:len(f.classes)-1]
		vm.push(c.typ)
	case code.WITH_ENTER:
		x, err := vm.withEnter(vm.peek(0))
		if err != nil {
			return Nil, false, err
		}
		vm.push(x)
	case code.WITH_EXIT:
		if _, err := vm.callMethod(vm.peek(0), symbol.Exit, None, None, None); err != nil {
			return Nil, false, err
		}
		vm.pop()

	case code.EXCEPTION_MATCH:
		ok, err := vm.exceptionMatch(vm.peek(1), vm.peek(0))
		if err != nil {
			return Nil, false, err
		}
		vm.stack[vm.sp-1] = object.Bool(ok)
	case code.RAISE:
		return Nil, false, vm.doRaise(arg)
	case code.RE_RAISE:
		return Nil, false, vm.reraise(vm.stack[f.sb()+arg])
	case code.END_FINALLY:
		return vm.endFinally(f)
	case code.ASSERT:
		if arg == 1 {
			return Nil, false, vm.raise(vm.newException(vm.types.assertionError, vm.peek(0)))
		}
		return Nil, false, vm.raise(vm.newException(vm.types.assertionError))

	case code.PRINT_EXPR:
		if x := vm.peek(0); x != None {
			s, err := vm.repr(x)
			if err != nil {
				return Nil, false, err
			}
			if err := vm.write(s + "\n"); err != nil {
				return Nil, false, err
			}
		}
		vm.pop()
	case code.IMPORT_NAME:
		m, err := vm.importModule(f.Unit.Names[arg].String())
		if err != nil {
			return Nil, false, err
		}
		vm.push(m)
	case code.IMPORT_FROM:
		x, err := vm.importFrom(vm.peek(0), f.Unit.Names[arg])
		if err != nil {
			return Nil, false, err
		}
		vm.push(x)
	case code.IMPORT_STAR:
		if err := vm.importStar(f, vm.peek(0)); err != nil {
			return Nil, false, err
		}
		vm.pop()
	case code.FORMAT_VALUE:
		n := 1
		spec := ""
		if arg&code.FormatHasSpec != 0 {
			spec, _ = vm.strOf(vm.peek(0))
			n = 2
		}
		x, err := vm.formatValue(vm.peek(n-1), spec, arg&code.FormatRepr != 0)
		if err != nil {
			return Nil, false, err
		}
		vm.replace(n, x)

	default:
		return Nil, false, vm.eb.badOpcode(in.Op)
	}
	return Nil, false, nil
}

// blockAt is the innermost block of the instruction being executed.
func (vm *VM) blockAt(f *Frame) int { return f.Unit.BlockAt(f.IP - 1) }

func (vm *VM) unboundLocal(n symbol.Name) error {
	return vm.raisef(vm.types.unboundLocal, "local variable '%s' referenced before assignment", n)
}

func (vm *VM) nameError(n symbol.Name) error {
	return vm.raisef(vm.types.nameError, "name '%s' is not defined", n)
}

// callEx spreads the argument tuple and keyword dict of CALL_EX.
func (vm *VM) callEx(hasKw bool) error {
	fi := vm.sp - 3
	if hasKw {
		fi--
	}
	args, ok := vm.elems(vm.stack[fi+2])
	if !ok {
		return vm.eb.badValue("CALL_EX arguments", vm.stack[fi+2])
	}
	var kw *object.Dict
	if hasKw {
		kw, _ = vm.dictOf(vm.stack[fi+3])
	}
	n := len(args)
	if kw != nil {
		n += 2 * kw.Len()
	}
	// the tuple and dict stay reachable until they are overwritten
	if fi+2+n > len(vm.stack) {
		return vm.raisef(vm.types.stackOverflow, "value stack overflow")
	}
	spread := make([]Value, 0, n)
	spread = append(spread, args...)
	kwc := 0
	if kw != nil {
		var bad Value
		kw.Each(func(k, v Value) bool {
			if _, ok := vm.strOf(k); !ok {
				bad = k
				return false
			}
			spread = append(spread, k, v)
			kwc++
			return true
		})
		if bad != Nil {
			return vm.typeError("keywords must be strings")
		}
	}
	vm.truncate(fi + 2)
	copy(vm.stack[fi+2:], spread)
	vm.sp = fi + 2 + len(spread)
	_, err := vm.invoke(fi, len(args), kwc, false)
	return err
}

// doReturn returns v from f, first running the finally and with blocks
// enclosing the instruction at block bi.
func (vm *VM) doReturn(f *Frame, bi int, v Value) (Value, bool, error) {
	if bi >= 0 {
		n := vm.pin(v)
		handled, err := vm.exitBlocks(f, bi, -1, pending{kind: pendReturn, value: v})
		vm.unpinTo(n)
		if err != nil || handled {
			return Nil, false, err
		}
	}
	if f.instance != Nil {
		inst := f.instance
		if v != None {
			vm.finishFrame(f)
			return Nil, false, vm.typeError("__init__() should return None, not '%s'", vm.typeName(v))
		}
		v = inst
	}
	entry := f.entry
	vm.finishFrame(f)
	if entry {
		return v, true, nil
	}
	vm.push(v)
	return Nil, false, nil
}

// finishFrame discards f and its stack window.
func (vm *VM) finishFrame(f *Frame) {
	if g := f.gen; g != nil {
		g.state = genExhausted
		g.saved = g.saved[:0]
	}
	vm.truncate(f.Ret)
	vm.releaseFrame(f)
}

func (vm *VM) beginClass(f *Frame, n symbol.Name) error {
	base := vm.peek(0)
	modName := ""
	if mi, ok := vm.obj(f.Module).Data.(*object.ModuleInfo); ok {
		modName = mi.Name
	}
	cls, err := vm.newClass(n.String(), base, modName)
	if err != nil {
		return err
	}
	vm.obj(cls).Attr.Set(symbol.Module, vm.NewStr(modName))
	vm.pop()
	f.classes = append(f.classes, classCtx{typ: cls, beginIP: f.IP - 1})
	return nil
}

// storeClassAttr stores v in a class, recording the class as the owner of
// functions for super().
func (vm *VM) storeClassAttr(cls Value, n symbol.Name, v Value) {
	if o := vm.obj(v); o != nil {
		fv := v
		switch o.Kind {
		case object.KStaticMethod, object.KClassMethod:
			fv = o.Data.(*object.Wrapped).Func
		case object.KProperty:
			p := o.Data.(*object.Property)
			vm.setOwner(p.Getter, cls)
			fv = p.Setter
		}
		vm.setOwner(fv, cls)
	}
	if n == symbol.GetAttr {
		vm.typeInfo(cls).HasGetAttr = true
	}
	vm.obj(cls).Attr.Set(n, v)
}

func (vm *VM) setOwner(fn, cls Value) {
	if o := vm.obj(fn); o != nil && o.Kind == object.KFunction {
		if f := o.Data.(*object.Function); f.Owner == Nil {
			f.Owner = cls
		}
	}
}

func (vm *VM) withEnter(mgr Value) (Value, error) {
	t := vm.typeOf(mgr)
	if _, ok := vm.lookupType(t, symbol.Exit); !ok {
		return Nil, vm.typeError("'%s' object does not support the context manager protocol", vm.typeName(mgr))
	}
	if _, ok := vm.lookupType(t, symbol.Enter); !ok {
		return Nil, vm.typeError("'%s' object does not support the context manager protocol", vm.typeName(mgr))
	}
	return vm.callMethod(mgr, symbol.Enter)
}

// write prints to the VM's standard output.
func (vm *VM) write(s string) error {
	if _, err := vm.Stdout.Write([]byte(s)); err != nil {
		return vm.raisef(vm.types.runtimeError, "write failed: %v", err)
	}
	return nil
}
