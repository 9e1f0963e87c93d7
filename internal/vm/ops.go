package vm

import (
	"math"
	"strings"

	"krait/internal/code"
	"krait/internal/object"
	"krait/internal/symbol"
)

// dunder method names per binary operator: plain, reflected, in-place.
var binaryDunders = func() (t [3][code.OpMatMul + 1]symbol.Name) {
	for op := code.OpAdd; op <= code.OpMatMul; op++ {
		d := op.Dunder()
		t[0][op] = symbol.Intern("__" + d + "__")
		t[1][op] = symbol.Intern("__r" + d + "__")
		t[2][op] = symbol.Intern("__i" + d + "__")
	}
	return t
}()

var compareDunders = [...]symbol.Name{
	code.CmpLt: symbol.Lt,
	code.CmpLe: symbol.Le,
	code.CmpEq: symbol.Eq,
	code.CmpNe: symbol.Ne,
	code.CmpGt: symbol.Gt,
	code.CmpGe: symbol.Ge,
}

func (vm *VM) overflow() error {
	return vm.raisef(vm.types.overflowError, "integer overflow")
}

// binary evaluates a BINARY_OP.
func (vm *VM) binary(op code.BinaryOp, a, b Value) (Value, error) {
	base := op.Base()
	if a.IsSmallInt() && b.IsSmallInt() {
		x, y := a.Int(), b.Int()
		// tagged ints are 62-bit, so these cannot overflow int64
		switch base {
		case code.OpAdd:
			return vm.NewInt(x + y), nil
		case code.OpSub:
			return vm.NewInt(x - y), nil
		case code.OpAnd:
			return vm.NewInt(x & y), nil
		case code.OpOr:
			return vm.NewInt(x | y), nil
		case code.OpXor:
			return vm.NewInt(x ^ y), nil
		}
		return vm.intArith(base, x, y)
	}
	if r, ok, err := vm.numeric(base, a, b); ok {
		return r, err
	}
	if r, ok, err := vm.seqBinary(op, a, b); ok {
		return r, err
	}
	return vm.dunderBinary(op, a, b)
}

// numeric handles int, bool and float operands.
func (vm *VM) numeric(op code.BinaryOp, a, b Value) (Value, bool, error) {
	x, xok := vm.intOf(a)
	y, yok := vm.intOf(b)
	if xok && yok {
		if a.IsBool() && b.IsBool() {
			switch op {
			case code.OpAnd:
				return object.Bool(x&y != 0), true, nil
			case code.OpOr:
				return object.Bool(x|y != 0), true, nil
			case code.OpXor:
				return object.Bool(x^y != 0), true, nil
			}
		}
		r, err := vm.intArith(op, x, y)
		return r, true, err
	}
	fx, _, ok1 := vm.numOf(a)
	fy, _, ok2 := vm.numOf(b)
	if !ok1 || !ok2 {
		return Nil, false, nil
	}
	r, ok, err := vm.floatArith(op, fx, fy)
	return r, ok, err
}

func (vm *VM) intArith(op code.BinaryOp, x, y int64) (Value, error) {
	switch op {
	case code.OpAdd:
		if (y > 0 && x > math.MaxInt64-y) || (y < 0 && x < math.MinInt64-y) {
			return Nil, vm.overflow()
		}
		return vm.NewInt(x + y), nil
	case code.OpSub:
		if (y < 0 && x > math.MaxInt64+y) || (y > 0 && x < math.MinInt64+y) {
			return Nil, vm.overflow()
		}
		return vm.NewInt(x - y), nil
	case code.OpMul:
		r, ok := mulInt(x, y)
		if !ok {
			return Nil, vm.overflow()
		}
		return vm.NewInt(r), nil
	case code.OpTrueDiv:
		if y == 0 {
			return Nil, vm.raisef(vm.types.zeroDivision, "division by zero")
		}
		return vm.NewFloat(float64(x) / float64(y)), nil
	case code.OpFloorDiv:
		if y == 0 {
			return Nil, vm.raisef(vm.types.zeroDivision, "integer division or modulo by zero")
		}
		if x == math.MinInt64 && y == -1 {
			return Nil, vm.overflow()
		}
		return vm.NewInt(floorDiv(x, y)), nil
	case code.OpMod:
		if y == 0 {
			return Nil, vm.raisef(vm.types.zeroDivision, "integer division or modulo by zero")
		}
		return vm.NewInt(floorMod(x, y)), nil
	case code.OpPow:
		if y < 0 {
			if x == 0 {
				return Nil, vm.raisef(vm.types.zeroDivision, "0.0 cannot be raised to a negative power")
			}
			return vm.NewFloat(math.Pow(float64(x), float64(y))), nil
		}
		r, ok := powInt(x, y)
		if !ok {
			return Nil, vm.overflow()
		}
		return vm.NewInt(r), nil
	case code.OpLShift:
		if y < 0 {
			return Nil, vm.valueError("negative shift count")
		}
		if x == 0 {
			return vm.NewInt(0), nil
		}
		if y >= 63 || (x<<y)>>y != x {
			return Nil, vm.overflow()
		}
		return vm.NewInt(x << y), nil
	case code.OpRShift:
		if y < 0 {
			return Nil, vm.valueError("negative shift count")
		}
		if y >= 63 {
			if x < 0 {
				return vm.NewInt(-1), nil
			}
			return vm.NewInt(0), nil
		}
		return vm.NewInt(x >> y), nil
	case code.OpAnd:
		return vm.NewInt(x & y), nil
	case code.OpOr:
		return vm.NewInt(x | y), nil
	case code.OpXor:
		return vm.NewInt(x ^ y), nil
	}
	return Nil, vm.unsupported(op, vm.NewInt(x), vm.NewInt(y))
}

func mulInt(x, y int64) (int64, bool) {
	if x == 0 || y == 0 {
		return 0, true
	}
	r := x * y
	if r/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
		return 0, false
	}
	return r, true
}

func powInt(x, y int64) (int64, bool) {
	r := int64(1)
	for y > 0 {
		if y&1 == 1 {
			var ok bool
			if r, ok = mulInt(r, x); !ok {
				return 0, false
			}
		}
		y >>= 1
		if y > 0 {
			var ok bool
			if x, ok = mulInt(x, x); !ok {
				return 0, false
			}
		}
	}
	return r, true
}

// floorDiv rounds toward negative infinity.
func floorDiv(x, y int64) int64 {
	q := x / y
	if x%y != 0 && (x < 0) != (y < 0) {
		q--
	}
	return q
}

// floorMod takes the sign of the divisor.
func floorMod(x, y int64) int64 {
	r := x % y
	if r != 0 && (r < 0) != (y < 0) {
		r += y
	}
	return r
}

func (vm *VM) floatArith(op code.BinaryOp, x, y float64) (Value, bool, error) {
	switch op {
	case code.OpAdd:
		return vm.NewFloat(x + y), true, nil
	case code.OpSub:
		return vm.NewFloat(x - y), true, nil
	case code.OpMul:
		return vm.NewFloat(x * y), true, nil
	case code.OpTrueDiv:
		if y == 0 {
			return Nil, true, vm.raisef(vm.types.zeroDivision, "float division by zero")
		}
		return vm.NewFloat(x / y), true, nil
	case code.OpFloorDiv:
		if y == 0 {
			return Nil, true, vm.raisef(vm.types.zeroDivision, "float floor division by zero")
		}
		return vm.NewFloat(math.Floor(x / y)), true, nil
	case code.OpMod:
		if y == 0 {
			return Nil, true, vm.raisef(vm.types.zeroDivision, "float modulo")
		}
		r := math.Mod(x, y)
		if r != 0 && (r < 0) != (y < 0) {
			r += y
		}
		return vm.NewFloat(r), true, nil
	case code.OpPow:
		if x == 0 && y < 0 {
			return Nil, true, vm.raisef(vm.types.zeroDivision, "0.0 cannot be raised to a negative power")
		}
		if x < 0 && y != math.Trunc(y) {
			return Nil, true, vm.valueError("math domain error")
		}
		return vm.NewFloat(math.Pow(x, y)), true, nil
	}
	return Nil, false, nil
}

// seqBinary handles str, list and tuple concatenation, repetition and str %.
func (vm *VM) seqBinary(op code.BinaryOp, a, b Value) (Value, bool, error) {
	ao, bo := vm.obj(a), vm.obj(b)
	switch op.Base() {
	case code.OpAdd:
		if ao == nil || bo == nil {
			return Nil, false, nil
		}
		switch {
		case ao.Kind == object.KStr && bo.Kind == object.KStr:
			return vm.NewStr(ao.Str + bo.Str), true, nil
		case ao.Kind == object.KList && op.Inplace():
			return a, true, vm.listExtend(a, b)
		case ao.Kind == object.KList && bo.Kind == object.KList:
			items := make([]Value, 0, len(ao.Items)+len(bo.Items))
			items = append(items, ao.Items...)
			return vm.NewList(append(items, bo.Items...)), true, nil
		case ao.Kind == object.KTuple && bo.Kind == object.KTuple:
			x, y := ao.Elems(), bo.Elems()
			items := make([]Value, 0, len(x)+len(y))
			items = append(append(items, x...), y...)
			return vm.NewTuple(items), true, nil
		}
	case code.OpMul:
		seq, n := a, b
		if ao == nil || (ao.Kind != object.KStr && ao.Kind != object.KList && ao.Kind != object.KTuple) {
			seq, n = b, a
		}
		so := vm.obj(seq)
		count, ok := vm.intOf(n)
		if so == nil || !ok {
			return Nil, false, nil
		}
		r, err := vm.repeat(seq, so, count, op.Inplace())
		if err != nil || r != Nil {
			return r, true, err
		}
	case code.OpMod:
		if ao != nil && ao.Kind == object.KStr {
			s, err := vm.percentFormat(ao.Str, b)
			if err != nil {
				return Nil, true, err
			}
			return vm.NewStr(s), true, nil
		}
	}
	return Nil, false, nil
}

// maxRepeat caps the size of a repeated sequence.
const maxRepeat = 1 << 28

func (vm *VM) repeat(seq Value, so *object.Object, n int64, inplace bool) (Value, error) {
	n = max(n, 0)
	var size int64
	switch so.Kind {
	case object.KStr:
		size = int64(len(so.Str))
	case object.KList, object.KTuple:
		size = int64(len(so.Elems()))
	default:
		return Nil, nil
	}
	if size > 0 && n > maxRepeat/size {
		return Nil, vm.raisef(vm.types.overflowError, "repeated sequence is too long")
	}
	switch so.Kind {
	case object.KStr:
		return vm.NewStr(strings.Repeat(so.Str, int(n))), nil
	case object.KTuple:
		src := so.Elems()
		items := make([]Value, 0, len(src)*int(n))
		for range n {
			items = append(items, src...)
		}
		return vm.NewTuple(items), nil
	}
	items := make([]Value, 0, len(so.Items)*int(n))
	for range n {
		items = append(items, so.Items...)
	}
	if inplace {
		so.Items = items
		return seq, nil
	}
	return vm.NewList(items), nil
}

// dunderBinary dispatches to __iop__, __op__ and the reflected __rop__.
func (vm *VM) dunderBinary(op code.BinaryOp, a, b Value) (Value, error) {
	base := op.Base()
	ta, tb := vm.typeOf(a), vm.typeOf(b)
	if op.Inplace() {
		if fn, ok := vm.lookupType(ta, binaryDunders[2][base]); ok {
			r, err := vm.Call(fn, a, b)
			if err != nil || r != NotImplemented {
				return r, err
			}
		}
	}
	if fn, ok := vm.lookupType(ta, binaryDunders[0][base]); ok {
		r, err := vm.Call(fn, a, b)
		if err != nil || r != NotImplemented {
			return r, err
		}
	}
	if ta != tb {
		if fn, ok := vm.lookupType(tb, binaryDunders[1][base]); ok {
			r, err := vm.Call(fn, b, a)
			if err != nil || r != NotImplemented {
				return r, err
			}
		}
	}
	return Nil, vm.unsupported(op, a, b)
}

func (vm *VM) unsupported(op code.BinaryOp, a, b Value) error {
	return vm.typeError("unsupported operand type(s) for %s: '%s' and '%s'", op, vm.typeName(a), vm.typeName(b))
}

// unary evaluates -x, +x and ~x.
func (vm *VM) unary(op code.Opcode, v Value) (Value, error) {
	if i, ok := vm.intOf(v); ok {
		switch op {
		case code.UNARY_NEGATIVE:
			if i == math.MinInt64 {
				return Nil, vm.overflow()
			}
			return vm.NewInt(-i), nil
		case code.UNARY_POSITIVE:
			return vm.NewInt(i), nil
		default:
			return vm.NewInt(^i), nil
		}
	}
	if f, ok := vm.floatOf(v); ok {
		switch op {
		case code.UNARY_NEGATIVE:
			return vm.NewFloat(-f), nil
		case code.UNARY_POSITIVE:
			return v, nil
		}
	}
	var nm symbol.Name
	sym := "-"
	switch op {
	case code.UNARY_NEGATIVE:
		nm = symbol.Neg
	case code.UNARY_POSITIVE:
		nm, sym = symbol.Pos, "+"
	default:
		nm, sym = symbol.Invert, "~"
	}
	if fn, ok := vm.lookupType(vm.typeOf(v), nm); ok {
		return vm.Call(fn, v)
	}
	return Nil, vm.typeError("bad operand type for unary %s: '%s'", sym, vm.typeName(v))
}

// userObject reports values whose comparisons may be overridden.
func (vm *VM) userObject(v Value) bool {
	o := vm.obj(v)
	return o != nil && (o.Kind == object.KInstance || o.Kind == object.KException)
}

// compare evaluates a COMPARE_OP.
func (vm *VM) compare(op code.CompareOp, a, b Value) (Value, error) {
	if a.IsSmallInt() && b.IsSmallInt() {
		return object.Bool(cmpResult(op, cmp3(a.Int(), b.Int()))), nil
	}
	if vm.userObject(a) || vm.userObject(b) {
		return vm.richCompare(op, a, b)
	}
	switch op {
	case code.CmpEq, code.CmpNe:
		eq, err := vm.eq(a, b)
		if err != nil {
			return Nil, err
		}
		return object.Bool(eq == (op == code.CmpEq)), nil
	}
	r, err := vm.order(op, a, b)
	if err != nil {
		return Nil, err
	}
	return object.Bool(r), nil
}

// richCompare tries the comparison dunders of both operands.
func (vm *VM) richCompare(op code.CompareOp, a, b Value) (Value, error) {
	if fn, ok := vm.lookupType(vm.typeOf(a), compareDunders[op]); ok {
		r, err := vm.Call(fn, a, b)
		if err != nil || r != NotImplemented {
			return r, err
		}
	}
	if fn, ok := vm.lookupType(vm.typeOf(b), compareDunders[op.Swap()]); ok {
		r, err := vm.Call(fn, b, a)
		if err != nil || r != NotImplemented {
			return r, err
		}
	}
	switch op {
	case code.CmpEq:
		return object.Bool(a == b), nil
	case code.CmpNe:
		if fn, ok := vm.lookupType(vm.typeOf(a), symbol.Eq); ok {
			r, err := vm.Call(fn, a, b)
			if err != nil {
				return Nil, err
			}
			if r != NotImplemented {
				t, err := vm.truth(r)
				return object.Bool(!t), err
			}
		}
		return object.Bool(a != b), nil
	}
	return Nil, vm.compareError(op, a, b)
}

func (vm *VM) compareError(op code.CompareOp, a, b Value) error {
	return vm.typeError("'%s' not supported between instances of '%s' and '%s'", op, vm.typeName(a), vm.typeName(b))
}

func cmp3[T int64 | float64 | string](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func cmpResult(op code.CompareOp, c int) bool {
	switch op {
	case code.CmpLt:
		return c < 0
	case code.CmpLe:
		return c <= 0
	case code.CmpEq:
		return c == 0
	case code.CmpNe:
		return c != 0
	case code.CmpGt:
		return c > 0
	}
	return c >= 0
}

// order evaluates <, <=, > and >= between builtin values.
func (vm *VM) order(op code.CompareOp, a, b Value) (bool, error) {
	if x, ok := vm.intOf(a); ok {
		if y, ok := vm.intOf(b); ok {
			return cmpResult(op, cmp3(x, y)), nil
		}
	}
	if x, _, ok := vm.numOf(a); ok {
		if y, _, ok := vm.numOf(b); ok {
			if math.IsNaN(x) || math.IsNaN(y) {
				return false, nil
			}
			return cmpResult(op, cmp3(x, y)), nil
		}
	}
	ao, bo := vm.obj(a), vm.obj(b)
	if ao != nil && bo != nil && ao.Kind == bo.Kind {
		switch ao.Kind {
		case object.KStr:
			return cmpResult(op, cmp3(ao.Str, bo.Str)), nil
		case object.KList, object.KTuple:
			return vm.orderSeq(op, ao.Elems(), bo.Elems())
		}
	}
	if vm.userObject(a) || vm.userObject(b) {
		r, err := vm.richCompare(op, a, b)
		if err != nil {
			return false, err
		}
		return vm.truth(r)
	}
	return false, vm.compareError(op, a, b)
}

// orderSeq compares sequences lexicographically.
func (vm *VM) orderSeq(op code.CompareOp, x, y []Value) (bool, error) {
	n := min(len(x), len(y))
	for i := range n {
		eq, err := vm.eq(x[i], y[i])
		if err != nil {
			return false, err
		}
		if !eq {
			return vm.order(op, x[i], y[i])
		}
	}
	return cmpResult(op, cmp3(int64(len(x)), int64(len(y)))), nil
}

// less is the ordering used by sorted, min and max.
func (vm *VM) less(a, b Value) (bool, error) {
	if a.IsSmallInt() && b.IsSmallInt() {
		return a.Int() < b.Int(), nil
	}
	if vm.userObject(a) || vm.userObject(b) {
		r, err := vm.richCompare(code.CmpLt, a, b)
		if err != nil {
			return false, err
		}
		return vm.truth(r)
	}
	return vm.order(code.CmpLt, a, b)
}

// eq is ==, falling back to identity.
func (vm *VM) eq(a, b Value) (bool, error) {
	if a == b {
		if f, ok := vm.floatOf(a); ok && math.IsNaN(f) {
			return false, nil
		}
		return true, nil
	}
	if x, ok := vm.intOf(a); ok {
		if y, ok := vm.intOf(b); ok {
			return x == y, nil
		}
	}
	if x, _, ok := vm.numOf(a); ok {
		y, _, ok := vm.numOf(b)
		return ok && x == y, nil
	}
	if vm.userObject(a) || vm.userObject(b) {
		r, err := vm.richCompare(code.CmpEq, a, b)
		if err != nil {
			return false, err
		}
		return vm.truth(r)
	}
	ao, bo := vm.obj(a), vm.obj(b)
	if ao == nil || bo == nil || ao.Kind != bo.Kind {
		return false, nil
	}
	switch ao.Kind {
	case object.KStr:
		return ao.Str == bo.Str, nil
	case object.KList, object.KTuple:
		x, y := ao.Elems(), bo.Elems()
		if len(x) != len(y) {
			return false, nil
		}
		for i := range x {
			eq, err := vm.eq(x[i], y[i])
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	case object.KDict:
		x, y := ao.Data.(*object.Dict), bo.Data.(*object.Dict)
		if x.Len() != y.Len() {
			return false, nil
		}
		for pos := 0; ; {
			k, v, next, ok := x.Next(pos)
			if !ok {
				return true, nil
			}
			pos = next
			w, found, err := y.Get(vm, k)
			if err != nil || !found {
				return false, err
			}
			eq, err := vm.eq(v, w)
			if err != nil || !eq {
				return false, err
			}
		}
	case object.KRange:
		return *ao.Data.(*object.Range) == *bo.Data.(*object.Range), nil
	case object.KSlice:
		x, y := ao.Data.(*object.Slice), bo.Data.(*object.Slice)
		return vm.eqAll([]Value{x.Start, x.Stop, x.Step}, []Value{y.Start, y.Stop, y.Step})
	}
	return false, nil
}

func (vm *VM) eqAll(x, y []Value) (bool, error) {
	for i := range x {
		eq, err := vm.eq(x[i], y[i])
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

// Equal implements object.Hasher.
func (vm *VM) Equal(a, b Value) (bool, error) { return vm.eq(a, b) }

const (
	fnvOffset = 14695981039346656037
	fnvPrime  = 1099511628211
)

func hashString(s string) int64 {
	h := uint64(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime
	}
	return int64(h) // #nosec G115 -- hash bits
}

func hashWord(w uint64) int64 {
	w ^= w >> 33
	w *= 0xff51afd7ed558ccd
	w ^= w >> 33
	return int64(w) // #nosec G115 -- hash bits
}

// Hash implements object.Hasher. Equal numbers hash alike across int,
// bool and float.
func (vm *VM) Hash(v Value) (int64, error) {
	if i, ok := vm.intOf(v); ok {
		return i, nil
	}
	if f, ok := vm.floatOf(v); ok {
		if i, ok := floatIsInt(f); ok {
			return i, nil
		}
		return hashWord(math.Float64bits(f)), nil
	}
	o := vm.obj(v)
	if o == nil {
		return hashWord(uint64(v)), nil
	}
	switch o.Kind {
	case object.KStr:
		return hashString(o.Str), nil
	case object.KTuple:
		h := uint64(0x345678)
		for _, e := range o.Elems() {
			eh, err := vm.Hash(e)
			if err != nil {
				return 0, err
			}
			h = (h ^ uint64(eh)) * 1000003 // #nosec G115 -- hash bits
		}
		return int64(h), nil // #nosec G115 -- hash bits
	case object.KList, object.KDict, object.KSlice:
		return 0, vm.unhashable(v)
	case object.KRange:
		r := o.Data.(*object.Range)
		return hashWord(uint64(r.Start)*31 ^ uint64(r.Stop)*17 ^ uint64(r.Step)), nil // #nosec G115 -- hash bits
	case object.KInstance, object.KException:
		if fn, ok := vm.lookupType(o.Type, symbol.Hash); ok {
			if fn == None {
				return 0, vm.unhashable(v)
			}
			r, err := vm.Call(fn, v)
			if err != nil {
				return 0, err
			}
			h, ok := vm.intOf(r)
			if !ok {
				return 0, vm.typeError("__hash__ method should return an integer")
			}
			return h, nil
		}
		if _, ok := vm.lookupType(o.Type, symbol.Eq); ok {
			return 0, vm.unhashable(v)
		}
	}
	return hashWord(uint64(v)), nil
}

func (vm *VM) unhashable(v Value) error {
	return vm.typeError("unhashable type: '%s'", vm.typeName(v))
}

// truth evaluates v in a boolean context.
func (vm *VM) truth(v Value) (bool, error) {
	switch {
	case v == True:
		return true, nil
	case v == False, v == None, v == Nil:
		return false, nil
	case v.IsSmallInt():
		return v.Int() != 0, nil
	case v.IsSmallFloat():
		return v.Float() != 0, nil
	}
	o := vm.obj(v)
	if o == nil {
		return true, nil
	}
	switch o.Kind {
	case object.KInt:
		return o.Int != 0, nil
	case object.KFloat:
		return o.Float != 0, nil
	case object.KStr:
		return o.Str != "", nil
	case object.KList, object.KTuple:
		return len(o.Elems()) > 0, nil
	case object.KDict:
		return o.Data.(*object.Dict).Len() > 0, nil
	case object.KRange:
		return rangeLen(o.Data.(*object.Range)) > 0, nil
	case object.KInstance, object.KException:
		if fn, ok := vm.lookupType(o.Type, symbol.Bool); ok {
			r, err := vm.Call(fn, v)
			if err != nil {
				return false, err
			}
			if r != True && r != False {
				return false, vm.typeError("__bool__ should return bool, returned %s", vm.typeName(r))
			}
			return r == True, nil
		}
		if fn, ok := vm.lookupType(o.Type, symbol.LenMethod); ok {
			r, err := vm.Call(fn, v)
			if err != nil {
				return false, err
			}
			n, ok := vm.intOf(r)
			if !ok {
				return false, vm.typeError("'%s' object cannot be interpreted as an integer", vm.typeName(r))
			}
			return n != 0, nil
		}
	}
	return true, nil
}

// concatStrings joins the parts of an f-string.
func (vm *VM) concatStrings(parts []Value) (Value, error) {
	var sb strings.Builder
	for _, p := range parts {
		if s, ok := vm.strOf(p); ok {
			sb.WriteString(s)
			continue
		}
		s, err := vm.str(p)
		if err != nil {
			return Nil, err
		}
		sb.WriteString(s)
	}
	return vm.NewStr(sb.String()), nil
}
