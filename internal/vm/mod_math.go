package vm

import (
	"math"

	"krait/internal/object"
	"krait/internal/symbol"
)

// num reads a numeric argument of a math function.
func (vm *VM) num(v Value) (float64, error) {
	f, _, ok := vm.numOf(v)
	if !ok {
		return 0, vm.typeError("must be real number, not %s", vm.typeName(v))
	}
	return f, nil
}

func (vm *VM) domainError() error { return vm.valueError("math domain error") }

// mathResult checks a float result for domain and range errors.
func (vm *VM) mathResult(in, r float64) (Value, error) {
	switch {
	case math.IsNaN(r) && !math.IsNaN(in):
		return Nil, vm.domainError()
	case math.IsInf(r, 0) && !math.IsInf(in, 0):
		return Nil, vm.raisef(vm.types.overflowError, "math range error")
	}
	return vm.NewFloat(r), nil
}

func (vm *VM) unary1(f func(float64) float64) modFn {
	return modFn{argc: 1, fn: func(vm *VM, args, _ []Value) (Value, error) {
		x, err := vm.num(args[0])
		if err != nil {
			return Nil, err
		}
		return vm.mathResult(x, f(x))
	}}
}

// rounding wraps floor, ceil and trunc, which return ints.
func (vm *VM) rounding(f func(float64) float64) modFn {
	return modFn{argc: 1, fn: func(vm *VM, args, _ []Value) (Value, error) {
		if i, ok := vm.intOf(args[0]); ok {
			return vm.NewInt(i), nil
		}
		x, err := vm.num(args[0])
		if err != nil {
			return Nil, err
		}
		return vm.floatToInt(f(x))
	}}
}

func (vm *VM) mathModule() Value {
	fns := map[string]modFn{
		"sqrt": {argc: 1, fn: func(vm *VM, args, _ []Value) (Value, error) {
			x, err := vm.num(args[0])
			if err != nil {
				return Nil, err
			}
			if x < 0 {
				return Nil, vm.domainError()
			}
			return vm.NewFloat(math.Sqrt(x)), nil
		}},
		"exp":     vm.unary1(math.Exp),
		"log2":    vm.positive(math.Log2),
		"log10":   vm.positive(math.Log10),
		"sin":     vm.unary1(math.Sin),
		"cos":     vm.unary1(math.Cos),
		"tan":     vm.unary1(math.Tan),
		"asin":    vm.unary1(math.Asin),
		"acos":    vm.unary1(math.Acos),
		"atan":    vm.unary1(math.Atan),
		"sinh":    vm.unary1(math.Sinh),
		"cosh":    vm.unary1(math.Cosh),
		"tanh":    vm.unary1(math.Tanh),
		"fabs":    vm.unary1(math.Abs),
		"degrees": vm.unary1(func(x float64) float64 { return x * 180 / math.Pi }),
		"radians": vm.unary1(func(x float64) float64 { return x * math.Pi / 180 }),
		"floor":   vm.rounding(math.Floor),
		"ceil":    vm.rounding(math.Ceil),
		"trunc":   vm.rounding(math.Trunc),
		"log": {argc: 1, fn: func(vm *VM, args, kw []Value) (Value, error) {
			x, err := vm.num(args[0])
			if err != nil {
				return Nil, err
			}
			if x <= 0 {
				return Nil, vm.domainError()
			}
			if kw[0] == None {
				return vm.NewFloat(math.Log(x)), nil
			}
			b, err := vm.num(kw[0])
			if err != nil {
				return Nil, err
			}
			if b <= 0 || b == 1 {
				if b == 1 {
					return Nil, vm.raisef(vm.types.zeroDivision, "float division by zero")
				}
				return Nil, vm.domainError()
			}
			return vm.NewFloat(math.Log(x) / math.Log(b)), nil
		}, kw: []object.NameArg{opt("base", None)}},
		"pow":      vm.binary2(math.Pow),
		"atan2":    vm.binary2(math.Atan2),
		"hypot":    vm.binary2(math.Hypot),
		"copysign": vm.binary2(math.Copysign),
		"fmod": {argc: 2, fn: func(vm *VM, args, _ []Value) (Value, error) {
			x, err := vm.num(args[0])
			if err != nil {
				return Nil, err
			}
			y, err := vm.num(args[1])
			if err != nil {
				return Nil, err
			}
			if y == 0 && !math.IsNaN(x) {
				return Nil, vm.domainError()
			}
			return vm.NewFloat(math.Mod(x, y)), nil
		}},
		"isnan":    vm.predicate(math.IsNaN),
		"isinf":    vm.predicate(func(x float64) bool { return math.IsInf(x, 0) }),
		"isfinite": vm.predicate(func(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }),
		"isclose": {argc: 2, fn: func(vm *VM, args, kw []Value) (Value, error) {
			var xs [4]float64
			for i, v := range []Value{args[0], args[1], kw[0], kw[1]} {
				f, err := vm.num(v)
				if err != nil {
					return Nil, err
				}
				xs[i] = f
			}
			a, b, rel, abs := xs[0], xs[1], xs[2], xs[3]
			if rel < 0 || abs < 0 {
				return Nil, vm.valueError("tolerances must be non-negative")
			}
			if a == b {
				return True, nil
			}
			if math.IsInf(a, 0) || math.IsInf(b, 0) {
				return False, nil
			}
			d := math.Abs(a - b)
			return object.Bool(d <= math.Abs(rel*b) || d <= math.Abs(rel*a) || d <= abs), nil
		}, kw: []object.NameArg{opt("rel_tol", vm.NewFloat(1e-09)), opt("abs_tol", vm.NewFloat(0))}},
		"gcd": {argc: -1, fn: func(vm *VM, args, _ []Value) (Value, error) {
			var g int64
			for _, a := range args {
				i, ok := vm.intOf(a)
				if !ok {
					return Nil, vm.notInteger(a)
				}
				if i < 0 {
					i = -i
				}
				for i != 0 {
					g, i = i, g%i
				}
			}
			return vm.NewInt(g), nil
		}},
		"factorial": {argc: 1, fn: func(vm *VM, args, _ []Value) (Value, error) {
			n, ok := vm.intOf(args[0])
			if !ok {
				return Nil, vm.typeError("'%s' object cannot be interpreted as an integer", vm.typeName(args[0]))
			}
			if n < 0 {
				return Nil, vm.valueError("factorial() not defined for negative values")
			}
			r := int64(1)
			for i := int64(2); i <= n; i++ {
				var ok bool
				if r, ok = mulInt(r, i); !ok {
					return Nil, vm.overflow()
				}
			}
			return vm.NewInt(r), nil
		}},
	}
	m := vm.nativeModule("math", fns)
	attr := vm.obj(m).Attr
	attr.Set(symbol.Intern("pi"), vm.NewFloat(math.Pi))
	attr.Set(symbol.Intern("e"), vm.NewFloat(math.E))
	attr.Set(symbol.Intern("tau"), vm.NewFloat(2*math.Pi))
	attr.Set(symbol.Intern("inf"), vm.NewFloat(math.Inf(1)))
	attr.Set(symbol.Intern("nan"), vm.NewFloat(math.NaN()))
	return m
}

func (vm *VM) positive(f func(float64) float64) modFn {
	return modFn{argc: 1, fn: func(vm *VM, args, _ []Value) (Value, error) {
		x, err := vm.num(args[0])
		if err != nil {
			return Nil, err
		}
		if x <= 0 {
			return Nil, vm.domainError()
		}
		return vm.NewFloat(f(x)), nil
	}}
}

func (vm *VM) binary2(f func(x, y float64) float64) modFn {
	return modFn{argc: 2, fn: func(vm *VM, args, _ []Value) (Value, error) {
		x, err := vm.num(args[0])
		if err != nil {
			return Nil, err
		}
		y, err := vm.num(args[1])
		if err != nil {
			return Nil, err
		}
		in := x + y
		return vm.mathResult(in, f(x, y))
	}}
}

func (vm *VM) predicate(f func(float64) bool) modFn {
	return modFn{argc: 1, fn: func(vm *VM, args, _ []Value) (Value, error) {
		x, err := vm.num(args[0])
		if err != nil {
			return Nil, err
		}
		return object.Bool(f(x)), nil
	}}
}
