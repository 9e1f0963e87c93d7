package vm

import (
	"math"
	"path/filepath"
	"runtime"
	"time"

	"krait/internal/object"
	"krait/internal/symbol"
	"krait/internal/version"
)

// The OS-facing modules read the world only through vm.RT.

func (vm *VM) osModule() Value {
	m := vm.nativeModule("os", map[string]modFn{
		"getcwd": {argc: 0, fn: func(vm *VM, _, _ []Value) (Value, error) {
			dir, err := vm.RT.Getwd()
			if err != nil {
				return Nil, vm.raisef(vm.types.osError, "%s", err)
			}
			return vm.NewStr(dir), nil
		}},
		"getenv": {argc: 1, fn: func(vm *VM, args, kw []Value) (Value, error) {
			key, ok := vm.strOf(args[0])
			if !ok {
				return Nil, vm.typeError("str expected, not %s", vm.typeName(args[0]))
			}
			if v, ok := vm.RT.Getenv(key); ok {
				return vm.NewStr(v), nil
			}
			return kw[0], nil
		}, kw: []object.NameArg{opt("default", None)}},
		"getpid": {argc: 0, fn: func(vm *VM, _, _ []Value) (Value, error) {
			return vm.NewInt(int64(vm.RT.Getpid())), nil
		}},
		"uname": {argc: 0, fn: func(vm *VM, _, _ []Value) (Value, error) {
			u := hostUname()
			return vm.NewTuple([]Value{
				vm.NewStr(u.sysname), vm.NewStr(u.nodename), vm.NewStr(u.release),
				vm.NewStr(u.version), vm.NewStr(u.machine),
			}), nil
		}},
	})
	attr := vm.obj(m).Attr
	osName := "posix"
	if runtime.GOOS == "windows" {
		osName = "nt"
	}
	attr.Set(symbol.Intern("name"), vm.NewStr(osName))
	attr.Set(symbol.Intern("sep"), vm.NewStr(string(filepath.Separator)))
	return m
}

func (vm *VM) sysModule() Value {
	m := vm.newModule("sys", "")
	attr := vm.obj(m).Attr
	argv := vm.RT.Argv()
	items := make([]Value, len(argv))
	for i, a := range argv {
		items[i] = vm.NewStr(a)
	}
	attr.Set(symbol.Intern("argv"), vm.NewList(items))
	path := make([]Value, len(vm.path))
	for i, p := range vm.path {
		path[i] = vm.NewStr(p)
	}
	attr.Set(symbol.Intern("path"), vm.NewList(path))
	attr.Set(symbol.Intern("platform"), vm.NewStr(runtime.GOOS))
	attr.Set(symbol.Intern("version"), vm.NewStr(version.Full()))
	attr.Set(symbol.Intern("maxsize"), vm.NewInt(math.MaxInt64))
	return m
}

func (vm *VM) timeModule() Value {
	start := vm.RT.Now()
	return vm.nativeModule("time", map[string]modFn{
		"time": {argc: 0, fn: func(vm *VM, _, _ []Value) (Value, error) {
			return vm.NewFloat(float64(vm.RT.Now().UnixNano()) / 1e9), nil
		}},
		"time_ns": {argc: 0, fn: func(vm *VM, _, _ []Value) (Value, error) {
			return vm.NewInt(vm.RT.Now().UnixNano()), nil
		}},
		"sleep": {argc: 1, fn: func(vm *VM, args, _ []Value) (Value, error) {
			secs, err := vm.num(args[0])
			if err != nil {
				return Nil, err
			}
			if secs < 0 || math.IsNaN(secs) {
				return Nil, vm.valueError("sleep length must be non-negative")
			}
			vm.RT.Sleep(time.Duration(secs * float64(time.Second)))
			return None, nil
		}},
		"perf_counter": {argc: 0, fn: func(vm *VM, _, _ []Value) (Value, error) {
			return vm.NewFloat(vm.RT.Now().Sub(start).Seconds()), nil
		}},
		"monotonic": {argc: 0, fn: func(vm *VM, _, _ []Value) (Value, error) {
			return vm.NewFloat(vm.RT.Now().Sub(start).Seconds()), nil
		}},
	})
}

type uname struct {
	sysname, nodename, release, version, machine string
}
