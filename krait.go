// Package krait embeds a small Python-like scripting language: a compiler to
// bytecode, a stack virtual machine and a mark-sweep collected heap.
//
// An Engine is single-threaded. Values returned by it are handles into the
// engine's heap and stay valid only while the script keeps them reachable,
// or until the next call that may run a collection.
package krait

import (
	"io"

	"krait/internal/code"
	"krait/internal/compiler"
	"krait/internal/gc"
	"krait/internal/object"
	"krait/internal/source"
	"krait/internal/trace"
	"krait/internal/vm"
)

// Mode selects what Compile accepts.
type Mode = code.Mode

const (
	ModeExec = code.ModeExec // a module body
	ModeEval = code.ModeEval // a single expression whose value is returned
	ModeREPL = code.ModeREPL // an interactive cell; expression statements are echoed
	ModeJSON = code.ModeJSON // a JSON literal
	ModeCell = code.ModeCell // several statements, the last expression value is printed
)

// Value is a handle to a script value.
type Value = object.Value

// Script singletons.
const (
	None  = object.None
	True  = object.True
	False = object.False
)

// Func is a host function callable from scripts. For functions bound with
// bindsSelf, args[0] is the receiver.
type Func func(e *Engine, args []Value) (Value, error)

// Importer resolves a module name to its source.
type Importer = vm.Importer

// Config configures an Engine. The zero value is usable.
type Config struct {
	// OSModules registers the os, sys and time modules.
	OSModules bool
	// StackSize is the value stack capacity in slots.
	StackSize int
	// GCThreshold is the allocation count between automatic collections.
	GCThreshold int
	// Stdout receives print output. Defaults to os.Stdout.
	Stdout io.Writer
	// Tracer receives compile, execute, import and collection events.
	Tracer trace.Tracer
	// ExecTrace, if set, receives one line per executed instruction.
	ExecTrace io.Writer
	// Argv becomes sys.argv.
	Argv []string
	// Path becomes sys.path.
	Path []string
	// Importer resolves import statements. See SetImporter.
	Importer Importer
	// Runtime overrides the OS access of the os, sys and time modules.
	Runtime vm.Runtime
	// OnDelete is called for every object the collector reclaims.
	OnDelete func(v Value, o *object.Object)
}

// Engine is one interpreter instance.
type Engine struct {
	vm     *vm.VM
	tracer trace.Tracer
	main   Value
}

// New creates an engine with an empty __main__ module.
func New(cfg Config) *Engine {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = trace.Nop
	}
	rt := cfg.Runtime
	if rt == nil {
		rt = vm.NewDefaultRuntime(cfg.Argv)
	}
	vcfg := vm.Config{
		StackSize:   cfg.StackSize,
		GCThreshold: cfg.GCThreshold,
		OSModules:   cfg.OSModules,
		Stdout:      cfg.Stdout,
		Runtime:     rt,
		Tracer:      tracer,
		Path:        cfg.Path,
		Importer:    cfg.Importer,
	}
	if cfg.ExecTrace != nil {
		vcfg.Exec = vm.NewExecTracer(cfg.ExecTrace)
	}
	if cfg.OnDelete != nil {
		vcfg.OnDelete = gc.DeleteHook(cfg.OnDelete)
	}
	e := &Engine{vm: vm.New(vcfg), tracer: tracer}
	e.main = e.vm.NewModule("__main__")
	return e
}

// VM exposes the underlying virtual machine.
func (e *Engine) VM() *vm.VM { return e.vm }

// Main returns the __main__ module.
func (e *Engine) Main() Value { return e.main }

// Code is a compiled unit. Release it once it is no longer executed;
// functions it defined stay valid.
type Code struct {
	unit *code.Unit
}

// Name is the file name the code was compiled from.
func (c *Code) Name() string { return c.unit.Path() }

// Mode is the mode the code was compiled in.
func (c *Code) Mode() Mode { return c.unit.Mode }

// Dump writes a disassembly of every unit.
func (c *Code) Dump(w io.Writer) error { return code.Dump(w, c.unit) }

// Release drops the engine's reference to the unit.
func (c *Code) Release() {
	if c.unit != nil {
		c.unit.Release()
		c.unit = nil
	}
}

// Compile compiles src. Failures are *Error of kind ErrCompile or
// ErrNeedMoreInput.
func (e *Engine) Compile(src []byte, filename string, mode Mode) (*Code, error) {
	span := trace.Begin(e.tracer, trace.ScopePass, "compile", 0).
		WithExtra("file", filename).
		WithExtra("mode", mode.String())
	u, err := compiler.Compile(source.NewFile(filename, src), compiler.Options{Mode: mode})
	if err != nil {
		err = wrapError(err)
		span.Fail(err)
		return nil, err
	}
	span.End("")
	return &Code{unit: u}, nil
}

// Execute runs c in module, or in __main__ when module is zero. It returns
// the value of an eval-mode expression and None otherwise.
func (e *Engine) Execute(c *Code, module Value) (Value, error) {
	if module == object.Nil {
		module = e.main
	}
	span := trace.Begin(e.tracer, trace.ScopePass, "execute", 0).WithExtra("file", c.Name())
	v, err := e.vm.Execute(c.unit, module)
	if err != nil {
		err = wrapError(err)
		span.Fail(err)
		return object.Nil, err
	}
	span.End("")
	return v, nil
}

func (e *Engine) run(src []byte, filename string, mode Mode) (Value, error) {
	c, err := e.Compile(src, filename, mode)
	if err != nil {
		return object.Nil, err
	}
	defer c.Release()
	return e.Execute(c, e.main)
}

// Exec compiles and runs src as the body of __main__.
func (e *Engine) Exec(src, filename string) error {
	_, err := e.run([]byte(src), filename, ModeExec)
	return err
}

// Eval evaluates one expression in __main__.
func (e *Engine) Eval(expr string) (Value, error) {
	return e.run([]byte(expr), "<eval>", ModeEval)
}

// RunCell runs one interactive cell; expression statements are echoed to
// Stdout. An unfinished cell fails with ErrNeedMoreInput.
func (e *Engine) RunCell(src string) error {
	_, err := e.run([]byte(src), "<stdin>", ModeREPL)
	return err
}

// SetImporter installs the import-resolution callback.
func (e *Engine) SetImporter(imp Importer) { e.vm.SetImporter(imp) }

// NewModule creates and registers an empty module.
func (e *Engine) NewModule(name string) Value { return e.vm.NewModule(name) }

// Module returns a loaded or builtin module.
func (e *Engine) Module(name string) (Value, bool) { return e.vm.Module(name) }

// BindFunc registers fn as attribute name of target, a module, class or
// instance. argc is the positional arity, excluding the receiver of a
// bindsSelf function; -1 accepts any count.
func (e *Engine) BindFunc(target Value, name string, argc int, fn Func, bindsSelf bool) (Value, error) {
	native := func(_ *vm.VM, args, _ []Value) (Value, error) { return fn(e, args) }
	v, err := e.vm.BindNative(target, name, argc, native, bindsSelf)
	return v, wrapError(err)
}

// Call calls a script callable from the host.
func (e *Engine) Call(fn Value, args ...Value) (Value, error) {
	v, err := e.vm.Call(fn, args...)
	return v, wrapError(err)
}

// Collect runs a full collection and reports the number of freed objects.
func (e *Engine) Collect() int { return e.vm.Collect() }

// Repr formats v like repr().
func (e *Engine) Repr(v Value) (string, error) {
	s, err := e.vm.Repr(v)
	return s, wrapError(err)
}

// Str formats v like str().
func (e *Engine) Str(v Value) (string, error) {
	s, err := e.vm.Str(v)
	return s, wrapError(err)
}

// Global reads a name from __main__.
func (e *Engine) Global(name string) (Value, error) {
	v, err := e.vm.GetAttr(e.main, name)
	return v, wrapError(err)
}

// SetGlobal binds a name in __main__.
func (e *Engine) SetGlobal(name string, v Value) error {
	return wrapError(e.vm.SetAttr(e.main, name, v))
}

// WriteHeapDump writes a MessagePack snapshot of the heap.
func (e *Engine) WriteHeapDump(w io.Writer) error { return e.vm.WriteHeapDump(w) }

// Value constructors and accessors.

func (e *Engine) NewInt(i int64) Value     { return e.vm.NewInt(i) }
func (e *Engine) NewFloat(f float64) Value { return e.vm.NewFloat(f) }
func (e *Engine) NewStr(s string) Value    { return e.vm.NewStr(s) }
func (e *Engine) NewBool(b bool) Value     { return object.Bool(b) }

func (e *Engine) NewList(items ...Value) Value {
	return e.vm.NewList(append([]Value(nil), items...))
}

func (e *Engine) NewTuple(items ...Value) Value {
	return e.vm.NewTuple(append([]Value(nil), items...))
}

func (e *Engine) AsInt(v Value) (int64, bool)     { return e.vm.Int(v) }
func (e *Engine) AsFloat(v Value) (float64, bool) { return e.vm.Float(v) }
func (e *Engine) AsStr(v Value) (string, bool)    { return e.vm.String(v) }
func (e *Engine) AsItems(v Value) ([]Value, bool) { return e.vm.Items(v) }
func (e *Engine) TypeName(v Value) string         { return e.vm.TypeName(v) }
