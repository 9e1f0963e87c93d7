package vm

import (
	"errors"
	"fmt"
	"io"
	"os"

	"krait/internal/code"
	"krait/internal/gc"
	"krait/internal/object"
	"krait/internal/trace"
)

const (
	// DefaultStackSize is the value-stack capacity in slots.
	DefaultStackSize = 65536
	// MaxCallDepth bounds nested activations.
	MaxCallDepth = 1000
)

// Importer resolves a module name to its source.
type Importer func(name string) ([]byte, bool)

// Config configures a VM.
type Config struct {
	StackSize   int
	GCThreshold int
	// OSModules registers os, sys and time.
	OSModules bool
	Stdout    io.Writer
	Runtime   Runtime
	Tracer    trace.Tracer
	Exec      *ExecTracer
	Importer  Importer
	OnDelete  gc.DeleteHook
	// Path is exposed as sys.path.
	Path []string
}

// VM executes code units against one heap.
type VM struct {
	Heap   *object.Heap
	GC     *gc.Collector
	Stdout io.Writer
	Exec   *ExecTracer
	Tracer trace.Tracer
	RT     Runtime

	stack []Value
	sp    int

	frames    []*Frame
	framePool []*Frame

	types    builtinTypes
	excTypes map[string]Value
	ctors    map[Value]Value // builtin type -> constructor native

	builtins *object.NameDict
	modules  map[string]Value
	modOrder []string
	factories map[string]func(*VM) Value

	importer Importer
	osMods   bool
	path     []string
	onDelete gc.DeleteHook

	// exc is the exception being propagated; lastExc the one being handled.
	exc     Value
	lastExc Value
	yielded Value
	temps   []Value
	units   []*code.Unit

	// unwindFrom overrides the block unwinding starts from; noBlock when unset.
	unwindFrom int

	reprActive map[Value]bool
	scratch    []Value

	eb *errorBuilder
}

const noBlock = -2

// errThrown signals that vm.exc holds a script exception.
var errThrown = errors.New("vm: exception raised")

// New creates a VM with the builtins and builtin modules installed.
func New(cfg Config) *VM {
	size := cfg.StackSize
	if size <= 0 {
		size = DefaultStackSize
	}
	vm := &VM{
		Heap:       object.NewHeap(),
		Stdout:     cfg.Stdout,
		Exec:       cfg.Exec,
		Tracer:     cfg.Tracer,
		RT:         cfg.Runtime,
		stack:      make([]Value, size),
		excTypes:   make(map[string]Value),
		ctors:      make(map[Value]Value),
		modules:    make(map[string]Value),
		factories:  make(map[string]func(*VM) Value),
		importer:   cfg.Importer,
		osMods:     cfg.OSModules,
		path:       cfg.Path,
		onDelete:   cfg.OnDelete,
		unwindFrom: noBlock,
		reprActive: make(map[Value]bool),
	}
	if vm.Stdout == nil {
		vm.Stdout = os.Stdout
	}
	if vm.Tracer == nil {
		vm.Tracer = trace.Nop
	}
	if vm.RT == nil {
		vm.RT = NewDefaultRuntime(nil)
	}
	vm.eb = &errorBuilder{vm: vm}
	vm.GC = gc.New(vm.Heap, vm, cfg.GCThreshold)
	vm.GC.Tracer = vm.Tracer
	vm.GC.OnDelete = vm.deleteHook

	// встроенные типы и модули создаются без сборок
	vm.GC.Lock()
	vm.initTypes()
	vm.initBuiltins()
	vm.initModules()
	vm.GC.Unlock()
	return vm
}

// SetImporter replaces the import-resolution callback.
func (vm *VM) SetImporter(imp Importer) { vm.importer = imp }

// Builtins returns the builtins module.
func (vm *VM) Builtins() Value { return vm.modules["builtins"] }

// Depth returns the number of live frames.
func (vm *VM) Depth() int { return len(vm.frames) }

// SP returns the value-stack top.
func (vm *VM) SP() int { return vm.sp }

// Execute runs u as the body of module and returns its result: the
// expression value for eval units, None otherwise.
func (vm *VM) Execute(u *code.Unit, module Value) (result Value, err error) {
	mo := vm.obj(module)
	if mo == nil || mo.Kind != object.KModule {
		return Nil, fmt.Errorf("execute: %s is not a module", vm.typeName(module))
	}
	outer := len(vm.frames) == 0
	if outer {
		defer func() {
			if r := recover(); r != nil {
				result, err = Nil, vm.eb.recovered(r)
				vm.reset()
			}
		}()
	}
	if err := vm.pushModuleFrame(u, module, -1); err != nil {
		return Nil, vm.finish(err, outer)
	}
	v, err := vm.run(len(vm.frames) - 1)
	if err != nil {
		return Nil, vm.finish(err, outer)
	}
	return v, nil
}

// finish converts an error escaping to the embedder. Nested executions keep
// the exception pending so it propagates through the native that started them.
func (vm *VM) finish(err error, outer bool) error {
	var fatal *FatalError
	if errors.As(err, &fatal) {
		vm.reset()
		return fatal
	}
	if !outer {
		return err
	}
	exc := vm.exc
	if !errors.Is(err, errThrown) {
		exc = vm.excFromError(err)
	}
	e := vm.exception(exc)
	vm.reset()
	return e
}

// reset drops every frame and the value stack after an uncaught error.
func (vm *VM) reset() {
	for len(vm.frames) > 0 {
		f := vm.frames[len(vm.frames)-1]
		if f.gen != nil {
			f.gen.state = genExhausted
			f.gen.saved = nil
		}
		vm.releaseFrame(f)
	}
	clear(vm.stack[:vm.sp])
	vm.sp = 0
	vm.exc = Nil
	vm.lastExc = Nil
	vm.yielded = Nil
	clear(vm.temps)
	vm.temps = vm.temps[:0]
	clear(vm.reprActive)
	vm.unwindFrom = noBlock
}

// pushModuleFrame starts a frame running u in module. dyn is the frame
// whose locals a dynamic unit sees, or -1.
func (vm *VM) pushModuleFrame(u *code.Unit, module Value, dyn int) error {
	if u.Released() {
		return vm.eb.released(u)
	}
	mo := vm.obj(module)
	f, err := vm.pushFrame(u, vm.sp, vm.sp)
	if err != nil {
		return err
	}
	f.Module = module
	f.Globals = mo.Attr
	f.entry = true
	f.dyn = dyn
	return nil
}

// pin keeps v alive across calls back into script code until unpinTo.
func (vm *VM) pin(v Value) int {
	vm.temps = append(vm.temps, v)
	return len(vm.temps) - 1
}

func (vm *VM) unpinTo(n int) {
	clear(vm.temps[n:])
	vm.temps = vm.temps[:n]
}

// Collect runs a full collection.
func (vm *VM) Collect() int { return vm.GC.Collect() }
