package object

import (
	"krait/internal/code"
)

// inlineTuple is the longest tuple stored without a separate slice.
const inlineTuple = 2

type objFlags uint8

const (
	flagTraced objFlags = 1 << iota // участвует в mark/sweep
	flagMarked
	flagASCII
)

// Object is the single heap object layout. Which payload fields are meaningful
// depends on Kind.
type Object struct {
	Kind  Kind
	flags objFlags
	n     uint8 // длина inline-кортежа
	Type  Value // type object
	Attr  *NameDict

	Int   int64
	Float float64
	Str   string
	Items []Value

	inline [inlineTuple]Value
	Data   any
}

func (o *Object) Traced() bool { return o.flags&flagTraced != 0 }
func (o *Object) Marked() bool { return o.flags&flagMarked != 0 }
func (o *Object) ASCII() bool  { return o.flags&flagASCII != 0 }

func (o *Object) SetMarked(m bool) {
	if m {
		o.flags |= flagMarked
	} else {
		o.flags &^= flagMarked
	}
}

// Elems returns the elements of a tuple or list. Tuples of up to two
// elements live in the object itself.
func (o *Object) Elems() []Value {
	if o.Kind == KTuple && o.Items == nil {
		return o.inline[:o.n]
	}
	return o.Items
}

// Function is the payload of a KFunction object.
type Function struct {
	Decl     *code.FuncDecl
	Module   Value
	Closure  Value // KCells or Nil
	Owner    Value // class that stores the function as an attribute, for super()
	Defaults []Value
}

// NativeFunc is the payload of a KNative object. Fn holds the VM's native
// function type; Userdata is opaque to the engine.
type NativeFunc struct {
	Name      string
	Argc      int // -1: variadic
	Kw        []NameArg
	BindsSelf bool
	Fn        any
	Userdata  any
}

// NameArg names a keyword argument accepted by a native function.
type NameArg struct {
	Name    string
	Default Value
}

// BoundMethod pairs a receiver with a callable.
type BoundMethod struct {
	Self Value
	Func Value
}

// Wrapped is the payload of staticmethod/classmethod objects.
type Wrapped struct {
	Func Value
}

// Property is the payload of a property object.
type Property struct {
	Getter Value
	Setter Value
}

// Cells is a closure environment; variables live in the object's Attr map.
type Cells struct {
	Parent Value
}

// Super is the payload of a super() proxy.
type Super struct {
	Self  Value
	Start Value // lookup starts at this type's base
}

// Slice holds start/stop/step values (Nil for omitted).
type Slice struct {
	Start, Stop, Step Value
}

// Range is the payload of range objects.
type Range struct {
	Start, Stop, Step int64
}

// ModuleInfo is the payload of module objects.
type ModuleInfo struct {
	Name string
	Path string
}

// TypeInfo is the payload of type objects.
type TypeInfo struct {
	Name         string
	Module       string
	Base         Value
	Instance     Kind // kind of objects created by calling the type
	Subclassable bool
	HasGetAttr   bool
}

// MaxTrace caps the number of traceback entries kept per exception.
const MaxTrace = 8

// TraceEntry is one traceback line.
type TraceEntry struct {
	File    string `msgpack:"file" json:"file"`
	Line    uint32 `msgpack:"line" json:"line"`
	Func    string `msgpack:"func" json:"func"`
	Snippet string `msgpack:"snippet,omitempty" json:"snippet,omitempty"`
}

// ExcInfo is the payload of exception instances.
type ExcInfo struct {
	Args    Value // tuple
	Cause   Value
	Trace   []TraceEntry
	NoTrace bool // compile errors: the trace is never extended
	Raised  bool // already propagated once; re-raise keeps the trace
}

// PushTrace appends an entry unless the cap is reached or tracing is disabled.
func (e *ExcInfo) PushTrace(t TraceEntry) {
	if e.NoTrace || len(e.Trace) >= MaxTrace {
		return
	}
	e.Trace = append(e.Trace, t)
}

// Traceable is implemented by payloads owned by the VM (generators, iterators)
// that hold references the collector must follow.
type Traceable interface {
	Trace(mark func(Value))
}
