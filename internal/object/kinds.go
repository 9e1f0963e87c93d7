package object

import "krait/internal/symbol"

// Kind is the closed set of heap object variants.
type Kind uint8

const (
	KInt Kind = iota
	KFloat
	KStr
	KList
	KTuple
	KDict
	KFunction
	KNative
	KBoundMethod
	KStaticMethod
	KClassMethod
	KProperty
	KType
	KInstance
	KModule
	KException
	KGenerator
	KIter
	KSlice
	KRange
	KSuper
	KCells
	KUserdata
	kindCount
)

type kindInfo struct {
	name string
	size int // номинальный размер, выбирает пул аллокатора
	mark func(o *Object, mark func(Value))
}

var kinds = [kindCount]kindInfo{
	KInt:          {name: "int", size: 24},
	KFloat:        {name: "float", size: 24},
	KStr:          {name: "str", size: 40},
	KList:         {name: "list", size: 72, mark: markElems},
	KTuple:        {name: "tuple", size: 48, mark: markElems},
	KDict:         {name: "dict", size: 96, mark: markDict},
	KFunction:     {name: "function", size: 96, mark: markFunction},
	KNative:       {name: "builtin_function", size: 80, mark: markNative},
	KBoundMethod:  {name: "method", size: 40, mark: markBound},
	KStaticMethod: {name: "staticmethod", size: 32, mark: markWrapped},
	KClassMethod:  {name: "classmethod", size: 32, mark: markWrapped},
	KProperty:     {name: "property", size: 40, mark: markProperty},
	KType:         {name: "type", size: 120, mark: markType},
	KInstance:     {name: "object", size: 72},
	KModule:       {name: "module", size: 96},
	KException:    {name: "exception", size: 112, mark: markException},
	KGenerator:    {name: "generator", size: 120, mark: markTraceable},
	KIter:         {name: "iterator", size: 56, mark: markTraceable},
	KSlice:        {name: "slice", size: 48, mark: markSlice},
	KRange:        {name: "range", size: 48},
	KSuper:        {name: "super", size: 40, mark: markSuper},
	KCells:        {name: "cells", size: 48, mark: markCells},
	KUserdata:     {name: "userdata", size: 48, mark: markTraceable},
}

func (k Kind) String() string {
	if k < kindCount {
		return kinds[k].name
	}
	return "?"
}

// NominalSize is the size used to route allocations of this kind.
func (k Kind) NominalSize() int { return kinds[k].size }

// Children reports every value directly referenced by o.
func Children(o *Object, mark func(Value)) {
	mark(o.Type)
	if o.Attr != nil {
		o.Attr.Each(func(_ symbol.Name, v Value) bool {
			mark(v)
			return true
		})
	}
	if fn := kinds[o.Kind].mark; fn != nil {
		fn(o, mark)
	}
}

func markElems(o *Object, mark func(Value)) {
	for _, v := range o.Elems() {
		mark(v)
	}
}

func markDict(o *Object, mark func(Value)) {
	if d, ok := o.Data.(*Dict); ok {
		d.Each(func(k, v Value) bool {
			mark(k)
			mark(v)
			return true
		})
	}
}

func markFunction(o *Object, mark func(Value)) {
	f, ok := o.Data.(*Function)
	if !ok {
		return
	}
	mark(f.Module)
	mark(f.Closure)
	mark(f.Owner)
	for _, v := range f.Defaults {
		mark(v)
	}
}

func markNative(o *Object, mark func(Value)) {
	n, ok := o.Data.(*NativeFunc)
	if !ok {
		return
	}
	for _, a := range n.Kw {
		mark(a.Default)
	}
	if t, ok := n.Userdata.(Traceable); ok {
		t.Trace(mark)
	}
}

func markBound(o *Object, mark func(Value)) {
	if b, ok := o.Data.(*BoundMethod); ok {
		mark(b.Self)
		mark(b.Func)
	}
}

func markWrapped(o *Object, mark func(Value)) {
	if w, ok := o.Data.(*Wrapped); ok {
		mark(w.Func)
	}
}

func markProperty(o *Object, mark func(Value)) {
	if p, ok := o.Data.(*Property); ok {
		mark(p.Getter)
		mark(p.Setter)
	}
}

func markType(o *Object, mark func(Value)) {
	if t, ok := o.Data.(*TypeInfo); ok {
		mark(t.Base)
	}
}

func markException(o *Object, mark func(Value)) {
	if e, ok := o.Data.(*ExcInfo); ok {
		mark(e.Args)
		mark(e.Cause)
	}
}

func markTraceable(o *Object, mark func(Value)) {
	if t, ok := o.Data.(Traceable); ok {
		t.Trace(mark)
	}
}

func markSlice(o *Object, mark func(Value)) {
	if s, ok := o.Data.(*Slice); ok {
		mark(s.Start)
		mark(s.Stop)
		mark(s.Step)
	}
}

func markSuper(o *Object, mark func(Value)) {
	if s, ok := o.Data.(*Super); ok {
		mark(s.Self)
		mark(s.Start)
	}
}

func markCells(o *Object, mark func(Value)) {
	if c, ok := o.Data.(*Cells); ok {
		mark(c.Parent)
	}
}
