package object

import (
	"krait/internal/alloc"
)

// Heap owns every object of one engine.
type Heap struct {
	mem    *alloc.Allocator[Object]
	live   int
	recent int // allocations since the last ResetRecent
	pinned []Value
}

func NewHeap() *Heap {
	return &Heap{mem: alloc.New[Object]()}
}

// New allocates a zeroed, collectable object. extra is added to the kind's
// nominal size when choosing a pool.
func (h *Heap) New(kind Kind, typ Value, extra int) (Value, *Object) {
	hd, o := h.mem.Alloc(kind.NominalSize() + extra)
	o.Kind = kind
	o.Type = typ
	o.flags = flagTraced
	h.live++
	h.recent++
	return FromHandle(hd), o
}

// Get resolves a heap value; it returns nil for anything else.
func (h *Heap) Get(v Value) *Object {
	if !v.IsHeap() {
		return nil
	}
	return h.mem.Get(v.Handle())
}

func (h *Heap) Free(v Value) error {
	if err := h.mem.Free(v.Handle()); err != nil {
		return err
	}
	h.live--
	return nil
}

// Pin excludes v from collection. Pinned objects are marked from as roots.
func (h *Heap) Pin(v Value) {
	o := h.Get(v)
	if o == nil || !o.Traced() {
		return
	}
	o.flags &^= flagTraced
	h.pinned = append(h.pinned, v)
}

func (h *Heap) EachPinned(fn func(Value)) {
	for _, v := range h.pinned {
		fn(v)
	}
}

// Each visits every live object. fn may free the object it is given.
func (h *Heap) Each(fn func(Value, *Object)) {
	h.mem.Each(func(hd alloc.Handle, o *Object) {
		fn(FromHandle(hd), o)
	})
}

func (h *Heap) Live() int   { return h.live }
func (h *Heap) Recent() int { return h.recent }
func (h *Heap) ResetRecent() {
	h.recent = 0
}

func (h *Heap) Stats() alloc.Stats { return h.mem.Stats() }

// NewStr allocates a string object.
func (h *Heap) NewStr(typ Value, s string) Value {
	v, o := h.New(KStr, typ, len(s))
	o.Str = s
	if IsASCII(s) {
		o.flags |= flagASCII
	}
	return v
}

// NewTuple copies elems into a new tuple.
func (h *Heap) NewTuple(typ Value, elems []Value) Value {
	if len(elems) <= inlineTuple {
		v, o := h.New(KTuple, typ, 0)
		o.n = uint8(copy(o.inline[:], elems)) // #nosec G115 -- at most inlineTuple
		return v
	}
	v, o := h.New(KTuple, typ, 8*len(elems))
	o.Items = append(make([]Value, 0, len(elems)), elems...)
	return v
}

// NewList takes ownership of items.
func (h *Heap) NewList(typ Value, items []Value) Value {
	v, o := h.New(KList, typ, 0)
	if items == nil {
		items = []Value{}
	}
	o.Items = items
	return v
}

func (h *Heap) NewDict(typ Value, d *Dict) Value {
	v, o := h.New(KDict, typ, 0)
	if d == nil {
		d = NewDict(0)
	}
	o.Data = d
	return v
}

// NewData allocates an object of kind with the given payload.
func (h *Heap) NewData(kind Kind, typ Value, data any) (Value, *Object) {
	v, o := h.New(kind, typ, 0)
	o.Data = data
	return v, o
}
