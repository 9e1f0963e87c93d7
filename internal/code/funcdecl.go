package code

import (
	"sync/atomic"

	"krait/internal/symbol"
)

// KwDefault is the default of a keyword-only parameter.
type KwDefault struct {
	Has   bool
	Value Const
}

// FuncDecl describes a def, lambda or comprehension. Function objects created
// from it at run time share it.
//
// Parameters occupy the first slots of Unit.Varnames: NArgs positional ones,
// then len(KwOnly) keyword-only ones, then *args and **kwargs when present.
type FuncDecl struct {
	Unit       *Unit
	Name       string
	NArgs      int
	Defaults   []Const // for the last len(Defaults) positional parameters
	KwOnly     []symbol.Name
	KwDefaults []KwDefault
	Star       bool
	StarKw     bool
	Simple     bool
	Generator  bool
	Doc        string

	refs atomic.Int32
}

// NewFuncDecl wraps u; the declaration takes over the caller's reference to u.
func NewFuncDecl(name string, u *Unit) *FuncDecl {
	f := &FuncDecl{Name: name, Unit: u}
	f.refs.Store(1)
	return f
}

// NParams is the number of parameter slots.
func (f *FuncDecl) NParams() int {
	n := f.NArgs + len(f.KwOnly)
	if f.Star {
		n++
	}
	if f.StarKw {
		n++
	}
	return n
}

// StarSlot returns the slot of *args, or -1.
func (f *FuncDecl) StarSlot() int {
	if !f.Star {
		return -1
	}
	return f.NArgs + len(f.KwOnly)
}

// StarKwSlot returns the slot of **kwargs, or -1.
func (f *FuncDecl) StarKwSlot() int {
	if !f.StarKw {
		return -1
	}
	return f.NParams() - 1
}

func (f *FuncDecl) Retain() *FuncDecl {
	f.refs.Add(1)
	return f
}

func (f *FuncDecl) Release() {
	if f.refs.Add(-1) == 0 {
		f.Unit.Release()
	}
}

func (f *FuncDecl) Refs() int32 { return f.refs.Load() }
