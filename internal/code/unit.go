package code

import (
	"sync/atomic"

	"krait/internal/source"
	"krait/internal/symbol"
)

// Mode selects what the compiler accepts and what the unit returns.
type Mode uint8

const (
	ModeExec Mode = iota // module body
	ModeEval             // single expression, value is returned
	ModeREPL             // one interactive statement, expression values are printed
	ModeJSON             // one JSON literal
	ModeCell             // statements; the value of the last expression statement is printed
)

func (m Mode) String() string {
	switch m {
	case ModeExec:
		return "exec"
	case ModeEval:
		return "eval"
	case ModeREPL:
		return "repl"
	case ModeJSON:
		return "json"
	case ModeCell:
		return "cell"
	}
	return "?"
}

// Kind tells which lexical scope a unit was compiled from.
type Kind uint8

const (
	KindModule Kind = iota
	KindFunction
	KindLambda
	KindComprehension
)

// Instr is one instruction.
type Instr struct {
	Op  Opcode
	Arg uint16
}

// ConstKind tags pool constants.
type ConstKind uint8

const (
	ConstNone ConstKind = iota
	ConstTrue
	ConstFalse
	ConstInt
	ConstFloat
	ConstStr
	ConstEllipsis
)

// Const is a compile-time literal. The VM materialises it into a value once
// per unit.
type Const struct {
	Kind  ConstKind
	Int   int64
	Float float64
	Str   string
}

// Unit is the compiled form of one lexical scope.
type Unit struct {
	Name string
	Kind Kind
	Mode Mode
	File *source.File

	Code   []Instr
	Lines  []uint32 // строка исходника на инструкцию
	IBlock []int32  // индекс самого внутреннего блока на инструкцию, -1 вне блоков

	Consts   []Const
	Names    []symbol.Name
	Varnames []symbol.Name
	VarIndex map[symbol.Name]int
	Blocks   []Block
	Labels   map[symbol.Name]int
	Funcs    []*FuncDecl

	// MaxDepth is the deepest value-stack use above the locals.
	MaxDepth int
	// Dynamic units (eval/exec text, class bodies) resolve names at run time.
	Dynamic     bool
	IsGenerator bool

	refs     atomic.Int32
	released bool

	// Cache holds VM-side data derived from the unit (materialised constants).
	Cache any
}

// NewUnit returns a unit with one reference held by the caller.
func NewUnit(name string, kind Kind, mode Mode, file *source.File) *Unit {
	u := &Unit{
		Name:     name,
		Kind:     kind,
		Mode:     mode,
		File:     file,
		VarIndex: make(map[symbol.Name]int),
	}
	u.refs.Store(1)
	return u
}

func (u *Unit) Retain() *Unit {
	u.refs.Add(1)
	return u
}

// Release drops one reference; the last one releases nested declarations and
// the instruction stream.
func (u *Unit) Release() {
	if n := u.refs.Add(-1); n > 0 {
		return
	} else if n < 0 {
		panic("code: unit released too many times")
	}
	for _, f := range u.Funcs {
		f.Release()
	}
	u.Funcs = nil
	u.Code = nil
	u.Lines = nil
	u.IBlock = nil
	u.Cache = nil
	u.released = true
}

func (u *Unit) Refs() int32    { return u.refs.Load() }
func (u *Unit) Released() bool { return u.released }

// NLocals returns the number of local slots of a frame running u.
func (u *Unit) NLocals() int { return len(u.Varnames) }

// Line returns the source line of instruction ip.
func (u *Unit) Line(ip int) uint32 {
	if ip < 0 || ip >= len(u.Lines) {
		return 0
	}
	return u.Lines[ip]
}

// BlockAt returns the innermost block index covering ip, or -1.
func (u *Unit) BlockAt(ip int) int {
	if ip < 0 || ip >= len(u.IBlock) {
		return -1
	}
	return int(u.IBlock[ip])
}

// Path returns the file path or "<unknown>".
func (u *Unit) Path() string {
	if u.File == nil {
		return "<unknown>"
	}
	return u.File.Path
}

// Local returns the slot of name, if it is a local of u.
func (u *Unit) Local(name symbol.Name) (int, bool) {
	i, ok := u.VarIndex[name]
	return i, ok
}

// Walk visits u and every nested unit, depth first.
func (u *Unit) Walk(fn func(*Unit)) {
	fn(u)
	for _, f := range u.Funcs {
		f.Unit.Walk(fn)
	}
}
