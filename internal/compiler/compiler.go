package compiler

import (
	"strings"

	"fortio.org/safecast"

	"krait/internal/code"
	"krait/internal/diag"
	"krait/internal/lexer"
	"krait/internal/source"
	"krait/internal/symbol"
	"krait/internal/token"
)

// Options selects the compile mode.
type Options struct {
	Mode code.Mode
	// Dynamic marks text compiled by eval/exec at run time: top-level names
	// go through the run-time lookup chain.
	Dynamic bool
}

// Compile compiles file. On failure it returns *Error and no unit.
func Compile(file *source.File, opts Options) (u *code.Unit, err error) {
	var rep diag.FirstErrorReporter
	interactive := opts.Mode == code.ModeREPL
	lx := lexer.New(file, lexer.Options{Reporter: &rep, Interactive: interactive})
	toks := make([]token.Token, 0, len(file.Content)/4+1)
	for {
		tok := lx.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	if lx.NeedMore() {
		return nil, &Error{Diag: diag.NewError(diag.SynUnexpectedToken, toks[len(toks)-1].Span, "incomplete input"), File: file, NeedMore: true}
	}
	if rep.First != nil {
		return nil, &Error{Diag: *rep.First, File: file}
	}

	c := &compiler{file: file, toks: toks, mode: opts.Mode, interactive: interactive}
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			if c.s != nil && c.s.unit != nil {
				c.releaseScopes()
			}
			u, err = nil, b.err
		}
	}()

	unit := code.NewUnit("<module>", code.KindModule, opts.Mode, file)
	unit.Dynamic = opts.Dynamic
	c.pushScope(unit, code.KindModule)
	switch opts.Mode {
	case code.ModeEval:
		c.compileEval()
	case code.ModeJSON:
		c.compileJSON()
	case code.ModeREPL:
		c.compileREPL()
	default:
		c.compileModule()
	}
	c.popScope()
	return unit, nil
}

type nameOp uint8

const (
	opLoad nameOp = iota
	opStore
	opDelete
)

type fixup struct {
	ip   int
	name symbol.Name
	op   nameOp
}

type gotoSite struct {
	ip    int
	sp    source.Span
	name  symbol.Name
	block int32
}

type labelSite struct {
	ip    int
	block int32
}

// scope is the compile-time state of one unit.
type scope struct {
	unit   *code.Unit
	parent *scope
	kind   code.Kind

	globals   map[symbol.Name]bool
	nonlocals map[symbol.Name]bool
	fixups    []fixup

	blocks    []int32 // открытые блоки, последний — текущий
	depth     int
	classBody int
	line      uint32

	consts map[code.Const]int
	names  map[symbol.Name]int
	gotos  []gotoSite
	labels map[symbol.Name]labelSite

	yields bool
}

type compiler struct {
	file        *source.File
	toks        []token.Token
	pos         int
	mode        code.Mode
	interactive bool
	s           *scope
	nest        int // глубина вложенных suite

	// last top-level expression statement, for cell mode
	lastExprIP int
}

func (c *compiler) pushScope(u *code.Unit, kind code.Kind) *scope {
	s := &scope{
		unit:      u,
		parent:    c.s,
		kind:      kind,
		globals:   make(map[symbol.Name]bool),
		nonlocals: make(map[symbol.Name]bool),
		consts:    make(map[code.Const]int),
		names:     make(map[symbol.Name]int),
		labels:    make(map[symbol.Name]labelSite),
	}
	if c.s != nil {
		s.line = c.s.line
	}
	c.s = s
	return s
}

// popScope finishes the current unit: resolves names and gotos.
func (c *compiler) popScope() {
	s := c.s
	c.resolveNames()
	c.resolveGotos()
	s.unit.IsGenerator = s.yields
	c.s = s.parent
}

// releaseScopes drops units of scopes abandoned by a compile error.
func (c *compiler) releaseScopes() {
	for s := c.s; s != nil; s = s.parent {
		s.unit.Release()
	}
	c.s = nil
}

// inFunction reports whether the current scope or an enclosing one is a
// function-like scope.
func (s *scope) inFunction() bool {
	for p := s; p != nil; p = p.parent {
		if p.kind != code.KindModule {
			return true
		}
	}
	return false
}

// ---- tokens ----

func (c *compiler) peek() token.Token { return c.toks[c.pos] }

func (c *compiler) peekAt(n int) token.Token {
	if c.pos+n < len(c.toks) {
		return c.toks[c.pos+n]
	}
	return c.toks[len(c.toks)-1]
}

func (c *compiler) at(k token.Kind) bool { return c.toks[c.pos].Kind == k }

func (c *compiler) advance() token.Token {
	tok := c.toks[c.pos]
	if tok.Kind != token.EOF {
		c.pos++
	}
	return tok
}

func (c *compiler) accept(k token.Kind) bool {
	if c.at(k) {
		c.advance()
		return true
	}
	return false
}

func (c *compiler) expect(k token.Kind, what string) token.Token {
	if !c.at(k) {
		c.unexpected(what)
	}
	return c.advance()
}

func (c *compiler) unexpected(what string) {
	tok := c.peek()
	switch tok.Kind {
	case token.Indent:
		c.failAt(diag.IndUnexpected, c.pos, "unexpected indent")
	case token.EOF:
		c.failAt(diag.SynUnexpectedToken, c.pos, "unexpected end of input, expected %s", what)
	case token.Newline:
		c.failAt(diag.SynUnexpectedToken, c.pos, "invalid syntax: expected %s", what)
	}
	c.failAt(diag.SynUnexpectedToken, c.pos, "invalid syntax: expected %s, got '%s'", what, tokText(tok))
}

func tokText(tok token.Token) string {
	if tok.Text != "" {
		return tok.Text
	}
	return tok.Kind.String()
}

// atInputEnd reports whether only closing dedents remain from i on.
func (c *compiler) atInputEnd(i int) bool {
	for ; i < len(c.toks); i++ {
		switch c.toks[i].Kind {
		case token.Dedent:
		case token.EOF:
			return true
		default:
			return false
		}
	}
	return true
}

func (c *compiler) ident(what string) (symbol.Name, token.Token) {
	tok := c.peek()
	if tok.Kind != token.Ident {
		if tok.Kind == token.EOF || tok.Kind == token.Newline {
			c.unexpected(what)
		}
		c.failAt(diag.SynExpectIdentifier, c.pos, "expected %s, got '%s'", what, tokText(tok))
	}
	c.advance()
	return symbol.Intern(tok.Text), tok
}

// ---- emission ----

func (c *compiler) emit(op code.Opcode, arg int) int {
	s := c.s
	a, err := safecast.Conv[uint16](arg)
	if err != nil {
		c.fail(diag.SynJumpTooFar, c.peek().Span, "operand %d of %s does not fit", arg, op)
	}
	u := s.unit
	ip := len(u.Code)
	u.Code = append(u.Code, code.Instr{Op: op, Arg: a})
	u.Lines = append(u.Lines, s.line)
	u.IBlock = append(u.IBlock, c.curBlock())
	s.depth += code.StackEffect(op, a, false)
	if s.depth > u.MaxDepth {
		u.MaxDepth = s.depth
	}
	return ip
}

// emitJump emits a forward jump to be patched later.
func (c *compiler) emitJump(op code.Opcode) int { return c.emit(op, 0) }

// patch points the jump at ip to the next instruction.
func (c *compiler) patch(ip int) { c.patchTo(ip, c.here()) }

func (c *compiler) patchTo(ip, target int) {
	a, err := safecast.Conv[uint16](target)
	if err != nil {
		c.fail(diag.SynJumpTooFar, c.peek().Span, "code unit too large")
	}
	c.s.unit.Code[ip].Arg = a
}

func (c *compiler) here() int { return len(c.s.unit.Code) }

func (c *compiler) setDepth(d int) {
	c.s.depth = d
	if d > c.s.unit.MaxDepth {
		c.s.unit.MaxDepth = d
	}
}

func (c *compiler) curBlock() int32 {
	if n := len(c.s.blocks); n > 0 {
		return c.s.blocks[n-1]
	}
	return -1
}

func (c *compiler) pushBlock(t code.BlockType, owned int) int32 {
	u := c.s.unit
	idx, err := safecast.Conv[int32](len(u.Blocks))
	if err != nil {
		c.fail(diag.SynJumpTooFar, c.peek().Span, "too many blocks")
	}
	depth, err := safecast.Conv[uint16](c.s.depth)
	if err != nil {
		c.fail(diag.SynJumpTooFar, c.peek().Span, "expression too deep")
	}
	u.Blocks = append(u.Blocks, code.Block{
		Type:   t,
		Parent: c.curBlock(),
		Start:  uint32(c.here()), // #nosec G115 -- code length is bounded by uint16 jumps
		Depth:  depth,
		Owned:  uint16(owned), // #nosec G115 -- 0 or 1
	})
	c.s.blocks = append(c.s.blocks, idx)
	return idx
}

func (c *compiler) popBlock() int32 {
	s := c.s
	idx := s.blocks[len(s.blocks)-1]
	s.blocks = s.blocks[:len(s.blocks)-1]
	s.unit.Blocks[idx].End = uint32(c.here()) // #nosec G115 -- bounded by uint16 jumps
	return idx
}

func (c *compiler) block(idx int32) *code.Block { return &c.s.unit.Blocks[idx] }

func (c *compiler) constIndex(k code.Const) int {
	s := c.s
	if i, ok := s.consts[k]; ok {
		return i
	}
	i := len(s.unit.Consts)
	if i > 0xffff {
		c.fail(diag.SynTooManyConstants, c.peek().Span, "too many constants in %s", s.unit.Name)
	}
	s.unit.Consts = append(s.unit.Consts, k)
	s.consts[k] = i
	return i
}

func (c *compiler) nameIndex(n symbol.Name) int {
	s := c.s
	if i, ok := s.names[n]; ok {
		return i
	}
	i := len(s.unit.Names)
	s.unit.Names = append(s.unit.Names, n)
	s.names[n] = i
	return i
}

func (c *compiler) addLocal(n symbol.Name) int {
	u := c.s.unit
	if i, ok := u.VarIndex[n]; ok {
		return i
	}
	i := len(u.Varnames)
	if i > 0xffff {
		c.fail(diag.SynTooManyLocals, c.peek().Span, "too many local variables in %s", u.Name)
	}
	u.Varnames = append(u.Varnames, n)
	u.VarIndex[n] = i
	return i
}

func (c *compiler) loadConst(k code.Const) {
	switch k.Kind {
	case code.ConstNone:
		c.emit(code.LOAD_NONE, 0)
	case code.ConstTrue:
		c.emit(code.LOAD_TRUE, 0)
	case code.ConstFalse:
		c.emit(code.LOAD_FALSE, 0)
	case code.ConstEllipsis:
		c.emit(code.LOAD_ELLIPSIS, 0)
	case code.ConstInt:
		if k.Int >= -1<<15 && k.Int < 1<<15 {
			c.emit(code.LOAD_INTEGER, int(uint16(int16(k.Int)))) // #nosec G115 -- range checked
			return
		}
		c.emit(code.LOAD_CONST, c.constIndex(k))
	default:
		c.emit(code.LOAD_CONST, c.constIndex(k))
	}
}

func (c *compiler) loadStr(s string) {
	c.emit(code.LOAD_CONST, c.constIndex(code.Const{Kind: code.ConstStr, Str: s}))
}

// ---- names ----

// emitName emits a load, store or delete of n in the current scope.
func (c *compiler) emitName(n symbol.Name, op nameOp) {
	s := c.s
	switch {
	case s.classBody > 0:
		switch op {
		case opLoad:
			c.emit(code.LOAD_NAME, c.nameIndex(n))
		case opStore:
			c.emit(code.STORE_CLASS_ATTR, c.nameIndex(n))
		default:
			c.emit(code.DELETE_NAME, c.nameIndex(n))
		}
		return
	case s.kind == code.KindModule:
		if s.unit.Dynamic {
			c.emit([...]code.Opcode{code.LOAD_NAME, code.STORE_NAME, code.DELETE_NAME}[op], c.nameIndex(n))
			return
		}
		c.emit([...]code.Opcode{code.LOAD_GLOBAL, code.STORE_GLOBAL, code.DELETE_GLOBAL}[op], c.nameIndex(n))
		return
	}

	if op != opLoad {
		switch {
		case s.globals[n]:
			c.emit([...]code.Opcode{code.LOAD_GLOBAL, code.STORE_GLOBAL, code.DELETE_GLOBAL}[op], c.nameIndex(n))
		case s.nonlocals[n]:
			c.emit([...]code.Opcode{code.LOAD_NONLOCAL, code.STORE_NONLOCAL, code.DELETE_NONLOCAL}[op], c.nameIndex(n))
		case op == opStore:
			c.emit(code.STORE_FAST, c.addLocal(n))
		default:
			c.emit(code.DELETE_FAST, c.addLocal(n))
		}
		return
	}
	// загрузка: класс имени известен только в конце функции
	ip := c.emit(code.LOAD_FAST, 0)
	s.fixups = append(s.fixups, fixup{ip: ip, name: n, op: op})
}

func (c *compiler) resolveNames() {
	s := c.s
	for _, fx := range s.fixups {
		in := &s.unit.Code[fx.ip]
		var op code.Opcode
		arg := 0
		switch {
		case s.globals[fx.name]:
			op, arg = code.LOAD_GLOBAL, c.nameIndex(fx.name)
		case s.nonlocals[fx.name]:
			op, arg = code.LOAD_NONLOCAL, c.nameIndex(fx.name)
		default:
			if i, ok := s.unit.VarIndex[fx.name]; ok {
				op, arg = code.LOAD_FAST, i
			} else if s.parent != nil && s.parent.inFunction() {
				op, arg = code.LOAD_NONLOCAL, c.nameIndex(fx.name)
			} else {
				op, arg = code.LOAD_GLOBAL, c.nameIndex(fx.name)
			}
		}
		in.Op = op
		in.Arg = uint16(arg) // #nosec G115 -- indices are capped at 0xffff
	}
	s.fixups = nil
}

func (c *compiler) resolveGotos() {
	s := c.s
	for _, g := range s.gotos {
		l, ok := s.labels[g.name]
		if !ok {
			c.fail(diag.SynUnknownLabel, g.sp, "unknown label '.%s'", g.name)
		}
		if l.block != g.block {
			c.fail(diag.SynBadScope, g.sp, "goto '.%s' leaves or enters a block", g.name)
		}
		c.patchTo(g.ip, l.ip)
	}
	s.gotos = nil
}

// setLine makes subsequent instructions report tok's line.
func (c *compiler) setLine(line uint32) {
	if line != 0 {
		c.s.line = line
	}
}

// sourceEndsWithBlankLine is the REPL rule for finishing compound statements.
func (c *compiler) sourceEndsWithBlankLine() bool {
	text := strings.TrimRight(string(c.file.Content), " \t\r")
	return strings.HasSuffix(text, "\n\n")
}

// topLevel reports whether statements are compiled directly in the module body.
func (c *compiler) topLevel() bool {
	return c.s.parent == nil && c.nest == 0 && c.s.classBody == 0
}
