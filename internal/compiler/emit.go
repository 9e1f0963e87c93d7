package compiler

import (
	"krait/internal/code"
	"krait/internal/diag"
	"krait/internal/symbol"
	"krait/internal/token"
)

// emitExpr emits n as a value load.
func (c *compiler) emitExpr(n *node) {
	c.setLine(n.line)
	switch n.kind {
	case nName:
		c.emitName(n.name, opLoad)
	case nConst:
		c.loadConst(n.val)
	case nFString:
		c.emitFString(n)
	case nAttr:
		c.emitExpr(n.x)
		c.emit(code.LOAD_ATTR, c.nameIndex(n.name))
	case nSubscr:
		c.emitExpr(n.x)
		c.emitIndex(n.y)
		c.emit(code.LOAD_SUBSCR, 0)
	case nSlice:
		c.emitIndex(n)
	case nCall:
		c.emitCall(n)
	case nBinary:
		c.emitExpr(n.x)
		c.emitExpr(n.y)
		c.emit(code.BINARY_OP, n.op)
	case nUnary:
		c.emitExpr(n.x)
		switch token.Kind(n.op) {
		case token.Minus:
			c.emit(code.UNARY_NEGATIVE, 0)
		case token.Plus:
			c.emit(code.UNARY_POSITIVE, 0)
		default:
			c.emit(code.UNARY_INVERT, 0)
		}
	case nNot:
		c.emitExpr(n.x)
		c.emit(code.UNARY_NOT, 0)
	case nCompare:
		c.emitCompare(n)
	case nAnd, nOr:
		op := code.JUMP_IF_FALSE_OR_POP
		if n.kind == nOr {
			op = code.JUMP_IF_TRUE_OR_POP
		}
		c.emitExpr(n.x)
		j := c.emitJump(op)
		c.emitExpr(n.y)
		c.patch(j)
	case nIfExp:
		d := c.s.depth
		c.emitExpr(n.z)
		jElse := c.emitJump(code.POP_JUMP_IF_FALSE)
		c.emitExpr(n.x)
		jEnd := c.emitJump(code.JUMP_ABSOLUTE)
		c.patch(jElse)
		c.setDepth(d)
		c.emitExpr(n.y)
		c.patch(jEnd)
	case nLambda:
		c.emitLambda(n)
	case nTuple:
		c.emitSequence(n.elts, code.BUILD_TUPLE)
	case nList:
		c.emitSequence(n.elts, code.BUILD_LIST)
	case nDict:
		c.emitDict(n)
	case nStarred:
		c.fail(diag.SynBadStarred, n.sp, "can't use starred expression here")
	case nComp:
		c.emitComprehension(n)
	case nYield:
		c.checkYield(n)
		if n.x != nil {
			c.emitExpr(n.x)
		} else {
			c.emit(code.LOAD_NONE, 0)
		}
		c.emit(code.YIELD_VALUE, 0)
	case nYieldFrom:
		c.checkYield(n)
		c.emitExpr(n.x)
		c.emit(code.GET_ITER, 0)
		c.emit(code.LOAD_NONE, 0)
		c.emit(code.YIELD_FROM, 0)
	}
}

func (c *compiler) checkYield(n *node) {
	s := c.s
	if (s.kind != code.KindFunction && s.kind != code.KindLambda) || s.classBody > 0 {
		c.fail(diag.SynOutsideFunction, n.sp, "'yield' outside function")
	}
	s.yields = true
}

func (c *compiler) emitFString(n *node) {
	count := 0
	for _, p := range n.parts {
		if p.expr == nil {
			c.loadStr(p.lit)
			count++
			continue
		}
		c.emitExpr(p.expr)
		flags := 0
		if p.conv == 'r' {
			flags |= code.FormatRepr
		}
		if p.hasSpec {
			c.loadStr(p.spec)
			flags |= code.FormatHasSpec
		}
		c.emit(code.FORMAT_VALUE, flags)
		count++
	}
	switch count {
	case 0:
		c.loadStr("")
	case 1:
	default:
		c.emit(code.BUILD_STRING, count)
	}
}

// emitIndex emits a subscript; slices become slice objects.
func (c *compiler) emitIndex(n *node) {
	switch {
	case n.kind == nSlice:
		for _, part := range []*node{n.x, n.y} {
			if part == nil {
				c.emit(code.LOAD_NONE, 0)
			} else {
				c.emitExpr(part)
			}
		}
		if n.z == nil {
			c.emit(code.BUILD_SLICE, 2)
			return
		}
		c.emitExpr(n.z)
		c.emit(code.BUILD_SLICE, 3)
	case n.kind == nTuple && !n.paren:
		for _, e := range n.elts {
			c.emitIndex(e)
		}
		c.emit(code.BUILD_TUPLE, len(n.elts))
	default:
		c.emitExpr(n)
	}
}

func (c *compiler) emitCompare(n *node) {
	c.emitExpr(n.elts[0])
	if len(n.ops) == 1 {
		c.emitExpr(n.elts[1])
		c.emitCompareOp(n.ops[0])
		return
	}
	d := c.s.depth
	var cleanups []int
	for i, op := range n.ops {
		c.emitExpr(n.elts[i+1])
		if i == len(n.ops)-1 {
			c.emitCompareOp(op)
			break
		}
		c.emit(code.DUP_TOP, 0)
		c.emit(code.ROT_THREE, 0)
		c.emitCompareOp(op)
		cleanups = append(cleanups, c.emitJump(code.JUMP_IF_FALSE_OR_POP))
	}
	end := c.emitJump(code.JUMP_ABSOLUTE)
	for _, j := range cleanups {
		c.patch(j)
	}
	c.setDepth(d + 1)
	c.emit(code.ROT_TWO, 0)
	c.emit(code.POP_TOP, 0)
	c.patch(end)
}

func (c *compiler) emitCompareOp(k token.Kind) {
	switch k {
	case token.Lt:
		c.emit(code.COMPARE_OP, int(code.CmpLt))
	case token.LtEq:
		c.emit(code.COMPARE_OP, int(code.CmpLe))
	case token.EqEq:
		c.emit(code.COMPARE_OP, int(code.CmpEq))
	case token.BangEq:
		c.emit(code.COMPARE_OP, int(code.CmpNe))
	case token.Gt:
		c.emit(code.COMPARE_OP, int(code.CmpGt))
	case token.GtEq:
		c.emit(code.COMPARE_OP, int(code.CmpGe))
	case token.KwIn:
		c.emit(code.CONTAINS_OP, 0)
	case token.NotIn:
		c.emit(code.CONTAINS_OP, 1)
	case token.KwIs:
		c.emit(code.IS_OP, 0)
	case token.IsNot:
		c.emit(code.IS_OP, 1)
	}
}

func hasStarred(elts []*node) bool {
	for _, e := range elts {
		if e.kind == nStarred {
			return true
		}
	}
	return false
}

// emitSequence builds a tuple or list; starred items go through a list.
func (c *compiler) emitSequence(elts []*node, build code.Opcode) {
	if !hasStarred(elts) {
		for _, e := range elts {
			c.emitExpr(e)
		}
		c.emit(build, len(elts))
		return
	}
	c.emit(code.BUILD_LIST, 0)
	for _, e := range elts {
		if e.kind == nStarred {
			c.emitExpr(e.x)
			c.emit(code.LIST_EXTEND, 1)
			continue
		}
		c.emitExpr(e)
		c.emit(code.LIST_APPEND, 1)
	}
	if build == code.BUILD_TUPLE {
		c.emit(code.LIST_TO_TUPLE, 0)
	}
}

func (c *compiler) emitDict(n *node) {
	spread := false
	for i := 0; i < len(n.elts); i += 2 {
		if n.elts[i] == nil {
			spread = true
		}
	}
	if !spread {
		for _, e := range n.elts {
			c.emitExpr(e)
		}
		c.emit(code.BUILD_DICT, len(n.elts)/2)
		return
	}
	c.emit(code.BUILD_DICT, 0)
	for i := 0; i < len(n.elts); i += 2 {
		if n.elts[i] == nil {
			c.emitExpr(n.elts[i+1])
			c.emit(code.DICT_UPDATE, 1)
			continue
		}
		c.emitExpr(n.elts[i])
		c.emitExpr(n.elts[i+1])
		c.emit(code.DICT_ADD, 1)
	}
}

// emitCall uses LOAD_METHOD for attribute callees so bound methods are
// never materialised.
func (c *compiler) emitCall(n *node) {
	callee := n.x
	if callee.kind == nAttr {
		c.emitExpr(callee.x)
		c.setLine(callee.line)
		c.emit(code.LOAD_METHOD, c.nameIndex(callee.name))
	} else {
		c.emitExpr(callee)
		c.emit(code.PUSH_NIL, 0)
	}
	ca := n.call
	spread := hasStarred(ca.args)
	for _, kw := range ca.kws {
		if kw.name == symbol.NoName {
			spread = true
		}
	}
	if !spread {
		if len(ca.args) > code.MaxCallArgs || len(ca.kws) > code.MaxCallArgs {
			c.fail(diag.SynUnexpectedToken, n.sp, "too many arguments in call")
		}
		for _, a := range ca.args {
			c.emitExpr(a)
		}
		for _, kw := range ca.kws {
			c.loadStr(kw.name.String())
			c.emitExpr(kw.value)
		}
		c.setLine(n.line)
		c.emit(code.CALL, int(code.CallArg(len(ca.args), len(ca.kws))))
		return
	}

	c.emitSequence(ca.args, code.BUILD_TUPLE)
	hasKw := 0
	if len(ca.kws) > 0 {
		hasKw = 1
		c.emit(code.BUILD_DICT, 0)
		for _, kw := range ca.kws {
			if kw.name == symbol.NoName {
				c.emitExpr(kw.value)
				c.emit(code.DICT_UPDATE, 1)
				continue
			}
			c.loadStr(kw.name.String())
			c.emitExpr(kw.value)
			c.emit(code.DICT_ADD, 1)
		}
	}
	c.setLine(n.line)
	c.emit(code.CALL_EX, hasKw)
}

// ---- nested units ----

// newFunction compiles a nested unit and leaves the function object on the
// stack. body emits the unit's code after parameters are bound.
func (c *compiler) newFunction(name string, kind code.Kind, p *params, doc string, body func()) *code.FuncDecl {
	u := code.NewUnit(name, kind, c.mode, c.file)
	c.pushScope(u, kind)
	decl := code.NewFuncDecl(name, u)
	if p != nil {
		seen := make(map[symbol.Name]bool)
		add := func(n symbol.Name) {
			if seen[n] {
				c.fail(diag.SynDuplicateArgument, p.sp, "duplicate argument '%s' in function definition", n)
			}
			seen[n] = true
			c.addLocal(n)
		}
		for _, n := range p.names {
			add(n)
		}
		for _, n := range p.kwonly {
			add(n)
		}
		if p.star != symbol.NoName {
			add(p.star)
		}
		if p.starkw != symbol.NoName {
			add(p.starkw)
		}
		decl.NArgs = len(p.names)
		decl.Defaults = p.defaults
		decl.KwOnly = p.kwonly
		decl.KwDefaults = p.kwdefaults
		decl.Star = p.star != symbol.NoName
		decl.StarKw = p.starkw != symbol.NoName
	}
	body()
	c.popScope()
	decl.Generator = u.IsGenerator
	decl.Doc = doc
	decl.Simple = len(decl.Defaults) == 0 && !decl.Star && !decl.StarKw && len(decl.KwOnly) == 0 && !decl.Generator

	pu := c.s.unit
	pu.Funcs = append(pu.Funcs, decl)
	c.emit(code.LOAD_FUNCTION, len(pu.Funcs)-1)
	return decl
}

func (c *compiler) emitLambda(n *node) {
	c.newFunction("<lambda>", code.KindLambda, n.fn.params, "", func() {
		c.emitExpr(n.fn.body)
		c.emit(code.RETURN_VALUE, 0)
	})
}

var compParam = symbol.Intern(".0")

// emitComprehension compiles the comprehension into its own unit and calls
// it with the iterator of the first clause.
func (c *compiler) emitComprehension(n *node) {
	cd := n.comp
	name := map[nodeKind]string{nList: "<listcomp>", nDict: "<dictcomp>", nComp: "<genexpr>"}[cd.kind]
	p := &params{names: []symbol.Name{compParam}, sp: n.sp}
	c.newFunction(name, code.KindComprehension, p, "", func() {
		switch cd.kind {
		case nList:
			c.emit(code.BUILD_LIST, 0)
		case nDict:
			c.emit(code.BUILD_DICT, 0)
		default:
			c.s.yields = true
		}
		c.emitCompClauses(cd, 0)
		if cd.kind == nComp {
			c.emit(code.LOAD_NONE, 0)
		}
		c.emit(code.RETURN_VALUE, 0)
	})
	c.emit(code.PUSH_NIL, 0)
	c.setLine(n.line)
	c.emitExpr(cd.clauses[0].iter)
	c.emit(code.GET_ITER, 0)
	c.emit(code.CALL, int(code.CallArg(1, 0)))
}

func (c *compiler) emitCompClauses(cd *compDef, i int) {
	cl := cd.clauses[i]
	if i == 0 {
		c.emit(code.LOAD_FAST, c.addLocal(compParam))
	} else {
		c.emitExpr(cl.iter)
		c.emit(code.GET_ITER, 0)
	}
	top := c.here()
	exit := c.emitJump(code.FOR_ITER)
	c.emitStore(cl.target)
	for _, cond := range cl.ifs {
		c.emitExpr(cond)
		j := c.emitJump(code.POP_JUMP_IF_FALSE)
		c.patchTo(j, top)
	}
	if i+1 < len(cd.clauses) {
		c.emitCompClauses(cd, i+1)
	} else {
		// контейнер лежит под итераторами всех циклов
		depth := len(cd.clauses) + 1
		switch cd.kind {
		case nList:
			c.emitExpr(cd.elt)
			c.emit(code.LIST_APPEND, depth)
		case nDict:
			c.emitExpr(cd.elt)
			c.emitExpr(cd.value)
			c.emit(code.DICT_ADD, depth)
		default:
			c.emitExpr(cd.elt)
			c.emit(code.YIELD_VALUE, 0)
			c.emit(code.POP_TOP, 0)
		}
	}
	j := c.emit(code.JUMP_ABSOLUTE, 0)
	c.patchTo(j, top)
	c.patch(exit)
	c.setDepth(c.s.depth - 1)
}
