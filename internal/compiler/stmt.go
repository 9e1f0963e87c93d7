package compiler

import (
	"strings"

	"krait/internal/code"
	"krait/internal/diag"
	"krait/internal/symbol"
	"krait/internal/token"
)

// compileModule compiles exec and cell input.
func (c *compiler) compileModule() {
	c.lastExprIP = -1
	for !c.at(token.EOF) {
		if c.accept(token.Newline) {
			continue
		}
		c.lastExprIP = -1
		c.statement()
	}
	if c.mode == code.ModeCell && c.lastExprIP >= 0 {
		c.s.unit.Code[c.lastExprIP].Op = code.PRINT_EXPR
	}
	c.emit(code.LOAD_NONE, 0)
	c.emit(code.RETURN_VALUE, 0)
}

func isCompound(k token.Kind) bool {
	switch k {
	case token.KwIf, token.KwWhile, token.KwFor, token.KwTry, token.KwWith,
		token.KwDef, token.KwClass, token.At:
		return true
	}
	return false
}

// compileREPL compiles one interactive entry. A compound statement is
// complete only once a blank line follows it.
func (c *compiler) compileREPL() {
	for c.accept(token.Newline) {
	}
	if isCompound(c.peek().Kind) && !c.sourceEndsWithBlankLine() {
		panic(bailout{&Error{Diag: diag.NewError(diag.SynUnexpectedToken, c.peek().Span, "incomplete input"), File: c.file, NeedMore: true}})
	}
	for !c.at(token.EOF) {
		if c.accept(token.Newline) {
			continue
		}
		c.statement()
	}
	c.emit(code.LOAD_NONE, 0)
	c.emit(code.RETURN_VALUE, 0)
}

func (c *compiler) skipLayout() {
	for c.accept(token.Newline) || c.accept(token.Indent) || c.accept(token.Dedent) {
	}
}

func (c *compiler) compileEval() {
	c.skipLayout()
	if c.at(token.EOF) {
		c.fail(diag.SynBadEvalInput, c.peek().Span, "eval() arg is an empty expression")
	}
	c.setLine(c.peek().Line)
	x := c.parseTestList(false)
	c.skipLayout()
	if !c.at(token.EOF) {
		c.unexpected("end of input")
	}
	c.emitExpr(x)
	c.emit(code.RETURN_VALUE, 0)
}

func (c *compiler) statement() {
	tok := c.peek()
	c.setLine(tok.Line)
	switch tok.Kind {
	case token.KwIf:
		c.ifStmt()
	case token.KwWhile:
		c.whileStmt()
	case token.KwFor:
		c.forStmt()
	case token.KwTry:
		c.tryStmt()
	case token.KwWith:
		c.advance()
		c.withItems()
	case token.KwDef:
		c.defStmt(nil)
	case token.KwClass:
		c.classStmt(nil)
	case token.At:
		c.decorated()
	case token.Indent, token.Dedent:
		c.unexpected("a statement")
	default:
		c.simpleStatements()
	}
}

func (c *compiler) simpleStatements() {
	for {
		c.setLine(c.peek().Line)
		c.smallStatement()
		if !c.accept(token.Semicolon) || c.at(token.Newline) || c.at(token.EOF) {
			break
		}
	}
	if !c.accept(token.Newline) && !c.at(token.EOF) {
		c.unexpected("newline")
	}
}

func (c *compiler) smallStatement() {
	switch c.peek().Kind {
	case token.KwPass:
		c.advance()
	case token.KwBreak, token.KwContinue:
		c.loopJump()
	case token.KwReturn:
		c.returnStmt()
	case token.KwRaise:
		c.raiseStmt()
	case token.KwGlobal, token.KwNonlocal:
		c.scopeDecl()
	case token.KwDel:
		c.advance()
		x := c.parseTestList(false)
		c.checkTarget(x, true)
		c.emitDelete(x)
	case token.KwAssert:
		c.assertStmt()
	case token.KwImport:
		c.importStmt()
	case token.KwFrom:
		c.fromImportStmt()
	case token.KwGoto, token.KwLabel:
		c.gotoOrLabel()
	default:
		c.exprStatement()
	}
}

// suite compiles the body after a ':'.
func (c *compiler) suite() {
	c.nest++
	if c.accept(token.Newline) {
		if !c.at(token.Indent) {
			c.failAt(diag.IndExpected, c.pos, "expected an indented block")
		}
		c.advance()
		for !c.at(token.Dedent) && !c.at(token.EOF) {
			if c.accept(token.Newline) {
				continue
			}
			c.statement()
		}
		c.accept(token.Dedent)
	} else {
		c.simpleStatements()
	}
	c.nest--
}

func (c *compiler) exprStatement() {
	x := c.parseExprOrYield(true)
	switch {
	case c.at(token.Assign):
		targets := []*node{x}
		var value *node
		for c.accept(token.Assign) {
			value = c.parseExprOrYield(true)
			if c.at(token.Assign) {
				targets = append(targets, value)
			}
		}
		for _, t := range targets {
			c.checkTarget(t, false)
		}
		c.emitExpr(value)
		for i, t := range targets {
			if i < len(targets)-1 {
				c.emit(code.DUP_TOP, 0)
			}
			c.emitStore(t)
		}
	case c.peek().Kind.IsAugAssign():
		op := c.advance()
		if x.kind != nName && x.kind != nAttr && x.kind != nSubscr {
			c.fail(diag.SynInvalidTarget, x.sp, "'%s' is an illegal expression for augmented assignment", describe(x))
		}
		value := c.parseExprOrYield(false)
		bop := code.OpPow
		if base := op.Kind.AugBase(); base != token.StarStar {
			_, bop = binaryPrec(base)
		}
		c.emitAugAssign(x, bop, value)
	default:
		if x.kind == nStarred {
			c.fail(diag.SynBadStarred, x.sp, "can't use starred expression here")
		}
		c.emitExpr(x)
		switch {
		case c.topLevel() && c.mode == code.ModeREPL:
			c.emit(code.PRINT_EXPR, 0)
		case c.topLevel() && c.mode == code.ModeCell:
			c.lastExprIP = c.emit(code.POP_TOP, 0)
		default:
			c.emit(code.POP_TOP, 0)
		}
	}
}

func (c *compiler) parseExprOrYield(star bool) *node {
	if c.at(token.KwYield) {
		return c.parseYield()
	}
	return c.parseTestList(star)
}

func (c *compiler) ifStmt() {
	var ends []int
	for {
		kw := c.advance()
		c.setLine(kw.Line)
		cond := c.parseTest()
		c.expect(token.Colon, "':'")
		c.emitExpr(cond)
		next := c.emitJump(code.POP_JUMP_IF_FALSE)
		c.suite()
		if c.at(token.KwElif) || c.at(token.KwElse) {
			ends = append(ends, c.emitJump(code.JUMP_ABSOLUTE))
		}
		c.patch(next)
		if !c.at(token.KwElif) {
			break
		}
	}
	if c.accept(token.KwElse) {
		c.expect(token.Colon, "':'")
		c.suite()
	}
	for _, j := range ends {
		c.patch(j)
	}
}

func alwaysTrue(n *node) bool {
	if n.kind != nConst {
		return false
	}
	switch n.val.Kind {
	case code.ConstTrue:
		return true
	case code.ConstInt:
		return n.val.Int != 0
	}
	return false
}

func (c *compiler) whileStmt() {
	c.advance()
	cond := c.parseTest()
	c.expect(token.Colon, "':'")
	top := c.here()
	b := c.pushBlock(code.BlockWhile, 0)
	c.block(b).Continue = uint32(top) // #nosec G115 -- bounded by uint16 jumps
	exit := -1
	if !alwaysTrue(cond) {
		c.emitExpr(cond)
		exit = c.emitJump(code.POP_JUMP_IF_FALSE)
	}
	c.suite()
	c.patchTo(c.emit(code.JUMP_ABSOLUTE, 0), top)
	c.popBlock()
	if exit >= 0 {
		c.patch(exit)
	}
	if c.accept(token.KwElse) {
		c.expect(token.Colon, "':'")
		c.suite()
	}
	c.block(b).Handler = uint32(c.here()) // #nosec G115 -- bounded by uint16 jumps
}

func (c *compiler) forStmt() {
	c.advance()
	target := c.parseTargetList()
	c.expect(token.KwIn, "'in'")
	iter := c.parseTestList(false)
	c.expect(token.Colon, "':'")
	c.emitExpr(iter)
	c.emit(code.GET_ITER, 0)
	b := c.pushBlock(code.BlockFor, 1)
	top := c.here()
	c.block(b).Continue = uint32(top) // #nosec G115 -- bounded by uint16 jumps
	exit := c.emitJump(code.FOR_ITER)
	c.emitStore(target)
	c.suite()
	c.patchTo(c.emit(code.JUMP_ABSOLUTE, 0), top)
	c.popBlock()
	c.patch(exit)
	c.setDepth(c.s.depth - 1)
	if c.accept(token.KwElse) {
		c.expect(token.Colon, "':'")
		c.suite()
	}
	c.block(b).Handler = uint32(c.here()) // #nosec G115 -- bounded by uint16 jumps
}

func (c *compiler) loopJump() {
	tok := c.advance()
	s := c.s
	for i := len(s.blocks) - 1; i >= 0; i-- {
		idx := s.blocks[i]
		if !s.unit.Blocks[idx].Type.IsLoop() {
			continue
		}
		if tok.Kind == token.KwBreak {
			c.emit(code.LOOP_BREAK, int(idx))
		} else {
			c.emit(code.LOOP_CONTINUE, int(idx))
		}
		return
	}
	c.fail(diag.SynOutsideLoop, tok.Span, "'%s' outside loop", tok.Kind)
}

func (c *compiler) returnStmt() {
	tok := c.advance()
	s := c.s
	if s.kind != code.KindFunction || s.classBody > 0 {
		c.fail(diag.SynOutsideFunction, tok.Span, "'return' outside function")
	}
	if c.startsExpr() {
		c.emitExpr(c.parseTestList(true))
	} else {
		c.emit(code.LOAD_NONE, 0)
	}
	c.emit(code.RETURN_VALUE, 0)
}

func (c *compiler) raiseStmt() {
	c.advance()
	if !c.startsExpr() {
		s := c.s
		for i := len(s.blocks) - 1; i >= 0; i-- {
			if b := s.unit.Blocks[s.blocks[i]]; b.Type == code.BlockExcept {
				c.emit(code.RE_RAISE, int(b.Depth)-1)
				return
			}
		}
		c.emit(code.RAISE, code.RaiseBare)
		return
	}
	c.emitExpr(c.parseTest())
	if c.accept(token.KwFrom) {
		c.emitExpr(c.parseTest())
		c.emit(code.RAISE, code.RaiseCause)
		return
	}
	c.emit(code.RAISE, code.RaiseExc)
}

func (c *compiler) scopeDecl() {
	kw := c.advance()
	s := c.s
	for {
		name, tok := c.ident("name")
		switch {
		case s.kind == code.KindModule && kw.Kind == token.KwNonlocal:
			c.fail(diag.SynBadScope, kw.Span, "nonlocal declaration not allowed at module level")
		case s.kind == code.KindModule:
		default:
			if _, ok := s.unit.VarIndex[name]; ok {
				c.fail(diag.SynBadScope, tok.Span, "name '%s' is used prior to %s declaration", tok.Text, kw.Kind)
			}
			if kw.Kind == token.KwGlobal {
				s.globals[name] = true
			} else {
				if s.parent == nil || !s.parent.inFunction() {
					c.fail(diag.SynBadScope, tok.Span, "no binding for nonlocal '%s' found", tok.Text)
				}
				s.nonlocals[name] = true
			}
		}
		if !c.accept(token.Comma) {
			return
		}
	}
}

func (c *compiler) assertStmt() {
	c.advance()
	cond := c.parseTest()
	var msg *node
	if c.accept(token.Comma) {
		msg = c.parseTest()
	}
	d := c.s.depth
	c.emitExpr(cond)
	ok := c.emitJump(code.POP_JUMP_IF_TRUE)
	if msg != nil {
		c.emitExpr(msg)
		c.emit(code.ASSERT, 1)
	} else {
		c.emit(code.ASSERT, 0)
	}
	c.patch(ok)
	c.setDepth(d)
}

// dottedName parses "a.b.c".
func (c *compiler) dottedName() (string, []string) {
	_, tok := c.ident("module name")
	parts := []string{tok.Text}
	for c.accept(token.Dot) {
		_, tok = c.ident("module name")
		parts = append(parts, tok.Text)
	}
	return strings.Join(parts, "."), parts
}

func (c *compiler) importStmt() {
	c.advance()
	for {
		path, parts := c.dottedName()
		c.emit(code.IMPORT_NAME, c.nameIndex(symbol.Intern(path)))
		switch {
		case c.accept(token.KwAs):
			alias, _ := c.ident("name")
			c.emitName(alias, opStore)
		case len(parts) > 1:
			// "import a.b" binds the top-level package
			c.emit(code.POP_TOP, 0)
			top := symbol.Intern(parts[0])
			c.emit(code.IMPORT_NAME, c.nameIndex(top))
			c.emitName(top, opStore)
		default:
			c.emitName(symbol.Intern(path), opStore)
		}
		if !c.accept(token.Comma) {
			return
		}
	}
}

func (c *compiler) fromImportStmt() {
	kw := c.advance()
	if c.at(token.Dot) || c.at(token.Ellipsis) {
		c.fail(diag.SynUnexpectedToken, c.peek().Span, "relative imports are not supported")
	}
	path, _ := c.dottedName()
	c.expect(token.KwImport, "'import'")
	mod := c.nameIndex(symbol.Intern(path))
	if star := c.peek(); c.accept(token.Star) {
		if c.s.kind != code.KindModule || c.s.classBody > 0 {
			c.fail(diag.SynBadScope, star.Span, "import * only allowed at module level")
		}
		c.emit(code.IMPORT_NAME, mod)
		c.emit(code.IMPORT_STAR, 0)
		return
	}
	paren := c.accept(token.LParen)
	c.setLine(kw.Line)
	c.emit(code.IMPORT_NAME, mod)
	for {
		name, _ := c.ident("name")
		alias := name
		if c.accept(token.KwAs) {
			alias, _ = c.ident("name")
		}
		c.emit(code.IMPORT_FROM, c.nameIndex(name))
		c.emitName(alias, opStore)
		if !c.accept(token.Comma) || (paren && c.at(token.RParen)) {
			break
		}
	}
	if paren {
		c.expect(token.RParen, "')'")
	}
	c.emit(code.POP_TOP, 0)
}

func (c *compiler) gotoOrLabel() {
	kw := c.advance()
	c.expect(token.Dot, "'.'")
	name, tok := c.ident("label name")
	s := c.s
	if kw.Kind == token.KwLabel {
		if _, dup := s.labels[name]; dup {
			c.fail(diag.SynDuplicateLabel, tok.Span, "label '.%s' defined twice", tok.Text)
		}
		s.labels[name] = labelSite{ip: c.here(), block: c.curBlock()}
		return
	}
	ip := c.emit(code.JUMP_ABSOLUTE, 0)
	s.gotos = append(s.gotos, gotoSite{ip: ip, sp: tok.Span, name: name, block: c.curBlock()})
}

// ---- try / with ----

// skipSuite returns the index of the first token after the suite starting at i.
func (c *compiler) skipSuite(i int) int {
	if i < len(c.toks) && c.toks[i].Kind != token.Newline {
		for i < len(c.toks) && c.toks[i].Kind != token.Newline && c.toks[i].Kind != token.EOF {
			i++
		}
		return i + 1
	}
	i++
	depth := 0
	for ; i < len(c.toks); i++ {
		switch c.toks[i].Kind {
		case token.Indent:
			depth++
		case token.Dedent:
			depth--
			if depth <= 0 {
				return i + 1
			}
		case token.EOF:
			return i
		}
	}
	return i
}

// scanTry looks past the try body for its except and finally clauses.
func (c *compiler) scanTry() (hasExcept, hasFinally bool) {
	i := c.skipSuite(c.pos)
	for i < len(c.toks) {
		switch c.toks[i].Kind {
		case token.KwExcept, token.KwElse:
			hasExcept = hasExcept || c.toks[i].Kind == token.KwExcept
			depth := 0
			for ; i < len(c.toks) && c.toks[i].Kind != token.EOF; i++ {
				k := c.toks[i].Kind
				if k == token.LParen || k == token.LBracket || k == token.LBrace {
					depth++
				} else if k == token.RParen || k == token.RBracket || k == token.RBrace {
					depth--
				} else if k == token.Colon && depth == 0 {
					break
				}
			}
			i = c.skipSuite(i + 1)
		case token.KwFinally:
			return hasExcept, true
		default:
			return hasExcept, false
		}
	}
	return hasExcept, false
}

func (c *compiler) tryStmt() {
	kw := c.advance()
	c.expect(token.Colon, "':'")
	hasExcept, hasFinally := c.scanTry()
	d := c.s.depth

	var fin int32 = -1
	if hasFinally {
		fin = c.pushBlock(code.BlockFinally, 0)
	}
	if hasExcept {
		t := c.pushBlock(code.BlockTry, 0)
		c.suite()
		c.popBlock()
		jElse := c.emitJump(code.JUMP_ABSOLUTE)

		// обработчик: на стеке лежит пойманное исключение
		c.block(t).Handler = uint32(c.here()) // #nosec G115 -- bounded by uint16 jumps
		c.setDepth(d + 1)
		c.pushBlock(code.BlockExcept, 1)
		var ends []int
		bare := false
		for c.at(token.KwExcept) {
			etok := c.advance()
			c.setLine(etok.Line)
			if bare {
				c.fail(diag.SynUnexpectedToken, etok.Span, "default 'except:' must be last")
			}
			if c.accept(token.Colon) {
				bare = true
				c.suite()
				c.emit(code.POP_TOP, 0)
				ends = append(ends, c.emitJump(code.JUMP_ABSOLUTE))
				c.setDepth(d + 1)
				continue
			}
			typ := c.parseTest()
			var as *node
			if c.accept(token.KwAs) {
				name, tok := c.ident("name")
				as = c.newNode(nName, tok)
				as.name = name
			}
			c.expect(token.Colon, "':'")
			c.emitExpr(typ)
			c.emit(code.EXCEPTION_MATCH, 0)
			next := c.emitJump(code.POP_JUMP_IF_FALSE)
			if as != nil {
				c.emit(code.DUP_TOP, 0)
				c.emitStore(as)
			}
			c.suite()
			c.emit(code.POP_TOP, 0)
			ends = append(ends, c.emitJump(code.JUMP_ABSOLUTE))
			c.patch(next)
			c.setDepth(d + 1)
		}
		if !bare {
			c.emit(code.END_FINALLY, 0)
		}
		c.popBlock()
		c.setDepth(d)
		c.patch(jElse)
		if c.accept(token.KwElse) {
			c.expect(token.Colon, "':'")
			c.suite()
		}
		for _, j := range ends {
			c.patch(j)
		}
	} else {
		c.suite()
	}
	if !hasFinally {
		if !hasExcept {
			c.fail(diag.SynUnexpectedToken, kw.Span, "expected 'except' or 'finally' block")
		}
		return
	}
	ftok := c.expect(token.KwFinally, "'finally'")
	c.setLine(ftok.Line)
	c.expect(token.Colon, "':'")
	c.popBlock()
	c.emit(code.LOAD_NONE, 0)
	c.block(fin).Handler = uint32(c.here()) // #nosec G115 -- bounded by uint16 jumps
	c.suite()
	c.emit(code.END_FINALLY, 0)
}

// withItems compiles "a as x, b as y: body" as nested with blocks.
func (c *compiler) withItems() {
	mgr := c.parseTest()
	var target *node
	if c.accept(token.KwAs) {
		target = c.parseBinary(1)
		c.checkTarget(target, false)
	}
	c.emitExpr(mgr)
	c.emit(code.WITH_ENTER, 0)
	if target != nil {
		c.emitStore(target)
	} else {
		c.emit(code.POP_TOP, 0)
	}
	b := c.pushBlock(code.BlockWith, 1)
	if c.accept(token.Comma) {
		c.withItems()
	} else {
		c.expect(token.Colon, "':'")
		c.suite()
	}
	c.popBlock()
	c.emit(code.WITH_EXIT, 0)
	c.block(b).Handler = uint32(c.here()) // #nosec G115 -- bounded by uint16 jumps
}
