package compiler

import (
	"krait/internal/code"
	"krait/internal/diag"
	"krait/internal/lexer"
	"krait/internal/source"
	"krait/internal/symbol"
	"krait/internal/token"
)

type nodeKind uint8

const (
	nName nodeKind = iota
	nConst
	nFString
	nAttr
	nSubscr
	nSlice
	nCall
	nBinary
	nUnary
	nNot
	nCompare
	nAnd
	nOr
	nIfExp
	nLambda
	nTuple
	nList
	nDict
	nStarred
	nComp
	nYield
	nYieldFrom
)

// node is an expression kept only long enough to decide how to emit it:
// as a load, a store target, a delete target, or a folded constant.
type node struct {
	kind  nodeKind
	sp    source.Span
	line  uint32
	name  symbol.Name
	val   code.Const
	op    int
	x     *node
	y     *node
	z     *node
	elts  []*node      // tuple/list items; dict keys and values interleaved (nil key marks **); compare operands
	ops   []token.Kind // compare operators
	call  *callArgs
	parts []fpart
	fn    *lambdaDef
	comp  *compDef
	paren bool
}

type callArgs struct {
	args []*node // positional, *-unpacked ones are nStarred
	kws  []kwArg
}

type kwArg struct {
	name  symbol.Name // symbol.NoName for **
	value *node
}

type fpart struct {
	lit     string
	expr    *node
	conv    byte
	spec    string
	hasSpec bool
}

type lambdaDef struct {
	params *params
	body   *node
}

type compDef struct {
	kind    nodeKind // nList, nDict or nComp (generator)
	elt     *node
	value   *node // dict comprehensions
	clauses []compClause
}

type compClause struct {
	target *node
	iter   *node
	ifs    []*node
}

func (c *compiler) newNode(kind nodeKind, tok token.Token) *node {
	return &node{kind: kind, sp: tok.Span, line: tok.Line}
}

// parseTestList parses "test (',' test)* [',']"; a comma makes a tuple.
// Starred items are accepted when star is set.
func (c *compiler) parseTestList(star bool) *node {
	first := c.peek()
	x := c.parseItem(star)
	if !c.at(token.Comma) {
		return x
	}
	t := c.newNode(nTuple, first)
	t.elts = append(t.elts, x)
	for c.accept(token.Comma) {
		if !c.startsExpr() {
			break
		}
		t.elts = append(t.elts, c.parseItem(star))
	}
	return t
}

func (c *compiler) parseItem(star bool) *node {
	if star && c.at(token.Star) {
		tok := c.advance()
		n := c.newNode(nStarred, tok)
		n.x = c.parseBinary(1)
		return n
	}
	return c.parseTest()
}

// startsExpr reports whether the next token can begin an expression.
func (c *compiler) startsExpr() bool {
	switch c.peek().Kind {
	case token.Ident, token.IntLit, token.FloatLit, token.StringLit, token.FStringLit,
		token.KwNone, token.KwTrue, token.KwFalse, token.Ellipsis, token.KwLambda, token.KwNot,
		token.LParen, token.LBracket, token.LBrace, token.Minus, token.Plus, token.Tilde, token.Star:
		return true
	}
	return false
}

func (c *compiler) parseTest() *node {
	if c.at(token.KwLambda) {
		return c.parseLambda()
	}
	x := c.parseOr()
	if c.at(token.KwIf) {
		tok := c.advance()
		n := c.newNode(nIfExp, tok)
		n.sp = x.sp
		n.x = x
		n.z = c.parseOr()
		c.expect(token.KwElse, "'else'")
		n.y = c.parseTest()
		return n
	}
	return x
}

func (c *compiler) parseOr() *node {
	x := c.parseAnd()
	for c.at(token.KwOr) {
		tok := c.advance()
		n := c.newNode(nOr, tok)
		n.x, n.y = x, c.parseAnd()
		x = n
	}
	return x
}

func (c *compiler) parseAnd() *node {
	x := c.parseNot()
	for c.at(token.KwAnd) {
		tok := c.advance()
		n := c.newNode(nAnd, tok)
		n.x, n.y = x, c.parseNot()
		x = n
	}
	return x
}

func (c *compiler) parseNot() *node {
	if c.at(token.KwNot) {
		tok := c.advance()
		n := c.newNode(nNot, tok)
		n.x = c.parseNot()
		return n
	}
	return c.parseComparison()
}

func isCompareOp(k token.Kind) bool {
	switch k {
	case token.Lt, token.LtEq, token.Gt, token.GtEq, token.EqEq, token.BangEq,
		token.KwIn, token.NotIn, token.KwIs, token.IsNot:
		return true
	}
	return false
}

func (c *compiler) parseComparison() *node {
	x := c.parseBinary(1)
	if !isCompareOp(c.peek().Kind) {
		return x
	}
	n := &node{kind: nCompare, sp: x.sp, line: x.line, elts: []*node{x}}
	for isCompareOp(c.peek().Kind) {
		n.ops = append(n.ops, c.advance().Kind)
		n.elts = append(n.elts, c.parseBinary(1))
	}
	return n
}

func binaryPrec(k token.Kind) (int, code.BinaryOp) {
	switch k {
	case token.Pipe:
		return 1, code.OpOr
	case token.Caret:
		return 2, code.OpXor
	case token.Amp:
		return 3, code.OpAnd
	case token.Shl:
		return 4, code.OpLShift
	case token.Shr:
		return 4, code.OpRShift
	case token.Plus:
		return 5, code.OpAdd
	case token.Minus:
		return 5, code.OpSub
	case token.Star:
		return 6, code.OpMul
	case token.Slash:
		return 6, code.OpTrueDiv
	case token.SlashSlash:
		return 6, code.OpFloorDiv
	case token.Percent:
		return 6, code.OpMod
	case token.At:
		return 6, code.OpMatMul
	}
	return 0, 0
}

// parseBinary is the Pratt loop over the left-associative binary operators.
func (c *compiler) parseBinary(minPrec int) *node {
	left := c.parseUnary()
	for {
		prec, op := binaryPrec(c.peek().Kind)
		if prec == 0 || prec < minPrec {
			return left
		}
		tok := c.advance()
		n := c.newNode(nBinary, tok)
		n.sp = left.sp
		n.line = left.line
		n.op = int(op)
		n.x = left
		n.y = c.parseBinary(prec + 1)
		left = n
	}
}

func (c *compiler) parseUnary() *node {
	tok := c.peek()
	switch tok.Kind {
	case token.Minus, token.Plus, token.Tilde:
		c.advance()
		x := c.parseUnary()
		if tok.Kind == token.Minus && x.kind == nConst && !x.paren {
			switch x.val.Kind {
			case code.ConstInt:
				x.val.Int = -x.val.Int
				x.sp = tok.Span.Cover(x.sp)
				return x
			case code.ConstFloat:
				x.val.Float = -x.val.Float
				x.sp = tok.Span.Cover(x.sp)
				return x
			}
		}
		n := c.newNode(nUnary, tok)
		n.op = int(tok.Kind)
		n.x = x
		return n
	}
	return c.parsePower()
}

func (c *compiler) parsePower() *node {
	x := c.parsePostfix(c.parseAtom())
	if c.at(token.StarStar) {
		tok := c.advance()
		n := c.newNode(nBinary, tok)
		n.sp, n.line = x.sp, x.line
		n.op = int(code.OpPow)
		n.x = x
		n.y = c.parseUnary()
		return n
	}
	return x
}

func (c *compiler) parsePostfix(x *node) *node {
	for {
		switch c.peek().Kind {
		case token.LParen:
			tok := c.advance()
			n := c.newNode(nCall, tok)
			n.sp, n.line = x.sp, x.line
			n.x = x
			n.call = c.parseCallArgs()
			x = n
		case token.LBracket:
			tok := c.advance()
			n := c.newNode(nSubscr, tok)
			n.sp, n.line = x.sp, x.line
			n.x = x
			n.y = c.parseSubscript()
			c.expect(token.RBracket, "']'")
			x = n
		case token.Dot:
			c.advance()
			name, tok := c.ident("attribute name")
			n := c.newNode(nAttr, tok)
			n.line = x.line
			n.name = name
			n.x = x
			x = n
		default:
			return x
		}
	}
}

func (c *compiler) parseCallArgs() *callArgs {
	ca := &callArgs{}
	for !c.at(token.RParen) {
		tok := c.peek()
		switch {
		case tok.Kind == token.StarStar:
			c.advance()
			ca.kws = append(ca.kws, kwArg{value: c.parseTest()})
		case tok.Kind == token.Star:
			c.advance()
			n := c.newNode(nStarred, tok)
			n.x = c.parseTest()
			if len(ca.kws) > 0 {
				c.fail(diag.SynBadStarred, tok.Span, "iterable argument unpacking follows keyword argument unpacking")
			}
			ca.args = append(ca.args, n)
		case tok.Kind == token.Ident && c.peekAt(1).Kind == token.Assign:
			c.advance()
			c.advance()
			name := symbol.Intern(tok.Text)
			for _, kw := range ca.kws {
				if kw.name == name {
					c.fail(diag.SynDuplicateArgument, tok.Span, "keyword argument repeated: %s", tok.Text)
				}
			}
			ca.kws = append(ca.kws, kwArg{name: name, value: c.parseTest()})
		default:
			x := c.parseTest()
			if c.at(token.KwFor) {
				x = c.parseComprehension(nComp, x, nil, tok)
				if len(ca.args) > 0 || !c.at(token.RParen) {
					c.fail(diag.SynUnexpectedToken, x.sp, "generator expression must be parenthesized")
				}
			}
			if len(ca.kws) > 0 {
				c.fail(diag.SynUnexpectedToken, x.sp, "positional argument follows keyword argument")
			}
			ca.args = append(ca.args, x)
		}
		if !c.accept(token.Comma) {
			break
		}
	}
	c.expect(token.RParen, "')'")
	return ca
}

func (c *compiler) parseSubscript() *node {
	first := c.peek()
	x := c.parseSliceItem()
	if !c.at(token.Comma) {
		return x
	}
	t := c.newNode(nTuple, first)
	t.elts = append(t.elts, x)
	for c.accept(token.Comma) {
		if c.at(token.RBracket) {
			break
		}
		t.elts = append(t.elts, c.parseSliceItem())
	}
	return t
}

func (c *compiler) parseSliceItem() *node {
	tok := c.peek()
	var lower *node
	if !c.at(token.Colon) {
		lower = c.parseTest()
		if !c.at(token.Colon) {
			return lower
		}
	}
	c.expect(token.Colon, "':'")
	n := c.newNode(nSlice, tok)
	n.x = lower
	if !c.at(token.Colon) && !c.at(token.RBracket) && !c.at(token.Comma) {
		n.y = c.parseTest()
	}
	if c.accept(token.Colon) && !c.at(token.RBracket) && !c.at(token.Comma) {
		n.z = c.parseTest()
	}
	return n
}

func (c *compiler) parseAtom() *node {
	tok := c.peek()
	switch tok.Kind {
	case token.Ident:
		c.advance()
		n := c.newNode(nName, tok)
		n.name = symbol.Intern(tok.Text)
		return n
	case token.IntLit:
		c.advance()
		n := c.newNode(nConst, tok)
		n.val = code.Const{Kind: code.ConstInt, Int: tok.Int}
		return n
	case token.FloatLit:
		c.advance()
		n := c.newNode(nConst, tok)
		n.val = code.Const{Kind: code.ConstFloat, Float: tok.Float}
		return n
	case token.StringLit, token.FStringLit:
		return c.parseStrings()
	case token.KwNone, token.KwTrue, token.KwFalse, token.Ellipsis:
		c.advance()
		n := c.newNode(nConst, tok)
		n.val.Kind = map[token.Kind]code.ConstKind{
			token.KwNone: code.ConstNone, token.KwTrue: code.ConstTrue,
			token.KwFalse: code.ConstFalse, token.Ellipsis: code.ConstEllipsis,
		}[tok.Kind]
		return n
	case token.LParen:
		return c.parseParen()
	case token.LBracket:
		return c.parseListDisplay()
	case token.LBrace:
		return c.parseDictDisplay()
	case token.KwYield:
		c.failAt(diag.SynUnexpectedToken, c.pos, "'yield' expression must be parenthesized here")
	case token.Star:
		c.failAt(diag.SynBadStarred, c.pos, "can't use starred expression here")
	}
	if tok.Kind == token.EOF || tok.Kind == token.Newline || tok.Kind == token.Indent || tok.Kind == token.Dedent {
		c.unexpected("an expression")
	}
	c.failAt(diag.SynExpectExpression, c.pos, "invalid syntax: expected an expression, got '%s'", tokText(tok))
	return nil
}

func (c *compiler) parseParen() *node {
	open := c.advance()
	if c.accept(token.RParen) {
		t := c.newNode(nTuple, open)
		t.paren = true
		return t
	}
	if c.at(token.KwYield) {
		y := c.parseYield()
		c.expect(token.RParen, "')'")
		return y
	}
	x := c.parseItem(true)
	if c.at(token.KwFor) {
		g := c.parseComprehension(nComp, x, nil, open)
		c.expect(token.RParen, "')'")
		return g
	}
	if c.at(token.Comma) {
		t := c.newNode(nTuple, open)
		t.elts = append(t.elts, x)
		for c.accept(token.Comma) {
			if c.at(token.RParen) {
				break
			}
			t.elts = append(t.elts, c.parseItem(true))
		}
		x = t
	} else if x.kind == nStarred {
		c.fail(diag.SynBadStarred, x.sp, "can't use starred expression here")
	}
	c.expect(token.RParen, "')'")
	x.paren = true
	return x
}

func (c *compiler) parseListDisplay() *node {
	open := c.advance()
	n := c.newNode(nList, open)
	if c.accept(token.RBracket) {
		return n
	}
	x := c.parseItem(true)
	if c.at(token.KwFor) {
		if x.kind == nStarred {
			c.fail(diag.SynBadStarred, x.sp, "iterable unpacking cannot be used in comprehension")
		}
		g := c.parseComprehension(nList, x, nil, open)
		c.expect(token.RBracket, "']'")
		return g
	}
	n.elts = append(n.elts, x)
	for c.accept(token.Comma) {
		if c.at(token.RBracket) {
			break
		}
		n.elts = append(n.elts, c.parseItem(true))
	}
	c.expect(token.RBracket, "']'")
	return n
}

func (c *compiler) parseDictDisplay() *node {
	open := c.advance()
	n := c.newNode(nDict, open)
	if c.accept(token.RBrace) {
		return n
	}
	for {
		if c.accept(token.StarStar) {
			n.elts = append(n.elts, nil, c.parseBinary(1))
		} else {
			k := c.parseTest()
			if !c.at(token.Colon) {
				c.fail(diag.SynUnexpectedToken, k.sp, "set literals are not supported")
			}
			c.advance()
			v := c.parseTest()
			if len(n.elts) == 0 && c.at(token.KwFor) {
				g := c.parseComprehension(nDict, k, v, open)
				c.expect(token.RBrace, "'}'")
				return g
			}
			n.elts = append(n.elts, k, v)
		}
		if !c.accept(token.Comma) || c.at(token.RBrace) {
			break
		}
	}
	c.expect(token.RBrace, "'}'")
	return n
}

// parseComprehension parses the for/if clauses following elt.
func (c *compiler) parseComprehension(kind nodeKind, elt, value *node, open token.Token) *node {
	n := c.newNode(nComp, open)
	n.comp = &compDef{kind: kind, elt: elt, value: value}
	for c.at(token.KwFor) {
		c.advance()
		var cl compClause
		cl.target = c.parseTargetList()
		c.expect(token.KwIn, "'in'")
		cl.iter = c.parseOr()
		for c.at(token.KwIf) {
			c.advance()
			cl.ifs = append(cl.ifs, c.parseOr())
		}
		n.comp.clauses = append(n.comp.clauses, cl)
	}
	return n
}

// parseTargetList parses the target of a for loop, stopping before 'in'.
func (c *compiler) parseTargetList() *node {
	first := c.peek()
	item := func() *node {
		if c.at(token.Star) {
			tok := c.advance()
			n := c.newNode(nStarred, tok)
			n.x = c.parseBinary(1)
			return n
		}
		return c.parseBinary(1)
	}
	x := item()
	if !c.at(token.Comma) {
		c.checkTarget(x, false)
		return x
	}
	t := c.newNode(nTuple, first)
	t.elts = append(t.elts, x)
	for c.accept(token.Comma) {
		if c.at(token.KwIn) {
			break
		}
		t.elts = append(t.elts, item())
	}
	c.checkTarget(t, false)
	return t
}

func (c *compiler) parseYield() *node {
	tok := c.advance()
	if c.accept(token.KwFrom) {
		n := c.newNode(nYieldFrom, tok)
		n.x = c.parseTest()
		return n
	}
	n := c.newNode(nYield, tok)
	if c.startsExpr() {
		n.x = c.parseTestList(true)
	}
	return n
}

func (c *compiler) parseLambda() *node {
	tok := c.advance()
	n := c.newNode(nLambda, tok)
	p := c.parseParams(token.Colon)
	c.expect(token.Colon, "':'")
	n.fn = &lambdaDef{params: p, body: c.parseTest()}
	return n
}

// parseStrings folds adjacent string literals; any f-string among them makes
// the result an interpolated string.
func (c *compiler) parseStrings() *node {
	first := c.peek()
	n := c.newNode(nConst, first)
	n.val.Kind = code.ConstStr
	var parts []fpart
	interp := false
	for c.at(token.StringLit) || c.at(token.FStringLit) {
		tok := c.advance()
		n.sp = n.sp.Cover(tok.Span)
		if tok.Kind == token.StringLit {
			parts = appendLit(parts, tok.Str)
			continue
		}
		interp = true
		parts = append(parts, c.parseFString(tok)...)
	}
	if !interp {
		for _, p := range parts {
			n.val.Str += p.lit
		}
		return n
	}
	n.kind = nFString
	n.parts = parts
	return n
}

func appendLit(parts []fpart, s string) []fpart {
	if s == "" {
		return parts
	}
	if k := len(parts); k > 0 && parts[k-1].expr == nil {
		parts[k-1].lit += s
		return parts
	}
	return append(parts, fpart{lit: s})
}

func (c *compiler) parseFString(tok token.Token) []fpart {
	split, err := lexer.SplitFString(tok.Str, lexer.IsRawString(tok))
	if err != nil {
		c.fail(diag.LexBadFString, tok.Span, "f-string: %s", err.Error())
	}
	body := lexer.BodyStart(tok)
	var parts []fpart
	for _, p := range split {
		if !p.IsExpr {
			parts = appendLit(parts, p.Lit)
			continue
		}
		start := body + p.Off
		end := start + uint32(len(p.Expr)) // #nosec G115 -- bounded by the token length
		x := c.parseSubExpr(start, end, tok)
		parts = append(parts, fpart{expr: x, conv: p.Conv, spec: p.Spec, hasSpec: p.Spec != ""})
	}
	return parts
}

// parseSubExpr parses file.Content[start:end] as one expression with a
// separate token stream.
func (c *compiler) parseSubExpr(start, end uint32, outer token.Token) *node {
	var rep diag.FirstErrorReporter
	lx := lexer.NewRange(c.file, start, end, lexer.Options{Reporter: &rep})
	var toks []token.Token
	for {
		tok := lx.Next()
		if tok.Line == 0 {
			tok.Line = outer.Line
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	if rep.First != nil {
		panic(bailout{&Error{Diag: *rep.First, File: c.file}})
	}
	if len(toks) == 1 {
		c.fail(diag.LexBadFString, outer.Span, "f-string: empty expression not allowed")
	}
	saveToks, savePos, saveInteractive := c.toks, c.pos, c.interactive
	c.toks, c.pos, c.interactive = toks, 0, false
	x := c.parseTestList(false)
	if !c.at(token.EOF) {
		c.fail(diag.LexBadFString, c.peek().Span, "f-string: invalid syntax near '%s'", tokText(c.peek()))
	}
	c.toks, c.pos, c.interactive = saveToks, savePos, saveInteractive
	return x
}

// describe names an expression in target errors.
func describe(n *node) string {
	switch n.kind {
	case nConst, nFString:
		return "literal"
	case nCall:
		return "function call"
	case nBinary, nUnary, nNot:
		return "expression"
	case nCompare:
		return "comparison"
	case nAnd, nOr:
		return "expression"
	case nIfExp:
		return "conditional expression"
	case nLambda:
		return "lambda"
	case nDict:
		return "dict literal"
	case nComp:
		return "comprehension"
	case nYield, nYieldFrom:
		return "yield expression"
	}
	return "expression"
}
