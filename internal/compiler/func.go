package compiler

import (
	"krait/internal/code"
	"krait/internal/diag"
	"krait/internal/source"
	"krait/internal/symbol"
	"krait/internal/token"
)

// params is a parsed parameter list.
type params struct {
	sp         source.Span
	names      []symbol.Name
	defaults   []code.Const
	kwonly     []symbol.Name
	kwdefaults []code.KwDefault
	star       symbol.Name
	starkw     symbol.Name
}

// parseParams parses parameters up to end (')' for def, ':' for lambda).
// Defaults must be literals.
func (c *compiler) parseParams(end token.Kind) *params {
	p := &params{sp: c.peek().Span}
	kwOnly := false
	for !c.at(end) {
		tok := c.peek()
		switch {
		case c.accept(token.StarStar):
			p.starkw, _ = c.ident("parameter name")
			c.skipAnnotation(end)
			c.accept(token.Comma)
			if !c.at(end) {
				c.failAt(diag.SynUnexpectedToken, c.pos, "arguments cannot follow var-keyword argument")
			}
			return p
		case c.accept(token.Star):
			if kwOnly {
				c.fail(diag.SynUnexpectedToken, tok.Span, "* argument may appear only once")
			}
			kwOnly = true
			if c.at(token.Ident) {
				p.star, _ = c.ident("parameter name")
				c.skipAnnotation(end)
			}
		default:
			name, _ := c.ident("parameter name")
			c.skipAnnotation(end)
			var def *code.Const
			if c.accept(token.Assign) {
				d := c.parseTest()
				if d.kind != nConst {
					c.fail(diag.SynNonLiteralDefault, d.sp, "default value must be a literal")
				}
				def = &d.val
			}
			if kwOnly {
				kd := code.KwDefault{Has: def != nil}
				if def != nil {
					kd.Value = *def
				}
				p.kwonly = append(p.kwonly, name)
				p.kwdefaults = append(p.kwdefaults, kd)
				break
			}
			if def != nil {
				p.defaults = append(p.defaults, *def)
			} else if len(p.defaults) > 0 {
				c.fail(diag.SynUnexpectedToken, tok.Span, "non-default argument follows default argument")
			}
			p.names = append(p.names, name)
		}
		if !c.accept(token.Comma) {
			break
		}
	}
	if kwOnly && p.star == symbol.NoName && len(p.kwonly) == 0 {
		c.fail(diag.SynUnexpectedToken, p.sp, "named arguments must follow bare *")
	}
	return p
}

// skipAnnotation drops a ": type" annotation inside def parameter lists.
func (c *compiler) skipAnnotation(end token.Kind) {
	if end == token.RParen && c.accept(token.Colon) {
		c.parseTest()
	}
}

// docstring returns the leading string literal of the indented block
// starting at the current token.
func (c *compiler) docstring() string {
	if c.peekAt(0).Kind == token.Newline && c.peekAt(1).Kind == token.Indent &&
		c.peekAt(2).Kind == token.StringLit && c.peekAt(3).Kind == token.Newline {
		return c.peekAt(2).Str
	}
	return ""
}

func (c *compiler) decorated() {
	var decs []*node
	for c.at(token.At) {
		c.advance()
		decs = append(decs, c.parseTest())
		c.expect(token.Newline, "newline after decorator")
	}
	c.setLine(c.peek().Line)
	switch c.peek().Kind {
	case token.KwDef:
		c.defStmt(decs)
	case token.KwClass:
		c.classStmt(decs)
	default:
		c.unexpected("'def' or 'class' after decorator")
	}
}

// emitDecorators pushes [decorator, Nil] pairs; applyDecorators calls them
// innermost first.
func (c *compiler) emitDecorators(decs []*node) {
	for _, d := range decs {
		c.emitExpr(d)
		c.emit(code.PUSH_NIL, 0)
	}
}

func (c *compiler) applyDecorators(decs []*node) {
	for range decs {
		c.emit(code.CALL, int(code.CallArg(1, 0)))
	}
}

func (c *compiler) defStmt(decs []*node) {
	kw := c.advance()
	name, _ := c.ident("function name")
	c.expect(token.LParen, "'('")
	p := c.parseParams(token.RParen)
	c.expect(token.RParen, "')'")
	if c.accept(token.Arrow) {
		c.parseTest()
	}
	c.expect(token.Colon, "':'")
	doc := c.docstring()

	c.emitDecorators(decs)
	c.newFunction(name.String(), code.KindFunction, p, doc, func() {
		c.setLine(kw.Line)
		c.suite()
		c.emit(code.LOAD_NONE, 0)
		c.emit(code.RETURN_VALUE, 0)
	})
	c.setLine(kw.Line)
	c.applyDecorators(decs)
	c.emitName(name, opStore)
}

// classStmt compiles the class body inline between BEGIN_CLASS and
// END_CLASS; stores in the body become class attributes.
func (c *compiler) classStmt(decs []*node) {
	kw := c.advance()
	name, _ := c.ident("class name")
	var base *node
	if c.accept(token.LParen) {
		if !c.at(token.RParen) {
			base = c.parseTest()
			if c.accept(token.Comma) && !c.at(token.RParen) {
				c.fail(diag.SynUnexpectedToken, c.peek().Span, "multiple inheritance is not supported")
			}
		}
		c.expect(token.RParen, "')'")
	}
	c.expect(token.Colon, "':'")

	c.emitDecorators(decs)
	if base != nil {
		c.emitExpr(base)
	} else {
		c.emit(code.LOAD_NONE, 0)
	}
	c.setLine(kw.Line)
	c.emit(code.BEGIN_CLASS, c.nameIndex(name))
	c.s.classBody++
	c.suite()
	c.s.classBody--
	c.emit(code.END_CLASS, 0)
	c.applyDecorators(decs)
	c.emitName(name, opStore)
}
