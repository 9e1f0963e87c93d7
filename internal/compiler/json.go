package compiler

import (
	"krait/internal/code"
	"krait/internal/diag"
	"krait/internal/token"
)

// compileJSON compiles one JSON literal. Containers are filled element by
// element so the stack stays shallow for large documents.
func (c *compiler) compileJSON() {
	c.skipLayout()
	c.setLine(c.peek().Line)
	c.jsonValue()
	c.skipLayout()
	if !c.at(token.EOF) {
		c.fail(diag.SynBadJSON, c.peek().Span, "extra data after JSON value")
	}
	c.emit(code.RETURN_VALUE, 0)
}

func (c *compiler) jsonValue() {
	tok := c.advance()
	switch tok.Kind {
	case token.LBrace:
		c.emit(code.BUILD_DICT, 0)
		if c.accept(token.RBrace) {
			return
		}
		for {
			key := c.advance()
			if key.Kind != token.StringLit {
				c.fail(diag.SynBadJSON, key.Span, "expecting property name enclosed in double quotes")
			}
			c.loadStr(key.Str)
			if !c.accept(token.Colon) {
				c.fail(diag.SynBadJSON, c.peek().Span, "expecting ':' delimiter")
			}
			c.jsonValue()
			c.emit(code.DICT_ADD, 1)
			if c.accept(token.RBrace) {
				return
			}
			if !c.accept(token.Comma) {
				c.fail(diag.SynBadJSON, c.peek().Span, "expecting ',' delimiter")
			}
		}
	case token.LBracket:
		c.emit(code.BUILD_LIST, 0)
		if c.accept(token.RBracket) {
			return
		}
		for {
			c.jsonValue()
			c.emit(code.LIST_APPEND, 1)
			if c.accept(token.RBracket) {
				return
			}
			if !c.accept(token.Comma) {
				c.fail(diag.SynBadJSON, c.peek().Span, "expecting ',' delimiter")
			}
		}
	case token.StringLit:
		c.loadStr(tok.Str)
	case token.IntLit:
		c.loadConst(code.Const{Kind: code.ConstInt, Int: tok.Int})
	case token.FloatLit:
		c.loadConst(code.Const{Kind: code.ConstFloat, Float: tok.Float})
	case token.Minus:
		num := c.advance()
		switch num.Kind {
		case token.IntLit:
			c.loadConst(code.Const{Kind: code.ConstInt, Int: -num.Int})
		case token.FloatLit:
			c.loadConst(code.Const{Kind: code.ConstFloat, Float: -num.Float})
		default:
			c.fail(diag.SynBadJSON, num.Span, "expecting value")
		}
	case token.KwTrue:
		c.emit(code.LOAD_TRUE, 0)
	case token.KwFalse:
		c.emit(code.LOAD_FALSE, 0)
	case token.KwNone:
		c.emit(code.LOAD_NONE, 0)
	case token.Ident:
		switch tok.Text {
		case "true":
			c.emit(code.LOAD_TRUE, 0)
		case "false":
			c.emit(code.LOAD_FALSE, 0)
		case "null":
			c.emit(code.LOAD_NONE, 0)
		default:
			c.fail(diag.SynBadJSON, tok.Span, "expecting value")
		}
	default:
		c.fail(diag.SynBadJSON, tok.Span, "expecting value")
	}
}
