package compiler

import (
	"krait/internal/code"
	"krait/internal/diag"
)

// checkTarget validates n as an assignment (or, with del, deletion) target.
func (c *compiler) checkTarget(n *node, del bool) {
	verb := "assign to"
	if del {
		verb = "delete"
	}
	switch n.kind {
	case nName, nAttr, nSubscr:
		return
	case nTuple, nList:
		if n.kind == nTuple && n.paren && len(n.elts) == 0 && !del {
			c.fail(diag.SynInvalidTarget, n.sp, "cannot %s ()", verb)
		}
		starred := 0
		for _, e := range n.elts {
			if e.kind == nStarred {
				if del {
					c.fail(diag.SynInvalidTarget, e.sp, "cannot delete starred")
				}
				starred++
				c.checkTarget(e.x, del)
				continue
			}
			c.checkTarget(e, del)
		}
		if starred > 1 {
			c.fail(diag.SynBadStarred, n.sp, "multiple starred expressions in assignment")
		}
		return
	case nStarred:
		c.fail(diag.SynBadStarred, n.sp, "starred assignment target must be in a list or tuple")
	}
	c.fail(diag.SynInvalidTarget, n.sp, "cannot %s %s", verb, describe(n))
}

// emitStore stores the value on top of the stack into n.
func (c *compiler) emitStore(n *node) {
	c.setLine(n.line)
	switch n.kind {
	case nName:
		c.emitName(n.name, opStore)
	case nAttr:
		c.emitExpr(n.x)
		c.emit(code.STORE_ATTR, c.nameIndex(n.name))
	case nSubscr:
		c.emitExpr(n.x)
		c.emitIndex(n.y)
		c.emit(code.STORE_SUBSCR, 0)
	case nTuple, nList:
		star := -1
		for i, e := range n.elts {
			if e.kind == nStarred {
				star = i
			}
		}
		if star < 0 {
			c.emit(code.UNPACK_SEQUENCE, len(n.elts))
		} else {
			before, after := star, len(n.elts)-star-1
			if before > 0xff || after > 0xff {
				c.fail(diag.SynBadStarred, n.sp, "too many expressions in star-unpacking assignment")
			}
			c.emit(code.UNPACK_EX, int(code.UnpackExArg(before, after)))
		}
		for _, e := range n.elts {
			if e.kind == nStarred {
				e = e.x
			}
			c.emitStore(e)
		}
	default:
		c.checkTarget(n, false)
	}
}

func (c *compiler) emitDelete(n *node) {
	c.setLine(n.line)
	switch n.kind {
	case nName:
		c.emitName(n.name, opDelete)
	case nAttr:
		c.emitExpr(n.x)
		c.emit(code.DELETE_ATTR, c.nameIndex(n.name))
	case nSubscr:
		c.emitExpr(n.x)
		c.emitIndex(n.y)
		c.emit(code.DELETE_SUBSCR, 0)
	case nTuple, nList:
		for _, e := range n.elts {
			c.emitDelete(e)
		}
	default:
		c.checkTarget(n, true)
	}
}

// emitAugAssign emits "target op= value". The target is evaluated once.
func (c *compiler) emitAugAssign(target *node, op code.BinaryOp, value *node) {
	op |= code.InplaceFlag
	switch target.kind {
	case nName:
		c.emitName(target.name, opLoad)
		c.emitExpr(value)
		c.emit(code.BINARY_OP, int(op))
		c.emitName(target.name, opStore)
	case nAttr:
		c.emitExpr(target.x)
		c.emit(code.DUP_TOP, 0)
		c.emit(code.LOAD_ATTR, c.nameIndex(target.name))
		c.emitExpr(value)
		c.emit(code.BINARY_OP, int(op))
		c.emit(code.ROT_TWO, 0)
		c.emit(code.STORE_ATTR, c.nameIndex(target.name))
	case nSubscr:
		c.emitExpr(target.x)
		c.emitIndex(target.y)
		c.emit(code.DUP_TOP_TWO, 0)
		c.emit(code.LOAD_SUBSCR, 0)
		c.emitExpr(value)
		c.emit(code.BINARY_OP, int(op))
		c.emit(code.ROT_THREE, 0)
		c.emit(code.STORE_SUBSCR, 0)
	default:
		c.fail(diag.SynInvalidTarget, target.sp, "'%s' is an illegal expression for augmented assignment", describe(target))
	}
}
