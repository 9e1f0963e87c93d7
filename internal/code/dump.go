package code

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Dump writes a human-readable listing of u and its nested units.
func Dump(w io.Writer, u *Unit) error {
	var err error
	u.Walk(func(n *Unit) {
		if err == nil {
			err = dumpUnit(w, n)
		}
	})
	return err
}

func dumpUnit(w io.Writer, u *Unit) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "unit %s kind=%s mode=%s file=%s locals=%d depth=%d", u.Name, u.Kind, u.Mode, u.Path(), u.NLocals(), u.MaxDepth)
	if u.IsGenerator {
		sb.WriteString(" generator")
	}
	if u.Dynamic {
		sb.WriteString(" dynamic")
	}
	sb.WriteString("\n")

	if len(u.Consts) > 0 {
		sb.WriteString("  consts:\n")
		for i, c := range u.Consts {
			fmt.Fprintf(&sb, "    %d: %s\n", i, c)
		}
	}
	if len(u.Varnames) > 0 {
		sb.WriteString("  locals:")
		for i, n := range u.Varnames {
			fmt.Fprintf(&sb, " %d=%s", i, n)
		}
		sb.WriteString("\n")
	}
	if len(u.Blocks) > 0 {
		sb.WriteString("  blocks:\n")
		for i, b := range u.Blocks {
			fmt.Fprintf(&sb, "    %d: %s [%d,%d) parent=%d handler=%d depth=%d", i, b.Type, b.Start, b.End, b.Parent, b.Handler, b.Depth)
			if b.Type.IsLoop() {
				fmt.Fprintf(&sb, " continue=%d", b.Continue)
			}
			sb.WriteString("\n")
		}
	}

	var line uint32
	for ip, in := range u.Code {
		l := u.Line(ip)
		lineCol := "    "
		if l != line {
			lineCol = fmt.Sprintf("%4d", l)
			line = l
		}
		fmt.Fprintf(&sb, "%s %5d  %-20s", lineCol, ip, in.Op)
		if arg := u.ArgString(in); arg != "" {
			sb.WriteString(" ")
			sb.WriteString(arg)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// ArgString renders the argument of in with its annotation, or "" for
// instructions that take none.
func (u *Unit) ArgString(in Instr) string {
	if !hasArg(in.Op) {
		return ""
	}
	s := strconv.Itoa(int(in.Arg))
	if note := u.annotate(in); note != "" {
		s += " (" + note + ")"
	}
	return s
}

func hasArg(op Opcode) bool {
	switch op {
	case NOP, POP_TOP, DUP_TOP, DUP_TOP_TWO, ROT_TWO, ROT_THREE, PUSH_NIL,
		LOAD_NONE, LOAD_TRUE, LOAD_FALSE, LOAD_ELLIPSIS, LOAD_SUBSCR,
		STORE_SUBSCR, DELETE_SUBSCR, LIST_TO_TUPLE,
		UNARY_NEGATIVE, UNARY_POSITIVE, UNARY_NOT, UNARY_INVERT,
		GET_ITER, RETURN_VALUE, YIELD_VALUE, YIELD_FROM, END_CLASS,
		WITH_ENTER, WITH_EXIT, EXCEPTION_MATCH, END_FINALLY, PRINT_EXPR, IMPORT_STAR:
		return false
	}
	return true
}

func (u *Unit) annotate(in Instr) string {
	i := int(in.Arg)
	switch {
	case in.Op == LOAD_CONST && i < len(u.Consts):
		return u.Consts[i].String()
	case in.Op == LOAD_INTEGER:
		return strconv.Itoa(int(int16(in.Arg))) // #nosec G115 -- immediate is signed
	case in.Op.UsesName() && i < len(u.Names):
		return u.Names[i].String()
	case in.Op.UsesLocal() && i < len(u.Varnames):
		return u.Varnames[i].String()
	case in.Op == LOAD_FUNCTION && i < len(u.Funcs):
		return u.Funcs[i].Name
	case in.Op == BINARY_OP:
		return BinaryOp(in.Arg).String()
	case in.Op == COMPARE_OP:
		return CompareOp(in.Arg).String()
	case in.Op.IsJump():
		return "to " + strconv.Itoa(i)
	case (in.Op == LOOP_BREAK || in.Op == LOOP_CONTINUE) && i < len(u.Blocks):
		return "block " + strconv.Itoa(i)
	case in.Op == CALL:
		argc, kwc := SplitCallArg(in.Arg)
		if kwc > 0 {
			return fmt.Sprintf("%d args, %d kw", argc, kwc)
		}
	}
	return ""
}

func (k Kind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindFunction:
		return "function"
	case KindLambda:
		return "lambda"
	case KindComprehension:
		return "comprehension"
	}
	return "?"
}

func (c Const) String() string {
	switch c.Kind {
	case ConstNone:
		return "None"
	case ConstTrue:
		return "True"
	case ConstFalse:
		return "False"
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstFloat:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	case ConstStr:
		return strconv.Quote(c.Str)
	case ConstEllipsis:
		return "..."
	}
	return "?"
}
