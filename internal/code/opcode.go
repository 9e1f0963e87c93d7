package code

import "fmt"

// Opcode is one bytecode operation.
type Opcode uint8

const (
	NOP Opcode = iota
	POP_TOP
	DUP_TOP
	DUP_TOP_TWO
	ROT_TWO
	ROT_THREE
	PUSH_NIL

	LOAD_CONST
	LOAD_NONE
	LOAD_TRUE
	LOAD_FALSE
	LOAD_ELLIPSIS
	LOAD_INTEGER // arg is a signed 16-bit immediate
	LOAD_FAST
	LOAD_NAME
	LOAD_NONLOCAL
	LOAD_GLOBAL
	LOAD_ATTR
	LOAD_METHOD
	LOAD_SUBSCR
	LOAD_FUNCTION

	STORE_FAST
	STORE_NAME
	STORE_NONLOCAL
	STORE_GLOBAL
	STORE_ATTR
	STORE_SUBSCR
	STORE_CLASS_ATTR

	DELETE_FAST
	DELETE_NAME
	DELETE_NONLOCAL
	DELETE_GLOBAL
	DELETE_ATTR
	DELETE_SUBSCR

	BUILD_LIST
	BUILD_TUPLE
	BUILD_DICT
	BUILD_SLICE
	BUILD_STRING
	LIST_APPEND
	LIST_EXTEND
	DICT_ADD
	DICT_UPDATE
	LIST_TO_TUPLE
	UNPACK_SEQUENCE
	UNPACK_EX

	BINARY_OP
	COMPARE_OP
	IS_OP
	CONTAINS_OP
	UNARY_NEGATIVE
	UNARY_POSITIVE
	UNARY_NOT
	UNARY_INVERT

	JUMP_ABSOLUTE
	POP_JUMP_IF_FALSE
	POP_JUMP_IF_TRUE
	JUMP_IF_FALSE_OR_POP
	JUMP_IF_TRUE_OR_POP
	LOOP_BREAK
	LOOP_CONTINUE

	GET_ITER
	FOR_ITER
	CALL
	CALL_EX
	RETURN_VALUE
	YIELD_VALUE
	YIELD_FROM

	BEGIN_CLASS
	END_CLASS
	WITH_ENTER
	WITH_EXIT

	EXCEPTION_MATCH
	RAISE
	RE_RAISE
	END_FINALLY
	ASSERT

	PRINT_EXPR
	IMPORT_NAME
	IMPORT_FROM
	IMPORT_STAR
	FORMAT_VALUE

	opcodeCount
)

var opNames = [opcodeCount]string{
	NOP: "NOP", POP_TOP: "POP_TOP", DUP_TOP: "DUP_TOP", DUP_TOP_TWO: "DUP_TOP_TWO",
	ROT_TWO: "ROT_TWO", ROT_THREE: "ROT_THREE", PUSH_NIL: "PUSH_NIL",
	LOAD_CONST: "LOAD_CONST", LOAD_NONE: "LOAD_NONE", LOAD_TRUE: "LOAD_TRUE",
	LOAD_FALSE: "LOAD_FALSE", LOAD_ELLIPSIS: "LOAD_ELLIPSIS", LOAD_INTEGER: "LOAD_INTEGER",
	LOAD_FAST: "LOAD_FAST", LOAD_NAME: "LOAD_NAME", LOAD_NONLOCAL: "LOAD_NONLOCAL",
	LOAD_GLOBAL: "LOAD_GLOBAL", LOAD_ATTR: "LOAD_ATTR", LOAD_METHOD: "LOAD_METHOD",
	LOAD_SUBSCR: "LOAD_SUBSCR", LOAD_FUNCTION: "LOAD_FUNCTION",
	STORE_FAST: "STORE_FAST", STORE_NAME: "STORE_NAME", STORE_NONLOCAL: "STORE_NONLOCAL",
	STORE_GLOBAL: "STORE_GLOBAL", STORE_ATTR: "STORE_ATTR", STORE_SUBSCR: "STORE_SUBSCR",
	STORE_CLASS_ATTR: "STORE_CLASS_ATTR",
	DELETE_FAST: "DELETE_FAST", DELETE_NAME: "DELETE_NAME", DELETE_NONLOCAL: "DELETE_NONLOCAL",
	DELETE_GLOBAL: "DELETE_GLOBAL", DELETE_ATTR: "DELETE_ATTR", DELETE_SUBSCR: "DELETE_SUBSCR",
	BUILD_LIST: "BUILD_LIST", BUILD_TUPLE: "BUILD_TUPLE", BUILD_DICT: "BUILD_DICT",
	BUILD_SLICE: "BUILD_SLICE", BUILD_STRING: "BUILD_STRING", LIST_APPEND: "LIST_APPEND",
	LIST_EXTEND: "LIST_EXTEND", DICT_ADD: "DICT_ADD", DICT_UPDATE: "DICT_UPDATE",
	LIST_TO_TUPLE: "LIST_TO_TUPLE", UNPACK_SEQUENCE: "UNPACK_SEQUENCE", UNPACK_EX: "UNPACK_EX",
	BINARY_OP: "BINARY_OP", COMPARE_OP: "COMPARE_OP", IS_OP: "IS_OP", CONTAINS_OP: "CONTAINS_OP",
	UNARY_NEGATIVE: "UNARY_NEGATIVE", UNARY_POSITIVE: "UNARY_POSITIVE", UNARY_NOT: "UNARY_NOT",
	UNARY_INVERT: "UNARY_INVERT",
	JUMP_ABSOLUTE: "JUMP_ABSOLUTE", POP_JUMP_IF_FALSE: "POP_JUMP_IF_FALSE",
	POP_JUMP_IF_TRUE: "POP_JUMP_IF_TRUE", JUMP_IF_FALSE_OR_POP: "JUMP_IF_FALSE_OR_POP",
	JUMP_IF_TRUE_OR_POP: "JUMP_IF_TRUE_OR_POP", LOOP_BREAK: "LOOP_BREAK", LOOP_CONTINUE: "LOOP_CONTINUE",
	GET_ITER: "GET_ITER", FOR_ITER: "FOR_ITER", CALL: "CALL", CALL_EX: "CALL_EX",
	RETURN_VALUE: "RETURN_VALUE", YIELD_VALUE: "YIELD_VALUE", YIELD_FROM: "YIELD_FROM",
	BEGIN_CLASS: "BEGIN_CLASS", END_CLASS: "END_CLASS", WITH_ENTER: "WITH_ENTER", WITH_EXIT: "WITH_EXIT",
	EXCEPTION_MATCH: "EXCEPTION_MATCH", RAISE: "RAISE", RE_RAISE: "RE_RAISE",
	END_FINALLY: "END_FINALLY", ASSERT: "ASSERT",
	PRINT_EXPR: "PRINT_EXPR", IMPORT_NAME: "IMPORT_NAME", IMPORT_FROM: "IMPORT_FROM",
	IMPORT_STAR: "IMPORT_STAR", FORMAT_VALUE: "FORMAT_VALUE",
}

func (op Opcode) String() string {
	if op < opcodeCount {
		return opNames[op]
	}
	return fmt.Sprintf("OP(%d)", uint8(op))
}

// IsJump reports whether the argument of op is an instruction index.
func (op Opcode) IsJump() bool {
	switch op {
	case JUMP_ABSOLUTE, POP_JUMP_IF_FALSE, POP_JUMP_IF_TRUE,
		JUMP_IF_FALSE_OR_POP, JUMP_IF_TRUE_OR_POP, FOR_ITER:
		return true
	}
	return false
}

// UsesName reports whether the argument indexes Unit.Names.
func (op Opcode) UsesName() bool {
	switch op {
	case LOAD_NAME, LOAD_NONLOCAL, LOAD_GLOBAL, LOAD_ATTR, LOAD_METHOD,
		STORE_NAME, STORE_NONLOCAL, STORE_GLOBAL, STORE_ATTR, STORE_CLASS_ATTR,
		DELETE_NAME, DELETE_NONLOCAL, DELETE_GLOBAL, DELETE_ATTR,
		BEGIN_CLASS, IMPORT_NAME, IMPORT_FROM:
		return true
	}
	return false
}

// UsesLocal reports whether the argument is a local slot.
func (op Opcode) UsesLocal() bool {
	return op == LOAD_FAST || op == STORE_FAST || op == DELETE_FAST
}

// BinaryOp is the argument of BINARY_OP.
type BinaryOp uint16

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpTrueDiv
	OpFloorDiv
	OpMod
	OpPow
	OpLShift
	OpRShift
	OpAnd
	OpOr
	OpXor
	OpMatMul
	binaryOpCount

	// InplaceFlag marks augmented assignment (list += extends in place).
	InplaceFlag BinaryOp = 0x80
)

var binarySymbols = [binaryOpCount]string{"+", "-", "*", "/", "//", "%", "**", "<<", ">>", "&", "|", "^", "@"}

var binaryDunders = [binaryOpCount]string{
	"add", "sub", "mul", "truediv", "floordiv", "mod", "pow",
	"lshift", "rshift", "and", "or", "xor", "matmul",
}

func (b BinaryOp) Base() BinaryOp { return b &^ InplaceFlag }
func (b BinaryOp) Inplace() bool  { return b&InplaceFlag != 0 }

func (b BinaryOp) String() string {
	if base := b.Base(); base < binaryOpCount {
		if b.Inplace() {
			return binarySymbols[base] + "="
		}
		return binarySymbols[base]
	}
	return "?"
}

// Dunder returns the method suffix: "add" for __add__/__radd__.
func (b BinaryOp) Dunder() string {
	if base := b.Base(); base < binaryOpCount {
		return binaryDunders[base]
	}
	return ""
}

// CompareOp is the argument of COMPARE_OP.
type CompareOp uint16

const (
	CmpLt CompareOp = iota
	CmpLe
	CmpEq
	CmpNe
	CmpGt
	CmpGe
)

var compareSymbols = [...]string{"<", "<=", "==", "!=", ">", ">="}

func (c CompareOp) String() string {
	if int(c) < len(compareSymbols) {
		return compareSymbols[c]
	}
	return "?"
}

// Swap returns the reflected comparison: a < b is b > a.
func (c CompareOp) Swap() CompareOp {
	switch c {
	case CmpLt:
		return CmpGt
	case CmpLe:
		return CmpGe
	case CmpGt:
		return CmpLt
	case CmpGe:
		return CmpLe
	}
	return c
}

// FORMAT_VALUE flags.
const (
	FormatRepr    = 1 // !r
	FormatHasSpec = 2 // spec string on the stack above the value
)

// RAISE argument.
const (
	RaiseBare  = 0
	RaiseExc   = 1
	RaiseCause = 2
)

// CALL argument packs positional and keyword counts.
func CallArg(argc, kwargc int) uint16 { return uint16(argc) | uint16(kwargc)<<8 } // #nosec G115 -- callers check MaxCallArgs

func SplitCallArg(arg uint16) (argc, kwargc int) { return int(arg & 0xff), int(arg >> 8) }

// MaxCallArgs bounds positional and keyword counts of one CALL.
const MaxCallArgs = 255

// UnpackExArg packs the counts around the starred target.
func UnpackExArg(before, after int) uint16 { return uint16(before) | uint16(after)<<8 } // #nosec G115 -- checked by the compiler

func SplitUnpackEx(arg uint16) (before, after int) { return int(arg & 0xff), int(arg >> 8) }
