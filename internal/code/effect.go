package code

// StackEffect returns the net change of the value-stack depth caused by one
// instruction. jump selects the taken branch of conditional jumps.
func StackEffect(op Opcode, arg uint16, jump bool) int {
	n := int(arg)
	switch op {
	case NOP, ROT_TWO, ROT_THREE, JUMP_ABSOLUTE, LOOP_BREAK, LOOP_CONTINUE,
		LOAD_ATTR, DELETE_FAST, DELETE_NAME, DELETE_NONLOCAL, DELETE_GLOBAL,
		LIST_TO_TUPLE, UNARY_NEGATIVE, UNARY_POSITIVE, UNARY_NOT, UNARY_INVERT,
		GET_ITER, YIELD_VALUE, EXCEPTION_MATCH, RE_RAISE:
		return 0
	case POP_TOP, LOAD_SUBSCR, STORE_FAST, STORE_NAME, STORE_NONLOCAL, STORE_GLOBAL,
		STORE_CLASS_ATTR, DELETE_ATTR, LIST_APPEND, LIST_EXTEND, DICT_UPDATE,
		BINARY_OP, COMPARE_OP, IS_OP, CONTAINS_OP, POP_JUMP_IF_FALSE, POP_JUMP_IF_TRUE,
		RETURN_VALUE, YIELD_FROM, BEGIN_CLASS, WITH_EXIT, END_FINALLY, PRINT_EXPR, IMPORT_STAR:
		return -1
	case DUP_TOP, PUSH_NIL, LOAD_CONST, LOAD_NONE, LOAD_TRUE, LOAD_FALSE, LOAD_ELLIPSIS,
		LOAD_INTEGER, LOAD_FAST, LOAD_NAME, LOAD_NONLOCAL, LOAD_GLOBAL, LOAD_METHOD,
		LOAD_FUNCTION, END_CLASS, WITH_ENTER, IMPORT_NAME, IMPORT_FROM:
		return 1
	case DUP_TOP_TWO:
		return 2
	case STORE_ATTR, DELETE_SUBSCR, DICT_ADD:
		return -2
	case STORE_SUBSCR:
		return -3
	case BUILD_LIST, BUILD_TUPLE, BUILD_STRING, BUILD_SLICE:
		return 1 - n
	case BUILD_DICT:
		return 1 - 2*n
	case UNPACK_SEQUENCE:
		return n - 1
	case UNPACK_EX:
		before, after := SplitUnpackEx(arg)
		return before + after
	case JUMP_IF_FALSE_OR_POP, JUMP_IF_TRUE_OR_POP:
		if jump {
			return 0
		}
		return -1
	case FOR_ITER:
		if jump {
			return -1
		}
		return 1
	case CALL:
		argc, kwc := SplitCallArg(arg)
		return -(argc + 2*kwc + 1)
	case CALL_EX:
		return -2 - n&1
	case RAISE, ASSERT:
		if op == RAISE && n == RaiseCause {
			return -2
		}
		if n > 0 {
			return -1
		}
		return 0
	case FORMAT_VALUE:
		if n&FormatHasSpec != 0 {
			return -1
		}
		return 0
	}
	return 0
}
