// Package code holds compiled code units: the instruction stream, its
// parallel line and block-index arrays, the constant pool, name tables, the
// block table used for break/continue and exception dispatch, and the
// declarations of nested functions.
//
// Units and declarations are reference counted. They never form cycles, so
// the collector does not see them; function objects retain their declaration
// and release it when they are reclaimed.
package code
