package code

import (
	"bytes"
	"strings"
	"testing"

	"krait/internal/source"
	"krait/internal/symbol"
)

// loopUnit builds `for x in xs: break` by hand.
func loopUnit() *Unit {
	u := NewUnit("<module>", KindModule, ModeExec, source.NewFile("loop.kr", []byte("for x in xs:\n    break\n")))
	u.Names = []symbol.Name{symbol.Intern("xs"), symbol.Intern("x")}
	u.Code = []Instr{
		{LOAD_GLOBAL, 0},
		{GET_ITER, 0},
		{FOR_ITER, 6},
		{STORE_GLOBAL, 1},
		{LOOP_BREAK, 0},
		{JUMP_ABSOLUTE, 2},
		{LOAD_NONE, 0},
		{RETURN_VALUE, 0},
	}
	u.Lines = []uint32{1, 1, 1, 1, 2, 2, 2, 2}
	u.IBlock = []int32{-1, -1, 0, 0, 0, 0, -1, -1}
	u.Blocks = []Block{{Type: BlockFor, Parent: -1, Start: 2, End: 6, Handler: 6, Continue: 2, Depth: 1, Owned: 1}}
	u.MaxDepth = 2
	return u
}

func TestValidateAndDump(t *testing.T) {
	u := loopUnit()
	if err := Validate(u); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	var buf bytes.Buffer
	if err := Dump(&buf, u); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"unit <module> kind=module mode=exec file=loop.kr",
		"0: for [2,6) parent=-1 handler=6 depth=1 continue=2",
		"FOR_ITER             6 (to 6)",
		"LOAD_GLOBAL          0 (xs)",
		"LOOP_BREAK           0 (block 0)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Unit)
		want   string
	}{
		{"jump", func(u *Unit) { u.Code[5].Arg = 99 }, "out of range"},
		{"name", func(u *Unit) { u.Code[0].Arg = 7 }, "name 7"},
		{"lines", func(u *Unit) { u.Lines = u.Lines[:3] }, "lines=3"},
		{"break", func(u *Unit) { u.Blocks[0].Type = BlockTry }, "does not target a loop"},
		{"iblock", func(u *Unit) { u.IBlock[0] = 0 }, "outside its block"},
		{"tail", func(u *Unit) { u.Code[7] = Instr{Op: NOP} }, "terminator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := loopUnit()
			tt.mutate(u)
			err := Validate(u)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("want error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRefcounting(t *testing.T) {
	mod := loopUnit()
	inner := NewUnit("f", KindFunction, ModeExec, nil)
	decl := NewFuncDecl("f", inner)
	mod.Funcs = append(mod.Funcs, decl)

	decl.Retain() // функция, созданная во время выполнения
	mod.Release()
	if !mod.Released() || inner.Released() {
		t.Fatalf("module released=%v inner released=%v", mod.Released(), inner.Released())
	}
	decl.Release()
	if !inner.Released() || inner.Refs() != 0 {
		t.Fatalf("inner unit survived its last declaration reference")
	}
}

func TestStackEffects(t *testing.T) {
	tests := []struct {
		op   Opcode
		arg  uint16
		jump bool
		want int
	}{
		{CALL, CallArg(2, 1), false, -5},
		{CALL_EX, 1, false, -3},
		{BUILD_DICT, 3, false, -5},
		{UNPACK_EX, UnpackExArg(1, 2), false, 3},
		{FOR_ITER, 9, true, -1},
		{FOR_ITER, 9, false, 1},
		{JUMP_IF_TRUE_OR_POP, 4, false, -1},
		{RAISE, RaiseCause, false, -2},
		{FORMAT_VALUE, FormatHasSpec | FormatRepr, false, -1},
		{STORE_SUBSCR, 0, false, -3},
	}
	for _, tt := range tests {
		if got := StackEffect(tt.op, tt.arg, tt.jump); got != tt.want {
			t.Errorf("StackEffect(%s, %d, %v) = %d, want %d", tt.op, tt.arg, tt.jump, got, tt.want)
		}
	}
	if BinaryOp(OpAdd|InplaceFlag).String() != "+=" || OpPow.Dunder() != "pow" {
		t.Error("binary op naming")
	}
	if CmpLt.Swap() != CmpGt || CmpEq.Swap() != CmpEq {
		t.Error("compare swap")
	}
}
