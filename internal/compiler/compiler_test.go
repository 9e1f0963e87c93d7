package compiler_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"krait/internal/code"
	"krait/internal/compiler"
	"krait/internal/source"
)

func compileMode(t *testing.T, src string, mode code.Mode) (*code.Unit, error) {
	t.Helper()
	file := source.NewFile("test.kr", []byte(src))
	return compiler.Compile(file, compiler.Options{Mode: mode})
}

func mustCompile(t *testing.T, src string) *code.Unit {
	t.Helper()
	u, err := compileMode(t, src, code.ModeExec)
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	if err := code.Validate(u); err != nil {
		t.Fatalf("invalid unit for %q: %v", src, err)
	}
	return u
}

func ops(u *code.Unit) string {
	names := make([]string, len(u.Code))
	for i, in := range u.Code {
		names[i] = in.Op.String()
	}
	return strings.Join(names, " ")
}

func dump(t *testing.T, u *code.Unit) string {
	t.Helper()
	var buf bytes.Buffer
	if err := code.Dump(&buf, u); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestWhileLoopScenario(t *testing.T) {
	u := mustCompile(t, "x = 1\nwhile x < 5:\n  x = x + 1\n")
	want := "LOAD_INTEGER STORE_GLOBAL LOAD_GLOBAL LOAD_INTEGER COMPARE_OP POP_JUMP_IF_FALSE " +
		"LOAD_GLOBAL LOAD_INTEGER BINARY_OP STORE_GLOBAL JUMP_ABSOLUTE LOAD_NONE RETURN_VALUE"
	if got := ops(u); got != want {
		t.Fatalf("ops:\n got %s\nwant %s", got, want)
	}
	if u.Code[5].Arg != 11 || u.Code[10].Arg != 2 {
		t.Fatalf("jump targets: %d %d", u.Code[5].Arg, u.Code[10].Arg)
	}
	if len(u.Blocks) != 1 || u.Blocks[0].Type != code.BlockWhile || u.Blocks[0].Handler != 11 {
		t.Fatalf("blocks: %+v", u.Blocks)
	}
	if u.Lines[6] != 3 {
		t.Fatalf("line of loop body = %d", u.Lines[6])
	}
}

var corpus = []string{
	"x = 1\nwhile x < 5:\n  x = x + 1\n",
	"def f(a, b=2): return a+b\nprint(f(1))\n",
	"def gen():\n  yield 1\n  yield 2\n  return\n",
	"class Foo(Exception):\n  pass\ntry:\n  raise Foo('x')\nexcept Foo as e:\n  print(e)\nfinally:\n  print('done')\n",
	"for i in range(10):\n  if i % 2 == 0:\n    continue\n  elif i > 7:\n    break\nelse:\n  pass\n",
	"a, *b, c = [1, 2, 3, 4]\nd = {'k': [x*x for x in b if x], **{}}\n",
	"with open('f') as fh, lock:\n  data = fh.read()\n",
	"def outer():\n  n = 0\n  def inc():\n    nonlocal n\n    n += 1\n    return n\n  return inc\n",
	"s = f'{x!r:>10} and {y}'\nt = 1 < x <= 3 != y\n",
	"import os.path\nfrom math import sqrt as root, pi\n",
	"label .top\nx = x - 1\nif x > 0:\n  goto .top\n",
	"g = (i for i in range(3))\nh = lambda a, *r, k=1, **kw: (a, r, k, kw)\n",
	"class P:\n  def __init__(self, v):\n    self.v = v\n  @property\n  def value(self):\n    return self.v\n",
	"try:\n  pass\nexcept (ValueError, TypeError):\n  raise\nexcept:\n  pass\nelse:\n  x = 1\n",
	"x[1:2] = y[::2]\ndel x[0], y.attr\nassert x, 'message'\n",
	"def f(*args, **kwargs):\n  return g(*args, key=1, **kwargs)\n",
	"while True:\n  try:\n    break\n  finally:\n    print('cleanup')\n",
}

func TestCompileIsDeterministic(t *testing.T) {
	for _, src := range corpus {
		a := mustCompile(t, src)
		b := mustCompile(t, src)
		if dump(t, a) != dump(t, b) {
			t.Fatalf("non-deterministic output for %q", src)
		}
	}
}

func TestNameClassification(t *testing.T) {
	u := mustCompile(t, "def f(a):\n  b = a\n  return g(b)\n")
	f := u.Funcs[0].Unit
	want := "LOAD_FAST STORE_FAST LOAD_GLOBAL PUSH_NIL LOAD_FAST CALL RETURN_VALUE LOAD_NONE RETURN_VALUE"
	if got := ops(f); got != want {
		t.Fatalf("ops:\n got %s\nwant %s", got, want)
	}
	if f.NLocals() != 2 {
		t.Fatalf("locals = %d", f.NLocals())
	}

	u = mustCompile(t, "def f():\n  x = 1\n  def g():\n    return x\n  return g\n")
	g := u.Funcs[0].Unit.Funcs[0].Unit
	if g.Code[0].Op != code.LOAD_NONLOCAL {
		t.Fatalf("closure load: %s", ops(g))
	}

	u = mustCompile(t, "def f():\n  global y\n  y = 2\n  return y\n")
	if got := ops(u.Funcs[0].Unit); !strings.HasPrefix(got, "LOAD_INTEGER STORE_GLOBAL LOAD_GLOBAL") {
		t.Fatalf("global ops: %s", got)
	}

	file := source.NewFile("<eval>", []byte("x = y"))
	d, err := compiler.Compile(file, compiler.Options{Mode: code.ModeExec, Dynamic: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := ops(d); !strings.HasPrefix(got, "LOAD_NAME STORE_NAME") {
		t.Fatalf("dynamic ops: %s", got)
	}

	// в теле класса имена уходят в атрибуты класса
	u = mustCompile(t, "class A:\n  x = 1\n  y = x\n")
	if got := ops(u); !strings.Contains(got, "BEGIN_CLASS LOAD_INTEGER STORE_CLASS_ATTR LOAD_NAME STORE_CLASS_ATTR END_CLASS") {
		t.Fatalf("class body ops: %s", got)
	}
}

func TestSimpleFunctionDetection(t *testing.T) {
	u := mustCompile(t, "def a(x): pass\ndef b(x=1): pass\ndef c(*r): pass\ndef d():\n  yield 1\ndef e(*, k): pass\n")
	want := []bool{true, false, false, false, false}
	for i, f := range u.Funcs {
		if f.Simple != want[i] {
			t.Errorf("%s: simple=%v", f.Name, f.Simple)
		}
	}
	if !u.Funcs[3].Generator || !u.Funcs[3].Unit.IsGenerator {
		t.Errorf("d must be a generator")
	}
	if b := u.Funcs[1]; len(b.Defaults) != 1 || b.Defaults[0].Int != 1 {
		t.Errorf("defaults of b: %+v", b.Defaults)
	}
	if e := u.Funcs[4]; len(e.KwOnly) != 1 || e.KwDefaults[0].Has {
		t.Errorf("kw-only of e: %+v", e.KwOnly)
	}
}

func TestDocstring(t *testing.T) {
	u := mustCompile(t, "def f():\n  \"adds things\"\n  return 1\n")
	if u.Funcs[0].Doc != "adds things" {
		t.Fatalf("doc = %q", u.Funcs[0].Doc)
	}
}

func TestUnpackAndFolding(t *testing.T) {
	u := mustCompile(t, "a, *b, c = t\n")
	if u.Code[1].Op != code.UNPACK_EX || u.Code[1].Arg != code.UnpackExArg(1, 1) {
		t.Fatalf("unpack: %s arg=%d", ops(u), u.Code[1].Arg)
	}

	u = mustCompile(t, "x = -5\n")
	if u.Code[0].Op != code.LOAD_INTEGER || int16(u.Code[0].Arg) != -5 {
		t.Fatalf("folded literal: %s %d", ops(u), u.Code[0].Arg)
	}

	u = mustCompile(t, "x = -2**2\n")
	if got := ops(u); !strings.HasPrefix(got, "LOAD_INTEGER LOAD_INTEGER BINARY_OP UNARY_NEGATIVE") {
		t.Fatalf("power binds tighter than minus: %s", got)
	}

	u = mustCompile(t, "x = -1099511627776\n")
	if u.Code[0].Op != code.LOAD_CONST || u.Consts[0].Int != -1099511627776 {
		t.Fatalf("big literal: %s %+v", ops(u), u.Consts)
	}
}

func TestTryLayout(t *testing.T) {
	u := mustCompile(t, "try:\n  f()\nexcept E:\n  g()\n")
	var types []code.BlockType
	for _, b := range u.Blocks {
		types = append(types, b.Type)
	}
	if len(types) != 2 || types[0] != code.BlockTry || types[1] != code.BlockExcept {
		t.Fatalf("blocks: %v", types)
	}
	try, exc := u.Blocks[0], u.Blocks[1]
	if try.Depth != 0 || exc.Depth != 1 || exc.Owned != 1 {
		t.Fatalf("depths: try=%d except=%d/%d", try.Depth, exc.Depth, exc.Owned)
	}
	if u.Code[try.Handler].Op != code.LOAD_GLOBAL {
		t.Fatalf("handler starts with %s", u.Code[try.Handler].Op)
	}
	if !strings.Contains(ops(u), "EXCEPTION_MATCH POP_JUMP_IF_FALSE") || !strings.Contains(ops(u), "END_FINALLY") {
		t.Fatalf("ops: %s", ops(u))
	}
}

func TestForBlockOwnsIterator(t *testing.T) {
	u := mustCompile(t, "for x in y:\n  for z in x:\n    break\n")
	if len(u.Blocks) != 2 {
		t.Fatalf("blocks: %+v", u.Blocks)
	}
	outer, inner := u.Blocks[0], u.Blocks[1]
	if outer.Depth != 1 || inner.Depth != 2 || inner.Owned != 1 || inner.Parent != 0 {
		t.Fatalf("outer=%+v inner=%+v", outer, inner)
	}
	if u.MaxDepth < 3 {
		t.Fatalf("max depth = %d", u.MaxDepth)
	}
}

func TestCompileErrors(t *testing.T) {
	cases := []struct {
		src  string
		kind string
		msg  string
	}{
		{"x = \n", "SyntaxError", "expected an expression"},
		{"1 = x\n", "SyntaxError", "cannot assign to literal"},
		{"f() = 1\n", "SyntaxError", "cannot assign to function call"},
		{"return 1\n", "SyntaxError", "'return' outside function"},
		{"break\n", "SyntaxError", "'break' outside loop"},
		{"def f(a=b): pass\n", "SyntaxError", "default value must be a literal"},
		{"def f(a, a): pass\n", "SyntaxError", "duplicate argument 'a'"},
		{"if x:\npass\n", "IndentationError", "expected an indented block"},
		{"a, *b, *c = t\n", "SyntaxError", "multiple starred"},
		{"goto .nowhere\n", "SyntaxError", "unknown label"},
		{"nonlocal x\n", "SyntaxError", "nonlocal declaration not allowed at module level"},
		{"s = {1, 2}\n", "SyntaxError", "set literals"},
		{"from . import x\n", "SyntaxError", "relative imports"},
		{"yield 1\n", "SyntaxError", "'yield' outside function"},
		{"x += 1, 2 = 3\n", "SyntaxError", "invalid syntax"},
		{"s = 'abc\n", "SyntaxError", "unterminated string"},
		{"f(a=1, 2)\n", "SyntaxError", "positional argument follows keyword argument"},
		{"try:\n  pass\nx = 1\n", "SyntaxError", "expected 'except' or 'finally'"},
	}
	for _, tc := range cases {
		u, err := compileMode(t, tc.src, code.ModeExec)
		if err == nil {
			t.Errorf("%q: expected error, got unit %s", tc.src, ops(u))
			continue
		}
		var ce *compiler.Error
		if !errors.As(err, &ce) {
			t.Errorf("%q: unexpected error type %T", tc.src, err)
			continue
		}
		if ce.Kind() != tc.kind || !strings.Contains(ce.Message(), tc.msg) {
			t.Errorf("%q: got %s: %s, want %s containing %q", tc.src, ce.Kind(), ce.Message(), tc.kind, tc.msg)
		}
		if ce.NeedMore {
			t.Errorf("%q: batch compile must not ask for more input", tc.src)
		}
	}
}

func TestErrorFormatting(t *testing.T) {
	_, err := compileMode(t, "x = 1\ny = (1 +\n  * 2)\n", code.ModeExec)
	if err == nil {
		t.Fatal("expected error")
	}
	text := err.Error()
	for _, want := range []string{`File "test.kr", line 3`, "SyntaxError:", "^"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestInteractiveNeedMore(t *testing.T) {
	for _, src := range []string{
		"if x:\n",
		"f(1,\n",
		"s = '''abc\n",
		"def f():\n  return 1\n",
		"for i in y:\n  if i:\n",
	} {
		_, err := compileMode(t, src, code.ModeREPL)
		var ce *compiler.Error
		if !errors.As(err, &ce) || !ce.NeedMore {
			t.Errorf("%q: expected NeedMore, got %v", src, err)
		}
	}
	for _, src := range []string{"def f():\n  return 1\n\n", "x = 1\n", "x +\n"} {
		_, err := compileMode(t, src, code.ModeREPL)
		var ce *compiler.Error
		if errors.As(err, &ce) && ce.NeedMore {
			t.Errorf("%q: must not ask for more input", src)
		}
	}
}

func TestModes(t *testing.T) {
	u, err := compileMode(t, "1 + 2", code.ModeEval)
	if err != nil {
		t.Fatal(err)
	}
	if got := ops(u); got != "LOAD_INTEGER LOAD_INTEGER BINARY_OP RETURN_VALUE" {
		t.Fatalf("eval ops: %s", got)
	}
	if _, err := compileMode(t, "x = 1", code.ModeEval); err == nil {
		t.Fatal("eval accepts only expressions")
	}

	u, err = compileMode(t, "x = 1\nx\n", code.ModeREPL)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ops(u), "LOAD_GLOBAL PRINT_EXPR") {
		t.Fatalf("repl ops: %s", ops(u))
	}

	u, err = compileMode(t, "1\nx = 2\nx * 3\n", code.ModeCell)
	if err != nil {
		t.Fatal(err)
	}
	if got := ops(u); strings.Count(got, "PRINT_EXPR") != 1 || !strings.Contains(got, "BINARY_OP PRINT_EXPR") {
		t.Fatalf("cell ops: %s", got)
	}

	u, err = compileMode(t, `{"a": [1, -2.5, true, null], "b": "s"}`, code.ModeJSON)
	if err != nil {
		t.Fatal(err)
	}
	if err := code.Validate(u); err != nil {
		t.Fatal(err)
	}
	if _, err := compileMode(t, `{"a": x}`, code.ModeJSON); err == nil {
		t.Fatal("json accepts only literals")
	}
}

func TestCompileErrorReleasesNothingPartial(t *testing.T) {
	u, err := compileMode(t, "def f():\n  return 1\ndef g(:\n", code.ModeExec)
	if err == nil || u != nil {
		t.Fatalf("expected error without a unit, got %v %v", u, err)
	}
}
