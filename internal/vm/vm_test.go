package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"krait/internal/code"
	"krait/internal/compiler"
	"krait/internal/source"
	"krait/internal/vm"
)

type harness struct {
	t   *testing.T
	vm  *vm.VM
	out *bytes.Buffer
	mod vm.Value
}

func newHarness(t *testing.T, cfg vm.Config) *harness {
	t.Helper()
	out := &bytes.Buffer{}
	cfg.Stdout = out
	m := vm.New(cfg)
	return &harness{t: t, vm: m, out: out, mod: m.NewModule("__main__")}
}

func (h *harness) compile(src string, mode code.Mode) *code.Unit {
	h.t.Helper()
	u, err := compiler.Compile(source.NewFile("test.kr", []byte(src)), compiler.Options{Mode: mode})
	if err != nil {
		h.t.Fatalf("compile %q: %v", src, err)
	}
	return u
}

// exec runs src as module code and returns the uncaught error, if any.
func (h *harness) exec(src string) error {
	h.t.Helper()
	u := h.compile(src, code.ModeExec)
	defer u.Release()
	_, err := h.vm.Execute(u, h.mod)
	return err
}

func (h *harness) mustExec(src string) {
	h.t.Helper()
	if err := h.exec(src); err != nil {
		var tb string
		if e, ok := err.(*vm.Exception); ok {
			tb = e.Traceback()
		}
		h.t.Fatalf("exec failed: %v\n%s", err, tb)
	}
}

// eval returns repr() of an expression evaluated in the main module.
func (h *harness) eval(expr string) string {
	h.t.Helper()
	u := h.compile(expr, code.ModeEval)
	defer u.Release()
	v, err := h.vm.Execute(u, h.mod)
	if err != nil {
		h.t.Fatalf("eval %q: %v", expr, err)
	}
	s, err := h.vm.Repr(v)
	if err != nil {
		h.t.Fatalf("repr: %v", err)
	}
	return s
}

func (h *harness) output() string { return h.out.String() }

func run(t *testing.T, src string) string {
	t.Helper()
	h := newHarness(t, vm.Config{})
	h.mustExec(src)
	return h.output()
}

func expectOutput(t *testing.T, src, want string) {
	t.Helper()
	if got := run(t, src); got != want {
		t.Fatalf("output mismatch\nsource:\n%s\n got: %q\nwant: %q", src, got, want)
	}
}

func TestWhileLoopScenario(t *testing.T) {
	h := newHarness(t, vm.Config{})
	h.mustExec("x = 1\nwhile x < 5:\n  x = x + 1\n")
	if got := h.eval("x"); got != "5" {
		t.Fatalf("x = %s, want 5", got)
	}
}

func TestDefaultArgumentScenario(t *testing.T) {
	h := newHarness(t, vm.Config{})
	h.mustExec("def f(a, b=2): return a+b\n")
	if got := h.eval("f(1)"); got != "3" {
		t.Fatalf("f(1) = %s", got)
	}
	if got := h.eval("f(1, b=10)"); got != "11" {
		t.Fatalf("f(1, b=10) = %s", got)
	}
}

func TestGeneratorScenario(t *testing.T) {
	expectOutput(t, `
def g():
    yield 1
    yield 2
    return

it = g()
print(next(it), next(it))
try:
    next(it)
except StopIteration:
    print("exhausted")
print(next(it, "dflt"))
`, "1 2\nexhausted\ndflt\n")
}

func TestExceptionScenario(t *testing.T) {
	h := newHarness(t, vm.Config{})
	h.mustExec(`
class Foo(Exception):
    pass

class Bar(Exception):
    pass

def depth():
    return 7

caught = None
try:
    raise Foo('x')
except Foo as e:
    caught = str(e)
`)
	if got := h.eval("caught"); got != "'x'" {
		t.Fatalf("caught = %s", got)
	}

	err := h.exec(`
try:
    raise Bar('y')
except Foo:
    print("wrong handler")
`)
	if err == nil {
		t.Fatal("expected Bar to escape")
	}
	if !vm.IsExceptionType(err, "Bar") {
		t.Fatalf("unexpected error %v", err)
	}
	if h.vm.Depth() != 0 || h.vm.SP() != 0 {
		t.Fatalf("stacks not reset: depth=%d sp=%d", h.vm.Depth(), h.vm.SP())
	}
	// после ошибки движок продолжает работать
	if got := h.eval("depth()"); got != "7" {
		t.Fatalf("depth() = %s", got)
	}
}

func TestUncaughtTraceback(t *testing.T) {
	h := newHarness(t, vm.Config{})
	err := h.exec("def inner():\n    return 1 / 0\n\ndef outer():\n    return inner()\n\nouter()\n")
	e, ok := err.(*vm.Exception)
	if !ok {
		t.Fatalf("want *vm.Exception, got %T %v", err, err)
	}
	if e.Type != "ZeroDivisionError" {
		t.Fatalf("type = %s", e.Type)
	}
	tb := e.Traceback()
	for _, want := range []string{"Traceback (most recent call last):", "in outer", "in inner", "test.kr"} {
		if !strings.Contains(tb, want) {
			t.Fatalf("traceback lacks %q:\n%s", want, tb)
		}
	}
}

func TestClosuresAndNonlocal(t *testing.T) {
	expectOutput(t, `
def counter():
    n = 0
    def inc():
        nonlocal n
        n += 1
        return n
    return inc

c = counter()
c()
c()
print(c())

def late():
    fs = []
    x = 1
    fs.append(lambda: x)
    x = 2
    return fs[0]()
print(late())
`, "3\n2\n")
}

func TestFinallyControlFlow(t *testing.T) {
	expectOutput(t, `
def f():
    try:
        return "body"
    finally:
        print("cleanup")

print(f())

for i in range(5):
    try:
        if i == 1:
            continue
        if i == 3:
            break
        print("i", i)
    finally:
        print("fin", i)
`, "cleanup\nbody\ni 0\nfin 0\nfin 1\ni 2\nfin 2\nfin 3\n")
}

func TestNestedExceptionHandlers(t *testing.T) {
	expectOutput(t, `
def risky(n):
    if n % 2:
        raise ValueError("odd %d" % n)
    return n

out = []
for n in range(4):
    try:
        try:
            out.append(risky(n))
        except KeyError:
            out.append("key")
    except ValueError as e:
        out.append(str(e))
print(out)
`, "[0, 'odd 1', 2, 'odd 3']\n")
}

func TestClassesAndInheritance(t *testing.T) {
	expectOutput(t, `
class Animal:
    kind = "animal"
    def __init__(self, name):
        self.name = name
    def speak(self):
        return self.name + " makes a sound"
    def __repr__(self):
        return "Animal(" + repr(self.name) + ")"

class Dog(Animal):
    def speak(self):
        return super().speak() + ": woof"

d = Dog("rex")
print(d.speak())
print(isinstance(d, Animal), issubclass(Dog, Animal), Dog.kind)
print([Animal("a")])
`, "rex makes a sound: woof\nTrue True animal\n[Animal('a')]\n")
}

func TestPropertiesAndStaticMethods(t *testing.T) {
	expectOutput(t, `
class Temp:
    def __init__(self, c):
        self._c = c
    @property
    def f(self):
        return self._c * 9 / 5 + 32
    @staticmethod
    def unit():
        return "C"
    @classmethod
    def zero(cls):
        return cls(0)

print(Temp(100).f, Temp.unit(), Temp.zero().f)
`, "212.0 C 32.0\n")
}

func TestWithStatement(t *testing.T) {
	expectOutput(t, `
class Ctx:
    def __enter__(self):
        print("enter")
        return 5
    def __exit__(self, t, v, tb):
        print("exit", t is not None)
        return True

with Ctx() as v:
    print("body", v)
    raise ValueError("swallowed")
print("after")
`, "enter\nbody 5\nexit True\nafter\n")
}

func TestComprehensions(t *testing.T) {
	h := newHarness(t, vm.Config{})
	h.mustExec("xs = [1, 2, 3, 4]\n")
	cases := map[string]string{
		"[x * x for x in xs if x % 2 == 0]":        "[4, 16]",
		"{x: str(x) for x in xs if x > 2}":         "{3: '3', 4: '4'}",
		"sum(x for x in xs)":                       "10",
		"[(a, b) for a in range(2) for b in 'ab']": "[(0, 'a'), (0, 'b'), (1, 'a'), (1, 'b')]",
	}
	for expr, want := range cases {
		if got := h.eval(expr); got != want {
			t.Errorf("%s = %s, want %s", expr, got, want)
		}
	}
}

func TestUnpacking(t *testing.T) {
	expectOutput(t, `
a, b = 1, 2
a, b = b, a
first, *rest = [1, 2, 3]
print(a, b, first, rest)
try:
    x, y = [1, 2, 3]
except ValueError as e:
    print(e)
`, "2 1 1 [2, 3]\ntoo many values to unpack (expected 2)\n")
}

func TestIntegerOverflowRaises(t *testing.T) {
	h := newHarness(t, vm.Config{})
	err := h.exec("x = 9223372036854775807\nx = x + 1\n")
	if !vm.IsExceptionType(err, "OverflowError") {
		t.Fatalf("want OverflowError, got %v", err)
	}
}

func TestRecursionLimit(t *testing.T) {
	h := newHarness(t, vm.Config{})
	err := h.exec("def f(n):\n    return f(n + 1)\nf(0)\n")
	if !vm.IsExceptionType(err, "RecursionError") {
		t.Fatalf("want RecursionError, got %v", err)
	}
	if h.vm.Depth() != 0 {
		t.Fatalf("frames left: %d", h.vm.Depth())
	}
}

func TestStackOverflowIsCatchable(t *testing.T) {
	h := newHarness(t, vm.Config{StackSize: 64})
	h.mustExec(`
def deep(n):
    return deep(n + 1)
try:
    deep(0)
    hit = False
except RuntimeError:
    hit = True
`)
	if got := h.eval("hit"); got != "True" {
		t.Fatalf("hit = %s", got)
	}
}
