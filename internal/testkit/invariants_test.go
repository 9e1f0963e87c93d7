package testkit_test

import (
	"bytes"
	"testing"

	"krait/internal/code"
	"krait/internal/testkit"
	"krait/internal/vm"
)

var programs = map[string]string{
	"loops": "total = 0\nfor i in range(10):\n    if i % 2:\n        continue\n    total += i\n",
	"closures": `
def outer(n):
    def inner(k=1):
        nonlocal n
        n += k
        return n
    return inner
`,
	"classes": `
class A:
    def m(self):
        try:
            return [x for x in range(3)]
        finally:
            pass
`,
	"generators": "def g():\n    yield 1\n    yield from (2, 3)\n",
}

func TestCompiledUnitsAreValid(t *testing.T) {
	for name, src := range programs {
		u, err := testkit.CompileAndCheck(name+".kr", src, code.ModeExec)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		u.Release()
	}
}

func TestHeapInvariantsAcrossCollections(t *testing.T) {
	m := vm.New(vm.Config{Stdout: &bytes.Buffer{}})
	mod := m.NewModule("__main__")
	u, err := testkit.CompileAndCheck("heap.kr", `
keep = {'xs': [1, 2, 3], 's': 'text'}
for i in range(200):
    a = [i]
    b = [a]
    a.append(b)
`, code.ModeExec)
	if err != nil {
		t.Fatal(err)
	}
	defer u.Release()
	if _, err := m.Execute(u, mod); err != nil {
		t.Fatal(err)
	}

	if err := testkit.CheckHeap(m.Heap); err != nil {
		t.Fatalf("before collection: %v", err)
	}
	if testkit.Unreachable(m.Heap, m) == 0 {
		t.Fatal("cycles from the loop should be garbage")
	}
	m.Collect()
	if err := testkit.CheckHeap(m.Heap); err != nil {
		t.Fatalf("after collection: %v", err)
	}
	if n := testkit.Unreachable(m.Heap, m); n != 0 {
		t.Fatalf("%d unreachable objects survived a full collection", n)
	}
}
