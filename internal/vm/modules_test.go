package vm_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"krait/internal/code"
	"krait/internal/object"
	"krait/internal/vm"
)

func mapImporter(files map[string]string) vm.Importer {
	return func(name string) ([]byte, bool) {
		src, ok := files[name]
		return []byte(src), ok
	}
}

func TestImportFromImporter(t *testing.T) {
	loads := 0
	files := map[string]string{
		"util":     "def twice(x):\n    return x * 2\n_hidden = 1\nvalue = 21\n",
		"pkg":      "",
		"pkg.leaf": "name = 'leaf'\n",
		"limited":  "__all__ = ['a']\na = 1\nb = 2\n",
	}
	h := newHarness(t, vm.Config{Importer: func(name string) ([]byte, bool) {
		loads++
		return mapImporter(files)(name)
	}})
	h.mustExec(`
import util
import util
from util import twice as tw
import pkg.leaf
from pkg import leaf
from limited import *
r = tw(util.value)
`)
	checks := []evalCase{
		{"r", "42"},
		{"pkg.leaf.name", "'leaf'"},
		{"leaf.name", "'leaf'"},
		{"util.__name__", "'util'"},
		{"util.__file__", "'util.kr'"},
		{"a", "1"},
	}
	for _, c := range checks {
		if got := h.eval(c.expr); got != c.want {
			t.Errorf("%s = %s, want %s", c.expr, got, c.want)
		}
	}
	if loads != 4 {
		t.Errorf("importer called %d times, want 4", loads)
	}
	if err := h.exec("b\n"); !vm.IsExceptionType(err, "NameError") {
		t.Errorf("__all__ not honoured: %v", err)
	}
}

func TestImportErrors(t *testing.T) {
	files := map[string]string{
		"broken": "def f(:\n",
		"raises": "x = 1\nraise ValueError('boom')\n",
	}
	h := newHarness(t, vm.Config{Importer: mapImporter(files)})
	cases := []struct {
		src  string
		kind string
	}{
		{"import missing", "ImportError"},
		{"from util import nope", "ImportError"},
		{"import broken", "SyntaxError"},
		{"import raises", "ValueError"},
	}
	for _, c := range cases {
		if err := h.exec(c.src + "\n"); !vm.IsExceptionType(err, c.kind) {
			t.Errorf("%s: want %s, got %v", c.src, c.kind, err)
		}
	}
	// модуль с ошибкой не остаётся зарегистрированным
	if _, ok := h.vm.Module("raises"); ok {
		t.Error("failed module stayed registered")
	}
}

func TestCircularImport(t *testing.T) {
	files := map[string]string{
		"a": "import b\nname = 'a'\n",
		"b": "import a\nname = 'b'\n",
	}
	h := newHarness(t, vm.Config{Importer: mapImporter(files)})
	h.mustExec("import a\n")
	if got := h.eval("a.b.name + a.name"); got != "'ba'" {
		t.Fatalf("got %s", got)
	}
}

func TestJSONModule(t *testing.T) {
	checkEval(t, "import json\n", []evalCase{
		{"json.dumps({'a': [1, 2.5, None, True]})", `'{"a": [1, 2.5, null, true]}'`},
		{"json.dumps('é\"')", `'"\\u00e9\\""'`},
		{"json.dumps({2: 'x', 'b': False}, sort_keys=True)", `'{"2": "x", "b": false}'`},
		{"json.dumps([1, [2]], indent=2)", `'[\n  1,\n  [\n    2\n  ]\n]'`},
		{"json.loads('{\"x\": [1, 2], \"y\": null}')", "{'x': [1, 2], 'y': None}"},
		{"json.loads('true')", "True"},
		{"json.loads(json.dumps({'k': 'v'}))['k']", "'v'"},
	})
}

func TestJSONErrors(t *testing.T) {
	h := newHarness(t, vm.Config{})
	h.mustExec("import json\nxs = []\nxs.append(xs)\n")
	cases := []struct {
		src  string
		kind string
	}{
		{"json.dumps(xs)", "ValueError"},
		{"json.dumps(object())", "TypeError"},
		{"json.dumps({(1, 2): 3})", "TypeError"},
		{"json.loads('{bad')", "ValueError"},
		{"json.loads('1 + 2')", "ValueError"},
	}
	for _, c := range cases {
		if err := h.exec(c.src + "\n"); !vm.IsExceptionType(err, c.kind) {
			t.Errorf("%s: want %s, got %v", c.src, c.kind, err)
		}
	}
}

func TestMathModule(t *testing.T) {
	checkEval(t, "import math\n", []evalCase{
		{"math.sqrt(16)", "4.0"},
		{"math.floor(2.7)", "2"},
		{"math.ceil(2.1)", "3"},
		{"math.gcd(12, 18)", "6"},
		{"math.factorial(5)", "120"},
		{"math.log(8, 2)", "3.0"},
		{"math.isclose(0.1 + 0.2, 0.3)", "True"},
		{"math.pi > 3.14", "True"},
		{"math.isnan(math.nan)", "True"},
	})
	h := newHarness(t, vm.Config{})
	h.mustExec("import math\n")
	for _, src := range []string{"math.sqrt(-1)", "math.log(0)", "math.factorial(-1)"} {
		if err := h.exec(src + "\n"); !vm.IsExceptionType(err, "ValueError") {
			t.Errorf("%s: want ValueError, got %v", src, err)
		}
	}
}

func TestGCModule(t *testing.T) {
	checkEval(t, "import gc\ngc.disable()\noff = gc.isenabled()\ngc.enable()\n", []evalCase{
		{"off", "False"},
		{"gc.isenabled()", "True"},
		{"gc.collect() >= 0", "True"},
		{"gc.stats()['live'] > 0", "True"},
		{"gc.stats()['collections'] >= 1", "True"},
	})
}

func TestOSModulesNeedConfig(t *testing.T) {
	h := newHarness(t, vm.Config{})
	for _, name := range []string{"os", "sys", "time"} {
		if err := h.exec("import " + name + "\n"); !vm.IsExceptionType(err, "ImportError") {
			t.Errorf("import %s: want ImportError, got %v", name, err)
		}
	}
}

func TestOSModules(t *testing.T) {
	rt := vm.NewTestRuntime([]string{"script.kr", "-v"})
	rt.Env["HOME"] = "/home/kr"
	h := newHarness(t, vm.Config{OSModules: true, Runtime: rt, Path: []string{"lib"}})
	h.mustExec(`
import os
import sys
import time
t0 = time.perf_counter()
time.sleep(1.5)
elapsed = time.perf_counter() - t0
`)
	checkEvalOn(t, h, []evalCase{
		{"os.getcwd()", "'/work'"},
		{"os.getpid()", "4242"},
		{"os.getenv('HOME')", "'/home/kr'"},
		{"os.getenv('NOPE', 'd')", "'d'"},
		{"len(os.uname())", "5"},
		{"sys.argv", "['script.kr', '-v']"},
		{"sys.path", "['lib']"},
		{"sys.version.startswith('krait')", "True"},
		{"elapsed", "1.5"},
		{"time.time()", "1700000001.5"},
	})
	if rt.Slept != 1500*time.Millisecond {
		t.Errorf("slept %v", rt.Slept)
	}
}

func checkEvalOn(t *testing.T, h *harness, cases []evalCase) {
	t.Helper()
	for _, c := range cases {
		if got := h.eval(c.expr); got != c.want {
			t.Errorf("%s = %s, want %s", c.expr, got, c.want)
		}
	}
}

func TestBindNative(t *testing.T) {
	h := newHarness(t, vm.Config{})
	host := h.vm.NewModule("host")
	var seen []string
	_, err := h.vm.BindNative(host, "log", 1, func(m *vm.VM, args, _ []vm.Value) (vm.Value, error) {
		s, err := m.Str(args[0])
		if err != nil {
			return object.Nil, err
		}
		seen = append(seen, s)
		return m.NewInt(int64(len(seen))), nil
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	h.mustExec("import host\nhost.log('a')\nn = host.log(2)\n")
	if got := h.eval("n"); got != "2" {
		t.Fatalf("n = %s", got)
	}
	if strings.Join(seen, ",") != "a,2" {
		t.Fatalf("seen %v", seen)
	}
	if err := h.exec("host.log()\n"); !vm.IsExceptionType(err, "TypeError") {
		t.Fatalf("arity not checked: %v", err)
	}
}

func TestBindNativeMethod(t *testing.T) {
	h := newHarness(t, vm.Config{})
	h.mustExec("class Box:\n    def __init__(self, v):\n        self.v = v\n")
	u := h.compile("Box", code.ModeEval)
	cls, err := h.vm.Execute(u, h.mod)
	u.Release()
	if err != nil {
		t.Fatal(err)
	}
	_, err = h.vm.BindNative(cls, "describe", 1, func(m *vm.VM, args, _ []vm.Value) (vm.Value, error) {
		self, err := m.Repr(args[0])
		if err != nil {
			return object.Nil, err
		}
		return m.NewStr(m.TypeName(args[0]) + ":" + self[:1] + ":" + m.TypeName(args[1])), nil
	}, true)
	if err != nil {
		t.Fatal(err)
	}
	if got := h.eval("Box(3).describe(1.5)"); got != "'Box:<:float'" {
		t.Fatalf("describe = %s", got)
	}
	if _, err := h.vm.BindNative(h.vm.NewInt(1), "x", 0, nil, false); err == nil {
		t.Fatal("binding to an int succeeded")
	}
}

func TestExecTracer(t *testing.T) {
	var buf bytes.Buffer
	tr := vm.NewExecTracer(&buf)
	h := newHarness(t, vm.Config{Exec: tr})
	h.mustExec("x = 1\ndef f():\n    return x\nf()\n")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != tr.Lines() {
		t.Fatalf("%d lines, tracer counted %d", len(lines), tr.Lines())
	}
	if !strings.HasPrefix(lines[0], "[depth=1] <module> ip0 ") || !strings.HasSuffix(lines[0], "@ test.kr:1") {
		t.Fatalf("first line %q", lines[0])
	}
	var inner bool
	for _, l := range lines {
		if strings.HasPrefix(l, "[depth=2] f ") && strings.HasSuffix(l, "@ test.kr:3") {
			inner = true
		}
	}
	if !inner {
		t.Fatalf("no depth=2 line for f:\n%s", buf.String())
	}

	limited := vm.NewExecTracer(&bytes.Buffer{})
	limited.Limit = 3
	h2 := newHarness(t, vm.Config{Exec: limited})
	h2.mustExec("for i in range(10):\n    pass\n")
	if limited.Lines() != 3 {
		t.Fatalf("limit ignored: %d", limited.Lines())
	}
}

func TestHeapDumpRoundTrip(t *testing.T) {
	h := newHarness(t, vm.Config{})
	h.mustExec("import math\nxs = [[i] for i in range(50)]\n")
	var buf bytes.Buffer
	if err := h.vm.WriteHeapDump(&buf); err != nil {
		t.Fatal(err)
	}
	d, err := vm.ReadHeapDump(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if d.Live != h.vm.Heap.Live() {
		t.Fatalf("live %d, heap says %d", d.Live, h.vm.Heap.Live())
	}
	var lists int
	for _, tc := range d.Types {
		if tc.Type == "list" {
			lists = tc.Count
		}
	}
	if lists < 51 {
		t.Fatalf("list count %d", lists)
	}
	if !strings.Contains(strings.Join(d.Modules, " "), "math") {
		t.Fatalf("modules %v", d.Modules)
	}
	if _, err := vm.ReadHeapDump(strings.NewReader("junk")); err == nil {
		t.Fatal("junk decoded")
	}
}

func TestCollectReclaimsCycles(t *testing.T) {
	h := newHarness(t, vm.Config{})
	src := "a = []\na.append(a)\nd = {}\nd['self'] = d\ndel a\ndel d\n"
	// первый прогон создаёт всё, что переживает сборку
	h.mustExec(src)
	h.vm.Collect()
	before := h.vm.Heap.Stats().Blocks()

	h.mustExec(src)
	h.vm.Collect()
	if after := h.vm.Heap.Stats().Blocks(); after != before {
		t.Fatalf("blocks %d -> %d", before, after)
	}
}

func TestCollectKeepsReachable(t *testing.T) {
	h := newHarness(t, vm.Config{})
	h.mustExec("keep = {'k': [1, 2, (3, 'x')]}\nkeep['me'] = keep\n")
	for range 3 {
		h.vm.Collect()
	}
	if got := h.eval("keep['k']"); got != "[1, 2, (3, 'x')]" {
		t.Fatalf("keep = %s", got)
	}
}

func TestShortLivedAllocationsStayBounded(t *testing.T) {
	peak := func(n int) int {
		h := newHarness(t, vm.Config{})
		h.mustExec(fmt.Sprintf("for i in range(%d):\n    x = [i, i]\n", n))
		return h.vm.Heap.Stats().PeakArenas()
	}
	small, large := peak(10_000), peak(100_000)
	if large > 2*small+2 {
		t.Fatalf("peak arenas grew with iterations: %d -> %d", small, large)
	}
}

func TestOnDeleteHook(t *testing.T) {
	var deleted int
	h := newHarness(t, vm.Config{OnDelete: func(object.Value, *object.Object) { deleted++ }})
	h.mustExec("for i in range(100):\n    x = [i]\nx = None\n")
	h.vm.Collect()
	if deleted < 100 {
		t.Fatalf("hook saw %d objects", deleted)
	}
}

func TestGeneratorSurvivesCollection(t *testing.T) {
	h := newHarness(t, vm.Config{GCThreshold: 16})
	h.mustExec(`
def gen():
    acc = []
    for i in range(200):
        acc.append([i])
        yield len(acc)

total = 0
for n in gen():
    total += n
`)
	if got := h.eval("total"); got != "20100" {
		t.Fatalf("total = %s", got)
	}
	if h.vm.GC.Stats().Collections == 0 {
		t.Fatal("no collections ran")
	}
}
