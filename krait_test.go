package krait_test

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"krait"
	"krait/internal/object"
	"krait/internal/trace"
)

func newEngine(t *testing.T, cfg krait.Config) (*krait.Engine, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	cfg.Stdout = out
	return krait.New(cfg), out
}

func TestExecAndEval(t *testing.T) {
	e, out := newEngine(t, krait.Config{})
	if err := e.Exec("x = 20\nprint('hi')\n", "main.kr"); err != nil {
		t.Fatal(err)
	}
	v, err := e.Eval("x * 2 + 2")
	if err != nil {
		t.Fatal(err)
	}
	if n, ok := e.AsInt(v); !ok || n != 42 {
		t.Fatalf("x*2+2 = %v (%v)", n, ok)
	}
	if out.String() != "hi\n" {
		t.Fatalf("stdout = %q", out.String())
	}
}

func TestErrorKinds(t *testing.T) {
	e, _ := newEngine(t, krait.Config{})
	cases := []struct {
		src  string
		mode krait.Mode
		kind krait.ErrorKind
	}{
		{"x = (", krait.ModeExec, krait.ErrCompile},
		{"if True:\n", krait.ModeREPL, krait.ErrNeedMoreInput},
		{"1 / 0\n", krait.ModeExec, krait.ErrRuntime},
	}
	for _, c := range cases {
		var err error
		code, cerr := e.Compile([]byte(c.src), "case.kr", c.mode)
		if cerr != nil {
			err = cerr
		} else {
			_, err = e.Execute(code, krait.Value(object.Nil))
			code.Release()
		}
		var ke *krait.Error
		if !errors.As(err, &ke) {
			t.Fatalf("%q: want *krait.Error, got %T %v", c.src, err, err)
		}
		if ke.Kind != c.kind {
			t.Errorf("%q: kind = %s, want %s", c.src, ke.Kind, c.kind)
		}
	}
}

func TestNeedMoreInputThenComplete(t *testing.T) {
	e, out := newEngine(t, krait.Config{})
	buf := "def f():\n"
	if err := e.RunCell(buf); !krait.IsNeedMoreInput(err) {
		t.Fatalf("want need-more-input, got %v", err)
	}
	buf += "    return 5\n\n"
	if err := e.RunCell(buf); err != nil {
		t.Fatal(err)
	}
	if err := e.RunCell("f()\n"); err != nil {
		t.Fatal(err)
	}
	if out.String() != "5\n" {
		t.Fatalf("echo = %q", out.String())
	}
}

func TestRuntimeTraceback(t *testing.T) {
	e, _ := newEngine(t, krait.Config{})
	err := e.Exec("def boom():\n    raise ValueError('nope')\nboom()\n", "tb.kr")
	var ke *krait.Error
	if !errors.As(err, &ke) {
		t.Fatalf("got %v", err)
	}
	exc, ok := ke.Exception()
	if !ok || exc.Type != "ValueError" {
		t.Fatalf("exception = %v", exc)
	}
	tb := ke.Traceback()
	if !strings.Contains(tb, "in boom") || !strings.HasSuffix(strings.TrimSpace(tb), "ValueError: nope") {
		t.Fatalf("traceback:\n%s", tb)
	}
}

func TestBindFuncAndCall(t *testing.T) {
	e, out := newEngine(t, krait.Config{})
	_, err := e.BindFunc(e.Main(), "host_add", 2, func(e *krait.Engine, args []krait.Value) (krait.Value, error) {
		a, _ := e.AsInt(args[0])
		b, _ := e.AsInt(args[1])
		return e.NewInt(a + b), nil
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Exec("print(host_add(2, 3))\ndef twice(s):\n    return s + s\n", "bind.kr"); err != nil {
		t.Fatal(err)
	}
	if out.String() != "5\n" {
		t.Fatalf("out = %q", out.String())
	}
	fn, err := e.Global("twice")
	if err != nil {
		t.Fatal(err)
	}
	v, err := e.Call(fn, e.NewStr("ab"))
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := e.AsStr(v); s != "abab" {
		t.Fatalf("twice('ab') = %q", s)
	}

	// ошибка хоста превращается в исключение скрипта
	_, err = e.BindFunc(e.Main(), "fail", 0, func(*krait.Engine, []krait.Value) (krait.Value, error) {
		return krait.None, fmt.Errorf("host failure")
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Exec("fail()\n", "fail.kr"); err == nil {
		t.Fatal("expected host error to surface")
	}
}

func TestImporterAndModules(t *testing.T) {
	srcs := map[string]string{"util": "def sq(x):\n    return x * x\n"}
	e, out := newEngine(t, krait.Config{
		Importer: func(name string) ([]byte, bool) {
			s, ok := srcs[name]
			return []byte(s), ok
		},
	})
	if err := e.Exec("import util\nprint(util.sq(7))\n", "imp.kr"); err != nil {
		t.Fatal(err)
	}
	if out.String() != "49\n" {
		t.Fatalf("out = %q", out.String())
	}
	if _, ok := e.Module("util"); !ok {
		t.Fatal("util not registered")
	}
	if _, ok := e.Module("os"); ok {
		t.Fatal("os registered without OSModules")
	}
}

func TestValuesRoundTrip(t *testing.T) {
	e, _ := newEngine(t, krait.Config{})
	if err := e.SetGlobal("xs", e.NewList(e.NewInt(1), e.NewFloat(2.5), e.NewStr("z"), e.NewBool(true))); err != nil {
		t.Fatal(err)
	}
	v, err := e.Eval("xs")
	if err != nil {
		t.Fatal(err)
	}
	s, err := e.Repr(v)
	if err != nil {
		t.Fatal(err)
	}
	if s != "[1, 2.5, 'z', True]" {
		t.Fatalf("repr = %s", s)
	}
	items, ok := e.AsItems(v)
	if !ok || len(items) != 4 || e.TypeName(items[1]) != "float" {
		t.Fatalf("items = %v", items)
	}
}

func TestCollectAndHeapDump(t *testing.T) {
	e, _ := newEngine(t, krait.Config{})
	if err := e.Exec("for i in range(50):\n    a = []\n    a.append(a)\n", "cyc.kr"); err != nil {
		t.Fatal(err)
	}
	if freed := e.Collect(); freed == 0 {
		t.Fatal("expected cycles to be reclaimed")
	}
	var buf bytes.Buffer
	if err := e.WriteHeapDump(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Fatal("empty heap dump")
	}
}

func TestTracerSpans(t *testing.T) {
	ring := trace.NewRingTracer(64, trace.LevelDebug)
	e, _ := newEngine(t, krait.Config{Tracer: ring})
	if err := e.Exec("x = 1\n", "t.kr"); err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, ev := range ring.Snapshot() {
		names[ev.Name] = true
	}
	for _, want := range []string{"compile", "execute"} {
		if !names[want] {
			t.Errorf("no %q span in %v", want, names)
		}
	}
}

func TestExecTrace(t *testing.T) {
	var tr bytes.Buffer
	e, _ := newEngine(t, krait.Config{ExecTrace: &tr})
	if err := e.Exec("x = 1\n", "x.kr"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(tr.String(), "@ x.kr:1") {
		t.Fatalf("exec trace:\n%s", tr.String())
	}
}
