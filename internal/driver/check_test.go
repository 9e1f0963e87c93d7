package driver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"krait/internal/code"
	"krait/internal/diag"
	"krait/internal/project"
	"krait/internal/source"
	"krait/internal/token"
)

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.kr", "x = 1\n")
	b := writeSource(t, dir, "sub/b.kr", "y = 2\n")
	writeSource(t, dir, "notes.txt", "skip")
	writeSource(t, dir, ".hidden/c.kr", "z = 3\n")

	got, err := Expand([]string{dir, a})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("Expand = %v", got)
	}
}

func TestCheckReportsPerFile(t *testing.T) {
	dir := t.TempDir()
	good := writeSource(t, dir, "good.kr", "def f(x):\n    return lambda: x\n")
	syn := writeSource(t, dir, "syn.kr", "x = (1,\ny = 2\n")
	lex := writeSource(t, dir, "lex.kr", "s = 'open\n")
	missing := filepath.Join(dir, "missing.kr")

	var mu sync.Mutex
	statuses := map[string]Status{}
	progress := func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		statuses[ev.File] = ev.Status
	}

	_, results, err := Check(context.Background(), []string{good, syn, lex, missing}, CheckOptions{Jobs: 2, MaxDiagnostics: 10, Progress: progress})
	if err != nil {
		t.Fatal(err)
	}
	if !results[0].OK() || results[0].Units != 3 {
		t.Fatalf("good.kr: ok=%v units=%d items=%v", results[0].OK(), results[0].Units, results[0].Bag.Items())
	}
	for i, want := range []diag.Code{0, 0, diag.LexUnterminatedString, diag.IOLoadFileError} {
		if want == 0 {
			continue
		}
		items := results[i].Bag.Items()
		if len(items) == 0 || items[0].Code != want {
			t.Errorf("%s: want %s, got %v", results[i].Path, want.ID(), items)
		}
	}
	if results[1].OK() {
		t.Fatal("syn.kr must fail")
	}
	if statuses[good] != StatusDone || statuses[syn] != StatusError || statuses[missing] != StatusError {
		t.Fatalf("statuses = %v", statuses)
	}

	s := Summarize(results)
	if s.Files != 4 || s.Failed != 3 {
		t.Fatalf("summary = %+v", s)
	}
	if len(s.Timing.Phases) == 0 || s.Timing.Phases[0].Name != "load" {
		t.Fatalf("timing = %+v", s.Timing)
	}
}

func TestCheckUsesCache(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewDiskCache(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	bad := writeSource(t, dir, "bad.kr", "if True:\nprint(1)\n")
	opts := CheckOptions{MaxDiagnostics: 10, Cache: cache}

	_, first, err := Check(context.Background(), []string{bad}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if first[0].Cached || first[0].OK() {
		t.Fatalf("first run: cached=%v ok=%v", first[0].Cached, first[0].OK())
	}
	_, second, err := Check(context.Background(), []string{bad}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !second[0].Cached {
		t.Fatal("second run must hit the cache")
	}
	a, b := first[0].Bag.Items(), second[0].Bag.Items()
	if len(a) != len(b) || a[0].Code != b[0].Code || a[0].Primary != b[0].Primary || a[0].Message != b[0].Message {
		t.Fatalf("cached diagnostics differ:\n%v\n%v", a, b)
	}

	// изменение содержимого даёт новый ключ
	writeSource(t, dir, "bad.kr", "if True:\n    print(1)\n")
	_, third, err := Check(context.Background(), []string{bad}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if third[0].Cached || !third[0].OK() {
		t.Fatalf("third run: cached=%v ok=%v", third[0].Cached, third[0].OK())
	}

	if err := cache.DropAll(); err != nil {
		t.Fatal(err)
	}
	var p CheckPayload
	if ok, _ := cache.Get(project.Hash("x", nil), &p); ok {
		t.Fatal("dropped cache must miss")
	}
}

func TestCheckCancelled(t *testing.T) {
	dir := t.TempDir()
	p := writeSource(t, dir, "a.kr", "x = 1\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := Check(ctx, []string{p}, CheckOptions{}); err == nil {
		t.Fatal("cancelled context must fail the check")
	}
}

func TestTokenize(t *testing.T) {
	p := writeSource(t, t.TempDir(), "t.kr", "x = 1 $\n")
	res, err := Tokenize(p, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Bag.HasErrors() {
		t.Fatal("'$' must be reported")
	}
	if last := res.Tokens[len(res.Tokens)-1]; last.Kind != token.EOF {
		t.Fatalf("last token = %s", last.Kind)
	}
}

func TestFileImporter(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writeSource(t, a, "util.kr", "A = 1\n")
	writeSource(t, b, "util.kr", "B = 1\n")
	writeSource(t, b, "pkg/__init__.kr", "P = 1\n")
	writeSource(t, b, "pkg/inner.kr", "I = 1\n")

	imp := FileImporter([]string{a, b})
	cases := map[string]string{"util": "A = 1", "pkg": "P = 1", "pkg.inner": "I = 1"}
	for name, want := range cases {
		src, ok := imp(name)
		if !ok || !strings.Contains(string(src), want) {
			t.Errorf("%s: got %q, %v", name, src, ok)
		}
	}
	for _, name := range []string{"nope", "../etc", "a/b"} {
		if _, ok := imp(name); ok {
			t.Errorf("%s must not resolve", name)
		}
	}
}

func TestCompileFile(t *testing.T) {
	p := writeSource(t, t.TempDir(), "c.kr", "x = 1\n")
	u, file, err := CompileFile(p, code.ModeExec)
	if err != nil {
		t.Fatal(err)
	}
	defer u.Release()
	if file.Path == "" || u.Name != "<module>" {
		t.Fatalf("unit %q file %q", u.Name, file.Path)
	}
}

func TestDiskCacheKeepsNotes(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := project.Hash("v", []byte("x = (\n"))
	bag := diag.NewBag(0)
	bag.Add(diag.NewError(diag.SynUnclosedDelimiter, source.Span{File: 1, Start: 4, End: 5}, "'(' was never closed").
		WithNote(source.Span{File: 1, Start: 0, End: 1}, "in this statement"))
	if err := cache.Put(key, bagToPayload("a.kr", bag)); err != nil {
		t.Fatal(err)
	}

	var p CheckPayload
	ok, err := cache.Get(key, &p)
	if err != nil || !ok {
		t.Fatalf("get: %v %v", ok, err)
	}
	restored := diag.NewBag(0)
	payloadToBag(&p, 7, restored)
	d := restored.Items()[0]
	if d.Primary.File != 7 || d.Code != diag.SynUnclosedDelimiter || len(d.Notes) != 1 || d.Notes[0].Span.File != 7 {
		t.Fatalf("restored = %+v", d)
	}

	// запись старой схемы читается как промах
	p.Schema = cacheSchema - 1
	if err := cache.Put(key, &p); err != nil {
		t.Fatal(err)
	}
	if ok, err := cache.Get(key, &p); ok || err != nil {
		t.Fatalf("old schema: %v %v", ok, err)
	}
}
