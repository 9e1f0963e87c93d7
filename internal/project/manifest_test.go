package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ManifestName), `
[run]
main = "src/main.kr"

[engine]
os_modules = true
gc_threshold = 500

[paths]
modules = ["lib", "/abs/mods"]
`)
	writeFile(t, filepath.Join(root, "src", "main.kr"), "print(1)\n")

	m, ok, err := Load(filepath.Join(root, "src"))
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if m.Root != root {
		t.Fatalf("root = %s", m.Root)
	}
	if m.Config.Engine.OSModules == nil || !*m.Config.Engine.OSModules {
		t.Fatal("os_modules not read")
	}
	if m.Config.Engine.StackSize != nil {
		t.Fatal("unset stack_size must stay nil")
	}
	if *m.Config.Engine.GCThreshold != 500 {
		t.Fatalf("gc_threshold = %d", *m.Config.Engine.GCThreshold)
	}
	main, err := m.MainPath()
	if err != nil || main != filepath.Join(root, "src", "main.kr") {
		t.Fatalf("main = %s, %v", main, err)
	}
	dirs := m.ModuleDirs()
	if len(dirs) != 2 || dirs[0] != filepath.Join(root, "lib") || dirs[1] != "/abs/mods" {
		t.Fatalf("dirs = %v", dirs)
	}
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"[run]\nmain = \"\"\n":          "[run].main is empty",
		"[engine]\nstack_size = 0\n":    "stack_size must be positive",
		"[engine]\ncolour = true\n":     "unknown keys",
		"[run\n":                        "failed to parse TOML",
		"[engine]\ngc_threshold = -1\n": "gc_threshold must be positive",
	}
	for content, want := range cases {
		p := filepath.Join(t.TempDir(), ManifestName)
		writeFile(t, p, content)
		_, err := Parse(p)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("%q: want error containing %q, got %v", content, want, err)
		}
	}
}

func TestHash(t *testing.T) {
	a := Hash("v1", []byte("x = 1"))
	if a.IsZero() || a != Hash("v1", []byte("x = 1")) {
		t.Fatal("hash must be stable and non-zero")
	}
	if a == Hash("v2", []byte("x = 1")) {
		t.Fatal("salt must change the digest")
	}
	if len(a.String()) != 64 {
		t.Fatalf("hex = %s", a.String())
	}
}
