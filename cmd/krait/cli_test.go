package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"krait"
	"krait/internal/code"
	"krait/internal/trace"
)

func init() {
	color.NoColor = true
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func newRunCmd() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := &cobra.Command{Use: "run", RunE: runExecution}
	addEngineFlags(cmd)
	cmd.Flags().String("exec-trace", "", "")
	cmd.Flags().String("heap-dump", "", "")
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	return cmd, &stdout, &stderr
}

func TestEngineSettingsFlagsOverrideManifest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "krait.toml"), `
[engine]
os_modules = true
stack_size = 512
gc_threshold = 100

[paths]
modules = ["lib"]
`)
	cmd, _, _ := newRunCmd()
	if err := cmd.Flags().Set("gc-threshold", "7"); err != nil {
		t.Fatal(err)
	}
	s, err := loadEngineSettings(cmd, root, root)
	if err != nil {
		t.Fatal(err)
	}
	if !s.OSModules || s.StackSize != 512 || s.GCThreshold != 7 {
		t.Fatalf("settings = %+v", s)
	}
	want := []string{root, filepath.Join(root, "lib")}
	if len(s.ModuleDirs) != 2 || s.ModuleDirs[0] != want[0] || s.ModuleDirs[1] != want[1] {
		t.Fatalf("module dirs = %v, want %v", s.ModuleDirs, want)
	}

	// явный ноль из флага тоже побеждает
	if err := cmd.Flags().Set("os-modules", "false"); err != nil {
		t.Fatal(err)
	}
	if s, err = loadEngineSettings(cmd, root, ""); err != nil || s.OSModules {
		t.Fatalf("os-modules flag ignored: %+v %v", s, err)
	}
}

func TestRunScriptWithImportAndArgs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "helper.kr"), "def twice(x):\n    return x * 2\n")
	script := filepath.Join(dir, "main.kr")
	writeFile(t, script, "import sys\nimport helper\nprint(helper.twice(21), sys.argv[1:])\n")

	cmd, stdout, stderr := newRunCmd()
	if err := cmd.Flags().Set("os-modules", "true"); err != nil {
		t.Fatal(err)
	}
	if err := runExecution(cmd, []string{script, "a", "b"}); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr)
	}
	if got := stdout.String(); got != "42 ['a', 'b']\n" {
		t.Fatalf("stdout = %q", got)
	}
}

func TestRunReportsErrors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"syntax.kr":  "x = (1,\n",
		"runtime.kr": "def f():\n    return 1 / 0\nf()\n",
	}
	want := map[string]string{
		"syntax.kr":  "syntax.kr",
		"runtime.kr": "ZeroDivisionError",
	}
	for name, src := range cases {
		path := filepath.Join(dir, name)
		writeFile(t, path, src)
		cmd, _, stderr := newRunCmd()
		err := runExecution(cmd, []string{path})
		var ee *exitError
		if !errors.As(err, &ee) || ee.code != 1 {
			t.Fatalf("%s: err = %v", name, err)
		}
		if !strings.Contains(stderr.String(), want[name]) {
			t.Fatalf("%s: stderr = %q", name, stderr.String())
		}
	}
}

func TestRunHeapDumpAndHeapstat(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "main.kr")
	writeFile(t, script, "xs = [[i] for i in range(50)]\n")
	dump := filepath.Join(dir, "heap.mp")

	cmd, _, stderr := newRunCmd()
	if err := cmd.Flags().Set("heap-dump", dump); err != nil {
		t.Fatal(err)
	}
	if err := runExecution(cmd, []string{script}); err != nil {
		t.Fatalf("run: %v\n%s", err, stderr)
	}

	hs := &cobra.Command{Use: "dump", RunE: runHeapstatDump}
	hs.Flags().String("format", "pretty", "")
	hs.Flags().Int("top", 0, "")
	var out bytes.Buffer
	hs.SetOut(&out)
	if err := runHeapstatDump(hs, []string{dump}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "live objects") || !strings.Contains(out.String(), "list") {
		t.Fatalf("heapstat output:\n%s", out.String())
	}
}

func newCheckCmd() (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{Use: "check", RunE: runCheck}
	cmd.PersistentFlags().Int("max-diagnostics", 100, "")
	cmd.PersistentFlags().Bool("quiet", true, "")
	cmd.Flags().Int("jobs", 1, "")
	cmd.Flags().Bool("no-cache", true, "")
	cmd.Flags().Bool("clear-cache", false, "")
	cmd.Flags().String("ui", "off", "")
	cmd.Flags().String("format", "pretty", "")
	cmd.Flags().String("path-mode", "basename", "")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	return cmd, &out
}

func TestCheckFormats(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ok.kr"), "x = 1\n")
	writeFile(t, filepath.Join(dir, "bad.kr"), "x = 1\n  y = 2\n")

	for format, want := range map[string]string{
		"pretty": "bad.kr:2:",
		"short":  "error IND",
		"json":   `"code": "IND`,
	} {
		cmd, out := newCheckCmd()
		if err := cmd.Flags().Set("format", format); err != nil {
			t.Fatal(err)
		}
		err := runCheck(cmd, []string{dir})
		var ee *exitError
		if !errors.As(err, &ee) {
			t.Fatalf("%s: err = %v", format, err)
		}
		if !strings.Contains(out.String(), want) {
			t.Fatalf("%s: output missing %q:\n%s", format, want, out.String())
		}
		if strings.Contains(out.String(), "ok.kr") {
			t.Fatalf("%s: clean file reported:\n%s", format, out.String())
		}
	}

	cmd, _ := newCheckCmd()
	if err := cmd.Flags().Set("format", "xml"); err != nil {
		t.Fatal(err)
	}
	if err := runCheck(cmd, []string{dir}); err == nil || errors.As(err, new(*exitError)) {
		t.Fatalf("bad format: %v", err)
	}
}

func TestLineREPL(t *testing.T) {
	var out, errw bytes.Buffer
	engine := krait.New(krait.Config{Stdout: &out})
	in := strings.NewReader("x = 2\nif x:\n    print('yes')\n\nx * 21\nundefined\n")
	if err := lineREPL(in, &out, &errw, engine, false, ""); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "yes\n42\n" {
		t.Fatalf("stdout = %q", got)
	}
	if !strings.Contains(errw.String(), "NameError") {
		t.Fatalf("stderr = %q", errw.String())
	}
}

func TestParseCompileMode(t *testing.T) {
	m, err := parseCompileMode("eval")
	if err != nil || m != code.ModeEval {
		t.Fatalf("eval -> %v, %v", m, err)
	}
	if _, err := parseCompileMode("bogus"); err == nil {
		t.Fatal("bogus mode accepted")
	}
}

func TestSplitLastLine(t *testing.T) {
	head, last := splitLastLine("Traceback:\n  File x\nValueError: bad")
	if head != "Traceback:\n  File x" || last != "ValueError: bad" {
		t.Fatalf("split = %q / %q", head, last)
	}
	if head, last = splitLastLine("one"); head != "" || last != "one" {
		t.Fatalf("split single = %q / %q", head, last)
	}
}

func TestProgressWanted(t *testing.T) {
	cases := []struct {
		ui, format string
		quiet      bool
		want       bool
	}{
		{"on", "pretty", false, true},
		{"ON", "short", false, true},
		{"on", "json", false, false},
		{"on", "pretty", true, false},
		{"off", "pretty", false, false},
	}
	for _, tc := range cases {
		got, err := progressWanted(tc.ui, tc.format, tc.quiet)
		if err != nil || got != tc.want {
			t.Errorf("progressWanted(%q, %q, %v) = %v, %v", tc.ui, tc.format, tc.quiet, got, err)
		}
	}
	if _, err := progressWanted("sometimes", "pretty", false); err == nil {
		t.Error("invalid --ui accepted")
	}
}

func TestTokenizeNoLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.kr")
	writeFile(t, path, "if x:\n    y\n")

	run := func(noLayout bool) string {
		cmd := &cobra.Command{Use: "tokenize", RunE: runTokenize}
		cmd.PersistentFlags().Int("max-diagnostics", 100, "")
		cmd.Flags().String("format", "json", "")
		cmd.Flags().Bool("no-layout", noLayout, "")
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		if err := runTokenize(cmd, []string{path}); err != nil {
			t.Fatal(err)
		}
		return out.String()
	}
	if full := run(false); !strings.Contains(full, `"indent"`) {
		t.Fatalf("layout tokens missing:\n%s", full)
	}
	if bare := run(true); strings.Contains(bare, `"indent"`) || strings.Contains(bare, `"newline"`) {
		t.Fatalf("layout tokens kept:\n%s", bare)
	}
}

func TestVersionFormats(t *testing.T) {
	run := func(args ...string) string {
		cmd := &cobra.Command{Use: "version", RunE: runVersion}
		cmd.Flags().Bool("hash", false, "")
		cmd.Flags().Bool("message", false, "")
		cmd.Flags().Bool("date", false, "")
		cmd.Flags().Bool("full", false, "")
		cmd.Flags().String("format", "pretty", "")
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatal(err)
		}
		var out bytes.Buffer
		cmd.SetOut(&out)
		if err := runVersion(cmd, nil); err != nil {
			t.Fatal(err)
		}
		return out.String()
	}

	if got := run(); !strings.HasPrefix(got, "krait ") || strings.Contains(got, "commit:") {
		t.Fatalf("plain version:\n%s", got)
	}
	if got := run("--full"); !strings.Contains(got, "commit:") || !strings.Contains(got, "built:") {
		t.Fatalf("full version:\n%s", got)
	}
	got := run("--format", "json", "--hash")
	if !strings.Contains(got, `"tool": "krait"`) || strings.Contains(got, "git_message") {
		t.Fatalf("json version:\n%s", got)
	}
}

func TestTraceOptionsFromFlags(t *testing.T) {
	parse := func(args ...string) traceOptions {
		t.Helper()
		fs := pflag.NewFlagSet("t", pflag.ContinueOnError)
		fs.String("trace", "", "")
		fs.String("trace-level", "off", "")
		fs.String("trace-mode", "stream", "")
		fs.Int("trace-ring-size", 16, "")
		fs.Duration("trace-heartbeat", 0, "")
		if err := fs.Parse(args); err != nil {
			t.Fatal(err)
		}
		opts, err := traceOptionsFromFlags(fs)
		if err != nil {
			t.Fatal(err)
		}
		return opts
	}

	if opts := parse(); opts.level != trace.LevelOff || opts.output != "" {
		t.Fatalf("default = %+v", opts)
	}
	// --trace без уровня включает фазы
	if opts := parse("--trace", "out.log"); opts.level != trace.LevelPhase || opts.mode != trace.ModeStream {
		t.Fatalf("bare trace = %+v", opts)
	}
	opts := parse("--trace-level", "error")
	if opts.mode != trace.ModeRing || opts.output != "-" {
		t.Fatalf("error level = %+v", opts)
	}
}
