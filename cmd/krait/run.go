package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"krait"
	"krait/internal/compiler"
	"krait/internal/diagfmt"
	"krait/internal/driver"
	"krait/internal/observ"
	"krait/internal/trace"
)

var runCmd = &cobra.Command{
	Use:   "run [file] [args...]",
	Short: "Compile and execute a script",
	Long: `Compile and execute a script. Without a file the [run].main entry of the
nearest krait.toml is used. Arguments after the file become sys.argv[1:].`,
	Args: cobra.ArbitraryArgs,
	RunE: runExecution,
}

func init() {
	addEngineFlags(runCmd)
	runCmd.Flags().String("exec-trace", "", "write one line per executed instruction to this file (- for stderr)")
	runCmd.Flags().String("heap-dump", "", "write a heap dump to this file when the script finishes")
	runCmd.Flags().SetInterspersed(false)
}

func runExecution(cmd *cobra.Command, args []string) error {
	execTracePath, err := cmd.Flags().GetString("exec-trace")
	if err != nil {
		return fmt.Errorf("failed to get exec-trace flag: %w", err)
	}
	heapDumpPath, err := cmd.Flags().GetString("heap-dump")
	if err != nil {
		return fmt.Errorf("failed to get heap-dump flag: %w", err)
	}

	var script string
	var scriptArgs []string
	if len(args) > 0 {
		script, scriptArgs = args[0], args[1:]
	}
	startDir := "."
	if script != "" {
		startDir = filepath.Dir(script)
	}
	settings, err := loadEngineSettings(cmd, startDir, "")
	if err != nil {
		return err
	}
	if script == "" {
		if settings.Manifest == nil {
			return errors.New("no script given and no krait.toml found")
		}
		if script, err = settings.Manifest.MainPath(); err != nil {
			return err
		}
		scriptArgs = append(append([]string(nil), settings.Manifest.Config.Run.Args...), scriptArgs...)
	}
	settings.ModuleDirs = append([]string{filepath.Dir(script)}, settings.ModuleDirs...)

	src, err := os.ReadFile(script)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", script, err)
	}

	tracer := trace.FromContext(cmd.Context())
	cfg := krait.Config{
		OSModules:   settings.OSModules,
		StackSize:   settings.StackSize,
		GCThreshold: settings.GCThreshold,
		Stdout:      cmd.OutOrStdout(),
		Tracer:      tracer,
		Argv:        append([]string{script}, scriptArgs...),
		Path:        settings.ModuleDirs,
		Importer:    driver.FileImporter(settings.ModuleDirs),
	}
	if execTracePath != "" {
		w, closeFn, err := openOutput(cmd, execTracePath)
		if err != nil {
			return fmt.Errorf("failed to open exec trace: %w", err)
		}
		defer closeFn()
		cfg.ExecTrace = w
	}
	engine := krait.New(cfg)

	timer := observ.NewTimer().WithTracer(tracer, 0)
	var code *krait.Code
	err = timer.Track("compile", func() error {
		var cerr error
		code, cerr = engine.Compile(src, script, krait.ModeExec)
		return cerr
	})
	if err == nil {
		err = timer.Track("execute", func() error {
			_, xerr := engine.Execute(code, engine.Main())
			return xerr
		})
		code.Release()
	}

	if heapDumpPath != "" {
		if derr := writeHeapDump(engine, heapDumpPath); derr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "heap dump: %v\n", derr)
		}
	}
	if timingsEnabled(cmd) {
		if werr := timer.Report().WriteSummary(cmd.ErrOrStderr()); werr != nil {
			return werr
		}
	}
	if err != nil {
		printEngineError(cmd.ErrOrStderr(), err)
		var ke *krait.Error
		if errors.As(err, &ke) && ke.Kind == krait.ErrFatal {
			dumpRing(cmd.ErrOrStderr(), tracer)
		}
		return &exitError{code: 1}
	}
	return nil
}

// dumpRing prints the events leading up to a fatal error when the tracer
// keeps a ring.
func dumpRing(w io.Writer, tracer trace.Tracer) {
	ring, ok := trace.Ring(tracer)
	if !ok {
		return
	}
	fmt.Fprintf(w, "last trace events (%d dropped):\n", ring.Dropped())
	if err := ring.Dump(w, trace.FormatText); err != nil {
		fmt.Fprintf(w, "trace: dump error: %v\n", err)
	}
}

// printEngineError renders compile errors as diagnostics and runtime errors
// as a traceback.
func printEngineError(w io.Writer, err error) {
	var ce *compiler.Error
	if errors.As(err, &ce) {
		diagfmt.Diagnostic(w, ce.File, ce.Diag, diagfmt.PrettyOpts{
			Color:     useColor(),
			Context:   1,
			ShowNotes: true,
		})
		return
	}
	var ke *krait.Error
	if !errors.As(err, &ke) {
		fmt.Fprintln(w, err)
		return
	}
	tb := ke.Traceback()
	if ke.Kind == krait.ErrFatal {
		fmt.Fprintln(w, color.New(color.FgRed, color.Bold).Sprint(tb))
		return
	}
	// последняя строка - сообщение исключения
	head, last := splitLastLine(tb)
	if head != "" {
		fmt.Fprintln(w, head)
	}
	fmt.Fprintln(w, color.New(color.FgRed).Sprint(last))
}

func splitLastLine(s string) (string, string) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			return s[:i], s[i+1:]
		}
	}
	return "", s
}

func writeHeapDump(engine *krait.Engine, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := engine.WriteHeapDump(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// openOutput opens path for writing; "-" means stderr.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "-" {
		return cmd.ErrOrStderr(), func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}
