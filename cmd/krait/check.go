package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"krait/internal/diag"
	"krait/internal/diagfmt"
	"krait/internal/driver"
	"krait/internal/source"
	"krait/internal/trace"
	"krait/internal/ui"
)

var checkCmd = &cobra.Command{
	Use:   "check [files or directories...]",
	Short: "Compile scripts without running them",
	Long: `Compile every given script, or every *.kr file under the given
directories, and report syntax and indentation errors.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().IntP("jobs", "j", 0, "number of files compiled in parallel (0 = GOMAXPROCS)")
	checkCmd.Flags().Bool("no-cache", false, "do not read or write the diagnostics cache")
	checkCmd.Flags().Bool("clear-cache", false, "drop the diagnostics cache before checking")
	checkCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	checkCmd.Flags().String("format", "pretty", "diagnostics format (pretty|short|json)")
	checkCmd.Flags().String("path-mode", "auto", "how file paths are printed (auto|absolute|relative|basename)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return fmt.Errorf("failed to get no-cache flag: %w", err)
	}
	clearCache, err := cmd.Flags().GetBool("clear-cache")
	if err != nil {
		return fmt.Errorf("failed to get clear-cache flag: %w", err)
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	switch format {
	case "pretty", "short", "json":
	default:
		return fmt.Errorf("invalid --format value %q (expected pretty|short|json)", format)
	}
	pathModeValue, err := cmd.Flags().GetString("path-mode")
	if err != nil {
		return fmt.Errorf("failed to get path-mode flag: %w", err)
	}
	pathMode, err := diagfmt.ParsePathMode(pathModeValue)
	if err != nil {
		return err
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	paths, err := driver.Expand(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no %s files found", driver.SourceExt)
	}

	opts := driver.CheckOptions{
		Jobs:           jobs,
		MaxDiagnostics: maxDiagnostics,
		Tracer:         trace.FromContext(cmd.Context()),
	}
	if !noCache {
		cache, err := driver.OpenDiskCache("krait")
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "cache disabled: %v\n", err)
		} else {
			if clearCache {
				if err := cache.DropAll(); err != nil {
					return fmt.Errorf("failed to clear cache: %w", err)
				}
			}
			opts.Cache = cache
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		fileSet *source.FileSet
		results []driver.CheckResult
	)
	showProgress, err := progressWanted(uiValue, format, quiet(cmd))
	if err != nil {
		return err
	}
	if showProgress {
		fileSet, results, err = checkWithProgress(ctx, paths, opts)
	} else {
		fileSet, results, err = driver.Check(ctx, paths, opts)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := printCheckResults(out, fileSet, results, format, pathMode); err != nil {
		return err
	}
	summary := driver.Summarize(results)
	if !quiet(cmd) && format != "json" {
		printCheckSummary(out, summary)
	}
	if timingsEnabled(cmd) {
		if err := summary.Timing.WriteSummary(cmd.ErrOrStderr()); err != nil {
			return err
		}
	}
	if summary.Failed > 0 {
		return &exitError{code: 1}
	}
	return nil
}

// checkWithProgress runs the check in the background and renders its events.
// Ctrl+C in the UI cancels the remaining files.
func checkWithProgress(ctx context.Context, paths []string, opts driver.CheckOptions) (*source.FileSet, []driver.CheckResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan driver.Event, 64)
	opts.Progress = driver.ChannelProgress(events)

	var (
		fileSet  *source.FileSet
		results  []driver.CheckResult
		checkErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(events)
		fileSet, results, checkErr = driver.Check(ctx, paths, opts)
	}()

	model := ui.NewProgressModel("checking", paths, events)
	_, uiErr := tea.NewProgram(model, tea.WithOutput(os.Stderr)).Run()
	cancel()
	// UI мог выйти раньше, не блокируем отправителей
	for range events {
	}
	<-done
	if uiErr != nil {
		return nil, nil, fmt.Errorf("progress ui: %w", uiErr)
	}
	return fileSet, results, checkErr
}

// progressWanted resolves --ui. The progress UI draws on stderr, so auto
// mode asks whether stderr is a terminal.
func progressWanted(ui, format string, quiet bool) (bool, error) {
	var on bool
	switch strings.ToLower(strings.TrimSpace(ui)) {
	case "", "auto":
		on = isTerminal(os.Stderr)
	case "on":
		on = true
	case "off":
	default:
		return false, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", ui)
	}
	// JSON на stdout не смешиваем с прогрессом
	return on && !quiet && format != "json", nil
}

func printCheckResults(w io.Writer, fileSet *source.FileSet, results []driver.CheckResult, format string, pathMode diagfmt.PathMode) error {
	all := diag.NewBag(0)
	for i := range results {
		if results[i].Bag != nil {
			all.Merge(results[i].Bag)
		}
	}
	switch format {
	case "short":
		return diag.WriteShort(w, all.Items(), fileSet, true)
	case "json":
		return diagfmt.JSON(w, all, fileSet, diagfmt.JSONOpts{
			IncludePositions: true,
			IncludeNotes:     true,
			PathMode:         pathMode,
			BaseDir:          workingDir(),
		})
	}
	// IO-ошибки загрузки не имеют файла, Pretty печатает их одной строкой
	diagfmt.Pretty(w, all, fileSet, diagfmt.PrettyOpts{
		Color:     useColor(),
		Context:   1,
		PathMode:  pathMode,
		BaseDir:   workingDir(),
		ShowNotes: true,
	})
	return nil
}

func workingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}

func printCheckSummary(w io.Writer, s driver.Summary) {
	var parts []string
	parts = append(parts, fmt.Sprintf("%d files", s.Files))
	if s.Cached > 0 {
		parts = append(parts, fmt.Sprintf("%d cached", s.Cached))
	}
	status := color.New(color.FgGreen).Sprint("ok")
	if s.Failed > 0 {
		status = color.New(color.FgRed, color.Bold).Sprintf("%d failed", s.Failed)
	}
	fmt.Fprintf(w, "%s: %s\n", status, strings.Join(parts, ", "))
}
