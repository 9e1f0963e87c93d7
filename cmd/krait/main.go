package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"krait/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "krait",
	Short:         "krait scripting runtime",
	Long:          `krait compiles and runs scripts in a small Python-like language`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupColor(cmd); err != nil {
			return err
		}
		stopTrace, err := setupTracing(cmd)
		if err != nil {
			return err
		}
		stopProf, err := setupProfiling(cmd)
		if err != nil {
			stopTrace()
			return err
		}
		cleanups = append(cleanups, stopProf, stopTrace)
		return nil
	},
}

// cleanups run after the command, also when it fails.
var cleanups []func()

func runCleanups() {
	for _, fn := range cleanups {
		fn()
	}
	cleanups = nil
}

// exitError carries a process exit code for failures already reported.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// main registers subcommands and persistent flags and runs the root command.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(tokenizeCmd)
	rootCmd.AddCommand(disCmd)
	rootCmd.AddCommand(heapstatCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	pf := rootCmd.PersistentFlags()
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("quiet", false, "suppress non-essential output")
	pf.Bool("timings", false, "show timing information")
	pf.Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	pf.String("trace", "", "trace output file (- for stderr)")
	pf.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	pf.Int("trace-ring-size", 4096, "ring buffer size for --trace-mode=ring")
	pf.Duration("trace-heartbeat", 0, "emit heartbeat events at this interval")
	pf.String("cpuprofile", "", "write a CPU profile to this file")
	pf.String("memprofile", "", "write a heap profile to this file")
	pf.String("runtime-trace", "", "write a Go runtime trace to this file")

	err := rootCmd.Execute()
	runCleanups()
	if err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
		os.Exit(1)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) // #nosec G115 -- file descriptors fit in int
}

func setupColor(cmd *cobra.Command) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout) || os.Getenv("NO_COLOR") != ""
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

func useColor() bool { return !color.NoColor }

func quiet(cmd *cobra.Command) bool {
	q, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	return q
}

func timingsEnabled(cmd *cobra.Command) bool {
	v, _ := cmd.Root().PersistentFlags().GetBool("timings")
	return v
}
