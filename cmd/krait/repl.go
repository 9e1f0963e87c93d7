package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"krait"
	"krait/internal/driver"
	"krait/internal/trace"
	"krait/internal/ui"
	"krait/internal/version"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive session",
	Args:  cobra.NoArgs,
	RunE:  runREPL,
}

func init() {
	addEngineFlags(replCmd)
	replCmd.Flags().Bool("plain", false, "read lines from stdin without the terminal UI")
}

func runREPL(cmd *cobra.Command, _ []string) error {
	plain, err := cmd.Flags().GetBool("plain")
	if err != nil {
		return fmt.Errorf("failed to get plain flag: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	settings, err := loadEngineSettings(cmd, cwd, cwd)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	interactive := !plain && isTerminal(os.Stdin) && isTerminal(os.Stdout)
	stdout := cmd.OutOrStdout()
	if interactive {
		stdout = &out
	}
	engine := krait.New(krait.Config{
		OSModules:   settings.OSModules,
		StackSize:   settings.StackSize,
		GCThreshold: settings.GCThreshold,
		Stdout:      stdout,
		Tracer:      trace.FromContext(cmd.Context()),
		Argv:        []string{""},
		Path:        settings.ModuleDirs,
		Importer:    driver.FileImporter(settings.ModuleDirs),
	})
	banner := fmt.Sprintf("krait %s (ctrl+d to exit)", version.Version)

	if !interactive {
		return lineREPL(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), engine, !quiet(cmd) && isTerminal(os.Stdin), banner)
	}

	run := func(src string) ui.CellResult {
		out.Reset()
		err := engine.RunCell(src)
		res := ui.CellResult{Output: out.String()}
		switch {
		case krait.IsNeedMoreInput(err):
			res.NeedMore = true
		case err != nil:
			res.Err = cellError(err)
		}
		return res
	}
	if _, err := tea.NewProgram(ui.NewREPLModel(banner, run)).Run(); err != nil {
		return fmt.Errorf("repl: %w", err)
	}
	return nil
}

// lineREPL reads cells from r one line at a time. Prompts are written only
// when showPrompt is set so piped sessions produce clean output.
func lineREPL(r io.Reader, w, errw io.Writer, engine *krait.Engine, showPrompt bool, banner string) error {
	if showPrompt {
		fmt.Fprintln(w, banner)
	}
	sc := bufio.NewScanner(r)
	var cell strings.Builder
	prompt := func() {
		if !showPrompt {
			return
		}
		if cell.Len() == 0 {
			fmt.Fprint(w, ui.PromptPrimary)
		} else {
			fmt.Fprint(w, ui.PromptSecondary)
		}
	}
	prompt()
	for sc.Scan() {
		cell.WriteString(sc.Text())
		cell.WriteByte('\n')
		err := engine.RunCell(cell.String())
		if !krait.IsNeedMoreInput(err) {
			cell.Reset()
			if err != nil {
				fmt.Fprintln(errw, cellError(err))
			}
		}
		prompt()
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("repl: %w", err)
	}
	// незавершённая ячейка на EOF
	if cell.Len() > 0 {
		if err := engine.RunCell(cell.String() + "\n"); err != nil && !krait.IsNeedMoreInput(err) {
			fmt.Fprintln(errw, cellError(err))
		}
	}
	if showPrompt {
		fmt.Fprintln(w)
	}
	return nil
}

func cellError(err error) string {
	var ke *krait.Error
	if errors.As(err, &ke) {
		return ke.Traceback()
	}
	return err.Error()
}
