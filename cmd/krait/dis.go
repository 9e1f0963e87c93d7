package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"krait/internal/code"
	"krait/internal/driver"
)

var disCmd = &cobra.Command{
	Use:   "dis file",
	Short: "Disassemble a script",
	Long:  `Compile a script and print the bytecode of every code unit`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDis,
}

func init() {
	disCmd.Flags().String("mode", "exec", "compile mode (exec|eval|repl|json|cell)")
}

func runDis(cmd *cobra.Command, args []string) error {
	modeStr, err := cmd.Flags().GetString("mode")
	if err != nil {
		return fmt.Errorf("failed to get mode flag: %w", err)
	}
	mode, err := parseCompileMode(modeStr)
	if err != nil {
		return err
	}
	u, _, err := driver.CompileFile(args[0], mode)
	if err != nil {
		printEngineError(cmd.ErrOrStderr(), err)
		return &exitError{code: 1}
	}
	defer u.Release()
	return code.Dump(cmd.OutOrStdout(), u)
}

func parseCompileMode(s string) (code.Mode, error) {
	for _, m := range []code.Mode{code.ModeExec, code.ModeEval, code.ModeREPL, code.ModeJSON, code.ModeCell} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("invalid --mode value %q (expected exec|eval|repl|json|cell)", s)
}

