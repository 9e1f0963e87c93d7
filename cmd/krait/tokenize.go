package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"krait/internal/diagfmt"
	"krait/internal/driver"
	"krait/internal/token"
)

var tokenizeCmd = &cobra.Command{
	Use:   "tokenize [flags] file.kr",
	Short: "Print the token stream of a script",
	Long: `Lex a script and print its tokens, including the NEWLINE, INDENT and
DEDENT tokens produced by the indentation rules. Lexical errors are reported
on stderr; lexing continues past them.`,
	Args: cobra.ExactArgs(1),
	RunE: runTokenize,
}

func init() {
	tokenizeCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	tokenizeCmd.Flags().Bool("no-layout", false, "omit NEWLINE, INDENT and DEDENT tokens")
}

func runTokenize(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	if format != "pretty" && format != "json" {
		return fmt.Errorf("invalid --format value %q (expected pretty|json)", format)
	}
	noLayout, err := cmd.Flags().GetBool("no-layout")
	if err != nil {
		return fmt.Errorf("failed to get no-layout flag: %w", err)
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	res, err := driver.Tokenize(args[0], maxDiagnostics)
	if err != nil {
		return fmt.Errorf("tokenize %s: %w", args[0], err)
	}

	if res.Bag.Len() > 0 {
		diagfmt.Pretty(cmd.ErrOrStderr(), res.Bag, res.FileSet, diagfmt.PrettyOpts{
			Color:   useColor(),
			Context: 2,
		})
	}

	toks := res.Tokens
	if noLayout {
		toks = slices.DeleteFunc(slices.Clone(toks), func(t token.Token) bool {
			return t.Kind == token.Newline || t.Kind == token.Indent || t.Kind == token.Dedent
		})
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		err = diagfmt.FormatTokensJSON(out, toks)
	} else {
		err = diagfmt.FormatTokensPretty(out, toks, res.File)
	}
	if err != nil {
		return err
	}
	if res.Bag.HasErrors() {
		return &exitError{code: 1}
	}
	return nil
}
