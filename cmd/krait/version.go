package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"krait/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show krait build information",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	versionCmd.Flags().Bool("hash", false, "include git commit hash")
	versionCmd.Flags().Bool("message", false, "include git commit message")
	versionCmd.Flags().Bool("date", false, "include build timestamp")
	versionCmd.Flags().Bool("full", false, "show all recorded build metadata")
	versionCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

func runVersion(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	full, _ := flags.GetBool("full")
	want := func(name string) bool {
		on, _ := flags.GetBool(name)
		return on || full
	}
	format, err := flags.GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}

	info := version.Info()
	// невыбранные поля не печатаем ни в одном формате
	if !want("hash") {
		info.Commit, info.Modified = "", false
	}
	if !want("message") {
		info.Message = ""
	}
	if !want("date") {
		info.Date = ""
	}

	switch strings.ToLower(format) {
	case "pretty":
		writeVersionPretty(cmd.OutOrStdout(), info, want)
		return nil
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Tool string `json:"tool"`
			version.BuildInfo
		}{"krait", info})
	}
	return fmt.Errorf("invalid --format value %q (expected pretty|json)", format)
}

func writeVersionPretty(w io.Writer, info version.BuildInfo, want func(string) bool) {
	fmt.Fprintf(w, "krait %s (%s)\n", version.Colored(), info.GoVersion)
	rows := []struct{ flag, label, value string }{
		{"hash", "commit", info.Commit},
		{"message", "message", info.Message},
		{"date", "built", info.Date},
	}
	for _, r := range rows {
		if !want(r.flag) {
			continue
		}
		v := r.value
		if v == "" {
			v = "unknown"
		}
		if r.flag == "hash" && info.Modified {
			v += " (modified)"
		}
		fmt.Fprintf(w, "%-8s %s\n", r.label+":", v)
	}
}
