package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"krait/internal/alloc"
	"krait/internal/vm"
)

var heapstatCmd = &cobra.Command{
	Use:   "heapstat",
	Short: "Inspect heap dumps written by run --heap-dump",
}

var heapstatDumpCmd = &cobra.Command{
	Use:   "dump file",
	Short: "Print a heap dump",
	Args:  cobra.ExactArgs(1),
	RunE:  runHeapstatDump,
}

func init() {
	heapstatCmd.AddCommand(heapstatDumpCmd)
	heapstatDumpCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	heapstatDumpCmd.Flags().Int("top", 20, "show at most this many types (0 = all)")
}

func runHeapstatDump(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	top, err := cmd.Flags().GetInt("top")
	if err != nil {
		return fmt.Errorf("failed to get top flag: %w", err)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	dump, err := vm.ReadHeapDump(f)
	if err != nil {
		return err
	}
	if top > 0 && len(dump.Types) > top {
		dump.Types = dump.Types[:top]
	}

	switch format {
	case "pretty":
		return renderHeapDump(cmd.OutOrStdout(), dump)
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(dump)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func renderHeapDump(w io.Writer, d *vm.HeapDump) error {
	head := color.New(color.Bold)
	fmt.Fprintf(w, "%s %d live objects, %d blocks\n", head.Sprint("heap:"), d.Live, d.Alloc.Blocks())
	fmt.Fprintf(w, "%s %d collections, %d freed, %d survivors, threshold %d\n",
		head.Sprint("gc:"), d.GC.Collections, d.GC.Freed, d.GC.Survivors, d.GC.Threshold)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "pool\tblock\tblocks\tactive\tfull\tempty\tpeak arenas\treleased")
	for _, p := range []struct {
		name string
		st   alloc.PoolStats
	}{
		{"small", d.Alloc.Small},
		{"large", d.Alloc.Large},
	} {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n", p.name, p.st.BlockSize, p.st.Blocks,
			p.st.Active, p.st.Full, p.st.Empty, p.st.PeakArenas, p.st.Released)
	}
	fmt.Fprintf(tw, "generic\t-\t%d\t\t\t\t\t\n", d.Alloc.Generic)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(d.Modules) > 0 {
		fmt.Fprintf(w, "%s %v\n", head.Sprint("modules:"), d.Modules)
	}
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "count\ttype\t")
	for _, tc := range d.Types {
		fmt.Fprintf(tw, "%d\t%s\t\n", tc.Count, tc.Type)
	}
	return tw.Flush()
}
