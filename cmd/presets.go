package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/kozaktomas/fusion-batch/internal/presets"
	"github.com/spf13/cobra"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the available presets",
	Long: `List the presets batches can run with. The built-in presets can be
extended or overridden by a YAML file named in FUSION_BATCH_PRESETS.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		if mustGetBool(cmd, "json") {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rt.catalog.List())
		}
		printPresets(cmd.OutOrStdout(), rt.catalog.List())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
	presetsCmd.Flags().Bool("json", false, "Print the presets as JSON")
}

func printPresets(out io.Writer, list []presets.Preset) {
	for _, p := range list {
		fmt.Fprintf(out, "%s\n", p.Name)
		if p.Description != "" {
			fmt.Fprintf(out, "  %s\n", p.Description)
		}
		fmt.Fprintf(out, "  processors: %s\n", strings.Join(p.Processors, ", "))
		for _, o := range p.Options {
			fmt.Fprintf(out, "  %s %s\n", o.Flag, o.Value)
		}
		for _, r := range p.PrefixRules {
			fmt.Fprintf(out, "  sources starting with %q use %s\n", r.Prefix, r.Preset)
		}
	}
}
