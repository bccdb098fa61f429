package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/promedmap/internal/filter"
	"github.com/KaramelBytes/promedmap/internal/table"
	"github.com/KaramelBytes/promedmap/internal/utils"
)

var (
	insOutputPath string
	insSampleRows int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Summarize a tracker spreadsheet and its filter controls",
	Long:  "Summarize a tracker spreadsheet: inferred column kinds, missing values, top values and the control each filterable column gets. Defaults to the configured tracker.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.TrackerPath
		if len(args) == 1 {
			path = args[0]
		}
		t, err := table.Load(path, loadOptions())
		if err != nil {
			return err
		}
		t = t.NormalizeDates()

		var b strings.Builder
		b.WriteString(table.Profile(t, insSampleRows).Markdown())
		b.WriteString("\n[FILTERS]\n")
		for _, c := range filter.Inspect(t, cfg.FilterableColumns) {
			fmt.Fprintf(&b, "- %s: %s", c.Column, c.Kind)
			switch c.Kind {
			case filter.Categorical:
				fmt.Fprintf(&b, " (%d options)", len(c.Options))
			case filter.Numeric:
				fmt.Fprintf(&b, " (%g to %g, step %g)", c.Min, c.Max, c.Step)
			case filter.Date:
				fmt.Fprintf(&b, " (%s to %s)", c.MinDate.Format(filter.DateLayout), c.MaxDate.Format(filter.DateLayout))
			}
			b.WriteString("\n")
		}
		md := b.String()

		if insOutputPath != "" {
			if err := utils.SafeWriteFile(insOutputPath, []byte(md)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote summary to %s\n", insOutputPath)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), md)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVarP(&insOutputPath, "output", "o", "", "optional path to write the summary (Markdown)")
	inspectCmd.Flags().IntVar(&insSampleRows, "sample-rows", 5, "number of sample rows to include")
}
