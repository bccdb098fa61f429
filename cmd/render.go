package cmd

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/promedmap/internal/filter"
	"github.com/KaramelBytes/promedmap/internal/utils"
	"github.com/KaramelBytes/promedmap/internal/web"
)

var (
	renderOutput        string
	renderQuery         string
	renderUpdateColours bool
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Write the alert globe to a static HTML file",
	Example: `  promedmap render -o alerts.html
  promedmap render -o nipah.html --filter 'filter=1&col=Disease name&v.Disease name=Nipah'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := url.ParseQuery(renderQuery)
		if err != nil {
			return errors.Wrap(err, "parse --filter")
		}
		save := cfg.UpdateColours
		if cmd.Flags().Changed("update-colours") {
			save = renderUpdateColours
		}
		ds, err := annotateTracker(save)
		if err != nil {
			return err
		}
		page, err := web.Render(ds, cfg.FilterableColumns, filter.FromQuery(q), pageOptions(true))
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := web.WritePage(&buf, page); err != nil {
			return err
		}
		if err := utils.SafeWriteFile(renderOutput, buf.Bytes()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d points to %s\n", len(page.Points), renderOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "promedmap.html", "path of the HTML file to write")
	renderCmd.Flags().StringVar(&renderQuery, "filter", "", "filter in query-string form, e.g. 'filter=1&col=Country&v.Country=India'")
	renderCmd.Flags().BoolVar(&renderUpdateColours, "update-colours", false, "save newly assigned colours to the colour store")
}
