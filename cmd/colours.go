package cmd

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/promedmap/internal/colour"
	"github.com/KaramelBytes/promedmap/internal/utils"
)

var coloursListJSON bool

var coloursCmd = &cobra.Command{
	Use:     "colours",
	Aliases: []string{"colors"},
	Short:   "Manage the disease colour store",
}

var coloursListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored disease colours",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := colour.OpenStore(cfg.ColoursPath)
		if err != nil {
			return err
		}
		defer store.Close()
		t, err := store.Load()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if coloursListJSON {
			type entry struct {
				Disease string     `json:"disease"`
				Colour  colour.RGB `json:"colour"`
				Hex     string     `json:"hex"`
			}
			entries := make([]entry, 0, t.Len())
			for _, e := range t.Entries() {
				entries = append(entries, entry{Disease: e.Label, Colour: e.Colour, Hex: e.Colour.Hex()})
			}
			b, err := utils.PrettyJSON(entries)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		if t.Len() == 0 {
			fmt.Fprintf(out, "No colours stored in %s\n", cfg.ColoursPath)
			return nil
		}
		width := 0
		for _, l := range t.Labels() {
			if len(l) > width {
				width = len(l)
			}
		}
		for _, e := range t.Entries() {
			fmt.Fprintf(out, "%-*s  %-15s  %s\n", width, e.Label, e.Colour, e.Colour.Hex())
		}
		if dups := t.Duplicates(); len(dups) > 0 {
			fmt.Fprintf(out, "⚠ Shared colours: %s\n", strings.Join(dups, ", "))
		}
		return nil
	},
}

var coloursAssignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Give every disease in the tracker a colour and save the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := annotateTracker(true)
		if err != nil {
			return err
		}
		if len(ds.Added) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "All diseases already have colours")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Assigned %d new colours: %s\n", len(ds.Added), strings.Join(ds.Added, ", "))
		return nil
	},
}

var coloursExportCmd = &cobra.Command{
	Use:   "export <dest>",
	Short: "Copy the colour store to another file (.csv, .yaml, .db)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := colour.OpenStore(cfg.ColoursPath)
		if err != nil {
			return err
		}
		defer src.Close()
		t, err := src.Load()
		if err != nil {
			return err
		}
		dst, err := colour.OpenStore(args[0])
		if err != nil {
			return err
		}
		defer dst.Close()
		if err := dst.Save(t); err != nil {
			if errors.Is(err, colour.ErrReadOnlyStore) {
				return errors.Errorf("cannot export to %s: choose a .csv, .yaml or .db destination", args[0])
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d colours to %s\n", t.Len(), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(coloursCmd)
	coloursCmd.AddCommand(coloursListCmd)
	coloursListCmd.Flags().BoolVar(&coloursListJSON, "json", false, "print colours as JSON")
	coloursCmd.AddCommand(coloursAssignCmd)
	coloursCmd.AddCommand(coloursExportCmd)
}
