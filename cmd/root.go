package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/promedmap/internal/config"
	"github.com/KaramelBytes/promedmap/internal/logging"
	"github.com/KaramelBytes/promedmap/internal/table"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Input flags (override config if set)
	flagTracker    string
	flagColours    string
	flagSheetName  string
	flagSheetIndex int
	flagMaxRows    int

	// Loaded configuration
	cfg *cfgpkg.Global
	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "promedmap",
	Short: "promedmap: plot ProMED disease alerts on a globe",
	Long: `promedmap reads a ProMED alert tracker spreadsheet, gives every disease a stable colour,
and serves an interactive globe of the alerts with per-column filters.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger()
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.promedmap/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&flagTracker, "tracker", "", "tracker spreadsheet (.xlsx, .csv, .tsv; overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagColours, "colours", "", "colour store (.csv, .yaml, .db, .xlsx; overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagSheetName, "sheet-name", "", "XLSX: sheet name to read")
	rootCmd.PersistentFlags().IntVar(&flagSheetIndex, "sheet-index", 0, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	rootCmd.PersistentFlags().IntVar(&flagMaxRows, "max-rows", 0, "maximum tracker rows to load (0 = unlimited)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = &cfgpkg.Global{}
		for _, k := range []struct{ key, val string }{
			{"tracker_path", "tracker.xlsx"}, {"colours_path", "colours.csv"}, {"sheet_index", "1"},
			{"listen_addr", ":8501"}, {"map_style", "light"}, {"log_format", "text"}, {"log_level", "info"},
		} {
			_ = c.Set(k.key, k.val)
		}
		c.FilterableColumns = cfgpkg.DefaultFilterableColumns
		c.CategoricalColumns = cfgpkg.DefaultCategoricalColumns
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("tracker") && flagTracker != "" {
		cfg.TrackerPath = flagTracker
	}
	if f.Changed("colours") && flagColours != "" {
		cfg.ColoursPath = flagColours
	}
	if f.Changed("sheet-name") {
		cfg.SheetName = flagSheetName
	}
	if f.Changed("sheet-index") && flagSheetIndex > 0 {
		cfg.SheetIndex = flagSheetIndex
	}
	if f.Changed("max-rows") && flagMaxRows >= 0 {
		cfg.MaxRows = flagMaxRows
	}
	if debug {
		cfg.LogLevel = "debug"
	}
}

func setupLogger() error {
	level, format := "info", "text"
	if cfg != nil {
		level, format = cfg.LogLevel, cfg.LogFormat
	}
	l, err := logging.New(level, format)
	if err != nil {
		return err
	}
	log = l
	return nil
}

// loadOptions builds table options from the effective config.
func loadOptions() table.Options {
	opt := table.DefaultOptions()
	opt.SheetName = cfg.SheetName
	if cfg.SheetIndex > 0 {
		opt.SheetIndex = cfg.SheetIndex
	}
	opt.MaxRows = cfg.MaxRows
	opt.Categorical = cfg.CategoricalColumns
	return opt
}
