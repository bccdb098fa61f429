package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/promedmap/internal/colour"
	"github.com/KaramelBytes/promedmap/internal/web"
)

var (
	srvAddr          string
	srvUpdateColours bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the interactive alert globe",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") && srvAddr != "" {
			cfg.ListenAddr = srvAddr
		}
		if cmd.Flags().Changed("update-colours") {
			cfg.UpdateColours = srvUpdateColours
		}
		store, err := colour.OpenStore(cfg.ColoursPath)
		if err != nil {
			return err
		}
		defer store.Close()

		srv, err := web.NewServer(web.Options{
			TrackerPath:   cfg.TrackerPath,
			Load:          loadOptions(),
			Filterable:    cfg.FilterableColumns,
			Page:          pageOptions(false),
			UpdateColours: cfg.UpdateColours,
			ReadTimeout:   time.Duration(cfg.ReadTimeoutSec) * time.Second,
			WriteTimeout:  time.Duration(cfg.WriteTimeoutSec) * time.Second,
		}, store, log)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx, cfg.ListenAddr)
	},
}

func pageOptions(static bool) web.PageOptions {
	p := web.DefaultPageOptions()
	if cfg.PageTitle != "" {
		p.Title = cfg.PageTitle
	}
	if cfg.MapStyle != "" {
		p.MapStyle = cfg.MapStyle
	}
	p.Static = static
	return p
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&srvAddr, "addr", "", "listen address (overrides config, default :8501)")
	serveCmd.Flags().BoolVar(&srvUpdateColours, "update-colours", false, "save newly assigned colours to the colour store")
}
