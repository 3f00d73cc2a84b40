package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/cache"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/hub"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/server"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, websocket hub, cache sweeper and heartbeat",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if flagAddr != "" {
			cfg.Server.Addr = flagAddr
		}

		a, err := newApp(cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(server.Config{
			Addr:            cfg.Server.Addr,
			ShutdownTimeout: cfg.ShutdownTimeout(),
			Geocoder:        a.geocoder,
			Verifier:        a.verifier,
			Updates:         a.updates,
			Hub:             a.hub,
			Logger:          a.logger,
		})

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.ListenAndServe(gctx)
		})
		g.Go(func() error {
			cache.RunSweeper(gctx, a.store, cfg.SweepInterval())
			return nil
		})
		g.Go(func() error {
			hub.RunHeartbeat(gctx, a.hub, cfg.HeartbeatInterval())
			return nil
		})

		a.logger.Info("starting drc", "version", version, "simulation", cfg.Simulation)
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides config)")
}
