package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/FranksOps/patentscout/internal/metrics"
	"github.com/FranksOps/patentscout/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the patent search web UI",
	Long: `Serve starts the web UI: a search form, HTML results, a Word report download
and a JSON API under /api. Prometheus metrics are exposed on /metrics, and
additionally on --metrics-addr when set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("addr", ":8080", "listen address")
	f.String("metrics-addr", "", "separate listen address for /metrics")

	_ = v.BindPFlag("server.addr", f.Lookup("addr"))
	_ = v.BindPFlag("server.metrics_addr", f.Lookup("metrics-addr"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.APIKey == "" {
		logger.Warn("no SerpAPI key configured; searches will fail until PATENTSCOUT_API_KEY is set")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, closeBackend, err := newPipeline(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeBackend(); err != nil {
			logger.Warn("closing storage", "err", err)
		}
	}()

	var metricsSrv *metrics.Server
	if cfg.Server.MetricsAddr != "" {
		metricsSrv = metrics.Start(cfg.Server.MetricsAddr, logger)
	}

	srv := web.New(p, cfg.Server.Addr, logger)
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return errors.Join(srv.Shutdown(shutdownCtx), metricsSrv.Stop(shutdownCtx))
}
