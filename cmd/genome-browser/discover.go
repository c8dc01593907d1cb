package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v64/genome-browser/internal/discovery"
	"github.com/v64/genome-browser/internal/metrics"
	"github.com/v64/genome-browser/internal/output"
)

func (a *app) newDiscoverCmd() *cobra.Command {
	var (
		metricsAddr    string
		statusInterval time.Duration
		clearExplored  bool
	)
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Explore related SNPs in the background until interrupted",
		Long: `Run the discovery worker: starting from notable SNPs, recent
improvements and favorites, ask the language model for related SNPs,
and improve those present in your genome. Every third cycle a random
unimproved SNP is explored instead. Stop with Ctrl-C.`,
		Example: `  genome-browser discover
  genome-browser discover --metrics-addr :9090 --status-interval 30s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("metrics-addr") {
				metricsAddr = a.settings.Discovery.MetricsAddr
			}
			if !cmd.Flags().Changed("status-interval") {
				statusInterval = a.settings.Discovery.StatusInterval
			}
			return a.runDiscover(cmd, metricsAddr, statusInterval, clearExplored)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (default from discovery.metrics_addr)")
	cmd.Flags().DurationVar(&statusInterval, "status-interval", 0, "Print status this often (default from discovery.status_interval)")
	cmd.Flags().BoolVar(&clearExplored, "clear-explored", false, "Forget explored SNPs before starting")
	return cmd
}

func (a *app) runDiscover(cmd *cobra.Command, metricsAddr string, statusInterval time.Duration, clearExplored bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := a.enricher(true)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}
	e.SetMetrics(m)

	w, err := discovery.New(e, a.settings.Discovery.Config)
	if err != nil {
		return err
	}
	w.SetLogger(a.logger.Named("discovery"))
	w.SetMetrics(m)

	if metricsAddr != "" {
		srv := serveMetrics(metricsAddr, reg, a.logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		fmt.Fprintf(cmd.ErrOrStderr(), "Serving metrics on %s/metrics\n", metricsAddr)
	}

	go w.Run(ctx)
	if clearExplored {
		if err := w.ClearExplored(); err != nil {
			return err
		}
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("start discovery: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Discovery started (Ctrl-C to stop)")

	var tick <-chan time.Time
	if statusInterval > 0 {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
			output.WriteStatus(out, w.Status())
		case <-w.Done():
			fmt.Fprintln(out, "Discovery stopped")
			output.WriteStatus(out, w.Status())
			output.WriteActivity(out, w.Logs(10))
			return nil
		}
	}
}

// serveMetrics exposes reg on addr until Shutdown is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return srv
}
