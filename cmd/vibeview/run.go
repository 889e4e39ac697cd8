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

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/vibeview/internal/cdp"
	"github.com/bnema/vibeview/internal/connectivity"
	"github.com/bnema/vibeview/internal/lifecycle"
	"github.com/bnema/vibeview/internal/logging"
	"github.com/bnema/vibeview/internal/mediator"
	"github.com/bnema/vibeview/internal/metrics"
	"github.com/bnema/vibeview/internal/ruleset"
	"github.com/bnema/vibeview/internal/storage"
)

const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run [url...]",
	Short: "Start the browser shell",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	logging.Setup(cfg.Log)
	if err := validateConfig(&cfg); err != nil {
		return err
	}

	urls, _ := cmd.Flags().GetStringSlice("url")
	home, _ := cmd.Flags().GetString("home")
	restore, _ := cmd.Flags().GetBool("restore")
	if headful, _ := cmd.Flags().GetBool("headful"); headful {
		cfg.Browser.Headless = false
	}
	urls = append(urls, args...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs := afero.NewOsFs()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	rules := ruleset.New(fs, cfg.Rules)
	logReport(rules.Reload())

	med := mediator.New(rules, mediator.WithMetrics(m))
	med.SetAdblockEnabled(cfg.Features.Adblock)
	med.SetDataSaverEnabled(cfg.Features.DataSaver)

	host, err := cdp.New(ctx, cfg.Browser)
	if err != nil {
		return err
	}
	defer func() {
		if err := host.Close(); err != nil {
			log.Warn().Err(err).Msg("Browser did not shut down cleanly")
		}
	}()

	history := storage.NewHistory(fs, cfg.Storage.Dir, cfg.Storage.HistoryLimit)
	sessions := storage.NewSessions(fs, cfg.Storage.Dir)

	ctrl, err := lifecycle.New(lifecycle.Deps{
		Host:         host,
		Mediator:     med,
		Rules:        rules,
		History:      history,
		Events:       logEvents{},
		Connectivity: connectivity.New(cfg.Connectivity),
		Layout:       cfg.Layout,
		ZoomStep:     cfg.Zoom.Step,
		Metrics:      m,
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if len(urls) == 0 && restore {
		urls = recoveredURLs(sessions)
	}
	if len(urls) == 0 {
		urls = []string{home}
	}
	for _, u := range urls {
		v, err := ctrl.CreateView(uuid.NewString(), u)
		if err != nil {
			return fmt.Errorf("open %s: %w", u, err)
		}
		log.Info().Str("tab", v.TabID).Str("url", v.URL).Msg("Tab opened")
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Rules.Watch {
		g.Go(func() error { return rules.Watch(gctx) })
	}

	autosaver := storage.NewAutosaver(ctrl, sessions, cfg.Storage.AutosaveInterval)
	g.Go(func() error { return autosaver.Run(gctx) })

	if cfg.Metrics.Listen != "" {
		srv := metricsServer(cfg.Metrics.Listen, reg)
		g.Go(func() error {
			log.Info().Str("addr", cfg.Metrics.Listen).Msg("Serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	stats := ctrl.DataSaverStats()
	log.Info().
		Int64("allowed", stats.AllowedRequests).
		Int64("blocked", stats.BlockedRequests).
		Int64("saved_bytes", stats.EstimatedSavedBytes).
		Msg("Shutting down")

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if err := sessions.ClearRecovery(); err != nil {
		log.Warn().Err(err).Msg("Failed to clear recovery session")
	}
	return nil
}

func recoveredURLs(sessions *storage.Sessions) []string {
	tabs, err := sessions.Recovery()
	if err != nil {
		log.Warn().Err(err).Msg("Cannot read recovery session")
		return nil
	}
	urls := make([]string, 0, len(tabs))
	for _, t := range tabs {
		urls = append(urls, t.URL)
	}
	if len(urls) > 0 {
		log.Info().Int("tabs", len(urls)).Msg("Restoring tabs from previous session")
	}
	return urls
}

func metricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func logReport(report ruleset.LoadReport) {
	for _, err := range report.Errors {
		log.Warn().Err(err).Msg("Rule file problem")
	}
	log.Info().
		Int("files", len(report.Files)).
		Int("parsed", report.Parse.Total).
		Int("converted", report.Convert.Converted).
		Int("skipped", report.Convert.Skipped+report.Parse.Unsupported).
		Msg("Adblock rules loaded")
}

// logEvents stands in for the UI process and logs tab events
type logEvents struct{}

func (logEvents) LoadingChanged(tabID string, loading bool) {
	log.Debug().Str("tab", tabID).Bool("loading", loading).Msg("Loading changed")
}

func (logEvents) TitleChanged(tabID, title string) {
	log.Debug().Str("tab", tabID).Str("title", title).Msg("Title changed")
}

func (logEvents) URLChanged(tabID, url string) {
	log.Info().Str("tab", tabID).Str("url", url).Msg("URL changed")
}

func (logEvents) FaviconChanged(tabID, favicon string) {
	log.Debug().Str("tab", tabID).Str("favicon", favicon).Msg("Favicon changed")
}
