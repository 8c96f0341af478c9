package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/samteezy/clip/internal/cache"
	"github.com/samteezy/clip/internal/clerr"
	"github.com/samteezy/clip/internal/config"
	"github.com/samteezy/clip/internal/escalation"
	"github.com/samteezy/clip/internal/frontend"
	"github.com/samteezy/clip/internal/masker"
	"github.com/samteezy/clip/internal/monitoring"
	"github.com/samteezy/clip/internal/pipeline"
	"github.com/samteezy/clip/internal/policy"
	"github.com/samteezy/clip/internal/summarizer"
	"github.com/samteezy/clip/internal/upstream"
)

const shutdownTimeout = 10 * time.Second

// exitError pairs a plain error with the spec.md §6 exit code it should
// produce, so cobra's error-returning RunE can still carry it to main.
type exitError struct {
	err  error
	code int
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return &exitError{err: err, code: 1}
	}
	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return &exitError{err: err, code: 1}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		setupLogging(nil, debug)
		log.Error().Err(err).Str("config", configPath).Msg("clip: failed to load configuration")
		return &exitError{err: err, code: 1}
	}
	setupLogging(cfg.Logging, debug)

	log.Info().Str("config", configPath).Int("upstreams", len(cfg.Upstreams)).Msg("clip: starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := upstream.NewRegistry(cfg.Upstreams)
	registry.Start(ctx)
	defer registry.Shutdown()

	resolver := policy.New(cfg)
	respCache := cache.New()
	respCache.StartSweeper(ctx, config.DefaultSweepInterval)
	defer respCache.Stop()

	pii := masker.New()
	summ := summarizer.New(config.DefaultSummarizerTimeout)
	escTracker := escalation.New()

	metrics := monitoring.NewMetricsCollector()
	pipe := pipeline.New(resolver, registry, respCache, pii, summ, escTracker).WithMetrics(metrics)
	front := frontend.New(registry, resolver, pipe)
	front.Refresh()

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- front.ServeStdio()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("clip: shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := waitForShutdown(shutdownCtx, serveErrCh)
		logFinalStats(metrics)
		return err
	case err := <-serveErrCh:
		logFinalStats(metrics)
		if err != nil {
			log.Error().Err(err).Msg("clip: frontend exited with error")
			return &exitError{err: err, code: 2}
		}
		log.Info().Msg("clip: frontend exited")
		return nil
	}
}

// logFinalStats reports the run's operational metrics at shutdown (spec.md
// §4.B's Status() is the live per-upstream analog; this is the call-level
// one, useful for the operator without requiring a standing metrics
// endpoint this spec doesn't call for).
func logFinalStats(metrics *monitoring.MetricsCollector) {
	stats := metrics.FullStats()
	log.Info().
		Str("uptime", stats.Uptime).
		Int64("calls", stats.Calls.Total).
		Int64("cache_hits", stats.Cache.Hits).
		Int64("cache_misses", stats.Cache.Misses).
		Int64("compressions", stats.Compression.Successful).
		Int64("masked", stats.Masking.Redactions).
		Int64("escalations", stats.Escalation.Activations).
		Msg("clip: final stats")
}

// waitForShutdown gives the in-flight ServeStdio call a chance to return
// its own error (e.g. the transport closing cleanly) before the shutdown
// timeout elapses.
func waitForShutdown(ctx context.Context, serveErrCh chan error) error {
	select {
	case err := <-serveErrCh:
		if err != nil && !isExpectedShutdownError(err) {
			return &exitError{err: err, code: 2}
		}
		return nil
	case <-ctx.Done():
		log.Warn().Msg("clip: shutdown timed out waiting for frontend to exit")
		return nil
	}
}

func isExpectedShutdownError(err error) bool {
	var protoErr *clerr.ProtocolError
	return errors.Is(err, context.Canceled) || errors.As(err, &protoErr)
}

// setupLogging configures the global zerolog logger. logCfg may be nil
// when config.Load itself failed, in which case only --debug applies.
// Logs always go to stderr: stdout carries the MCP stdio JSON-RPC stream
// and must stay free of anything but protocol frames.
func setupLogging(logCfg *config.LoggingConfig, debugFlag bool) {
	pretty := false
	level := zerolog.InfoLevel

	if logCfg != nil {
		pretty = logCfg.Pretty
		if parsed, err := zerolog.ParseLevel(logCfg.Level); err == nil && logCfg.Level != "" {
			level = parsed
		}
	}
	if debugFlag {
		level = zerolog.DebugLevel
	}

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = log.Output(os.Stderr)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
}
