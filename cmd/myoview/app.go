package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"myoview/internal/blob"
	"myoview/internal/config"
	"myoview/internal/model"
	"myoview/internal/persistence"
	"myoview/internal/scene"
	"myoview/internal/viewer"
)

// globalOptions are the persistent root flags.
type globalOptions struct {
	configPath  string
	modelPath   string
	joints      bool
	logFormat   string
	logLevel    string
	logFile     string
	metrics     string
	metricsAddr string
	traceFile   string
}

// app is one wired viewer session.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	model   *model.Model
	scene   *scene.Scene
	gateway *persistence.Gateway
	svc     *viewer.Service

	closers []func() error
}

func newLogger(opts globalOptions, fallback io.Writer) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return nil, nil, fmt.Errorf("log level %q: %w", opts.logLevel, err)
	}
	w := fallback
	var closer io.Closer
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(opts.logFormat) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), closer, nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), closer, nil
	default:
		if closer != nil {
			_ = closer.Close()
		}
		return nil, nil, fmt.Errorf("unknown log format %q", opts.logFormat)
	}
}

// openApp loads configuration and the model, opens storage and starts the
// viewer service. Storage failures degrade the session instead of failing it.
func openApp(ctx context.Context, opts globalOptions, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.modelPath != "" {
		cfg.Model = opts.modelPath
	}
	if opts.joints {
		cfg.Joints = true
	}

	logger, logCloser, err := newLogger(opts, logOut)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	if logCloser != nil {
		a.closers = append(a.closers, logCloser.Close)
	}

	started := time.Now()
	a.model, err = model.Load(cfg.Model, cfg.ModelOptions())
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	logger.Info("model loaded", "path", cfg.Model, "entities", a.model.Catalogue.Len(), "elapsed", time.Since(started))

	state, err := persistence.OpenStateStore(ctx)
	if err != nil {
		logger.Warn("state store unavailable, names will not persist", "error", err)
		state = brokenStore{err: err}
	}
	gwOpts := []persistence.Option{
		persistence.WithArchivePrefix(cfg.ExportPrefix),
		persistence.WithLogger(logger),
	}
	if archive, err := blob.Open(ctx); err != nil {
		logger.Warn("export archive unavailable", "error", err)
	} else {
		gwOpts = append(gwOpts, persistence.WithArchive(archive))
	}
	a.gateway = persistence.NewGateway(state, gwOpts...)

	a.scene = scene.New(a.model, scene.Options{Palette: cfg.Palette, MarkerRadius: cfg.MarkerRadius})
	a.scene.SetOverlay(cfg.Joints)

	svcOpts := []viewer.Option{
		viewer.WithGateway(a.gateway),
		viewer.WithPalette(cfg.Palette),
		viewer.WithPulse(cfg.Pulse),
		viewer.WithLocale(cfg.Tag()),
		viewer.WithLogger(logger),
	}
	metricsOpt, err := a.metrics(opts)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if metricsOpt != nil {
		svcOpts = append(svcOpts, metricsOpt)
	}
	if opts.traceFile != "" {
		f, err := os.OpenFile(opts.traceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.closers = append(a.closers, f.Close)
		svcOpts = append(svcOpts, viewer.WithTracer(viewer.NewJSONTracer(f)))
	}

	a.svc = viewer.New(a.model.Catalogue, a.scene, svcOpts...)
	report := a.svc.Start(ctx)
	logger.Debug("names hydrated", "imported", report.Imported, "skipped", report.Skipped)
	return a, nil
}

// metrics builds the recorder named by --metrics and, when --metrics-addr is
// set, serves it over HTTP for the lifetime of the app.
func (a *app) metrics(opts globalOptions) (viewer.Option, error) {
	mux := http.NewServeMux()
	var opt viewer.Option
	switch strings.ToLower(opts.metrics) {
	case "", "none":
		return nil, nil
	case "expvar":
		opt = viewer.WithMetricsRecorder(viewer.NewExpvarMetricsRecorder(""))
		mux.Handle("/debug/vars", expvar.Handler())
	case "prometheus":
		reg := prometheus.NewRegistry()
		rec, err := viewer.NewPrometheusMetricsRecorder(reg)
		if err != nil {
			return nil, err
		}
		opt = viewer.WithMetricsRecorder(rec)
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	default:
		return nil, fmt.Errorf("unknown metrics backend %q", opts.metrics)
	}
	if opts.metricsAddr != "" {
		srv := &http.Server{Addr: opts.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics listener stopped", "addr", opts.metricsAddr, "error", err)
			}
		}()
		a.closers = append(a.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		})
	}
	return opt, nil
}

// Close releases the service and every resource opened for it.
func (a *app) Close() error {
	var errs []error
	if a.svc != nil {
		errs = append(errs, a.svc.Close())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// brokenStore stands in for a state backend that failed to open so the
// gateway reports degraded storage on first use.
type brokenStore struct{ err error }

func (b brokenStore) Load(context.Context, string) ([]byte, bool, error) { return nil, false, b.err }
func (b brokenStore) Save(context.Context, string, []byte) error         { return b.err }
func (brokenStore) Close() error                                         { return nil }
func (brokenStore) Driver() string                                       { return "unavailable" }
