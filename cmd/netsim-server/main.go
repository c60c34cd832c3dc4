package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prism-p2p/network-simulator/catalog"
	"github.com/prism-p2p/network-simulator/core"
	"github.com/prism-p2p/network-simulator/internal/api"
	"github.com/prism-p2p/network-simulator/internal/config"
	"github.com/prism-p2p/network-simulator/internal/logging"
	"github.com/prism-p2p/network-simulator/internal/observability"
	"github.com/prism-p2p/network-simulator/internal/shaping"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML/JSON daemon config file")
	listenAddr := flag.String("listen", "", "HTTP facade address (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus /metrics address (overrides config)")
	catalogPath := flag.String("catalog", "", "Path to the JSON profile catalog (overrides config)")
	iface := flag.String("interface", "", "Network interface to shape (overrides config)")
	backendName := flag.String("backend", "", "Shaping backend: tc or noop (overrides config)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg := loadConfig(ctx, log, *configPath)
	override(&cfg.ListenAddr, *listenAddr)
	override(&cfg.MetricsAddr, *metricsAddr)
	override(&cfg.CatalogPath, *catalogPath)
	override(&cfg.Interface, *iface)
	override(&cfg.Backend, *backendName)
	if err := cfg.Validate(); err != nil {
		log.Error(ctx, "invalid configuration", logging.String("error", err.Error()))
		os.Exit(1)
	}

	collector, err := observability.NewSimulatorCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(cfg.MetricsAddr, collector, log)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}

	cat := loadCatalog(ctx, log, cfg.CatalogPath)

	var backend core.ShapingBackend
	switch cfg.Backend {
	case config.BackendNoop:
		backend = shaping.NewNoop()
		log.Info(ctx, "using noop shaping backend (dry run)")
	default:
		backend = shaping.NewTCBackend(cfg.Interface, shaping.WithLogger(log))
		log.Info(ctx, "using tc shaping backend", logging.String("interface", cfg.Interface))
	}

	engine, err := core.NewEngine(cat, backend,
		core.WithLogger(log),
		core.WithMetricsRecorder(collector),
		core.WithBaselineProfile(cfg.BaselineProfile),
	)
	if err != nil {
		log.Error(ctx, "failed to build scenario engine", logging.String("error", err.Error()))
		os.Exit(1)
	}

	facade := api.NewServer(engine, cat,
		api.WithLogger(log),
		api.WithMetrics(collector),
	)
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: facade.Handler(),
	}

	log.Info(ctx, "starting network simulator",
		logging.String("addr", cfg.ListenAddr),
		logging.Int("profiles", len(cat.ProfileNames())),
		logging.Int("scenarios", len(cat.ScenarioNames())),
	)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server exited", logging.String("error", err.Error()))
		}
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-stopCtx.Done()

	log.Info(ctx, "shutting down network simulator")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	if err := engine.Close(shutdownCtx); err != nil {
		log.Warn(ctx, "engine shutdown failed", logging.String("error", err.Error()))
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
}

// loadConfig reads the config file if one was given; otherwise the
// defaults apply.
func loadConfig(ctx context.Context, log logging.Logger, path string) config.Config {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		log.Error(ctx, "failed to load config", logging.String("path", path), logging.String("error", err.Error()))
		os.Exit(1)
	}
	return cfg
}

// loadCatalog loads the profile catalog, falling back to the built-in
// one when the file is unreadable or malformed. The fallback is loud:
// silently dropping operator-defined profiles would make test runs lie.
func loadCatalog(ctx context.Context, log logging.Logger, path string) *catalog.Catalog {
	cat, err := catalog.LoadFile(path)
	if err != nil {
		log.Warn(ctx, "catalog load failed; falling back to built-in profiles",
			logging.String("path", path),
			logging.String("error", err.Error()))
		return catalog.Builtin()
	}
	log.Info(ctx, "loaded profile catalog",
		logging.String("path", path),
		logging.Int("profiles", len(cat.ProfileNames())),
		logging.Int("scenarios", len(cat.ScenarioNames())))
	return cat
}

func serveMetrics(addr string, collector *observability.SimulatorCollector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
