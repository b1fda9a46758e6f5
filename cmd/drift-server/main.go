package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/drift-predictor/core"
	"github.com/signalsfoundry/drift-predictor/internal/api"
	"github.com/signalsfoundry/drift-predictor/internal/fieldcache"
	"github.com/signalsfoundry/drift-predictor/internal/logging"
	"github.com/signalsfoundry/drift-predictor/internal/observability"
	"github.com/signalsfoundry/drift-predictor/internal/predict"
	"github.com/signalsfoundry/drift-predictor/internal/tiles"
	"github.com/signalsfoundry/drift-predictor/kb"
)

// Config is the drift-server configuration assembled from flags.
type Config struct {
	ListenAddress  string
	MetricsAddress string

	// ProfilesPath optionally overlays the built-in profiles; WatchProfiles
	// reloads it on change.
	ProfilesPath  string
	WatchProfiles bool

	// Tiles come from TileDir, else from the object store when ObjectStore.Bucket
	// is set, else from a synthetic uniform field.
	TileDir       string
	ObjectStore   tiles.ObjectStoreConfig
	SyntheticU    float64
	SyntheticV    float64
	SyntheticWind float64

	FetchRate  float64
	FetchBurst int
	Cache      fieldcache.Config

	StaleTolerance time.Duration
	RequireWind    bool
	MaxDuration    time.Duration

	Tracing observability.TracingConfig
}

func main() {
	cfg := Config{Tracing: observability.TracingConfigFromEnv()}
	flag.StringVar(&cfg.ListenAddress, "grpc-addr", ":50051", "TCP address the drift gRPC server listens on")
	flag.StringVar(&cfg.MetricsAddress, "metrics-addr", ":9090", "HTTP address for Prometheus /metrics (empty disables)")
	flag.StringVar(&cfg.ProfilesPath, "profiles", "", "Optional TOML, YAML or JSON file of object profiles")
	flag.BoolVar(&cfg.WatchProfiles, "watch-profiles", true, "Reload the profiles file when it changes")
	flag.StringVar(&cfg.TileDir, "tile-dir", "", "Directory of field tiles")
	flag.StringVar(&cfg.ObjectStore.Endpoint, "s3-endpoint", "", "S3/MinIO endpoint for field tiles")
	flag.StringVar(&cfg.ObjectStore.Bucket, "s3-bucket", "", "Bucket holding field tiles")
	flag.StringVar(&cfg.ObjectStore.Prefix, "s3-prefix", "", "Object name prefix for field tiles")
	flag.StringVar(&cfg.ObjectStore.Region, "s3-region", "", "Object store region")
	flag.BoolVar(&cfg.ObjectStore.UseSSL, "s3-ssl", true, "Use TLS for the object store")
	flag.Float64Var(&cfg.SyntheticU, "synthetic-u", 0.3, "Eastward current (m/s) when no tile source is configured")
	flag.Float64Var(&cfg.SyntheticV, "synthetic-v", 0.1, "Northward current (m/s) when no tile source is configured")
	flag.Float64Var(&cfg.SyntheticWind, "synthetic-wind", 5, "Eastward wind (m/s) when no tile source is configured")
	flag.Float64Var(&cfg.FetchRate, "fetch-rate", 5, "Upstream tile fetches per second (0 disables limiting)")
	flag.IntVar(&cfg.FetchBurst, "fetch-burst", 4, "Upstream tile fetch burst")
	flag.DurationVar(&cfg.Cache.TTL, "cache-ttl", time.Hour, "Tile cache TTL")
	flag.IntVar(&cfg.Cache.Capacity, "cache-capacity", 256, "Maximum resident tiles")
	flag.DurationVar(&cfg.Cache.FetchTimeout, "fetch-timeout", 30*time.Second, "Upstream tile fetch timeout")
	flag.DurationVar(&cfg.StaleTolerance, "stale-tolerance", 0, "How far past the last field layer integration may continue")
	flag.BoolVar(&cfg.RequireWind, "require-wind", false, "Fail predictions whose wind tile is unavailable")
	flag.DurationVar(&cfg.MaxDuration, "max-duration", 240*time.Hour, "Longest accepted prediction")
	flag.BoolVar(&cfg.Tracing.Enabled, "tracing", cfg.Tracing.Enabled, "Export OpenTelemetry spans (default from DRIFT_TRACING_ENABLED)")
	flag.StringVar(&cfg.Tracing.Exporter, "tracing-exporter", cfg.Tracing.Exporter, "Span exporter: stdout or otlp")
	flag.StringVar(&cfg.Tracing.Endpoint, "otlp-endpoint", cfg.Tracing.Endpoint, "OTLP gRPC collector address")
	flag.Float64Var(&cfg.Tracing.SampleRatio, "trace-sample-ratio", cfg.Tracing.SampleRatio, "Fraction of root spans sampled")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "drift server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves on lis until ctx is done.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	reg := prometheus.NewRegistry()
	driftMetrics, err := observability.NewDriftCollector(reg)
	if err != nil {
		return fmt.Errorf("drift metrics: %w", err)
	}
	cacheMetrics, err := observability.NewCacheCollector(reg)
	if err != nil {
		return fmt.Errorf("cache metrics: %w", err)
	}

	registry, err := loadProfiles(ctx, cfg, log)
	if err != nil {
		return err
	}

	src, err := buildSource(cfg)
	if err != nil {
		return err
	}
	cache, err := fieldcache.New(tiles.FetchFunc(src), cfg.Cache,
		fieldcache.WithMetrics(cacheMetrics),
		fieldcache.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("field cache: %w", err)
	}

	pcfg := predict.DefaultConfig()
	pcfg.Integrator = core.IntegratorConfig{StaleTolerance: cfg.StaleTolerance}.ApplyDefaults()
	pcfg.RequireWind = cfg.RequireWind
	pcfg.MaxDuration = cfg.MaxDuration
	svc := predict.NewService(registry, cache, pcfg,
		predict.WithRecorder(driftMetrics),
		predict.WithLogger(log),
	)

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			api.RequestIDUnaryServerInterceptor(log),
			api.TracingUnaryServerInterceptor(),
			driftMetrics.UnaryServerInterceptor(),
		),
	)
	api.RegisterDriftServiceServer(server, api.NewServer(svc, registry, log))

	metricsSrv := serveMetrics(cfg.MetricsAddress, driftMetrics, log)

	log.Info(ctx, "starting drift gRPC server",
		logging.String("addr", lis.Addr().String()),
		logging.Int("profiles", registry.Len()))
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(lis) }()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	log.Info(context.Background(), "shutting down drift server")
	server.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

func loadProfiles(ctx context.Context, cfg Config, log logging.Logger) (*kb.Registry, error) {
	registry := kb.NewBuiltinRegistry()
	if cfg.ProfilesPath == "" {
		return registry, nil
	}
	if err := registry.Reload(cfg.ProfilesPath); err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	log.Info(ctx, "loaded object profiles",
		logging.String("path", cfg.ProfilesPath),
		logging.Int("count", registry.Len()))

	if cfg.WatchProfiles {
		registry.Subscribe(func(ev kb.Event) {
			log.Info(context.Background(), "object profile changed",
				logging.String("event", ev.Type.String()),
				logging.String("object_type", ev.Profile.ID))
		})
		go func() {
			if err := registry.Watch(ctx, cfg.ProfilesPath, log); err != nil {
				log.Warn(ctx, "profile watcher stopped", logging.Err(err))
			}
		}()
	}
	return registry, nil
}

func buildSource(cfg Config) (tiles.Source, error) {
	var src tiles.Source
	switch {
	case cfg.TileDir != "":
		src = tiles.DirSource{Root: cfg.TileDir}
	case cfg.ObjectStore.Bucket != "":
		obj, err := tiles.NewObjectSource(cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
		src = obj
	default:
		return tiles.Synthetic{
			Tiling: fieldcache.DefaultTiling(),
			Velocity: map[string]core.Vector{
				fieldcache.KindCurrent: {U: cfg.SyntheticU, V: cfg.SyntheticV},
				fieldcache.KindWind:    {U: cfg.SyntheticWind},
			},
		}, nil
	}
	if cfg.FetchRate > 0 {
		src = tiles.NewRateLimited(src, cfg.FetchRate, cfg.FetchBurst)
	}
	return src, nil
}

func serveMetrics(addr string, collector *observability.DriftCollector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
