// Command driftctl runs drift predictions locally or against a drift-server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/drift-predictor/core"
	"github.com/signalsfoundry/drift-predictor/internal/api"
	"github.com/signalsfoundry/drift-predictor/internal/fieldcache"
	"github.com/signalsfoundry/drift-predictor/internal/logging"
	"github.com/signalsfoundry/drift-predictor/internal/predict"
	"github.com/signalsfoundry/drift-predictor/internal/tiles"
	"github.com/signalsfoundry/drift-predictor/kb"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options are the flags shared by every subcommand.
type options struct {
	server   string
	output   string
	timeout  time.Duration
	profiles string

	tileDir  string
	currentU float64
	currentV float64
	windU    float64
	windV    float64
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "driftctl",
		Short: "Predict search-and-rescue drift",
		Long: `Predicts where a drifting person or vessel will be after a given time and
recommends a search pattern. Runs locally on a tile directory or a uniform
synthetic field, or remotely against a drift-server with --server.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.server, "server", "", "drift-server gRPC address; empty runs locally")
	pf.StringVarP(&opts.output, "output", "o", "table", "output format: table or json")
	pf.DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	pf.StringVar(&opts.profiles, "profiles", "", "local only: TOML, YAML or JSON profile file overlaying the built-ins")
	pf.StringVar(&opts.tileDir, "tile-dir", "", "local only: directory of field tiles")
	pf.Float64Var(&opts.currentU, "current-u", 0.3, "local only: synthetic eastward current (m/s)")
	pf.Float64Var(&opts.currentV, "current-v", 0, "local only: synthetic northward current (m/s)")
	pf.Float64Var(&opts.windU, "wind-u", 0, "local only: synthetic eastward wind (m/s)")
	pf.Float64Var(&opts.windV, "wind-v", 0, "local only: synthetic northward wind (m/s)")

	root.AddCommand(newPredictCmd(opts), newProfilesCmd(opts))
	return root
}

// driftAPI is the subset of DriftService the commands use.
type driftAPI interface {
	Predict(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListProfiles(ctx context.Context) (*structpb.Struct, error)
	Close() error
}

func (o *options) connect() (driftAPI, error) {
	if o.output != "table" && o.output != "json" {
		return nil, fmt.Errorf("unknown output format %q", o.output)
	}
	if o.server != "" {
		conn, err := grpc.NewClient(o.server, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", o.server, err)
		}
		return &remoteAPI{client: api.NewClient(conn), conn: conn}, nil
	}
	return o.local()
}

func (o *options) local() (driftAPI, error) {
	registry := kb.NewBuiltinRegistry()
	if o.profiles != "" {
		if err := registry.Reload(o.profiles); err != nil {
			return nil, fmt.Errorf("load profiles: %w", err)
		}
	}

	var src tiles.Source = tiles.Synthetic{
		Tiling: fieldcache.DefaultTiling(),
		Velocity: map[string]core.Vector{
			fieldcache.KindCurrent: {U: o.currentU, V: o.currentV},
			fieldcache.KindWind:    {U: o.windU, V: o.windV},
		},
	}
	if o.tileDir != "" {
		src = tiles.DirSource{Root: o.tileDir}
	}
	cache, err := fieldcache.New(tiles.FetchFunc(src), fieldcache.Config{})
	if err != nil {
		return nil, err
	}

	// Logs go to stderr so that command output stays parseable.
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	log := logging.New(logging.Config{Level: level, Format: os.Getenv("LOG_FORMAT"), Output: os.Stderr})
	svc := predict.NewService(registry, cache, predict.DefaultConfig(), predict.WithLogger(log))
	return localAPI{srv: api.NewServer(svc, registry, log)}, nil
}

type localAPI struct {
	srv *api.Server
}

func (l localAPI) Predict(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return l.srv.Predict(ctx, in)
}

func (l localAPI) ListProfiles(ctx context.Context) (*structpb.Struct, error) {
	return l.srv.ListProfiles(ctx, &emptypb.Empty{})
}

func (localAPI) Close() error { return nil }

type remoteAPI struct {
	client *api.Client
	conn   *grpc.ClientConn
}

func (r *remoteAPI) Predict(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return r.client.Predict(ctx, in)
}

func (r *remoteAPI) ListProfiles(ctx context.Context) (*structpb.Struct, error) {
	return r.client.ListProfiles(ctx)
}

func (r *remoteAPI) Close() error { return r.conn.Close() }
