package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/drift-predictor/internal/api"
	"github.com/signalsfoundry/drift-predictor/internal/logging"
	"github.com/signalsfoundry/drift-predictor/internal/predict"
	"github.com/signalsfoundry/drift-predictor/internal/tiles"
	"github.com/signalsfoundry/drift-predictor/model"
)

func TestDriftServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	cfg := Config{
		ListenAddress: lis.Addr().String(),
		SyntheticU:    0.5,
		SyntheticWind: 5,
		MaxDuration:   240 * time.Hour,
	}
	log := logging.New(logging.Config{Level: "warn", Format: "text"})

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, log, lis)
	}()

	conn, err := grpc.NewClient(cfg.ListenAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()
	client := api.NewClient(conn)

	profiles, err := client.ListProfiles(ctx)
	if err != nil {
		t.Fatalf("ListProfiles: %v", err)
	}
	if n := len(profiles.GetFields()["profiles"].GetListValue().GetValues()); n != len(model.BuiltinProfiles()) {
		t.Fatalf("profiles = %d, want %d", n, len(model.BuiltinProfiles()))
	}

	in, err := api.PredictRequestToStruct(predict.Request{
		ObjectType: "Person_Adult_LifeJacket",
		Start:      model.Position{Lat: 43.2, Lon: -8.9},
		StartTime:  time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC),
		Duration:   3 * time.Hour,
	})
	if err != nil {
		t.Fatalf("PredictRequestToStruct: %v", err)
	}
	out, err := client.Predict(ctx, in)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if n := len(out.GetFields()["points"].GetListValue().GetValues()); n != 4 {
		t.Fatalf("points = %d, want 4", n)
	}

	cancel()

	if err := <-errCh; err != nil {
		t.Fatalf("server returned error: %v", err)
	}
}

func TestLoadProfilesOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	data := []byte(`profiles:
  - id: Liferaft_6
    description: Six-person liferaft with drogue
    drag_factor: 0.7
    wind_factor: 0.03
    survival_hours: 96
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write profiles: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registry, err := loadProfiles(ctx, Config{ProfilesPath: path}, logging.Noop())
	if err != nil {
		t.Fatalf("loadProfiles: %v", err)
	}
	if got, want := registry.Len(), len(model.BuiltinProfiles())+1; got != want {
		t.Fatalf("profiles = %d, want %d", got, want)
	}
	raft, err := registry.Lookup("Liferaft_6")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if raft.DragFactor != 0.7 {
		t.Fatalf("drag factor = %v, want 0.7", raft.DragFactor)
	}

	if _, err := loadProfiles(ctx, Config{ProfilesPath: filepath.Join(t.TempDir(), "missing.toml")}, logging.Noop()); err == nil {
		t.Fatalf("expected error for a missing profiles file")
	}
}

func TestBuildSourceSelection(t *testing.T) {
	src, err := buildSource(Config{TileDir: t.TempDir(), FetchRate: 2, FetchBurst: 1})
	if err != nil {
		t.Fatalf("buildSource(dir): %v", err)
	}
	if _, ok := src.(*tiles.RateLimited); !ok {
		t.Fatalf("dir source with a fetch rate = %T, want *tiles.RateLimited", src)
	}

	src, err = buildSource(Config{TileDir: t.TempDir()})
	if err != nil {
		t.Fatalf("buildSource(dir): %v", err)
	}
	if _, ok := src.(tiles.DirSource); !ok {
		t.Fatalf("dir source = %T, want tiles.DirSource", src)
	}

	src, err = buildSource(Config{SyntheticU: 1})
	if err != nil {
		t.Fatalf("buildSource(synthetic): %v", err)
	}
	if _, ok := src.(tiles.Synthetic); !ok {
		t.Fatalf("default source = %T, want tiles.Synthetic", src)
	}

	if _, err := buildSource(Config{ObjectStore: tiles.ObjectStoreConfig{Bucket: "tiles"}}); err == nil {
		t.Fatalf("expected error for an object store without endpoint")
	}
}
