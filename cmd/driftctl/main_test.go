package main

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/drift-predictor/core"
	"github.com/signalsfoundry/drift-predictor/internal/api"
	"github.com/signalsfoundry/drift-predictor/internal/fieldcache"
	"github.com/signalsfoundry/drift-predictor/internal/predict"
	"github.com/signalsfoundry/drift-predictor/internal/tiles"
	"github.com/signalsfoundry/drift-predictor/kb"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

var kayakArgs = []string{
	"predict",
	"--object", "Kayak",
	"--lat", "52.5", "--lon", "4.2",
	"--start", "2025-06-01T13:00:00Z",
	"--hours", "6",
	"--current-u", "0.5", "--wind-u", "5",
}

func TestPredictCmd_JSON(t *testing.T) {
	out, err := execute(t, append(kayakArgs, "-o", "json")...)
	require.NoError(t, err)

	var s structpb.Struct
	require.NoError(t, protojson.Unmarshal([]byte(out), &s))
	f := s.GetFields()
	assert.Equal(t, "Kayak", f["object_type"].GetStringValue())
	assert.Len(t, f["points"].GetListValue().GetValues(), 7)

	rec := f["recommendation"].GetStructValue().GetFields()
	assert.Equal(t, "ParallelSweep", rec["pattern"].GetStringValue())
	assert.InDelta(t, 90, rec["bearing_deg"].GetNumberValue(), 0.5)
	assert.InDelta(t, 12.96, f["distance_km"].GetNumberValue(), 0.1)
}

func TestPredictCmd_Table(t *testing.T) {
	out, err := execute(t, kayakArgs...)
	require.NoError(t, err)

	assert.Contains(t, out, "HOURS")
	assert.Contains(t, out, "2025-06-01T19:00:00Z")
	assert.Contains(t, out, "Search pattern: ParallelSweep")
	assert.Contains(t, out, "Bearing: 90°")
	assert.Contains(t, out, "Survival window remaining: 18.0 h")
}

func TestPredictCmd_RequiresPosition(t *testing.T) {
	_, err := execute(t, "predict", "--lat", "52.5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lon")
}

func TestPredictCmd_UnknownObject(t *testing.T) {
	_, err := execute(t, "predict", "--object", "Dinghy", "--lat", "0", "--lon", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidArgument")
}

func TestPredictCmd_RejectsOutputFormat(t *testing.T) {
	_, err := execute(t, append(kayakArgs, "-o", "xml")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestProfilesCmd_Table(t *testing.T) {
	out, err := execute(t, "profiles")
	require.NoError(t, err)

	assert.Contains(t, out, "Person_Adult_LifeJacket")
	assert.Contains(t, out, "Fishing_Trawler")
	assert.Less(t, bytes.Index([]byte(out), []byte("Catamaran")), bytes.Index([]byte(out), []byte("RHIB")))
}

func TestProfilesCmd_Remote(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	registry := kb.NewBuiltinRegistry()
	cache, err := fieldcache.New(tiles.FetchFunc(tiles.Synthetic{
		Tiling:   fieldcache.DefaultTiling(),
		Velocity: map[string]core.Vector{fieldcache.KindCurrent: {U: 0.2}},
	}), fieldcache.Config{})
	require.NoError(t, err)
	svc := predict.NewService(registry, cache, predict.DefaultConfig())

	srv := grpc.NewServer()
	api.RegisterDriftServiceServer(srv, api.NewServer(svc, registry, nil))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	out, err := execute(t, "profiles", "--server", lis.Addr().String(), "-o", "json")
	require.NoError(t, err)

	var s structpb.Struct
	require.NoError(t, protojson.Unmarshal([]byte(out), &s))
	assert.Len(t, s.GetFields()["profiles"].GetListValue().GetValues(), registry.Len())

	out, err = execute(t, "predict", "--server", lis.Addr().String(),
		"--object", "Person_Adult_NoLifeJacket", "--lat", "10", "--lon", "10",
		"--start", "2025-01-01T00:00:00Z", "--hours", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Search pattern: ")
}
