package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/urbanclimate/suhi-cli/internal/catalog"
	"github.com/urbanclimate/suhi-cli/internal/composite"
	"github.com/urbanclimate/suhi-cli/internal/monitoring"
	"github.com/urbanclimate/suhi-cli/internal/scene"
)

// fakeStore records calls without a database.
type fakeStore struct {
	run       *catalog.Run
	statuses  []catalog.RunStatus
	result    *catalog.RunResult
	decisions []catalog.SceneDecision
	failed    error
}

func (f *fakeStore) CreateRun(_ context.Context, city, season string, year int) (*catalog.Run, error) {
	f.run = &catalog.Run{ID: "run-1", City: city, Season: season, Year: year, Status: catalog.RunStatusQueued}
	return f.run, nil
}

func (f *fakeStore) UpdateRunStatus(_ context.Context, _ string, status catalog.RunStatus) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeStore) UpdateRunResult(_ context.Context, _ string, result *catalog.RunResult) error {
	f.result = result
	return nil
}

func (f *fakeStore) FailRun(_ context.Context, _ string, cause error) error {
	f.failed = cause
	return nil
}

func (f *fakeStore) GetRun(context.Context, string) (*catalog.Run, error) { return f.run, nil }

func (f *fakeStore) ListRuns(context.Context, catalog.RunFilter) ([]catalog.Run, error) {
	return nil, nil
}

func (f *fakeStore) RecordDecisions(_ context.Context, _ string, decisions []catalog.SceneDecision) error {
	f.decisions = decisions
	return nil
}

func (f *fakeStore) ListDecisions(context.Context, string) ([]catalog.SceneDecision, error) {
	return f.decisions, nil
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Close() error                  { return nil }

func TestRecordRun_MapsManifestAndDecisions(t *testing.T) {
	store := &fakeStore{}
	r := NewRunner(Options{City: "Graz", Season: "summer", Year: 2022}, WithStore(store))

	manifest := &Manifest{
		City:             "Graz",
		ScenesConsidered: 2,
		ScenesAccepted:   1,
		Bands: []BandManifest{
			{Index: 0, Lower: 300, Upper: 400, MeanUrbanTemp: 31, MeanRuralTemp: 27},
		},
		Outputs: []string{"graz_summer_2022_suhi.tif"},
	}
	decisions := []composite.Decision{
		{
			SceneID:    "LC08_L2SP_190027_20220615_20220628_02_T1",
			Sensor:     scene.SensorOLITIRS,
			AcquiredAt: time.Date(2022, 6, 15, 0, 0, 0, 0, time.UTC),
			Accepted:   true,
		},
		{
			SceneID:         "LE07_L2SP_190027_20220702_20220715_02_T1",
			Sensor:          scene.SensorETM,
			AcquiredAt:      time.Date(2022, 7, 2, 0, 0, 0, 0, time.UTC),
			InvalidFraction: 0.9,
			Reason:          "scene: too many invalid cells",
		},
	}

	require.NoError(t, r.recordRun(context.Background(), "run-1", manifest, decisions))

	require.NotNil(t, store.result)
	assert.Equal(t, 1, store.result.ScenesAccepted)
	require.Len(t, store.result.Bands, 1)
	assert.InDelta(t, 27, store.result.Bands[0].MeanRuralTemp, 0.001)

	require.Len(t, store.decisions, 2)
	assert.Equal(t, "run-1", store.decisions[0].RunID)
	assert.Equal(t, "oli_tirs", store.decisions[0].Sensor)
	assert.InDelta(t, 0.9, store.decisions[1].InvalidFraction, 0.001)
}

func TestRunFailureRecordedInCatalog(t *testing.T) {
	store := &fakeStore{}
	// A scenes directory that does not exist aborts the run early.
	r := NewRunner(Options{
		City:      "Graz",
		Season:    "summer",
		Year:      2022,
		ScenesDir: filepath.Join(t.TempDir(), "missing"),
		OutputDir: t.TempDir(),
	}, WithStore(store))

	_, err := r.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, store.run)
	assert.Equal(t, []catalog.RunStatus{catalog.RunStatusRunning}, store.statuses)
	assert.Error(t, store.failed)
}

func TestWriteManifest(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(Options{City: "Graz", Season: "summer", Year: 2022, OutputDir: dir})

	manifest := &Manifest{
		City:           "Graz",
		Season:         "summer",
		Year:           2022,
		GeneratedAt:    time.Date(2022, 9, 1, 12, 0, 0, 0, time.UTC),
		ScenesAccepted: 3,
		Bands:          []BandManifest{{Index: 0, Lower: 300, Upper: 400}},
	}
	require.NoError(t, r.writeManifest(manifest))

	path := filepath.Join(dir, "graz_summer_2022_run.yaml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Manifest
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, "Graz", got.City)
	assert.Equal(t, 3, got.ScenesAccepted)
	require.Len(t, got.Bands, 1)
	assert.InDelta(t, 300, got.Bands[0].Lower, 0.001)

	// The manifest path joins the output list after writing.
	assert.Contains(t, manifest.Outputs, path)
}

func TestCountScenes_Metrics(t *testing.T) {
	m := monitoring.NewMetricsForTesting()
	r := NewRunner(Options{}, WithMetrics(m))

	r.countScenes([]composite.Decision{
		{Accepted: true},
		{Accepted: true},
		{Reason: "scene: outside target date range"},
		{Reason: "scene: too many invalid cells", InvalidFraction: 0.9},
		{Reason: "raster: open missing_ST_B10.tif"},
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScenesAccepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScenesSkipped.WithLabelValues("outside_range")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScenesSkipped.WithLabelValues("invalid_fraction")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScenesSkipped.WithLabelValues("unreadable")))
}
