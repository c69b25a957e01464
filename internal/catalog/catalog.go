// Package catalog persists pipeline runs and their per-scene decisions
// so past results stay queryable after the rasters leave the disk.
package catalog

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// RunStatus tracks a pipeline run through its lifecycle.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one pipeline execution for a city, season and year.
type Run struct {
	ID        string     `json:"id"`
	City      string     `json:"city"`
	Season    string     `json:"season"`
	Year      int        `json:"year"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult summarizes a completed run.
type RunResult struct {
	ScenesConsidered int           `json:"scenes_considered"`
	ScenesAccepted   int           `json:"scenes_accepted"`
	Bands            []BandSummary `json:"bands"`
	Outputs          []string      `json:"outputs"`
}

// BandSummary carries the reference statistics of one elevation band.
type BandSummary struct {
	Index         int     `json:"index"`
	Lower         float64 `json:"lower"`
	Upper         float64 `json:"upper"`
	MeanUrbanTemp float64 `json:"mean_urban_temp"`
	MeanRuralTemp float64 `json:"mean_rural_temp"`
	BandMin       float64 `json:"band_min"`
	BandMax       float64 `json:"band_max"`
	Degenerate    bool    `json:"degenerate,omitempty"`
}

// SceneDecision records why a scene entered or left the composite.
type SceneDecision struct {
	RunID           string    `json:"run_id"`
	SceneID         string    `json:"scene_id"`
	Sensor          string    `json:"sensor"`
	AcquiredAt      time.Time `json:"acquired_at"`
	Accepted        bool      `json:"accepted"`
	InvalidFraction float64   `json:"invalid_fraction"`
	Reason          string    `json:"reason,omitempty"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status RunStatus `json:"status,omitempty"`
	City   string    `json:"city,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for the run catalog.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, city, season string, year int) (*Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *RunResult) error
	FailRun(ctx context.Context, runID string, cause error) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Scene decisions
	RecordDecisions(ctx context.Context, runID string, decisions []SceneDecision) error
	ListDecisions(ctx context.Context, runID string) ([]SceneDecision, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs a Store for the given driver.
func Open(ctx context.Context, driver, databaseURL, sqlitePath string) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, databaseURL, nil)
	case "sqlite":
		return NewSQLite(sqlitePath)
	}
	return nil, eris.Errorf("catalog: unknown driver %q", driver)
}
