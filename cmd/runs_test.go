package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/urbanclimate/suhi-cli/internal/catalog"
)

func TestFormatRunsList(t *testing.T) {
	created := time.Date(2022, 9, 1, 10, 0, 0, 0, time.UTC)
	runs := []catalog.Run{
		{
			ID:        "a1b2c3d4-0000-0000-0000-000000000000",
			City:      "Graz",
			Season:    "summer",
			Year:      2022,
			Status:    catalog.RunStatusComplete,
			Result:    &catalog.RunResult{ScenesConsidered: 12, ScenesAccepted: 9},
			CreatedAt: created,
			UpdatedAt: created.Add(90 * time.Second),
		},
		{
			ID:        "deadbeef-0000-0000-0000-000000000000",
			City:      "Bologna",
			Season:    "winter",
			Year:      2021,
			Status:    catalog.RunStatusFailed,
			CreatedAt: created,
			UpdatedAt: created,
		},
	}

	var sb strings.Builder
	formatRunsList(&sb, runs)
	out := sb.String()

	assert.Contains(t, out, "a1b2c3d4")
	assert.NotContains(t, out, "a1b2c3d4-0000")
	assert.Contains(t, out, "9/12")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "Bologna")
}

func TestFormatDecisions(t *testing.T) {
	decisions := []catalog.SceneDecision{
		{
			SceneID:    "LC08_L2SP_190027_20220615_20220628_02_T1",
			Sensor:     "oli_tirs",
			AcquiredAt: time.Date(2022, 6, 15, 0, 0, 0, 0, time.UTC),
			Accepted:   true,
		},
		{
			SceneID:         "LE07_L2SP_190027_20220702_20220715_02_T1",
			Sensor:          "etm",
			AcquiredAt:      time.Date(2022, 7, 2, 0, 0, 0, 0, time.UTC),
			InvalidFraction: 0.83,
			Reason:          "scene: too many invalid cells",
		},
	}

	var sb strings.Builder
	formatDecisions(&sb, decisions)
	out := sb.String()

	assert.Contains(t, out, "2022-06-15")
	assert.Contains(t, out, "0.83")
	assert.Contains(t, out, "too many invalid cells")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "a1b2c3d4", truncateID("a1b2c3d4-e5f6"))
	assert.Equal(t, "short", truncateID("short"))
}
