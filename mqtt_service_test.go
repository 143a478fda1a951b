package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwv/zoneindex/zone"
)

func TestMarkDirty_CoalescesBursts(t *testing.T) {
	app := NewApp()

	for i := 0; i < 10; i++ {
		app.markDirty()
	}

	// Only one pending recompute regardless of how many events arrived.
	select {
	case <-app.dirty:
	default:
		t.Fatal("expected a pending dirty marker")
	}
	select {
	case <-app.dirty:
		t.Fatal("dirty channel should coalesce to a single marker")
	default:
	}
}

// TestLiveEventFlow feeds a decoded point event through the service handler
// and verifies it lands in the next snapshot and marks the state dirty.
func TestLiveEventFlow(t *testing.T) {
	app := NewApp()

	handler := func(datasetID string, rec zone.Record, err error) {
		if err != nil {
			return
		}
		app.State.AddLiveRecord(datasetID, rec)
		app.markDirty()
	}

	rec, err := zone.DecodePointEvent([]byte(`{"longitude": 0.5, "latitude": 0.5, "attributes": {"v": 3}}`))
	require.NoError(t, err)
	handler("incidents", rec, nil)

	assert.Equal(t, 1, app.State.LiveCount("incidents"))

	snap := app.State.SnapshotDatasets()
	require.Len(t, snap, 1)
	require.Len(t, snap[0].Records, 1)
	assert.Equal(t, 0.5, snap[0].Records[0].Point[0])

	select {
	case <-app.dirty:
	default:
		t.Fatal("live event should mark the state dirty")
	}
}
