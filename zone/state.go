package zone

import (
	"sync"
	"time"
)

// Result is one completed pipeline run: the indexed boundary snapshot plus
// the weighted datasets that fed it.
type Result struct {
	Boundaries Boundaries
	Datasets   []*Dataset
	ComputedAt time.Time
}

// StateTracker holds the latest pipeline result and the live point events
// accumulated from MQTT feeds, for the HTTP endpoints and the recompute
// loop. Each recomputation works on snapshots; the tracker swap is the only
// synchronized step, so a run never shares mutable state with the previous
// one.
type StateTracker struct {
	mu       sync.RWMutex
	result   *Result
	baseline map[string]*Dataset // dataset ID -> records loaded from disk
	live     map[string][]Record // dataset ID -> records received over MQTT
	order    []string            // dataset IDs in config order
}

// NewStateTracker creates an empty state tracker.
func NewStateTracker() *StateTracker {
	return &StateTracker{
		baseline: make(map[string]*Dataset),
		live:     make(map[string][]Record),
	}
}

// SetBaseline registers a dataset loaded from disk. Datasets snapshot in
// registration order.
func (st *StateTracker) SetBaseline(id string, ds *Dataset) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.baseline[id]; !ok {
		st.order = append(st.order, id)
	}
	st.baseline[id] = ds
}

// AddLiveRecord appends a live point event for a dataset feed. Unknown feed
// IDs create a new geometry-bearing dataset.
func (st *StateTracker) AddLiveRecord(id string, rec Record) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.baseline[id]; !ok {
		if !containsString(st.order, id) {
			st.order = append(st.order, id)
		}
	}
	st.live[id] = append(st.live[id], rec)
}

// LiveCount returns the number of live records accumulated for a feed.
func (st *StateTracker) LiveCount(id string) int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.live[id])
}

// SnapshotDatasets merges baseline and live records into fresh dataset
// copies for a pipeline run.
func (st *StateTracker) SnapshotDatasets() []*Dataset {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]*Dataset, 0, len(st.order))
	for _, id := range st.order {
		var ds *Dataset
		if base, ok := st.baseline[id]; ok {
			ds = base.Clone()
		} else {
			ds = &Dataset{Name: id, HasGeometry: true}
		}
		for _, rec := range st.live[id] {
			attrs := make(map[string]any, len(rec.Attrs))
			for k, v := range rec.Attrs {
				attrs[k] = v
			}
			ds.Records = append(ds.Records, Record{Point: rec.Point, Attrs: attrs})
		}
		out = append(out, ds)
	}
	return out
}

// UpdateResult swaps in a freshly computed result.
func (st *StateTracker) UpdateResult(res *Result) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.result = res
}

// GetResult returns the latest result, or nil before the first run.
func (st *StateTracker) GetResult() *Result {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.result
}

// HasResult reports whether at least one run has completed.
func (st *StateTracker) HasResult() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.result != nil
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
