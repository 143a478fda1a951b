package zone

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

// square builds a closed axis-aligned square zone from (x0,y0) to (x1,y1).
func square(id string, x0, y0, x1, y1 float64) *Zone {
	ring := orb.Ring{
		{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0},
	}
	return &Zone{ID: id, Geometry: orb.MultiPolygon{orb.Polygon{ring}}}
}

func pointRecord(x, y float64, attrs map[string]any) Record {
	return Record{Point: orb.Point{x, y}, Attrs: attrs}
}

func TestAggregate_TwoDisjointSquares(t *testing.T) {
	// Two disjoint unit squares: [0,1]x[0,1] and [10,11]x[10,11].
	zones := Boundaries{
		square("west", 0, 0, 1, 1),
		square("east", 10, 10, 11, 11),
	}

	specs := []*WeightSpec{{Attribute: "value", Weight: 1}}
	ds := &Dataset{
		Name:        "events",
		HasGeometry: true,
		Records: []Record{
			pointRecord(0.5, 0.5, map[string]any{"value": 2.0}),
			pointRecord(0.25, 0.75, map[string]any{"value": 3.0}),
			pointRecord(10.5, 10.5, map[string]any{"value": 7.0}),
		},
	}

	agg := NewAggregator(nil)
	if err := agg.Aggregate(zones, []*Dataset{ds}, specs, false); err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	assert.InDelta(t, 5.0, zones.ByID("west").SecurityIndex, 1e-9)
	assert.InDelta(t, 7.0, zones.ByID("east").SecurityIndex, 1e-9)
}

func TestAggregate_EmptyZoneKeepsZero(t *testing.T) {
	zones := Boundaries{
		square("full", 0, 0, 1, 1),
		square("empty", 5, 5, 6, 6),
	}
	specs := []*WeightSpec{{Attribute: "v", Weight: 1}}
	ds := &Dataset{
		Name:        "d",
		HasGeometry: true,
		Records:     []Record{pointRecord(0.5, 0.5, map[string]any{"v": 1.0})},
	}

	agg := NewAggregator(nil)
	if err := agg.Aggregate(zones, []*Dataset{ds}, specs, false); err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	assert.Equal(t, 0.0, zones.ByID("empty").SecurityIndex)
}

func TestAggregate_PointOutsideAllZonesReported(t *testing.T) {
	zones := Boundaries{square("only", 0, 0, 1, 1)}
	specs := []*WeightSpec{{Attribute: "v", Weight: 1}}
	ds := &Dataset{
		Name:        "d",
		HasGeometry: true,
		Records:     []Record{pointRecord(50, 50, map[string]any{"v": 9.0})},
	}

	rep := &CollectReporter{}
	agg := NewAggregator(rep)
	if err := agg.Aggregate(zones, []*Dataset{ds}, specs, false); err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	assert.Equal(t, 0.0, zones[0].SecurityIndex)
	events := rep.Events()
	if assert.Len(t, events, 1) {
		assert.Equal(t, LevelInfo, events[0].Level)
		assert.Contains(t, events[0].Message, "outside")
	}
}

func TestAggregate_MissingAttributeContributesZero(t *testing.T) {
	zones := Boundaries{square("z", 0, 0, 1, 1)}
	specs := []*WeightSpec{
		{Attribute: "present", Weight: 0.5},
		{Attribute: "absent", Weight: 0.5},
	}
	ds := &Dataset{
		Name:        "d",
		HasGeometry: true,
		Records:     []Record{pointRecord(0.5, 0.5, map[string]any{"present": 2.0})},
	}

	rep := &CollectReporter{}
	agg := NewAggregator(rep)
	if err := agg.Aggregate(zones, []*Dataset{ds}, specs, false); err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	// Only the present attribute contributes: 2.0 * 0.5.
	assert.InDelta(t, 1.0, zones[0].SecurityIndex, 1e-9)

	events := rep.Events()
	if assert.Len(t, events, 1) {
		assert.Equal(t, LevelWarning, events[0].Level)
		assert.Contains(t, events[0].Message, "absent")
	}
}

func TestAggregate_MissingGeometry(t *testing.T) {
	zones := Boundaries{square("z", 0, 0, 1, 1)}
	ds := &Dataset{Name: "tabular", HasGeometry: false}

	agg := NewAggregator(nil)
	err := agg.Aggregate(zones, []*Dataset{ds}, nil, false)
	var mge *MissingGeometryError
	if !errors.As(err, &mge) {
		t.Fatalf("want MissingGeometryError, got %v", err)
	}
	assert.Equal(t, "tabular", mge.Dataset)
}

func TestAggregate_MultiPolygonZone(t *testing.T) {
	// One zone made of two disjoint parts; points in either part accumulate
	// on the same zone.
	z := &Zone{
		ID: "split",
		Geometry: orb.MultiPolygon{
			orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}},
			orb.Polygon{orb.Ring{{5, 5}, {6, 5}, {6, 6}, {5, 6}, {5, 5}}},
		},
	}
	zones := Boundaries{z}
	specs := []*WeightSpec{{Attribute: "v", Weight: 1}}
	ds := &Dataset{
		Name:        "d",
		HasGeometry: true,
		Records: []Record{
			pointRecord(0.5, 0.5, map[string]any{"v": 1.0}),
			pointRecord(5.5, 5.5, map[string]any{"v": 2.0}),
		},
	}

	agg := NewAggregator(nil)
	if err := agg.Aggregate(zones, []*Dataset{ds}, specs, false); err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	assert.InDelta(t, 3.0, z.SecurityIndex, 1e-9)
}

func TestMergeByZoneID(t *testing.T) {
	zones := Boundaries{
		square("z1", 0, 0, 1, 1),
		square("z2", 2, 2, 3, 3),
	}
	weights := map[string]float64{"burglary": 0.6, "assault": 0.4}
	rows := []ZoneRow{
		{ZoneID: "z1", Attrs: map[string]any{"burglary": "10", "assault": "5"}},
		{ZoneID: "z2", Attrs: map[string]any{"burglary": "2", "assault": "0"}},
	}

	agg := NewAggregator(nil)
	if err := agg.MergeByZoneID(zones, rows, weights); err != nil {
		t.Fatalf("MergeByZoneID: %v", err)
	}

	assert.InDelta(t, 10*0.6+5*0.4, zones.ByID("z1").SecurityIndex, 1e-9)
	assert.InDelta(t, 2*0.6, zones.ByID("z2").SecurityIndex, 1e-9)
}

func TestMergeByZoneID_MissingJoinKey(t *testing.T) {
	zones := Boundaries{square("z1", 0, 0, 1, 1)}
	rows := []ZoneRow{{ZoneID: "", Attrs: map[string]any{"a": "1"}}}

	agg := NewAggregator(nil)
	err := agg.MergeByZoneID(zones, rows, map[string]float64{"a": 1})
	var mjk *MissingJoinKeyError
	if !errors.As(err, &mjk) {
		t.Fatalf("want MissingJoinKeyError, got %v", err)
	}
}

func TestMergeByZoneID_MissingAttributeIsError(t *testing.T) {
	zones := Boundaries{square("z1", 0, 0, 1, 1)}
	rows := []ZoneRow{{ZoneID: "z1", Attrs: map[string]any{"burglary": "3"}}}

	agg := NewAggregator(nil)
	err := agg.MergeByZoneID(zones, rows, map[string]float64{"assault": 1})
	if err == nil {
		t.Fatal("expected error for missing attribute column")
	}
	assert.Contains(t, err.Error(), "assault")
}

func TestMergeByZoneID_UnknownZoneReported(t *testing.T) {
	zones := Boundaries{square("z1", 0, 0, 1, 1)}
	rows := []ZoneRow{
		{ZoneID: "z1", Attrs: map[string]any{"a": "1"}},
		{ZoneID: "ghost", Attrs: map[string]any{"a": "1"}},
	}

	rep := &CollectReporter{}
	agg := NewAggregator(rep)
	if err := agg.MergeByZoneID(zones, rows, map[string]float64{"a": 1}); err != nil {
		t.Fatalf("MergeByZoneID: %v", err)
	}

	assert.InDelta(t, 1.0, zones.ByID("z1").SecurityIndex, 1e-9)
	events := rep.Events()
	if assert.Len(t, events, 1) {
		assert.Contains(t, events[0].Message, "unknown zone")
	}
}
