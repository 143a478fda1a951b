package zone

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Aggregator performs the spatial containment join and sums weighted severity
// contributions per zone.
type Aggregator struct {
	reporter Reporter
}

// NewAggregator creates an aggregator emitting events to the given reporter.
// A nil reporter discards events.
func NewAggregator(r Reporter) *Aggregator {
	return &Aggregator{reporter: reporterOrNop(r)}
}

// Aggregate adds each dataset's weighted contributions into the zones'
// SecurityIndex fields. Contributions accumulate additively across datasets;
// the caller is responsible for resetting the index before a fresh run.
//
// When preWeighted is true the datasets are ApplySeverity output and
// attribute values are summed as-is. Otherwise severity and weight are
// applied here, record by record. Both orders produce the same totals since
// every contribution is a plain product.
//
// A zone containing no points keeps its index. A dataset missing a
// configured attribute contributes 0 for that attribute. Points outside
// every zone are counted and reported, never an error.
func (a *Aggregator) Aggregate(boundaries Boundaries, datasets []*Dataset, specs []*WeightSpec, preWeighted bool) error {
	// Bounding boxes are cheap to test and reject most zones before the
	// ray-cast containment check.
	bounds := make([]orb.Bound, len(boundaries))
	for i, z := range boundaries {
		bounds[i] = z.Geometry.Bound()
	}

	for _, ds := range datasets {
		if !ds.HasGeometry {
			return &MissingGeometryError{Dataset: ds.Name}
		}

		missing := make(map[string]bool)
		outside := 0

		for _, rec := range ds.Records {
			contribution := 0.0
			for _, spec := range specs {
				raw, ok := rec.Attrs[spec.Attribute]
				if !ok {
					missing[spec.Attribute] = true
					continue
				}
				if preWeighted {
					contribution += toFloat(raw)
				} else {
					contribution += spec.weightedValue(raw)
				}
			}

			matched := false
			for i, z := range boundaries {
				if !bounds[i].Contains(rec.Point) {
					continue
				}
				if planar.MultiPolygonContains(z.Geometry, rec.Point) {
					z.SecurityIndex += contribution
					matched = true
				}
			}
			if !matched {
				outside++
			}
		}

		for attr := range missing {
			a.reporter.Emit(Event{
				Level:   LevelWarning,
				Message: fmt.Sprintf("dataset %s: attribute %q not present, contributing 0", ds.Name, attr),
			})
		}
		if outside > 0 {
			a.reporter.Emit(Event{
				Level:   LevelInfo,
				Message: fmt.Sprintf("dataset %s: %d point(s) outside all zones", ds.Name, outside),
			})
		}
	}

	return nil
}

// MergeByZoneID implements the simple pipeline mode: rows carry a zone_id
// instead of a geometry, and each row's weighted attribute sum is added to
// its zone. Weights are the flat attribute→weight map (already validated by
// ValidateSimpleWeights). A missing attribute column is an error in this
// mode, matching the stricter contract of the tabular variant.
func (a *Aggregator) MergeByZoneID(boundaries Boundaries, rows []ZoneRow, weights map[string]float64) error {
	unmatched := 0
	for _, row := range rows {
		if row.ZoneID == "" {
			return &MissingJoinKeyError{Key: "zone_id"}
		}

		total := 0.0
		for attr, w := range weights {
			raw, ok := row.Attrs[attr]
			if !ok {
				return fmt.Errorf("variable %q is not in the security data", attr)
			}
			total += toFloat(raw) * w
		}

		z := boundaries.ByID(row.ZoneID)
		if z == nil {
			unmatched++
			continue
		}
		z.SecurityIndex += total
	}

	if unmatched > 0 {
		a.reporter.Emit(Event{
			Level:   LevelWarning,
			Message: fmt.Sprintf("%d row(s) referenced unknown zone IDs", unmatched),
		})
	}
	return nil
}
