package zone

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Zone is a single administrative boundary polygon. Only SecurityIndex is
// mutated by the pipeline; ID and Geometry are immutable inputs.
type Zone struct {
	ID            string
	Geometry      orb.MultiPolygon
	SecurityIndex float64
}

// Boundaries is an ordered collection of zones. Order is stable across a
// pipeline run and drives report ordering.
type Boundaries []*Zone

// ByID returns the zone with the given ID, or nil.
func (b Boundaries) ByID(id string) *Zone {
	for _, z := range b {
		if z.ID == id {
			return z
		}
	}
	return nil
}

// ResetIndex sets every zone's security index back to zero.
func (b Boundaries) ResetIndex() {
	for _, z := range b {
		z.SecurityIndex = 0
	}
}

// Clone returns a deep copy of the boundary collection. Geometry is shared
// (never mutated); the index values are copied so a recomputation can run on
// its own snapshot.
func (b Boundaries) Clone() Boundaries {
	out := make(Boundaries, len(b))
	for i, z := range b {
		c := *z
		out[i] = &c
	}
	return out
}

// Record is a single point event with its raw attribute values. Attribute
// values may be strings, numbers, or booleans depending on the source.
type Record struct {
	Point orb.Point
	Attrs map[string]any
}

// Dataset is an ordered collection of point records sharing the boundary
// collection's CRS. HasGeometry is false for attribute-only tables (the
// simple-mode zone_id CSVs); the spatial aggregator rejects those.
type Dataset struct {
	Name        string
	HasGeometry bool
	Records     []Record
}

// Clone returns a deep copy of the dataset, including attribute maps.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{Name: d.Name, HasGeometry: d.HasGeometry}
	out.Records = make([]Record, len(d.Records))
	for i, r := range d.Records {
		attrs := make(map[string]any, len(r.Attrs))
		for k, v := range r.Attrs {
			attrs[k] = v
		}
		out.Records[i] = Record{Point: r.Point, Attrs: attrs}
	}
	return out
}

// WeightSpec maps one attribute to a severity lookup table and a relative
// weight. Weights are renormalized across all specs so they sum to 1.
type WeightSpec struct {
	Attribute string
	Weight    float64
	Severity  map[string]float64
}

// ZoneRow is a simple-mode table row: attribute values keyed by zone ID
// instead of carrying a point geometry.
type ZoneRow struct {
	ZoneID string
	Attrs  map[string]any
}

// IndexEntry is one row of the read-only pipeline report.
type IndexEntry struct {
	ZoneID        string  `json:"zoneId"`
	SecurityIndex float64 `json:"securityIndex"`
}

// InvalidWeightError is returned when the raw weights cannot be normalized
// (total ≤ 0 or a negative entry).
type InvalidWeightError struct {
	Total float64
}

func (e *InvalidWeightError) Error() string {
	return fmt.Sprintf("invalid weight configuration: total raw weight %g must be positive", e.Total)
}

// MissingGeometryError is returned when an attribute-only dataset is passed
// to the spatial aggregator.
type MissingGeometryError struct {
	Dataset string
}

func (e *MissingGeometryError) Error() string {
	return fmt.Sprintf("dataset %q has no geometry column", e.Dataset)
}

// MissingJoinKeyError is returned in simple mode when rows cannot be joined
// to boundaries because the zone_id key is absent.
type MissingJoinKeyError struct {
	Key string
}

func (e *MissingJoinKeyError) Error() string {
	return fmt.Sprintf("cannot merge security data: join key %q is missing", e.Key)
}

// DatasetConfig describes one point dataset: a CSV file to load at startup
// and/or an MQTT topic carrying live point events.
type DatasetConfig struct {
	ID    string `yaml:"id" json:"id"`
	Path  string `yaml:"path,omitempty" json:"path,omitempty"`
	Topic string `yaml:"topic,omitempty" json:"topic,omitempty"`
}

// WeightConfig is the YAML form of a WeightSpec. Weight is optional and
// defaults to 1 before normalization.
type WeightConfig struct {
	Attribute string             `yaml:"attribute" json:"attribute"`
	Weight    *float64           `yaml:"weight,omitempty" json:"weight,omitempty"`
	Severity  map[string]float64 `yaml:"severity,omitempty" json:"severity,omitempty"`
}

// MQTTConfig holds MQTT connection settings.
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// Config represents the full configuration file.
type Config struct {
	MQTT       MQTTConfig      `yaml:"mqtt" json:"mqtt"`
	Boundaries string          `yaml:"boundaries" json:"boundaries"`
	Datasets   []DatasetConfig `yaml:"datasets" json:"datasets"`

	// Weights drives the severity-mapping pipeline mode. SimpleWeights is
	// the flat attribute→weight alternative joined on zone_id. Exactly one
	// of the two must be set.
	Weights       []WeightConfig     `yaml:"weights,omitempty" json:"weights,omitempty"`
	SimpleWeights map[string]float64 `yaml:"simpleWeights,omitempty" json:"simpleWeights,omitempty"`

	Normalize      bool    `yaml:"normalize" json:"normalize"`
	HandleOutliers bool    `yaml:"handleOutliers" json:"handleOutliers"`
	MinIndex       float64 `yaml:"minIndex,omitempty" json:"minIndex,omitempty"` // drop zones below this after a run; 0 disables

	// RecomputeSeconds throttles service-mode recomputation after live
	// point events. Defaults to 10 when unset.
	RecomputeSeconds int `yaml:"recomputeSeconds,omitempty" json:"recomputeSeconds,omitempty"`
}

// DatasetByID returns the dataset config for the given ID, or nil.
func (c *Config) DatasetByID(id string) *DatasetConfig {
	for i := range c.Datasets {
		if c.Datasets[i].ID == id {
			return &c.Datasets[i]
		}
	}
	return nil
}

// SimpleMode reports whether the flat attribute→weight configuration is in
// effect.
func (c *Config) SimpleMode() bool {
	return len(c.SimpleWeights) > 0
}

// WeightSpecs converts the configured weight entries into WeightSpec values,
// applying the default raw weight of 1 where omitted. The result is not yet
// normalized.
func (c *Config) WeightSpecs() []*WeightSpec {
	specs := make([]*WeightSpec, 0, len(c.Weights))
	for _, wc := range c.Weights {
		w := 1.0
		if wc.Weight != nil {
			w = *wc.Weight
		}
		specs = append(specs, &WeightSpec{
			Attribute: wc.Attribute,
			Weight:    w,
			Severity:  wc.Severity,
		})
	}
	return specs
}
