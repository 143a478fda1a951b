package zone

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// LoadBoundaries reads a GeoJSON FeatureCollection of polygon zones. Each
// feature's identifier is taken from its id member, falling back to an "id",
// "zone_id", or "name" property. Features without polygonal geometry are
// rejected. Indices start at 0.
func LoadBoundaries(path string) (Boundaries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading boundaries: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing boundaries GeoJSON: %w", err)
	}

	boundaries := make(Boundaries, 0, len(fc.Features))
	for i, f := range fc.Features {
		mp, ok := toMultiPolygon(f.Geometry)
		if !ok {
			return nil, fmt.Errorf("feature %d: geometry type %s is not polygonal", i, f.Geometry.GeoJSONType())
		}

		id := featureID(f)
		if id == "" {
			id = strconv.Itoa(i)
		}

		boundaries = append(boundaries, &Zone{ID: id, Geometry: mp})
	}

	return boundaries, nil
}

// MarshalBoundaries serializes the indexed boundary collection to GeoJSON
// with id and security_index properties per feature.
func MarshalBoundaries(boundaries Boundaries) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, z := range boundaries {
		var f *geojson.Feature
		if len(z.Geometry) == 1 {
			f = geojson.NewFeature(z.Geometry[0])
		} else {
			f = geojson.NewFeature(z.Geometry)
		}
		f.ID = z.ID
		f.Properties["id"] = z.ID
		f.Properties["security_index"] = z.SecurityIndex
		fc.Append(f)
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling boundaries GeoJSON: %w", err)
	}
	return data, nil
}

// WriteBoundaries writes the indexed boundary collection to a GeoJSON file.
func WriteBoundaries(path string, boundaries Boundaries) error {
	data, err := MarshalBoundaries(boundaries)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing boundaries: %w", err)
	}
	return nil
}

// LoadPointsCSV reads a point dataset from a CSV file. Longitude and
// latitude columns are matched case-insensitively (LONGITUDE/LON/LNG and
// LATITUDE/LAT); the remaining columns become raw attribute values. A file
// without coordinate columns loads as an attribute-only dataset with
// HasGeometry false — usable in simple mode, rejected by the spatial
// aggregator.
func LoadPointsCSV(path, name string) (*Dataset, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	lonIdx, latIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(col) {
		case "longitude", "lon", "lng":
			lonIdx = i
		case "latitude", "lat":
			latIdx = i
		}
	}
	hasGeometry := lonIdx >= 0 && latIdx >= 0

	ds := &Dataset{Name: name, HasGeometry: hasGeometry}
	for _, row := range rows {
		rec := Record{Attrs: make(map[string]any, len(header))}
		for i, col := range header {
			if i >= len(row) {
				continue
			}
			if i == lonIdx || i == latIdx {
				continue
			}
			rec.Attrs[col] = row[i]
		}
		if hasGeometry {
			lon, errLon := strconv.ParseFloat(strings.TrimSpace(row[lonIdx]), 64)
			lat, errLat := strconv.ParseFloat(strings.TrimSpace(row[latIdx]), 64)
			if errLon != nil || errLat != nil {
				continue
			}
			rec.Point = orb.Point{lon, lat}
		}
		ds.Records = append(ds.Records, rec)
	}

	return ds, nil
}

// LoadZoneTable reads a simple-mode CSV keyed by zone_id. Returns
// MissingJoinKeyError when the zone_id column is absent.
func LoadZoneTable(path string) ([]ZoneRow, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	idIdx := -1
	for i, col := range header {
		if strings.EqualFold(col, "zone_id") {
			idIdx = i
		}
	}
	if idIdx < 0 {
		return nil, &MissingJoinKeyError{Key: "zone_id"}
	}

	out := make([]ZoneRow, 0, len(rows))
	for _, row := range rows {
		zr := ZoneRow{Attrs: make(map[string]any, len(header))}
		for i, col := range header {
			if i >= len(row) {
				continue
			}
			if i == idIdx {
				zr.ZoneID = strings.TrimSpace(row[i])
				continue
			}
			zr.Attrs[col] = row[i]
		}
		out = append(out, zr)
	}
	return out, nil
}

func readCSV(path string) (rows [][]string, header []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening CSV: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing CSV %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("CSV %s is empty", path)
	}
	return all[1:], all[0], nil
}

// toMultiPolygon normalizes polygonal geometry to a MultiPolygon so zones
// with simple and multi-part shapes share one containment path.
func toMultiPolygon(g orb.Geometry) (orb.MultiPolygon, bool) {
	switch t := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{t}, true
	case orb.MultiPolygon:
		return t, true
	default:
		return nil, false
	}
}

// featureID extracts a stable string identifier from a GeoJSON feature.
func featureID(f *geojson.Feature) string {
	if f.ID != nil {
		return stringify(f.ID)
	}
	for _, key := range []string{"id", "zone_id", "name"} {
		if v, ok := f.Properties[key]; ok {
			return stringify(v)
		}
	}
	return ""
}
