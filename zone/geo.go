package zone

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

// Centroid computes the centroid of a zone's geometry in geographic
// coordinates. The polygon is projected to Web Mercator first so the area
// weighting is planar, then the centroid is projected back; a centroid taken
// directly on lon/lat coordinates drifts for zones away from the equator.
func Centroid(z *Zone) orb.Point {
	projected := project.Geometry(z.Geometry.Clone(), project.WGS84.ToMercator)
	c, _ := planar.CentroidArea(projected)
	return project.Point(c, project.Mercator.ToWGS84)
}

// Centroids returns the projected-CRS centroid of every zone, in boundary
// order.
func Centroids(boundaries Boundaries) []orb.Point {
	out := make([]orb.Point, len(boundaries))
	for i, z := range boundaries {
		out[i] = Centroid(z)
	}
	return out
}
