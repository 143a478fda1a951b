package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwv/zoneindex/zone"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func zonesGeoJSON() string {
	return `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"zone_id": "west"},
      "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}
    },
    {
      "type": "Feature",
      "properties": {"zone_id": "east"},
      "geometry": {"type": "Polygon", "coordinates": [[[10,10],[11,10],[11,11],[10,11],[10,10]]]}
    }
  ]
}`
}

func TestRunOnce_SeverityMode(t *testing.T) {
	dir := t.TempDir()
	boundaries := writeFile(t, dir, "zones.geojson", zonesGeoJSON())
	points := writeFile(t, dir, "incidents.csv", `longitude,latitude,OFFENSE_CODE,SHOOTING
0.5,0.5,619,N
0.2,0.8,3410,Y
10.5,10.5,3301,N
`)
	config := writeFile(t, dir, "config.yaml", `boundaries: `+boundaries+`
datasets:
  - id: incidents
    path: `+points+`
weights:
  - attribute: OFFENSE_CODE
    weight: 0.8
    severity:
      "619": 3
      "3410": 4
      "3301": 1
  - attribute: SHOOTING
    weight: 0.2
    severity:
      "Y": 2
normalize: true
`)
	output := filepath.Join(dir, "out.geojson")

	app := NewApp()
	app.ApplyOptions(AppOptions{
		ConfigFile: config,
		OutputFile: output,
	})

	require.NoError(t, app.RunOnce())

	loaded, err := zone.LoadBoundaries(output)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	// west: 2.6 + 3.6 = 6.2, east: 1.0; normalized to 1 and 1/6.2.
	res := app.State.GetResult()
	assert.Nil(t, res) // batch mode does not touch the service state
	west := loaded.ByID("west")
	east := loaded.ByID("east")
	require.NotNil(t, west)
	require.NotNil(t, east)
	assert.InDelta(t, 1.0, west.SecurityIndex, 1e-9)
	assert.InDelta(t, 1.0/6.2, east.SecurityIndex, 1e-9)
}

func TestRunOnce_SimpleMode(t *testing.T) {
	dir := t.TempDir()
	boundaries := writeFile(t, dir, "zones.geojson", zonesGeoJSON())
	table := writeFile(t, dir, "table.csv", `zone_id,burglary,assault
west,10,5
east,2,0
`)
	config := writeFile(t, dir, "config.yaml", `boundaries: `+boundaries+`
simpleWeights:
  burglary: 0.6
  assault: 0.4
`)
	output := filepath.Join(dir, "out.geojson")

	app := NewApp()
	app.ApplyOptions(AppOptions{
		ConfigFile: config,
		Table:      table,
		OutputFile: output,
	})

	require.NoError(t, app.RunOnce())

	loaded, err := zone.LoadBoundaries(output)
	require.NoError(t, err)
	west := loaded.ByID("west")
	require.NotNil(t, west)
	// 10*0.6 + 5*0.4 = 8, no normalization configured.
	assert.InDelta(t, 8.0, west.SecurityIndex, 1e-9)
}

func TestRunOnce_MinIndexFilter(t *testing.T) {
	dir := t.TempDir()
	boundaries := writeFile(t, dir, "zones.geojson", zonesGeoJSON())
	points := writeFile(t, dir, "points.csv", `longitude,latitude,v
0.5,0.5,10
10.5,10.5,1
`)
	config := writeFile(t, dir, "config.yaml", `boundaries: `+boundaries+`
datasets:
  - id: events
    path: `+points+`
weights:
  - attribute: v
normalize: true
minIndex: 0.5
`)
	output := filepath.Join(dir, "out.geojson")

	app := NewApp()
	app.ApplyOptions(AppOptions{ConfigFile: config, OutputFile: output})
	require.NoError(t, app.RunOnce())

	loaded, err := zone.LoadBoundaries(output)
	require.NoError(t, err)
	// east normalizes to 0.1 and is dropped by the threshold.
	require.Len(t, loaded, 1)
	assert.Equal(t, "west", loaded[0].ID)
}

func TestRunOnce_RenderArtifacts(t *testing.T) {
	dir := t.TempDir()
	boundaries := writeFile(t, dir, "zones.geojson", zonesGeoJSON())
	points := writeFile(t, dir, "points.csv", `longitude,latitude,v
0.5,0.5,2
`)
	config := writeFile(t, dir, "config.yaml", `boundaries: `+boundaries+`
datasets:
  - id: events
    path: `+points+`
weights:
  - attribute: v
`)

	renderPNG := filepath.Join(dir, "map.png")
	renderSVG := filepath.Join(dir, "map.svg")
	density := filepath.Join(dir, "density.png")
	hist := filepath.Join(dir, "hist.png")

	app := NewApp()
	app.ApplyOptions(AppOptions{
		ConfigFile: config,
		OutputFile: filepath.Join(dir, "out.geojson"),
		RenderPNG:  renderPNG,
		RenderSVG:  renderSVG,
		Density:    density,
		Histogram:  hist,
	})
	require.NoError(t, app.RunOnce())

	for _, p := range []string{renderPNG, renderSVG, density, hist} {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Greater(t, info.Size(), int64(0), p)
	}

	svgData, err := os.ReadFile(renderSVG)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(svgData), "<svg"))
}

func TestRunOnce_MissingConfig(t *testing.T) {
	app := NewApp()
	app.ApplyOptions(AppOptions{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, app.RunOnce())
}

func TestRunOnce_TableWithoutSimpleWeights(t *testing.T) {
	dir := t.TempDir()
	boundaries := writeFile(t, dir, "zones.geojson", zonesGeoJSON())
	config := writeFile(t, dir, "config.yaml", `boundaries: `+boundaries+`
weights:
  - attribute: v
`)

	app := NewApp()
	app.ApplyOptions(AppOptions{
		ConfigFile: config,
		Table:      filepath.Join(dir, "table.csv"),
		OutputFile: filepath.Join(dir, "out.geojson"),
	})
	assert.Error(t, app.RunOnce())
}

func TestRecompute_UpdatesStateAndPublishes(t *testing.T) {
	dir := t.TempDir()
	boundaries := writeFile(t, dir, "zones.geojson", zonesGeoJSON())
	points := writeFile(t, dir, "points.csv", `longitude,latitude,v
0.5,0.5,4
`)
	config := writeFile(t, dir, "config.yaml", `boundaries: `+boundaries+`
datasets:
  - id: events
    path: `+points+`
weights:
  - attribute: v
`)

	app := NewApp()
	app.ApplyOptions(AppOptions{ConfigFile: config})
	require.NoError(t, app.loadInputs())

	mock := zone.NewMockClient()
	mock.SetConnected(true)
	app.Publisher = zone.NewPublisher(mock, "test")

	app.recompute()

	res := app.State.GetResult()
	require.NotNil(t, res)
	west := res.Boundaries.ByID("west")
	require.NotNil(t, west)
	assert.InDelta(t, 4.0, west.SecurityIndex, 1e-9)

	// The publisher saw the same report.
	published := app.Publisher.LastPublished()
	require.Len(t, published, 2)
	assert.Equal(t, "west", published[0].ZoneID)

	// A live event followed by another recompute shifts the result; the
	// original boundary snapshot is untouched.
	app.State.AddLiveRecord("events", zone.Record{
		Point: orb.Point{0.4, 0.4},
		Attrs: map[string]any{"v": 1.0},
	})
	app.recompute()

	res2 := app.State.GetResult()
	assert.InDelta(t, 5.0, res2.Boundaries.ByID("west").SecurityIndex, 1e-9)
	assert.InDelta(t, 4.0, west.SecurityIndex, 1e-9)
}
