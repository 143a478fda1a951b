package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	configFile = flag.String("config", "config.yaml", "Path to configuration file")
	onceMode   = flag.Bool("once", false, "Run the pipeline once, write outputs, and exit")

	boundariesFlag = flag.String("boundaries", "", "Boundary GeoJSON path (overrides config)")
	pointsFlag     = flag.String("points", "", "Comma-separated point CSV paths (overrides config datasets)")
	tableFlag      = flag.String("table", "", "Simple-mode zone_id CSV path")

	outputFile    = flag.String("output", "security-index.geojson", "Output GeoJSON for -once mode")
	renderPNG     = flag.String("render", "", "Write a choropleth PNG to this path")
	renderSVG     = flag.String("render-svg", "", "Write a choropleth SVG to this path")
	renderDensity = flag.String("density", "", "Write a point-density PNG to this path")
	renderHist    = flag.String("histogram", "", "Write an index histogram PNG to this path")

	httpMode = flag.Bool("http", false, "Enable HTTP server serving the latest index")
	httpPort = flag.Int("http-port", 8080, "HTTP server port")
	mqttMode = flag.Bool("mqtt", false, "Enable MQTT ingest/publish service mode")
)

func main() {
	flag.Parse()
	fmt.Printf("zoneindex version: %s\n", Version)

	app := NewApp()
	app.ApplyOptions(AppOptions{
		ConfigFile: *configFile,
		Boundaries: *boundariesFlag,
		Points:     splitPaths(*pointsFlag),
		Table:      *tableFlag,
		OutputFile: *outputFile,
		RenderPNG:  *renderPNG,
		RenderSVG:  *renderSVG,
		Density:    *renderDensity,
		Histogram:  *renderHist,
		HttpPort:   *httpPort,
		HttpMode:   *httpMode,
		MqttMode:   *mqttMode,
	})

	if *onceMode {
		if err := app.RunOnce(); err != nil {
			log.Fatalf("Run failed: %v", err)
		}
		return
	}

	if *httpMode || *mqttMode {
		if err := app.RunService(); err != nil {
			log.Fatalf("Service failed: %v", err)
		}
		return
	}

	fmt.Println("zoneindex computes per-zone security indices from point datasets")
	fmt.Println("Use -once to run the batch pipeline and write outputs")
	fmt.Println("Use -http to serve the latest index over HTTP")
	fmt.Println("Use -mqtt to ingest live point events and publish indices")
	fmt.Println("Use -mqtt -http to run both together")
	fmt.Println("\nConfiguration:")
	fmt.Println("  config.yaml - boundaries, datasets, weights, MQTT settings")
}

func splitPaths(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
