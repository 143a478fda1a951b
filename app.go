package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kwv/zoneindex/zone"
)

// App encapsulates the application state and dependencies.
type App struct {
	Config     *zone.Config
	State      *zone.StateTracker
	Pipeline   *zone.Pipeline
	MQTTClient *zone.MQTTClient
	Publisher  *zone.Publisher

	boundaries zone.Boundaries
	specs      []*zone.WeightSpec
	dirty      chan struct{}

	// CLI flags (effectively dependencies)
	ConfigFile string
	Boundaries string
	Points     []string
	Table      string
	OutputFile string
	RenderPNG  string
	RenderSVG  string
	Density    string
	Histogram  string
	HttpPort   int
	HttpMode   bool
	MqttMode   bool
}

// AppOptions carries the CLI flag values into the App.
type AppOptions struct {
	ConfigFile string
	Boundaries string
	Points     []string
	Table      string
	OutputFile string
	RenderPNG  string
	RenderSVG  string
	Density    string
	Histogram  string
	HttpPort   int
	HttpMode   bool
	MqttMode   bool
}

// NewApp creates a new App instance.
func NewApp() *App {
	return &App{
		State:    zone.NewStateTracker(),
		Pipeline: zone.NewPipeline(zone.LogReporter{}),
		dirty:    make(chan struct{}, 1),
	}
}

// ApplyOptions applies CLI options to the App instance.
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.Boundaries = opts.Boundaries
	a.Points = opts.Points
	a.Table = opts.Table
	a.OutputFile = opts.OutputFile
	a.RenderPNG = opts.RenderPNG
	a.RenderSVG = opts.RenderSVG
	a.Density = opts.Density
	a.Histogram = opts.Histogram
	a.HttpPort = opts.HttpPort
	a.HttpMode = opts.HttpMode
	a.MqttMode = opts.MqttMode
}

// loadInputs loads the config, boundary collection, and baseline datasets,
// honoring CLI overrides.
func (a *App) loadInputs() error {
	config, err := zone.LoadConfig(a.ConfigFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.Config = config
	log.Printf("Loaded config from %s", a.ConfigFile)

	boundariesPath := a.Boundaries
	if boundariesPath == "" {
		boundariesPath = config.Boundaries
	}
	if boundariesPath == "" {
		return fmt.Errorf("no boundaries file configured (set boundaries in config or -boundaries)")
	}

	boundaries, err := zone.LoadBoundaries(boundariesPath)
	if err != nil {
		return err
	}
	a.boundaries = boundaries
	log.Printf("Loaded %d zones from %s", len(boundaries), boundariesPath)

	a.specs = config.WeightSpecs()

	// CLI -points overrides the configured dataset paths.
	if len(a.Points) > 0 {
		for i, path := range a.Points {
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			ds, err := zone.LoadPointsCSV(path, name)
			if err != nil {
				return err
			}
			a.State.SetBaseline(fmt.Sprintf("cli-%d", i), ds)
			log.Printf("Loaded %d points from %s", len(ds.Records), path)
		}
		return nil
	}

	for _, dc := range config.Datasets {
		if dc.Path == "" {
			continue
		}
		ds, err := zone.LoadPointsCSV(dc.Path, dc.ID)
		if err != nil {
			return err
		}
		a.State.SetBaseline(dc.ID, ds)
		log.Printf("Loaded %d points from %s (%s)", len(ds.Records), dc.Path, dc.ID)
	}
	return nil
}

// RunOnce runs the batch pipeline, writes the indexed GeoJSON, and renders
// any requested artifacts.
func (a *App) RunOnce() error {
	if err := a.loadInputs(); err != nil {
		return err
	}
	cfg := a.Config

	opts := zone.Options{
		Normalize:      cfg.Normalize,
		HandleOutliers: cfg.HandleOutliers,
		PreWeighted:    true,
	}

	var weighted []*zone.Dataset
	if a.Table != "" || cfg.SimpleMode() {
		if !cfg.SimpleMode() {
			return fmt.Errorf("-table requires simpleWeights in config")
		}
		tablePath := a.Table
		if tablePath == "" {
			return fmt.Errorf("simple mode requires -table with a zone_id CSV")
		}
		rows, err := zone.LoadZoneTable(tablePath)
		if err != nil {
			return err
		}
		if err := a.Pipeline.RunSimple(a.boundaries, rows, cfg.SimpleWeights, opts); err != nil {
			return err
		}
	} else {
		datasets := a.State.SnapshotDatasets()
		var err error
		weighted, err = a.Pipeline.Run(a.boundaries, datasets, a.specs, opts)
		if err != nil {
			return err
		}
	}

	result := a.boundaries
	if cfg.MinIndex > 0 {
		result = a.Pipeline.FilterLowSecurity(result, cfg.MinIndex)
	}

	if err := zone.WriteBoundaries(a.OutputFile, result); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", a.OutputFile)

	if err := a.renderArtifacts(result, weighted); err != nil {
		return err
	}

	fmt.Println("\nZone              Security Index")
	fmt.Println("--------------------------------")
	for _, e := range a.Pipeline.Report(result) {
		fmt.Printf("%-18s %.4f\n", e.ZoneID, e.SecurityIndex)
	}

	return nil
}

// renderArtifacts writes the requested PNG/SVG outputs for a finished run.
func (a *App) renderArtifacts(boundaries zone.Boundaries, datasets []*zone.Dataset) error {
	if a.RenderPNG != "" {
		r := zone.NewMapRenderer(boundaries)
		if err := zone.SavePNG(a.RenderPNG, r.RenderChoropleth()); err != nil {
			return err
		}
		fmt.Printf("Created choropleth: %s\n", a.RenderPNG)
	}

	if a.RenderSVG != "" {
		vr := zone.NewVectorRenderer(boundaries)
		f, err := os.Create(a.RenderSVG)
		if err != nil {
			return fmt.Errorf("creating %s: %w", a.RenderSVG, err)
		}
		err = vr.RenderToSVG(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("rendering SVG: %w", err)
		}
		fmt.Printf("Created vector choropleth: %s\n", a.RenderSVG)
	}

	if a.Density != "" {
		r := zone.NewMapRenderer(boundaries)
		if err := zone.SavePNG(a.Density, r.RenderDensity(datasets)); err != nil {
			return err
		}
		fmt.Printf("Created density map: %s\n", a.Density)
	}

	if a.Histogram != "" {
		values := make([]float64, len(boundaries))
		for i, z := range boundaries {
			values[i] = z.SecurityIndex
		}
		img := zone.RenderHistogram(values, 15, "Security Index Histogram")
		if err := zone.SavePNG(a.Histogram, img); err != nil {
			return err
		}
		fmt.Printf("Created histogram: %s\n", a.Histogram)
	}

	return nil
}

// recompute runs the pipeline over the current snapshot and swaps the result
// into the state tracker, publishing the report when MQTT is up.
func (a *App) recompute() {
	boundaries := a.boundaries.Clone()
	datasets := a.State.SnapshotDatasets()

	opts := zone.Options{
		Normalize:      a.Config.Normalize,
		HandleOutliers: a.Config.HandleOutliers,
		PreWeighted:    true,
	}

	weighted, err := a.Pipeline.Run(boundaries, datasets, a.specs, opts)
	if err != nil {
		log.Printf("Error recomputing index: %v", err)
		return
	}

	a.State.UpdateResult(&zone.Result{
		Boundaries: boundaries,
		Datasets:   weighted,
		ComputedAt: time.Now(),
	})

	if a.Publisher != nil {
		if err := a.Publisher.PublishIndex(a.Pipeline.Report(boundaries)); err != nil {
			log.Printf("Error publishing index: %v", err)
		}
	}
}

// markDirty requests a recomputation; coalesces bursts of live events.
func (a *App) markDirty() {
	select {
	case a.dirty <- struct{}{}:
	default:
	}
}

// RunService starts the combined MQTT and/or HTTP service.
func (a *App) RunService() error {
	fmt.Println("Starting zoneindex service...")

	if err := a.loadInputs(); err != nil {
		return err
	}
	if a.Config.SimpleMode() {
		return fmt.Errorf("service mode requires the severity-mapping weight configuration")
	}

	// Initial computation from the baseline datasets.
	a.recompute()

	if a.MqttMode {
		handler := func(datasetID string, rec zone.Record, err error) {
			if err != nil {
				log.Printf("Error receiving point event for %s: %v", datasetID, err)
				return
			}
			a.State.AddLiveRecord(datasetID, rec)
			a.markDirty()
		}

		mqttClient, err := zone.InitMQTT(a.Config, handler)
		if err != nil {
			return fmt.Errorf("initializing MQTT: %w", err)
		}
		if mqttClient == nil {
			return fmt.Errorf("MQTT broker not configured in %s", a.ConfigFile)
		}
		a.MQTTClient = mqttClient
		a.Publisher = zone.NewPublisher(mqttClient.GetClient(), a.Config.MQTT.PublishPrefix)
		fmt.Println("MQTT index publisher initialized")

		// Debounced recompute loop: live events mark the state dirty and
		// the ticker folds them into at most one run per interval.
		interval := time.Duration(a.Config.RecomputeSeconds) * time.Second
		if interval <= 0 {
			interval = 10 * time.Second
		}
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for range ticker.C {
				select {
				case <-a.dirty:
					a.recompute()
				default:
				}
			}
		}()
	}

	if a.HttpMode {
		httpServer := newHTTPServer(a.State, a.Pipeline)
		go func() {
			addr := fmt.Sprintf("0.0.0.0:%d", a.HttpPort)
			log.Printf("[HTTP] Starting server on %s", addr)
			if err := http.ListenAndServe(addr, httpServer); err != nil {
				log.Fatalf("[HTTP] Server error: %v", err)
			}
		}()
	}

	fmt.Println("\nService Running")
	fmt.Println("===============")

	if a.MqttMode {
		fmt.Println("\nMQTT:")
		fmt.Println("  Subscribed feeds:")
		for _, dc := range a.Config.Datasets {
			if dc.Topic != "" {
				fmt.Printf("    - %s (%s)\n", dc.Topic, dc.ID)
			}
		}
		prefix := a.Config.MQTT.PublishPrefix
		if prefix == "" {
			prefix = "zoneindex"
		}
		fmt.Printf("  Publishing to: %s/zones/{zoneID}\n", prefix)
		fmt.Printf("  Combined index: %s/index\n", prefix)
	}

	if a.HttpMode {
		fmt.Printf("\nHTTP endpoints (port %d):\n", a.HttpPort)
		fmt.Println("  GET /health          - Health check")
		fmt.Println("  GET /index.geojson   - Indexed boundaries")
		fmt.Println("  GET /report          - Zone index report (JSON)")
		fmt.Println("  GET /choropleth.png  - Choropleth map")
		fmt.Println("  GET /choropleth.svg  - Vector choropleth")
		fmt.Println("  GET /density.png     - Point density map")
		fmt.Println("  GET /histogram.png   - Index histogram")
	}

	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	fmt.Println("\nShutting down service...")
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	fmt.Println("Service stopped")
	return nil
}
