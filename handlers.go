package main

import (
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"time"

	"github.com/kwv/zoneindex/zone"
)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(stateTracker *zone.StateTracker, pipeline *zone.Pipeline) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := struct {
			Status     string    `json:"status"`
			Timestamp  time.Time `json:"timestamp"`
			HasResult  bool      `json:"hasResult"`
			ComputedAt time.Time `json:"computedAt,omitempty"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			HasResult: stateTracker.HasResult(),
		}
		if res := stateTracker.GetResult(); res != nil {
			status.ComputedAt = res.ComputedAt
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding health status: %v", err)
		}
	})

	// Indexed boundaries as GeoJSON
	mux.HandleFunc("/index.geojson", func(w http.ResponseWriter, r *http.Request) {
		res := stateTracker.GetResult()
		if res == nil {
			http.Error(w, "No index computed yet", http.StatusServiceUnavailable)
			return
		}

		data, err := zone.MarshalBoundaries(res.Boundaries)
		if err != nil {
			log.Printf("Error marshaling index GeoJSON: %v", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(data); err != nil {
			log.Printf("Error writing index GeoJSON: %v", err)
		}
	})

	// Per-zone index report as JSON
	mux.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		res := stateTracker.GetResult()
		if res == nil {
			http.Error(w, "No index computed yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(pipeline.Report(res.Boundaries)); err != nil {
			log.Printf("Error encoding report: %v", err)
		}
	})

	// Choropleth map endpoint
	mux.HandleFunc("/choropleth.png", func(w http.ResponseWriter, r *http.Request) {
		res := stateTracker.GetResult()
		if res == nil {
			http.Error(w, "No index computed yet", http.StatusServiceUnavailable)
			return
		}

		renderer := zone.NewMapRenderer(res.Boundaries)
		img := renderer.RenderChoropleth()
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := png.Encode(w, img); err != nil {
			log.Printf("Error encoding choropleth PNG: %v", err)
		}
	})

	// Vector choropleth endpoint
	mux.HandleFunc("/choropleth.svg", func(w http.ResponseWriter, r *http.Request) {
		res := stateTracker.GetResult()
		if res == nil {
			http.Error(w, "No index computed yet", http.StatusServiceUnavailable)
			return
		}

		vectorRenderer := zone.NewVectorRenderer(res.Boundaries)
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := vectorRenderer.RenderToSVG(w); err != nil {
			log.Printf("Error encoding choropleth SVG: %v", err)
		}
	})

	// Point density endpoint
	mux.HandleFunc("/density.png", func(w http.ResponseWriter, r *http.Request) {
		res := stateTracker.GetResult()
		if res == nil {
			http.Error(w, "No index computed yet", http.StatusServiceUnavailable)
			return
		}

		renderer := zone.NewMapRenderer(res.Boundaries)
		img := renderer.RenderDensity(res.Datasets)
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := png.Encode(w, img); err != nil {
			log.Printf("Error encoding density PNG: %v", err)
		}
	})

	// Index histogram endpoint
	mux.HandleFunc("/histogram.png", func(w http.ResponseWriter, r *http.Request) {
		res := stateTracker.GetResult()
		if res == nil {
			http.Error(w, "No index computed yet", http.StatusServiceUnavailable)
			return
		}

		values := make([]float64, len(res.Boundaries))
		for i, z := range res.Boundaries {
			values[i] = z.SecurityIndex
		}
		img := zone.RenderHistogram(values, 15, "Security Index Histogram")
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := png.Encode(w, img); err != nil {
			log.Printf("Error encoding histogram PNG: %v", err)
		}
	})

	// Default route serves HTML page embedding the SVG map
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = fmt.Fprint(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>zoneindex</title>
<style>
*{margin:0;padding:0;box-sizing:border-box}
html,body{width:100%;height:100%;overflow:hidden;background:#1a1a1a}
img{display:block;width:100vw;height:100vh;object-fit:contain}
</style>
</head>
<body>
<img src="/choropleth.svg" alt="Security Index Choropleth">
</body>
</html>`)
	})

	// Wrap mux with logging middleware
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		mux.ServeHTTP(w, r)
	})
}
