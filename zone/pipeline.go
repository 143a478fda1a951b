package zone

import "fmt"

// Options selects the optional pipeline stages.
type Options struct {
	// Normalize divides indices by the maximum after aggregation.
	Normalize bool
	// HandleOutliers applies Tukey IQR clipping before normalization.
	HandleOutliers bool
	// PreWeighted applies severity weighting to dataset copies before the
	// spatial join instead of record-by-record during aggregation. The two
	// orders produce identical sums; the pre-weighted datasets are also
	// what the density renderer consumes.
	PreWeighted bool
}

// Pipeline composes weight normalization, severity mapping, spatial
// aggregation, and post-processing into the end-to-end index computation.
type Pipeline struct {
	reporter   Reporter
	aggregator *Aggregator
}

// NewPipeline creates a pipeline reporting to the given sink. A nil reporter
// discards events.
func NewPipeline(r Reporter) *Pipeline {
	r = reporterOrNop(r)
	return &Pipeline{
		reporter:   r,
		aggregator: NewAggregator(r),
	}
}

// Run computes the security index for every zone. Only the zones'
// SecurityIndex fields are mutated; datasets and specs' severity tables are
// read-only (spec weights are normalized in place, a one-time idempotent
// step). Deterministic for identical inputs.
//
// Returns the severity-weighted datasets when opts.PreWeighted is set (for
// downstream visualization); otherwise returns the input datasets.
func (p *Pipeline) Run(boundaries Boundaries, datasets []*Dataset, specs []*WeightSpec, opts Options) ([]*Dataset, error) {
	if err := NormalizeWeights(specs); err != nil {
		return nil, fmt.Errorf("normalizing weights: %w", err)
	}

	if opts.PreWeighted {
		datasets = ApplySeverity(datasets, specs)
	}

	boundaries.ResetIndex()
	if err := p.aggregator.Aggregate(boundaries, datasets, specs, opts.PreWeighted); err != nil {
		return nil, fmt.Errorf("aggregating datasets: %w", err)
	}

	p.postProcess(boundaries, opts)
	return datasets, nil
}

// RunSimple computes the index in simple mode: a flat attribute→weight map
// and tabular rows joined on zone_id. No severity remapping is applied.
func (p *Pipeline) RunSimple(boundaries Boundaries, rows []ZoneRow, weights map[string]float64, opts Options) error {
	if err := ValidateSimpleWeights(weights); err != nil {
		return fmt.Errorf("validating weights: %w", err)
	}

	boundaries.ResetIndex()
	if err := p.aggregator.MergeByZoneID(boundaries, rows, weights); err != nil {
		return fmt.Errorf("merging security data: %w", err)
	}

	p.postProcess(boundaries, opts)
	return nil
}

// postProcess applies outlier clipping then normalization. Both are
// whole-collection statistics, so they run only after aggregation completes.
func (p *Pipeline) postProcess(boundaries Boundaries, opts Options) {
	if opts.HandleOutliers {
		lo, hi := ClipOutliers(boundaries)
		p.reporter.Emit(Event{
			Level:   LevelInfo,
			Message: fmt.Sprintf("clipped indices to [%.4f, %.4f]", lo, hi),
		})
	}
	if opts.Normalize {
		if !NormalizeIndex(boundaries) {
			p.reporter.Emit(Event{
				Level:   LevelWarning,
				Message: "normalization skipped: maximum index is not positive",
			})
		}
	}
}

// Report returns the read-only (zone, index) projection in boundary order.
func (p *Pipeline) Report(boundaries Boundaries) []IndexEntry {
	entries := make([]IndexEntry, len(boundaries))
	for i, z := range boundaries {
		entries[i] = IndexEntry{ZoneID: z.ID, SecurityIndex: z.SecurityIndex}
	}
	return entries
}

// FilterLowSecurity returns the zones whose index meets the threshold,
// preserving order. The removed count is reported. The input collection is
// not modified.
func (p *Pipeline) FilterLowSecurity(boundaries Boundaries, threshold float64) Boundaries {
	kept := make(Boundaries, 0, len(boundaries))
	for _, z := range boundaries {
		if z.SecurityIndex >= threshold {
			kept = append(kept, z)
		}
	}
	if removed := len(boundaries) - len(kept); removed > 0 {
		p.reporter.Emit(Event{
			Level:   LevelInfo,
			Message: fmt.Sprintf("%d zone(s) removed below threshold %g", removed, threshold),
		})
	}
	return kept
}
