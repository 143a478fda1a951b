package zone

import "sort"

// Quantile computes the q-th quantile (0..1) of the values using linear
// interpolation between closest ranks. The input slice is not modified.
// Returns 0 for an empty slice.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}

	pos := q * float64(len(sorted)-1)
	lower := int(pos)
	frac := pos - float64(lower)
	if lower+1 >= len(sorted) {
		return sorted[lower]
	}
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}

// ClipOutliers applies Tukey IQR clipping to the zones' indices: values are
// bounded to [Q1-1.5*IQR, Q3+1.5*IQR] computed over the pre-clip
// distribution. With fewer than 4 zones the quantiles interpolate over
// whatever values exist; there is no minimum-size special case. Returns the
// clip bounds.
func ClipOutliers(boundaries Boundaries) (lo, hi float64) {
	if len(boundaries) == 0 {
		return 0, 0
	}
	values := make([]float64, len(boundaries))
	for i, z := range boundaries {
		values[i] = z.SecurityIndex
	}

	q1 := Quantile(values, 0.25)
	q3 := Quantile(values, 0.75)
	iqr := q3 - q1
	lo = q1 - 1.5*iqr
	hi = q3 + 1.5*iqr

	for _, z := range boundaries {
		if z.SecurityIndex < lo {
			z.SecurityIndex = lo
		} else if z.SecurityIndex > hi {
			z.SecurityIndex = hi
		}
	}
	return lo, hi
}

// NormalizeIndex divides every zone's index by the maximum index so the top
// zone maps to 1. When the maximum is not positive the step is skipped and
// the indices are left as-is; normalization never divides by zero and never
// produces NaN. Reports whether normalization was applied.
func NormalizeIndex(boundaries Boundaries) bool {
	max := 0.0
	for _, z := range boundaries {
		if z.SecurityIndex > max {
			max = z.SecurityIndex
		}
	}
	if max <= 0 {
		return false
	}
	for _, z := range boundaries {
		z.SecurityIndex /= max
	}
	return true
}
