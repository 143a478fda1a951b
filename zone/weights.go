package zone

import (
	"fmt"
	"strconv"
)

// NormalizeWeights rescales the raw weights in place so they sum to 1.
// Returns InvalidWeightError when a weight is negative or the total is not
// positive. Applying it twice is a no-op: an already-normalized set sums to 1
// and dividing by 1 leaves every weight unchanged.
func NormalizeWeights(specs []*WeightSpec) error {
	total := 0.0
	for _, s := range specs {
		if s.Weight < 0 {
			return &InvalidWeightError{Total: s.Weight}
		}
		total += s.Weight
	}
	if total <= 0 {
		return &InvalidWeightError{Total: total}
	}
	for _, s := range specs {
		s.Weight /= total
	}
	return nil
}

// ValidateSimpleWeights checks the flat attribute→weight map used in simple
// mode. Unlike the severity-mapping mode there is no renormalization; the
// user-supplied weights must already sum to 1 within ±0.01.
func ValidateSimpleWeights(weights map[string]float64) error {
	if len(weights) == 0 {
		return &InvalidWeightError{Total: 0}
	}
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total < 0.99 || total > 1.01 {
		return &InvalidWeightError{Total: total}
	}
	return nil
}

// SeverityFor looks up the severity score for a raw attribute value. Values
// are matched by their string form so numeric codes ("619" vs 619) resolve to
// the same entry. Unmapped values score the baseline severity of 1; an
// unknown value is never an error.
func (s *WeightSpec) SeverityFor(value any) float64 {
	if sv, ok := s.Severity[stringify(value)]; ok {
		return sv
	}
	return 1
}

// HasSeverity reports whether the spec carries a severity lookup table.
// Without one, raw values are coerced to numbers and weighted directly.
func (s *WeightSpec) HasSeverity() bool {
	return len(s.Severity) > 0
}

// ApplySeverity transforms every record's raw value for each configured
// attribute into severity*weight (or value*weight for specs without a
// severity table). Attributes not named in any spec are left untouched. The
// input datasets are not modified; weighted copies are returned.
//
// Weights must be normalized before calling; the pipeline does this once at
// construction time.
func ApplySeverity(datasets []*Dataset, specs []*WeightSpec) []*Dataset {
	out := make([]*Dataset, len(datasets))
	for i, ds := range datasets {
		mapped := ds.Clone()
		for _, rec := range mapped.Records {
			for _, spec := range specs {
				raw, ok := rec.Attrs[spec.Attribute]
				if !ok {
					continue
				}
				rec.Attrs[spec.Attribute] = spec.weightedValue(raw)
			}
		}
		out[i] = mapped
	}
	return out
}

// weightedValue converts one raw attribute value into its weighted severity
// contribution.
func (s *WeightSpec) weightedValue(raw any) float64 {
	if s.HasSeverity() {
		return s.SeverityFor(raw) * s.Weight
	}
	return toFloat(raw) * s.Weight
}

// stringify renders a raw attribute value in the form used for severity
// lookups. Floats that hold integral codes render without a trailing ".0" so
// CSV-parsed numbers and JSON numbers hit the same keys.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// toFloat coerces a raw attribute value to float64. Non-numeric values
// coerce to 0 rather than failing the run.
func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return 0
	}
}
