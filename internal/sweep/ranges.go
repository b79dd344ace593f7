// Package sweep runs the local solver over a grid of parameter values and
// summarises each combination. It covers range parsing, the sweep runner,
// summary statistics and CSV output.
package sweep

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// maxValues caps the length of any generated range.
const maxValues = 10000

// RangeSpec is a "min:max:step" parameter range.
type RangeSpec struct {
	Min  float64
	Max  float64
	Step float64
}

// ParseRangeSpec parses a "min:max:step" string. Step must be positive.
func ParseRangeSpec(s string) (RangeSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return RangeSpec{}, fmt.Errorf("invalid range format %q: expected min:max:step", s)
	}
	var vals [3]float64
	for i, name := range []string{"min", "max", "step"} {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return RangeSpec{}, fmt.Errorf("invalid %s value %q: %w", name, parts[i], err)
		}
		vals[i] = v
	}
	if !(vals[2] > 0) {
		return RangeSpec{}, fmt.Errorf("step must be positive, got %f", vals[2])
	}
	return RangeSpec{Min: vals[0], Max: vals[1], Step: vals[2]}, nil
}

// Values expands the range; see GenerateRange.
func (r RangeSpec) Values() []float64 {
	return GenerateRange(r.Min, r.Max, r.Step)
}

// GenerateRange returns min, min+step, ... up to and including max. It
// returns nil when step is not positive, min > max, or the range would hold
// more than 10000 values. Values are rounded to 1e-9 to absorb accumulated
// floating point error.
func GenerateRange(min, max, step float64) []float64 {
	if !(step > 0) || min > max {
		return nil
	}
	count := math.Floor((max-min)/step+1e-9) + 1
	if count > maxValues {
		return nil
	}
	out := make([]float64, 0, int(count))
	for i := 0; i < int(count); i++ {
		v := math.Round((min+float64(i)*step)*1e9) / 1e9
		out = append(out, v)
	}
	return out
}

// ParseCSVFloat64s parses a comma-separated list of floats. Empty entries
// are skipped and an empty string yields nil.
func ParseCSVFloat64s(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseParamList accepts either a "min:max:step" range or a comma-separated
// list of values.
func ParseParamList(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	if strings.Contains(s, ":") {
		spec, err := ParseRangeSpec(s)
		if err != nil {
			return nil, err
		}
		vals := spec.Values()
		if len(vals) == 0 {
			return nil, fmt.Errorf("range %q is empty or too large", s)
		}
		return vals, nil
	}
	return ParseCSVFloat64s(s)
}
