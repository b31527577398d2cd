package arena

import (
	"math"
	"slices"
)

// Summary aggregates the results of a series of rounds.
type Summary struct {
	Rounds         int
	MeanCoverage   float64
	MedianCoverage float64
	// CoverageSpread is the coefficient of variation of the coverage, in percent.
	CoverageSpread float64
	MeanInvalid    float64
}

func Summarize(results []Result) Summary {
	if len(results) == 0 {
		return Summary{}
	}

	coverage := make([]float64, len(results))
	invalid := make([]float64, len(results))
	for i, r := range results {
		coverage[i] = r.Coverage()
		invalid[i] = float64(r.Invalid)
	}

	s := Summary{
		Rounds:         len(results),
		MeanCoverage:   mean(coverage),
		MedianCoverage: median(coverage),
		MeanInvalid:    mean(invalid),
	}
	if s.MeanCoverage > 0 {
		var variance float64
		for _, c := range coverage {
			variance += (c - s.MeanCoverage) * (c - s.MeanCoverage)
		}
		variance /= float64(len(coverage))
		s.CoverageSpread = math.Sqrt(variance) / s.MeanCoverage * 100
	}
	return s
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
