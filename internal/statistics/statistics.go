// Package statistics summarises simulation samples such as game lengths and
// per-strategy winnings.
package statistics

import (
	"fmt"
	"math"
	"slices"
)

// Sample accumulates observations of a single quantity.
type Sample struct {
	N      int
	Sum    float64
	SumSq  float64
	Values []float64
}

// Add records one observation.
func (s *Sample) Add(v float64) {
	s.N++
	s.Sum += v
	s.SumSq += v * v
	s.Values = append(s.Values, v)
}

// Mean returns the arithmetic mean
func (s *Sample) Mean() float64 {
	if s.N == 0 {
		return 0
	}
	return s.Sum / float64(s.N)
}

// Variance returns the sample variance
func (s *Sample) Variance() float64 {
	if s.N < 2 {
		return 0
	}
	mean := s.Mean()
	return max(0, (s.SumSq-float64(s.N)*mean*mean)/float64(s.N-1))
}

func (s *Sample) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// StdError returns the standard error of the mean
func (s *Sample) StdError() float64 {
	if s.N == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.N))
}

// ConfidenceInterval95 returns the normal-approximation 95% interval for the
// mean.
func (s *Sample) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

func (s *Sample) Median() float64 {
	return s.Percentile(0.5)
}

// Percentile interpolates linearly between the closest ranks; p is in [0, 1].
func (s *Sample) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := slices.Clone(s.Values)
	slices.Sort(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Max returns the largest observation, or zero for an empty sample.
func (s *Sample) Max() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return slices.Max(s.Values)
}

// Validate checks the running sums agree with the stored observations.
func (s *Sample) Validate() error {
	if len(s.Values) != s.N {
		return fmt.Errorf("values length %d does not match count %d", len(s.Values), s.N)
	}
	var sum float64
	for _, v := range s.Values {
		sum += v
	}
	if math.Abs(sum-s.Sum) > 1e-6 {
		return fmt.Errorf("sum mismatch: running %.6f, recomputed %.6f", s.Sum, sum)
	}
	return nil
}

// Summary is the reportable view of a Sample.
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
	CILow  float64 `json:"ci95_low"`
	CIHigh float64 `json:"ci95_high"`
}

func (s *Sample) Summary() Summary {
	lo, hi := s.ConfidenceInterval95()
	return Summary{
		N:      s.N,
		Mean:   s.Mean(),
		StdDev: s.StdDev(),
		Median: s.Median(),
		P90:    s.Percentile(0.9),
		Max:    s.Max(),
		CILow:  lo,
		CIHigh: hi,
	}
}

// Significant reports whether the 95% interval excludes zero.
func (s Summary) Significant() bool {
	return s.N >= 2 && (s.CILow > 0 || s.CIHigh < 0)
}
