package meter

import "math"

// RunningStats tracks count, sum, min, max and Welford-style mean/variance of
// a value stream without retaining samples.
type RunningStats struct {
	n    uint64
	mean float64
	m2   float64
	sum  float64
	min  float64
	max  float64
}

// Add folds one observation into the distribution.
func (s *RunningStats) Add(v float64) {
	s.n++
	s.sum += v
	if s.n == 1 {
		s.min = v
		s.max = v
	} else {
		if v < s.min {
			s.min = v
		}
		if v > s.max {
			s.max = v
		}
	}
	delta := v - s.mean
	s.mean += delta / float64(s.n)
	s.m2 += delta * (v - s.mean)
}

func (s *RunningStats) N() uint64 { return s.n }

func (s *RunningStats) Sum() float64 { return s.sum }

func (s *RunningStats) Min() float64 {
	if s.n == 0 {
		return 0
	}
	return s.min
}

func (s *RunningStats) Max() float64 {
	if s.n == 0 {
		return 0
	}
	return s.max
}

func (s *RunningStats) Mean() float64 {
	if s.n == 0 {
		return 0
	}
	return s.mean
}

// Variance returns the sample variance.
func (s *RunningStats) Variance() float64 {
	if s.n < 2 {
		return 0
	}
	return s.m2 / float64(s.n-1)
}

// Std returns the sample standard deviation.
func (s *RunningStats) Std() float64 {
	return math.Sqrt(s.Variance())
}
