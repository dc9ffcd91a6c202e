package trial

// RunningStatistic accumulates one metric across trials without keeping the
// individual values.
type RunningStatistic struct {
	N     int
	Sum   float64
	SumSq float64
}

func (s *RunningStatistic) Add(x float64) {
	s.N++
	s.Sum += x
	s.SumSq += x * x
}

// Mean returns Sum/N, or 0 before any value was added.
func (s RunningStatistic) Mean() float64 {
	if s.N == 0 {
		return 0
	}
	return s.Sum / float64(s.N)
}

// Variance is the biased population variance E[X^2] - E[X]^2. Downstream
// analyses depend on this exact formula; do not switch to Bessel's
// correction or a compensated algorithm.
func (s RunningStatistic) Variance() float64 {
	if s.N == 0 {
		return 0
	}
	m := s.Mean()
	return s.SumSq/float64(s.N) - m*m
}
