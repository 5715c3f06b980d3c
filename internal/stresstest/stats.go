package stresstest

import (
	"sort"
)

// Stats holds runtime statistics for a load run
type Stats struct {
	CompletedChecks int
	PassedCount     int
	FailedCount     int
	TransportErrors int // failed checks that never got a response
	ActiveActors    int
	Durations       []int64 // For percentile calculation
	TotalDurationMs int64
	MinDurationMs   int64
	MaxDurationMs   int64
}

// NewStats creates a new Stats instance
func NewStats() *Stats {
	return &Stats{
		Durations:     make([]int64, 0, 1000),
		MinDurationMs: -1,
		MaxDurationMs: -1,
	}
}

// AddResult adds a check result to the statistics.
// Transport failures count as failed checks but are kept out of the latency distribution.
func (s *Stats) AddResult(durationMs int64, passed bool, isTransportError bool) {
	s.CompletedChecks++

	if passed {
		s.PassedCount++
	} else {
		s.FailedCount++
	}

	if isTransportError {
		s.TransportErrors++
		return
	}

	s.TotalDurationMs += durationMs
	s.Durations = append(s.Durations, durationMs)

	if s.MinDurationMs == -1 || durationMs < s.MinDurationMs {
		s.MinDurationMs = durationMs
	}
	if s.MaxDurationMs == -1 || durationMs > s.MaxDurationMs {
		s.MaxDurationMs = durationMs
	}
}

// AvgDurationMs returns the average response time in milliseconds
func (s *Stats) AvgDurationMs() float64 {
	if len(s.Durations) == 0 {
		return 0
	}
	return float64(s.TotalDurationMs) / float64(len(s.Durations))
}

// Min returns the minimum duration, or 0 if no results
func (s *Stats) Min() int64 {
	if s.MinDurationMs == -1 {
		return 0
	}
	return s.MinDurationMs
}

// Max returns the maximum duration, or 0 if no results
func (s *Stats) Max() int64 {
	if s.MaxDurationMs == -1 {
		return 0
	}
	return s.MaxDurationMs
}

// Percentile calculates the percentile value (p should be between 0 and 100)
func (s *Stats) Percentile(p float64) int64 {
	if len(s.Durations) == 0 {
		return 0
	}

	sorted := make([]int64, len(s.Durations))
	copy(sorted, s.Durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	// Linear interpolation between lower and upper
	weight := index - float64(lower)
	return int64(float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight)
}

// P50 returns the 50th percentile (median)
func (s *Stats) P50() int64 {
	return s.Percentile(50)
}

// P95 returns the 95th percentile
func (s *Stats) P95() int64 {
	return s.Percentile(95)
}

// P99 returns the 99th percentile
func (s *Stats) P99() int64 {
	return s.Percentile(99)
}

// PassRate returns the pass rate as a percentage
func (s *Stats) PassRate() float64 {
	if s.CompletedChecks == 0 {
		return 0
	}
	return float64(s.PassedCount) / float64(s.CompletedChecks) * 100
}

// Copy returns a deep copy
func (s *Stats) Copy() *Stats {
	c := *s
	c.Durations = make([]int64, len(s.Durations))
	copy(c.Durations, s.Durations)
	return &c
}
