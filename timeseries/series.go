// Package timeseries provides the daily precipitation series the model is
// trained on, plus the synthetic generator that produces it.
package timeseries

import (
	"fmt"
	"math"
	"time"
)

// Point is a single daily observation.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is an immutable daily time series. Dates are strictly increasing,
// exactly one observation per calendar day, and values are non-negative.
type Series struct {
	name   string
	points []Point
}

// NewSeries validates and constructs a series. The input slice is copied, so
// callers cannot mutate the series afterwards.
func NewSeries(name string, points []Point) (*Series, error) {
	for i, p := range points {
		if p.Value < 0 {
			return nil, fmt.Errorf("series %q: negative value %f at index %d", name, p.Value, i)
		}
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return nil, fmt.Errorf("series %q: non-finite value at index %d", name, i)
		}
		if i > 0 {
			want := points[i-1].Date.AddDate(0, 0, 1)
			if !sameDay(p.Date, want) {
				return nil, fmt.Errorf("series %q: dates must increase one day at a time, got %s after %s",
					name, p.Date.Format("2006-01-02"), points[i-1].Date.Format("2006-01-02"))
			}
		}
	}

	copied := make([]Point, len(points))
	copy(copied, points)
	return &Series{name: name, points: copied}, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Name returns the series name.
func (s *Series) Name() string { return s.name }

// Len returns the number of observations.
func (s *Series) Len() int { return len(s.points) }

// At returns the i-th observation.
func (s *Series) At(i int) Point { return s.points[i] }

// Values returns a copy of the observation values in order.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Value
	}
	return out
}

// Dates returns a copy of the observation dates in order.
func (s *Series) Dates() []time.Time {
	out := make([]time.Time, len(s.points))
	for i, p := range s.points {
		out[i] = p.Date
	}
	return out
}

// Slice returns a sub-series over [start, end). Indices are clamped to the
// valid range.
func (s *Series) Slice(start, end int) *Series {
	if start < 0 {
		start = 0
	}
	if end > len(s.points) {
		end = len(s.points)
	}
	if start >= end {
		return &Series{name: s.name}
	}
	copied := make([]Point, end-start)
	copy(copied, s.points[start:end])
	return &Series{name: s.name, points: copied}
}

// Mean returns the arithmetic mean of the values.
func (s *Series) Mean() float64 {
	if len(s.points) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range s.points {
		sum += p.Value
	}
	return sum / float64(len(s.points))
}

// Min returns the minimum value, or NaN for an empty series.
func (s *Series) Min() float64 {
	if len(s.points) == 0 {
		return math.NaN()
	}
	min := s.points[0].Value
	for _, p := range s.points[1:] {
		if p.Value < min {
			min = p.Value
		}
	}
	return min
}

// Max returns the maximum value, or NaN for an empty series.
func (s *Series) Max() float64 {
	if len(s.points) == 0 {
		return math.NaN()
	}
	max := s.points[0].Value
	for _, p := range s.points[1:] {
		if p.Value > max {
			max = p.Value
		}
	}
	return max
}
