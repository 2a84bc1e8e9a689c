package timeseries

import (
	"math"
	"math/rand"
	"time"
)

// monthlyPattern is the seasonal base precipitation in mm per day, indexed by
// calendar month (January first). Wetter in April-May and October-November.
var monthlyPattern = [12]float64{
	4.2, 5.1, 6.8, 8.9, 7.2, 5.8,
	4.1, 4.5, 6.2, 7.8, 6.4, 4.9,
}

const (
	dailyNoiseStd   = 2.5
	trendMagnitude  = 0.5
	annualAmplitude = 1.5
)

// Synthesizer produces a synthetic daily precipitation series: a monthly
// seasonal template perturbed by Gaussian noise, a slight linear trend and a
// smooth annual sinusoid, clamped to non-negative values.
type Synthesizer struct {
	start time.Time
	rng   *rand.Rand
}

// NewSynthesizer creates a synthesizer seeded for reproducible output.
// Generated series start on 2021-01-01.
func NewSynthesizer(seed int64) *Synthesizer {
	return &Synthesizer{
		start: time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Synthesize generates numDays of daily observations. A non-positive numDays
// yields an empty series.
func (g *Synthesizer) Synthesize(numDays int) *Series {
	if numDays <= 0 {
		return &Series{name: "precipitation"}
	}

	points := make([]Point, numDays)
	for i := 0; i < numDays; i++ {
		date := g.start.AddDate(0, 0, i)

		seasonal := monthlyPattern[int(date.Month())-1]
		noise := g.rng.NormFloat64() * dailyNoiseStd

		trend := 0.0
		if numDays > 1 {
			trend = trendMagnitude * float64(i) / float64(numDays-1)
		}

		dayOfYear := float64(date.YearDay())
		annual := annualAmplitude * math.Sin(2*math.Pi*dayOfYear/365.25)

		value := seasonal + noise + trend + annual
		if value < 0 {
			value = 0
		}

		points[i] = Point{Date: date, Value: value}
	}

	return &Series{name: "precipitation", points: points}
}
