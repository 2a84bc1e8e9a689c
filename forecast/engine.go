// Package forecast turns a fitted model record into dated forecast entries
// with confidence intervals, and derives multi-variable hybrid predictions
// from them.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"precipitation-forecast-service/model"
)

// Period selects the date semantics of a forecast request.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// horizonLimits caps the number of steps per period. Requests above the cap
// are clamped, not rejected.
var horizonLimits = map[Period]int{
	PeriodDaily:   30,
	PeriodMonthly: 60,
	PeriodYearly:  12,
}

// DefaultDays is the horizon used when a request does not specify one.
const DefaultDays = 7

// ErrInvalidPeriod indicates a period outside daily/monthly/yearly.
var ErrInvalidPeriod = errors.New("invalid period type")

// ErrNotLoaded indicates a forecast was requested with no usable model
// resident.
var ErrNotLoaded = errors.New("forecast model not loaded")

// ForecastError wraps a failure inside native forecast computation.
type ForecastError struct {
	Op  string
	Err error
}

func (e *ForecastError) Error() string { return fmt.Sprintf("forecast %s: %v", e.Op, e.Err) }
func (e *ForecastError) Unwrap() error { return e.Err }

// IntervalSource records how the confidence bounds were obtained.
type IntervalSource string

const (
	// IntervalNative means the model's own interval estimate was used.
	IntervalNative IntervalSource = "native"
	// IntervalEstimated means the 15%-of-point fallback was used.
	IntervalEstimated IntervalSource = "estimated"
)

// Fallback interval constants: a symmetric 95% interval assuming a standard
// error of 15% of the point value.
const (
	fallbackZ        = 1.96
	fallbackStdError = 0.15
)

// Confidence decay constants: confidence starts at 0.9, drops 0.02 per step,
// floored at 0.6 and capped at 0.95.
const (
	confidenceBase  = 0.9
	confidenceDecay = 0.02
	confidenceFloor = 0.6
	confidenceCap   = 0.95
)

// Entry is a single forecast step. LowerBound <= PointValue <= UpperBound
// holds for every entry regardless of how the interval was obtained.
type Entry struct {
	Date         time.Time
	PointValue   float64
	LowerBound   float64
	UpperBound   float64
	Confidence   float64
	HorizonIndex int
}

// Forecast is an ordered multi-step forecast with interval provenance.
type Forecast struct {
	Entries     []Entry
	Period      Period
	Days        int
	Source      IntervalSource
	GeneratedAt time.Time
}

// Engine generates forecasts from fitted model records. It holds no mutable
// state of its own, so a single engine serves concurrent requests.
type Engine struct {
	now func() time.Time
	log *logrus.Entry
}

// NewEngine creates an engine using the wall clock.
func NewEngine(logger *logrus.Logger) *Engine {
	return &Engine{
		now: time.Now,
		log: logger.WithField("component", "forecast_engine"),
	}
}

// ValidatePeriod checks a raw period value without running a forecast.
func ValidatePeriod(period Period) error {
	if _, ok := horizonLimits[period]; !ok {
		return fmt.Errorf("%w: %q (use daily, monthly or yearly)", ErrInvalidPeriod, period)
	}
	return nil
}

// MaxDays returns the horizon cap for a valid period.
func MaxDays(period Period) int { return horizonLimits[period] }

// Forecast produces days forecast steps from the record. Days above the
// period cap are silently clamped; non-positive days fall back to the
// default horizon. The record must carry a usable fitted model.
func (e *Engine) Forecast(rec *model.Record, period Period, days int) (*Forecast, error) {
	limit, ok := horizonLimits[period]
	if !ok {
		return nil, fmt.Errorf("%w: %q (use daily, monthly or yearly)", ErrInvalidPeriod, period)
	}
	if !rec.Usable() {
		return nil, ErrNotLoaded
	}

	if days <= 0 {
		days = DefaultDays
	}
	if days > limit {
		days = limit
	}

	points, source, lower, upper, err := e.computeBounds(rec, days)
	if err != nil {
		return nil, err
	}

	today := e.now()
	fc := &Forecast{
		Entries:     make([]Entry, days),
		Period:      period,
		Days:        days,
		Source:      source,
		GeneratedAt: today,
	}

	for i := 0; i < days; i++ {
		lo, hi := lower[i], upper[i]
		// The bound invariant must survive both interval paths; negative
		// point values invert the percentage fallback.
		if lo > points[i] {
			lo = points[i]
		}
		if hi < points[i] {
			hi = points[i]
		}

		fc.Entries[i] = Entry{
			Date:         stepDate(today, period, i),
			PointValue:   points[i],
			LowerBound:   lo,
			UpperBound:   hi,
			Confidence:   stepConfidence(i),
			HorizonIndex: i,
		}
	}
	return fc, nil
}

// computeBounds runs the model's native multi-step forecast and prefers its
// native intervals, falling back to the estimated 15%-of-point interval when
// the model cannot supply them.
func (e *Engine) computeBounds(rec *model.Record, days int) (points []float64, source IntervalSource, lower, upper []float64, err error) {
	iv, ivErr := rec.Model.PredictInterval(days)
	if ivErr == nil {
		return iv.Point, IntervalNative, iv.Lower, iv.Upper, nil
	}

	// Interval estimation failed; the point forecast may still be fine.
	points, pErr := rec.Model.Predict(days)
	if pErr != nil {
		e.log.WithError(pErr).WithFields(logrus.Fields{
			"order": rec.Order.String(),
			"days":  days,
		}).Error("native forecast computation failed")
		return nil, "", nil, nil, &ForecastError{Op: "predict", Err: pErr}
	}

	e.log.WithError(ivErr).WithField("order", rec.Order.String()).
		Warn("native confidence intervals unavailable, using estimated intervals")

	lower = make([]float64, days)
	upper = make([]float64, days)
	for i, p := range points {
		se := fallbackStdError * p
		lower[i] = p - fallbackZ*se
		upper[i] = p + fallbackZ*se
	}
	return points, IntervalEstimated, lower, upper, nil
}

// stepConfidence decays linearly with forecast distance, clamped to
// [confidenceFloor, confidenceCap] and rounded to 3 decimals.
func stepConfidence(i int) float64 {
	c := math.Max(confidenceFloor, math.Min(confidenceCap, confidenceBase-confidenceDecay*float64(i)))
	return math.Round(c*1000) / 1000
}

// stepDate assigns the date of step i. Daily and monthly both step one day
// at a time (monthly intentionally does not use calendar-month increments).
// Yearly cycles through first-of-month dates with a modulo-12 scheme, with a
// single year bump once the raw month count passes December.
func stepDate(today time.Time, period Period, i int) time.Time {
	switch period {
	case PeriodYearly:
		month := (int(today.Month())+i)%12 + 1
		year := today.Year()
		if int(today.Month())+i > 12 {
			year++
		}
		return time.Date(year, time.Month(month), 1,
			today.Hour(), today.Minute(), today.Second(), today.Nanosecond(), today.Location())
	default: // daily and monthly
		return today.AddDate(0, 0, i+1)
	}
}
