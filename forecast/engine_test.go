package forecast

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"precipitation-forecast-service/arima"
	"precipitation-forecast-service/model"
)

func testEngine(now time.Time) *Engine {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	e := NewEngine(logger)
	e.now = func() time.Time { return now }
	return e
}

// whiteNoiseRecord builds a usable record whose model forecasts a constant
// level with a well-defined variance.
func whiteNoiseRecord(intercept, variance float64) *model.Record {
	m := &arima.Model{
		ModelOrder: arima.Order{P: 0, D: 0, Q: 0},
		ARCoeffs:   []float64{},
		MACoeffs:   []float64{},
		Intercept:  intercept,
		Variance:   variance,
		NObs:       300,
		DiffTail:   []float64{},
		ResidTail:  []float64{},
		LevelTail:  []float64{},
		Fitted:     true,
	}
	return &model.Record{
		Model:     m,
		ModelType: model.ModelType,
		Order:     m.ModelOrder,
		Version:   model.SchemaVersion,
	}
}

var testNow = time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

func TestEngine_DefaultHorizon(t *testing.T) {
	fc, err := testEngine(testNow).Forecast(whiteNoiseRecord(5, 1), PeriodDaily, 0)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	if fc.Days != DefaultDays || len(fc.Entries) != DefaultDays {
		t.Errorf("Expected default horizon %d, got %d entries", DefaultDays, len(fc.Entries))
	}
}

func TestEngine_ClampsHorizon(t *testing.T) {
	engine := testEngine(testNow)
	rec := whiteNoiseRecord(5, 1)

	cases := []struct {
		period Period
		want   int
	}{
		{PeriodDaily, 30},
		{PeriodMonthly, 60},
		{PeriodYearly, 12},
	}
	for _, tc := range cases {
		fc, err := engine.Forecast(rec, tc.period, 1000)
		if err != nil {
			t.Fatalf("Forecast %s failed: %v", tc.period, err)
		}
		if len(fc.Entries) != tc.want {
			t.Errorf("Period %s: expected %d entries for oversized request, got %d",
				tc.period, tc.want, len(fc.Entries))
		}
	}
}

func TestEngine_InvalidPeriod(t *testing.T) {
	_, err := testEngine(testNow).Forecast(whiteNoiseRecord(5, 1), Period("weekly"), 7)
	if !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("Expected ErrInvalidPeriod, got %v", err)
	}
}

func TestEngine_ModelNotLoaded(t *testing.T) {
	if _, err := testEngine(testNow).Forecast(nil, PeriodDaily, 7); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Expected ErrNotLoaded for nil record, got %v", err)
	}

	unfitted := whiteNoiseRecord(5, 1)
	unfitted.Model.Fitted = false
	if _, err := testEngine(testNow).Forecast(unfitted, PeriodDaily, 7); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Expected ErrNotLoaded for unfitted model, got %v", err)
	}
}

func TestEngine_NativeIntervals(t *testing.T) {
	fc, err := testEngine(testNow).Forecast(whiteNoiseRecord(5, 1), PeriodDaily, 10)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	if fc.Source != IntervalNative {
		t.Errorf("Expected native intervals, got %s", fc.Source)
	}
	for _, e := range fc.Entries {
		if e.LowerBound > e.PointValue || e.PointValue > e.UpperBound {
			t.Errorf("Bounds disordered at step %d: %f, %f, %f",
				e.HorizonIndex, e.LowerBound, e.PointValue, e.UpperBound)
		}
		if e.LowerBound == e.UpperBound {
			t.Errorf("Degenerate interval at step %d", e.HorizonIndex)
		}
	}
}

func TestEngine_EstimatedIntervalFallback(t *testing.T) {
	// Zero variance makes native interval estimation fail while the point
	// forecast still works.
	fc, err := testEngine(testNow).Forecast(whiteNoiseRecord(10, 0), PeriodDaily, 5)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	if fc.Source != IntervalEstimated {
		t.Fatalf("Expected estimated intervals, got %s", fc.Source)
	}

	for _, e := range fc.Entries {
		se := fallbackStdError * e.PointValue
		if e.LowerBound != e.PointValue-fallbackZ*se {
			t.Errorf("Unexpected lower bound at step %d: %f", e.HorizonIndex, e.LowerBound)
		}
		if e.UpperBound != e.PointValue+fallbackZ*se {
			t.Errorf("Unexpected upper bound at step %d: %f", e.HorizonIndex, e.UpperBound)
		}
	}
}

func TestEngine_BoundsHoldForNegativePoints(t *testing.T) {
	// A negative point value inverts the percentage fallback; the engine
	// must still deliver ordered bounds.
	fc, err := testEngine(testNow).Forecast(whiteNoiseRecord(-3, 0), PeriodDaily, 5)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	for _, e := range fc.Entries {
		if e.LowerBound > e.PointValue || e.PointValue > e.UpperBound {
			t.Errorf("Bounds disordered at step %d: %f, %f, %f",
				e.HorizonIndex, e.LowerBound, e.PointValue, e.UpperBound)
		}
	}
}

func TestEngine_ConfidenceDecay(t *testing.T) {
	fc, err := testEngine(testNow).Forecast(whiteNoiseRecord(5, 1), PeriodDaily, 30)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	if fc.Entries[0].Confidence != 0.9 {
		t.Errorf("Expected first-step confidence 0.9, got %f", fc.Entries[0].Confidence)
	}
	if fc.Entries[5].Confidence != 0.8 {
		t.Errorf("Expected step-5 confidence 0.8, got %f", fc.Entries[5].Confidence)
	}
	for _, e := range fc.Entries[15:] {
		if e.Confidence != 0.6 {
			t.Errorf("Expected floored confidence 0.6 at step %d, got %f", e.HorizonIndex, e.Confidence)
		}
	}
	for i := 1; i < len(fc.Entries); i++ {
		if fc.Entries[i].Confidence > fc.Entries[i-1].Confidence {
			t.Errorf("Confidence increased at step %d", i)
		}
	}
}

func TestEngine_DailyDates(t *testing.T) {
	fc, err := testEngine(testNow).Forecast(whiteNoiseRecord(5, 1), PeriodDaily, 3)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	for i, e := range fc.Entries {
		want := testNow.AddDate(0, 0, i+1)
		if !e.Date.Equal(want) {
			t.Errorf("Step %d: expected %s, got %s", i, want, e.Date)
		}
	}
}

func TestEngine_MonthlyStepsOneDayAtATime(t *testing.T) {
	// Monthly forecasts advance by single days, not calendar months.
	fc, err := testEngine(testNow).Forecast(whiteNoiseRecord(5, 1), PeriodMonthly, 40)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	if len(fc.Entries) != 40 {
		t.Fatalf("Expected 40 entries, got %d", len(fc.Entries))
	}
	want := testNow.AddDate(0, 0, 40)
	if !fc.Entries[39].Date.Equal(want) {
		t.Errorf("Expected last date %s, got %s", want, fc.Entries[39].Date)
	}
}

func TestEngine_YearlyDates(t *testing.T) {
	fc, err := testEngine(testNow).Forecast(whiteNoiseRecord(5, 1), PeriodYearly, 12)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	// Starting from March: steps walk April..December, wrap to January
	// in the same year at the modulo boundary, then bump the year.
	cases := []struct {
		idx   int
		year  int
		month time.Month
	}{
		{0, 2026, time.April},
		{8, 2026, time.December},
		{9, 2026, time.January},
		{10, 2027, time.February},
		{11, 2027, time.March},
	}
	for _, tc := range cases {
		got := fc.Entries[tc.idx].Date
		if got.Year() != tc.year || got.Month() != tc.month || got.Day() != 1 {
			t.Errorf("Step %d: expected %d-%s-01, got %s", tc.idx, tc.year, tc.month, got.Format("2006-01-02"))
		}
	}
}

func TestValidatePeriod(t *testing.T) {
	for _, p := range []Period{PeriodDaily, PeriodMonthly, PeriodYearly} {
		if err := ValidatePeriod(p); err != nil {
			t.Errorf("Expected %s to validate, got %v", p, err)
		}
	}
	if err := ValidatePeriod("hourly"); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("Expected ErrInvalidPeriod, got %v", err)
	}
}
