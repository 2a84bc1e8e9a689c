package forecast

import (
	"math"
	"sync"
	"testing"
	"time"
)

func sampleForecast(points ...float64) *Forecast {
	fc := &Forecast{
		Entries: make([]Entry, len(points)),
		Period:  PeriodDaily,
		Days:    len(points),
		Source:  IntervalNative,
	}
	for i, p := range points {
		fc.Entries[i] = Entry{
			Date:         testNow.AddDate(0, 0, i+1),
			PointValue:   p,
			LowerBound:   p - 2,
			UpperBound:   p + 2,
			Confidence:   stepConfidence(i),
			HorizonIndex: i,
		}
	}
	return fc
}

func TestHybrid_OnePredictionPerEntry(t *testing.T) {
	h := NewHybridSynthesizer(42)
	preds := h.Synthesize(sampleForecast(3.1, 5.7, 0.0, 12.4))
	if len(preds) != 4 {
		t.Fatalf("Expected 4 predictions, got %d", len(preds))
	}
	for i, p := range preds {
		if !p.Date.Equal(testNow.AddDate(0, 0, i+1)) {
			t.Errorf("Prediction %d has wrong date %s", i, p.Date)
		}
		if p.ModelInfo.DayIndex != i {
			t.Errorf("Prediction %d carries day index %d", i, p.ModelInfo.DayIndex)
		}
	}
}

func TestHybrid_VariableRanges(t *testing.T) {
	h := NewHybridSynthesizer(7)

	// Many draws across a spread of precipitation levels; every derived
	// variable must stay inside its physical range.
	for trial := 0; trial < 50; trial++ {
		for _, p := range h.Synthesize(sampleForecast(0, 2.5, 8.0, 25.0)) {
			if p.Precipitation < 0 {
				t.Errorf("Negative precipitation %f", p.Precipitation)
			}
			if p.Humidity < 60 || p.Humidity > 95 {
				t.Errorf("Humidity out of range: %f", p.Humidity)
			}
			if p.WaterQuality < 70 || p.WaterQuality > 95 {
				t.Errorf("Water quality out of range: %f", p.WaterQuality)
			}
			if math.IsNaN(p.Temperature) || math.IsNaN(p.WindSpeed) || math.IsNaN(p.FlowRate) {
				t.Error("Non-finite derived variable")
			}
		}
	}
}

func TestHybrid_OneDecimalRounding(t *testing.T) {
	h := NewHybridSynthesizer(11)
	for _, p := range h.Synthesize(sampleForecast(3.456, 7.891)) {
		for name, v := range map[string]float64{
			"temperature":   p.Temperature,
			"precipitation": p.Precipitation,
			"humidity":      p.Humidity,
			"windSpeed":     p.WindSpeed,
			"pressure":      p.Pressure,
			"flowRate":      p.FlowRate,
			"waterQuality":  p.WaterQuality,
		} {
			if math.Round(v*10)/10 != v {
				t.Errorf("%s not rounded to one decimal: %v", name, v)
			}
		}
	}
}

func TestHybrid_PressureIsAltitudeConstant(t *testing.T) {
	h := NewHybridSynthesizer(3)
	want := round1(seaLevelPressure * math.Pow(1-lapseRate*stationAltitude/standardTemp, pressureExponent))
	for _, p := range h.Synthesize(sampleForecast(1, 10, 20)) {
		if p.Pressure != want {
			t.Errorf("Expected station pressure %f, got %f", want, p.Pressure)
		}
	}
	if want < 650 || want > 700 {
		t.Errorf("Station pressure %f outside plausible range for 3220 m", want)
	}
}

func TestHybrid_Passthroughs(t *testing.T) {
	h := NewHybridSynthesizer(5)
	fc := sampleForecast(4.567)
	p := h.Synthesize(fc)[0]

	if p.Source != HybridSource {
		t.Errorf("Expected source %q, got %q", HybridSource, p.Source)
	}
	if p.Confidence != fc.Entries[0].Confidence {
		t.Errorf("Confidence not passed through: %f vs %f", p.Confidence, fc.Entries[0].Confidence)
	}
	// The underlying value is exposed at two-decimal precision.
	if p.ModelInfo.ArimaValue != 4.57 {
		t.Errorf("Expected underlying value 4.57, got %f", p.ModelInfo.ArimaValue)
	}
	if p.ModelInfo.ConfidenceInterval[0] != 2.57 || p.ModelInfo.ConfidenceInterval[1] != 6.57 {
		t.Errorf("Unexpected interval passthrough: %v", p.ModelInfo.ConfidenceInterval)
	}
}

func TestHybrid_ConcurrentUse(t *testing.T) {
	h := NewHybridSynthesizer(time.Now().UnixNano())
	fc := sampleForecast(1, 2, 3, 4, 5)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if got := len(h.Synthesize(fc)); got != 5 {
					t.Errorf("Expected 5 predictions, got %d", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}
