package forecast

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// HybridSource is the provenance value stamped on hybrid predictions.
const HybridSource = "arima_model"

// Barometric pressure at the station altitude, hPa. Fixed-altitude standard
// atmosphere: P = P0 * (1 - L*h/T0)^5.255 with h = 3220 m.
const (
	seaLevelPressure = 1013.25
	lapseRate        = 0.0065
	stationAltitude  = 3220.0
	standardTemp     = 288.15
	pressureExponent = 5.255
)

// HybridModelInfo carries the underlying forecast values a hybrid prediction
// was derived from.
type HybridModelInfo struct {
	ArimaValue         float64    `json:"arima_value"`
	ConfidenceInterval [2]float64 `json:"confidence_interval"`
	DayIndex           int        `json:"day_index"`
}

// HybridPrediction maps one precipitation forecast step onto a vector of
// correlated weather and water variables. Everything except precipitation,
// confidence and provenance carries bounded random noise.
type HybridPrediction struct {
	Date          time.Time       `json:"date"`
	Temperature   float64         `json:"temperature"`
	Precipitation float64         `json:"precipitation"`
	Humidity      float64         `json:"humidity"`
	WindSpeed     float64         `json:"windSpeed"`
	Pressure      float64         `json:"pressure"`
	FlowRate      float64         `json:"flowRate"`
	WaterQuality  float64         `json:"waterQuality"`
	Confidence    float64         `json:"confidence"`
	Source        string          `json:"source"`
	ModelInfo     HybridModelInfo `json:"model_info"`
}

// HybridSynthesizer derives hybrid predictions from forecasts. The transform
// is stateless across entries and randomized by design: repeated calls on
// the same forecast give different noise draws. Safe for concurrent use.
type HybridSynthesizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewHybridSynthesizer creates a synthesizer with its own RNG.
func NewHybridSynthesizer(seed int64) *HybridSynthesizer {
	return &HybridSynthesizer{rng: rand.New(rand.NewSource(seed))}
}

// Synthesize produces one hybrid prediction per forecast entry, in order.
func (h *HybridSynthesizer) Synthesize(fc *Forecast) []HybridPrediction {
	out := make([]HybridPrediction, len(fc.Entries))
	for i, entry := range fc.Entries {
		out[i] = h.synthesizeEntry(entry)
	}
	return out
}

func (h *HybridSynthesizer) synthesizeEntry(entry Entry) HybridPrediction {
	// The hybrid transform consumes the rounded point value the prediction
	// payload exposes, not the raw forecast.
	p := round2(entry.PointValue)

	return HybridPrediction{
		Date:          entry.Date,
		Temperature:   round1(10.0 + p*0.1 + h.gauss(1)),
		Precipitation: round1(math.Max(0, p)),
		Humidity:      round1(clamp(60, 95, 75+p*2+h.gauss(5))),
		WindSpeed:     round1(8 + h.gauss(3)),
		Pressure:      round1(basePressure()),
		FlowRate:      round1(150 + p*3 + h.gauss(10)),
		WaterQuality:  round1(clamp(70, 95, 85-p*0.5+h.gauss(3))),
		Confidence:    entry.Confidence,
		Source:        HybridSource,
		ModelInfo: HybridModelInfo{
			ArimaValue:         p,
			ConfidenceInterval: [2]float64{round2(entry.LowerBound), round2(entry.UpperBound)},
			DayIndex:           entry.HorizonIndex,
		},
	}
}

func (h *HybridSynthesizer) gauss(sd float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.NormFloat64() * sd
}

func basePressure() float64 {
	return seaLevelPressure * math.Pow(1-lapseRate*stationAltitude/standardTemp, pressureExponent)
}

func clamp(lo, hi, v float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
