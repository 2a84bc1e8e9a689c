package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"precipitation-forecast-service/cache"
	"precipitation-forecast-service/config"
	"precipitation-forecast-service/forecast"
	"precipitation-forecast-service/metrics"
	"precipitation-forecast-service/model"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Server represents the HTTP API server
type Server struct {
	router  *mux.Router
	cfg     *config.Config
	store   *model.Store
	engine  *forecast.Engine
	hybrid  *forecast.HybridSynthesizer
	cache   *cache.PredictionCache
	limiter *rate.Limiter
	log     *logrus.Entry
}

// NewServer creates a new API server. The prediction cache may be nil
// when caching is disabled.
func NewServer(cfg *config.Config, store *model.Store, engine *forecast.Engine, hybrid *forecast.HybridSynthesizer, pc *cache.PredictionCache, logger *logrus.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		cfg:     cfg,
		store:   store,
		engine:  engine,
		hybrid:  hybrid,
		cache:   pc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst),
		log:     logger.WithField("component", "api"),
	}

	s.setupRoutes()
	return s
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Add CORS headers
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	// Handle preflight requests
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.router.ServeHTTP(w, r)
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.withRequestLogging)
	s.router.Use(s.withRateLimit)

	// Forecast endpoints
	s.router.HandleFunc("/predictions/{period}", s.handlePredictions).Methods("GET")
	s.router.HandleFunc("/predictions/hybrid/{period}", s.handleHybridPredictions).Methods("POST")

	// Model management
	s.router.HandleFunc("/model/status", s.handleModelStatus).Methods("GET")
	s.router.HandleFunc("/model/load", s.requireAuth(s.handleModelLoad)).Methods("POST")

	// System endpoints
	s.router.Handle("/metrics", metrics.Handler()).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/", s.handleRoot).Methods("GET")
}

// predictionItem is a single forecast step as served to clients.
type predictionItem struct {
	Timestamp               string  `json:"timestamp"`
	Date                    string  `json:"date"`
	PredictedValue          float64 `json:"predicted_value"`
	ConfidenceIntervalLower float64 `json:"confidence_interval_lower"`
	ConfidenceIntervalUpper float64 `json:"confidence_interval_upper"`
	ModelConfidence         float64 `json:"model_confidence"`
	DayIndex                int     `json:"day_index"`
	PeriodType              string  `json:"period_type"`
}

// handlePredictions serves point forecasts with confidence intervals
func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	period := forecast.Period(mux.Vars(r)["period"])
	days := parseDays(r.URL.Query().Get("days"))

	if s.cache != nil {
		if payload, ok := s.cache.Get(r.Context(), "point", string(period), days); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "hit")
			w.WriteHeader(http.StatusOK)
			w.Write(payload)
			return
		}
	}

	fc, err := s.engine.Forecast(s.store.Current(), period, days)
	if err != nil {
		s.writeForecastError(w, err)
		return
	}
	metrics.ForecastsGenerated.WithLabelValues(string(fc.Period), string(fc.Source)).Inc()

	items := make([]predictionItem, len(fc.Entries))
	for i, e := range fc.Entries {
		items[i] = predictionItem{
			Timestamp:               e.Date.Format(time.RFC3339),
			Date:                    e.Date.Format("2006-01-02"),
			PredictedValue:          round2(e.PointValue),
			ConfidenceIntervalLower: round2(e.LowerBound),
			ConfidenceIntervalUpper: round2(e.UpperBound),
			ModelConfidence:         e.Confidence,
			DayIndex:                e.HorizonIndex,
			PeriodType:              string(fc.Period),
		}
	}

	resp := map[string]interface{}{
		"success":        true,
		"period_type":    string(fc.Period),
		"days_predicted": fc.Days,
		"predictions":    items,
		"model_info": map[string]interface{}{
			"loaded":     true,
			"confidence": "high",
			"source":     filepath.Base(s.store.Path()),
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if s.cache != nil {
		s.cache.Set(r.Context(), "point", string(period), days, payload)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// hybridItem is a synthesized multi-variable weather record. Dates are
// day-granular, unlike point forecast timestamps.
type hybridItem struct {
	Date          string                   `json:"date"`
	Temperature   float64                  `json:"temperature"`
	Precipitation float64                  `json:"precipitation"`
	Humidity      float64                  `json:"humidity"`
	WindSpeed     float64                  `json:"windSpeed"`
	Pressure      float64                  `json:"pressure"`
	FlowRate      float64                  `json:"flowRate"`
	WaterQuality  float64                  `json:"waterQuality"`
	Confidence    float64                  `json:"confidence"`
	Source        string                   `json:"source"`
	ModelInfo     forecast.HybridModelInfo `json:"model_info"`
}

// hybridRequest is the optional request body: a horizon override and
// client-side historical data, which is acknowledged but not consumed.
type hybridRequest struct {
	Days           int               `json:"days"`
	HistoricalData []json.RawMessage `json:"historical_data"`
}

// handleHybridPredictions serves forecasts expanded into derived
// weather variables. Not cached: each call draws fresh noise.
func (s *Server) handleHybridPredictions(w http.ResponseWriter, r *http.Request) {
	period := forecast.Period(mux.Vars(r)["period"])

	var req hybridRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	days := req.Days
	if days == 0 {
		days = parseDays(r.URL.Query().Get("days"))
	}
	if len(req.HistoricalData) > 0 {
		s.log.WithField("points", len(req.HistoricalData)).
			Debug("historical data supplied by client, forecasting from the persisted model")
	}

	fc, err := s.engine.Forecast(s.store.Current(), period, days)
	if err != nil {
		s.writeForecastError(w, err)
		return
	}
	metrics.ForecastsGenerated.WithLabelValues(string(fc.Period), string(fc.Source)).Inc()

	preds := s.hybrid.Synthesize(fc)
	items := make([]hybridItem, len(preds))
	for i, p := range preds {
		items[i] = hybridItem{
			Date:          p.Date.Format("2006-01-02"),
			Temperature:   p.Temperature,
			Precipitation: p.Precipitation,
			Humidity:      p.Humidity,
			WindSpeed:     p.WindSpeed,
			Pressure:      p.Pressure,
			FlowRate:      p.FlowRate,
			WaterQuality:  p.WaterQuality,
			Confidence:    p.Confidence,
			Source:        p.Source,
			ModelInfo:     p.ModelInfo,
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"period_type": string(fc.Period),
		"predictions": items,
		"model_info": map[string]interface{}{
			"arima_loaded": true,
			"source":       filepath.Base(s.store.Path()) + " + hybrid_processing",
			"confidence":   "high",
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleModelStatus reports metadata for the currently loaded model
func (s *Server) handleModelStatus(w http.ResponseWriter, r *http.Request) {
	rec := s.store.Current()
	if rec == nil {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"loaded":    false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"loaded":        true,
		"model_type":    rec.ModelType,
		"artifact_path": s.store.Path(),
		"order":         rec.Order,
		"aic":           round2(rec.AIC),
		"training_date": rec.TrainedAt.Format(time.RFC3339),
		"location":      rec.Location,
		"variable":      rec.Variable,
		"version":       rec.Version,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}

// handleModelLoad re-reads the model artifact from disk and swaps it in
func (s *Server) handleModelLoad(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Load()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrModelNotFound) {
			status = http.StatusNotFound
		}
		s.writeJSON(w, status, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	metrics.ModelLoaded.Set(1)
	metrics.ModelAIC.Set(rec.AIC)
	if s.cache != nil {
		s.cache.Invalidate(r.Context())
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"order":   rec.Order,
		"aic":     round2(rec.AIC),
		"version": rec.Version,
	})
}

// handleHealth returns health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"model_loaded": s.store.Loaded(),
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRoot provides API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":        "Precipitation Forecast Service",
		"version":     "1.0",
		"description": "ARIMA-based precipitation forecasting",
		"endpoints": map[string]string{
			"GET  /predictions/{period}":        "Point forecasts with confidence intervals",
			"POST /predictions/hybrid/{period}": "Forecasts expanded into weather variables",
			"GET  /model/status":                "Loaded model metadata",
			"POST /model/load":                  "Reload the model artifact from disk",
			"GET  /metrics":                     "Prometheus metrics",
			"GET  /health":                      "Health check",
		},
	})
}

// writeForecastError maps engine failures onto HTTP responses
func (s *Server) writeForecastError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, forecast.ErrInvalidPeriod):
		s.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	case errors.Is(err, forecast.ErrNotLoaded):
		s.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "ARIMA model is not loaded",
		})
	default:
		s.log.WithError(err).Error("forecast request failed")
		s.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success":   false,
			"error":     err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("failed to encode response")
	}
}

// parseDays returns 0 for absent or malformed values so the engine
// falls back to its default horizon.
func parseDays(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
