// Package metrics exposes Prometheus instrumentation for the forecast
// service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts HTTP requests by route and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecast_http_requests_total",
			Help: "HTTP requests handled, by route and status code.",
		},
		[]string{"route", "status"},
	)

	// RequestDuration observes handler latency by route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forecast_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// ForecastsGenerated counts successful forecasts by period and interval
	// provenance (native vs estimated).
	ForecastsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecast_generated_total",
			Help: "Forecasts generated, by period type and interval source.",
		},
		[]string{"period", "interval_source"},
	)

	// ModelLoaded reports whether a usable model record is resident (1 or 0).
	ModelLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "forecast_model_loaded",
			Help: "Whether a usable fitted model is currently resident.",
		},
	)

	// ModelAIC reports the criterion score of the resident model.
	ModelAIC = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "forecast_model_aic",
			Help: "AIC of the currently resident model record.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		ForecastsGenerated,
		ModelLoaded,
		ModelAIC,
	)
}

// Handler returns the HTTP handler serving the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
