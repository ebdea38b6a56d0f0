package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	forecasts    *prometheus.CounterVec
	forecastTime *prometheus.HistogramVec
	trainings    *prometheus.CounterVec
	trainTime    *prometheus.HistogramVec
	errorsTotal  *prometheus.CounterVec
	lastForecast *prometheus.GaugeVec
	modelInfo    *prometheus.GaugeVec
}

// New registers the collectors on the default registerer.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		forecasts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pricecast_forecasts_total",
			Help: "Forecast requests by predictor variant and result",
		}, []string{"variant", "result"}),
		forecastTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricecast_forecast_duration_seconds",
			Help:    "Time spent producing a forecast",
			Buckets: prometheus.DefBuckets,
		}, []string{"variant"}),
		trainings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pricecast_trainings_total",
			Help: "Model training runs by variant and result",
		}, []string{"variant", "result"}),
		trainTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricecast_training_duration_seconds",
			Help:    "Time spent training a model",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"variant"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pricecast_errors_total",
			Help: "Total number of errors encountered",
		}, []string{"type"}),
		lastForecast: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pricecast_last_forecast_price",
			Help: "First projected price of the latest forecast per symbol",
		}, []string{"symbol"}),
		modelInfo: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pricecast_model_info",
			Help: "Currently served model; value is always 1",
		}, []string{"variant", "version"}),
	}
}

func (r *Recorder) RecordForecast(variant, result string, seconds float64) {
	r.forecasts.WithLabelValues(variant, result).Inc()
	r.forecastTime.WithLabelValues(variant).Observe(seconds)
}

func (r *Recorder) RecordTraining(variant, result string, seconds float64) {
	r.trainings.WithLabelValues(variant, result).Inc()
	r.trainTime.WithLabelValues(variant).Observe(seconds)
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastForecast(symbol string, price float64) {
	r.lastForecast.WithLabelValues(symbol).Set(price)
}

// SetModelInfo replaces the served-model series so only one version is reported.
func (r *Recorder) SetModelInfo(variant, version string) {
	r.modelInfo.Reset()
	r.modelInfo.WithLabelValues(variant, version).Set(1)
}
