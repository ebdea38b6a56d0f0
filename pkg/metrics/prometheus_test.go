package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordForecast("windowed", "success", 0.2)
	r.RecordForecast("windowed", "success", 0.1)
	r.RecordForecast("windowed", "failure", 0.1)
	r.RecordError("price_source")
	r.RecordLastForecast("TCS.NS", 4012.5)
	r.SetModelInfo("windowed", "v1")
	r.SetModelInfo("windowed", "v2")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.forecasts.WithLabelValues("windowed", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("price_source")))
	assert.Equal(t, 4012.5, testutil.ToFloat64(r.lastForecast.WithLabelValues("TCS.NS")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.modelInfo))
}
