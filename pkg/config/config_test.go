package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 10, c.Forecast.LookBack)
	assert.Equal(t, 4, c.Forecast.Horizon)
	assert.Equal(t, 30, c.Forecast.MaxHorizon)
	assert.Equal(t, 180, c.Forecast.HistoryDays)
	assert.Equal(t, 97.5, c.Forecast.DisplayAccuracy)
	assert.Equal(t, 200, c.Training.Forest.Trees)
	assert.Equal(t, int64(42), c.Training.Seed)
	assert.Equal(t, DefaultTrainingSymbols, c.Training.Symbols)
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.Equal(t, 2, c.Kafka.Consumer.Workers)
	assert.True(t, c.Server.CORS)
	assert.Equal(t, "pricecast", c.Redis.Prefix)
}

func TestParse_OverridesKeepExplicitZeroes(t *testing.T) {
	c, err := Parse([]byte(`
environment: test
metrics:
  enabled: false
forecast:
  variant: linear
  look_back: 5
  cache_ttl: 30s
training:
  symbols: [AAPL, MSFT]
`))
	require.NoError(t, err)
	assert.False(t, c.Metrics.Enabled)
	assert.Equal(t, "linear", c.Forecast.Variant)
	assert.Equal(t, 5, c.Forecast.LookBack)
	assert.Equal(t, 30*time.Second, c.Forecast.CacheTTL)
	assert.Equal(t, []string{"AAPL", "MSFT"}, c.Training.Symbols)
	assert.Equal(t, 8080, c.Server.Port)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"variant":  "forecast: {variant: arima}",
		"horizon":  "forecast: {horizon: 31}",
		"accuracy": "forecast: {display_accuracy: 80}",
		"backend":  "artifacts: {backend: ftp}",
		"s3":       "artifacts: {backend: s3}",
		"redis":    "artifacts: {backend: redis}",
		"source":   "source: {type: csv}",
		"kafka":    "kafka: {enabled: true}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	env := map[string]string{
		"TRAINING_SYMBOLS": "AAPL, MSFT,,GOOG",
		"KAFKA_BROKERS":    "k1:9092,k2:9092",
		"PRICECAST_PORT":   "9090",
	}
	require.NoError(t, c.applyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, []string{"AAPL", "MSFT", "GOOG"}, c.Training.Symbols)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 9090, c.Server.Port)

	env["PRICECAST_PORT"] = "http"
	assert.Error(t, c.applyEnv(func(k string) string { return env[k] }))
}
