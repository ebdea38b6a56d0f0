package chart

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/models"
)

func TestRenderPNG(t *testing.T) {
	p1, p2 := 101.5, 102.0
	res := models.ForecastResult{
		Success: true,
		Symbol:  "TCS.NS",
		Historical: &models.HistoricalSeries{
			Dates:       []string{"2026-01-01", "2026-01-02", "2026-01-03"},
			Prices:      []float64{100, 101, 102},
			Predictions: []*float64{nil, &p1, &p2},
		},
		Forecast: &models.ForecastSeries{
			Dates:  []string{"2026-01-04", "2026-01-05"},
			Prices: []float64{103, 104},
		},
		Model: &models.ModelInfo{Variant: "linear", Version: "linear-20260101T000000Z"},
	}

	png, err := RenderPNG(res)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestRenderPNGRejectsFailure(t *testing.T) {
	_, err := RenderPNG(models.ForecastResult{Success: false, Error: "boom"})
	assert.Error(t, err)

	_, err = RenderPNG(models.ForecastResult{
		Success:    true,
		Historical: &models.HistoricalSeries{Dates: []string{"nope"}, Prices: []float64{1}},
		Forecast:   &models.ForecastSeries{},
	})
	assert.Error(t, err)
}
