package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	shortSMAPeriod = 5
	momentumLag    = 5

	// IndicatorCount is the number of derived values appended after the lags.
	IndicatorCount = 4
)

// Positions of the derived values relative to the end of the lag window.
const (
	idxSMAShort = iota
	idxSMALong
	idxMomentum
	idxVolatility
)

// appendIndicators appends SMA-short, SMA-long, momentum and volatility of
// window to dst. Every construction path goes through here.
func appendIndicators(dst, window []float64, momentum float64) []float64 {
	short := min(shortSMAPeriod, len(window))
	return append(dst,
		stat.Mean(window[:short], nil),
		stat.Mean(window, nil),
		momentum,
		math.Sqrt(stat.PopVariance(window, nil)),
	)
}

// seriesMomentum is the training-time momentum for the window starting at i.
func seriesMomentum(series []float64, i, lookBack int) float64 {
	if i < momentumLag {
		return 0
	}
	return series[i+lookBack-1] - series[i-momentumLag]
}

// windowMomentum is the inference-time momentum; only the window survives
// autoregressive updates so it spans the window itself.
func windowMomentum(window []float64) float64 {
	return window[len(window)-1] - window[0]
}
