package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/services/features"
	"PriceCast/pkg/util"
)

// Assembler turns normalized outputs into the outward forecast result.
type Assembler struct {
	// Accuracy is a configured display figure, not a measured one.
	Accuracy         float64
	HistoryWindow    int
	VolatilityWindow int
	ConfidenceFloor  float64
}

func NewAssembler(accuracy float64, historyWindow int) Assembler {
	return Assembler{
		Accuracy:         accuracy,
		HistoryWindow:    historyWindow,
		VolatilityWindow: 10,
		ConfidenceFloor:  90,
	}
}

// Input is everything the assembler needs from one forecast run.
type Input struct {
	Series    models.PriceSeries
	Scaler    features.Scaler
	Pairs     features.TrainingSet // pairs over the whole series; pair i targets point i+lookBack
	Predictor service.Predictor
	Run       Run
}

func (a Assembler) Assemble(in Input) (models.ForecastResult, error) {
	last, ok := in.Series.Last()
	if !ok {
		return models.ForecastResult{}, models.ErrEmptySeries
	}

	fc := &models.ForecastSeries{
		Dates:  util.ForecastDates(last.Date, in.Run.Steps),
		Prices: in.Scaler.InverseTransformAll(in.Run.Outputs),
	}

	fitted := make([]float64, in.Pairs.Len())
	for i, x := range in.Pairs.Inputs {
		z, err := in.Predictor.Predict(x)
		if err != nil {
			return models.ForecastResult{}, err
		}
		fitted[i] = in.Scaler.InverseTransform(z)
	}

	window := in.Series.Tail(a.HistoryWindow)
	hist := &models.HistoricalSeries{
		Dates:       make([]string, window.Len()),
		Prices:      window.Closes(),
		Predictions: make([]*float64, window.Len()),
	}
	// fitted is aligned to the end of the series.
	offset := in.Series.Len() - len(fitted)
	start := in.Series.Len() - window.Len()
	var overlapActual, overlapFitted []float64
	for k, p := range window.Points {
		hist.Dates[k] = util.FormatDate(p.Date)
		if j := start + k - offset; j >= 0 {
			v := fitted[j]
			hist.Predictions[k] = &v
			overlapActual = append(overlapActual, p.Close)
			overlapFitted = append(overlapFitted, v)
		}
	}

	return models.ForecastResult{
		Success:    true,
		Symbol:     in.Series.Symbol,
		Forecast:   fc,
		Historical: hist,
		Metrics: &models.ForecastMetrics{
			Accuracy:   a.Accuracy,
			Confidence: a.Confidence(hist.Prices),
			RMSE:       rmse(overlapActual, overlapFitted),
		},
	}, nil
}

// Confidence discounts the display accuracy by recent relative volatility,
// bounded to [ConfidenceFloor, Accuracy].
func (a Assembler) Confidence(recent []float64) float64 {
	vol := a.recentVolatility(recent)
	c := a.Accuracy - vol*100
	c = math.Min(c, a.Accuracy)
	return math.Max(c, math.Min(a.ConfidenceFloor, a.Accuracy))
}

func (a Assembler) recentVolatility(prices []float64) float64 {
	if a.Accuracy == 0 || len(prices) < a.VolatilityWindow || a.VolatilityWindow <= 0 {
		return 0
	}
	tail := prices[len(prices)-a.VolatilityWindow:]
	mean := stat.Mean(tail, nil)
	if mean == 0 {
		return 0
	}
	return math.Sqrt(stat.PopVariance(tail, nil)) / mean
}

func rmse(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	var sq float64
	for i := range actual {
		d := actual[i] - predicted[i]
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(actual)))
}
