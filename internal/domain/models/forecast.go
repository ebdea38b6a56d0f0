package models

import "time"

// ForecastSeries is the projected part of a forecast.
type ForecastSeries struct {
	Dates  []string  `json:"dates"`
	Prices []float64 `json:"prices"`
}

// HistoricalSeries holds recent actual closes next to the model's in-sample
// single-step predictions. Predictions is null where no prediction exists.
type HistoricalSeries struct {
	Dates       []string   `json:"dates"`
	Prices      []float64  `json:"prices"`
	Predictions []*float64 `json:"predictions"`
}

type ForecastMetrics struct {
	Accuracy   float64 `json:"accuracy"`
	Confidence float64 `json:"confidence"`
	RMSE       float64 `json:"rmse"`
}

// ModelInfo identifies the model that produced a forecast.
type ModelInfo struct {
	Variant string `json:"variant"`
	Version string `json:"version"`
}

// ForecastResult is the outward result of a forecast request. Success results
// carry forecast, historical and metrics; failures carry Error and optionally Status.
type ForecastResult struct {
	Success    bool              `json:"success"`
	Symbol     string            `json:"symbol,omitempty"`
	Forecast   *ForecastSeries   `json:"forecast,omitempty"`
	Historical *HistoricalSeries `json:"historical,omitempty"`
	Metrics    *ForecastMetrics  `json:"metrics,omitempty"`
	Model      *ModelInfo        `json:"model,omitempty"`
	Error      string            `json:"error,omitempty"`
	Status     string            `json:"status,omitempty"`

	// Err is the cause of a failed result, kept for status mapping.
	Err error `json:"-"`
}

const StatusTraining = "training"

// FailedResult builds the failure variant of a result.
func FailedResult(symbol string, err error) ForecastResult {
	r := ForecastResult{Success: false, Symbol: symbol, Error: err.Error(), Err: err}
	if IsTraining(err) {
		r.Status = StatusTraining
	}
	return r
}

// ForecastEvent is published after every successful forecast.
type ForecastEvent struct {
	Symbol      string    `json:"symbol"`
	Variant     string    `json:"variant"`
	Version     string    `json:"version"`
	Dates       []string  `json:"dates"`
	Prices      []float64 `json:"prices"`
	Confidence  float64   `json:"confidence"`
	GeneratedAt time.Time `json:"generated_at"`
}

// RetrainCommand asks the service to retrain its model.
type RetrainCommand struct {
	Reason      string    `json:"reason"`
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

// ModelStatus describes the registry state.
type ModelStatus struct {
	Ready      bool        `json:"ready"`
	Training   bool        `json:"training"`
	Version    string      `json:"version,omitempty"`
	Variant    string      `json:"variant,omitempty"`
	TrainedAt  *time.Time  `json:"trained_at,omitempty"`
	Symbols    []string    `json:"symbols,omitempty"`
	Evaluation *Evaluation `json:"evaluation,omitempty"`
	LastError  string      `json:"last_error,omitempty"`
}
