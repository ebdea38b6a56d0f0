package models

// Requests for forecast HTTP endpoints. Defined in domain for reuse by the CLI.

type ForecastRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,max=32"`
	// Days is bounded above by forecast.max_horizon, checked by the forecaster.
	Days   int    `query:"days" json:"days" default:"4" validate:"gte=1"`
}

type RetrainRequest struct {
	Reason string `json:"reason" default:"manual" validate:"max=200"`
}
