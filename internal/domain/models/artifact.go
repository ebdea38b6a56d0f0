package models

import (
	"encoding/json"
	"time"
)

// ScalerParams are the fitted min-max bounds persisted with a model.
type ScalerParams struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FeatureSpec describes how feature vectors were built for a model.
type FeatureSpec struct {
	Family   string `json:"family"`
	LookBack int    `json:"look_back"`
}

// Evaluation holds hold-out metrics computed at training time.
type Evaluation struct {
	R2           float64 `json:"r2"`
	RMSE         float64 `json:"rmse"`
	WithinTwoPct float64 `json:"within_two_pct"`
	TrainSize    int     `json:"train_size"`
	TestSize     int     `json:"test_size"`
}

// Artifact is the persisted unit of a trained model: predictor state plus the
// scaler and feature layout it was fit against. It is always saved and loaded whole.
type Artifact struct {
	Version           string          `json:"version"`
	Variant           string          `json:"variant"`
	Features          FeatureSpec     `json:"features"`
	Scaler            ScalerParams    `json:"scaler"`
	ScalerFingerprint string          `json:"scaler_fingerprint"`
	State             json.RawMessage `json:"state"`
	Symbols           []string        `json:"symbols,omitempty"`
	Evaluation        *Evaluation     `json:"evaluation,omitempty"`
	TrainedAt         time.Time       `json:"trained_at"`
}
