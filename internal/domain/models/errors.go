package models

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySeries      = errors.New("series is empty")
	ErrDegenerateRange  = errors.New("series has a degenerate range (max equals min)")
	ErrInsufficientData = errors.New("insufficient data")
	ErrUnorderedSeries  = errors.New("series dates are not strictly increasing")
	ErrInvalidHorizon   = errors.New("forecast horizon must be positive")

	ErrModelTraining    = errors.New("model is training, try again shortly")
	ErrModelUnavailable = errors.New("no model available")
	ErrArtifactNotFound = errors.New("model artifact not found")
	ErrNoTrainingData   = errors.New("no training data could be collected")
	ErrUnknownVariant   = errors.New("unknown predictor variant")
	ErrSymbolNotFound   = errors.New("no price data for symbol")
)

// ShapeMismatchError reports a feature vector whose width differs from what
// the receiver was built for.
type ShapeMismatchError struct {
	Want int
	Got  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("feature vector width mismatch: want %d, got %d", e.Want, e.Got)
}

// ArtifactMismatchError reports a predictor paired with a scaler or feature
// layout other than the one it was fit against.
type ArtifactMismatchError struct {
	Reason string
}

func (e *ArtifactMismatchError) Error() string {
	return "artifact mismatch: " + e.Reason
}

// IsShapeMismatch reports whether err wraps a *ShapeMismatchError.
func IsShapeMismatch(err error) bool {
	var sm *ShapeMismatchError
	return errors.As(err, &sm)
}

// IsArtifactMismatch reports whether err wraps an *ArtifactMismatchError.
func IsArtifactMismatch(err error) bool {
	var am *ArtifactMismatchError
	return errors.As(err, &am)
}

// IsTraining reports whether err means no model is ready yet.
func IsTraining(err error) bool {
	return errors.Is(err, ErrModelTraining)
}
