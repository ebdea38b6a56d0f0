package service

// Predictor maps one feature vector to the next normalized value. Implementations
// are immutable once fit and safe for concurrent use.
type Predictor interface {
	Name() string
	InputWidth() int
	Predict(x []float64) (float64, error)
}
