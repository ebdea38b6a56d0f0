package predictor

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/service"
	"PriceCast/internal/services/features"
)

// Split shuffles pair indices with seed and holds out testFraction of them.
// The training part always keeps at least one pair.
func Split(ts features.TrainingSet, testFraction float64, seed int64) (train, test features.TrainingSet) {
	n := ts.Len()
	nTest := int(math.Ceil(float64(n) * testFraction))
	if nTest >= n {
		nTest = n - 1
	}
	if nTest < 0 {
		nTest = 0
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return ts.Subset(perm[nTest:]), ts.Subset(perm[:nTest])
}

// Evaluate scores p on a held-out set. R² is computed in the normalized
// domain; RMSE and the within-2% hit rate in price units. R² is left at 0
// when the held-out set is too small to define it.
func Evaluate(p service.Predictor, test features.TrainingSet, scaler features.Scaler) (models.Evaluation, error) {
	ev := models.Evaluation{TestSize: test.Len()}
	if test.Len() == 0 {
		return ev, nil
	}
	preds := make([]float64, test.Len())
	for i, x := range test.Inputs {
		y, err := p.Predict(x)
		if err != nil {
			return ev, err
		}
		preds[i] = y
	}
	if len(preds) >= 2 {
		ev.R2 = finiteOrZero(stat.RSquaredFrom(preds, test.Targets, nil))
	}

	var sq float64
	hits := 0
	for i, z := range preds {
		pred := scaler.InverseTransform(z)
		actual := scaler.InverseTransform(test.Targets[i])
		d := pred - actual
		sq += d * d
		if actual != 0 && math.Abs(d)/math.Abs(actual) <= 0.02 {
			hits++
		}
	}
	ev.RMSE = math.Sqrt(sq / float64(len(preds)))
	ev.WithinTwoPct = float64(hits) / float64(len(preds)) * 100
	return ev, nil
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
