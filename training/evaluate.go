package training

import (
	"errors"
	"math"

	"precipitation-forecast-service/arima"
)

// Evaluation holds holdout-forecast accuracy of a fitted model. The numbers
// are diagnostic only; selection never gates on them.
type Evaluation struct {
	MAE     float64
	RMSE    float64
	Holdout int
}

// Evaluate forecasts over the holdout values and measures mean absolute
// error and root mean squared error against them.
func Evaluate(m *arima.Model, holdout []float64) (*Evaluation, error) {
	if len(holdout) == 0 {
		return nil, errors.New("training: empty holdout")
	}

	forecast, err := m.Predict(len(holdout))
	if err != nil {
		return nil, err
	}

	var absSum, sqSum float64
	for i, actual := range holdout {
		diff := forecast[i] - actual
		absSum += math.Abs(diff)
		sqSum += diff * diff
	}

	n := float64(len(holdout))
	return &Evaluation{
		MAE:     absSum / n,
		RMSE:    math.Sqrt(sqSum / n),
		Holdout: len(holdout),
	}, nil
}
