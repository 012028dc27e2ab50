package forecast

import (
	"context"
	"fmt"
	"math"
	"time"
)

// DefaultWindows are the fit windows tried by SelectWindow
var DefaultWindows = []int{24, 48, 96, 168, 336, 0}

// Score is the holdout error of one candidate window
type Score struct {
	Window int     `json:"window"`
	RMSE   float64 `json:"rmse"`
}

// SelectWindow picks the fit window with the lowest RMSE when the last
// holdout points are predicted from the points before them. Windows that
// do not fit the training part are skipped.
func SelectWindow(ctx context.Context, series Series, holdout int, windows []int, z float64) (int, []Score, error) {
	if holdout <= 0 {
		return 0, nil, fmt.Errorf("holdout must be positive, got %d", holdout)
	}
	if len(series) < holdout+2 {
		return 0, nil, fmt.Errorf("%w: have %d points, need %d", ErrNotEnoughData, len(series), holdout+2)
	}
	if len(windows) == 0 {
		windows = DefaultWindows
	}

	train := series[:len(series)-holdout]
	test := series[len(series)-holdout:]

	best := -1
	bestRMSE := math.Inf(1)
	scores := make([]Score, 0, len(windows))

	for _, w := range windows {
		if w != 0 && (w < 2 || w > len(train)) {
			continue
		}
		model := NewLinearModel(w, z)
		result, err := model.Forecast(ctx, Input{Target: train}, holdout, time.Minute)
		if err != nil {
			return 0, nil, err
		}

		var sum float64
		for i, p := range result.Points {
			d := p.Yhat - test[i].Value
			sum += d * d
		}
		rmse := math.Sqrt(sum / float64(holdout))
		scores = append(scores, Score{Window: w, RMSE: rmse})

		if rmse < bestRMSE {
			best, bestRMSE = w, rmse
		}
	}

	if best < 0 {
		return 0, scores, fmt.Errorf("%w: no candidate window fits %d training points", ErrNotEnoughData, len(train))
	}
	return best, scores, nil
}
