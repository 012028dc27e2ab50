package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/markcheno/go-talib"
)

// DefaultConfidence is the z-score of a 95% band
const DefaultConfidence = 1.96

// LinearModel fits a least-squares line over the trailing window and
// extrapolates it. The band is yhat ± z·σ of the fit residuals, widening
// with the square root of the distance from the last observation.
type LinearModel struct {
	// Window is the number of trailing points fitted; 0 uses all
	Window int
	// Z scales the band; 0 means DefaultConfidence
	Z float64
}

// NewLinearModel creates a linear forecaster
func NewLinearModel(window int, z float64) *LinearModel {
	return &LinearModel{Window: window, Z: z}
}

// Name identifies the model in stored runs
func (m *LinearModel) Name() string {
	return fmt.Sprintf("linear(window=%d)", m.Window)
}

type lineFit struct {
	slope float64
	end   float64 // fitted value at the last observation
	sigma float64
	n     int
}

func fitLine(values []float64) (lineFit, error) {
	n := len(values)
	if n < 2 {
		return lineFit{}, fmt.Errorf("%w: have %d points, need 2", ErrNotEnoughData, n)
	}

	slope := talib.LinearRegSlope(values, n)[n-1]
	end := talib.LinearReg(values, n)[n-1]

	residuals := make([]float64, n)
	for i, v := range values {
		fitted := end - slope*float64(n-1-i)
		residuals[i] = v - fitted
	}
	sigma := talib.StdDev(residuals, n, 1.0)[n-1]
	if math.IsNaN(sigma) || sigma < 0 {
		sigma = 0
	}

	return lineFit{slope: slope, end: end, sigma: sigma, n: n}, nil
}

// Forecast implements Forecaster
func (m *LinearModel) Forecast(ctx context.Context, in Input, horizon int, step time.Duration) (*Result, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	if step <= 0 {
		return nil, fmt.Errorf("step must be positive, got %s", step)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target := in.Target.Tail(m.Window)
	fit, err := fitLine(target.Values())
	if err != nil {
		return nil, err
	}

	z := m.Z
	if z <= 0 {
		z = DefaultConfidence
	}

	last, _ := target.Last()
	points := make([]Estimate, horizon)
	for k := 1; k <= horizon; k++ {
		yhat := fit.end + fit.slope*float64(k)
		width := z * fit.sigma * math.Sqrt(1+float64(k)/float64(fit.n))
		points[k-1] = Estimate{
			Time:  last.Time.Add(time.Duration(k) * step),
			Yhat:  yhat,
			Lower: yhat - width,
			Upper: yhat + width,
		}
	}

	result := &Result{
		Model:  m.Name(),
		Window: fit.n,
		Points: points,
		Slope:  fit.slope,
		Sigma:  fit.sigma,
	}

	if len(in.Regressors) > 0 {
		result.Regressors = make(map[string][]float64, len(in.Regressors))
		names := make([]string, 0, len(in.Regressors))
		for name := range in.Regressors {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			rf, err := fitLine(in.Regressors[name].Tail(m.Window).Values())
			if err != nil {
				return nil, fmt.Errorf("regressor %s: %w", name, err)
			}
			projected := make([]float64, horizon)
			for k := 1; k <= horizon; k++ {
				projected[k-1] = rf.end + rf.slope*float64(k)
			}
			result.Regressors[name] = projected
		}
	}

	return result, nil
}
