// Package arima implements an AutoRegressive Integrated Moving Average model
// with conditional sum of squares estimation, multi-step forecasting and
// 95% prediction intervals. Every quantity needed to forecast is held in
// exported fields, so a fitted model serializes to JSON and round-trips into
// an identical forecaster.
package arima

import (
	"errors"
	"fmt"
	"math"
)

// Order is the (p, d, q) triple of a model: autoregressive order,
// differencing order and moving-average order.
type Order struct {
	P int `json:"p"`
	D int `json:"d"`
	Q int `json:"q"`
}

func (o Order) String() string {
	return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q)
}

// Valid reports whether all components are non-negative.
func (o Order) Valid() bool {
	return o.P >= 0 && o.D >= 0 && o.Q >= 0
}

// ErrNotFitted is returned when a forecast is requested from an unfitted model.
var ErrNotFitted = errors.New("arima: model is not fitted")

// Model is an ARIMA(p,d,q) model. After Fit it carries the estimated
// coefficients plus the tail state of the training series required to
// continue the recursion into the future.
type Model struct {
	ModelOrder Order     `json:"order"`
	ARCoeffs   []float64 `json:"ar_coeffs"`
	MACoeffs   []float64 `json:"ma_coeffs"`
	Intercept  float64   `json:"intercept"`
	Variance   float64   `json:"variance"`
	AIC        float64   `json:"aic"`
	BIC        float64   `json:"bic"`
	LogLik     float64   `json:"log_lik"`
	NObs       int       `json:"n_obs"`

	// Tail state of the training data, oldest first. DiffTail holds the last
	// p values of the differenced series, ResidTail the last q residuals and
	// LevelTail the last d values of the original series (for integration).
	DiffTail  []float64 `json:"diff_tail"`
	ResidTail []float64 `json:"resid_tail"`
	LevelTail []float64 `json:"level_tail"`

	Fitted bool `json:"fitted"`

	// Fit-time scratch state, not persisted.
	residualSSE   float64
	lastResiduals []float64
}

// New creates an unfitted model with the given order.
func New(p, d, q int) *Model {
	return &Model{
		ModelOrder: Order{P: p, D: d, Q: q},
		ARCoeffs:   make([]float64, p),
		MACoeffs:   make([]float64, q),
	}
}

// Fit estimates the model on the given values. Returns an error when the
// series is too short for the order or when estimation is numerically
// unstable (non-finite variance or coefficients).
func (m *Model) Fit(values []float64) error {
	p, d, q := m.ModelOrder.P, m.ModelOrder.D, m.ModelOrder.Q
	if !m.ModelOrder.Valid() {
		return fmt.Errorf("arima: invalid order %s", m.ModelOrder)
	}
	if len(values) < p+d+q+10 {
		return fmt.Errorf("arima: %d observations insufficient for order %s", len(values), m.ModelOrder)
	}

	diff := make([]float64, len(values))
	copy(diff, values)
	for i := 0; i < d; i++ {
		diff = difference(diff)
		if len(diff) == 0 {
			return errors.New("arima: differencing exhausted the series")
		}
	}

	if err := m.estimateCSS(diff); err != nil {
		return err
	}
	if err := m.checkStability(); err != nil {
		return err
	}
	m.computeCriteria()
	if math.IsNaN(m.AIC) || math.IsInf(m.AIC, -1) {
		return errors.New("arima: information criteria are not finite")
	}

	m.captureTail(values, diff)
	m.Fitted = true
	return nil
}

func difference(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = values[i] - values[i-1]
	}
	return out
}

// estimateCSS estimates intercept and AR/MA coefficients by conditional sum
// of squares, AR terms initialized from Yule-Walker, refined by gradient
// descent on the squared one-step residuals.
func (m *Model) estimateCSS(y []float64) error {
	n := len(y)
	p, q := m.ModelOrder.P, m.ModelOrder.Q

	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(n)
	m.Intercept = mean

	if p == 0 && q == 0 {
		// White noise around the mean.
		sse := 0.0
		for _, v := range y {
			r := v - mean
			sse += r * r
		}
		m.Variance = sse / float64(n-1)
		m.NObs = n
		m.residualSSE = sse
		m.lastResiduals = make([]float64, n)
		for i, v := range y {
			m.lastResiduals[i] = v - mean
		}
		return nil
	}

	if p > 0 {
		if phi := yuleWalker(acf(y, p), p); phi != nil {
			copy(m.ARCoeffs, phi)
		}
	}
	for i := range m.MACoeffs {
		m.MACoeffs[i] = 0.1
	}

	const (
		maxIter      = 100
		tolerance    = 1e-6
		learningRate = 0.01
	)

	start := p
	if q > start {
		start = q
	}

	residuals := make([]float64, n)
	prevSSE := math.Inf(1)

	for iter := 0; iter < maxIter; iter++ {
		sse := 0.0
		arGrad := make([]float64, p)
		maGrad := make([]float64, q)

		for t := start; t < n; t++ {
			pred := m.Intercept
			for i := 0; i < p; i++ {
				pred += m.ARCoeffs[i] * (y[t-i-1] - m.Intercept)
			}
			for i := 0; i < q; i++ {
				pred += m.MACoeffs[i] * residuals[t-i-1]
			}
			residuals[t] = y[t] - pred
			sse += residuals[t] * residuals[t]

			for i := 0; i < p; i++ {
				arGrad[i] -= 2 * residuals[t] * (y[t-i-1] - m.Intercept)
			}
			for i := 0; i < q; i++ {
				maGrad[i] -= 2 * residuals[t] * residuals[t-i-1]
			}
		}

		for i := 0; i < p; i++ {
			m.ARCoeffs[i] -= learningRate * arGrad[i] / float64(n)
			m.ARCoeffs[i] = clampCoeff(m.ARCoeffs[i])
		}
		for i := 0; i < q; i++ {
			m.MACoeffs[i] -= learningRate * maGrad[i] / float64(n)
			m.MACoeffs[i] = clampCoeff(m.MACoeffs[i])
		}

		if math.IsNaN(sse) || math.IsInf(sse, 0) {
			return errors.New("arima: conditional sum of squares diverged")
		}
		if math.Abs(prevSSE-sse) < tolerance {
			break
		}
		prevSSE = sse
	}

	// Final residual pass with the converged coefficients.
	for t := 0; t < n; t++ {
		if t < start {
			residuals[t] = y[t] - m.Intercept
			continue
		}
		pred := m.Intercept
		for i := 0; i < p; i++ {
			pred += m.ARCoeffs[i] * (y[t-i-1] - m.Intercept)
		}
		for i := 0; i < q; i++ {
			pred += m.MACoeffs[i] * residuals[t-i-1]
		}
		residuals[t] = y[t] - pred
	}

	sse := 0.0
	count := 0
	for t := start; t < n; t++ {
		sse += residuals[t] * residuals[t]
		count++
	}
	if count > p+q+1 {
		m.Variance = sse / float64(count-p-q-1)
	} else if count > 0 {
		m.Variance = sse / float64(count)
	} else {
		return errors.New("arima: no usable residuals")
	}

	m.NObs = n
	m.residualSSE = sse
	m.lastResiduals = residuals
	return nil
}

func (m *Model) checkStability() error {
	for _, c := range append(append([]float64{}, m.ARCoeffs...), m.MACoeffs...) {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return errors.New("arima: non-finite coefficient estimate")
		}
	}
	if math.IsNaN(m.Variance) || math.IsInf(m.Variance, 0) || m.Variance < 0 {
		return errors.New("arima: residual variance is not usable")
	}
	return nil
}

func (m *Model) computeCriteria() {
	n := m.NObs
	k := m.ModelOrder.P + m.ModelOrder.Q + 1

	if m.Variance > 0 {
		m.LogLik = -float64(n)/2*math.Log(2*math.Pi) -
			float64(n)/2*math.Log(m.Variance) -
			m.residualSSE/(2*m.Variance)
	} else {
		m.LogLik = math.Inf(-1)
	}

	m.AIC = -2*m.LogLik + 2*float64(k)
	m.BIC = -2*m.LogLik + float64(k)*math.Log(float64(n))
}

// captureTail stores the minimal history needed to forecast: the last p
// differenced values, the last q residuals and the last d original levels.
func (m *Model) captureTail(values, diff []float64) {
	p, d, q := m.ModelOrder.P, m.ModelOrder.D, m.ModelOrder.Q

	m.DiffTail = tail(diff, p)
	m.ResidTail = tail(m.lastResiduals, q)
	m.LevelTail = tail(values, d)
	m.lastResiduals = nil
}

func tail(values []float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if n > len(values) {
		n = len(values)
	}
	out := make([]float64, n)
	copy(out, values[len(values)-n:])
	return out
}

// Predict produces point forecasts for the next steps values on the original
// scale of the series.
func (m *Model) Predict(steps int) ([]float64, error) {
	if !m.Fitted {
		return nil, ErrNotFitted
	}
	if steps < 1 {
		return nil, errors.New("arima: steps must be at least 1")
	}

	p, q := m.ModelOrder.P, m.ModelOrder.Q

	hist := len(m.DiffTail)
	ext := make([]float64, hist+steps)
	copy(ext, m.DiffTail)

	residHist := len(m.ResidTail)
	resid := make([]float64, residHist+steps)
	copy(resid, m.ResidTail)

	for h := 0; h < steps; h++ {
		pred := m.Intercept
		for i := 0; i < p; i++ {
			idx := hist + h - i - 1
			if idx < 0 {
				break
			}
			pred += m.ARCoeffs[i] * (ext[idx] - m.Intercept)
		}
		for i := 0; i < q; i++ {
			idx := residHist + h - i - 1
			// Future shocks have expectation zero.
			if idx < 0 || idx >= residHist {
				continue
			}
			pred += m.MACoeffs[i] * resid[idx]
		}
		ext[hist+h] = pred
	}

	forecasts := make([]float64, steps)
	copy(forecasts, ext[hist:])

	if m.ModelOrder.D > 0 {
		forecasts = m.integrate(forecasts)
	}
	return forecasts, nil
}

// integrate undoes d rounds of differencing using the stored level tail.
func (m *Model) integrate(forecasts []float64) []float64 {
	d := m.ModelOrder.D
	result := make([]float64, len(forecasts))
	copy(result, forecasts)

	for i := 0; i < d; i++ {
		last := m.LevelTail[len(m.LevelTail)-1-i]
		for j := range result {
			if j == 0 {
				result[j] += last
			} else {
				result[j] += result[j-1]
			}
		}
	}
	return result
}

// Interval holds a multi-step forecast with symmetric 95% bounds.
type Interval struct {
	Point []float64
	Lower []float64
	Upper []float64
}

// z-score for a symmetric 95% interval.
const z95 = 1.96

// PredictInterval produces point forecasts with 95% prediction intervals
// derived from the psi-weight representation of the fitted process. Fails
// when the residual variance cannot support an interval estimate.
func (m *Model) PredictInterval(steps int) (*Interval, error) {
	points, err := m.Predict(steps)
	if err != nil {
		return nil, err
	}
	if m.Variance <= 0 || math.IsNaN(m.Variance) || math.IsInf(m.Variance, 0) {
		return nil, errors.New("arima: variance unavailable for interval estimation")
	}

	psi := m.psiWeights(steps)

	iv := &Interval{
		Point: points,
		Lower: make([]float64, steps),
		Upper: make([]float64, steps),
	}
	sumSq := 0.0
	for h := 0; h < steps; h++ {
		sumSq += psi[h] * psi[h]
		se := math.Sqrt(m.Variance * sumSq)
		if math.IsNaN(se) || math.IsInf(se, 0) {
			return nil, errors.New("arima: non-finite interval width")
		}
		iv.Lower[h] = points[h] - z95*se
		iv.Upper[h] = points[h] + z95*se
	}
	return iv, nil
}

// psiWeights computes the MA(inf) weights of the fitted ARMA process and
// cumulates them once per differencing round so the variance recursion
// applies on the original scale.
func (m *Model) psiWeights(steps int) []float64 {
	p, q := m.ModelOrder.P, m.ModelOrder.Q

	psi := make([]float64, steps)
	psi[0] = 1
	for j := 1; j < steps; j++ {
		v := 0.0
		if j <= q {
			v += m.MACoeffs[j-1]
		}
		for i := 1; i <= p && i <= j; i++ {
			v += m.ARCoeffs[i-1] * psi[j-i]
		}
		psi[j] = v
	}

	for i := 0; i < m.ModelOrder.D; i++ {
		for j := 1; j < steps; j++ {
			psi[j] += psi[j-1]
		}
	}
	return psi
}

func clampCoeff(c float64) float64 {
	return math.Max(-0.99, math.Min(0.99, c))
}
