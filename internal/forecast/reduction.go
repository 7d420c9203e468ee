package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"sales-pipeline/internal/model"
)

// Reduction turns forecasting into regression: each value is predicted from
// the previous window values by a linear model fit with gradient descent.
// With difference=1 it models day-over-day changes and integrates them back.
//
// Params: window (lag count, default 7), lr (learning rate, default 0.1),
// epochs (default 500), difference (0 or 1, default 1).
type Reduction struct {
	lifecycle
	params Params

	window     int
	lr         float64
	epochs     int
	difference bool

	weights []float64
	bias    float64
	scale   float64
	lags    []float64 // last window scaled targets, oldest first
	level   float64   // last observed value, the base for integrating differences
}

func newReduction(p Params) (*Reduction, error) {
	m := &Reduction{
		params:     p,
		window:     int(p.get("window", 7)),
		lr:         p.get("lr", 0.1),
		epochs:     int(p.get("epochs", 500)),
		difference: p.get("difference", 1) != 0,
	}
	switch {
	case m.window < 1 || float64(m.window) != p.get("window", 7):
		return nil, paramError("window", "must be a positive integer")
	case !(m.lr > 0) || math.IsInf(m.lr, 0):
		return nil, paramError("lr", "must be > 0")
	case m.epochs < 1:
		return nil, paramError("epochs", "must be >= 1")
	}
	return m, nil
}

func paramError(name, reason string) error {
	return &model.ConfigurationError{Key: "forecast.model.params." + name, Reason: reason}
}

func (m *Reduction) Kind() string { return KindReduction }

func (m *Reduction) Params() Params { return m.params.Clone() }

// Fit trains the model on s. It fails if s has no more than window points
// (plus one when differencing) or if training diverges.
func (m *Reduction) Fit(ctx context.Context, s Series) error {
	need := m.window + 1
	if m.difference {
		need++
	}
	if err := m.beginFit(s, need); err != nil {
		return err
	}

	y := s.Values()
	target := y
	if m.difference {
		target = make([]float64, len(y)-1)
		for i := 1; i < len(y); i++ {
			target[i-1] = y[i] - y[i-1]
		}
	}

	scale := math.Max(floats.Max(target), -floats.Min(target))
	if scale == 0 {
		scale = 1
	}
	z := make([]float64, len(target))
	copy(z, target)
	floats.Scale(1/scale, z)

	n := len(z) - m.window
	w := make([]float64, m.window)
	grad := make([]float64, m.window)
	var b float64
	for epoch := 0; epoch < m.epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range grad {
			grad[i] = 0
		}
		var gb float64
		for i := 0; i < n; i++ {
			x := z[i : i+m.window]
			residual := floats.Dot(w, x) + b - z[i+m.window]
			floats.AddScaled(grad, residual, x)
			gb += residual
		}
		floats.AddScaled(w, -m.lr/float64(n), grad)
		b -= m.lr * gb / float64(n)
		if !finite(b) || !finite(w...) {
			return fmt.Errorf("gradient descent diverged at epoch %d with lr %g", epoch, m.lr)
		}
	}

	m.weights = w
	m.bias = b
	m.scale = scale
	m.lags = append([]float64(nil), z[len(z)-m.window:]...)
	m.level = y[len(y)-1]
	m.endFit(s)
	return nil
}

// Predict forecasts recursively, feeding each prediction back as a lag.
func (m *Reduction) Predict(ctx context.Context, h Horizon) (Series, error) {
	n, pick, err := m.steps(h)
	if err != nil {
		return Series{}, err
	}
	if err := ctx.Err(); err != nil {
		return Series{}, err
	}

	lags := append(make([]float64, 0, m.window+n), m.lags...)
	level := m.level
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		next := floats.Dot(m.weights, lags[len(lags)-m.window:]) + m.bias
		lags = append(lags, next)
		if m.difference {
			level += next * m.scale
			out[k] = level
		} else {
			out[k] = next * m.scale
		}
	}
	return m.series(out, pick), nil
}

type reductionState struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Scale   float64   `json:"scale"`
	Lags    []float64 `json:"lags"`
	Level   float64   `json:"level"`
	Last    time.Time `json:"last"`
}

func (m *Reduction) marshalState() ([]byte, error) {
	return json.Marshal(reductionState{
		Weights: m.weights,
		Bias:    m.bias,
		Scale:   m.scale,
		Lags:    m.lags,
		Level:   m.level,
		Last:    m.last,
	})
}

func (m *Reduction) unmarshalState(data []byte) error {
	var st reductionState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if len(st.Weights) != m.window || len(st.Lags) != m.window {
		return errors.New("reduction state does not match its window")
	}
	m.weights, m.bias, m.scale, m.lags, m.level = st.Weights, st.Bias, st.Scale, st.Lags, st.Level
	m.last = st.Last
	m.state = StateTrained
	return nil
}
