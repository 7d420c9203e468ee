package forecast

import (
	"context"
	"encoding/json"
	"time"
)

// Holt is linear exponential smoothing: a level and a trend updated with
// smoothing factors alpha and beta (both in (0, 1], defaults 0.5 and 0.1).
type Holt struct {
	lifecycle
	params Params

	alpha float64
	beta  float64
	level float64
	trend float64
}

func newHolt(p Params) (*Holt, error) {
	m := &Holt{
		params: p,
		alpha:  p.get("alpha", 0.5),
		beta:   p.get("beta", 0.1),
	}
	if !(m.alpha > 0 && m.alpha <= 1) {
		return nil, paramError("alpha", "must be in (0, 1]")
	}
	if !(m.beta > 0 && m.beta <= 1) {
		return nil, paramError("beta", "must be in (0, 1]")
	}
	return m, nil
}

func (m *Holt) Kind() string { return KindHolt }

func (m *Holt) Params() Params { return m.params.Clone() }

// Fit needs at least two points to seed the trend.
func (m *Holt) Fit(ctx context.Context, s Series) error {
	if err := m.beginFit(s, 2); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	y := s.Values()
	level, trend := y[0], y[1]-y[0]
	for _, v := range y[1:] {
		prev := level
		level = m.alpha*v + (1-m.alpha)*(level+trend)
		trend = m.beta*(level-prev) + (1-m.beta)*trend
	}

	m.level, m.trend = level, trend
	m.endFit(s)
	return nil
}

func (m *Holt) Predict(ctx context.Context, h Horizon) (Series, error) {
	n, pick, err := m.steps(h)
	if err != nil {
		return Series{}, err
	}
	if err := ctx.Err(); err != nil {
		return Series{}, err
	}
	out := make([]float64, n)
	for k := range out {
		out[k] = m.level + float64(k+1)*m.trend
	}
	return m.series(out, pick), nil
}

type holtState struct {
	Level float64   `json:"level"`
	Trend float64   `json:"trend"`
	Last  time.Time `json:"last"`
}

func (m *Holt) marshalState() ([]byte, error) {
	return json.Marshal(holtState{Level: m.level, Trend: m.trend, Last: m.last})
}

func (m *Holt) unmarshalState(data []byte) error {
	var st holtState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	m.level, m.trend, m.last = st.Level, st.Trend, st.Last
	m.state = StateTrained
	return nil
}
