package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"sales-pipeline/internal/model"
)

// State is the lifecycle state of a forecaster handle.
type State int

const (
	StateUntrained State = iota
	StateTrained
	StatePersisted // saved to a registry; still predicts, never refits
	StateReadOnly
)

func (s State) String() string {
	switch s {
	case StateUntrained:
		return "untrained"
	case StateTrained:
		return "trained"
	case StatePersisted:
		return "persisted"
	case StateReadOnly:
		return "trained_read_only"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Params maps a hyperparameter name to its value.
type Params map[string]float64

// Clone returns a copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a copy of p overridden by o.
func (p Params) Merge(o Params) Params {
	out := p.Clone()
	for k, v := range o {
		out[k] = v
	}
	return out
}

// String renders the params sorted by name, e.g. "lr=0.1 window=7".
func (p Params) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, p[k])
	}
	return strings.Join(parts, " ")
}

func (p Params) get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Horizon selects the future days to predict: either the next Steps days
// after the last training point, or the explicit days in At.
type Horizon struct {
	Steps int         `json:"steps,omitempty"`
	At    []time.Time `json:"at,omitempty"`
}

// HorizonFromSeries targets exactly the timestamps of s, typically a test partition.
func HorizonFromSeries(s Series) Horizon {
	return Horizon{At: s.Times()}
}

// Handle is any forecaster object. Its capabilities are the Fitter and
// Predictor interfaces it implements.
type Handle interface {
	Kind() string
	Params() Params
	State() State
}

// Fitter can be trained once on a series.
type Fitter interface {
	Handle
	Fit(ctx context.Context, s Series) error
}

// Predictor can forecast a horizon after training.
type Predictor interface {
	Handle
	Predict(ctx context.Context, h Horizon) (Series, error)
}

// Forecaster is a freshly built model with both capabilities.
type Forecaster interface {
	Fitter
	Predictor
}

// Model kinds.
const (
	KindReduction = "reduction"
	KindHolt      = "holt"
)

// Factory builds an untrained forecaster for a set of hyperparameters.
type Factory func(params Params) (Forecaster, error)

var builders = map[string]func(Params) (forecaster, error){
	KindReduction: builder(newReduction),
	KindHolt:      builder(newHolt),
}

func builder[T forecaster](newModel func(Params) (T, error)) func(Params) (forecaster, error) {
	return func(p Params) (forecaster, error) {
		m, err := newModel(p)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

// Kinds lists the known model kinds.
func Kinds() []string {
	kinds := make([]string, 0, len(builders))
	for k := range builders {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// New builds an untrained forecaster of the given kind.
func New(kind string, params Params) (Forecaster, error) {
	return build(kind, params)
}

// NewFactory returns a factory building kind with base params overridden
// by the candidate params it is called with.
func NewFactory(kind string, base Params) (Factory, error) {
	if _, ok := builders[kind]; !ok {
		return nil, unknownKind(kind)
	}
	base = base.Clone()
	return func(params Params) (Forecaster, error) {
		return New(kind, base.Merge(params))
	}, nil
}

func build(kind string, params Params) (forecaster, error) {
	b, ok := builders[kind]
	if !ok {
		return nil, unknownKind(kind)
	}
	return b(params.Clone())
}

func unknownKind(kind string) error {
	return &model.ConfigurationError{Key: "forecast.model.kind", Reason: fmt.Sprintf("unknown model %q (known: %s)", kind, strings.Join(Kinds(), ", "))}
}

// forecaster is implemented by every model: both capabilities plus state
// (de)serialization for the registry.
type forecaster interface {
	Forecaster
	marshalState() ([]byte, error)
	unmarshalState(data []byte) error
	markPersisted()
	markReadOnly()
}

// lifecycle is the state shared by all models.
type lifecycle struct {
	state State
	last  time.Time
}

func (l *lifecycle) State() State { return l.state }

func (l *lifecycle) markReadOnly() { l.state = StateReadOnly }

// markPersisted records a successful save. Read-only handles stay read-only.
func (l *lifecycle) markPersisted() {
	if l.state == StateTrained {
		l.state = StatePersisted
	}
}

func (l *lifecycle) beginFit(s Series, need int) error {
	if l.state != StateUntrained {
		return &model.CapabilityError{Operation: "fit", State: l.state.String()}
	}
	if s.Len() < need {
		return &model.InsufficientDataError{Have: s.Len(), Need: need}
	}
	return nil
}

func (l *lifecycle) endFit(s Series) {
	l.last = s.Last().Time.UTC().Truncate(Day)
	l.state = StateTrained
}

// steps resolves h against the last training day. It returns how many days
// must be generated and which of them (0-based) the caller asked for.
func (l *lifecycle) steps(h Horizon) (int, []int, error) {
	if l.state == StateUntrained {
		return 0, nil, &model.CapabilityError{Operation: "predict", State: l.state.String()}
	}
	if len(h.At) == 0 {
		if h.Steps < 1 {
			return 0, nil, &model.ConfigurationError{Key: "horizon", Reason: fmt.Sprintf("steps must be >= 1, got %d", h.Steps)}
		}
		pick := make([]int, h.Steps)
		for i := range pick {
			pick[i] = i
		}
		return h.Steps, pick, nil
	}

	pick := make([]int, len(h.At))
	n := 0
	for i, t := range h.At {
		d := t.UTC().Truncate(Day).Sub(l.last)
		if d <= 0 || d%Day != 0 {
			return 0, nil, &model.ConfigurationError{Key: "horizon", Reason: fmt.Sprintf("%s is not a day after %s", t.Format(time.RFC3339), l.last.Format(time.DateOnly))}
		}
		pick[i] = int(d/Day) - 1
		n = max(n, pick[i]+1)
	}
	return n, pick, nil
}

// series lays generated values onto the days they forecast.
func (l *lifecycle) series(values []float64, pick []int) Series {
	points := make([]Point, len(pick))
	for i, k := range pick {
		points[i] = Point{Time: l.last.Add(time.Duration(k+1) * Day), Value: values[k]}
	}
	return Series{Points: points}
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
