package forecast

import (
	"fmt"

	"sales-pipeline/internal/config"
	"sales-pipeline/internal/model"
)

// Fold is one time-ordered train/test split by index: train is
// [TrainStart, TrainEnd) and test is [TrainEnd, TestEnd).
type Fold struct {
	TrainStart int
	TrainEnd   int
	TestEnd    int
}

// CrossValidator produces the folds for a series of length n.
type CrossValidator interface {
	Folds(n int) ([]Fold, error)
}

// ExpandingWindow grows the training window by Step each fold, always
// starting at the first point.
type ExpandingWindow struct {
	InitialWindow int
	Step          int
	Horizon       int
}

func (w ExpandingWindow) Folds(n int) ([]Fold, error) {
	if err := checkWindow(w.InitialWindow, w.Step, w.Horizon); err != nil {
		return nil, err
	}
	var folds []Fold
	for end := w.InitialWindow; end+w.Horizon <= n; end += w.Step {
		folds = append(folds, Fold{TrainStart: 0, TrainEnd: end, TestEnd: end + w.Horizon})
	}
	if len(folds) == 0 {
		return nil, &model.InsufficientDataError{Have: n, Need: w.InitialWindow + w.Horizon}
	}
	return folds, nil
}

// SlidingWindow moves a fixed-length training window forward by Step.
type SlidingWindow struct {
	WindowLength int
	Step         int
	Horizon      int
}

func (w SlidingWindow) Folds(n int) ([]Fold, error) {
	if err := checkWindow(w.WindowLength, w.Step, w.Horizon); err != nil {
		return nil, err
	}
	var folds []Fold
	for start := 0; start+w.WindowLength+w.Horizon <= n; start += w.Step {
		end := start + w.WindowLength
		folds = append(folds, Fold{TrainStart: start, TrainEnd: end, TestEnd: end + w.Horizon})
	}
	if len(folds) == 0 {
		return nil, &model.InsufficientDataError{Have: n, Need: w.WindowLength + w.Horizon}
	}
	return folds, nil
}

func checkWindow(window, step, horizon int) error {
	switch {
	case window < 1:
		return &model.ConfigurationError{Key: "forecast.tuning.cv.window", Reason: fmt.Sprintf("must be >= 1, got %d", window)}
	case step < 1:
		return &model.ConfigurationError{Key: "forecast.tuning.cv.step", Reason: fmt.Sprintf("must be >= 1, got %d", step)}
	case horizon < 1:
		return &model.ConfigurationError{Key: "forecast.tuning.cv.horizon", Reason: fmt.Sprintf("must be >= 1, got %d", horizon)}
	}
	return nil
}

// NewCrossValidator builds the configured window scheme.
func NewCrossValidator(cfg config.CVConfig) (CrossValidator, error) {
	switch cfg.Kind {
	case "", "expanding":
		return ExpandingWindow{InitialWindow: cfg.Window, Step: cfg.Step, Horizon: cfg.Horizon}, nil
	case "sliding":
		return SlidingWindow{WindowLength: cfg.Window, Step: cfg.Step, Horizon: cfg.Horizon}, nil
	default:
		return nil, &model.ConfigurationError{Key: "forecast.tuning.cv.kind", Reason: fmt.Sprintf("unknown window %q", cfg.Kind)}
	}
}
