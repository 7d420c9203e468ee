package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sales-pipeline/internal/model"
	"sales-pipeline/internal/validation"
)

// Validator is the advisory schema check run after the last step.
type Validator interface {
	Validate(b *model.Batch) (*model.Batch, *model.SchemaValidationError)
}

// PipelineOutcome is the validated batch plus the advisory validation error.
// A non-nil Validation never means the batch was dropped.
type PipelineOutcome struct {
	Batch      *model.Batch
	Validation *model.SchemaValidationError
}

// TransformPipeline runs its steps strictly in order, each on the exact
// output of its predecessor, then validates the result.
type TransformPipeline struct {
	steps     []Step
	validator Validator
	logger    *slog.Logger
}

// NewTransformPipeline creates a pipeline. validator may be nil to skip the
// schema pass.
func NewTransformPipeline(steps []Step, validator Validator, logger *slog.Logger) *TransformPipeline {
	s := make([]Step, len(steps))
	copy(s, steps)
	return &TransformPipeline{
		steps:     s,
		validator: validator,
		logger:    logger.With(slog.String("component", "transform_pipeline")),
	}
}

// NewSalesPipeline builds the pipeline for the consolidated sales schema.
func NewSalesPipeline(steps []Step, sampleSize int, logger *slog.Logger) (*TransformPipeline, error) {
	v, err := validation.NewOutputValidator(validation.SalesRow{}, sampleSize, logger)
	if err != nil {
		return nil, err
	}
	return NewTransformPipeline(steps, v, logger), nil
}

// Steps returns the step names in execution order.
func (p *TransformPipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Transform runs every step on a private copy of in. A step error aborts the
// run; a schema violation is only reported in the outcome.
func (p *TransformPipeline) Transform(ctx context.Context, in *model.Batch) (PipelineOutcome, error) {
	b := in.Clone()
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return PipelineOutcome{}, err
		}
		start := time.Now()
		before := b.Len()

		out, err := step.Transform(b)
		if err != nil {
			return PipelineOutcome{}, fmt.Errorf("step %s: %w", step.Name(), err)
		}
		b = out

		p.logger.Debug("step completed",
			slog.String("step", step.Name()),
			slog.String("source", b.Source),
			slog.Int("rows_in", before),
			slog.Int("rows_out", b.Len()),
			slog.Duration("duration", time.Since(start)))
	}

	if p.validator == nil {
		return PipelineOutcome{Batch: b}, nil
	}
	validated, verr := p.validator.Validate(b)
	if verr != nil {
		p.logger.Warn("an error occurred during output validation",
			slog.String("source", b.Source),
			slog.String("error", verr.Error()))
	}
	return PipelineOutcome{Batch: validated, Validation: verr}, nil
}
