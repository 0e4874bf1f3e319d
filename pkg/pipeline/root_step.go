package pipeline

import (
	"context"

	"github.com/pkg/errors"

	"github.com/askiada/go-filter-sequence/pkg/pipeline/model"
)

// AddRootStep adds a step producing the entries of the pipeline. The output channel is closed
// once stepFn returns.
func AddRootStep[O any](p *Pipeline, name string, stepFn func(ctx context.Context, rootChan chan<- O) error, opts ...StepOption[O]) (*model.Step[O], error) {
	if p == nil {
		return nil, ErrPipelineMustBeSet
	}

	step := newStep(model.RootStepType, name, opts...)
	for _, opt := range p.opts {
		err := opt.PrepareStep(model.StartStep.Details, step.Details)
		if err != nil {
			return nil, errors.Wrap(err, "unable to run prepare step option")
		}
	}

	p.runAndReport(name, func(ctx context.Context) error {
		defer close(step.Output)

		return stepFn(ctx, step.Output)
	})

	return step, nil
}
