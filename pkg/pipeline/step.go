package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-filter-sequence/pkg/pipeline/model"
)

// StepOption configures a step.
type StepOption[O any] func(s *model.Step[O])

// StepBufferSize sets the capacity of the step output channel.
func StepBufferSize[O any](n int) StepOption[O] {
	return func(s *model.Step[O]) {
		s.Details.BufferSize = n
	}
}

type outputHook func(iterationDuration, computationDuration time.Duration) error

// CopyFn is one copy of a step. It reads input until it is closed and writes to output, which is
// shared with the other copies.
type CopyFn[I, O any] func(ctx context.Context, input <-chan I, output chan<- O) error

func newStep[O any](typ model.StepType, name string, opts ...StepOption[O]) *model.Step[O] {
	step := &model.Step[O]{
		Details: &model.StepInfo{
			Type:       typ,
			Name:       name,
			Concurrent: 1,
		},
	}
	for _, opt := range opts {
		opt(step)
	}
	step.Output = make(chan O, max(step.Details.BufferSize, 0))

	return step
}

func prepareStep[I, O any](p *Pipeline, name string, input *model.Step[I], concurrent int, opts ...StepOption[O]) (*model.Step[O], error) {
	if p == nil {
		return nil, ErrPipelineMustBeSet
	}
	if input == nil {
		return nil, ErrInputMustBeSet
	}

	step := newStep(model.NormalStepType, name, opts...)
	step.Details.Concurrent = concurrent
	for _, opt := range p.opts {
		err := opt.PrepareStep(input.Info(), step.Details)
		if err != nil {
			return nil, errors.Wrap(err, "unable to run prepare step option")
		}
	}

	return step, nil
}

// runOneToOne pushes the result of oneToOneFn for every input, in input order.
func runOneToOne[I, O any](ctx context.Context, input *model.Step[I], output *model.Step[O], oneToOneFn func(context.Context, I) (O, error), hook outputHook) error {
	for {
		startIter := time.Now()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-input.Output:
			if !ok {
				return nil
			}
			startFn := time.Now()
			out, err := oneToOneFn(ctx, in)
			if err != nil {
				return err
			}
			endFn := time.Since(startFn)

			// the context is checked again so that nothing is pushed once the pipeline is
			// cancelled
			select {
			case <-ctx.Done():
				return ctx.Err()
			case output.Output <- out:
				if hook != nil {
					err = hook(time.Since(startIter)-endFn, endFn)
					if err != nil {
						return err
					}
				}
			}
		}
	}
}

// runCopies runs fn once per copy, each in its own goroutine. The first error cancels the context
// of the other copies and is returned once all of them returned.
func runCopies(ctx context.Context, copies int, fn func(ctx context.Context, idx int) error) error {
	errGrp, dCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(copies)
	for idx := range copies {
		errGrp.Go(func() error {
			return errors.Wrapf(fn(dCtx, idx), "copy %d", idx)
		})
	}

	return errGrp.Wait()
}

func addStep[I, O any](p *Pipeline, input *model.Step[I], step *model.Step[O], run func(ctx context.Context, hook outputHook) error) *model.Step[O] {
	hook := p.onStepOutput(input.Info(), step.Details)
	p.runAndReport(step.Details.Name, func(ctx context.Context) error {
		defer close(step.Output)

		return run(ctx, hook)
	})

	return step
}

// AddStepOneToOne adds a step pushing one output for every input, in input order.
func AddStepOneToOne[I, O any](p *Pipeline, name string, input *model.Step[I], oneToOneFn func(context.Context, I) (O, error), opts ...StepOption[O]) (*model.Step[O], error) {
	step, err := prepareStep(p, name, input, 1, opts...)
	if err != nil {
		return nil, err
	}

	return addStep(p, input, step, func(ctx context.Context, hook outputHook) error {
		return runOneToOne(ctx, input, step, oneToOneFn, hook)
	}), nil
}

// AddStepCopies adds a step run by one goroutine per copy, all reading the same input channel and
// writing the same output channel. A copy must return once its input is closed or ctx is done. Each copy sees its inputs in order. The first copy failing
// cancels the others, and the step returns once every copy returned.
func AddStepCopies[I, O any](p *Pipeline, name string, input *model.Step[I], copies []CopyFn[I, O], opts ...StepOption[O]) (*model.Step[O], error) {
	if len(copies) == 0 {
		return nil, ErrCopiesMustBeSet
	}
	step, err := prepareStep(p, name, input, len(copies), opts...)
	if err != nil {
		return nil, err
	}

	return addStep(p, input, step, func(ctx context.Context, _ outputHook) error {
		if len(copies) == 1 {
			return copies[0](ctx, input.Output, step.Output)
		}

		return runCopies(ctx, len(copies), func(ctx context.Context, idx int) error {
			return copies[idx](ctx, input.Output, step.Output)
		})
	}), nil
}
