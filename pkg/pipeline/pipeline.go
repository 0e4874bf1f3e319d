package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-filter-sequence/pkg/pipeline/model"
)

// Pipeline is a pipeline of steps.
type Pipeline struct {
	ctx       context.Context //nolint:containedctx
	cancel    context.CancelFunc
	errcList  *errorChans
	opts      []model.PipelineOption
	startTime time.Time
	goFn      []func(ctx context.Context)
}

// New creates a new pipeline. Steps run with a context derived from ctx.
func New(ctx context.Context, opts ...model.PipelineOption) (*Pipeline, error) {
	dCtx, cancel := context.WithCancel(ctx)
	pipe := &Pipeline{
		ctx:       dCtx,
		cancel:    cancel,
		errcList:  &errorChans{},
		startTime: time.Now(),
		opts:      opts,
	}

	for _, opt := range opts {
		err := opt.New()
		if err != nil {
			cancel()

			return nil, errors.Wrap(err, "unable to apply pipeline option")
		}
	}

	return pipe, nil
}

func (p *Pipeline) start(fn func(ctx context.Context)) {
	p.goFn = append(p.goFn, fn)
}

// waitForPipeline reads every error channel until all of them are closed, so that it only returns
// once every step returned. The first error calls cancel and is returned.
func waitForPipeline(cancel context.CancelFunc, errs ...*errorChan) error {
	var first error
	for err := range mergeErrors(errs...) {
		if err != nil && first == nil {
			first = err
			cancel()
		}
	}

	return first
}

// Run starts every step and waits for all of them to return. The first error cancels the
// remaining steps and is returned once they are done.
func (p *Pipeline) Run() error {
	defer p.cancel()

	for _, fn := range p.goFn {
		go fn(p.ctx)
	}

	runErr := waitForPipeline(p.cancel, p.errcList.list...)

	err := p.finishRun(runErr)
	if runErr != nil {
		return runErr
	}

	return err
}

func (p *Pipeline) finishRun(runErr error) error {
	for _, opt := range p.opts {
		err := opt.Finish(runErr)
		if err != nil {
			return errors.Wrap(err, "unable to finish pipeline option")
		}
	}

	return nil
}

func (p *Pipeline) onStepOutput(parent, step *model.StepInfo) outputHook {
	if len(p.opts) == 0 {
		return nil
	}

	return func(iterationDuration, computationDuration time.Duration) error {
		for _, opt := range p.opts {
			err := opt.OnStepOutput(parent, step, iterationDuration, computationDuration)
			if err != nil {
				return errors.Wrap(err, "unable to run step output option")
			}
		}

		return nil
	}
}
