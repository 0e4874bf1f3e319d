package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-filter-sequence/pkg/pipeline/model"
)

func prepareSink[I any](pipe *Pipeline, name string, input *model.Step[I]) (*model.StepInfo, error) {
	if pipe == nil {
		return nil, ErrPipelineMustBeSet
	}
	if input == nil {
		return nil, ErrInputMustBeSet
	}

	info := &model.StepInfo{
		Type:       model.SinkStepType,
		Name:       name,
		Concurrent: 1,
	}
	for _, opt := range pipe.opts {
		err := opt.PrepareSink(input.Info(), info)
		if err != nil {
			return nil, errors.Wrap(err, "unable to run prepare sink option")
		}
	}

	return info, nil
}

func (p *Pipeline) afterSink(info *model.StepInfo) error {
	for _, opt := range p.opts {
		err := opt.AfterSink(info, time.Since(p.startTime))
		if err != nil {
			return errors.Wrap(err, "unable to run after sink option")
		}
	}

	return nil
}

// AddSink adds a step consuming every entry of input with sinkFn.
func AddSink[I any](pipe *Pipeline, name string, input *model.Step[I], sinkFn func(ctx context.Context, input I) error) error {
	info, err := prepareSink(pipe, name, input)
	if err != nil {
		return err
	}

	pipe.runAndReport(name, func(ctx context.Context) error {
		for {
			startIter := time.Now()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case in, ok := <-input.Output:
				if !ok {
					return pipe.afterSink(info)
				}
				endIter := time.Since(startIter)

				startFn := time.Now()
				err := sinkFn(ctx, in)
				if err != nil {
					return err
				}
				endFn := time.Since(startFn)

				for _, opt := range pipe.opts {
					err := opt.OnSinkOutput(input.Info(), info, endIter, endFn)
					if err != nil {
						return errors.Wrap(err, "unable to run sink output option")
					}
				}
			}
		}
	})

	return nil
}
