package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-filter-sequence/pkg/pipeline/model"
)

func prepareMerger[I any](pipe *Pipeline, name string, steps ...*model.Step[I]) (*model.Step[I], error) {
	outputStep := &model.Step[I]{
		Details: &model.StepInfo{
			Type:       model.MergerStepType,
			Name:       name,
			Concurrent: len(steps),
		},
		Output: make(chan I),
	}

	stepInfos := make([]*model.StepInfo, len(steps))
	for i, step := range steps {
		stepInfos[i] = step.Info()
	}

	for _, opt := range pipe.opts {
		err := opt.PrepareMerger(stepInfos, outputStep.Details)
		if err != nil {
			return nil, errors.Wrap(err, "unable to run prepare merger option")
		}
	}

	return outputStep, nil
}

func runStepMerger[I any](ctx context.Context, pipe *Pipeline, step, outputStep *model.Step[I]) error {
	for {
		startIter := time.Now()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-step.Output:
			if !ok {
				return nil
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case outputStep.Output <- entry:
				endIter := time.Since(startIter)
				for _, opt := range pipe.opts {
					err := opt.OnMergerOutput(step.Info(), outputStep.Details, endIter)
					if err != nil {
						return errors.Wrap(err, "unable to run merger output option")
					}
				}
			}
		}
	}
}

// AddMerger adds a step merging the outputs of steps into a single channel. Each input is read by
// its own goroutine, so entries of different inputs are interleaved in no particular order.
func AddMerger[I any](pipe *Pipeline, name string, steps ...*model.Step[I]) (*model.Step[I], error) {
	if pipe == nil {
		return nil, ErrPipelineMustBeSet
	}
	if len(steps) == 0 {
		return nil, ErrMergerInputs
	}
	for _, step := range steps {
		if step == nil {
			return nil, ErrInputMustBeSet
		}
	}

	outputStep, err := prepareMerger(pipe, name, steps...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to prepare merger")
	}

	errC := make(chan error, len(steps))
	pipe.errcList.add(newErrorChan(name, errC))

	wgrp := sync.WaitGroup{}
	wgrp.Add(len(steps))

	go func() {
		wgrp.Wait()
		close(errC)
		close(outputStep.Output)
	}()

	for _, step := range steps {
		pipe.start(func(ctx context.Context) {
			defer wgrp.Done()

			err := runStepMerger(ctx, pipe, step, outputStep)
			if err != nil {
				errC <- err
			}
		})
	}

	return outputStep, nil
}
