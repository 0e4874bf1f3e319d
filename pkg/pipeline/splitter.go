package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-filter-sequence/pkg/pipeline/model"
)

// SplitMode decides which outputs of a splitter receive an entry.
type SplitMode int

const (
	// SplitBroadcast sends every entry to every output.
	SplitBroadcast SplitMode = iota
	// SplitRoundRobin sends every entry to exactly one output, in turn.
	SplitRoundRobin
)

// Splitter dispatches the entries of one step to several outputs.
type Splitter[I any] struct {
	mu            sync.Mutex
	currIdx       int
	mainStep      *model.Step[I]
	splittedSteps []*model.Step[I]
	bufferSize    int
	mode          SplitMode
	Total         int
}

// SplitterOption configures a splitter.
type SplitterOption[I any] func(s *Splitter[I])

// SplitterMode sets how entries are dispatched.
func SplitterMode[I any](mode SplitMode) SplitterOption[I] {
	return func(s *Splitter[I]) {
		s.mode = mode
	}
}

// Get returns the next output that was not handed out yet.
func (s *Splitter[I]) Get() (*model.Step[I], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currIdx >= len(s.splittedSteps) {
		return nil, false
	}
	step := s.splittedSteps[s.currIdx]
	s.currIdx++

	return step, true
}

// AddSplitter adds a splitter with total outputs.
func AddSplitter[I any](p *Pipeline, name string, input *model.Step[I], total int, opts ...SplitterOption[I]) (*Splitter[I], error) {
	if p == nil {
		return nil, ErrPipelineMustBeSet
	}
	if input == nil {
		return nil, ErrInputMustBeSet
	}
	if total <= 0 {
		return nil, ErrSplitterTotal
	}

	splitter := &Splitter[I]{
		Total:      total,
		bufferSize: 1,
		mainStep: &model.Step[I]{
			Details: &model.StepInfo{
				Type:       model.SplitterStepType,
				Name:       name,
				Concurrent: 1,
			},
		},
	}
	for _, opt := range opts {
		opt(splitter)
	}
	splitter.mainStep.Details.BufferSize = splitter.bufferSize

	splitter.splittedSteps = make([]*model.Step[I], total)
	for i := range total {
		splitter.splittedSteps[i] = &model.Step[I]{
			Details: splitter.mainStep.Details,
			Output:  make(chan I, splitter.bufferSize),
		}
	}

	for _, opt := range p.opts {
		err := opt.PrepareSplitter(input.Info(), splitter.mainStep.Details)
		if err != nil {
			return nil, errors.Wrap(err, "unable to run prepare splitter option")
		}
	}

	p.runAndReport(name, func(ctx context.Context) error {
		defer func() {
			for _, step := range splitter.splittedSteps {
				close(step.Output)
			}
		}()

		return splitter.run(ctx, p, input)
	})

	return splitter, nil
}

func (s *Splitter[I]) run(ctx context.Context, p *Pipeline, input *model.Step[I]) error {
	next := 0
	for {
		startIter := time.Now()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-input.Output:
			if !ok {
				return nil
			}

			startFn := time.Now()
			targets := s.splittedSteps
			if s.mode == SplitRoundRobin {
				targets = s.splittedSteps[next : next+1]
				next = (next + 1) % len(s.splittedSteps)
			}
			for _, step := range targets {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case step.Output <- entry:
				}
			}
			endFn := time.Since(startFn)

			for _, opt := range p.opts {
				err := opt.OnSplitterOutput(input.Info(), s.mainStep.Details, time.Since(startIter)-endFn, endFn)
				if err != nil {
					return errors.Wrap(err, "unable to run splitter output option")
				}
			}
		}
	}
}
