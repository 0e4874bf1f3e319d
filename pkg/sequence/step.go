package sequence

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/askiada/go-filter-sequence/pkg/config"
	"github.com/askiada/go-filter-sequence/pkg/counter"
	"github.com/askiada/go-filter-sequence/pkg/pipeline"
	"github.com/askiada/go-filter-sequence/pkg/pipeline/model"
	"github.com/askiada/go-filter-sequence/pkg/row"
)

// AddStep adds copies of a sequence step to p. Every copy is initialised before AddStep returns,
// so a configuration error aborts the pipeline before any row is read. The copies pull rows from
// the same input, and their outputs are interleaved in no particular order. All copies share one
// stop flag, and the first copy failing cancels the others.
func AddStep(ctx context.Context, p *pipeline.Pipeline, name string, input *model.Step[row.Record],
	meta *config.Meta, registry *counter.Registry, copies int, opts ...Option,
) (*model.Step[row.Record], []*Stage, error) {
	copies = max(copies, 1)
	stop := &atomic.Bool{}

	stages := make([]*Stage, copies)
	fns := make([]pipeline.CopyFn[row.Record, row.Record], copies)
	for i := range copies {
		stageOpts := append(append([]Option{}, opts...), WithCopy(i), WithStopFlag(stop))
		stages[i] = New(meta, registry, stageOpts...)

		err := stages[i].Init(ctx)
		if err != nil {
			disposeAll(stages[:i+1])

			return nil, nil, errors.Wrapf(err, "unable to init copy %d of %s", i, name)
		}
		fns[i] = copyFn(stages[i])
	}

	out, err := pipeline.AddStepCopies(p, name, input, fns)
	if err != nil {
		disposeAll(stages)

		return nil, nil, errors.Wrapf(err, "unable to add %s", name)
	}

	return out, stages, nil
}

func disposeAll(stages []*Stage) {
	for _, s := range stages {
		s.Dispose()
	}
}

func copyFn(stage *Stage) pipeline.CopyFn[row.Record, row.Record] {
	return func(ctx context.Context, input <-chan row.Record, output chan<- row.Record) error {
		defer stage.Dispose()

		return stage.Run(ctx, NewChanSource(input), NewChanSink(output))
	}
}
