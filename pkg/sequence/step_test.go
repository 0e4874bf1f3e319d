package sequence_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-filter-sequence/pkg/condition"
	"github.com/askiada/go-filter-sequence/pkg/config"
	"github.com/askiada/go-filter-sequence/pkg/counter"
	"github.com/askiada/go-filter-sequence/pkg/pipeline"
	"github.com/askiada/go-filter-sequence/pkg/pipeline/model"
	"github.com/askiada/go-filter-sequence/pkg/row"
	"github.com/askiada/go-filter-sequence/pkg/sequence"
)

func addRecords(t *testing.T, pipe *pipeline.Pipeline, records []row.Record) *model.Step[row.Record] {
	t.Helper()

	root, err := pipeline.AddRootStep(pipe, "rows", func(ctx context.Context, rootChan chan<- row.Record) error {
		for _, rec := range records {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rootChan <- rec:
			}
		}

		return nil
	})
	require.NoError(t, err)

	return root
}

func collectValues(t *testing.T, pipe *pipeline.Pipeline, input *model.Step[row.Record], field string) func() []int64 {
	t.Helper()

	var (
		mu  sync.Mutex
		got []int64
	)
	err := pipeline.AddSink(pipe, "sink", input, func(_ context.Context, rec row.Record) error {
		v, ok := rec.Get(field)
		require.True(t, ok)

		mu.Lock()
		defer mu.Unlock()
		got = append(got, v.(int64)) //nolint:forcetypeassert

		return nil
	})
	require.NoError(t, err)

	return func() []int64 {
		mu.Lock()
		defer mu.Unlock()

		return append([]int64{}, got...)
	}
}

func repeat(flag string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = flag
	}

	return out
}

func TestAddStepSharedCounter(t *testing.T) {
	t.Parallel()

	reg := counter.NewRegistry()
	meta := flagMeta("0", "1")

	pipe, err := pipeline.New(t.Context())
	require.NoError(t, err)

	root := addRecords(t, pipe, flagRecords(repeat("Y", 200)...))
	out, stages, err := sequence.AddStep(t.Context(), pipe, "sequence", root, meta, reg, 2)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	shared := stages[0].Counter()
	require.Same(t, shared, stages[1].Counter())

	values := collectValues(t, pipe, out, "seq")

	require.NoError(t, pipe.Run())

	// every copy that received a row spent its first row without advancing the counter
	active := int64(0)
	for _, stage := range stages {
		if stage.Processed() > 0 {
			active++
		}
	}
	require.Positive(t, active)
	assert.Equal(t, int64(200), stages[0].Processed()+stages[1].Processed())
	final := 200 - active
	assert.Equal(t, final, shared.Value())

	got := values()
	require.Len(t, got, 200)

	seen := map[int64]int{}
	for _, v := range got {
		require.GreaterOrEqual(t, v, int64(0))
		require.LessOrEqual(t, v, final)
		seen[v]++
	}
	for v := int64(1); v <= final; v++ {
		assert.Positive(t, seen[v], "value %d", v)
	}

	assert.Empty(t, reg.Names())
}

func TestAddStepSingleCopyKeepsOrder(t *testing.T) {
	t.Parallel()

	reg := counter.NewRegistry()

	pipe, err := pipeline.New(t.Context())
	require.NoError(t, err)

	root := addRecords(t, pipe, flagRecords("N", "Y", "N", "Y", "Y"))
	out, stages, err := sequence.AddStep(t.Context(), pipe, "sequence", root, flagMeta("1", "1"), reg, 0)
	require.NoError(t, err)
	require.Len(t, stages, 1)

	values := collectValues(t, pipe, out, "seq")

	require.NoError(t, pipe.Run())
	assert.Equal(t, []int64{1, 2, 2, 3, 4}, values())
	assert.Equal(t, sequence.StateDone, stages[0].State())
}

func TestAddStepConfigurationError(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(t.Context())
	require.NoError(t, err)

	root := addRecords(t, pipe, flagRecords("Y"))
	_, _, err = sequence.AddStep(t.Context(), pipe, "sequence", root, flagMeta("1", "1"), nil, 3)

	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.ErrorIs(t, err, config.ErrNoRegistry)
}

func TestAddStepEvaluationErrorStopsPeers(t *testing.T) {
	t.Parallel()

	reg := counter.NewRegistry()
	meta := flagMeta("1", "1")
	meta.Condition = condition.NewLeaf("flag", condition.FunctionRegexp, "", condition.NewStringValue("("))

	pipe, err := pipeline.New(t.Context())
	require.NoError(t, err)

	root := addRecords(t, pipe, flagRecords(repeat("Y", 1000)...))
	out, stages, err := sequence.AddStep(t.Context(), pipe, "sequence", root, meta, reg, 3)
	require.NoError(t, err)
	collectValues(t, pipe, out, "seq")

	err = pipe.Run()

	var evalErr *sequence.EvaluationError
	require.ErrorAs(t, err, &evalErr)
	for _, stage := range stages {
		assert.True(t, stage.Stopped())
		assert.Equal(t, sequence.StateDone, stage.State())
	}
	assert.Empty(t, reg.Names())
}
