package sequence_test

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/askiada/go-filter-sequence/pkg/condition"
	"github.com/askiada/go-filter-sequence/pkg/config"
	"github.com/askiada/go-filter-sequence/pkg/counter"
	"github.com/askiada/go-filter-sequence/pkg/row"
	"github.com/askiada/go-filter-sequence/pkg/sequence"
	"github.com/askiada/go-filter-sequence/pkg/variables"
)

var flagLayout = row.NewLayout(
	row.Field{Name: "id", Type: row.TypeInteger},
	row.Field{Name: "flag", Type: row.TypeString},
)

func flagMeta(start, increment string) *config.Meta {
	meta := config.NewMeta()
	meta.FieldName = "seq"
	meta.StartAt = start
	meta.IncrementBy = increment
	meta.Condition = condition.NewLeaf("flag", condition.FunctionEqual, "", condition.NewStringValue("Y"))

	return meta
}

func flagRecords(flags ...string) []row.Record {
	out := make([]row.Record, len(flags))
	for i, f := range flags {
		out[i] = row.Record{Layout: flagLayout, Values: row.Row{int64(i), f}}
	}

	return out
}

type sliceSource struct {
	records []row.Record
}

func (s *sliceSource) Next(_ context.Context) (row.Record, bool, error) {
	if len(s.records) == 0 {
		return row.Record{}, false, nil
	}
	rec := s.records[0]
	s.records = s.records[1:]

	return rec, true, nil
}

type sliceSink struct {
	mu      sync.Mutex
	records []row.Record
	done    bool
}

func (s *sliceSink) Put(_ context.Context, rec row.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)

	return nil
}

func (s *sliceSink) Done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
}

func (s *sliceSink) values(t *testing.T, field string) []int64 {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int64, len(s.records))
	for i, rec := range s.records {
		v, ok := rec.Get(field)
		require.True(t, ok)
		out[i], ok = v.(int64)
		require.True(t, ok)
	}

	return out
}

func TestConditionalMonotonicity(t *testing.T) {
	t.Parallel()

	reg := counter.NewRegistry()
	stage := sequence.New(flagMeta("10", "5"), reg)
	sink := &sliceSink{}

	err := stage.Run(t.Context(), &sliceSource{records: flagRecords("Y", "N", "Y", "Y", "N", "Y")}, sink)
	require.NoError(t, err)

	assert.Equal(t, []int64{10, 10, 15, 20, 20, 25}, sink.values(t, "seq"))
	assert.True(t, sink.done)
	assert.Equal(t, sequence.StateDone, stage.State())
	assert.Equal(t, []string{"id", "flag", "seq"}, stage.OutputLayout().Names())
	assert.Equal(t, row.TypeInteger, stage.OutputLayout().Field(2).Type)
	assert.Equal(t, int64(6), stage.Processed())
}

func TestFirstRowInvariant(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		start := rapid.Int64Range(-1_000_000, 1_000_000).Draw(t, "start")
		increment := rapid.Int64Range(-10, 10).Draw(t, "increment")
		flag := rapid.SampledFrom([]string{"Y", "N", ""}).Draw(t, "flag")

		stage := sequence.New(flagMeta(formatInt(start), formatInt(increment)), counter.NewRegistry())
		require.NoError(t, stage.Init(context.Background()))

		out, err := stage.ProcessRow(context.Background(), flagLayout, row.Row{int64(0), flag})
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, start, out[2])
		assert.Equal(t, start, stage.Counter().Value())
	})
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}

func TestSharedCounterTwoCopies(t *testing.T) {
	t.Parallel()

	reg := counter.NewRegistry()
	meta := config.NewMeta()
	meta.StartAt = "0"
	meta.Condition = condition.NewLeaf("flag", condition.FunctionNotNull, "", nil)

	first := sequence.New(meta, reg, sequence.WithCopy(0))
	second := sequence.New(meta, reg, sequence.WithCopy(1))
	require.NoError(t, first.Init(t.Context()))
	require.NoError(t, second.Init(t.Context()))
	require.Same(t, first.Counter(), second.Counter())

	emitted := []int64{}
	process := func(stage *sequence.Stage, id int) {
		out, err := stage.ProcessRow(t.Context(), flagLayout, row.Row{int64(id), "Y"})
		require.NoError(t, err)
		emitted = append(emitted, out[2].(int64)) //nolint:forcetypeassert
	}

	process(first, 0)
	process(second, 0)
	for i := 1; i < 100; i++ {
		process(first, i)
		process(second, i)
	}

	assert.Equal(t, int64(198), first.Counter().Value())
	require.Len(t, emitted, 200)

	sort.Slice(emitted, func(i, j int) bool { return emitted[i] < emitted[j] })
	distinct := []int64{}
	for i, v := range emitted {
		if i == 0 || v != emitted[i-1] {
			distinct = append(distinct, v)
		}
	}
	require.Len(t, distinct, 199)
	for i, v := range distinct {
		assert.Equal(t, int64(i), v)
	}
}

func TestValidationErrorNamesMissingField(t *testing.T) {
	t.Parallel()

	meta := flagMeta("1", "1")
	meta.Condition = condition.NewComposite(
		condition.NewLeaf("flag", condition.FunctionEqual, "", condition.NewStringValue("Y")),
		&condition.Condition{Operator: condition.OperatorAnd, LeftField: "missing", Function: condition.FunctionNotNull},
	)
	stage := sequence.New(meta, counter.NewRegistry())
	sink := &sliceSink{}

	err := stage.Run(t.Context(), &sliceSource{records: flagRecords("Y", "Y")}, sink)

	var validationErr *sequence.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, []string{"missing"}, validationErr.Fields)
	assert.Contains(t, err.Error(), "missing")
	assert.Empty(t, sink.records)
	assert.True(t, sink.done)
	assert.True(t, stage.Stopped())
	assert.Equal(t, sequence.StateError, stage.State())
}

func TestProcessRowWithoutLayout(t *testing.T) {
	t.Parallel()

	stage := sequence.New(flagMeta("1", "1"), counter.NewRegistry())
	require.NoError(t, stage.Init(t.Context()))

	_, err := stage.ProcessRow(t.Context(), nil, row.Row{"Y"})

	var validationErr *sequence.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.ErrorIs(t, err, sequence.ErrNoLayout)
	assert.Equal(t, sequence.StateError, stage.State())
}

func TestEvaluationErrorStopsCopy(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.ErrorLevel)
	meta := flagMeta("1", "1")
	meta.Condition = condition.NewLeaf("flag", condition.FunctionRegexp, "", condition.NewStringValue("("))
	stage := sequence.New(meta, counter.NewRegistry(), sequence.WithLogger(zap.New(core)))
	sink := &sliceSink{}

	err := stage.Run(t.Context(), &sliceSource{records: flagRecords("a", "b", "c")}, sink)

	var evalErr *sequence.EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "[1], [b]", evalErr.Row)
	assert.Len(t, sink.records, 1)
	assert.True(t, sink.done)
	assert.True(t, stage.Stopped())
	assert.Equal(t, int64(1), stage.Counter().Value())

	entries := logs.FilterMessage("unable to evaluate condition").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "[1], [b]", entries[0].ContextMap()["row"])
}

func TestStopFlagSharedByPeers(t *testing.T) {
	t.Parallel()

	reg := counter.NewRegistry()
	stop := &atomic.Bool{}
	peer := sequence.New(flagMeta("1", "1"), reg, sequence.WithStopFlag(stop))
	stage := sequence.New(flagMeta("1", "1"), reg, sequence.WithStopFlag(stop))

	peer.Stop()

	sink := &sliceSink{}
	err := stage.Run(t.Context(), &sliceSource{records: flagRecords("Y", "Y")}, sink)
	require.NoError(t, err)
	assert.Empty(t, sink.records)
	assert.Equal(t, sequence.StateDone, stage.State())
}

func TestInitErrors(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		meta        *config.Meta
		registry    *counter.Registry
		expectedErr error
	}{
		"no registry": {meta: flagMeta("1", "1"), expectedErr: config.ErrNoRegistry},
		"empty field name": {meta: func() *config.Meta {
			m := flagMeta("1", "1")
			m.FieldName = ""

			return m
		}(), registry: counter.NewRegistry()},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			stage := sequence.New(tc.meta, tc.registry)
			err := stage.Init(t.Context())

			var cfgErr *config.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
			}
			assert.Equal(t, sequence.StateError, stage.State())
		})
	}
}

func TestInitTwice(t *testing.T) {
	t.Parallel()

	stage := sequence.New(flagMeta("1", "1"), counter.NewRegistry())
	require.NoError(t, stage.Init(t.Context()))
	require.ErrorIs(t, stage.Init(t.Context()), sequence.ErrAlreadyStarted)
}

func TestProcessRowBeforeInit(t *testing.T) {
	t.Parallel()

	stage := sequence.New(flagMeta("1", "1"), counter.NewRegistry())
	_, err := stage.ProcessRow(t.Context(), flagLayout, row.Row{int64(0), "Y"})
	require.ErrorIs(t, err, sequence.ErrNotReady)
}

func TestSettingsResolution(t *testing.T) {
	t.Parallel()

	vars := variables.New(nil)
	vars.Set("START", "7")
	vars.Set("STEP", "3")

	tcs := map[string]struct {
		start, increment  string
		expectedStart     int64
		expectedIncrement int64
		expectedWarnings  int
	}{
		"literal":        {start: "10", increment: "2", expectedStart: 10, expectedIncrement: 2},
		"variables":      {start: "${START}", increment: "%%STEP%%", expectedStart: 7, expectedIncrement: 3},
		"padded":         {start: " 4 ", increment: "1", expectedStart: 4, expectedIncrement: 1},
		"bad start":      {start: "abc", increment: "2", expectedStart: 0, expectedIncrement: 2, expectedWarnings: 1},
		"unknown var":    {start: "${NOPE}", increment: "1", expectedStart: 0, expectedIncrement: 1, expectedWarnings: 1},
		"both malformed": {start: "1.5", increment: "x", expectedWarnings: 2},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.WarnLevel)
			reg := counter.NewRegistry()
			stage := sequence.New(flagMeta(tc.start, tc.increment), reg,
				sequence.WithVariables(vars), sequence.WithLogger(zap.New(core)))
			require.NoError(t, stage.Init(t.Context()))

			assert.Equal(t, tc.expectedStart, stage.Counter().Value())
			assert.Equal(t, tc.expectedIncrement, stage.Counter().Increment())
			assert.Equal(t, tc.expectedWarnings, logs.Len())
			for _, entry := range logs.All() {
				assert.Contains(t, entry.ContextMap()["error"], "as an integer")
			}
		})
	}
}

func TestDisposeIsIdempotent(t *testing.T) {
	t.Parallel()

	reg := counter.NewRegistry()

	never := sequence.New(flagMeta("1", "1"), reg)
	never.Dispose()

	stage := sequence.New(flagMeta("1", "1"), reg)
	require.NoError(t, stage.Init(t.Context()))
	assert.Equal(t, "@@sequence:seq", stage.LookupName())
	_, ok := reg.Get(stage.LookupName())
	require.True(t, ok)

	stage.Dispose()
	stage.Dispose()
	_, ok = reg.Get(stage.LookupName())
	assert.False(t, ok)
	assert.Equal(t, sequence.StateDone, stage.State())
}

func TestCheck(t *testing.T) {
	t.Parallel()

	stage := sequence.New(flagMeta("1", "1"), counter.NewRegistry())

	remarks := stage.Check(flagLayout, []string{"input"})
	assert.False(t, config.HasErrors(remarks))

	remarks = stage.Check(row.NewLayout(row.Field{Name: "id", Type: row.TypeInteger}), []string{"input"})
	assert.True(t, config.HasErrors(remarks))
}

func TestSourceError(t *testing.T) {
	t.Parallel()

	stage := sequence.New(flagMeta("1", "1"), counter.NewRegistry())
	sink := &sliceSink{}

	err := stage.Run(t.Context(), failingSource{}, sink)
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, errors.Cause(err).Error(), assert.AnError.Error())
	assert.True(t, stage.Stopped())
}

type failingSource struct{}

func (failingSource) Next(context.Context) (row.Record, bool, error) {
	return row.Record{}, false, assert.AnError
}
