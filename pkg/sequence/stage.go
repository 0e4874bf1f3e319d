package sequence

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/askiada/go-filter-sequence/pkg/config"
	"github.com/askiada/go-filter-sequence/pkg/counter"
	"github.com/askiada/go-filter-sequence/pkg/row"
	"github.com/askiada/go-filter-sequence/pkg/variables"
)

// DefaultFeedbackSize is the number of rows between two progress logs.
const DefaultFeedbackSize = 50000

// State of a Stage.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateRunning
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Option configures a Stage.
type Option func(s *Stage)

// WithLogger sets the logger of the stage.
func WithLogger(l *zap.Logger) Option {
	return func(s *Stage) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithVariables sets the variables used to resolve the start and increment settings.
func WithVariables(vars *variables.Space) Option {
	return func(s *Stage) {
		s.vars = vars
	}
}

// WithStopFlag shares a stop flag between copies. Any copy failing sets it, and every copy checks
// it before pulling the next row.
func WithStopFlag(stop *atomic.Bool) Option {
	return func(s *Stage) {
		if stop != nil {
			s.stop = stop
		}
	}
}

// WithFeedbackSize logs the progress every n rows. Zero disables it.
func WithFeedbackSize(n int) Option {
	return func(s *Stage) {
		s.feedbackSize = max(n, 0)
	}
}

// WithCopy sets the copy number reported in logs.
func WithCopy(n int) Option {
	return func(s *Stage) {
		s.copyNr = n
	}
}

// Stage is one copy of a sequence step. A Stage is not safe for concurrent use; copies share
// state only through the counter registry and the stop flag.
type Stage struct {
	meta     *config.Meta
	registry *counter.Registry
	vars     *variables.Space
	logger   *zap.Logger
	stop     *atomic.Bool

	copyNr       int
	feedbackSize int

	state       atomic.Int32
	lookup      string
	counter     *counter.Counter
	startAt     int64
	incrementBy int64

	outputLayout *row.Layout
	valueIndex   int
	processed    int64
}

// New returns an uninitialised stage working on its own copy of meta.
func New(meta *config.Meta, registry *counter.Registry, opts ...Option) *Stage {
	if meta == nil {
		meta = config.NewMeta()
	}
	s := &Stage{
		meta:         meta.Clone(),
		registry:     registry,
		logger:       zap.NewNop(),
		stop:         &atomic.Bool{},
		feedbackSize: DefaultFeedbackSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// State returns the current state.
func (s *Stage) State() State {
	return State(s.state.Load())
}

func (s *Stage) setState(state State) {
	s.state.Store(int32(state))
}

// Meta returns the settings of the stage.
func (s *Stage) Meta() *config.Meta {
	return s.meta
}

// LookupName returns the registry key of the counter, once the stage is initialised.
func (s *Stage) LookupName() string {
	return s.lookup
}

// Counter returns the shared counter, once the stage is initialised.
func (s *Stage) Counter() *counter.Counter {
	return s.counter
}

// OutputLayout returns the layout of the emitted rows, once the first row is processed.
func (s *Stage) OutputLayout() *row.Layout {
	return s.outputLayout
}

// Stop asks this copy and every copy sharing its stop flag to stop before the next row.
func (s *Stage) Stop() {
	s.stop.Store(true)
}

// Stopped reports whether the stop flag is set.
func (s *Stage) Stopped() bool {
	return s.stop.Load()
}

// Init resolves the settings and acquires the shared counter.
func (s *Stage) Init(ctx context.Context) error {
	if s.State() != StateUninitialized {
		return ErrAlreadyStarted
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "unable to init stage")
	}
	if s.registry == nil {
		s.setState(StateError)

		return config.NewConfigurationError("init", config.ErrNoRegistry)
	}

	err := s.meta.Validate()
	if err != nil {
		s.setState(StateError)

		return err
	}

	s.meta.Condition.ClearFieldPositions()

	s.startAt = s.resolve("start_at", s.meta.StartAt)
	s.incrementBy = s.resolve("increment_by", s.meta.IncrementBy)
	s.lookup = s.meta.LookupName()
	s.logger = s.logger.With(zap.String("lookup", s.lookup), zap.Int("copy", s.copyNr))
	s.counter = s.registry.GetOrCreate(s.lookup, s.startAt, s.incrementBy)

	s.logger.Debug("stage initialised",
		zap.Int64("start_at", s.startAt),
		zap.Int64("increment_by", s.incrementBy),
		zap.Stringer("condition", s.meta.Condition),
	)
	s.setState(StateReady)

	return nil
}

func (s *Stage) resolve(setting, text string) int64 {
	resolved := strings.TrimSpace(s.vars.Substitute(text))

	n, err := strconv.ParseInt(resolved, 10, 64)
	if err != nil {
		s.logger.Warn("invalid numeric setting, using 0",
			zap.Error(&NumericParseWarning{Setting: setting, Text: resolved, Err: err}),
		)

		return 0
	}

	return n
}

// ProcessRow returns values with the sequence value appended. The first row checks the layout
// and emits the current value of the counter. Every later row advances the counter when the
// condition holds.
func (s *Stage) ProcessRow(_ context.Context, layout *row.Layout, values row.Row) (row.Row, error) {
	switch s.State() {
	case StateReady:
		if layout == nil {
			s.setState(StateError)

			return nil, &ValidationError{Err: ErrNoLayout}
		}
		orphans := s.meta.OrphanFields(layout)
		if len(orphans) > 0 {
			s.setState(StateError)

			return nil, &ValidationError{Fields: orphans}
		}
		s.outputLayout = s.meta.OutputLayout(layout, "")
		s.valueIndex = s.outputLayout.Len() - 1
		s.setState(StateRunning)

		return row.AddValue(values, s.valueIndex, s.counter.ConditionalAdd(false)), nil
	case StateRunning:
	default:
		return nil, errors.Wrap(ErrNotReady, s.State().String())
	}

	ok, err := s.meta.Condition.Evaluate(layout, values)
	if err != nil {
		s.setState(StateError)
		evalErr := &EvaluationError{Row: layout.Render(values), Err: err}
		s.logger.Error("unable to evaluate condition", zap.String("row", evalErr.Row), zap.Error(err))

		return nil, evalErr
	}

	return row.AddValue(values, s.valueIndex, s.counter.ConditionalAdd(ok)), nil
}

// Run initialises the stage when needed, then pulls rows from src until it is exhausted, the stop
// flag is set or an error occurs. Any error sets the stop flag. dst is marked done on return.
func (s *Stage) Run(ctx context.Context, src RowSource, dst RowSink) error {
	defer dst.Done()

	if s.State() == StateUninitialized {
		err := s.Init(ctx)
		if err != nil {
			s.Stop()

			return err
		}
	}

	err := s.run(ctx, src, dst)
	if err != nil {
		s.Stop()
		s.setState(StateError)

		return err
	}
	s.setState(StateDone)
	s.logger.Debug("stage finished", zap.Int64("rows", s.processed))

	return nil
}

func (s *Stage) run(ctx context.Context, src RowSource, dst RowSink) error {
	for !s.Stopped() {
		rec, ok, err := src.Next(ctx)
		if err != nil {
			return errors.Wrap(err, "unable to read row")
		}
		if !ok {
			return nil
		}

		values, err := s.ProcessRow(ctx, rec.Layout, rec.Values)
		if err != nil {
			return err
		}

		err = dst.Put(ctx, row.Record{Layout: s.outputLayout, Values: values})
		if err != nil {
			return errors.Wrap(err, "unable to write row")
		}

		s.processed++
		if s.feedbackSize > 0 && s.processed%int64(s.feedbackSize) == 0 {
			s.logger.Info("rows processed", zap.Int64("rows", s.processed))
		}
	}

	s.logger.Debug("stage stopped by a peer", zap.Int64("rows", s.processed))

	return nil
}

// Processed returns the number of rows emitted so far.
func (s *Stage) Processed() int64 {
	return s.processed
}

// Dispose removes the counter from the registry. It may be called any number of times.
func (s *Stage) Dispose() {
	if s.lookup != "" && s.registry != nil {
		s.registry.Remove(s.lookup)
	}
	s.setState(StateDone)
}

// Check reviews the settings against the previous step layout and the names of the input steps.
func (s *Stage) Check(prev *row.Layout, inputs []string) []config.Remark {
	return s.meta.Check(prev, inputs)
}
