// Package logger provides a pipeline option logging the life of a pipeline run with zap.
package logger

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askiada/go-filter-sequence/pkg/pipeline/model"
)

// PipelineLogger logs the steps of a pipeline run. Every entry carries the run id.
type PipelineLogger struct {
	base      *zap.Logger
	logger    *zap.Logger
	runID     string
	startTime time.Time

	mu      sync.Mutex
	entries map[string]*atomic.Int64
	order   []string
}

// New returns a pipeline option logging to l. A nil l logs nothing.
func New(l *zap.Logger) *PipelineLogger {
	if l == nil {
		l = zap.NewNop()
	}

	return &PipelineLogger{base: l, logger: l, entries: map[string]*atomic.Int64{}}
}

// RunID returns the id of the current run, set by New.
func (pl *PipelineLogger) RunID() string {
	return pl.runID
}

// Logger returns the logger annotated with the run id.
func (pl *PipelineLogger) Logger() *zap.Logger {
	return pl.logger
}

// Entries returns how many entries step pushed so far.
func (pl *PipelineLogger) Entries(step string) int64 {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if c, ok := pl.entries[step]; ok {
		return c.Load()
	}

	return 0
}

func (pl *PipelineLogger) New() error {
	pl.runID = uuid.NewString()
	pl.startTime = time.Now()
	pl.logger = pl.base.With(zap.String("run_id", pl.runID))
	pl.logger.Info("pipeline created")

	return nil
}

func (pl *PipelineLogger) register(parent string, step *model.StepInfo) {
	pl.mu.Lock()
	if _, ok := pl.entries[step.Name]; !ok {
		pl.entries[step.Name] = &atomic.Int64{}
		pl.order = append(pl.order, step.Name)
	}
	pl.mu.Unlock()

	pl.logger.Debug("step added",
		zap.String("step", step.Name),
		zap.String("type", string(step.Type)),
		zap.String("parent", parent),
		zap.Int("concurrent", step.Concurrent),
	)
}

func (pl *PipelineLogger) count(step string) {
	pl.mu.Lock()
	c, ok := pl.entries[step]
	pl.mu.Unlock()

	if ok {
		c.Add(1)
	}
}

func (pl *PipelineLogger) PrepareStep(parentStep, step *model.StepInfo) error {
	pl.register(parentStep.Name, step)

	return nil
}

func (pl *PipelineLogger) PrepareSplitter(parentStep, splitterStep *model.StepInfo) error {
	pl.register(parentStep.Name, splitterStep)

	return nil
}

func (pl *PipelineLogger) PrepareMerger(parentSteps []*model.StepInfo, step *model.StepInfo) error {
	parents := ""
	for i, p := range parentSteps {
		if i > 0 {
			parents += ","
		}
		parents += p.Name
	}
	pl.register(parents, step)

	return nil
}

func (pl *PipelineLogger) PrepareSink(parentStep, step *model.StepInfo) error {
	pl.register(parentStep.Name, step)

	return nil
}

func (pl *PipelineLogger) OnStepOutput(_, step *model.StepInfo, _, _ time.Duration) error {
	pl.count(step.Name)

	return nil
}

func (pl *PipelineLogger) OnSplitterOutput(_, splitterStep *model.StepInfo, _, _ time.Duration) error {
	pl.count(splitterStep.Name)

	return nil
}

func (pl *PipelineLogger) OnMergerOutput(_, outputStep *model.StepInfo, _ time.Duration) error {
	pl.count(outputStep.Name)

	return nil
}

func (pl *PipelineLogger) OnSinkOutput(_, step *model.StepInfo, _, _ time.Duration) error {
	pl.count(step.Name)

	return nil
}

func (pl *PipelineLogger) AfterSink(step *model.StepInfo, totalDuration time.Duration) error {
	pl.logger.Info("sink done",
		zap.String("step", step.Name),
		zap.Int64("entries", pl.Entries(step.Name)),
		zap.Duration("elapsed", totalDuration),
	)

	return nil
}

func (pl *PipelineLogger) Finish(runErr error) error {
	pl.mu.Lock()
	fields := make([]zap.Field, 0, len(pl.order)+2)
	for _, name := range pl.order {
		fields = append(fields, zap.Int64(name, pl.entries[name].Load()))
	}
	pl.mu.Unlock()

	summary := []zap.Field{
		zap.Duration("elapsed", time.Since(pl.startTime)),
		zap.Dict("entries", fields...),
	}
	if runErr != nil {
		pl.logger.Error("pipeline stopped", append(summary, zap.Error(runErr))...)

		return nil
	}
	pl.logger.Info("pipeline finished", summary...)

	return nil
}

var _ model.PipelineOption = (*PipelineLogger)(nil)
