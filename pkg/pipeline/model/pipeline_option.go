package model

import "time"

// PipelineOption defines the interface for pipeline options.
type PipelineOption interface {
	// New initialises the pipeline option.
	New() error

	pipelineStepOption
	pipelineSplitterOption
	pipelineMergerOption
	pipelineSinkOption

	// Finish runs after the pipeline is finished, with the error the pipeline stopped on.
	Finish(runErr error) error
}

type pipelineStepOption interface {
	// PrepareStep runs when the step is added to the pipeline.
	PrepareStep(parentStep, step *StepInfo) error
	// OnStepOutput runs everytime something is pushed to the output of the step.
	OnStepOutput(parentStep, step *StepInfo, iterationDuration, computationDuration time.Duration) error
}

type pipelineSplitterOption interface {
	// PrepareSplitter runs when the splitter is added to the pipeline.
	PrepareSplitter(parentStep, splitterStep *StepInfo) error
	// OnSplitterOutput runs everytime an entry is dispatched by the splitter.
	OnSplitterOutput(parentStep, splitterStep *StepInfo, iterationDuration, computationDuration time.Duration) error
}

type pipelineMergerOption interface {
	// PrepareMerger runs when the merger is added to the pipeline.
	PrepareMerger(parentSteps []*StepInfo, step *StepInfo) error
	// OnMergerOutput runs everytime something is pushed to the output of the merger.
	OnMergerOutput(parentStep, outputStep *StepInfo, iterationDuration time.Duration) error
}

type pipelineSinkOption interface {
	// PrepareSink runs when the sink is added to the pipeline.
	PrepareSink(parentStep, step *StepInfo) error
	// OnSinkOutput runs everytime the sink consumes an entry.
	OnSinkOutput(parentStep, step *StepInfo, iterationDuration, computationDuration time.Duration) error
	// AfterSink runs once the sink is done.
	AfterSink(step *StepInfo, totalDuration time.Duration) error
}
