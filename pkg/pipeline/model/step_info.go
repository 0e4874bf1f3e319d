package model

type StepType string

const (
	RootStepType     StepType = "root"
	NormalStepType   StepType = "step"
	SplitterStepType StepType = "splitter"
	SinkStepType     StepType = "sink"
	MergerStepType   StepType = "merger"
)

// StepInfo describes a step to the pipeline options.
type StepInfo struct {
	Type       StepType
	Name       string
	Concurrent int
	BufferSize int
}

var (
	StartStep = &Step[any]{Details: &StepInfo{Name: "start"}}
	EndStep   = &Step[any]{Details: &StepInfo{Name: "end"}}
)

// Step is the output of a pipeline step. Output is closed once the step is done.
type Step[O any] struct {
	Output  chan O
	Details *StepInfo
}

// Info returns the step details, or the details of StartStep for a step built outside a pipeline.
func (s *Step[O]) Info() *StepInfo {
	if s == nil || s.Details == nil {
		return StartStep.Details
	}

	return s.Details
}
