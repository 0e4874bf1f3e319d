// Package pipeline runs a graph of steps connected by channels.
//
// Steps are registered with AddRootStep, AddStepOneToOne, AddStepCopies, AddSplitter,
// AddMerger and AddSink, and start when Run is called. Run returns on the first error reported by
// any step and cancels the pipeline context, which every step watches while reading its input or
// writing its output.
//
// Options implementing model.PipelineOption observe the pipeline: they are called when steps are
// added, every time a step pushes an entry, and once the pipeline is finished. See the measure,
// drawer and logger packages.
package pipeline
