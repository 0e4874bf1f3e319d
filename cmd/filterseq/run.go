package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/askiada/go-filter-sequence/pkg/counter"
	"github.com/askiada/go-filter-sequence/pkg/pipeline"
	"github.com/askiada/go-filter-sequence/pkg/pipeline/drawer"
	pipelogger "github.com/askiada/go-filter-sequence/pkg/pipeline/logger"
	"github.com/askiada/go-filter-sequence/pkg/pipeline/measure"
	"github.com/askiada/go-filter-sequence/pkg/pipeline/model"
	"github.com/askiada/go-filter-sequence/pkg/row"
	"github.com/askiada/go-filter-sequence/pkg/sequence"
)

type runFlags struct {
	jobFile string
	job     Job
	storeID string
	store   string
}

func newRunCmd(root *rootFlags) *cobra.Command {
	flags := &runFlags{}
	def := defaultJob()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sequence step over CSV files",
		Example: `  filterseq run --step step.xml --input rows.csv --output out.csv --copies 4
  filterseq run --step step.xml -i a.csv -i b.csv -o even.csv -o odd.csv --output-mode distribute
  filterseq run --job job.yaml --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := root.logger()
			if err != nil {
				return errors.Wrap(err, "unable to create logger")
			}
			defer logger.Sync() //nolint:errcheck

			job, err := flags.resolve(cmd)
			if err != nil {
				return err
			}

			return runJob(cmd.Context(), job, logger, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&flags.jobFile, "job", "", "YAML job file; flags override its values")
	fs.StringArrayVarP(&flags.job.Inputs, "input", "i", def.Inputs, "input CSV file, - for stdin; repeat to merge several files")
	fs.StringArrayVarP(&flags.job.Outputs, "output", "o", def.Outputs, "output CSV file, - for stdout; repeat to write several files")
	fs.StringVar(&flags.job.OutputMode, "output-mode", def.OutputMode, "with several outputs, copy every row to each of them or distribute the rows between them")
	fs.StringVarP(&flags.job.Step, "step", "s", "", "XML step settings")
	fs.StringVar(&flags.store, "store", "", "Badger directory holding the step settings")
	fs.StringVar(&flags.storeID, "step-id", "", "id of the step in the store")
	fs.IntVarP(&flags.job.Copies, "copies", "c", def.Copies, "number of concurrent copies of the step")
	fs.StringToStringVarP(&flags.job.Types, "type", "t", nil, "column types, e.g. id=integer")
	fs.StringToStringVar(&flags.job.Variables, "var", nil, "variables used by start_at and increment_by")
	fs.IntVar(&flags.job.FeedbackSize, "feedback-size", def.FeedbackSize, "rows between two progress logs, 0 disables them")
	fs.StringVar(&flags.job.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address during the run")
	fs.StringVar(&flags.job.Graph, "graph", "", "write the pipeline graph to this DOT file")
	fs.StringVar(&flags.job.Comma, "comma", def.Comma, "CSV field delimiter")

	return cmd
}

// resolve merges the job file with the flags set on the command line.
func (f *runFlags) resolve(cmd *cobra.Command) (*Job, error) {
	job, err := loadJob(f.jobFile)
	if err != nil {
		return nil, err
	}

	fs := cmd.Flags()
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("input", func() { job.Inputs = f.job.Inputs })
	set("output", func() { job.Outputs = f.job.Outputs })
	set("output-mode", func() { job.OutputMode = f.job.OutputMode })
	set("step", func() { job.Step = f.job.Step })
	set("copies", func() { job.Copies = f.job.Copies })
	set("feedback-size", func() { job.FeedbackSize = f.job.FeedbackSize })
	set("metrics-addr", func() { job.MetricsAddr = f.job.MetricsAddr })
	set("graph", func() { job.Graph = f.job.Graph })
	set("comma", func() { job.Comma = f.job.Comma })
	set("type", func() { job.Types = mergeMaps(job.Types, f.job.Types) })
	set("var", func() { job.Variables = mergeMaps(job.Variables, f.job.Variables) })
	if fs.Changed("store") || fs.Changed("step-id") {
		job.Repository = &Repository{Dir: f.store, StepID: f.storeID}
	}

	err = job.validate()
	if err != nil {
		return nil, err
	}

	return job, nil
}

func mergeMaps(dst, src map[string]string) map[string]string {
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}

	return dst
}

func openInput(path string, stdin io.Reader) (io.Reader, func() error, error) {
	if path == "-" {
		return stdin, func() error { return nil }, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "unable to open input %s", path)
	}

	return file, file.Close, nil
}

func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "-" {
		return stdout, func() error { return nil }, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "unable to create output %s", path)
	}

	return file, file.Close, nil
}

// closers closes files in reverse order of opening.
type closers []func() error

func (c closers) close() {
	for i := len(c) - 1; i >= 0; i-- {
		_ = c[i]()
	}
}

// openSources opens every input. The inputs must share the header of the first one, and their
// rows all carry the layout of the first one.
func openSources(paths []string, stdin io.Reader, comma rune, types map[string]row.Type) ([]*csvSource, closers, error) {
	var toClose closers
	srcs := make([]*csvSource, 0, len(paths))
	for _, path := range paths {
		in, closeIn, err := openInput(path, stdin)
		if err != nil {
			toClose.close()
			return nil, nil, err
		}
		toClose = append(toClose, closeIn)

		src, err := newCSVSource(in, comma, types)
		if err != nil {
			toClose.close()
			return nil, nil, errors.Wrapf(err, "input %s", path)
		}
		if len(srcs) > 0 {
			if !srcs[0].sameHeader(src) {
				toClose.close()
				return nil, nil, errors.Wrapf(errHeaderMismatch, "input %s", path)
			}
			src.layout = srcs[0].layout
		}
		srcs = append(srcs, src)
	}

	return srcs, toClose, nil
}

func openSinks(paths []string, stdout io.Writer, comma rune, layout *row.Layout) ([]*csvSink, closers, error) {
	var toClose closers
	sinks := make([]*csvSink, 0, len(paths))
	for _, path := range paths {
		out, closeOut, err := openOutput(path, stdout)
		if err != nil {
			toClose.close()
			return nil, nil, err
		}
		toClose = append(toClose, closeOut)

		dst, err := newCSVSink(out, comma, layout)
		if err != nil {
			toClose.close()
			return nil, nil, errors.Wrapf(err, "output %s", path)
		}
		sinks = append(sinks, dst)
	}

	return sinks, toClose, nil
}

// stepName numbers base when the job has several steps of the same kind.
func stepName(base string, i, total int) string {
	if total == 1 {
		return base
	}

	return fmt.Sprintf("%s %d", base, i+1)
}

// addInputs adds one root step per source, merged into a single step when there are several.
func addInputs(pipe *pipeline.Pipeline, srcs []*csvSource, bufferSize int) (*model.Step[row.Record], error) {
	roots := make([]*model.Step[row.Record], len(srcs))
	for i, src := range srcs {
		root, err := pipeline.AddRootStep(pipe, stepName("csv input", i, len(srcs)), src.emit, pipeline.StepBufferSize[row.Record](bufferSize))
		if err != nil {
			return nil, err
		}
		roots[i] = root
	}
	if len(roots) == 1 {
		return roots[0], nil
	}

	return pipeline.AddMerger(pipe, "csv inputs", roots...)
}

// addOutputs formats the rows and writes them to every sink. Several sinks either all receive
// every row or share the rows between them, depending on mode.
func addOutputs(pipe *pipeline.Pipeline, input *model.Step[row.Record], sinks []*csvSink, mode pipeline.SplitMode) error {
	steps := []*model.Step[row.Record]{input}
	if len(sinks) > 1 {
		splitter, err := pipeline.AddSplitter(pipe, "csv outputs", input, len(sinks), pipeline.SplitterMode[row.Record](mode))
		if err != nil {
			return err
		}
		steps = steps[:0]
		for {
			step, ok := splitter.Get()
			if !ok {
				break
			}
			steps = append(steps, step)
		}
	}

	for i, dst := range sinks {
		lines, err := pipeline.AddStepOneToOne(pipe, stepName("csv format", i, len(sinks)), steps[i], dst.format)
		if err != nil {
			return err
		}
		err = pipeline.AddSink(pipe, stepName("csv output", i, len(sinks)), lines, dst.write)
		if err != nil {
			return err
		}
	}

	return nil
}

// runJob reads the input CSV files, runs the copies of the sequence step and writes the output
// CSV files.
func runJob(ctx context.Context, job *Job, logger *zap.Logger, stdin io.Reader, stdout io.Writer) error {
	meta, err := job.meta(ctx, logger)
	if err != nil {
		return err
	}
	types, err := job.fieldTypes()
	if err != nil {
		return err
	}
	comma := []rune(job.Comma)[0]

	srcs, closeIn, err := openSources(job.Inputs, stdin, comma, types)
	if err != nil {
		return err
	}
	defer closeIn.close()

	sinks, closeOut, err := openSinks(job.Outputs, stdout, comma, meta.OutputLayout(srcs[0].Layout(), ""))
	if err != nil {
		return err
	}
	defer closeOut.close()

	registry := counter.NewRegistry()
	msr := measure.NewDefaultMeasure()
	plog := pipelogger.New(logger)
	opts := []model.PipelineOption{measure.PipelineMeasure(msr), plog}
	if job.Graph != "" {
		opts = append(opts, drawer.PipelineDrawer(drawer.NewDOTDrawer(job.Graph), msr))
	}

	if job.MetricsAddr != "" {
		stopMetrics, err := serveMetrics(job.MetricsAddr, logger, counter.NewCollector(registry), measure.NewCollector(msr))
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	pipe, err := pipeline.New(ctx, opts...)
	if err != nil {
		return err
	}

	rows, err := addInputs(pipe, srcs, job.Copies)
	if err != nil {
		return err
	}

	seqRows, stages, err := sequence.AddStep(ctx, pipe, "sequence", rows, meta, registry, job.Copies,
		sequence.WithLogger(plog.Logger().With(zap.String("step", "sequence"))),
		sequence.WithVariables(job.variables()),
		sequence.WithFeedbackSize(job.FeedbackSize),
	)
	if err != nil {
		return err
	}

	err = addOutputs(pipe, seqRows, sinks, job.splitMode())
	if err != nil {
		return err
	}

	// Run returns once every step has stopped, so no sink is still writing.
	err = pipe.Run()
	for _, dst := range sinks {
		dst.Done()
	}
	if err != nil {
		return errors.Wrap(err, "sequence run failed")
	}

	for i, dst := range sinks {
		err = dst.Err()
		if err != nil {
			return errors.Wrapf(err, "output %s", job.Outputs[i])
		}
	}

	perCopy := make([]int64, len(stages))
	for i, stage := range stages {
		perCopy[i] = stage.Processed()
	}
	logger.Info("sequence finished", zap.Int64s("rows_per_copy", perCopy))

	return nil
}

// serveMetrics exposes the collectors on addr until the returned function is called.
func serveMetrics(addr string, logger *zap.Logger, collectors ...prometheus.Collector) (func(), error) {
	reg := prometheus.NewRegistry()
	for _, c := range collectors {
		err := reg.Register(c)
		if err != nil {
			return nil, errors.Wrap(err, "unable to register collector")
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to listen on %s", addr)
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		err := srv.Serve(lis)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", lis.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(ctx)
	}, nil
}
