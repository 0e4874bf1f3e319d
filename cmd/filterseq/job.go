package main

import (
	"context"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/askiada/go-filter-sequence/pkg/config"
	"github.com/askiada/go-filter-sequence/pkg/config/repository"
	"github.com/askiada/go-filter-sequence/pkg/pipeline"
	"github.com/askiada/go-filter-sequence/pkg/row"
	"github.com/askiada/go-filter-sequence/pkg/variables"
)

var (
	errNoStepConfig  = errors.New("either a step file or a repository step is required")
	errTwoStepConfig = errors.New("a step file and a repository step cannot be used together")
	errStdioTwice    = errors.New("- can be used by a single input and a single output")
)

const (
	outputModeCopy       = "copy"
	outputModeDistribute = "distribute"
)

// Repository points at a step stored in a Badger attribute store.
type Repository struct {
	Dir    string `yaml:"dir" validate:"required"`
	StepID string `yaml:"step_id" validate:"required"`
}

// Job describes one run of the command. Every field can also be set from a flag.
type Job struct {
	Inputs       []string          `yaml:"inputs" validate:"min=1,dive,required"`
	Outputs      []string          `yaml:"outputs" validate:"min=1,dive,required"`
	OutputMode   string            `yaml:"output_mode" validate:"oneof=copy distribute"`
	Step         string            `yaml:"step"`
	Repository   *Repository       `yaml:"repository"`
	Copies       int               `yaml:"copies" validate:"gte=1"`
	Types        map[string]string `yaml:"types"`
	Variables    map[string]string `yaml:"variables"`
	FeedbackSize int               `yaml:"feedback_size" validate:"gte=0"`
	MetricsAddr  string            `yaml:"metrics_addr"`
	Graph        string            `yaml:"graph"`
	Comma        string            `yaml:"comma" validate:"len=1"`
}

var jobValidate = validator.New()

func defaultJob() *Job {
	return &Job{
		Inputs:       []string{"-"},
		Outputs:      []string{"-"},
		OutputMode:   outputModeCopy,
		Copies:       1,
		FeedbackSize: 50000,
		Comma:        ",",
	}
}

// loadJob reads a YAML job file on top of the defaults.
func loadJob(path string) (*Job, error) {
	job := defaultJob()
	if path == "" {
		return job, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read job file %s", path)
	}

	err = yaml.Unmarshal(data, job)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse job file %s", path)
	}

	return job, nil
}

func (j *Job) validate() error {
	err := jobValidate.Struct(j)
	if err != nil {
		return errors.Wrap(err, "invalid job")
	}

	switch {
	case j.Step == "" && j.Repository == nil:
		return errNoStepConfig
	case j.Step != "" && j.Repository != nil:
		return errTwoStepConfig
	case countStdio(j.Inputs) > 1 || countStdio(j.Outputs) > 1:
		return errStdioTwice
	}

	return nil
}

func countStdio(paths []string) int {
	n := 0
	for _, path := range paths {
		if path == "-" {
			n++
		}
	}

	return n
}

// splitMode maps the output mode to the way rows are dispatched between several outputs.
func (j *Job) splitMode() pipeline.SplitMode {
	if j.OutputMode == outputModeDistribute {
		return pipeline.SplitRoundRobin
	}

	return pipeline.SplitBroadcast
}

// meta loads the step settings from the step file or the repository.
func (j *Job) meta(ctx context.Context, logger *zap.Logger) (*config.Meta, error) {
	switch {
	case j.Step == "" && j.Repository == nil:
		return nil, errNoStepConfig
	case j.Repository == nil:
		return loadStepFile(j.Step)
	}

	store, err := repository.Open(j.Repository.Dir, logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return repository.ReadMeta(ctx, store, j.Repository.StepID)
}

// variables returns the job variables layered on top of the process environment.
func (j *Job) variables() *variables.Space {
	vars := variables.New(variables.FromEnviron())
	for name, value := range j.Variables {
		vars.Set(name, value)
	}

	return vars
}

// fieldTypes parses the declared column types. Undeclared columns are strings.
func (j *Job) fieldTypes() (map[string]row.Type, error) {
	out := make(map[string]row.Type, len(j.Types))
	for name, typeName := range j.Types {
		t, err := row.ParseType(strings.TrimSpace(typeName))
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", name)
		}
		out[name] = t
	}

	return out, nil
}
