package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/askiada/go-filter-sequence/pkg/config"
	"github.com/askiada/go-filter-sequence/pkg/config/repository"
)

var errCheckFailed = errors.New("check reported errors")

func loadStepFile(path string) (*config.Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read step file %s", path)
	}

	return config.LoadXML(data)
}

func newCheckCmd(root *rootFlags) *cobra.Command {
	var (
		jobFile string
		types   map[string]string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the step settings against the header of the input CSV files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := root.logger()
			if err != nil {
				return errors.Wrap(err, "unable to create logger")
			}
			defer logger.Sync() //nolint:errcheck

			job, err := loadJob(jobFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("step") {
				job.Step, _ = cmd.Flags().GetString("step")
			}
			if cmd.Flags().Changed("input") {
				job.Inputs, _ = cmd.Flags().GetStringArray("input")
			}
			job.Types = mergeMaps(job.Types, types)

			meta, err := job.meta(cmd.Context(), logger)
			if err != nil {
				return err
			}
			fieldTypes, err := job.fieldTypes()
			if err != nil {
				return err
			}

			srcs, closeIn, err := openSources(job.Inputs, cmd.InOrStdin(), []rune(job.Comma)[0], fieldTypes)
			if err != nil {
				return err
			}
			defer closeIn.close()

			remarks := meta.Check(srcs[0].Layout(), job.Inputs)
			for _, r := range remarks {
				fmt.Fprintf(cmd.OutOrStdout(), "%-5s %s\n", r.Severity, r.Message)
			}
			if config.HasErrors(remarks) {
				return errCheckFailed
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&jobFile, "job", "", "YAML job file")
	cmd.Flags().StringP("step", "s", "", "XML step settings")
	cmd.Flags().StringArrayP("input", "i", []string{"-"}, "input CSV file, - for stdin; repeat for several files")
	cmd.Flags().StringToStringVarP(&types, "type", "t", nil, "column types, e.g. id=integer")

	return cmd
}

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <step.xml>",
		Short: "Print step settings in the current XML form",
		Long:  "Reads step settings, including the older key list form of the condition, and prints them with the condition tree form.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := loadStepFile(args[0])
			if err != nil {
				return err
			}

			data, err := meta.MarshalIndent("", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))

			return err
		},
	}
}

func newSaveCmd(root *rootFlags) *cobra.Command {
	var store, stepID string

	cmd := &cobra.Command{
		Use:   "save <step.xml>",
		Short: "Save step settings into a Badger store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := root.logger()
			if err != nil {
				return errors.Wrap(err, "unable to create logger")
			}
			defer logger.Sync() //nolint:errcheck

			meta, err := loadStepFile(args[0])
			if err != nil {
				return err
			}
			err = meta.Validate()
			if err != nil {
				return err
			}

			db, err := repository.Open(store, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			return repository.SaveMeta(cmd.Context(), db, stepID, meta)
		},
	}

	cmd.Flags().StringVar(&store, "store", "", "Badger directory")
	cmd.Flags().StringVar(&stepID, "step-id", "", "id of the step in the store")
	_ = cmd.MarkFlagRequired("store")
	_ = cmd.MarkFlagRequired("step-id")

	return cmd
}
