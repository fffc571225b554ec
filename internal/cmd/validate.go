package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viant/atomq/model/bean"
)

var validateCmd = &cobra.Command{
	Use:   "validate <plan>...",
	Short: "Check plans without running them",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	runtime, err := startRuntime(ctx)
	if err != nil {
		return err
	}
	defer runtime.Shutdown(ctx)
	var errs []error
	for _, location := range args {
		task, err := runtime.LoadPlan(ctx, location)
		if err == nil {
			err = validateTree(runtime.Validate, task)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%v: %w", location, err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%v: ok\n", location)
	}
	return errors.Join(errs...)
}

// validateTree validates a bean and every child it would spool
func validateTree(validate func(bean.Bean) error, aBean bean.Bean) error {
	if err := validate(aBean); err != nil {
		return fmt.Errorf("%v: %w", aBean.GetName(), err)
	}
	composite, ok := aBean.(bean.HasChildQueue)
	if !ok {
		return nil
	}
	for _, child := range composite.Children() {
		if err := validateTree(validate, child); err != nil {
			return err
		}
	}
	return nil
}
