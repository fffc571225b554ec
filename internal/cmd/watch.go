package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/viant/atomq/service/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Submit every plan dropped into a directory until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	runtime, err := startRuntime(ctx)
	if err != nil {
		return err
	}
	defer runtime.Shutdown(cmd.Context())
	listener, err := printBroadcasts(runtime, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer runtime.Unsubscribe(listener)

	watcher := watch.New(args[0], runtime, watch.WithOnSubmit(func(location, jobID string) {
		fmt.Fprintf(cmd.OutOrStdout(), "submitted %v as %v\n", location, jobID)
	}))
	return watcher.Run(ctx)
}
