// Package cmd implements the atomq command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/atomq"
	"github.com/viant/atomq/model/bean"
	"github.com/viant/atomq/service/device/dummy"
	"github.com/viant/atomq/service/event"
)

var (
	configURL string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "atomq",
	Short: "Hierarchical experiment queue runner",
	Long: `atomq runs task plans made of sub tasks and atoms (moves, monitor
reads, scans) against in-process dummy devices, printing every status
broadcast as the plan progresses.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configURL, "config", "c", "", "YAML config location (any afs URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine events at debug level")
}

// startRuntime creates and starts an engine with dummy devices
func startRuntime(ctx context.Context) (*atomq.Runtime, error) {
	config := atomq.DefaultConfig()
	if configURL != "" {
		var err error
		if config, err = atomq.LoadConfig(ctx, configURL); err != nil {
			return nil, err
		}
	}
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	srv, err := atomq.New(
		atomq.WithConfig(config),
		atomq.WithLogger(logger),
		atomq.WithPositioner(dummy.NewPositioner(100*time.Millisecond, "x", "y", "theta")),
		atomq.WithMonitor(dummy.NewMonitor(map[string]interface{}{"ring_current": 201.4, "i0": 0.82})),
	)
	if err != nil {
		return nil, err
	}
	runtime := srv.Runtime()
	if err = runtime.Start(ctx); err != nil {
		return nil, err
	}
	return runtime, nil
}

// printBroadcasts writes one line per status broadcast to w
func printBroadcasts(runtime *atomq.Runtime, w io.Writer) (*event.Listener[bean.Envelope], error) {
	return runtime.Subscribe(func(evt *event.Event[bean.Envelope]) {
		b := evt.Data.Bean
		fmt.Fprintf(w, "%-12s %-22s %-18s %6.2f%% %s\n", b.Kind(), b.GetName(), b.GetStatus(), b.GetPercentComplete(), b.GetMessage())
	})
}
