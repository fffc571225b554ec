package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/atomq/model/bean"
)

var runTimeout time.Duration

var runCmd = &cobra.Command{
	Use:   "run [plan]",
	Short: "Run a plan, or the built-in sample when none is given",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlan,
}

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 5*time.Minute, "maximum time to wait for the job")
	rootCmd.AddCommand(runCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	runtime, err := startRuntime(ctx)
	if err != nil {
		return err
	}
	defer runtime.Shutdown(ctx)
	listener, err := printBroadcasts(runtime, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer runtime.Unsubscribe(listener)

	var task *bean.TaskBean
	if len(args) == 1 {
		task, err = runtime.LoadPlan(ctx, args[0])
	} else {
		task, err = sampleTask()
	}
	if err != nil {
		return err
	}
	id, err := runtime.Submit(ctx, task)
	if err != nil {
		return err
	}
	job, err := runtime.Wait(ctx, id, runTimeout)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(bean.Wrap(job), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// sampleTask aligns the sample stage, records the beam current and runs a line scan
func sampleTask() (*bean.TaskBean, error) {
	align, err := bean.NewSubTaskAtom("align",
		bean.NewMoveAtom("stage to origin", 5, map[string]interface{}{"x": 0.0, "y": 0.0}),
		bean.NewMoveAtom("rotate", 2, map[string]interface{}{"theta": 45.0}),
		bean.NewMonitorAtom("beam current", 1, "ring_current"),
	)
	if err != nil {
		return nil, err
	}
	request := &bean.ScanRequest{FilePath: "/data/line.nxs", Monitors: []string{"i0"}}
	for i := 0; i < 5; i++ {
		request.Points = append(request.Points, map[string]interface{}{"x": float64(i) * 0.1})
	}
	measure, err := bean.NewSubTaskAtom("measure", bean.NewScanAtom("line scan", 20, request))
	if err != nil {
		return nil, err
	}
	task, err := bean.NewTaskBean("sample alignment", align, measure)
	if err != nil {
		return nil, err
	}
	task.Beamline = "b24"
	task.UserName = os.Getenv("USER")
	task.HostName, _ = os.Hostname()
	return task, nil
}
