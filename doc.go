// Package atomq provides a hierarchical queue processing engine for
// experiment jobs.
//
// A job is a TaskBean holding an ordered queue of SubTaskAtoms, each holding
// leaf atoms (moves, monitor reads, scans).  Jobs are submitted to the job
// queue; every composite spools its children onto its own active queue and
// aggregates their status broadcasts into its own progress.  Pause, resume
// and terminate requests propagate both down from operators and up from
// children.
//
// The root package wires the engine together:
//
//	srv, _ := atomq.New(atomq.WithPositioner(positioner))
//	rt := srv.Runtime()
//	_ = rt.Start(ctx)
//	task, _ := rt.LoadPlan(ctx, "align.yaml")
//	id, _ := rt.Submit(ctx, task)
//	job, _ := rt.Wait(ctx, id, time.Minute)
//
// Devices default to in-process dummies, see service/device/dummy.
package atomq
