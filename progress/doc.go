// Package progress folds the progress of a batch of child beans into a single
// parent percent.  Every child receives a weight proportional to its
// estimated run time; the tracker also keeps aggregated status counters for
// the batch so that callers can tell when every child concluded.
package progress
