// Package consumer hosts the workers draining a bean queue.  Every consumed
// bean is validated, bound to a processor and executed; the consumer keeps
// track of running processors so that a queue can be paused, resumed or
// stopped as a whole.
package consumer
