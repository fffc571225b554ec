// Package processor executes beans.  A Processor is bound to exactly one bean
// and drives its lifecycle: leaf processors (Move, Monitor, Scan) call device
// collaborators while composite processors (SubTaskAtom, TaskBean) run their
// children on a dedicated active queue and fold child progress back into the
// parent through a QueueListener.
//
// Every state change is applied under the bean lock and published on the
// status topic as an immutable snapshot.  Changes carry their source so that
// commands sent by a parent to its children are never propagated back up.
package processor
