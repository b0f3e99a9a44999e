// Package snapshot gives readers a consistent view of leased buffers and
// persists leak reports.
//
// A Reader pins the reclamation epoch for the duration of a read, so any
// buffer it can reach is not recycled underneath it. Reports list every
// managed resource that was still alive when they were taken; a report
// written at shutdown is the process's leak list.
package snapshot
