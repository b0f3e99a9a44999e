// Package memory provides the recycling side of resource ownership:
// typed object pools, a lock-free ring of retired objects and an epoch
// clock that decides when a retired object may be reused.
//
// A pooled object released by its last owner is not put straight back in
// the pool. It is retired, stamped with the current epoch, and only handed
// out again once every reader that could still be looking at it has left
// its read section. Dropping a retired object instead of recycling it is
// always safe: the garbage collector keeps it alive for as long as anyone
// still points at it.
//
// The package has no dependencies beyond the standard library; its deleters
// are plain func(*T) values that the ownership package accepts directly.
package memory
