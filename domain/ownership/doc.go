// Package ownership provides counted ownership of managed resources.
//
// Three handle kinds share one lifetime protocol:
//
//   - Exclusive owns a resource alone and transfers it only by Move.
//   - Shared owns a resource together with other Shared handles through a
//     ControlBlock holding atomic strong and weak counters.
//   - Weak observes a Shared resource without keeping it alive and can be
//     promoted back to Shared while at least one strong owner remains.
//
// The resource is torn down exactly once, by its Deleter, when the last
// owner lets go. The default teardown calls Destroy or Close when the
// managed type implements them and then zeroes the value, so the garbage
// collector is left with nothing but unreachable bytes.
//
// Handles are plain values and Go will happily copy them. Copying a handle
// with = bypasses the counters; use Clone for another owner and Move to
// hand ownership over. `go vet` reports accidental copies through the
// embedded noCopy marker.
//
// A handle value is not safe for concurrent use, but distinct handles that
// share a ControlBlock may be used from any number of goroutines.
// Reference cycles between Shared handles leak: break them with Weak.
package ownership
