package ownership

import "time"

// EventKind names a lifecycle transition of a managed resource.
type EventKind uint8

const (
	// EventCreated: a resource came under management.
	EventCreated EventKind = iota + 1
	// EventPromoted: an Exclusive resource moved into a ControlBlock.
	EventPromoted
	// EventObjectDestroyed: the deleter ran.
	EventObjectDestroyed
	// EventBlockFreed: the last strong and weak reference are gone.
	EventBlockFreed
	// EventConstructFailed: a factory constructor returned an error.
	EventConstructFailed
	// EventDeleterError: the default teardown's Close returned an error.
	EventDeleterError
	// EventDetached: ownership was handed back to the caller.
	EventDetached
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventPromoted:
		return "promoted"
	case EventObjectDestroyed:
		return "object_destroyed"
	case EventBlockFreed:
		return "block_freed"
	case EventConstructFailed:
		return "construct_failed"
	case EventDeleterError:
		return "deleter_error"
	case EventDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// Event describes one lifecycle transition.
type Event struct {
	Kind   EventKind
	ID     uint64 // control block ID, or the exclusive owner's ID
	Type   string
	Shared bool // a ControlBlock manages the resource
	Array  bool
	Len    int
	Err    error
	At     time.Time
}

// Tracker observes lifecycle events. Track is called synchronously on the
// goroutine that caused the transition, often from inside a release path,
// so implementations must not block and must not touch the handle that
// triggered them.
type Tracker interface {
	Track(Event)
}

// TrackerFunc adapts a function to Tracker.
type TrackerFunc func(Event)

func (f TrackerFunc) Track(e Event) { f(e) }

// descriptor is the static information attached to a managed resource.
type descriptor struct {
	typeName string
	array    bool
	length   int
	tracker  Tracker
}

func (d *descriptor) emit(kind EventKind, id uint64, shared bool, err error) {
	if d.tracker == nil {
		return
	}
	d.tracker.Track(Event{
		Kind:   kind,
		ID:     id,
		Type:   d.typeName,
		Shared: shared,
		Array:  d.array,
		Len:    d.length,
		Err:    err,
		At:     time.Now(),
	})
}
