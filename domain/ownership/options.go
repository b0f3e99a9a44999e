package ownership

// Option configures a managed resource at construction time.
type Option[T any] func(*options[T])

type options[T any] struct {
	release func(*T) error
	tracker Tracker
}

// WithDeleter replaces the default teardown.
func WithDeleter[T any](d Deleter[T]) Option[T] {
	return func(o *options[T]) {
		if d == nil {
			return
		}
		o.release = func(p *T) error {
			d(p)
			return nil
		}
	}
}

// WithTracker reports the resource's lifecycle events to t.
func WithTracker[T any](t Tracker) Option[T] {
	return func(o *options[T]) {
		o.tracker = t
	}
}

func buildOptions[T any](opts []Option[T], fallback func(*T) error) options[T] {
	o := options[T]{release: fallback}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func (o *options[T]) descriptor() descriptor {
	return descriptor{typeName: typeNameOf[T](), tracker: o.tracker}
}
