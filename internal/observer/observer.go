// Package observer provides the registration and notification core shared by
// every station component: an ordered identity registry, a push subject that
// hands the recorded value to each observer, and a pull subject whose
// observers fetch the value back through a Source.
package observer

import (
	"errors"
	"log/slog"
)

var (
	// ErrUnseeded is returned when a value is requested before the first Record.
	ErrUnseeded = errors.New("observer: subject has no recorded value yet")
	// ErrNilObserver is returned when registering a nil handle.
	ErrNilObserver = errors.New("observer: nil observer")
	// ErrDuplicateObserver is returned when a handle is registered twice.
	ErrDuplicateObserver = errors.New("observer: observer already registered")
)

// Observer receives the recorded value with every notification.
type Observer[T any] interface {
	Update(value T)
}

// Puller is notified without a payload and fetches the current value through
// the Source it was built with.
type Puller interface {
	Update() error
}

// Source gives read access to the most recently recorded value.
type Source[T any] interface {
	Latest() (T, error)
}

// Func adapts a function to Observer. Register the returned pointer; it is the
// handle later passed to Remove.
type Func[T any] struct {
	fn func(T)
}

func NewFunc[T any](fn func(T)) *Func[T] {
	return &Func[T]{fn: fn}
}

func (f *Func[T]) Update(value T) {
	f.fn(value)
}

// PullFunc adapts a function to Puller.
type PullFunc struct {
	fn func() error
}

func NewPullFunc(fn func() error) *PullFunc {
	return &PullFunc{fn: fn}
}

func (f *PullFunc) Update() error {
	return f.fn()
}

type options[T any] struct {
	logger    *slog.Logger
	validator func(T) error
}

// Option configures a Subject or PullSubject.
type Option[T any] func(*options[T])

// WithLogger sets the logger used for registry and notification debug output.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(o *options[T]) {
		o.logger = logger
	}
}

// WithValidator rejects values before they replace the recorded one.
func WithValidator[T any](validate func(T) error) Option[T] {
	return func(o *options[T]) {
		o.validator = validate
	}
}

func buildOptions[T any](opts []Option[T]) options[T] {
	o := options[T]{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
