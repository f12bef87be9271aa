package observer

import (
	"errors"
	"fmt"
	"sync"
)

// state holds the recorded value. cycle serialises record/notify so every
// observer sees the value that triggered its notification; mu guards reads
// from pull observers and other goroutines.
type state[T any] struct {
	cycle  sync.Mutex
	mu     sync.RWMutex
	latest T
	seeded bool
}

func (s *state[T]) store(v T) {
	s.mu.Lock()
	s.latest = v
	s.seeded = true
	s.mu.Unlock()
}

func (s *state[T]) load() (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.seeded {
		var zero T
		return zero, ErrUnseeded
	}
	return s.latest, nil
}

func (s *state[T]) isSeeded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seeded
}

// Subject pushes the recorded value to its observers.
//
// Observers are notified synchronously, one at a time, in registration order.
// Each cycle iterates a snapshot of the registry: Register and Remove calls
// made while a cycle is running take effect from the next cycle. Calling
// Record or Notify from inside an observer's Update deadlocks.
type Subject[T any] struct {
	registry Registry[Observer[T]]
	state    state[T]
	opts     options[T]
}

func NewSubject[T any](opts ...Option[T]) *Subject[T] {
	return &Subject[T]{opts: buildOptions(opts)}
}

// Register appends o to the notification order.
func (s *Subject[T]) Register(o Observer[T]) error {
	if err := s.registry.Register(o); err != nil {
		return err
	}
	s.opts.logger.Debug("observer registered", "observer", fmt.Sprintf("%T", o), "count", s.registry.Len())
	return nil
}

// Remove unregisters that exact handle. Absent handles are ignored.
func (s *Subject[T]) Remove(o Observer[T]) {
	if s.registry.Remove(o) {
		s.opts.logger.Debug("observer removed", "observer", fmt.Sprintf("%T", o), "count", s.registry.Len())
	}
}

// Len returns the number of registered observers.
func (s *Subject[T]) Len() int {
	return s.registry.Len()
}

// Seeded reports whether a value has been recorded.
func (s *Subject[T]) Seeded() bool {
	return s.state.isSeeded()
}

// Latest returns the recorded value, or ErrUnseeded before the first Record.
func (s *Subject[T]) Latest() (T, error) {
	return s.state.load()
}

// Record replaces the recorded value and then notifies every observer with it.
func (s *Subject[T]) Record(v T) error {
	if s.opts.validator != nil {
		if err := s.opts.validator(v); err != nil {
			return fmt.Errorf("record: %w", err)
		}
	}

	s.state.cycle.Lock()
	defer s.state.cycle.Unlock()

	s.state.store(v)
	s.deliver(v)
	return nil
}

// Notify re-delivers the recorded value. It returns ErrUnseeded when nothing
// has been recorded yet.
func (s *Subject[T]) Notify() error {
	s.state.cycle.Lock()
	defer s.state.cycle.Unlock()

	v, err := s.state.load()
	if err != nil {
		return err
	}
	s.deliver(v)
	return nil
}

func (s *Subject[T]) deliver(v T) {
	observers := s.registry.Snapshot()
	s.opts.logger.Debug("notifying observers", "count", len(observers))
	for _, o := range observers {
		o.Update(v)
	}
}

// PullSubject sends empty notifications; its observers read the value back
// through Latest. It shares Subject's ordering and snapshot rules.
type PullSubject[T any] struct {
	registry Registry[Puller]
	state    state[T]
	opts     options[T]
}

func NewPullSubject[T any](opts ...Option[T]) *PullSubject[T] {
	return &PullSubject[T]{opts: buildOptions(opts)}
}

func (s *PullSubject[T]) Register(p Puller) error {
	if err := s.registry.Register(p); err != nil {
		return err
	}
	s.opts.logger.Debug("puller registered", "observer", fmt.Sprintf("%T", p), "count", s.registry.Len())
	return nil
}

func (s *PullSubject[T]) Remove(p Puller) {
	if s.registry.Remove(p) {
		s.opts.logger.Debug("puller removed", "observer", fmt.Sprintf("%T", p), "count", s.registry.Len())
	}
}

func (s *PullSubject[T]) Len() int {
	return s.registry.Len()
}

func (s *PullSubject[T]) Seeded() bool {
	return s.state.isSeeded()
}

// Latest is the accessor pull observers call back into.
func (s *PullSubject[T]) Latest() (T, error) {
	return s.state.load()
}

// Record replaces the recorded value and then notifies every puller.
func (s *PullSubject[T]) Record(v T) error {
	if s.opts.validator != nil {
		if err := s.opts.validator(v); err != nil {
			return fmt.Errorf("record: %w", err)
		}
	}

	s.state.cycle.Lock()
	defer s.state.cycle.Unlock()

	s.state.store(v)
	return s.deliver()
}

// Notify sends an empty notification to every puller. It fails with
// ErrUnseeded before the first Record so no observer pulls an unset value.
func (s *PullSubject[T]) Notify() error {
	s.state.cycle.Lock()
	defer s.state.cycle.Unlock()

	if !s.state.isSeeded() {
		return ErrUnseeded
	}
	return s.deliver()
}

// deliver visits every puller and joins the errors they return.
func (s *PullSubject[T]) deliver() error {
	pullers := s.registry.Snapshot()
	s.opts.logger.Debug("notifying pullers", "count", len(pullers))
	var errs []error
	for _, p := range pullers {
		if err := p.Update(); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
