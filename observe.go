package jsonpatch

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/google/uuid"
)

// ErrNotObservable is returned by Observe for values without a stable
// identity. Only non-nil maps and pointers to non-zero-size values can be
// observed.
var ErrNotObservable = errors.New("object cannot be observed")

// Subscriber receives the patches produced for an observed object.
type Subscriber interface {
	OnPatch(patch Patch)
}

// SubscriberFunc adapts a function to Subscriber.
//
// Functions are not comparable, so every Observe call with a SubscriberFunc
// creates a new Observer. Use a pointer type implementing Subscriber to have
// repeated Observe calls return the same Observer.
type SubscriberFunc func(patch Patch)

func (f SubscriberFunc) OnPatch(patch Patch) { f(patch) }

// Registry tracks the mirrors of observed objects. Each observed object has
// at most one mirror, shared by all of its observers and keyed by the
// object's identity.
//
// The registry does not keep observed objects alive: mirrors reference their
// observers weakly and are dropped once the last observer is unobserved or
// garbage collected.
type Registry struct {
	mu      sync.Mutex
	mirrors map[uintptr]*mirror
	logger  *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for mirror lifecycle events and failed
// scheduled flushes. The default discards everything.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		mirrors: make(map[uintptr]*mirror),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// mirror is the last known state of an observed object.
type mirror struct {
	key uintptr

	// mu serializes generate cycles, which read and advance snapshot.
	mu       sync.Mutex
	snapshot any

	// observers is guarded by Registry.mu.
	observers []weak.Pointer[Observer]
}

func (m *mirror) live() []*Observer {
	var out []*Observer
	for _, wp := range m.observers {
		if o := wp.Value(); o != nil {
			out = append(out, o)
		}
	}
	return out
}

// Observer buffers the changes of one observed object for one subscriber.
type Observer struct {
	id         uuid.UUID
	object     any
	subscriber Subscriber
	scheduler  Scheduler
	registry   *Registry
	mirror     *mirror
	closed     atomic.Bool

	// patches is guarded by mirror.mu.
	patches Patch
}

// ObserveOption configures an Observer.
type ObserveOption func(*Observer)

// WithScheduler lets Notify trigger deferred flushes through s. Schedulers
// are only used by observers that have a subscriber.
func WithScheduler(s Scheduler) ObserveOption {
	return func(o *Observer) { o.scheduler = s }
}

// ID identifies the observer in log records.
func (o *Observer) ID() string { return o.id.String() }

// Object returns the observed object.
func (o *Observer) Object() any { return o.object }

// Generate is shorthand for o's registry Generate.
func (o *Observer) Generate() (Patch, error) { return o.registry.Generate(o) }

// Unobserve is shorthand for o's registry Unobserve.
func (o *Observer) Unobserve() error { return o.registry.Unobserve(o) }

// Notify tells the observer that the object may have changed, typically
// from an event handler of the host. With a scheduler and a subscriber the
// observer flushes when the scheduler decides to; otherwise Notify does nothing.
func (o *Observer) Notify() {
	if o.scheduler == nil || o.subscriber == nil || o.closed.Load() {
		return
	}
	o.scheduler.Trigger(o.flush)
}

func (o *Observer) flush() {
	if o.closed.Load() {
		return
	}
	if _, err := o.registry.Generate(o); err != nil {
		o.registry.logger.Error("scheduled flush failed", "observer", o.id, "error", err)
	}
}

// Generate runs a dirty check for o: it compares the mirror of o's object to
// the object, applies the difference to the mirror and returns the patch.
// A subscriber, if any, receives the same patch when it is not empty.
func Generate(o *Observer) (Patch, error) { return o.registry.Generate(o) }

// Unobserve flushes and detaches o.
func Unobserve(o *Observer) error { return o.registry.Unobserve(o) }

// Observe starts observing object, which must be a non-nil map or pointer.
// The first observation of an object deep-copies it into a new mirror.
//
// Observing an object again with an equal subscriber (or again with none)
// returns the existing Observer. Subscribers of different or incomparable
// types always get a new Observer.
func (r *Registry) Observe(object any, sub Subscriber, opts ...ObserveOption) (*Observer, error) {
	key, err := identity(object)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.mirrors[key]
	var live []*Observer
	if m != nil {
		live = m.live()
		if len(live) == 0 {
			// Every observer was collected before its cleanup ran; the
			// address may now belong to a different object.
			delete(r.mirrors, key)
			m = nil
		}
	}
	if m == nil {
		snapshot, err := cloneDocument(object)
		if err != nil {
			return nil, fmt.Errorf("failed to copy observed object: %w", err)
		}
		m = &mirror{key: key, snapshot: snapshot}
		r.mirrors[key] = m
		r.logger.Debug("mirror created", "type", fmt.Sprintf("%T", object))
	}
	for _, o := range live {
		if !o.closed.Load() && sameSubscriber(o.subscriber, sub) {
			return o, nil
		}
	}

	o := &Observer{
		id:         uuid.New(),
		object:     object,
		subscriber: sub,
		registry:   r,
		mirror:     m,
	}
	for _, opt := range opts {
		opt(o)
	}
	m.observers = append(m.observers, weak.Make(o))
	runtime.AddCleanup(o, r.prune, key)
	r.logger.Debug("observer registered", "observer", o.id, "observers", len(live)+1)
	return o, nil
}

// Generate runs a dirty check for o. See the package-level Generate.
func (r *Registry) Generate(o *Observer) (Patch, error) {
	m := o.mirror
	m.mu.Lock()
	patch, err := Compare(m.snapshot, o.object)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if len(patch) > 0 {
		res, err := ApplyPatch(m.snapshot, patch, WithMutation())
		if err != nil {
			m.mu.Unlock()
			return nil, fmt.Errorf("failed to update mirror: %w", err)
		}
		m.snapshot = res.NewDocument
	}
	o.patches = append(o.patches, patch...)
	batch := o.patches
	o.patches = nil
	m.mu.Unlock()

	if batch == nil {
		return Patch{}, nil
	}
	if o.subscriber != nil {
		o.subscriber.OnPatch(batch)
	}
	return batch, nil
}

// Unobserve performs a final Generate for o, stops its scheduler and detaches
// it from its mirror. The mirror is dropped with its last observer. The error
// of the final Generate is returned after o has been detached.
func (r *Registry) Unobserve(o *Observer) error {
	if o.closed.Swap(true) {
		return nil
	}
	_, err := r.Generate(o)
	if o.scheduler != nil {
		o.scheduler.Stop()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	m := o.mirror
	kept := m.observers[:0]
	for _, wp := range m.observers {
		if v := wp.Value(); v != nil && v != o {
			kept = append(kept, wp)
		}
	}
	m.observers = kept
	if len(kept) == 0 && r.mirrors[m.key] == m {
		delete(r.mirrors, m.key)
		r.logger.Debug("mirror released", "observer", o.id)
	}
	return err
}

// Len returns the number of mirrors currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mirrors)
}

// prune drops observers of the mirror at key that have been collected.
func (r *Registry) prune(key uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.mirrors[key]
	if m == nil {
		return
	}
	kept := m.observers[:0]
	for _, wp := range m.observers {
		if wp.Value() != nil {
			kept = append(kept, wp)
		}
	}
	m.observers = kept
	if len(kept) == 0 {
		delete(r.mirrors, key)
		r.logger.Debug("mirror released after collection")
	}
}

func identity(object any) (uintptr, error) {
	v := reflect.ValueOf(object)
	switch v.Kind() {
	case reflect.Map, reflect.Pointer:
		if v.IsNil() {
			return 0, fmt.Errorf("%w: nil %T", ErrNotObservable, object)
		}
		// Pointers to zero-size values may all share one address.
		if v.Kind() == reflect.Pointer && v.Type().Elem().Size() == 0 {
			return 0, fmt.Errorf("%w: %T points to a zero-size value", ErrNotObservable, object)
		}
		return uintptr(v.UnsafePointer()), nil
	}
	return 0, fmt.Errorf("%w: %T has no identity", ErrNotObservable, object)
}

func sameSubscriber(a, b Subscriber) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	t := reflect.TypeOf(a)
	if t != reflect.TypeOf(b) || !t.Comparable() {
		return false
	}
	return a == b
}
