package timing

import (
	"sync"
	"sync/atomic"
)

// TriggerSource is where external notifications, such as key presses or
// stimulus onsets reported by the display, come from.
type TriggerSource interface {
	// Attach registers fn to be called whenever a notification of
	// eventType happens. The returned function removes the registration.
	Attach(eventType string, fn func()) (detach func())
}

// A Trigger binds one kind of notification of a source to the release of an
// AwaitEvent. It is attached at most once per arm cycle.
type Trigger struct {
	source    TriggerSource
	eventType string

	lock     sync.Mutex
	cycle    uint64
	detachFn func()
}

// NewTrigger creates a trigger listening to eventType on source.
func NewTrigger(source TriggerSource, eventType string) *Trigger {
	return &Trigger{
		source:    source,
		eventType: eventType,
	}
}

// EventType returns the kind of notification the trigger listens to.
func (t *Trigger) EventType() string {
	return t.eventType
}

// Attached tells whether the trigger is currently registered.
func (t *Trigger) Attached() bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.detachFn != nil
}

// attach registers fn for the arm cycle. A registration left from an earlier
// cycle is removed.
func (t *Trigger) attach(cycle uint64, fn func()) {
	t.lock.Lock()
	prev := t.detachFn
	t.cycle = cycle
	t.detachFn = t.source.Attach(t.eventType, fn)
	t.lock.Unlock()

	if prev != nil {
		prev()
	}
}

// detach removes the registration, whatever cycle it belongs to.
func (t *Trigger) detach() {
	t.lock.Lock()
	fn := t.detachFn
	t.detachFn = nil
	t.cycle = 0
	t.lock.Unlock()

	if fn != nil {
		fn()
	}
}

// detachCycle removes the registration only if it belongs to cycle.
func (t *Trigger) detachCycle(cycle uint64) bool {
	t.lock.Lock()
	if t.detachFn == nil || t.cycle != cycle {
		t.lock.Unlock()
		return false
	}

	fn := t.detachFn
	t.detachFn = nil
	t.cycle = 0
	t.lock.Unlock()

	fn()

	return true
}

// An AwaitEvent waits for a trigger. When armed, the clock schedules its
// timeout instead; whichever of the trigger and the timeout comes first wins.
// A trigger wins by replacing the pending timeout with the target.
type AwaitEvent struct {
	name    string
	target  Schedulable
	trigger *Trigger
	timeout *Event

	waitID atomic.Uint64
}

// NewAwaitEvent creates an AwaitEvent that continues with target when trigger
// fires.
func NewAwaitEvent(
	name string,
	target Schedulable,
	trigger *Trigger,
) *AwaitEvent {
	return &AwaitEvent{
		name:    name,
		target:  target,
		trigger: trigger,
	}
}

// WithTimeout sets the event that fires if the trigger does not come in time.
// Without a timeout the await waits until triggered or aborted.
func (a *AwaitEvent) WithTimeout(timeout *Event) *AwaitEvent {
	a.timeout = timeout
	return a
}

// EventName returns the name of the await.
func (a *AwaitEvent) EventName() string {
	return a.name
}

// Target returns what is scheduled when the trigger wins.
func (a *AwaitEvent) Target() Schedulable {
	return a.target
}

// Timeout returns the timeout event, nil if there is none.
func (a *AwaitEvent) Timeout() *Event {
	return a.timeout
}

// Trigger returns the trigger that releases the await.
func (a *AwaitEvent) Trigger() *Trigger {
	return a.trigger
}

// WaitID returns the ID assigned the last time the await was armed.
func (a *AwaitEvent) WaitID() uint64 {
	return a.waitID.Load()
}

func (a *AwaitEvent) arm(c *Clock) *Event {
	c.nextWaitID++
	id := c.nextWaitID

	a.waitID.Store(id)
	c.armed = a
	c.armedWaitID = id

	a.trigger.attach(id, func() { a.release(c, id) })

	if a.timeout == nil {
		return nil
	}

	return a.timeout.arm(c)
}

// release runs on the goroutine of the trigger source. A source may still
// call the handler of an old arm cycle after detaching it; such a call must
// not touch the registration of the current cycle. The clock reports it as
// stale.
func (a *AwaitEvent) release(c *Clock, id uint64) {
	a.trigger.detachCycle(id)

	_ = c.post(func() { c.scheduleTriggerRelease(a, id) })
}

var _ Schedulable = (*AwaitEvent)(nil)

// InputSource is an in-process TriggerSource. Fire may be called from any
// goroutine; attached functions run on the caller of Fire.
type InputSource struct {
	lock     sync.Mutex
	nextID   uint64
	handlers map[string]map[uint64]func()
}

// NewInputSource creates an InputSource with nothing attached.
func NewInputSource() *InputSource {
	return &InputSource{
		handlers: make(map[string]map[uint64]func()),
	}
}

// Attach registers fn for eventType.
func (s *InputSource) Attach(eventType string, fn func()) func() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.nextID++
	id := s.nextID

	if s.handlers[eventType] == nil {
		s.handlers[eventType] = make(map[uint64]func())
	}
	s.handlers[eventType][id] = fn

	return func() {
		s.lock.Lock()
		defer s.lock.Unlock()

		delete(s.handlers[eventType], id)
	}
}

// Fire notifies every function attached to eventType and returns how many
// were notified.
func (s *InputSource) Fire(eventType string) int {
	s.lock.Lock()
	fns := make([]func(), 0, len(s.handlers[eventType]))
	for _, fn := range s.handlers[eventType] {
		fns = append(fns, fn)
	}
	s.lock.Unlock()

	for _, fn := range fns {
		fn()
	}

	return len(fns)
}

// NumAttached returns the number of functions attached to eventType.
func (s *InputSource) NumAttached(eventType string) int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.handlers[eventType])
}

var _ TriggerSource = (*InputSource)(nil)
