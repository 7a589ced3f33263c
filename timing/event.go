package timing

import "sync/atomic"

// VTimeInTick is a point in time, or a duration, counted in clock ticks.
type VTimeInTick uint64

// Identity describes a recordable event: the name under which its records are
// persisted and the group variables each record carries.
type Identity struct {
	Name      string
	GroupVars []string
}

// VoidedIdentity replaces the identity of every record produced by an aborted
// trial iteration.
var VoidedIdentity = &Identity{Name: "Voided"}

// ImmediateFunc is the time-critical part of an event. It runs on the clock
// goroutine while the clock lock is held and returns what to schedule next,
// or nil when the chain stops.
type ImmediateFunc func(rec *EventRecord) Schedulable

// DeferredFunc is the slow part of an event. It runs on the dispatcher after
// the clock has moved on and must only touch trial-local or UI-local state.
type DeferredFunc func(rec *EventRecord)

// Schedulable is anything that can occupy the clock's pending slot.
type Schedulable interface {
	// EventName returns a human readable name.
	EventName() string

	// arm prepares the schedulable to be pending and returns the event that
	// the clock should actually wait for. It runs on the clock goroutine.
	arm(c *Clock) *Event
}

// An Event is one schedulable unit of work.
//
// The same Event is usually scheduled many times within a trial. Its
// routines and identity must be configured before the event is scheduled for
// the first time.
type Event struct {
	name      string
	identity  *Identity
	immediate ImmediateFunc
	deferred  DeferredFunc

	delay         atomic.Uint64
	scheduledTime atomic.Uint64
	lastFiredTime atomic.Uint64
}

// NewEvent creates an event that fires delay ticks after being scheduled.
func NewEvent(name string, delay VTimeInTick) *Event {
	e := &Event{name: name}
	e.delay.Store(uint64(delay))

	return e
}

// WithIdentity makes the event recordable. Each firing writes a sync code and
// appends a record to the current trial.
func (e *Event) WithIdentity(id *Identity) *Event {
	e.identity = id
	return e
}

// WithImmediate sets the immediate routine.
func (e *Event) WithImmediate(f ImmediateFunc) *Event {
	e.immediate = f
	return e
}

// WithDeferred sets the deferred routine.
func (e *Event) WithDeferred(f DeferredFunc) *Event {
	e.deferred = f
	return e
}

// Then sets an immediate routine that always continues with next.
func (e *Event) Then(next Schedulable) *Event {
	e.immediate = func(*EventRecord) Schedulable { return next }
	return e
}

// Name returns the name of the event.
func (e *Event) Name() string {
	return e.name
}

// EventName returns the name of the event.
func (e *Event) EventName() string {
	return e.name
}

// Identity returns the recordable identity, nil if the event is not
// recordable.
func (e *Event) Identity() *Identity {
	return e.identity
}

// IsRecordable tells whether firing the event produces a persisted record.
func (e *Event) IsRecordable() bool {
	return e.identity != nil
}

// Delay returns the number of ticks between scheduling and firing.
func (e *Event) Delay() VTimeInTick {
	return VTimeInTick(e.delay.Load())
}

// SetDelay changes the delay used the next time the event is scheduled.
func (e *Event) SetDelay(d VTimeInTick) {
	e.delay.Store(uint64(d))
}

// ScheduledTime returns the tick at which the event was last due.
func (e *Event) ScheduledTime() VTimeInTick {
	return VTimeInTick(e.scheduledTime.Load())
}

// LastFiredTime returns the tick at which the event last fired.
func (e *Event) LastFiredTime() VTimeInTick {
	return VTimeInTick(e.lastFiredTime.Load())
}

func (e *Event) arm(_ *Clock) *Event {
	return e
}

var _ Schedulable = (*Event)(nil)
