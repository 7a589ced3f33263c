package timing

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// An EventRecord is created each time an event fires.
//
// Records of recordable events belong to the current trial until the trial
// commits or aborts, after which they belong to the record store. Group
// variables may be edited from any goroutine.
type EventRecord struct {
	event     *Event
	tick      VTimeInTick
	wallTime  time.Time
	code      uint32
	trial     string
	iteration int

	lock      sync.Mutex
	identity  *Identity
	groupVars map[string]int
}

func newEventRecord(evt *Event, tick VTimeInTick, wall time.Time) *EventRecord {
	rec := &EventRecord{
		event:    evt,
		tick:     tick,
		wallTime: wall,
		identity: evt.identity,
	}

	if evt.identity != nil {
		rec.groupVars = make(map[string]int, len(evt.identity.GroupVars))
		for _, gv := range evt.identity.GroupVars {
			rec.groupVars[gv] = 0
		}
	}

	return rec
}

// Event returns the event that produced the record.
func (r *EventRecord) Event() *Event {
	return r.event
}

// Tick returns the tick at which the event fired.
func (r *EventRecord) Tick() VTimeInTick {
	return r.tick
}

// WallTime returns the wall-clock time at which the event fired.
func (r *EventRecord) WallTime() time.Time {
	return r.wallTime
}

// Code returns the sync code written when the event fired, 0 if none.
func (r *EventRecord) Code() uint32 {
	return r.code
}

// Trial returns the name of the trial that was current when the event fired.
func (r *EventRecord) Trial() string {
	return r.trial
}

// Iteration returns the current-trial counter at the time the event fired.
func (r *EventRecord) Iteration() int {
	return r.iteration
}

// Identity returns the identity of the record. It becomes VoidedIdentity if
// the trial is aborted.
func (r *EventRecord) Identity() *Identity {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.identity
}

// IdentityName returns the name of the identity, empty if there is none.
func (r *EventRecord) IdentityName() string {
	id := r.Identity()
	if id == nil {
		return ""
	}

	return id.Name
}

// GroupVar returns the value of a group variable.
func (r *EventRecord) GroupVar(name string) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	v, ok := r.groupVars[name]
	if !ok {
		return 0, r.gvNotFound(name)
	}

	return v, nil
}

// SetGroupVar changes the value of a group variable.
func (r *EventRecord) SetGroupVar(name string, value int) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.groupVars[name]; !ok {
		return r.gvNotFound(name)
	}

	r.groupVars[name] = value

	return nil
}

// GroupVars returns a copy of all group variables.
func (r *EventRecord) GroupVars() map[string]int {
	r.lock.Lock()
	defer r.lock.Unlock()

	gvs := make(map[string]int, len(r.groupVars))
	for k, v := range r.groupVars {
		gvs[k] = v
	}

	return gvs
}

// GroupVarNames returns the names of the group variables in sorted order.
func (r *EventRecord) GroupVarNames() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	names := make([]string, 0, len(r.groupVars))
	for k := range r.groupVars {
		names = append(names, k)
	}
	sort.Strings(names)

	return names
}

func (r *EventRecord) gvNotFound(name string) error {
	idName := "<none>"
	if r.identity != nil {
		idName = r.identity.Name
	}

	return fmt.Errorf("%w: group variable %q on record %q",
		ErrLookup, name, idName)
}

func (r *EventRecord) void() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.identity = VoidedIdentity
	r.groupVars = map[string]int{}
}
