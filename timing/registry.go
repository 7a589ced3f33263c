package timing

import (
	"fmt"
	"sort"
	"sync"
)

// Routines pairs the immediate and the deferred routine of one event.
type Routines struct {
	Immediate ImmediateFunc
	Deferred  DeferredFunc
}

// A Registry maps event names to their routines. It is filled by ordinary
// code when the experiment is set up and then bound to the events.
type Registry struct {
	lock  sync.RWMutex
	table map[string]Routines
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{table: make(map[string]Routines)}
}

// Register adds the routines of the event called name. Either routine may be
// nil.
func (r *Registry) Register(
	name string,
	immediate ImmediateFunc,
	deferred DeferredFunc,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, exists := r.table[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRoutine, name)
	}

	r.table[name] = Routines{Immediate: immediate, Deferred: deferred}

	return nil
}

// Lookup returns the routines registered under name.
func (r *Registry) Lookup(name string) (Routines, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	routines, ok := r.table[name]
	if !ok {
		return Routines{}, fmt.Errorf("%w: routines of event %s", ErrLookup, name)
	}

	return routines, nil
}

// Bind sets the routines of each event from the entry with the event's name.
// Nothing is changed if any event has no entry.
func (r *Registry) Bind(events ...*Event) error {
	found := make([]Routines, len(events))

	for i, evt := range events {
		routines, err := r.Lookup(evt.name)
		if err != nil {
			return err
		}

		found[i] = routines
	}

	for i, evt := range events {
		evt.immediate = found[i].Immediate
		evt.deferred = found[i].Deferred
	}

	return nil
}

// Names returns the registered event names in sorted order.
func (r *Registry) Names() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	names := make([]string, 0, len(r.table))
	for name := range r.table {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
