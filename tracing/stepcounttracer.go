package tracing

import (
	"sort"
	"sync"

	"github.com/sarchlab/trialclock/hooking"
	"github.com/sarchlab/trialclock/timing"
)

// StepCountTracer counts how many times each recordable event fired, by
// identity name, within traced trials.
type StepCountTracer struct {
	filter TrialFilter

	lock      sync.Mutex
	stepCount map[string]uint64
}

// NewStepCountTracer creates a new StepCountTracer.
func NewStepCountTracer(filter TrialFilter) *StepCountTracer {
	return &StepCountTracer{
		filter:    filter,
		stepCount: make(map[string]uint64),
	}
}

// StepNames returns the identity names seen so far, in sorted order.
func (t *StepCountTracer) StepNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	names := make([]string, 0, len(t.stepCount))
	for name := range t.stepCount {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// StepCount returns the number of firings of the identity called name.
func (t *StepCountTracer) StepCount(name string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.stepCount[name]
}

// Func counts recordable firings.
func (t *StepCountTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != timing.HookPosBeforeFire {
		return
	}

	rec, ok := ctx.Item.(*timing.EventRecord)
	if !ok || !rec.Event().IsRecordable() || !t.filter(rec.Trial()) {
		return
	}

	t.lock.Lock()
	t.stepCount[rec.IdentityName()]++
	t.lock.Unlock()
}
