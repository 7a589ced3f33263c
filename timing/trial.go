package timing

import (
	"context"
	"fmt"
	"sync"
)

// A Trial is one iteration of an event chain, opened by Begin and closed by
// the End event it hands out or by Abort. The same Trial is reused for all
// iterations of one kind of trial.
type Trial struct {
	name      string
	clock     *Clock
	first     Schedulable
	requested int

	onCleanup func(t *Trial, records []*EventRecord)
	onAbort   func(t *Trial, reason string)

	lock      sync.Mutex
	records   []*EventRecord
	current   int
	completed int
}

// NewTrial creates a trial that starts with first each time it begins.
func NewTrial(clock *Clock, name string, first Schedulable) *Trial {
	return &Trial{
		name:  name,
		clock: clock,
		first: first,
	}
}

// WithCleanup sets the function called on the dispatcher after the trial
// commits. It receives the committed records; the trial's own list is cleared
// by the next Begin, which may come first.
func (t *Trial) WithCleanup(f func(t *Trial, records []*EventRecord)) *Trial {
	t.onCleanup = f
	return t
}

// WithAbortHandler sets the function called on the dispatcher after the trial
// aborts.
func (t *Trial) WithAbortHandler(f func(t *Trial, reason string)) *Trial {
	t.onAbort = f
	return t
}

// WithRequestedTrials limits the number of iterations that can be committed.
// Zero means unlimited.
func (t *Trial) WithRequestedTrials(n int) *Trial {
	t.requested = n
	return t
}

// Name returns the name of the trial.
func (t *Trial) Name() string {
	return t.name
}

// Begin starts a new iteration with the delay of the first event.
//
// Begin waits until the clock goroutine accepted or rejected the request. It
// fails with ErrConcurrentTrial if any trial is current. If ctx ends before
// the clock answers, the request may still take effect.
func (t *Trial) Begin(ctx context.Context) error {
	return t.begin(ctx, nil)
}

// BeginAfter is like Begin but schedules the first event delay ticks from
// now, ignoring the event's own delay.
func (t *Trial) BeginAfter(ctx context.Context, delay VTimeInTick) error {
	return t.begin(ctx, &delay)
}

func (t *Trial) begin(ctx context.Context, delay *VTimeInTick) error {
	c := t.clock
	verdict := make(chan error, 1)

	err := c.post(func() {
		verdict <- c.scheduleBeginTrial(t.first, t, delay)
	})
	if err != nil {
		return err
	}

	select {
	case err := <-verdict:
		return err
	case <-c.done:
		return ErrAlreadyStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// End returns an event that commits the trial delay ticks after being
// scheduled. Immediate routines return it to close the chain. The event may be
// reused across iterations; each firing hands its own committed records to
// the cleanup function.
func (t *Trial) End(delay VTimeInTick) *Event {
	var lock sync.Mutex
	committed := make(map[*EventRecord][]*EventRecord)

	return NewEvent(t.name+".End", delay).
		WithImmediate(func(rec *EventRecord) Schedulable {
			records := t.commit()

			lock.Lock()
			committed[rec] = records
			lock.Unlock()

			return nil
		}).
		WithDeferred(func(rec *EventRecord) {
			lock.Lock()
			records := committed[rec]
			delete(committed, rec)
			lock.Unlock()

			if t.onCleanup != nil {
				t.onCleanup(t, records)
			}
		})
}

// Abort asks the clock to abort this trial at the next tick. It does nothing
// if this trial is not current.
func (t *Trial) Abort(reason string) {
	c := t.clock
	_ = c.post(func() { c.scheduleAbort(reason, t) })
}

func (t *Trial) newAbortEvent(reason string) *Event {
	return NewEvent(t.name+".Abort", 0).
		WithImmediate(func(*EventRecord) Schedulable {
			t.rollback(reason)
			return nil
		}).
		WithDeferred(func(*EventRecord) {
			if t.onAbort != nil {
				t.onAbort(t, reason)
			}
		})
}

// start runs on the clock goroutine once the clock accepted the trial.
func (t *Trial) start() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.requested > 0 && t.completed >= t.requested {
		return fmt.Errorf("%w: %s completed %d of %d",
			ErrNoMoreTrials, t.name, t.completed, t.requested)
	}

	t.current++
	t.records = nil

	return nil
}

func (t *Trial) appendRecord(rec *EventRecord) {
	t.lock.Lock()
	t.records = append(t.records, rec)
	t.lock.Unlock()
}

// commit runs on the clock goroutine. The records stay readable from the
// trial until the next Begin.
func (t *Trial) commit() []*EventRecord {
	c := t.clock

	t.lock.Lock()
	t.completed = t.current
	records := make([]*EventRecord, len(t.records))
	copy(records, t.records)
	t.lock.Unlock()

	c.current = nil
	c.store.TransferRecords(records)
	c.invokeHook(HookPosTrialCommit, t, nil)

	return records
}

// rollback runs on the clock goroutine.
func (t *Trial) rollback(reason string) {
	c := t.clock

	t.lock.Lock()
	t.current = t.completed
	records := t.records
	t.records = nil
	t.lock.Unlock()

	for _, rec := range records {
		rec.void()
	}

	c.current = nil
	c.store.TransferRecords(records)
	c.invokeHook(HookPosTrialAbort, t, reason)
}

// CurrentCount returns the number of iterations begun and not aborted.
func (t *Trial) CurrentCount() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.current
}

// CompletedCount returns the number of committed iterations.
func (t *Trial) CompletedCount() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.completed
}

// Remaining returns how many iterations are still requested, -1 if the trial
// is unlimited.
func (t *Trial) Remaining() int {
	if t.requested == 0 {
		return -1
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	return t.requested - t.completed
}

// NumRecords returns the number of records in the current iteration.
func (t *Trial) NumRecords() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.records)
}

// Records returns a copy of the record list of the current iteration.
func (t *Trial) Records() []*EventRecord {
	t.lock.Lock()
	defer t.lock.Unlock()

	records := make([]*EventRecord, len(t.records))
	copy(records, t.records)

	return records
}

// Record returns the record at index i. Negative indices count from the end,
// -1 being the most recent record.
func (t *Trial) Record(i int) (*EventRecord, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	n := len(t.records)
	idx := i
	if idx < 0 {
		idx += n
	}

	if idx < 0 || idx >= n {
		return nil, fmt.Errorf("%w: record index %d in trial %s with %d records",
			ErrLookup, i, t.name, n)
	}

	return t.records[idx], nil
}

// RecordByName returns the most recent record whose identity is name.
func (t *Trial) RecordByName(name string) (*EventRecord, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	for i := len(t.records) - 1; i >= 0; i-- {
		if t.records[i].IdentityName() == name {
			return t.records[i], nil
		}
	}

	return nil, fmt.Errorf("%w: record %q in trial %s", ErrLookup, name, t.name)
}

// GroupVar reads a group variable of the record at index i.
func (t *Trial) GroupVar(i int, gv string) (int, error) {
	rec, err := t.Record(i)
	if err != nil {
		return 0, err
	}

	return rec.GroupVar(gv)
}

// SetGroupVar writes a group variable of the record at index i.
func (t *Trial) SetGroupVar(i int, gv string, value int) error {
	rec, err := t.Record(i)
	if err != nil {
		return err
	}

	return rec.SetGroupVar(gv, value)
}

// GroupVarByName reads a group variable of the most recent record named name.
func (t *Trial) GroupVarByName(name, gv string) (int, error) {
	rec, err := t.RecordByName(name)
	if err != nil {
		return 0, err
	}

	return rec.GroupVar(gv)
}

// SetGroupVarByName writes a group variable of the most recent record named
// name.
func (t *Trial) SetGroupVarByName(name, gv string, value int) error {
	rec, err := t.RecordByName(name)
	if err != nil {
		return err
	}

	return rec.SetGroupVar(gv, value)
}
