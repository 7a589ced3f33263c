package timing

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sarchlab/trialclock/graycode"
	"github.com/sarchlab/trialclock/hooking"
)

// StatusWriter is the digital output that carries sync codes to the
// acquisition device.
type StatusWriter interface {
	WriteStatusCode(code uint32)
}

// RecordStore is the experiment-level store that receives the records of a
// trial when it commits or aborts. TransferRecords is called on the clock
// goroutine and must return quickly.
type RecordStore interface {
	TransferRecords(records []*EventRecord)
}

// Hook positions raised by the clock. Hooks run on the clock goroutine with
// the clock lock held and must not call back into the clock.
var (
	// HookPosBeforeFire carries the *EventRecord of the firing event, before
	// its immediate routine runs.
	HookPosBeforeFire = &hooking.HookPos{Name: "BeforeFire"}

	// HookPosAfterFire carries the *EventRecord after the next event has
	// been scheduled.
	HookPosAfterFire = &hooking.HookPos{Name: "AfterFire"}

	// HookPosTrialBegin carries the *Trial that became current.
	HookPosTrialBegin = &hooking.HookPos{Name: "TrialBegin"}

	// HookPosTrialCommit carries the committed *Trial.
	HookPosTrialCommit = &hooking.HookPos{Name: "TrialCommit"}

	// HookPosTrialAbort carries the aborted *Trial, with the reason as
	// detail.
	HookPosTrialAbort = &hooking.HookPos{Name: "TrialAbort"}

	// HookPosStaleTrigger carries the *AwaitEvent whose trigger arrived
	// after its arm cycle ended.
	HookPosStaleTrigger = &hooking.HookPos{Name: "StaleTrigger"}
)

type clockState int

const (
	clockCreated clockState = iota
	clockRunning
	clockStopped
)

// Snapshot is a consistent copy of the scheduler state.
type Snapshot struct {
	Now          VTimeInTick `json:"now"`
	Running      bool        `json:"running"`
	HasPending   bool        `json:"has_pending"`
	Pending      string      `json:"pending,omitempty"`
	PendingAt    VTimeInTick `json:"pending_at,omitempty"`
	ArmedWaitID  uint64      `json:"armed_wait_id,omitempty"`
	CurrentTrial string      `json:"current_trial,omitempty"`
	LastFired    string      `json:"last_fired,omitempty"`
}

// A Clock is the authority that fires events. A single clock goroutine owns
// the tick counter, the pending slot, the armed await and the current trial.
// Other goroutines change them only by posting messages, which the clock
// goroutine handles before the next tick.
type Clock struct {
	*hooking.HookableBase

	source      TickSource
	sink        StatusWriter
	store       RecordStore
	dispatcher  Dispatcher
	codeFactory func(width int) (graycode.Source, error)
	logger      *log.Logger

	stateLock sync.Mutex
	state     clockState
	msgs      chan func()
	stopCh    chan struct{}
	done      chan struct{}

	// Owned by the clock goroutine.
	barriers []chan struct{}

	now atomic.Uint64

	// Guarded by lock. Written on the clock goroutine only.
	lock        sync.Mutex
	codes       graycode.Source
	pending     *Event
	lastFired   *Event
	current     *Trial
	armed       *AwaitEvent
	armedWaitID uint64
	nextWaitID  uint64
}

// Start validates the configuration, clears the sync output and starts
// ticking. Starting a running clock does nothing; a stopped clock cannot be
// restarted.
func (c *Clock) Start(period time.Duration, codeWidth int) error {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	switch c.state {
	case clockRunning:
		return nil
	case clockStopped:
		return ErrAlreadyStopped
	}

	if period <= 0 {
		return fmt.Errorf("%w: tick period must be positive, got %s",
			ErrConfiguration, period)
	}

	codes, err := c.codeFactory(codeWidth)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	c.lock.Lock()
	c.codes = codes
	c.lock.Unlock()

	c.sink.WriteStatusCode(0)

	err = c.source.Start(period)
	if err != nil {
		return err
	}

	c.state = clockRunning
	go c.loop(c.source.C())

	return nil
}

// Stop halts the tick source and waits for the clock goroutine to exit. No
// event fires after Stop returns.
func (c *Clock) Stop() {
	c.stateLock.Lock()
	prev := c.state
	c.state = clockStopped
	c.stateLock.Unlock()

	if prev != clockRunning {
		return
	}

	close(c.stopCh)
	c.source.Stop()
	<-c.done
}

// Running tells whether the clock goroutine is running.
func (c *Clock) Running() bool {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	return c.state == clockRunning
}

// Now returns the current tick.
func (c *Clock) Now() VTimeInTick {
	return VTimeInTick(c.now.Load())
}

// CurrentTrial returns the trial that is current, nil between trials. The
// value may be one tick old by the time the caller looks at it.
func (c *Clock) CurrentTrial() *Trial {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.current
}

// Snapshot returns a consistent copy of the scheduler state.
func (c *Clock) Snapshot() Snapshot {
	running := c.Running()

	c.lock.Lock()
	defer c.lock.Unlock()

	s := Snapshot{
		Now:         c.Now(),
		Running:     running,
		ArmedWaitID: c.armedWaitID,
	}

	if c.pending != nil {
		s.HasPending = true
		s.Pending = c.pending.name
		s.PendingAt = c.pending.ScheduledTime()
	}

	if c.current != nil {
		s.CurrentTrial = c.current.name
	}

	if c.lastFired != nil {
		s.LastFired = c.lastFired.name
	}

	return s
}

// AbortAny aborts whichever trial is current at the next tick.
func (c *Clock) AbortAny(reason string) {
	_ = c.post(func() { c.scheduleAbort(reason, nil) })
}

// Barrier returns after every message posted before it, and the tick being
// processed, have been handled by the clock goroutine.
func (c *Clock) Barrier(ctx context.Context) error {
	reached := make(chan struct{})

	err := c.post(func() { c.barriers = append(c.barriers, reached) })
	if err != nil {
		return err
	}

	select {
	case <-reached:
		return nil
	case <-c.done:
		return ErrAlreadyStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post hands msg to the clock goroutine.
func (c *Clock) post(msg func()) error {
	c.stateLock.Lock()
	state := c.state
	c.stateLock.Unlock()

	switch state {
	case clockCreated:
		return ErrClockNotRunning
	case clockStopped:
		return ErrAlreadyStopped
	}

	select {
	case c.msgs <- msg:
		return nil
	case <-c.stopCh:
		return ErrAlreadyStopped
	}
}

func (c *Clock) loop(ticks <-chan struct{}) {
	defer close(c.done)

	for {
		c.drainMessages()
		c.releaseBarriers()

		select {
		case <-c.stopCh:
			return
		case msg := <-c.msgs:
			msg()
		case _, ok := <-ticks:
			if !ok {
				return
			}

			// A message that became ready together with the tick still goes
			// first. Barriers are released only after the tick.
			c.drainMessages()
			c.onTick()
		}
	}
}

func (c *Clock) drainMessages() {
	for {
		select {
		case msg := <-c.msgs:
			msg()
		default:
			return
		}
	}
}

func (c *Clock) releaseBarriers() {
	for _, b := range c.barriers {
		close(b)
	}
	c.barriers = nil
}

func (c *Clock) onTick() {
	c.lock.Lock()

	now := VTimeInTick(c.now.Add(1))

	evt := c.pending
	if evt == nil || evt.ScheduledTime() > now {
		c.lock.Unlock()
		return
	}

	rec := c.fire(evt, now)

	c.lock.Unlock()

	if evt.deferred != nil {
		deferred := evt.deferred
		c.dispatcher.Dispatch(func() { deferred(rec) })
	}
}

// fire runs with the clock lock held.
func (c *Clock) fire(evt *Event, now VTimeInTick) *EventRecord {
	c.pending = nil
	c.lastFired = evt
	c.disarm()

	evt.lastFiredTime.Store(uint64(now))
	rec := newEventRecord(evt, now, time.Now())

	trial := c.current
	if trial != nil {
		rec.trial = trial.name
		rec.iteration = trial.CurrentCount()
	}

	if evt.identity != nil {
		rec.code = c.codes.Next()
		c.sink.WriteStatusCode(rec.code)

		if trial != nil {
			trial.appendRecord(rec)
		}
	}

	c.invokeHook(HookPosBeforeFire, rec, nil)

	next := c.runImmediate(evt, rec)
	if next != nil {
		at := now
		pending := next.arm(c)
		if pending != nil {
			at += pending.Delay()
		}
		c.schedule(pending, at)
	}

	c.invokeHook(HookPosAfterFire, rec, nil)

	return rec
}

// runImmediate turns a panicking immediate routine into an abort of the
// current trial.
func (c *Clock) runImmediate(evt *Event, rec *EventRecord) (next Schedulable) {
	if evt.immediate == nil {
		return nil
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}

		c.logger.Printf("timing: immediate routine of %s panicked at tick %d: %v",
			evt.name, rec.tick, r)

		next = nil
		if c.current != nil {
			next = c.current.newAbortEvent(
				fmt.Sprintf("%s panicked: %v", evt.name, r))
		}
	}()

	return evt.immediate(rec)
}

// schedule places evt in the pending slot. A nil evt empties the slot.
func (c *Clock) schedule(evt *Event, at VTimeInTick) {
	c.pending = evt
	if evt != nil {
		evt.scheduledTime.Store(uint64(at))
	}
}

func (c *Clock) disarm() {
	if c.armed == nil {
		return
	}

	c.armed.trigger.detach()
	c.armed = nil
	c.armedWaitID = 0
}

func (c *Clock) scheduleBeginTrial(
	first Schedulable,
	trial *Trial,
	delay *VTimeInTick,
) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.current != nil {
		return fmt.Errorf("%w: cannot begin %s while %s is current",
			ErrConcurrentTrial, trial.name, c.current.name)
	}

	err := trial.start()
	if err != nil {
		return err
	}

	c.current = trial
	c.disarm()

	now := c.Now()
	evt := first.arm(c)

	at := now
	switch {
	case delay != nil:
		at += *delay
	case evt != nil:
		at += evt.Delay()
	}
	c.schedule(evt, at)

	c.invokeHook(HookPosTrialBegin, trial, nil)

	return nil
}

func (c *Clock) scheduleAbort(reason string, target *Trial) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.current == nil {
		return
	}

	if target != nil && target != c.current {
		return
	}

	c.disarm()
	c.schedule(c.current.newAbortEvent(reason), c.Now())
}

func (c *Clock) scheduleTriggerRelease(a *AwaitEvent, waitID uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.armed != a || c.armedWaitID != waitID {
		c.invokeHook(HookPosStaleTrigger, a, waitID)
		return
	}

	c.armed = nil
	c.armedWaitID = 0

	// A plain target fires on the next tick. A nested await schedules its
	// timeout the same way fire does.
	at := c.Now()
	next := a.target.arm(c)
	if _, nested := a.target.(*AwaitEvent); nested && next != nil {
		at += next.Delay()
	}
	c.schedule(next, at)
}

func (c *Clock) invokeHook(pos *hooking.HookPos, item, detail any) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   item,
		Detail: detail,
	})
}
