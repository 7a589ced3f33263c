package tracing

import (
	"sync"

	"github.com/sarchlab/trialclock/hooking"
	"github.com/sarchlab/trialclock/timing"
)

// DurationSummary holds the statistics of a TrialDurationTracer.
type DurationSummary struct {
	AverageTicks float64 `json:"average_ticks"`
	Committed    uint64  `json:"committed"`
	Aborted      uint64  `json:"aborted"`
}

// TrialDurationTracer measures how many ticks committed trials take, from
// Begin to the firing of their End event. Aborted trials are only counted.
type TrialDurationTracer struct {
	timeTeller TimeTeller
	filter     TrialFilter

	lock        sync.Mutex
	averageTime float64
	taskCount   uint64
	abortCount  uint64
	inflight    map[string]timing.VTimeInTick
}

// NewTrialDurationTracer creates a TrialDurationTracer.
func NewTrialDurationTracer(
	timeTeller TimeTeller,
	filter TrialFilter,
) *TrialDurationTracer {
	return &TrialDurationTracer{
		timeTeller: timeTeller,
		filter:     filter,
		inflight:   make(map[string]timing.VTimeInTick),
	}
}

// AverageTime returns the average duration of committed trials in ticks.
func (t *TrialDurationTracer) AverageTime() float64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.averageTime
}

// TotalCount returns the number of committed trials.
func (t *TrialDurationTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.taskCount
}

// AbortCount returns the number of aborted trials.
func (t *TrialDurationTracer) AbortCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.abortCount
}

// Summary returns all statistics at once.
func (t *TrialDurationTracer) Summary() DurationSummary {
	t.lock.Lock()
	defer t.lock.Unlock()

	return DurationSummary{
		AverageTicks: t.averageTime,
		Committed:    t.taskCount,
		Aborted:      t.abortCount,
	}
}

// Func follows the trial lifecycle.
func (t *TrialDurationTracer) Func(ctx hooking.HookCtx) {
	trial, ok := ctx.Item.(*timing.Trial)
	if !ok || !t.filter(trial.Name()) {
		return
	}

	switch ctx.Pos {
	case timing.HookPosTrialBegin:
		t.startTrial(trial.Name())
	case timing.HookPosTrialCommit:
		t.endTrial(trial.Name())
	case timing.HookPosTrialAbort:
		t.abortTrial(trial.Name())
	}
}

func (t *TrialDurationTracer) startTrial(name string) {
	now := t.timeTeller.Now()

	t.lock.Lock()
	t.inflight[name] = now
	t.lock.Unlock()
}

func (t *TrialDurationTracer) endTrial(name string) {
	now := t.timeTeller.Now()

	t.lock.Lock()
	defer t.lock.Unlock()

	start, ok := t.inflight[name]
	if !ok {
		return
	}

	duration := float64(now - start)
	t.averageTime = (t.averageTime*float64(t.taskCount) + duration) /
		float64(t.taskCount+1)
	t.taskCount++
	delete(t.inflight, name)
}

func (t *TrialDurationTracer) abortTrial(name string) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if _, ok := t.inflight[name]; !ok {
		return
	}

	t.abortCount++
	delete(t.inflight, name)
}
