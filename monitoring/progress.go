package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/trialclock/hooking"
	"github.com/sarchlab/trialclock/timing"
)

// A ProgressBar tracks how many trials of a block are done.
type ProgressBar struct {
	sync.Mutex
	ID         string
	Name       string
	StartTime  time.Time
	Total      uint64
	Finished   uint64
	InProgress uint64
}

// ProgressBarSnapshot is a copy of a ProgressBar taken under its lock.
type ProgressBarSnapshot struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// Snapshot copies the bar.
func (b *ProgressBar) Snapshot() ProgressBarSnapshot {
	b.Lock()
	defer b.Unlock()

	return ProgressBarSnapshot{
		ID:         b.ID,
		Name:       b.Name,
		StartTime:  b.StartTime,
		Total:      b.Total,
		Finished:   b.Finished,
		InProgress: b.InProgress,
	}
}

// IncrementInProgress adds to the number of items in progress.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress += amount
}

// IncrementFinished adds to the number of finished items.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// MoveInProgressToFinished moves amount items from in progress to finished.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress -= amount
	b.Finished += amount
}

// DropInProgress removes amount items from in progress without finishing
// them, as when a trial is aborted.
func (b *ProgressBar) DropInProgress(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress -= amount
}

// ProgressHook moves a bar along as trials begin, commit and abort.
type ProgressHook struct {
	bar *ProgressBar
}

// NewProgressHook creates a hook that updates bar.
func NewProgressHook(bar *ProgressBar) *ProgressHook {
	return &ProgressHook{bar: bar}
}

// Func updates the bar.
func (h *ProgressHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case timing.HookPosTrialBegin:
		h.bar.IncrementInProgress(1)
	case timing.HookPosTrialCommit:
		h.bar.MoveInProgressToFinished(1)
	case timing.HookPosTrialAbort:
		h.bar.DropInProgress(1)
	}
}
