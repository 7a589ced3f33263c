package timing

import (
	"log"

	"github.com/sarchlab/trialclock/hooking"
)

// EventLogger is a hook that prints every event firing.
type EventLogger struct {
	logger *log.Logger
}

// NewEventLogger returns an EventLogger writing into logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Func writes the firing into the logger.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case HookPosBeforeFire:
		rec, ok := ctx.Item.(*EventRecord)
		if !ok {
			return
		}

		if rec.Event().IsRecordable() {
			h.logger.Printf("%d, %s [%s] code=%d",
				rec.Tick(), rec.Event().Name(), rec.IdentityName(), rec.Code())
			return
		}

		h.logger.Printf("%d, %s", rec.Tick(), rec.Event().Name())
	case HookPosTrialAbort:
		trial, ok := ctx.Item.(*Trial)
		if !ok {
			return
		}

		h.logger.Printf("trial %s aborted: %v", trial.Name(), ctx.Detail)
	}
}
