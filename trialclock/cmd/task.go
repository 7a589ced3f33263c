package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/sarchlab/trialclock/session"
	"github.com/sarchlab/trialclock/timing"
)

// Names of the events of the reaction-time task.
const (
	fixationName = "Fixation"
	stimulusName = "Stimulus"
	awaitName    = "AwaitResponse"
	responseName = "Response"
	timeoutName  = "Timeout"
	feedbackName = "Feedback"
	keyEvent     = "key"
)

type taskConfig struct {
	trials         int
	minForeperiod  timing.VTimeInTick
	maxForeperiod  timing.VTimeInTick
	responseWindow timing.VTimeInTick
	interTrial     timing.VTimeInTick
}

func defaultTaskConfig() taskConfig {
	return taskConfig{
		trials:         10,
		minForeperiod:  300,
		maxForeperiod:  800,
		responseWindow: 1000,
		interTrial:     500,
	}
}

// reactionTask shows a fixation cross, waits a random foreperiod, shows a
// stimulus on a random side and waits for a key press. The response time in
// ticks is stored in the "rt" group variable of the Response record.
type reactionTask struct {
	logger *log.Logger

	fixation *timing.Event
	stimulus *timing.Event
	response *timing.Event
	timeout  *timing.Event
	feedback *timing.Event
	await    *timing.AwaitEvent
	trial    *timing.Trial

	foreperiod *timing.Jitter
	side       *timing.Jitter

	finished chan string
}

func newReactionTask(
	s *session.Session,
	cfg taskConfig,
	logger *log.Logger,
) (*reactionTask, error) {
	t := &reactionTask{
		logger:     logger,
		foreperiod: s.NewJitter(cfg.minForeperiod, cfg.maxForeperiod),
		side:       s.NewJitter(0, 1),
		finished:   make(chan string, 1),
	}

	t.fixation = timing.NewEvent(fixationName, 0).
		WithIdentity(&timing.Identity{Name: fixationName})
	t.stimulus = timing.NewEvent(stimulusName, cfg.minForeperiod).
		WithIdentity(&timing.Identity{
			Name:      stimulusName,
			GroupVars: []string{"side"},
		})
	t.response = timing.NewEvent(responseName, 0).
		WithIdentity(&timing.Identity{
			Name:      responseName,
			GroupVars: []string{"rt"},
		})
	t.timeout = timing.NewEvent(timeoutName, cfg.responseWindow).
		WithIdentity(&timing.Identity{Name: timeoutName})
	t.feedback = timing.NewEvent(feedbackName, 1).
		WithIdentity(&timing.Identity{Name: feedbackName})
	t.await = timing.NewAwaitEvent(awaitName, t.response,
		timing.NewTrigger(s.Input(), keyEvent)).
		WithTimeout(t.timeout)

	t.trial = s.NewTrial("ReactionTime", t.fixation).
		WithRequestedTrials(cfg.trials).
		WithCleanup(func(*timing.Trial, []*timing.EventRecord) {
			t.finished <- ""
		}).
		WithAbortHandler(func(_ *timing.Trial, reason string) {
			t.finished <- reason
		})

	registry := timing.NewRegistry()
	end := t.trial.End(cfg.interTrial)

	err := errors.Join(
		registry.Register(fixationName, t.onFixation, nil),
		registry.Register(stimulusName, t.onStimulus, nil),
		registry.Register(responseName, t.onResponse, nil),
		registry.Register(timeoutName, t.onTimeout, nil),
		registry.Register(feedbackName,
			func(*timing.EventRecord) timing.Schedulable { return end },
			t.showFeedback),
	)
	if err != nil {
		return nil, err
	}

	err = registry.Bind(t.fixation, t.stimulus, t.response, t.timeout, t.feedback)
	if err != nil {
		return nil, err
	}

	return t, nil
}

func (t *reactionTask) onFixation(*timing.EventRecord) timing.Schedulable {
	t.foreperiod.Apply(t.stimulus)
	return t.stimulus
}

func (t *reactionTask) onStimulus(rec *timing.EventRecord) timing.Schedulable {
	_ = rec.SetGroupVar("side", int(t.side.Next()))
	return t.await
}

func (t *reactionTask) onResponse(rec *timing.EventRecord) timing.Schedulable {
	rt := rec.Tick() - t.stimulus.LastFiredTime()
	_ = rec.SetGroupVar("rt", int(rt))

	return t.feedback
}

func (t *reactionTask) onTimeout(*timing.EventRecord) timing.Schedulable {
	return t.feedback
}

func (t *reactionTask) showFeedback(rec *timing.EventRecord) {
	r, err := t.trial.RecordByName(responseName)
	if err != nil || r.Iteration() != rec.Iteration() {
		t.logger.Printf("trial %d: no response", rec.Iteration())
		return
	}

	rt, _ := r.GroupVar("rt")
	t.logger.Printf("trial %d: rt=%d ticks", rec.Iteration(), rt)
}

// run begins trials one after another until all requested trials are
// committed. Aborted trials are repeated.
func (t *reactionTask) run(ctx context.Context) error {
	for t.trial.Remaining() != 0 {
		err := t.trial.Begin(ctx)
		if errors.Is(err, timing.ErrNoMoreTrials) {
			return nil
		}

		if err != nil {
			return err
		}

		select {
		case reason := <-t.finished:
			if reason != "" {
				t.logger.Printf("trial aborted (%s), repeating", reason)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// responder plays the participant. It presses the key some time after each
// stimulus onset, and sometimes not at all.
type responder struct {
	input    *timing.InputSource
	rng      *rand.Rand
	minDelay time.Duration
	maxDelay time.Duration
	missRate float64
}

// attach makes the responder react to stimulus onsets. The deferred routine
// runs on the dispatcher goroutine only, so the generator needs no lock.
func (r *responder) attach(t *reactionTask) {
	t.stimulus.WithDeferred(func(*timing.EventRecord) {
		if r.rng.Float64() < r.missRate {
			return
		}

		delay := r.minDelay +
			time.Duration(r.rng.Int63n(int64(r.maxDelay-r.minDelay)+1))
		time.AfterFunc(delay, func() { r.input.Fire(keyEvent) })
	})
}

func (t *reactionTask) String() string {
	return fmt.Sprintf("%s: %d of %d completed",
		t.trial.Name(), t.trial.CompletedCount(),
		t.trial.CompletedCount()+t.trial.Remaining())
}
