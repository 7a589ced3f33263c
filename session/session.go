// Package session wires a clock, its dispatcher, the record store, the
// tracers and the monitor into one runnable experiment session.
package session

import (
	"context"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/sarchlab/trialclock/datarecording"
	"github.com/sarchlab/trialclock/monitoring"
	"github.com/sarchlab/trialclock/timing"
	"github.com/sarchlab/trialclock/tracing"
)

// A Session provides the services an experiment runs on.
type Session struct {
	id        string
	period    time.Duration
	codeWidth int
	seed      int64
	logger    *log.Logger

	clock       *timing.Clock
	dispatcher  *timing.QueueDispatcher
	input       *timing.InputSource
	rng         *rand.Rand
	experiment  *datarecording.Experiment
	recorder    datarecording.DataRecorder
	sessionInfo *datarecording.SessionRecorder
	durations   *tracing.TrialDurationTracer
	steps       *tracing.StepCountTracer
	monitor     *monitoring.Monitor
	monitorURL  string

	terminateOnce sync.Once
}

// ID returns the unique ID of the session.
func (s *Session) ID() string {
	return s.id
}

// Seed returns the seed of the random generator.
func (s *Session) Seed() int64 {
	return s.seed
}

// Clock returns the clock of the session.
func (s *Session) Clock() *timing.Clock {
	return s.clock
}

// Dispatcher returns the queue deferred routines are posted to.
func (s *Session) Dispatcher() *timing.QueueDispatcher {
	return s.dispatcher
}

// Input returns the in-process trigger source.
func (s *Session) Input() *timing.InputSource {
	return s.input
}

// Experiment returns the record store.
func (s *Session) Experiment() *datarecording.Experiment {
	return s.experiment
}

// DurationTracer returns the tracer of trial durations.
func (s *Session) DurationTracer() *tracing.TrialDurationTracer {
	return s.durations
}

// StepCounter returns the tracer counting recordable firings.
func (s *Session) StepCounter() *tracing.StepCountTracer {
	return s.steps
}

// Monitor returns the monitor, nil if monitoring is disabled.
func (s *Session) Monitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorURL returns the address of the monitor, empty if monitoring is
// disabled.
func (s *Session) MonitorURL() string {
	return s.monitorURL
}

// NewJitter creates a Jitter seeded from the session generator, so that a
// session replays with the same seed.
func (s *Session) NewJitter(min, max timing.VTimeInTick) *timing.Jitter {
	return timing.NewJitter(rand.New(rand.NewSource(s.rng.Int63())), min, max)
}

// NewTrial creates a trial and registers it with the monitor.
func (s *Session) NewTrial(name string, first timing.Schedulable) *timing.Trial {
	t := timing.NewTrial(s.clock, name, first)

	if s.monitor != nil {
		s.monitor.RegisterTrial(t)
	}

	return t
}

// Start starts the clock and notes the session settings.
func (s *Session) Start() error {
	err := s.clock.Start(s.period, s.codeWidth)
	if err != nil {
		return err
	}

	if s.sessionInfo != nil {
		s.sessionInfo.Start()
		s.sessionInfo.Add("Session ID", s.id)
		s.sessionInfo.Add("Tick Period", s.period.String())
		s.sessionInfo.Add("Code Width", strconv.Itoa(s.codeWidth))
		s.sessionInfo.Add("Seed", strconv.FormatInt(s.seed, 10))
	}

	return nil
}

// RunDispatcher runs deferred routines on the calling goroutine until ctx
// ends.
func (s *Session) RunDispatcher(ctx context.Context) error {
	return s.dispatcher.Run(ctx)
}

// Terminate stops the clock, runs the deferred routines still queued and
// writes the recording. It is safe to call more than once.
func (s *Session) Terminate() {
	s.terminateOnce.Do(s.terminate)
}

func (s *Session) terminate() {
	s.clock.Stop()
	s.dispatcher.Drain()

	s.experiment.Flush()

	if s.sessionInfo != nil {
		summary := s.durations.Summary()
		s.sessionInfo.Add("Committed Trials",
			strconv.FormatUint(summary.Committed, 10))
		s.sessionInfo.Add("Aborted Trials",
			strconv.FormatUint(summary.Aborted, 10))
		s.sessionInfo.End()
	}

	if s.recorder != nil {
		err := s.recorder.Close()
		if err != nil {
			s.logger.Printf("closing recording: %v", err)
		}
	}

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := s.monitor.StopServer(ctx)
		if err != nil {
			s.logger.Printf("stopping monitor: %v", err)
		}
	}
}
