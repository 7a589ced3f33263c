package timing

import (
	"sync"
	"time"
)

// A TickSource delivers the periodic signal that advances the clock.
type TickSource interface {
	// Start begins delivering one signal per period on C.
	Start(period time.Duration) error

	// C returns the channel the signals are delivered on.
	C() <-chan struct{}

	// Stop ends delivery. No signal is delivered after Stop returns.
	Stop()
}

// TickerSource produces ticks from a time.Ticker. At most one tick waits for
// the clock; ticks arriving while one is waiting are dropped.
type TickerSource struct {
	ch       chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewTickerSource creates a TickerSource.
func NewTickerSource() *TickerSource {
	return &TickerSource{
		ch:   make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
}

// Start launches the ticker.
func (s *TickerSource) Start(period time.Duration) error {
	ticker := time.NewTicker(period)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				select {
				case s.ch <- struct{}{}:
				default:
				}
			}
		}
	}()

	return nil
}

// C returns the tick channel.
func (s *TickerSource) C() <-chan struct{} {
	return s.ch
}

// Stop stops the ticker.
func (s *TickerSource) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// ManualTickSource delivers a tick each time Tick is called. It drives the
// clock in tests and when replaying a recorded session.
type ManualTickSource struct {
	ch       chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

// NewManualTickSource creates a ManualTickSource.
func NewManualTickSource() *ManualTickSource {
	return &ManualTickSource{
		ch:   make(chan struct{}),
		stop: make(chan struct{}),
	}
}

// Start does nothing; ticks are delivered by Tick.
func (s *ManualTickSource) Start(time.Duration) error {
	return nil
}

// C returns the tick channel.
func (s *ManualTickSource) C() <-chan struct{} {
	return s.ch
}

// Tick blocks until the clock picked up one tick. It returns false if the
// source was stopped.
func (s *ManualTickSource) Tick() bool {
	select {
	case s.ch <- struct{}{}:
		return true
	case <-s.stop:
		return false
	}
}

// Stop makes pending and future Tick calls return false.
func (s *ManualTickSource) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
