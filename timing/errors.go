package timing

import "errors"

// Errors reported by the clock and the trials. Callers match them with
// errors.Is; the returned errors carry details through %w wrapping.
var (
	// ErrConfiguration reports an invalid tick period or code width.
	ErrConfiguration = errors.New("timing: invalid configuration")

	// ErrConcurrentTrial reports an attempt to begin a trial while another
	// trial is current. It is a programming error in the experiment.
	ErrConcurrentTrial = errors.New("timing: another trial is running")

	// ErrLookup reports a record, identity or group variable that does not
	// exist.
	ErrLookup = errors.New("timing: not found")

	// ErrAlreadyStopped reports use of a clock after Stop.
	ErrAlreadyStopped = errors.New("timing: clock already stopped")

	// ErrClockNotRunning reports a request posted before Start.
	ErrClockNotRunning = errors.New("timing: clock not started")

	// ErrNoMoreTrials reports a Begin after all requested iterations of a
	// trial completed.
	ErrNoMoreTrials = errors.New("timing: no more trials requested")

	// ErrDuplicateRoutine reports a second registration under one name.
	ErrDuplicateRoutine = errors.New("timing: routine already registered")
)
