// Package tracing provides hooks that collect statistics about trials while
// a session runs.
package tracing

import "github.com/sarchlab/trialclock/timing"

// TimeTeller tells the current tick.
type TimeTeller interface {
	Now() timing.VTimeInTick
}

// TrialFilter decides whether a trial is traced.
type TrialFilter func(trialName string) bool

// AllTrials traces every trial.
func AllTrials(string) bool {
	return true
}
