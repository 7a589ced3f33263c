// Package timing schedules the events of real-time stimulus/response trials.
//
// A Clock fires at most one pending event per tick. Firing an event writes a
// Gray-coded sync code to the acquisition device if the event is
// recordable, runs the event's immediate routine on the clock goroutine and
// schedules whatever that routine returns. The event's deferred routine is
// handed to a Dispatcher and runs later, away from the clock.
//
// An AwaitEvent is released either by a Trigger or by its timeout. Each time
// it is armed it receives a fresh wait ID; a trigger that carries an old ID is
// dropped, which makes duplicate and late triggers harmless.
//
// A Trial brackets one iteration of an event chain. It commits through the
// event returned by Trial.End and aborts through Trial.Abort or
// Clock.AbortAny. Either way its records go to the RecordStore; records of
// aborted iterations are re-tagged with VoidedIdentity.
//
//	clock := timing.MakeClockBuilder().
//		WithStatusWriter(out).
//		WithRecordStore(store).
//		WithDispatcher(dispatcher).
//		Build()
//	_ = clock.Start(time.Millisecond, 16)
//
//	trial := timing.NewTrial(clock, "Reaction", fixation)
//	_ = trial.Begin(ctx)
package timing
