package datarecording

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/sarchlab/trialclock/hooking"
	"github.com/sarchlab/trialclock/timing"
)

// Names of the tables written by an Experiment.
const (
	RecordTable = "event_records"
	TrialTable  = "trials"
)

// Trial outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeAborted   = "aborted"
)

// RecordRow is how an event record is stored.
type RecordRow struct {
	Seq       int
	Trial     string
	Iteration int
	Tick      uint64
	WallTime  string
	Event     string
	Identity  string
	Code      uint32
	GroupVars string
}

// GroupVarMap parses the group variables of the row.
func (r RecordRow) GroupVarMap() (map[string]int, error) {
	gvs := make(map[string]int)
	if r.GroupVars == "" {
		return gvs, nil
	}

	for _, pair := range strings.Split(r.GroupVars, ";") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("malformed group variable %q", pair)
		}

		v, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("group variable %s: %w", name, err)
		}

		gvs[name] = v
	}

	return gvs, nil
}

// TrialRow marks the end of one trial iteration.
type TrialRow struct {
	Seq        int
	Trial      string
	Iteration  int
	Outcome    string
	Reason     string
	EndTick    uint64
	NumRecords int
}

type timeTeller interface {
	Now() timing.VTimeInTick
}

// Experiment is the experiment-level record store. It receives the records
// of each trial when the trial commits or aborts and, registered as a hook on
// the clock, notes where each trial ended.
//
// Records are converted to rows only when flushed, so that group variables
// set by cleanup routines after the commit are kept.
type Experiment struct {
	lock     sync.Mutex
	recorder DataRecorder

	records []*timing.EventRecord
	trials  []TrialRow
	batch   int

	numRecordsWritten int
	numTrialsWritten  int
}

// NewExperiment creates an Experiment. If recorder is nil, records are only
// kept in memory.
func NewExperiment(recorder DataRecorder) *Experiment {
	e := &Experiment{recorder: recorder}

	if recorder != nil {
		recorder.CreateTable(RecordTable, RecordRow{})
		recorder.CreateTable(TrialTable, TrialRow{})
	}

	return e
}

// TransferRecords takes the records of a trial that just ended.
func (e *Experiment) TransferRecords(records []*timing.EventRecord) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.records = append(e.records, records...)
	e.batch += len(records)
}

// Func notes trial boundaries.
func (e *Experiment) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case timing.HookPosTrialCommit:
		e.closeTrial(ctx, OutcomeCommitted, "")
	case timing.HookPosTrialAbort:
		reason, _ := ctx.Detail.(string)
		e.closeTrial(ctx, OutcomeAborted, reason)
	}
}

func (e *Experiment) closeTrial(ctx hooking.HookCtx, outcome, reason string) {
	trial, ok := ctx.Item.(*timing.Trial)
	if !ok {
		return
	}

	row := TrialRow{
		Trial:   trial.Name(),
		Outcome: outcome,
		Reason:  reason,
	}

	if outcome == OutcomeCommitted {
		row.Iteration = trial.CompletedCount()
	} else {
		row.Iteration = trial.CurrentCount() + 1
	}

	if teller, ok := ctx.Domain.(timeTeller); ok {
		row.EndTick = uint64(teller.Now())
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	row.Seq = len(e.trials)
	row.NumRecords = e.batch
	e.batch = 0
	e.trials = append(e.trials, row)
}

// Records returns all records received so far, oldest first.
func (e *Experiment) Records() []*timing.EventRecord {
	e.lock.Lock()
	defer e.lock.Unlock()

	records := make([]*timing.EventRecord, len(e.records))
	copy(records, e.records)

	return records
}

// RecordsOf returns the records whose identity is name, oldest first.
// Records of aborted trials are found under timing.VoidedIdentity's name.
func (e *Experiment) RecordsOf(name string) []*timing.EventRecord {
	e.lock.Lock()
	defer e.lock.Unlock()

	var records []*timing.EventRecord
	for _, rec := range e.records {
		if rec.IdentityName() == name {
			records = append(records, rec)
		}
	}

	return records
}

// Trials returns the trial boundaries noted so far.
func (e *Experiment) Trials() []TrialRow {
	e.lock.Lock()
	defer e.lock.Unlock()

	trials := make([]TrialRow, len(e.trials))
	copy(trials, e.trials)

	return trials
}

// NumCommitted returns the number of committed trial iterations.
func (e *Experiment) NumCommitted() int {
	return e.count(OutcomeCommitted)
}

// NumAborted returns the number of aborted trial iterations.
func (e *Experiment) NumAborted() int {
	return e.count(OutcomeAborted)
}

func (e *Experiment) count(outcome string) int {
	e.lock.Lock()
	defer e.lock.Unlock()

	n := 0
	for _, t := range e.trials {
		if t.Outcome == outcome {
			n++
		}
	}

	return n
}

// Flush writes the records and boundaries not yet written into the
// recorder.
func (e *Experiment) Flush() {
	if e.recorder == nil {
		return
	}

	e.lock.Lock()
	records := e.records[e.numRecordsWritten:]
	trials := e.trials[e.numTrialsWritten:]
	start := e.numRecordsWritten
	e.numRecordsWritten = len(e.records)
	e.numTrialsWritten = len(e.trials)
	e.lock.Unlock()

	for i, rec := range records {
		e.recorder.InsertData(RecordTable, toRow(start+i, rec))
	}

	for _, t := range trials {
		e.recorder.InsertData(TrialTable, t)
	}

	e.recorder.Flush()
}

func toRow(seq int, rec *timing.EventRecord) RecordRow {
	gvs := rec.GroupVars()
	pairs := make([]string, 0, len(gvs))

	for _, name := range rec.GroupVarNames() {
		pairs = append(pairs, name+"="+strconv.Itoa(gvs[name]))
	}

	return RecordRow{
		Seq:       seq,
		Trial:     rec.Trial(),
		Iteration: rec.Iteration(),
		Tick:      uint64(rec.Tick()),
		WallTime:  rec.WallTime().Format(timeLayout),
		Event:     rec.Event().Name(),
		Identity:  rec.IdentityName(),
		Code:      rec.Code(),
		GroupVars: strings.Join(pairs, ";"),
	}
}

var (
	_ timing.RecordStore = (*Experiment)(nil)
	_ hooking.Hook       = (*Experiment)(nil)
)
