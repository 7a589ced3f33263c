// Package syncout provides the outputs that carry sync codes from the clock
// to an acquisition device, or to wherever a session wants to see them.
package syncout

import (
	"fmt"
	"log"
	"math/bits"
	"sync"

	"github.com/sarchlab/trialclock/timing"
)

// Nop discards every code.
type Nop struct{}

// WriteStatusCode does nothing.
func (Nop) WriteStatusCode(uint32) {}

// LogWriter prints every code it receives.
type LogWriter struct {
	logger *log.Logger
	width  int
}

// NewLogWriter creates a LogWriter that prints codes as width-bit binary
// numbers.
func NewLogWriter(logger *log.Logger, width int) *LogWriter {
	return &LogWriter{logger: logger, width: width}
}

// WriteStatusCode prints the code.
func (w *LogWriter) WriteStatusCode(code uint32) {
	w.logger.Printf("sync %0*b", w.width, code)
}

// RecordingWriter keeps every code written to it.
type RecordingWriter struct {
	lock  sync.Mutex
	codes []uint32
}

// NewRecordingWriter creates an empty RecordingWriter.
func NewRecordingWriter() *RecordingWriter {
	return &RecordingWriter{}
}

// WriteStatusCode appends the code.
func (w *RecordingWriter) WriteStatusCode(code uint32) {
	w.lock.Lock()
	w.codes = append(w.codes, code)
	w.lock.Unlock()
}

// Codes returns a copy of the codes written so far.
func (w *RecordingWriter) Codes() []uint32 {
	w.lock.Lock()
	defer w.lock.Unlock()

	codes := make([]uint32, len(w.codes))
	copy(codes, w.codes)

	return codes
}

// Last returns the most recent code, and false if nothing was written.
func (w *RecordingWriter) Last() (uint32, bool) {
	w.lock.Lock()
	defer w.lock.Unlock()

	if len(w.codes) == 0 {
		return 0, false
	}

	return w.codes[len(w.codes)-1], true
}

// CheckSingleBitChanges returns an error naming the first pair of
// consecutive codes after the initial clear that differ in more than one bit.
func (w *RecordingWriter) CheckSingleBitChanges() error {
	codes := w.Codes()

	for i := 2; i < len(codes); i++ {
		diff := bits.OnesCount32(codes[i-1] ^ codes[i])
		if diff != 1 {
			return fmt.Errorf("codes %d and %d (%#x, %#x) differ in %d bits",
				i-1, i, codes[i-1], codes[i], diff)
		}
	}

	return nil
}

// Tee forwards every code to all of its outputs in order.
type Tee []timing.StatusWriter

// WriteStatusCode forwards the code.
func (t Tee) WriteStatusCode(code uint32) {
	for _, w := range t {
		w.WriteStatusCode(code)
	}
}

var (
	_ timing.StatusWriter = Nop{}
	_ timing.StatusWriter = (*LogWriter)(nil)
	_ timing.StatusWriter = (*RecordingWriter)(nil)
	_ timing.StatusWriter = Tee(nil)
)
