package timing

import (
	"log"

	"github.com/sarchlab/trialclock/graycode"
	"github.com/sarchlab/trialclock/hooking"
)

// ClockBuilder builds clocks.
type ClockBuilder struct {
	source      TickSource
	sink        StatusWriter
	store       RecordStore
	dispatcher  Dispatcher
	codeFactory func(width int) (graycode.Source, error)
	logger      *log.Logger
	queueSize   int
}

// MakeClockBuilder returns a builder with the default tick source, Gray code
// generator and a message queue of 1024 entries.
func MakeClockBuilder() ClockBuilder {
	return ClockBuilder{
		codeFactory: func(width int) (graycode.Source, error) {
			return graycode.New(width)
		},
		logger:    log.Default(),
		queueSize: 1024,
	}
}

// WithTickSource sets where ticks come from.
func (b ClockBuilder) WithTickSource(s TickSource) ClockBuilder {
	b.source = s
	return b
}

// WithStatusWriter sets the sync output.
func (b ClockBuilder) WithStatusWriter(w StatusWriter) ClockBuilder {
	b.sink = w
	return b
}

// WithRecordStore sets the experiment-level record store.
func (b ClockBuilder) WithRecordStore(s RecordStore) ClockBuilder {
	b.store = s
	return b
}

// WithDispatcher sets where deferred routines run.
func (b ClockBuilder) WithDispatcher(d Dispatcher) ClockBuilder {
	b.dispatcher = d
	return b
}

// WithCodeSourceFactory replaces the Gray code generator created by Start.
func (b ClockBuilder) WithCodeSourceFactory(
	f func(width int) (graycode.Source, error),
) ClockBuilder {
	b.codeFactory = f
	return b
}

// WithLogger sets the logger used to report recovered panics.
func (b ClockBuilder) WithLogger(l *log.Logger) ClockBuilder {
	b.logger = l
	return b
}

// WithMessageQueueSize sets how many requests can wait for the clock
// goroutine before posting blocks.
func (b ClockBuilder) WithMessageQueueSize(n int) ClockBuilder {
	b.queueSize = n
	return b
}

func (b ClockBuilder) parametersMustBeValid() {
	if b.sink == nil {
		panic("status writer is not set")
	}

	if b.store == nil {
		panic("record store is not set")
	}

	if b.dispatcher == nil {
		panic("dispatcher is not set")
	}

	if b.queueSize <= 0 {
		panic("message queue size must be positive")
	}
}

// Build creates a clock. The clock does not tick until Start is called.
func (b ClockBuilder) Build() *Clock {
	b.parametersMustBeValid()

	source := b.source
	if source == nil {
		source = NewTickerSource()
	}

	return &Clock{
		HookableBase: hooking.NewHookableBase(),
		source:       source,
		sink:         b.sink,
		store:        b.store,
		dispatcher:   b.dispatcher,
		codeFactory:  b.codeFactory,
		logger:       b.logger,
		msgs:         make(chan func(), b.queueSize),
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
}
