package session

import (
	"log"
	"math/rand"
	"time"

	"github.com/rs/xid"

	"github.com/sarchlab/trialclock/datarecording"
	"github.com/sarchlab/trialclock/monitoring"
	"github.com/sarchlab/trialclock/syncout"
	"github.com/sarchlab/trialclock/timing"
	"github.com/sarchlab/trialclock/tracing"
)

// Builder can be used to build a session.
type Builder struct {
	period         time.Duration
	codeWidth      int
	seed           int64
	monitorOn      bool
	monitorPort    int
	openBrowser    bool
	recordingOn    bool
	outputFileName string
	source         timing.TickSource
	sink           timing.StatusWriter
	logger         *log.Logger
	logEvents      bool
}

// MakeBuilder creates a new builder. By default the clock ticks every
// millisecond with 16-bit codes, the session is recorded and monitored, and
// the seed is taken from the wall clock.
func MakeBuilder() Builder {
	return Builder{
		period:      time.Millisecond,
		codeWidth:   16,
		monitorOn:   true,
		recordingOn: true,
		logger:      log.Default(),
	}
}

// WithPeriod sets the tick period.
func (b Builder) WithPeriod(period time.Duration) Builder {
	b.period = period
	return b
}

// WithCodeWidth sets the number of bits of the sync codes.
func (b Builder) WithCodeWidth(width int) Builder {
	b.codeWidth = width
	return b
}

// WithSeed sets the seed of the random generator of the session.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithoutMonitoring sets the session to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithBrowser opens the monitor in a browser once it is serving.
func (b Builder) WithBrowser() Builder {
	b.openBrowser = true
	return b
}

// WithoutRecording keeps records in memory only.
func (b Builder) WithoutRecording() Builder {
	b.recordingOn = false
	return b
}

// WithOutputFileName sets the file name of the recording, without the
// .sqlite3 extension.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithTickSource replaces the ticker-driven tick source.
func (b Builder) WithTickSource(s timing.TickSource) Builder {
	b.source = s
	return b
}

// WithStatusWriter sets the sync output. The default only logs codes.
func (b Builder) WithStatusWriter(w timing.StatusWriter) Builder {
	b.sink = w
	return b
}

// WithLogger sets the logger of the session.
func (b Builder) WithLogger(l *log.Logger) Builder {
	b.logger = l
	return b
}

// WithEventLogging logs every firing.
func (b Builder) WithEventLogging() Builder {
	b.logEvents = true
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && (b.monitorPort != 0 || b.openBrowser) {
		panic("monitor options cannot be set when monitoring is disabled")
	}

	if !b.recordingOn && b.outputFileName != "" {
		panic("output file cannot be set when recording is disabled")
	}

	if b.logger == nil {
		panic("logger is not set")
	}
}

// Build builds the session. The clock is not started.
func (b Builder) Build() *Session {
	b.parametersMustBeValid()

	s := &Session{
		id:         xid.New().String(),
		period:     b.period,
		codeWidth:  b.codeWidth,
		seed:       b.seed,
		logger:     b.logger,
		input:      timing.NewInputSource(),
		dispatcher: timing.NewQueueDispatcher(),
	}

	if s.seed == 0 {
		s.seed = time.Now().UnixNano()
	}
	s.rng = rand.New(rand.NewSource(s.seed))

	s.dispatcher.WithPanicHandler(func(r any) {
		s.logger.Printf("deferred routine panicked: %v", r)
	})

	if b.recordingOn {
		outputPath := b.outputFileName
		if outputPath == "" {
			outputPath = "trialclock_session_" + s.id
		}

		s.recorder = datarecording.New(outputPath)
		s.sessionInfo = datarecording.NewSessionRecorder(s.recorder)
	}

	s.experiment = datarecording.NewExperiment(s.recorder)

	sink := b.sink
	if sink == nil {
		sink = syncout.NewLogWriter(b.logger, b.codeWidth)
	}

	s.clock = timing.MakeClockBuilder().
		WithTickSource(b.source).
		WithStatusWriter(sink).
		WithRecordStore(s.experiment).
		WithDispatcher(s.dispatcher).
		WithLogger(b.logger).
		Build()
	s.clock.AcceptHook(s.experiment)

	s.durations = tracing.NewTrialDurationTracer(s.clock, tracing.AllTrials)
	s.steps = tracing.NewStepCountTracer(tracing.AllTrials)
	s.clock.AcceptHook(s.durations)
	s.clock.AcceptHook(s.steps)

	if b.logEvents {
		s.clock.AcceptHook(timing.NewEventLogger(b.logger))
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor()
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}
		if b.openBrowser {
			s.monitor.WithBrowser()
		}
		s.monitor.RegisterClock(s.clock)
		s.monitor.RegisterDurationTracer(s.durations)
		s.monitorURL = s.monitor.StartServer()
	}

	return s
}
