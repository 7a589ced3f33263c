package cmd

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/trialclock/monitoring"
	"github.com/sarchlab/trialclock/session"
	"github.com/sarchlab/trialclock/timing"
)

type runOptions struct {
	period         time.Duration
	codeWidth      int
	seed           int64
	output         string
	noRecording    bool
	monitorPort    int
	noMonitor      bool
	openBrowser    bool
	logEvents      bool
	trials         int
	responseWindow uint64
	interTrial     uint64
	missRate       float64
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reaction-time demo session.",
	Long: "`run` runs a reaction-time task with a simulated participant. " +
		"Each trial shows a fixation, a stimulus after a random foreperiod " +
		"and waits for a key press or a timeout. Every event is recorded " +
		"into a SQLite file.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if runOpts.trials <= 0 {
			return fmt.Errorf("trials must be positive, got %d", runOpts.trials)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		return runSession(ctx, runOpts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	cfg := defaultTaskConfig()
	f := runCmd.Flags()
	f.DurationVar(&runOpts.period, "period", time.Millisecond, "Tick period")
	f.IntVar(&runOpts.codeWidth, "code-width", 16,
		"Number of bits of the sync codes (8 to 16)")
	f.IntVar(&runOpts.trials, "trials", cfg.trials,
		"Number of trials to complete")
	f.Int64Var(&runOpts.seed, "seed", 0,
		"Random seed, 0 to seed from the wall clock")
	f.StringVar(&runOpts.output, "output", "",
		"Recording file name without extension")
	f.BoolVar(&runOpts.noRecording, "no-recording", false,
		"Keep records in memory only")
	f.IntVar(&runOpts.monitorPort, "monitor-port", 0,
		"Port of the monitoring server")
	f.BoolVar(&runOpts.noMonitor, "no-monitor", false,
		"Do not start the monitoring server")
	f.BoolVar(&runOpts.openBrowser, "open-browser", false,
		"Open the monitor in a browser")
	f.BoolVar(&runOpts.logEvents, "log-events", false,
		"Log every event firing")
	f.Uint64Var(&runOpts.responseWindow, "response-window",
		uint64(cfg.responseWindow), "Ticks to wait for a response")
	f.Uint64Var(&runOpts.interTrial, "inter-trial", uint64(cfg.interTrial),
		"Ticks between feedback and the next trial")
	f.Float64Var(&runOpts.missRate, "miss-rate", 0.1,
		"Probability that the participant misses a stimulus")
}

func (o runOptions) taskConfig() taskConfig {
	cfg := defaultTaskConfig()
	cfg.trials = o.trials
	cfg.responseWindow = timing.VTimeInTick(o.responseWindow)
	cfg.interTrial = timing.VTimeInTick(o.interTrial)

	return cfg
}

func (o runOptions) builder() session.Builder {
	b := session.MakeBuilder().
		WithPeriod(o.period).
		WithCodeWidth(o.codeWidth).
		WithSeed(o.seed)

	if o.noRecording {
		b = b.WithoutRecording()
	} else if o.output != "" {
		b = b.WithOutputFileName(o.output)
	}

	if o.noMonitor {
		b = b.WithoutMonitoring()
	} else {
		b = b.WithMonitorPort(o.monitorPort)
		if o.openBrowser {
			b = b.WithBrowser()
		}
	}

	if o.logEvents {
		b = b.WithEventLogging()
	}

	return b
}

func runSession(ctx context.Context, opts runOptions) error {
	s := opts.builder().Build()
	defer s.Terminate()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	task, err := newReactionTask(s, opts.taskConfig(), logger)
	if err != nil {
		return err
	}

	r := &responder{
		input:    s.Input(),
		rng:      rand.New(rand.NewSource(s.Seed())),
		minDelay: 150 * opts.period,
		maxDelay: 600 * opts.period,
		missRate: opts.missRate,
	}
	r.attach(task)

	if m := s.Monitor(); m != nil {
		bar := m.CreateProgressBar(task.trial.Name(), uint64(opts.trials))
		s.Clock().AcceptHook(monitoring.NewProgressHook(bar))
		defer m.CompleteProgressBar(bar)
	}

	err = s.Start()
	if err != nil {
		return err
	}

	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()

	go func() {
		_ = s.RunDispatcher(dispatchCtx)
	}()

	err = task.run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%s, %d aborted, average duration %.1f ticks\n",
		task, s.Experiment().NumAborted(), s.DurationTracer().AverageTime())

	return nil
}
