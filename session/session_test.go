package session

import (
	"context"
	"log"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/trialclock/datarecording"
	"github.com/sarchlab/trialclock/syncout"
	"github.com/sarchlab/trialclock/timing"
)

var _ = Describe("Session", func() {
	var (
		source *timing.ManualTickSource
		sink   *syncout.RecordingWriter
		output string
		s      *Session
		ctx    context.Context
	)

	tick := func(n int) {
		for i := 0; i < n; i++ {
			Expect(source.Tick()).To(BeTrue())
		}
		Expect(s.Clock().Barrier(ctx)).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		source = timing.NewManualTickSource()
		sink = syncout.NewRecordingWriter()
		output = filepath.Join(GinkgoT().TempDir(), "session")

		s = MakeBuilder().
			WithoutMonitoring().
			WithTickSource(source).
			WithStatusWriter(sink).
			WithOutputFileName(output).
			WithCodeWidth(8).
			WithSeed(11).
			WithLogger(log.New(GinkgoWriter, "", 0)).
			Build()
	})

	AfterEach(func() {
		s.Terminate()
	})

	It("should run trials and write the recording", func() {
		cue := timing.NewEvent("Cue", 2).
			WithIdentity(&timing.Identity{Name: "Cue"})
		trial := s.NewTrial("Cued", cue)
		cue.Then(trial.End(1))

		Expect(s.Start()).To(Succeed())
		Expect(trial.Begin(ctx)).To(Succeed())
		tick(3)
		Expect(trial.Begin(ctx)).To(Succeed())
		tick(3)

		Expect(s.Experiment().NumCommitted()).To(Equal(2))
		Expect(s.DurationTracer().AverageTime()).To(Equal(3.0))
		Expect(s.StepCounter().StepCount("Cue")).To(Equal(uint64(2)))
		Expect(sink.Codes()).To(Equal([]uint32{0, 1, 3}))

		s.Terminate()

		reader := datarecording.NewReader(output + ".sqlite3")
		defer reader.Close()
		reader.MapTable(datarecording.TrialTable, datarecording.TrialRow{})
		reader.MapTable(datarecording.SessionInfoTable,
			datarecording.SessionInfo{})

		_, total, err := reader.Query(ctx, datarecording.TrialTable,
			datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(2))

		results, _, err := reader.Query(ctx, datarecording.SessionInfoTable,
			datarecording.QueryParams{
				Where: "Property = ?",
				Args:  []any{"Seed"},
			})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].(*datarecording.SessionInfo).Value).To(Equal("11"))
	})

	It("should reject an invalid code width on start", func() {
		s.codeWidth = 20

		Expect(s.Start()).To(MatchError(timing.ErrConfiguration))
	})

	It("should derive reproducible jitters from the seed", func() {
		other := MakeBuilder().
			WithoutMonitoring().
			WithoutRecording().
			WithTickSource(timing.NewManualTickSource()).
			WithStatusWriter(syncout.Nop{}).
			WithSeed(11).
			Build()
		defer other.Terminate()

		a := s.NewJitter(0, 1000)
		b := other.NewJitter(0, 1000)

		for i := 0; i < 10; i++ {
			Expect(a.Next()).To(Equal(b.Next()))
		}
	})

	It("should not accept monitor options without monitoring", func() {
		Expect(func() {
			MakeBuilder().WithoutMonitoring().WithMonitorPort(8080).Build()
		}).To(Panic())
	})

	It("should not accept an output file without recording", func() {
		Expect(func() {
			MakeBuilder().
				WithoutMonitoring().
				WithoutRecording().
				WithOutputFileName("x").
				Build()
		}).To(Panic())
	})
})
