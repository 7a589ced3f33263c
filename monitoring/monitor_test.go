package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/trialclock/syncout"
	"github.com/sarchlab/trialclock/timing"
	"github.com/sarchlab/trialclock/tracing"
)

type nopStore struct{}

func (nopStore) TransferRecords([]*timing.EventRecord) {}

var _ = Describe("Monitor", func() {
	var (
		source  *timing.ManualTickSource
		clock   *timing.Clock
		trial   *timing.Trial
		m       *Monitor
		handler http.Handler
		ctx     context.Context
	)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	tick := func(n int) {
		for i := 0; i < n; i++ {
			Expect(source.Tick()).To(BeTrue())
		}
		Expect(clock.Barrier(ctx)).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		source = timing.NewManualTickSource()
		clock = timing.MakeClockBuilder().
			WithTickSource(source).
			WithStatusWriter(syncout.Nop{}).
			WithRecordStore(nopStore{}).
			WithDispatcher(timing.NewQueueDispatcher()).
			Build()

		hold := timing.NewEvent("Hold", 100).
			WithIdentity(&timing.Identity{Name: "Hold"})
		trial = timing.NewTrial(clock, "Detect", hold).WithRequestedTrials(3)
		hold.Then(trial.End(0))

		m = NewMonitor()
		m.RegisterClock(clock)
		m.RegisterTrial(trial)
		handler = m.Handler()

		Expect(clock.Start(time.Millisecond, 8)).To(Succeed())
	})

	AfterEach(func() {
		clock.Stop()
	})

	It("should report the current tick", func() {
		tick(3)

		w := get("/api/now")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal(`{"now":3}`))
	})

	It("should report a snapshot of the clock", func() {
		Expect(trial.Begin(ctx)).To(Succeed())

		w := get("/api/snapshot")

		var s timing.Snapshot
		Expect(json.Unmarshal(w.Body.Bytes(), &s)).To(Succeed())
		Expect(s.Running).To(BeTrue())
		Expect(s.Pending).To(Equal("Hold"))
		Expect(s.PendingAt).To(Equal(timing.VTimeInTick(100)))
		Expect(s.CurrentTrial).To(Equal("Detect"))
	})

	It("should list trials with the duration summary", func() {
		m.RegisterDurationTracer(
			tracing.NewTrialDurationTracer(clock, tracing.AllTrials))
		Expect(trial.Begin(ctx)).To(Succeed())

		w := get("/api/trials")

		var rsp trialsRsp
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Trials).To(HaveLen(1))
		Expect(rsp.Trials[0]).To(Equal(trialRsp{
			Name:      "Detect",
			Current:   1,
			Remaining: 3,
			IsCurrent: true,
		}))
		Expect(rsp.Durations).NotTo(BeNil())
	})

	It("should serialize a trial", func() {
		w := get("/api/trial/Detect")

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should answer 404 for an unknown trial", func() {
		w := get("/api/trial/Missing")

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("should abort the current trial", func() {
		Expect(trial.Begin(ctx)).To(Succeed())

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost,
			"/api/abort?reason=operator", nil))
		Expect(w.Code).To(Equal(http.StatusAccepted))

		tick(1)
		Expect(clock.CurrentTrial()).To(BeNil())
		Expect(trial.CurrentCount()).To(BeZero())
	})

	It("should refuse to abort with GET", func() {
		w := get("/api/abort")

		Expect(w.Code).To(Equal(http.StatusMethodNotAllowed))
	})

	It("should track trials on a progress bar", func() {
		bar := m.CreateProgressBar("Block 1", 3)
		clock.AcceptHook(NewProgressHook(bar))

		Expect(trial.Begin(ctx)).To(Succeed())
		tick(101)
		Expect(trial.Begin(ctx)).To(Succeed())

		w := get("/api/progress")
		var bars []ProgressBarSnapshot
		Expect(json.Unmarshal(w.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("Block 1"))
		Expect(bars[0].Finished).To(Equal(uint64(1)))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))

		trial.Abort("blink")
		tick(1)
		Expect(bar.Snapshot().InProgress).To(BeZero())

		m.CompleteProgressBar(bar)
		Expect(get("/api/progress").Body.String()).To(Equal("[]"))
	})

	It("should report process resources", func() {
		w := get("/api/resource")

		var rsp resourceRsp
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve on a random port", func() {
		url := m.StartServer()
		defer m.StopServer(ctx)

		rsp, err := http.Get(url + "/api/now")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()
		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
	})
})
