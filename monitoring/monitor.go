// Package monitoring serves the state of a running session over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/trialclock/timing"
	"github.com/sarchlab/trialclock/tracing"
)

// Monitor turns a session into a server that reports the clock and the
// trials, and lets an operator abort the current trial.
type Monitor struct {
	clock          *timing.Clock
	durationTracer *tracing.TrialDurationTracer
	portNumber     int
	openBrowser    bool

	trialsLock sync.Mutex
	trials     []*timing.Trial

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitor in the default browser.
func (m *Monitor) WithBrowser() *Monitor {
	m.openBrowser = true
	return m
}

// RegisterClock registers the clock of the session.
func (m *Monitor) RegisterClock(c *timing.Clock) {
	m.clock = c
}

// RegisterDurationTracer registers the tracer reported with the trials.
func (m *Monitor) RegisterDurationTracer(t *tracing.TrialDurationTracer) {
	m.durationTracer = t
}

// RegisterTrial registers a trial to be monitored.
func (m *Monitor) RegisterTrial(t *timing.Trial) {
	m.trialsLock.Lock()
	defer m.trialsLock.Unlock()

	for _, existing := range m.trials {
		if existing.Name() == t.Name() {
			panic("trial " + t.Name() + " already registered")
		}
	}

	m.trials = append(m.trials, t)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the list of bars.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Handler returns the router serving the monitor API.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.now).Methods(http.MethodGet)
	r.HandleFunc("/api/snapshot", m.snapshot).Methods(http.MethodGet)
	r.HandleFunc("/api/trials", m.listTrials).Methods(http.MethodGet)
	r.HandleFunc("/api/trial/{name}", m.trialDetails).Methods(http.MethodGet)
	r.HandleFunc("/api/abort", m.abort).Methods(http.MethodPost)
	r.HandleFunc("/api/progress", m.listProgressBars).Methods(http.MethodGet)
	r.HandleFunc("/api/resource", m.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).Methods(http.MethodGet)

	return r
}

// StartServer starts serving on the configured port, or on a random port if
// none was set, and returns the address it listens on.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = fmt.Sprintf(":%d", m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring session with %s\n", url)

	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if !errors.Is(err, http.ErrServerClosed) {
			dieOnErr(err)
		}
	}()

	if m.openBrowser {
		err = browser.OpenURL(url + "/api/snapshot")
		if err != nil {
			log.Printf("monitoring: cannot open browser: %v", err)
		}
	}

	return url
}

// StopServer shuts the server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"now\":%d}", m.clock.Now())
}

func (m *Monitor) snapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.clock.Snapshot())
}

type trialRsp struct {
	Name       string `json:"name"`
	Current    int    `json:"current"`
	Completed  int    `json:"completed"`
	Remaining  int    `json:"remaining"`
	NumRecords int    `json:"num_records"`
	IsCurrent  bool   `json:"is_current"`
}

type trialsRsp struct {
	Trials    []trialRsp               `json:"trials"`
	Durations *tracing.DurationSummary `json:"durations,omitempty"`
}

func (m *Monitor) describeTrial(t *timing.Trial) trialRsp {
	return trialRsp{
		Name:       t.Name(),
		Current:    t.CurrentCount(),
		Completed:  t.CompletedCount(),
		Remaining:  t.Remaining(),
		NumRecords: t.NumRecords(),
		IsCurrent:  m.clock.CurrentTrial() == t,
	}
}

func (m *Monitor) listTrials(w http.ResponseWriter, _ *http.Request) {
	m.trialsLock.Lock()
	rsp := trialsRsp{Trials: make([]trialRsp, 0, len(m.trials))}
	for _, t := range m.trials {
		rsp.Trials = append(rsp.Trials, m.describeTrial(t))
	}
	m.trialsLock.Unlock()

	if m.durationTracer != nil {
		summary := m.durationTracer.Summary()
		rsp.Durations = &summary
	}

	writeJSON(w, rsp)
}

func (m *Monitor) trialDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	trial := m.findTrialOr404(w, name)
	if trial == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(m.describeTrial(trial))
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) findTrialOr404(
	w http.ResponseWriter,
	name string,
) *timing.Trial {
	m.trialsLock.Lock()
	defer m.trialsLock.Unlock()

	for _, t := range m.trials {
		if t.Name() == name {
			return t
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Trial not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) abort(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "aborted from monitor"
	}

	m.clock.AbortAny(reason)
	w.WriteHeader(http.StatusAccepted)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]ProgressBarSnapshot, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.Snapshot())
	}

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
