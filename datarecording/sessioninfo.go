package datarecording

import (
	"os"
	"strings"
	"time"
)

// SessionInfoTable is the name of the table holding session properties.
const SessionInfoTable = "session_info"

const timeLayout = "2006-01-02 15:04:05.000000000"

// SessionInfo is one property of a recorded session.
type SessionInfo struct {
	Property string
	Value    string
}

// SessionRecorder writes the properties of a session: when it started and
// ended, how it was started and any settings the caller adds.
type SessionRecorder struct {
	recorder DataRecorder
	entries  []SessionInfo
}

// NewSessionRecorder creates the session table in recorder.
func NewSessionRecorder(recorder DataRecorder) *SessionRecorder {
	recorder.CreateTable(SessionInfoTable, SessionInfo{})

	return &SessionRecorder{recorder: recorder}
}

// Start notes the start time, the command line and the working directory.
func (s *SessionRecorder) Start() {
	s.Add("Start Time", time.Now().Format(timeLayout))
	s.Add("Command", strings.Join(os.Args, " "))

	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}

	s.Add("Working Directory", cwd)
}

// Add notes a property.
func (s *SessionRecorder) Add(property, value string) {
	s.entries = append(s.entries, SessionInfo{property, value})
}

// End writes all properties along with the end time and flushes the
// recorder.
func (s *SessionRecorder) End() {
	s.Add("End Time", time.Now().Format(timeLayout))

	for _, entry := range s.entries {
		s.recorder.InsertData(SessionInfoTable, entry)
	}

	s.entries = nil

	s.recorder.Flush()
}
