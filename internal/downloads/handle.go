// Package downloads tracks in-flight downloads: an in-memory registry driven
// by lifecycle events from an external download source, with bandwidth
// sampling, throttled change notifications, and a single writer path into
// the history store's download rows.
package downloads

import "time"

// Handle is the live view of one OS-level download. Byte counters are read
// from the handle on demand, never cached, so snapshots always reflect what
// the source currently reports. Pause, Resume, and Cancel are imperative
// best-effort calls into the source.
type Handle interface {
	URL() string
	Filename() string
	SavePath() string
	ReceivedBytes() int64
	TotalBytes() int64
	IsPaused() bool
	CanResume() bool
	MimeType() string

	Pause()
	Resume()
	Cancel()
}

// State is the lifecycle state of a tracked download.
type State string

const (
	StateInProgress  State = "in_progress"
	StatePaused      State = "paused"
	StateCompleted   State = "completed"
	StateCancelled   State = "cancelled"
	StateInterrupted State = "interrupted"
)

// SpeedSample is one point on a download's bandwidth history.
type SpeedSample struct {
	Timestamp       time.Time `json:"timestamp"`
	SpeedKBps       float64   `json:"speedKBps"`
	CumulativeBytes int64     `json:"cumulativeBytes"`
}

// Snapshot is the read-only view of a tracked download handed to observers
// and query callers.
type Snapshot struct {
	ID            int64         `json:"id"`
	GUID          string        `json:"guid"`
	URL           string        `json:"url"`
	Filename      string        `json:"filename"`
	TargetPath    string        `json:"targetPath"`
	State         State         `json:"state"`
	ReceivedBytes int64         `json:"receivedBytes"`
	TotalBytes    int64         `json:"totalBytes"`
	IsPaused      bool          `json:"isPaused"`
	CanResume     bool          `json:"canResume"`
	StartTime     time.Time     `json:"startTime"`
	EndTime       time.Time     `json:"endTime"`
	MimeType      string        `json:"mimeType"`
	SpeedHistory  []SpeedSample `json:"speedHistory"`
}
