package storage

import "time"

// MaxURLLength is the longest URL stored in the urls table. Longer URLs are
// truncated, not rejected, so the same over-long URL always aggregates onto
// one row.
const MaxURLLength = 2048

// Transition is the navigation reason that produced a visit. Values are the
// integer codes used on disk.
type Transition int

const (
	TransitionLink       Transition = 0
	TransitionTyped      Transition = 1
	TransitionBookmark   Transition = 2
	TransitionAutoSub    Transition = 3
	TransitionManualSub  Transition = 4
	TransitionGenerated  Transition = 5
	TransitionStartPage  Transition = 6
	TransitionFormSubmit Transition = 7
	TransitionReload     Transition = 8
)

// DownloadState is the lifecycle state of a persisted download row.
type DownloadState int

const (
	DownloadInProgress  DownloadState = 0
	DownloadComplete    DownloadState = 1
	DownloadCancelled   DownloadState = 2
	DownloadInterrupted DownloadState = 3
)

// String returns the lowercase state name used in query output.
func (s DownloadState) String() string {
	switch s {
	case DownloadInProgress:
		return "in_progress"
	case DownloadComplete:
		return "complete"
	case DownloadCancelled:
		return "cancelled"
	case DownloadInterrupted:
		return "interrupted"
	}
	return "unknown"
}

// IconType is a bitmask classifying a favicon by how the page declared it.
type IconType int

const (
	IconTypeFavicon          IconType = 1
	IconTypeTouch            IconType = 2
	IconTypeTouchPrecomposed IconType = 4
	IconTypeWebManifest      IconType = 8
)

// PageURLType distinguishes normal page mappings from offline-page mappings.
type PageURLType int

const (
	PageURLNormal  PageURLType = 0
	PageURLOffline PageURLType = 1
)

// URLRecord is a row of the urls table: the per-URL visit aggregate.
type URLRecord struct {
	ID            int64
	URL           string
	Title         string
	VisitCount    int
	TypedCount    int
	LastVisitTime int64 // WebKit timestamp
	Hidden        bool
}

// VisitRecord is a row of the visits table.
type VisitRecord struct {
	ID             int64
	URLID          int64
	VisitTime      int64 // WebKit timestamp
	FromVisit      int64 // 0 = no referrer visit
	Transition     Transition
	DurationMicros int64
	IsKnownToSync  bool
}

// VisitView is a joined visit+url row returned by QueryHistory.
type VisitView struct {
	VisitID    int64      `json:"visitId"`
	URLID      int64      `json:"urlId"`
	URL        string     `json:"url"`
	Title      string     `json:"title"`
	VisitTime  time.Time  `json:"visitTime"`
	Transition Transition `json:"transition"`
}

// VisitOptions are the optional parts of RecordVisit.
type VisitOptions struct {
	Title           string
	Transition      Transition
	ReferrerVisitID int64
	VisitTime       time.Time // zero value = now
	DurationMicros  int64
	IsLocal         bool
	Hidden          bool
}

// HistoryFilter selects rows for QueryHistory. Invalid Limit/Offset values
// (negative) are ignored rather than rejected.
type HistoryFilter struct {
	Text      string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Offset    int
}

// DownloadRecord is a row of the downloads table. The trailing metadata
// fields mirror the Chrome downloads schema and are carried for on-disk
// fidelity; only the fields above them drive behaviour.
type DownloadRecord struct {
	ID            int64
	GUID          string
	CurrentPath   string
	TargetPath    string
	StartTime     int64 // WebKit timestamp
	ReceivedBytes int64
	TotalBytes    int64
	State         DownloadState
	EndTime       int64 // WebKit timestamp, 0 while in progress
	MimeType      string

	DangerType       int
	InterruptReason  int
	Opened           bool
	Transient        bool
	Referrer         string
	SiteURL          string
	TabURL           string
	TabReferrerURL   string
	OriginalMimeType string
	ETag             string
	LastModified     string
}

// DownloadPatch carries the mutable fields of UpdateDownload. Nil pointers
// leave the column untouched.
type DownloadPatch struct {
	CurrentPath   *string
	TargetPath    *string
	ReceivedBytes *int64
	TotalBytes    *int64
	State         *DownloadState
	EndTime       *int64
}

// DownloadFilter selects rows for QueryDownloads.
type DownloadFilter struct {
	Text  string
	State *DownloadState
	Limit int
}

// FaviconRecord is a row of the favicons table.
type FaviconRecord struct {
	ID       int64
	URL      string
	IconType IconType
}

// FaviconBitmap is a row of the favicon_bitmaps table.
type FaviconBitmap struct {
	ID            int64
	IconID        int64
	Width         int
	Height        int
	ImageData     []byte
	LastUpdated   int64
	LastRequested int64
}

// BitmapView is the batch-read shape for UI rendering. ImageData marshals to
// base64 under encoding/json.
type BitmapView struct {
	ImageData []byte `json:"imageData"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// HistoryStats summarizes the history store for the status surface.
type HistoryStats struct {
	URLCount      int64         `json:"urlCount"`
	VisitCount    int64         `json:"visitCount"`
	DownloadCount int64         `json:"downloadCount"`
	OldestVisit   time.Time     `json:"oldestVisit"`
	NewestVisit   time.Time     `json:"newestVisit"`
	TopOrigins    []OriginCount `json:"topOrigins,omitempty"`
}

// OriginCount pairs a URL origin with its accumulated visit count.
type OriginCount struct {
	Origin string `json:"origin"`
	Visits int64  `json:"visits"`
}
