package downloads

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/runnerr0/backtrail/internal/storage"
	"github.com/runnerr0/backtrail/internal/webkittime"
)

// graceDefault is how long a terminal download stays visible in the registry
// so late queries can observe its final state.
const graceDefault = 5 * time.Second

// active is the transient, in-memory record of one tracked download. It is
// never persisted verbatim; the durable DownloadRecord is derived from it at
// persistence points.
type active struct {
	id         int64
	guid       string
	handle     Handle
	url        string
	filename   string
	targetPath string
	startTime  time.Time
	endTime    time.Time
	state      State
	isPaused   bool

	// recorded flips only after a successful row insert, so a transient DB
	// failure retries on the next lifecycle event instead of silently
	// skipping persistence for the download's whole lifetime.
	recorded bool

	samples         []SpeedSample
	lastSampleTime  time.Time
	lastSampleBytes int64

	// Byte counters captured at the terminal event; live values come from
	// the handle.
	finalReceived int64
	finalTotal    int64
}

// Config configures a Tracker.
type Config struct {
	// Store receives the persisted download rows. Required.
	Store *storage.HistoryStore

	// GracePeriod before a terminal download leaves the registry.
	// Default 5s.
	GracePeriod time.Duration

	// NotifyInterval is the observer throttle window. Default 100ms.
	NotifyInterval time.Duration

	Logger *slog.Logger
}

// Tracker owns the registry of active downloads. All event intake, control
// calls, and snapshot reads go through its mutex; source callbacks and query
// handlers race freely against each other.
type Tracker struct {
	mu       sync.Mutex
	registry map[int64]*active
	nextSeq  int64

	// sessionBase seeds id allocation from process start time, keeping ids
	// monotonic and collision-free across restarts without a persisted
	// sequence.
	sessionBase int64

	store    *storage.HistoryStore
	grace    time.Duration
	logger   *slog.Logger
	notifier *notifier
	now      func() time.Time
}

// NewTracker creates a Tracker writing durable rows into cfg.Store.
func NewTracker(cfg Config) *Tracker {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = graceDefault
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	t := &Tracker{
		registry:    make(map[int64]*active),
		sessionBase: time.Now().Unix() * 1000,
		store:       cfg.Store,
		grace:       cfg.GracePeriod,
		logger:      cfg.Logger,
		now:         time.Now,
	}
	t.notifier = newNotifier(t.GetActiveDownloads, cfg.NotifyInterval)
	return t
}

// OnChange subscribes an observer to registry snapshots. Routine progress is
// throttled; lifecycle transitions deliver immediately.
func (t *Tracker) OnChange(fn func([]Snapshot)) {
	t.notifier.subscribe(fn)
}

// OnCreated registers a new download for the given handle and returns its
// session-scoped id. Fires an immediate notification.
func (t *Tracker) OnCreated(ctx context.Context, h Handle) int64 {
	t.mu.Lock()
	t.nextSeq++
	d := &active{
		id:         t.sessionBase + t.nextSeq,
		guid:       uuid.NewString(),
		handle:     h,
		url:        h.URL(),
		filename:   h.Filename(),
		targetPath: h.SavePath(),
		startTime:  t.now(),
		state:      StateInProgress,
	}
	t.registry[d.id] = d
	t.recordIfPathKnownLocked(ctx, d)
	t.mu.Unlock()

	t.notifier.notify(true)
	return d.id
}

// OnProgress feeds a progress tick from the source. interrupted marks ticks
// the source reports as stalled; they update state but never produce speed
// samples.
func (t *Tracker) OnProgress(ctx context.Context, id int64, interrupted bool) {
	t.mu.Lock()
	d, ok := t.registry[id]
	if !ok {
		t.mu.Unlock()
		return
	}

	pathResolved := d.targetPath == "" && d.handle.SavePath() != ""
	if pathResolved {
		d.targetPath = d.handle.SavePath()
	}

	pausedNow := d.handle.IsPaused()
	pauseEdge := pausedNow && !d.isPaused
	resumeEdge := !pausedNow && d.isPaused
	d.isPaused = pausedNow
	if interrupted {
		d.state = StateInterrupted
	} else if pausedNow {
		d.state = StatePaused
	} else {
		d.state = StateInProgress
	}

	switch {
	case pauseEdge:
		t.appendPauseSampleLocked(d)
	case !pausedNow && !interrupted:
		t.sampleLocked(d)
	}
	if resumeEdge {
		t.resetBaselineLocked(d)
	}

	t.recordIfPathKnownLocked(ctx, d)
	t.mu.Unlock()

	t.notifier.notify(pathResolved || pauseEdge || resumeEdge)
}

// OnDone marks a download terminal, persists its final byte counts, and
// schedules its removal from the registry after the grace period.
func (t *Tracker) OnDone(ctx context.Context, id int64, state State) {
	switch state {
	case StateCompleted, StateCancelled, StateInterrupted:
	default:
		state = StateInterrupted
	}

	t.mu.Lock()
	d, ok := t.registry[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	d.state = state
	d.endTime = t.now()
	d.finalReceived = d.handle.ReceivedBytes()
	d.finalTotal = d.handle.TotalBytes()
	if d.targetPath == "" {
		d.targetPath = d.handle.SavePath()
	}
	t.recordIfPathKnownLocked(ctx, d)
	t.finalizeRowLocked(ctx, d)
	t.mu.Unlock()

	t.notifier.notify(true)
	t.scheduleRemoval(id)
}

// sampleLocked appends a speed sample when at least minSampleSpacing has
// elapsed since the previous one, consolidating older history first.
func (t *Tracker) sampleLocked(d *active) {
	now := t.now()
	received := d.handle.ReceivedBytes()

	if d.lastSampleTime.IsZero() {
		d.lastSampleTime = now
		d.lastSampleBytes = received
		return
	}

	elapsed := now.Sub(d.lastSampleTime)
	if elapsed < minSampleSpacing {
		return
	}

	d.samples = consolidate(d.samples, now)
	d.samples = append(d.samples, SpeedSample{
		Timestamp:       now,
		SpeedKBps:       speedKBps(received-d.lastSampleBytes, elapsed),
		CumulativeBytes: received,
	})
	d.lastSampleTime = now
	d.lastSampleBytes = received
}

// appendPauseSampleLocked makes a pause visible as a flat line: exactly one
// zero-speed sample, not duplicated when the history already ends at zero.
func (t *Tracker) appendPauseSampleLocked(d *active) {
	if n := len(d.samples); n > 0 && d.samples[n-1].SpeedKBps == 0 {
		return
	}
	d.samples = append(d.samples, SpeedSample{
		Timestamp:       t.now(),
		SpeedKBps:       0,
		CumulativeBytes: d.handle.ReceivedBytes(),
	})
}

// resetBaselineLocked restarts speed sampling from now, so the gap across a
// pause never reads as a burst of bandwidth.
func (t *Tracker) resetBaselineLocked(d *active) {
	d.lastSampleTime = t.now()
	d.lastSampleBytes = d.handle.ReceivedBytes()
}

// recordIfPathKnownLocked persists the download row once a save path is
// known. Called from every lifecycle event and idempotent via d.recorded, it
// tolerates arbitrary event ordering: whichever event first observes a
// resolved path creates the row, exactly once. A failed write is logged and
// retried on the next event.
func (t *Tracker) recordIfPathKnownLocked(ctx context.Context, d *active) {
	if d.recorded || d.targetPath == "" || t.store == nil {
		return
	}

	_, err := t.store.StartDownload(ctx, storage.DownloadRecord{
		GUID:          d.guid,
		CurrentPath:   d.targetPath + ".partial",
		TargetPath:    d.targetPath,
		StartTime:     webkittime.FromTime(d.startTime),
		ReceivedBytes: d.handle.ReceivedBytes(),
		TotalBytes:    d.handle.TotalBytes(),
		MimeType:      d.handle.MimeType(),
		SiteURL:       d.url,
		TabURL:        d.url,
	})
	if err != nil {
		t.logger.Warn("download row insert failed, will retry on next event",
			"guid", d.guid, "error", err)
		return
	}
	d.recorded = true
}

// finalizeRowLocked patches the persisted row with the terminal state.
// Best-effort: a failed update is logged, the in-memory terminal state is
// already authoritative for the live view.
func (t *Tracker) finalizeRowLocked(ctx context.Context, d *active) {
	if !d.recorded || t.store == nil {
		return
	}

	state := storeState(d.state)
	end := webkittime.FromTime(d.endTime)
	current := d.targetPath
	if d.state != StateCompleted {
		current = d.targetPath + ".partial"
	}
	err := t.store.UpdateDownload(ctx, d.guid, storage.DownloadPatch{
		CurrentPath:   &current,
		ReceivedBytes: &d.finalReceived,
		TotalBytes:    &d.finalTotal,
		State:         &state,
		EndTime:       &end,
	})
	if err != nil {
		t.logger.Error("download row finalize failed", "guid", d.guid, "error", err)
	}
}

func storeState(s State) storage.DownloadState {
	switch s {
	case StateCompleted:
		return storage.DownloadComplete
	case StateCancelled:
		return storage.DownloadCancelled
	case StateInterrupted:
		return storage.DownloadInterrupted
	}
	return storage.DownloadInProgress
}

// scheduleRemoval drops a terminal download from the registry after the
// grace period, then announces the removal.
func (t *Tracker) scheduleRemoval(id int64) {
	time.AfterFunc(t.grace, func() {
		t.mu.Lock()
		_, ok := t.registry[id]
		delete(t.registry, id)
		t.mu.Unlock()
		if ok {
			t.notifier.notify(true)
		}
	})
}

// Pause pauses a download. Returns false when the id is unknown; pausing an
// already-paused download succeeds as a no-op.
func (t *Tracker) Pause(id int64) bool {
	t.mu.Lock()
	d, ok := t.registry[id]
	if !ok {
		t.mu.Unlock()
		return false
	}
	if !d.isPaused {
		d.handle.Pause()
		d.isPaused = true
		d.state = StatePaused
		t.appendPauseSampleLocked(d)
	}
	t.mu.Unlock()

	t.notifier.notify(true)
	return true
}

// Resume resumes a paused download. Returns false when the id is unknown or
// the handle reports it cannot resume. The sampling baseline resets so the
// pause gap never reads as a speed spike.
func (t *Tracker) Resume(id int64) bool {
	t.mu.Lock()
	d, ok := t.registry[id]
	if !ok || !d.handle.CanResume() {
		t.mu.Unlock()
		return false
	}
	d.handle.Resume()
	d.isPaused = false
	d.state = StateInProgress
	t.resetBaselineLocked(d)
	t.mu.Unlock()

	t.notifier.notify(true)
	return true
}

// Cancel cancels a download: best-effort OS-level cancel, CANCELLED row
// write with final byte counts, registry removal, and partial-file cleanup.
// The DB update is authoritative even if the source's cancel silently
// no-ops. Returns false when the id is unknown.
func (t *Tracker) Cancel(ctx context.Context, id int64) bool {
	t.mu.Lock()
	d, ok := t.registry[id]
	if !ok {
		t.mu.Unlock()
		return false
	}
	d.handle.Cancel()
	d.state = StateCancelled
	d.endTime = t.now()
	d.finalReceived = d.handle.ReceivedBytes()
	d.finalTotal = d.handle.TotalBytes()
	t.recordIfPathKnownLocked(ctx, d)
	t.finalizeRowLocked(ctx, d)
	delete(t.registry, id)
	partial := ""
	if d.targetPath != "" {
		partial = d.targetPath + ".partial"
	}
	t.mu.Unlock()

	// File I/O happens outside the registry lock. The logical cancel has
	// already succeeded; deletion failure is only logged.
	if partial != "" {
		if err := os.Remove(partial); err != nil && !os.IsNotExist(err) {
			t.logger.Warn("partial file removal failed", "path", partial, "error", err)
		}
	}

	t.notifier.notify(true)
	return true
}

// DeleteDownload removes a persisted download row by guid and, when safe,
// the downloaded file itself. The file is deleted only when this row is the
// most-recently-started one targeting its path and no active download
// shares that path — never destroy a file a newer or concurrent download is
// still writing. Returns whether the row existed.
func (t *Tracker) DeleteDownload(ctx context.Context, guid string) (bool, error) {
	rec, err := t.store.GetDownloadByGUID(ctx, guid)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}

	newest, targetPath, err := t.store.IsNewestDownloadForPath(ctx, guid)
	if err != nil {
		return false, err
	}

	deleted, err := t.store.DeleteDownloadByGUID(ctx, guid)
	if err != nil || !deleted {
		return deleted, err
	}

	if rec.State == storage.DownloadComplete && newest && targetPath != "" && !t.pathActive(targetPath) {
		if err := os.Remove(targetPath); err != nil && !os.IsNotExist(err) {
			t.logger.Warn("downloaded file removal failed", "path", targetPath, "error", err)
		}
	}

	return true, nil
}

// pathActive reports whether any registered download targets the path.
func (t *Tracker) pathActive(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, d := range t.registry {
		if d.targetPath == path {
			return true
		}
	}
	return false
}

// GetActiveDownloads returns snapshots of every registered download,
// ordered by id (creation order).
func (t *Tracker) GetActiveDownloads() []Snapshot {
	t.mu.Lock()
	snaps := make([]Snapshot, 0, len(t.registry))
	for _, d := range t.registry {
		snaps = append(snaps, t.snapshotLocked(d))
	}
	t.mu.Unlock()

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	return snaps
}

// GetActiveDownload returns one snapshot, or false when the id is unknown
// (or already past its grace period).
func (t *Tracker) GetActiveDownload(id int64) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.registry[id]
	if !ok {
		return Snapshot{}, false
	}
	return t.snapshotLocked(d), true
}

func (t *Tracker) snapshotLocked(d *active) Snapshot {
	received, total := d.finalReceived, d.finalTotal
	if d.state == StateInProgress || d.state == StatePaused {
		received = d.handle.ReceivedBytes()
		total = d.handle.TotalBytes()
	}

	history := make([]SpeedSample, len(d.samples))
	copy(history, d.samples)

	return Snapshot{
		ID:            d.id,
		GUID:          d.guid,
		URL:           d.url,
		Filename:      d.filename,
		TargetPath:    d.targetPath,
		State:         d.state,
		ReceivedBytes: received,
		TotalBytes:    total,
		IsPaused:      d.isPaused,
		CanResume:     d.handle.CanResume(),
		StartTime:     d.startTime,
		EndTime:       d.endTime,
		MimeType:      d.handle.MimeType(),
		SpeedHistory:  history,
	}
}

// Close stops pending notifications.
func (t *Tracker) Close() {
	t.notifier.stop()
}
