// Package cdp adapts Chrome DevTools Protocol download events into the
// tracker's event model. A browser reached over CDP emits
// Browser.downloadWillBegin and Browser.downloadProgress; this package
// translates them into created/progress/done calls and exposes a per-download
// handle backed by the protocol's state.
package cdp

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/runnerr0/backtrail/internal/downloads"
)

// Source subscribes to a browser's download events and drives a Tracker.
type Source struct {
	browser *rod.Browser
	tracker *downloads.Tracker
	dir     string
	logger  *slog.Logger

	mu      sync.Mutex
	handles map[string]*cdpHandle // CDP guid -> handle
	ids     map[string]int64      // CDP guid -> tracker id
}

// NewSource creates a Source that saves downloads under dir.
func NewSource(browser *rod.Browser, tracker *downloads.Tracker, dir string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		browser: browser,
		tracker: tracker,
		dir:     dir,
		logger:  logger,
		handles: make(map[string]*cdpHandle),
		ids:     make(map[string]int64),
	}
}

// Run enables download events on the browser and blocks translating them
// until ctx is cancelled.
func (s *Source) Run(ctx context.Context) error {
	err := proto.BrowserSetDownloadBehavior{
		Behavior:      proto.BrowserSetDownloadBehaviorBehaviorAllow,
		DownloadPath:  s.dir,
		EventsEnabled: true,
	}.Call(s.browser)
	if err != nil {
		return err
	}

	wait := s.browser.Context(ctx).EachEvent(
		func(e *proto.BrowserDownloadWillBegin) {
			s.onWillBegin(ctx, e)
		},
		func(e *proto.BrowserDownloadProgress) {
			s.onProgress(ctx, e)
		},
	)

	// Blocks until the context is cancelled.
	wait()
	return ctx.Err()
}

func (s *Source) onWillBegin(ctx context.Context, e *proto.BrowserDownloadWillBegin) {
	h := &cdpHandle{
		source:   s,
		guid:     e.GUID,
		url:      e.URL,
		filename: e.SuggestedFilename,
		savePath: filepath.Join(s.dir, e.SuggestedFilename),
	}

	s.mu.Lock()
	s.handles[e.GUID] = h
	s.mu.Unlock()

	id := s.tracker.OnCreated(ctx, h)

	s.mu.Lock()
	s.ids[e.GUID] = id
	s.mu.Unlock()

	s.logger.Info("download started", "guid", e.GUID, "url", e.URL, "file", e.SuggestedFilename)
}

func (s *Source) onProgress(ctx context.Context, e *proto.BrowserDownloadProgress) {
	s.mu.Lock()
	h, ok := s.handles[e.GUID]
	id := s.ids[e.GUID]
	s.mu.Unlock()
	if !ok {
		// Progress for a download that began before we attached; nothing
		// to correlate it with.
		return
	}

	h.update(int64(e.ReceivedBytes), int64(e.TotalBytes))

	switch e.State {
	case proto.BrowserDownloadProgressStateCompleted:
		s.tracker.OnDone(ctx, id, downloads.StateCompleted)
		s.forget(e.GUID)
	case proto.BrowserDownloadProgressStateCanceled:
		s.tracker.OnDone(ctx, id, downloads.StateCancelled)
		s.forget(e.GUID)
	default:
		s.tracker.OnProgress(ctx, id, false)
	}
}

func (s *Source) forget(guid string) {
	s.mu.Lock()
	delete(s.handles, guid)
	delete(s.ids, guid)
	s.mu.Unlock()
}

// cdpHandle implements downloads.Handle over CDP state. The protocol offers
// no pause/resume for downloads, so the handle reports CanResume false and
// treats Pause/Resume as no-ops; Cancel maps to Browser.cancelDownload.
type cdpHandle struct {
	source   *Source
	guid     string
	url      string
	filename string
	savePath string

	mu       sync.Mutex
	received int64
	total    int64
}

func (h *cdpHandle) update(received, total int64) {
	h.mu.Lock()
	h.received = received
	h.total = total
	h.mu.Unlock()
}

func (h *cdpHandle) URL() string      { return h.url }
func (h *cdpHandle) Filename() string { return h.filename }
func (h *cdpHandle) SavePath() string { return h.savePath }

func (h *cdpHandle) ReceivedBytes() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.received
}

func (h *cdpHandle) TotalBytes() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

func (h *cdpHandle) IsPaused() bool   { return false }
func (h *cdpHandle) CanResume() bool  { return false }
func (h *cdpHandle) MimeType() string { return "" }

func (h *cdpHandle) Pause()  {}
func (h *cdpHandle) Resume() {}

func (h *cdpHandle) Cancel() {
	err := proto.BrowserCancelDownload{GUID: h.guid}.Call(h.source.browser)
	if err != nil {
		h.source.logger.Warn("cdp cancel failed", "guid", h.guid, "error", err)
	}
}
