package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-rod/rod"

	"github.com/runnerr0/backtrail/internal/cdp"
	"github.com/runnerr0/backtrail/internal/config"
	"github.com/runnerr0/backtrail/internal/downloads"
)

// Execute implements the go-flags Commander interface for WatchCommand.
func (c *WatchCommand) Execute(args []string) error {
	st, err := openStores(c.globals)
	if err != nil {
		return err
	}
	defer st.Close()

	logger := newLogger(c.globals, st.Config)

	remoteURL := c.RemoteURL
	if remoteURL == "" {
		remoteURL = st.Config.Browser.RemoteURL
	}
	if remoteURL == "" {
		return fmt.Errorf("no browser to watch: pass --remote-url or set browser.remote_url in the config")
	}

	dir := c.Dir
	if dir == "" {
		dir = st.Config.Downloads.Dir
	}
	dir, err = config.ExpandPath(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}

	browser := rod.New().ControlURL(remoteURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}
	defer browser.Close() //nolint:errcheck

	tracker := downloads.NewTracker(downloads.Config{
		Store:          st.History,
		GracePeriod:    time.Duration(st.Config.Downloads.GraceSeconds) * time.Second,
		NotifyInterval: time.Duration(st.Config.Downloads.NotifyIntervalMS) * time.Millisecond,
		Logger:         logger,
	})
	defer tracker.Close()

	tracker.OnChange(func(snaps []downloads.Snapshot) {
		for _, s := range snaps {
			logger.Info("download progress",
				"id", s.ID,
				"state", s.State,
				"received", s.ReceivedBytes,
				"total", s.TotalBytes)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source := cdp.NewSource(browser, tracker, dir, logger)

	logger.Info("watching browser downloads", "remote_url", remoteURL, "dir", dir)
	if err := source.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("download source: %w", err)
	}

	return nil
}
