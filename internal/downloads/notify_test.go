package downloads

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottle_CoalescesBurst(t *testing.T) {
	tr, _, advance := newTestTracker(t)
	ctx := context.Background()

	var mu sync.Mutex
	var deliveries [][]Snapshot
	tr.OnChange(func(s []Snapshot) {
		mu.Lock()
		deliveries = append(deliveries, s)
		mu.Unlock()
	})

	h := &fakeHandle{url: "https://example.com/a.zip", savePath: "/tmp/a.zip", total: 1 << 20}
	id := tr.OnCreated(ctx, h) // important: immediate delivery

	mu.Lock()
	created := len(deliveries)
	mu.Unlock()
	require.Equal(t, 1, created)

	// 50 progress ticks within ~200ms of wall time.
	for i := 0; i < 50; i++ {
		h.set(func(h *fakeHandle) { h.received += 1024 })
		advance(20 * time.Millisecond)
		tr.OnProgress(ctx, id, false)
		time.Sleep(4 * time.Millisecond)
	}

	// Let the trailing edge fire.
	time.Sleep(250 * time.Millisecond)

	mu.Lock()
	burst := len(deliveries) - created
	mu.Unlock()
	assert.LessOrEqual(t, burst, 4, "50 ticks in ~200ms must coalesce to a few deliveries")
	assert.GreaterOrEqual(t, burst, 1)
}

func TestThrottle_CancelBypassesAndIsFinal(t *testing.T) {
	tr, _, advance := newTestTracker(t)
	ctx := context.Background()

	var mu sync.Mutex
	var last []Snapshot
	var count int
	tr.OnChange(func(s []Snapshot) {
		mu.Lock()
		last = s
		count++
		mu.Unlock()
	})

	h := &fakeHandle{url: "https://example.com/a.zip", savePath: "/tmp/a.zip", total: 1 << 20}
	id := tr.OnCreated(ctx, h)

	// Mid-burst cancel must be delivered immediately.
	for i := 0; i < 10; i++ {
		h.set(func(h *fakeHandle) { h.received += 1024 })
		advance(20 * time.Millisecond)
		tr.OnProgress(ctx, id, false)
	}

	mu.Lock()
	before := count
	mu.Unlock()

	require.True(t, tr.Cancel(ctx, id))

	mu.Lock()
	afterCancel := count
	cancelled := len(last) == 0 // cancel removes from registry immediately
	mu.Unlock()

	assert.Greater(t, afterCancel, before, "cancel bypasses the throttle")
	assert.True(t, cancelled, "final observed snapshot no longer lists the download")

	// Any trailing throttled delivery must not resurrect it.
	time.Sleep(250 * time.Millisecond)
	mu.Lock()
	finalEmpty := len(last) == 0
	mu.Unlock()
	assert.True(t, finalEmpty)
}

func TestNotifier_SubscribeAfterEventsSeesNextSnapshot(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	h := &fakeHandle{url: "https://example.com/a.zip", savePath: "/tmp/a.zip"}
	tr.OnCreated(ctx, h)

	var mu sync.Mutex
	var got []Snapshot
	tr.OnChange(func(s []Snapshot) {
		mu.Lock()
		got = s
		mu.Unlock()
	})

	h2 := &fakeHandle{url: "https://example.com/b.zip", savePath: "/tmp/b.zip"}
	tr.OnCreated(ctx, h2)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, "https://example.com/a.zip", got[0].URL)
	assert.Equal(t, "https://example.com/b.zip", got[1].URL)
}
