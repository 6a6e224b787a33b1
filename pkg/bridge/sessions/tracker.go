// Package sessions tracks live media streams so shutdown can cancel them and
// wait for teardown to finish.
package sessions

import (
	"context"
	"sync"
)

// Handle is what the tracker can do to a live stream.
type Handle struct {
	CallSID string
	Cancel  func()
}

// Tracker indexes live streams by stream SID.
type Tracker struct {
	mu      sync.Mutex
	streams map[string]*trackedStream
	wg      sync.WaitGroup
}

type trackedStream struct {
	handle Handle
	once   sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{
		streams: make(map[string]*trackedStream),
	}
}

// Register adds a stream and returns its unregister function. Unregister is
// idempotent. Registering a stream SID that is already present displaces the
// old entry, since the transport guarantees one socket per stream.
func (t *Tracker) Register(streamSID string, h Handle) (unregister func()) {
	if t == nil {
		return func() {}
	}

	entry := &trackedStream{handle: h}

	t.mu.Lock()
	if t.streams == nil {
		t.streams = make(map[string]*trackedStream)
	}
	old := t.streams[streamSID]
	t.streams[streamSID] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		t.unregister(streamSID, old)
	}

	return func() { t.unregister(streamSID, entry) }
}

func (t *Tracker) unregister(streamSID string, entry *trackedStream) {
	if t == nil || entry == nil {
		return
	}
	entry.once.Do(func() {
		t.mu.Lock()
		if t.streams != nil && t.streams[streamSID] == entry {
			delete(t.streams, streamSID)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

// Count returns the number of live streams.
func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.streams)
}

// ActiveStreams returns the stream SIDs currently registered.
func (t *Tracker) ActiveStreams() []string {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.streams))
	for sid := range t.streams {
		out = append(out, sid)
	}
	return out
}

// CancelAll cancels every live stream. Used on drain.
func (t *Tracker) CancelAll() (canceled int) {
	if t == nil {
		return 0
	}

	var cancels []func()
	t.mu.Lock()
	for _, entry := range t.streams {
		if entry == nil || entry.handle.Cancel == nil {
			continue
		}
		cancels = append(cancels, entry.handle.Cancel)
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every registered stream has unregistered, or ctx expires.
// It reports whether teardown completed.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	if ctx == nil {
		t.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
