package realtime

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/codewandler/realtime-go/events"
)

// deltaTracker reassembles streamed text per content stream. A stream is
// opened by its first delta and discarded once its done event arrived.
type deltaTracker struct {
	mu   sync.Mutex
	open map[events.ContentKey]*strings.Builder
	log  *slog.Logger
}

func newDeltaTracker(log *slog.Logger) *deltaTracker {
	return &deltaTracker{
		open: make(map[events.ContentKey]*strings.Builder),
		log:  log,
	}
}

func (t *deltaTracker) append(key events.ContentKey, delta string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.open[key]
	if !ok {
		b = &strings.Builder{}
		t.open[key] = b
	}
	b.WriteString(delta)
}

// done closes the stream and returns the final value, which is the one the
// server sent. A different accumulation is logged.
func (t *deltaTracker) done(key events.ContentKey, final string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.open[key]
	delete(t.open, key)
	if ok && b.String() != final {
		t.log.Warn("streamed deltas differ from final value",
			slog.String("key", key.String()),
			slog.Int("streamed", b.Len()),
			slog.Int("final", len(final)),
		)
	}
	return final
}

func (t *deltaTracker) get(key events.ContentKey) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.open[key]
	if !ok {
		return "", false
	}
	return b.String(), true
}

// dropResponse discards streams of a finished response that never got
// their done event.
func (t *deltaTracker) dropResponse(responseID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.open {
		if key.ResponseID == responseID {
			t.log.Debug("dropping unfinished stream", slog.String("key", key.String()))
			delete(t.open, key)
		}
	}
}

func (t *deltaTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.open)
}

func (t *deltaTracker) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}
