package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/chatcore/internal/store"
	"github.com/vovakirdan/chatcore/internal/store/sqlite"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent asserts that nothing is queued for the client right now.
func noEvent(t *testing.T, c *Client) {
	t.Helper()

	select {
	case ev := <-c.Events:
		t.Fatalf("unexpected event for %s: %+v", c.ID, ev)
	default:
	}
}

func newTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestHub(t *testing.T, repo store.Repository, opts Options) *Hub {
	t.Helper()

	h := NewHub(repo, nil, opts)
	t.Cleanup(h.cancel)
	return h
}

// attach adds a client to the hub without starting its dispatch loop,
// so tests can drive it deterministically through handle.
func attach(h *Hub, id string) *Client {
	c := NewClient(id, 0)
	h.registry.Add(c)
	return c
}
