package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	written  []interface{}
	closed   bool
	writeErr error
	wrote    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{wrote: make(chan struct{}, 8)}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, v)
	c.wrote <- struct{}{}
	return c.writeErr
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func waitWrite(t *testing.T, c *fakeConn) {
	t.Helper()
	select {
	case <-c.wrote:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a write")
	}
}

func TestHubDeliversToRegisteredUser(t *testing.T) {
	hub := startHub(t)
	user := uuid.New()
	conn := newFakeConn()

	hub.Register(&Client{UserID: user, Conn: conn})
	hub.Publish(user, map[string]string{"type": "certificate_issued"})
	waitWrite(t, conn)

	conn.mu.Lock()
	require.Len(t, conn.written, 1)
	assert.Equal(t, map[string]string{"type": "certificate_issued"}, conn.written[0])
	conn.mu.Unlock()
}

func TestHubDropsWriteFailures(t *testing.T) {
	hub := startHub(t)
	user := uuid.New()
	conn := newFakeConn()
	conn.writeErr = errors.New("broken pipe")

	hub.Register(&Client{UserID: user, Conn: conn})
	hub.Publish(user, "first")
	waitWrite(t, conn)

	hub.Publish(user, "second")
	select {
	case <-conn.wrote:
		t.Fatal("a failed connection must be dropped")
	case <-time.After(100 * time.Millisecond):
	}
	assert.True(t, conn.isClosed())
}

func TestHubReplacesAndUnregisters(t *testing.T) {
	hub := startHub(t)
	user := uuid.New()
	first, second := newFakeConn(), newFakeConn()

	hub.Register(&Client{UserID: user, Conn: first})
	hub.Register(&Client{UserID: user, Conn: second})
	// a stale unregister must not evict the newer connection
	hub.Unregister(&Client{UserID: user, Conn: first})

	hub.Publish(user, "event")
	waitWrite(t, second)
	assert.True(t, first.isClosed())

	hub.Unregister(&Client{UserID: user, Conn: second})
	hub.Publish(user, "ignored")
	select {
	case <-second.wrote:
		t.Fatal("unregistered client received an event")
	case <-time.After(100 * time.Millisecond):
	}
}
