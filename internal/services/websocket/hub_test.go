package websocket

import (
	"sync"
	"testing"
	"time"

	"streamdetect/internal/logger"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_BroadcastReachesViewers(t *testing.T) {
	hub := NewHubService(logger.Discard())
	go hub.Run()
	defer hub.Stop()

	a, b := &fakeConn{}, &fakeConn{}
	hub.Register(a)
	hub.Register(b)
	waitFor(t, func() bool { return hub.GetClientCount() == 2 })

	if !hub.Broadcast([]byte(`{"seq":10}`)) {
		t.Fatal("Expected broadcast to be queued")
	}
	waitFor(t, func() bool { return a.count() == 1 && b.count() == 1 })

	hub.Unregister(a)
	waitFor(t, func() bool { return hub.GetClientCount() == 1 })
	if !a.isClosed() {
		t.Error("Expected unregistered viewer to be closed")
	}
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHubService(logger.Discard())
	// Run is not started, so nothing drains the queue.
	sent := 0
	for i := 0; i < 10; i++ {
		if hub.Broadcast([]byte("frame")) {
			sent++
		}
	}
	if sent != 2 {
		t.Errorf("Expected 2 queued broadcasts, got %d", sent)
	}
	if hub.Skipped() != 8 {
		t.Errorf("Expected 8 skipped, got %d", hub.Skipped())
	}
}

func TestHub_StopRequest(t *testing.T) {
	hub := NewHubService(logger.Discard())
	if hub.StopRequested() {
		t.Fatal("Stop should not be requested initially")
	}
	hub.RequestStop()
	hub.RequestStop()
	if !hub.StopRequested() {
		t.Error("Expected stop to be requested")
	}
}

func TestHub_StopClosesViewers(t *testing.T) {
	hub := NewHubService(logger.Discard())
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	c := &fakeConn{}
	hub.Register(c)
	waitFor(t, func() bool { return hub.GetClientCount() == 1 })

	hub.Stop()
	hub.Stop()
	<-done

	if !c.isClosed() {
		t.Error("Expected viewer closed on stop")
	}

	late := &fakeConn{}
	hub.Register(late)
	if !late.isClosed() {
		t.Error("Expected registration after stop to close the connection")
	}
}
