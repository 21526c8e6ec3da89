package daemon

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wesleywu/routewatch/internal/config"
	"github.com/wesleywu/routewatch/internal/logger"
	"github.com/wesleywu/routewatch/internal/routing"
	"github.com/wesleywu/routewatch/internal/routing/codec"
	"github.com/wesleywu/routewatch/internal/routing/codec/codectest"
	"github.com/wesleywu/routewatch/internal/routing/platform"
	"github.com/wesleywu/routewatch/internal/routing/types"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// scriptedConn replays one response for the seeding dump and otherwise
// behaves like an idle subscription
type scriptedConn struct {
	response []byte
	failWait chan error
	wake     chan struct{}
}

func (c *scriptedConn) Send([]byte) error { return nil }

func (c *scriptedConn) ReceiveUntilDone(buf []byte) (int, error) {
	return copy(buf, c.response), nil
}

func (c *scriptedConn) SetDeadline(time.Time) error { return nil }

func (c *scriptedConn) Close() error { return nil }

func (c *scriptedConn) Wait() (bool, error) {
	select {
	case err := <-c.failWait:
		return false, err
	case <-c.wake:
		return false, nil
	}
}

func (c *scriptedConn) Wake() error {
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

func newTestService(t *testing.T, out *lockedBuffer) (*ServiceManager, *scriptedConn) {
	t.Helper()

	var dump []byte
	dump = codectest.Route(dump, codec.TypeNewRoute, codectest.IPv4Main("", 0, "192.168.1.1", 2, 100))
	dump = codectest.Route(dump, codec.TypeNewRoute, codectest.IPv4Main("10.0.0.0", 8, "10.0.0.1", 2, 0))
	dump = codectest.Done(dump)

	dumpConn := &scriptedConn{response: dump}
	watchConn := &scriptedConn{failWait: make(chan error, 1), wake: make(chan struct{}, 1)}

	cfg := config.NewConfig()
	cfg.ResolveWorkers = 2
	cfg.Watch = []string{"10.1.2.3"}

	sm, err := NewServiceManager(cfg, logger.Discard(), out,
		routing.WithChannelOpener(func(uint32) (platform.Channel, error) { return dumpConn, nil }),
		routing.WithWatcherOpener(func(uint32) (platform.Watcher, error) { return watchConn, nil }),
	)
	if err != nil {
		t.Fatalf("NewServiceManager failed: %v", err)
	}
	return sm, watchConn
}

func waitForOutput(t *testing.T, out *lockedBuffer, substr string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), substr) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Expected output to contain %q, got:\n%s", substr, out.String())
}

func TestServiceStartStop(t *testing.T) {
	out := &lockedBuffer{}
	sm, _ := newTestService(t, out)

	if err := sm.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !sm.IsRunning() {
		t.Error("Expected service to be running")
	}
	if err := sm.Start(); err == nil {
		t.Error("Expected second Start to fail")
	}

	waitForOutput(t, out, "10.0.0.0")

	status := sm.GetStatus()
	if status["routes"] != 2 {
		t.Errorf("Expected 2 routes in status, got %v", status["routes"])
	}
	if status["monitor_state"] != "Running" {
		t.Errorf("Expected Running monitor, got %v", status["monitor_state"])
	}

	if err := sm.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if sm.IsRunning() {
		t.Error("Expected service to be stopped")
	}
	if err := sm.Failure(); err != nil {
		t.Errorf("Expected no failure, got %v", err)
	}
}

func TestServiceWaitReturnsMonitorFailure(t *testing.T) {
	out := &lockedBuffer{}
	sm, watchConn := newTestService(t, out)

	if err := sm.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitForOutput(t, out, "Destination")

	watchConn.failWait <- types.NewError(types.ErrReceive, "wait", nil)

	done := make(chan error, 1)
	go func() { done <- sm.Wait() }()

	select {
	case err := <-done:
		if !types.IsKind(err, types.ErrReceive) {
			t.Errorf("Expected ReceiveFailed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after the monitor failed")
	}
	if sm.IsRunning() {
		t.Error("Expected service to be stopped")
	}
}

func TestNewServiceManagerRejectsInvalidConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.BufferSize = 1

	if _, err := NewServiceManager(cfg, logger.Discard(), &lockedBuffer{}); err == nil {
		t.Error("Expected invalid configuration to be rejected")
	}
}
