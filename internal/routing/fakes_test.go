package routing

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/wesleywu/routewatch/internal/config"
	"github.com/wesleywu/routewatch/internal/routing/platform"
	"github.com/wesleywu/routewatch/internal/routing/types"
)

// fakeChannel answers every receive with a scripted response
type fakeChannel struct {
	mu         sync.Mutex
	response   []byte
	receiveErr error
	sendErr    error
	sent       [][]byte
	deadline   time.Time
	closed     int
}

func (c *fakeChannel) Send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, append([]byte(nil), b...))
	return nil
}

func (c *fakeChannel) ReceiveUntilDone(buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.receiveErr != nil {
		return 0, c.receiveErr
	}
	if len(c.response) > len(buf) {
		return 0, types.NewError(types.ErrReceive, "receive", errors.New("response too large"))
	}
	return copy(buf, c.response), nil
}

func (c *fakeChannel) SetDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeChannel) closedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// blockingChannel holds the first receive until release is closed
type blockingChannel struct {
	fakeChannel
	entered chan struct{}
	release chan struct{}
}

func newBlockingChannel(response []byte) *blockingChannel {
	return &blockingChannel{
		fakeChannel: fakeChannel{response: response},
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (c *blockingChannel) ReceiveUntilDone(buf []byte) (int, error) {
	close(c.entered)
	<-c.release
	return c.fakeChannel.ReceiveUntilDone(buf)
}

// fakeWatcher delivers notifications pushed by the test
type fakeWatcher struct {
	notes   chan []byte
	errs    chan error
	wake    chan struct{}
	pending []byte

	mu     sync.Mutex
	closed int
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		notes: make(chan []byte, 16),
		errs:  make(chan error, 1),
		wake:  make(chan struct{}, 1),
	}
}

func (w *fakeWatcher) Wait() (bool, error) {
	select {
	case b := <-w.notes:
		w.pending = b
		return true, nil
	case err := <-w.errs:
		return false, err
	case <-w.wake:
		return false, nil
	}
}

func (w *fakeWatcher) Wake() error {
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

func (w *fakeWatcher) Send(b []byte) error { return nil }

func (w *fakeWatcher) ReceiveUntilDone(buf []byte) (int, error) {
	b := w.pending
	w.pending = nil
	if b == nil {
		return 0, types.NewError(types.ErrReceive, "receive", errors.New("socket gone"))
	}
	return copy(buf, b), nil
}

func (w *fakeWatcher) SetDeadline(time.Time) error { return nil }

func (w *fakeWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	return nil
}

func (w *fakeWatcher) closedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// opener records the order in which channels are opened
type opener struct {
	mu    sync.Mutex
	calls []string
}

func (o *opener) channel(ch platform.Channel, err error) Option {
	return WithChannelOpener(func(groups uint32) (platform.Channel, error) {
		o.record("channel")
		if err != nil {
			return nil, err
		}
		return ch, nil
	})
}

func (o *opener) watcher(w platform.Watcher, err error) Option {
	return WithWatcherOpener(func(groups uint32) (platform.Watcher, error) {
		o.record("watcher")
		if err != nil {
			return nil, err
		}
		return w, nil
	})
}

func (o *opener) record(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, name)
}

func (o *opener) order() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.calls...)
}

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.BufferSize = 64 * 1024
	cfg.ResolveWorkers = 2
	return cfg
}
