package routing

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"strconv"
	"sync"

	"github.com/wesleywu/routewatch/internal/config"
	"github.com/wesleywu/routewatch/internal/logger"
	"github.com/wesleywu/routewatch/internal/routing/codec"
	"github.com/wesleywu/routewatch/internal/routing/entities"
	"github.com/wesleywu/routewatch/internal/routing/metrics"
	"github.com/wesleywu/routewatch/internal/routing/platform"
	"github.com/wesleywu/routewatch/internal/routing/types"
)

// State is the lifecycle state of a Monitor
type State int

const (
	// StateStopped means no socket is open
	StateStopped State = iota
	// StateStarting means the subscription is being opened and the table seeded
	StateStarting
	// StateRunning means notifications are being applied
	StateRunning
	// StateStopping means a stop was requested and the loop is exiting
	StateStopping
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// UpdateFunc receives the table after every visible change
type UpdateFunc func(routes []types.Route)

// Monitor keeps a RouteTable in sync with kernel route notifications
type Monitor struct {
	mutex   sync.RWMutex
	state   State
	watcher platform.Watcher
	done    chan struct{}
	err     error

	openWatcher func(groups uint32) (platform.Watcher, error)
	groups      uint32
	querier     *Querier
	decoder     *codec.Decoder
	table       *entities.RouteTable
	bufferSize  int
	handlers    []UpdateFunc

	// Owned by the loop goroutine
	published       bool
	lastFingerprint uint64

	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewMonitor creates a stopped Monitor. resolver and m may be nil.
func NewMonitor(cfg *config.Config, resolver types.Resolver, log *logger.Logger, m *metrics.Metrics, opts ...Option) *Monitor {
	o := buildOptions(opts)

	done := make(chan struct{})
	close(done)

	return &Monitor{
		state:       StateStopped,
		done:        done,
		openWatcher: o.openWatcher,
		groups:      platform.MonitorGroups,
		querier:     NewQuerier(cfg, resolver, log, m, opts...),
		decoder:     codec.NewDecoder(resolver, cfg.ResolveWorkers),
		table:       entities.NewRouteTable(),
		bufferSize:  cfg.BufferSize,
		log:         log.WithComponent("monitor"),
		metrics:     m,
	}
}

// OnUpdate registers fn to be called with a snapshot after every table change.
// Callbacks run on the monitor goroutine.
func (m *Monitor) OnUpdate(fn UpdateFunc) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.handlers = append(m.handlers, fn)
}

// Start subscribes to route notifications, seeds the table with a full dump
// and starts applying notifications in the background. A failed dump is
// logged and the monitor runs on with whatever notifications arrive.
func (m *Monitor) Start(ctx context.Context) error {
	m.mutex.Lock()
	if m.state != StateStopped {
		state := m.state
		m.mutex.Unlock()
		return fmt.Errorf("route monitor is already %s", state)
	}
	m.state = StateStarting
	m.err = nil
	m.published = false
	m.mutex.Unlock()

	// Subscribe first so nothing between the dump and the subscription is lost
	w, err := m.openWatcher(m.groups)
	if err != nil {
		m.setState(StateStopped)
		return err
	}

	routes, err := m.querier.Dump(ctx)
	if err != nil {
		m.log.Error("Initial route dump failed", slog.Any("error", err))
	}
	m.table.FullReplace(routes)

	m.mutex.Lock()
	m.watcher = w
	m.done = make(chan struct{})
	m.state = StateRunning
	done := m.done
	m.mutex.Unlock()

	m.log.MonitorStart(m.groups)

	go m.loop(w, done)
	return nil
}

func (m *Monitor) setState(state State) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.state = state
}

// Stop interrupts the wait and blocks until the loop has closed its socket
func (m *Monitor) Stop() error {
	m.mutex.Lock()
	if m.state != StateRunning {
		m.mutex.Unlock()
		return nil
	}
	m.state = StateStopping
	w, done := m.watcher, m.done
	m.mutex.Unlock()

	if err := w.Wake(); err != nil {
		m.log.Warn("Failed to wake route monitor", slog.Any("error", err))
	}
	<-done
	return nil
}

// State returns the current lifecycle state
func (m *Monitor) State() State {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.state
}

// Done is closed when the loop has exited
func (m *Monitor) Done() <-chan struct{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.done
}

// Err returns the error that ended the loop, nil after a requested stop
func (m *Monitor) Err() error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.err
}

// Snapshot returns a copy of the mirrored table in display order
func (m *Monitor) Snapshot() []types.Route {
	return m.table.Snapshot()
}

// Match returns the mirrored route the kernel would pick for addr
func (m *Monitor) Match(addr netip.Addr) (types.Route, bool) {
	return m.table.Match(addr)
}

func (m *Monitor) loop(w platform.Watcher, done chan struct{}) {
	defer func() {
		w.Close()

		m.mutex.Lock()
		m.state = StateStopped
		m.watcher = nil
		m.mutex.Unlock()

		m.log.MonitorStop()
		close(done)
	}()

	m.publish()

	buf := make([]byte, m.bufferSize)
	for {
		ready, err := w.Wait()
		if err != nil {
			m.fail(err)
			return
		}
		if m.State() == StateStopping {
			return
		}
		if !ready {
			continue
		}

		n, err := w.ReceiveUntilDone(buf)
		if err != nil {
			m.fail(err)
			return
		}
		if n == 0 {
			continue
		}

		events, err := m.decoder.Decode(buf[:n])
		if err != nil {
			m.log.Error("Dropping undecodable notification", slog.Any("error", err), slog.Int("bytes", n))
			continue
		}
		m.handle(events)
	}
}

func (m *Monitor) fail(err error) {
	m.log.Error("Route monitor failed", slog.Any("error", err))

	m.mutex.Lock()
	m.err = err
	m.mutex.Unlock()
}

// handle applies decoded notifications and publishes the table when it changed
func (m *Monitor) handle(events []types.Event) {
	changed := 0
	for _, ev := range events {
		switch ev.Kind {
		case types.EventNewRoute, types.EventDelRoute:
			m.metrics.RecordEvent(ev.Kind.String())
			if m.table.Apply(ev) {
				changed++
				r := ev.Route
				m.log.RouteEvent(ev.Kind.String(), r.Prefix().String(), r.Gateway.String(), r.Metric, r.OutIfName)
			}
		case types.EventError:
			m.metrics.RecordKernelError(strconv.Itoa(int(ev.Err.Errno)))
			m.log.KernelError(ev.Err.Errno, ev.Err.Error())
		}
	}

	if changed > 0 {
		m.publish()
	}
}

// publish hands the table to the update callbacks unless its content is
// unchanged since the last call
func (m *Monitor) publish() {
	fp := m.table.Fingerprint()
	if m.published && fp == m.lastFingerprint {
		return
	}
	m.published = true
	m.lastFingerprint = fp

	routes := m.table.Snapshot()
	m.metrics.RecordTableChange(len(routes))
	m.log.TableUpdated(len(routes), fp)

	m.mutex.RLock()
	handlers := append([]UpdateFunc(nil), m.handlers...)
	m.mutex.RUnlock()

	for _, fn := range handlers {
		fn(routes)
	}
}
