package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wesleywu/routewatch/internal/config"
	"github.com/wesleywu/routewatch/internal/logger"
	"github.com/wesleywu/routewatch/internal/network"
	"github.com/wesleywu/routewatch/internal/routing"
	"github.com/wesleywu/routewatch/internal/routing/metrics"
	"github.com/wesleywu/routewatch/internal/routing/types"
)

// Version is reported at service start and by the version command
var Version = "1.0.0"

type ServiceManager struct {
	config    *config.Config
	logger    *logger.Logger
	monitor   *routing.Monitor
	registry  *prometheus.Registry
	server    *http.Server
	stopChan  chan os.Signal
	doneChan  chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	mutex     sync.RWMutex
	isRunning bool

	// guarded by updateMutex
	updateMutex sync.Mutex
	out         io.Writer
	watch       []netip.Addr
	lastMatch   map[netip.Addr]string
	failure     error
}

// NewServiceManager wires the route monitor, its resolver and metrics.
// Every table change is printed to out.
func NewServiceManager(cfg *config.Config, log *logger.Logger, out io.Writer, opts ...routing.Option) (*ServiceManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	sm := &ServiceManager{
		config:    cfg,
		logger:    log.WithComponent("service"),
		registry:  registry,
		out:       out,
		watch:     cfg.WatchAddrs(),
		stopChan:  make(chan os.Signal, 1),
		doneChan:  make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		lastMatch: make(map[netip.Addr]string),
	}

	sm.monitor = routing.NewMonitor(cfg, network.NewResolver(log), log, m, opts...)
	sm.monitor.OnUpdate(sm.handleUpdate)

	return sm, nil
}

func (sm *ServiceManager) Start() error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if sm.isRunning {
		return fmt.Errorf("service is already running")
	}

	signal.Notify(sm.stopChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sm.logger.ServiceStart(Version, fmt.Sprintf("%d", os.Getpid()))

	if sm.config.MetricsAddr != "" {
		sm.startMetricsServer()
	}

	if err := sm.monitor.Start(sm.ctx); err != nil {
		signal.Stop(sm.stopChan)
		sm.stopMetricsServer()
		return fmt.Errorf("failed to start route monitor: %w", err)
	}

	go sm.serviceLoop()
	sm.isRunning = true

	return nil
}

func (sm *ServiceManager) Stop() error {
	sm.mutex.Lock()
	if !sm.isRunning {
		sm.mutex.Unlock()
		return nil
	}
	sm.isRunning = false
	sm.mutex.Unlock()

	sm.logger.ServiceStop()

	sm.cancel()
	signal.Stop(sm.stopChan)

	if err := sm.monitor.Stop(); err != nil {
		sm.logger.Error("failed to stop route monitor", "error", err)
	}
	sm.stopMetricsServer()

	select {
	case <-sm.doneChan:
		return nil
	case <-time.After(10 * time.Second):
		return fmt.Errorf("service stop timeout")
	}
}

// Wait blocks until a signal arrives or the monitor fails
func (sm *ServiceManager) Wait() error {
	select {
	case <-sm.ctx.Done():
		if err := sm.Stop(); err != nil {
			return err
		}
		return sm.Failure()
	case sig := <-sm.stopChan:
		sm.logger.Info("received signal", "signal", sig.String())
		return sm.Stop()
	}
}

// Failure returns the error that ended the monitor, if any
func (sm *ServiceManager) Failure() error {
	sm.updateMutex.Lock()
	defer sm.updateMutex.Unlock()
	return sm.failure
}

func (sm *ServiceManager) serviceLoop() {
	defer close(sm.doneChan)

	select {
	case <-sm.ctx.Done():
	case <-sm.monitor.Done():
		if err := sm.monitor.Err(); err != nil {
			sm.logger.Error("route monitor exited", "error", err)
			sm.updateMutex.Lock()
			sm.failure = err
			sm.updateMutex.Unlock()
		}
		sm.cancel()
	}
}

// handleUpdate prints the table and reports watched destinations whose route changed
func (sm *ServiceManager) handleUpdate(routes []types.Route) {
	sm.updateMutex.Lock()
	defer sm.updateMutex.Unlock()

	if err := routing.WriteTable(sm.out, routes); err != nil {
		sm.logger.Error("failed to write route table", "error", err)
	}

	for _, addr := range sm.watch {
		via := "unreachable"
		if r, ok := sm.monitor.Match(addr); ok {
			via = fmt.Sprintf("%s via %s dev %s", r.Prefix(), r.Gateway, r.OutIfName)
		}

		previous, seen := sm.lastMatch[addr]
		sm.lastMatch[addr] = via
		if seen && previous == via {
			continue
		}
		sm.logger.Info("watched destination route",
			"destination", addr.String(),
			"route", via,
			"previous", previous)
	}
}

func (sm *ServiceManager) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(sm.registry, promhttp.HandlerOpts{}))

	sm.server = &http.Server{
		Addr:              sm.config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	server := sm.server
	go func() {
		sm.logger.Info("serving metrics", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sm.logger.Error("metrics server failed", "error", err)
		}
	}()
}

func (sm *ServiceManager) stopMetricsServer() {
	if sm.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sm.server.Shutdown(ctx); err != nil {
		sm.logger.Error("failed to stop metrics server", "error", err)
	}
	sm.server = nil
}

func (sm *ServiceManager) IsRunning() bool {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.isRunning
}

func (sm *ServiceManager) GetStatus() map[string]interface{} {
	return map[string]interface{}{
		"running":       sm.IsRunning(),
		"monitor_state": sm.monitor.State().String(),
		"routes":        len(sm.monitor.Snapshot()),
		"watched":       len(sm.watch),
	}
}
