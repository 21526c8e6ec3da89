package routing

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/wesleywu/routewatch/internal/config"
	"github.com/wesleywu/routewatch/internal/logger"
	"github.com/wesleywu/routewatch/internal/routing/codec"
	"github.com/wesleywu/routewatch/internal/routing/entities"
	"github.com/wesleywu/routewatch/internal/routing/metrics"
	"github.com/wesleywu/routewatch/internal/routing/platform"
	"github.com/wesleywu/routewatch/internal/routing/types"
)

// Option customizes how queriers and monitors reach the kernel
type Option func(*options)

type options struct {
	openChannel func(groups uint32) (platform.Channel, error)
	openWatcher func(groups uint32) (platform.Watcher, error)
}

// WithChannelOpener replaces the socket used by one-shot queries
func WithChannelOpener(open func(groups uint32) (platform.Channel, error)) Option {
	return func(o *options) {
		o.openChannel = open
	}
}

// WithWatcherOpener replaces the subscribed socket used by monitors
func WithWatcherOpener(open func(groups uint32) (platform.Watcher, error)) Option {
	return func(o *options) {
		o.openWatcher = open
	}
}

func buildOptions(opts []Option) options {
	o := options{
		openChannel: func(groups uint32) (platform.Channel, error) {
			conn, err := platform.Open(groups)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
		openWatcher: func(groups uint32) (platform.Watcher, error) {
			conn, err := platform.Open(groups)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Querier answers "what is the route to X (or all)" with one blocking round
// trip on a private socket per call
type Querier struct {
	open       func(groups uint32) (platform.Channel, error)
	encoder    *codec.Encoder
	decoder    *codec.Decoder
	bufferSize int
	timeout    time.Duration
	log        *logger.Logger
	metrics    *metrics.Metrics
}

// NewQuerier creates a Querier. resolver and m may be nil.
func NewQuerier(cfg *config.Config, resolver types.Resolver, log *logger.Logger, m *metrics.Metrics, opts ...Option) *Querier {
	o := buildOptions(opts)
	return &Querier{
		open:       o.openChannel,
		encoder:    codec.NewEncoder(cfg.MaxRequestSize),
		decoder:    codec.NewDecoder(resolver, cfg.ResolveWorkers),
		bufferSize: cfg.BufferSize,
		timeout:    cfg.QueryTimeout,
		log:        log.WithComponent("query"),
		metrics:    m,
	}
}

// Dump returns the whole IPv4 main table
func (q *Querier) Dump(ctx context.Context) ([]types.Route, error) {
	return q.Query(ctx, "all")
}

// Lookup returns the route the kernel would use for addr
func (q *Querier) Lookup(ctx context.Context, addr string) ([]types.Route, error) {
	return q.Query(ctx, addr)
}

// Query runs one request. target "" or "all" dumps the table, anything else
// is looked up as a destination address. On failure the result is empty.
func (q *Querier) Query(ctx context.Context, target string) ([]types.Route, error) {
	start := time.Now()
	req := codec.ParseTarget(target)

	routes, err := q.roundTrip(ctx, req)
	duration := time.Since(start)

	q.metrics.RecordQuery(req.Mode.String(), duration, err == nil)
	q.log.QueryCompleted(req.Mode.String(), req.Target, len(routes), duration.Milliseconds(), err == nil)

	if err != nil {
		return []types.Route{}, err
	}
	return routes, nil
}

func (q *Querier) roundTrip(ctx context.Context, req codec.Request) ([]types.Route, error) {
	msg, seq, err := q.encoder.Encode(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch, err := q.open(0)
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	deadline, ok := ctx.Deadline()
	if !ok && q.timeout > 0 {
		deadline, ok = time.Now().Add(q.timeout), true
	}
	if ok {
		if err := ch.SetDeadline(deadline); err != nil {
			return nil, err
		}
	}

	if err := ch.Send(msg); err != nil {
		return nil, err
	}

	buf := make([]byte, q.bufferSize)
	n, err := ch.ReceiveUntilDone(buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.WithMessage(err, ctxErr.Error())
		}
		return nil, err
	}

	events, err := q.decoder.Decode(buf[:n])
	if err != nil {
		return nil, err
	}

	table := entities.NewRouteTable()
	for _, ev := range events {
		if ev.Kind == types.EventError {
			q.metrics.RecordKernelError(strconv.Itoa(int(ev.Err.Errno)))
			q.log.KernelError(ev.Err.Errno, ev.Err.Error())
			return nil, types.NewError(types.ErrKernelReported, req.Mode.String(), ev.Err)
		}
		table.Apply(ev)
	}

	q.log.Performance("query", map[string]interface{}{
		"sequence": seq,
		"bytes":    n,
		"messages": len(events),
	})
	return table.Snapshot(), nil
}
