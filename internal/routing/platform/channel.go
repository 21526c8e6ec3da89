// Package platform provides the kernel route protocol transport.
package platform

import (
	"time"

	"github.com/pkg/errors"

	"github.com/wesleywu/routewatch/internal/routing/codec"
	"github.com/wesleywu/routewatch/internal/routing/types"
)

// Multicast groups of the route protocol
const (
	GroupNotify    uint32 = 0x2
	GroupNeigh     uint32 = 0x4
	GroupIPv4Route uint32 = 0x40
	GroupIPv6Route uint32 = 0x400

	// MonitorGroups are the groups a route monitor subscribes to
	MonitorGroups = GroupIPv4Route | GroupIPv6Route | GroupNotify
)

// DefaultBufferSize is the default receive assembly capacity
const DefaultBufferSize = 1 << 20

// Channel is one kernel route protocol endpoint
type Channel interface {
	// Send writes one fully composed request
	Send(b []byte) error
	// ReceiveUntilDone assembles a response into buf and returns its length
	ReceiveUntilDone(buf []byte) (int, error)
	// SetDeadline bounds every following receive, the zero time clears it
	SetDeadline(t time.Time) error
	Close() error
}

// Watcher is a channel subscribed to multicast groups whose wait can be interrupted
type Watcher interface {
	Channel
	// Wait blocks until a notification is readable or Wake is called.
	// It reports false when it returned because of Wake.
	Wait() (bool, error)
	// Wake interrupts a pending or the next Wait
	Wake() error
}

// datagramReader reads one datagram and reports whether it did not fit b
type datagramReader interface {
	readDatagram(b []byte) (n int, truncated bool, err error)
}

// assemble reads datagrams into buf until a response terminator arrives.
// With singleRead it returns after the first datagram, since a multicast
// notification is always delivered whole.
func assemble(r datagramReader, buf []byte, singleRead bool) (int, error) {
	total := 0
	for {
		if total == len(buf) {
			return total, types.NewError(types.ErrReceive, "receive",
				errors.Errorf("response exceeds the %d byte buffer", len(buf)))
		}

		n, truncated, err := r.readDatagram(buf[total:])
		if err != nil {
			return total, types.NewError(types.ErrReceive, "receive", err)
		}
		if truncated {
			return total, types.NewError(types.ErrReceive, "receive",
				errors.Errorf("datagram does not fit the %d bytes left in the buffer", len(buf)-total))
		}
		if n == 0 {
			if singleRead {
				return total, nil
			}
			return total, types.NewError(types.ErrReceive, "receive", errors.New("channel closed by peer"))
		}

		chunk := buf[total : total+n]
		total += n
		if singleRead {
			return total, nil
		}

		done, err := codec.Terminated(chunk)
		if err != nil {
			return total, err
		}
		if done {
			return total, nil
		}
	}
}
