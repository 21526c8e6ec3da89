//go:build !linux

package platform

import (
	"runtime"
	"time"

	"github.com/pkg/errors"

	"github.com/wesleywu/routewatch/internal/routing/types"
)

// Conn is unavailable outside Linux
type Conn struct{}

func unsupported(op string) error {
	return types.NewError(types.ErrUnsupportedPlatform, op,
		errors.Errorf("route netlink is not available on %s", runtime.GOOS))
}

// Open always fails outside Linux
func Open(groups uint32) (*Conn, error) {
	return nil, unsupported("open")
}

func (c *Conn) Send(b []byte) error                      { return unsupported("send") }
func (c *Conn) ReceiveUntilDone(buf []byte) (int, error) { return 0, unsupported("receive") }
func (c *Conn) SetDeadline(t time.Time) error            { return unsupported("set deadline") }
func (c *Conn) Wait() (bool, error)                      { return false, unsupported("wait") }
func (c *Conn) Wake() error                              { return nil }
func (c *Conn) Close() error                             { return nil }
