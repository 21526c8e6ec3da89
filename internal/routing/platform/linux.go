//go:build linux

package platform

import (
	"sync"
	"time"

	"github.com/mdlayher/netlink/nlenc"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/wesleywu/routewatch/internal/routing/types"
)

// Conn is a NETLINK_ROUTE socket. A Conn bound to multicast groups is
// non-blocking and carries an eventfd so that Wait can be interrupted.
type Conn struct {
	mu     sync.Mutex
	fd     int
	wakeFd int
	groups uint32
	closed bool
}

// Open creates a route socket bound to groups. Zero groups gives a plain
// request/response channel.
func Open(groups uint32) (*Conn, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_ROUTE)
	if err != nil {
		return nil, types.NewError(types.ErrSocketCreate, "open", errors.Wrap(err, "socket"))
	}

	c := &Conn{fd: fd, wakeFd: -1, groups: groups}

	// Older kernels do not know extended acks, errno-only errors still work
	_ = unix.SetsockoptInt(fd, unix.SOL_NETLINK, unix.NETLINK_EXT_ACK, 1)

	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: groups}); err != nil {
		unix.Close(fd)
		return nil, types.NewError(types.ErrBind, "open", errors.Wrapf(err, "bind groups %#x", groups))
	}

	if groups != 0 {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fd)
			return nil, types.NewError(types.ErrSocketCreate, "open", errors.Wrap(err, "set non-blocking"))
		}
		wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
		if err != nil {
			unix.Close(fd)
			return nil, types.NewError(types.ErrSocketCreate, "open", errors.Wrap(err, "eventfd"))
		}
		c.wakeFd = wakeFd
	}

	return c, nil
}

// Send implements Channel
func (c *Conn) Send(b []byte) error {
	if err := unix.Sendto(c.fd, b, 0, &unix.SockaddrNetlink{Family: unix.AF_NETLINK}); err != nil {
		return types.NewError(types.ErrSend, "send", errors.Wrap(err, "sendto"))
	}
	return nil
}

// ReceiveUntilDone implements Channel. A subscribed Conn returns after one
// datagram, or with zero bytes when nothing is queued.
func (c *Conn) ReceiveUntilDone(buf []byte) (int, error) {
	return assemble(c, buf, c.groups != 0)
}

func (c *Conn) readDatagram(b []byte) (int, bool, error) {
	for {
		n, _, flags, _, err := unix.Recvmsg(c.fd, b, nil, 0)
		switch {
		case err == unix.EINTR:
			continue
		case (err == unix.EAGAIN || err == unix.EWOULDBLOCK) && c.groups != 0:
			return 0, false, nil
		case err != nil:
			return 0, false, errors.Wrap(err, "recvmsg")
		}
		return n, flags&unix.MSG_TRUNC != 0, nil
	}
}

// SetDeadline implements Channel through SO_RCVTIMEO
func (c *Conn) SetDeadline(t time.Time) error {
	var tv unix.Timeval
	if !t.IsZero() {
		d := time.Until(t)
		if d < time.Microsecond {
			d = time.Microsecond
		}
		tv = unix.NsecToTimeval(d.Nanoseconds())
	}
	if err := unix.SetsockoptTimeval(c.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return types.NewError(types.ErrReceive, "set deadline", errors.Wrap(err, "setsockopt SO_RCVTIMEO"))
	}
	return nil
}

// Wait implements Watcher
func (c *Conn) Wait() (bool, error) {
	if c.wakeFd < 0 {
		return false, types.NewError(types.ErrReceive, "wait", errors.New("channel is not subscribed"))
	}

	fds := []unix.PollFd{
		{Fd: int32(c.fd), Events: unix.POLLIN},
		{Fd: int32(c.wakeFd), Events: unix.POLLIN},
	}
	for {
		_, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, types.NewError(types.ErrReceive, "wait", errors.Wrap(err, "poll"))
		}
		break
	}

	if fds[1].Revents&unix.POLLIN != 0 {
		var counter [8]byte
		_, _ = unix.Read(c.wakeFd, counter[:])
		return false, nil
	}
	// Errors and hangups are reported by the following receive
	return fds[0].Revents != 0, nil
}

// Wake implements Watcher
func (c *Conn) Wake() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.wakeFd < 0 {
		return nil
	}
	if _, err := unix.Write(c.wakeFd, nlenc.Uint64Bytes(1)); err != nil && err != unix.EAGAIN {
		return errors.Wrap(err, "eventfd write")
	}
	return nil
}

// Close releases the socket and the wakeup handle. It is safe to call more than once.
func (c *Conn) Close() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.wakeFd >= 0 {
		unix.Close(c.wakeFd)
		c.wakeFd = -1
	}
	if err := unix.Close(c.fd); err != nil {
		return errors.Wrap(err, "close")
	}
	return nil
}
