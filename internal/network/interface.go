//go:build linux

package network

import (
	"net/netip"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/wesleywu/routewatch/internal/logger"
)

// Resolver maps interface indexes to names and names to their primary IPv4
// address using rtnetlink link and address dumps. Lookup failures are
// reported as absence.
type Resolver struct {
	log *logger.Logger
}

// NewResolver creates a Resolver. log may be nil.
func NewResolver(log *logger.Logger) *Resolver {
	return &Resolver{log: log}
}

// InterfaceName returns the name of the interface with the given index, or ""
func (r *Resolver) InterfaceName(index int) string {
	if index <= 0 {
		return ""
	}
	link, err := netlink.LinkByIndex(index)
	if err != nil {
		r.debug("Interface lookup failed", "index", index, "error", err)
		return ""
	}
	return link.Attrs().Name
}

// LocalAddress returns the primary IPv4 address assigned to the named interface
func (r *Resolver) LocalAddress(name string) netip.Addr {
	if name == "" {
		return netip.Addr{}
	}
	link, err := netlink.LinkByName(name)
	if err != nil {
		r.debug("Interface lookup failed", "interface", name, "error", err)
		return netip.Addr{}
	}

	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		r.debug("Address lookup failed", "interface", name, "error", err)
		return netip.Addr{}
	}

	var fallback netip.Addr
	for _, a := range addrs {
		if a.IPNet == nil {
			continue
		}
		addr, ok := netip.AddrFromSlice(a.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if !addr.Is4() {
			continue
		}
		if a.Flags&unix.IFA_F_SECONDARY == 0 {
			return addr
		}
		if !fallback.IsValid() {
			fallback = addr
		}
	}
	return fallback
}

func (r *Resolver) debug(msg string, args ...interface{}) {
	if r.log != nil {
		r.log.Debug(msg, args...)
	}
}
