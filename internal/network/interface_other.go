//go:build !linux

package network

import (
	"net"
	"net/netip"

	"github.com/wesleywu/routewatch/internal/logger"
)

// Resolver answers interface questions from the standard library where rtnetlink is unavailable
type Resolver struct {
	log *logger.Logger
}

// NewResolver creates a Resolver. log may be nil.
func NewResolver(log *logger.Logger) *Resolver {
	return &Resolver{log: log}
}

// InterfaceName returns the name of the interface with the given index, or ""
func (r *Resolver) InterfaceName(index int) string {
	iface, err := net.InterfaceByIndex(index)
	if err != nil {
		return ""
	}
	return iface.Name
}

// LocalAddress returns the first IPv4 address assigned to the named interface
func (r *Resolver) LocalAddress(name string) netip.Addr {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return netip.Addr{}
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return netip.Addr{}
	}
	for _, a := range addrs {
		if ipNet, ok := a.(*net.IPNet); ok {
			if addr, ok := netip.AddrFromSlice(ipNet.IP.To4()); ok {
				return addr
			}
		}
	}
	return netip.Addr{}
}
