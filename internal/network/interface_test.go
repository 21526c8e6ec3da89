package network

import (
	"net"
	"testing"

	"github.com/wesleywu/routewatch/internal/routing/types"
)

var _ types.Resolver = (*Resolver)(nil)

func TestResolverAbsence(t *testing.T) {
	r := NewResolver(nil)

	if name := r.InterfaceName(0); name != "" {
		t.Errorf("Expected no name for index 0, got %q", name)
	}
	if name := r.InterfaceName(1 << 30); name != "" {
		t.Errorf("Expected no name for unknown index, got %q", name)
	}
	if addr := r.LocalAddress("does-not-exist0"); addr.IsValid() {
		t.Errorf("Expected no address for unknown interface, got %v", addr)
	}
	if addr := r.LocalAddress(""); addr.IsValid() {
		t.Errorf("Expected no address for empty name, got %v", addr)
	}
}

func TestResolverLoopback(t *testing.T) {
	lo, err := net.InterfaceByName("lo")
	if err != nil {
		t.Skip("no loopback interface named lo")
	}

	r := NewResolver(nil)
	if name := r.InterfaceName(lo.Index); name != "lo" {
		t.Errorf("Expected lo, got %q", name)
	}

	addrs, _ := lo.Addrs()
	hasV4 := false
	for _, a := range addrs {
		if ipNet, ok := a.(*net.IPNet); ok && ipNet.IP.To4() != nil {
			hasV4 = true
		}
	}
	if !hasV4 {
		return
	}
	if addr := r.LocalAddress("lo"); !addr.IsLoopback() {
		t.Errorf("Expected a loopback address, got %v", addr)
	}
}
