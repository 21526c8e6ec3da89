package types

import (
	"net/netip"
	"strconv"
)

// Route represents one IPv4 unicast entry of the kernel main table
type Route struct {
	Destination netip.Addr // Destination network address, 0.0.0.0 for the default route
	PrefixLen   int        // Destination prefix length (0-32)
	Gateway     netip.Addr // Next hop, 0.0.0.0 for directly connected routes
	Metric      uint32     // Route priority, lower wins

	OutIfIndex int        // Output interface index
	OutIfName  string     // Output interface name, resolved from OutIfIndex
	Source     netip.Addr // Locally assigned address of the output interface, may be unset
	MTU        uint32     // Path MTU from the nested metrics attribute, 0 when absent
}

// Key is the identity of a route inside a table. Kernel delete notifications
// may omit prefix length, interface and source, so none of them take part.
type Key struct {
	Destination netip.Addr
	Gateway     netip.Addr
	Metric      uint32
}

// Key returns the identity triple of the route
func (r Route) Key() Key {
	return Key{
		Destination: r.Destination,
		Gateway:     r.Gateway,
		Metric:      r.Metric,
	}
}

// Prefix returns the destination network as a prefix
func (r Route) Prefix() netip.Prefix {
	return netip.PrefixFrom(r.Destination, r.PrefixLen).Masked()
}

// SortKey is the display ordering key: destination, gateway and metric concatenated
func (k Key) SortKey() string {
	return k.Destination.String() + k.Gateway.String() + strconv.FormatUint(uint64(k.Metric), 10)
}

// EventKind represents the kind of a decoded kernel message
type EventKind int

// Event kind constants
const (
	// EventIgnored is any message that does not touch the table
	EventIgnored EventKind = iota
	// EventNewRoute inserts or replaces a route
	EventNewRoute
	// EventDelRoute removes a route
	EventDelRoute
	// EventError carries a kernel reported error
	EventError
)

// String returns the string representation of the event kind
func (k EventKind) String() string {
	switch k {
	case EventIgnored:
		return "Ignored"
	case EventNewRoute:
		return "NewRoute"
	case EventDelRoute:
		return "DelRoute"
	case EventError:
		return "Error"
	default:
		return "UnknownEvent"
	}
}

// Event is one logical record decoded from a kernel response
type Event struct {
	Kind  EventKind
	Route Route        // Set for EventNewRoute and EventDelRoute
	Err   *KernelError // Set for EventError
}

// Resolver maps kernel interface indexes to names and local addresses.
// Failures are reported as absence, never as errors.
type Resolver interface {
	InterfaceName(index int) string
	LocalAddress(name string) netip.Addr
}
