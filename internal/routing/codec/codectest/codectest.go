// Package codectest builds synthetic kernel route protocol responses for tests.
package codectest

import (
	"net"

	"github.com/jsimonetti/rtnetlink"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"

	"github.com/wesleywu/routewatch/internal/routing/codec"
)

// RouteSpec describes a route message body
type RouteSpec struct {
	Family   uint8
	Table    uint8
	DstLen   uint8
	Dst      string
	Gateway  string
	PrefSrc  string
	OutIface uint32
	Priority uint32
	MTU      uint32

	// TableAttr is sent as an explicit table attribute when non-zero
	TableAttr uint32
}

// IPv4Main returns a main-table IPv4 route spec
func IPv4Main(dst string, dstLen uint8, gateway string, oif, priority uint32) RouteSpec {
	return RouteSpec{
		Family:   codec.FamilyInet,
		Table:    codec.TableMain,
		DstLen:   dstLen,
		Dst:      dst,
		Gateway:  gateway,
		OutIface: oif,
		Priority: priority,
	}
}

func parseIP(s string) net.IP {
	if s == "" {
		return nil
	}
	return net.ParseIP(s)
}

// RouteBody encodes the route message body with an independent encoder
func RouteBody(spec RouteSpec) []byte {
	msg := rtnetlink.RouteMessage{
		Family:    spec.Family,
		DstLength: spec.DstLen,
		Table:     spec.Table,
		Protocol:  4,
		Type:      1,
		Attributes: rtnetlink.RouteAttributes{
			Dst:      parseIP(spec.Dst),
			Gateway:  parseIP(spec.Gateway),
			Src:      parseIP(spec.PrefSrc),
			OutIface: spec.OutIface,
			Priority: spec.Priority,
			Table:    spec.TableAttr,
		},
	}
	if spec.MTU != 0 {
		msg.Attributes.Metrics = &rtnetlink.RouteMetrics{MTU: spec.MTU}
	}

	b, err := msg.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return b
}

// Route appends a route message of the given type
func Route(dst []byte, typ uint16, spec RouteSpec) []byte {
	return codec.AppendMessage(dst, codec.Header{Type: typ, Flags: codec.FlagMulti, Sequence: 1}, RouteBody(spec))
}

// Done appends a DONE terminator
func Done(dst []byte) []byte {
	return codec.AppendMessage(dst, codec.Header{Type: codec.TypeDone, Flags: codec.FlagMulti, Sequence: 1}, make([]byte, 4))
}

// Ack appends an acknowledgement (error message with errno 0)
func Ack(dst []byte) []byte {
	return KernelError(dst, 0, "", false)
}

// KernelError appends an error message for errno. A non-empty msg is attached
// as an extended ack after the echoed request, capped or not.
func KernelError(dst []byte, errno int32, msg string, capped bool) []byte {
	request := codec.AppendMessage(nil, codec.Header{
		Type:     codec.TypeGetRoute,
		Flags:    codec.FlagRequest,
		Sequence: 1,
	}, RouteBody(IPv4Main("10.0.0.0", 8, "", 0, 0)))

	payload := nlenc.Int32Bytes(-errno)
	flags := uint16(0)
	if msg == "" {
		payload = append(payload, request...)
		return codec.AppendMessage(dst, codec.Header{Type: codec.TypeError, Flags: flags, Sequence: 1}, payload)
	}

	flags |= codec.FlagAckTLVs
	if capped {
		flags |= codec.FlagCapped
		payload = append(payload, request[:codec.HeaderLen]...)
	} else {
		payload = append(payload, request...)
	}

	ae := netlink.NewAttributeEncoder()
	ae.String(1, msg)
	ae.Uint32(2, 28)
	attrs, err := ae.Encode()
	if err != nil {
		panic(err)
	}
	payload = append(payload, attrs...)

	return codec.AppendMessage(dst, codec.Header{Type: codec.TypeError, Flags: flags, Sequence: 1}, payload)
}
