package codec

import (
	"fmt"
	"net/netip"
	"strings"
	"sync/atomic"

	"github.com/mdlayher/netlink"

	"github.com/wesleywu/routewatch/internal/routing/types"
)

// DefaultMaxRequestSize bounds an encoded request, header included
const DefaultMaxRequestSize = 8192

// Mode selects the kind of route request
type Mode int

// Mode constants
const (
	// ModeDumpAll requests the full IPv4 main table
	ModeDumpAll Mode = iota
	// ModeLookup asks the kernel which route it would use for one destination
	ModeLookup
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case ModeDumpAll:
		return "dump"
	case ModeLookup:
		return "lookup"
	default:
		return "unknown"
	}
}

// Request describes a route request before encoding
type Request struct {
	Mode   Mode
	Target string // Destination address, only used by ModeLookup
}

// DumpAll returns a request for the whole IPv4 main table
func DumpAll() Request {
	return Request{Mode: ModeDumpAll}
}

// Lookup returns a request for the route towards addr
func Lookup(addr string) Request {
	return Request{Mode: ModeLookup, Target: addr}
}

// ParseTarget resolves the request target, "all" and "" meaning a full dump
func ParseTarget(target string) Request {
	if target == "" || target == "all" {
		return DumpAll()
	}
	return Lookup(target)
}

// sequence is shared by every encoder of the process and echoed back by the kernel
var sequence atomic.Uint32

func nextSequence() uint32 {
	return sequence.Add(1)
}

// Encoder builds route request messages
type Encoder struct {
	maxSize int
}

// NewEncoder creates an encoder whose messages may not exceed maxSize bytes
func NewEncoder(maxSize int) *Encoder {
	if maxSize <= 0 {
		maxSize = DefaultMaxRequestSize
	}
	return &Encoder{maxSize: maxSize}
}

// Encode builds the wire form of req and returns it with the sequence number it carries
func (e *Encoder) Encode(req Request) ([]byte, uint32, error) {
	h := Header{
		Type:     TypeGetRoute,
		Sequence: nextSequence(),
	}
	var body RouteHeader
	var attrs []byte

	switch req.Mode {
	case ModeDumpAll:
		h.Flags = FlagRequest | FlagDump
		body.Family = FamilyInet
		body.Table = TableMain

	case ModeLookup:
		family, addr, err := parseLookupAddress(req.Target)
		if err != nil {
			return nil, 0, err
		}

		h.Flags = FlagRequest | FlagAcknowledge
		body = RouteHeader{
			Family:   family,
			DstLen:   uint8(addr.BitLen()),
			Table:    TableMain,
			Protocol: protoBoot,
			Scope:    scopeLink,
			Type:     typeUnicast,
			Flags:    flagLookup,
		}
		if family == FamilyInet6 {
			body.Scope = scopeUniverse
		}

		ae := netlink.NewAttributeEncoder()
		ae.Bytes(attrDst, addr.AsSlice())
		attrs, err = ae.Encode()
		if err != nil {
			return nil, 0, types.NewError(types.ErrMessageTooLarge, "encode", err)
		}

	default:
		return nil, 0, types.NewError(types.ErrInvalidAddress, "encode", fmt.Errorf("unknown request mode %d", req.Mode))
	}

	size := align(HeaderLen+RouteHeaderLen) + len(attrs)
	if size > e.maxSize {
		return nil, 0, types.NewError(types.ErrMessageTooLarge, "encode",
			fmt.Errorf("message of %d bytes exceeds bound of %d", size, e.maxSize))
	}

	payload := make([]byte, RouteHeaderLen, RouteHeaderLen+len(attrs))
	body.put(payload)
	payload = append(payload, attrs...)

	return AppendMessage(make([]byte, 0, size), h, payload), h.Sequence, nil
}

// parseLookupAddress infers the family from the presence of a colon
func parseLookupAddress(target string) (uint8, netip.Addr, error) {
	addr, err := netip.ParseAddr(target)
	if err != nil {
		return 0, netip.Addr{}, types.NewError(types.ErrInvalidAddress, "encode", err)
	}

	if strings.Contains(target, ":") {
		return FamilyInet6, netip.AddrFrom16(addr.As16()), nil
	}
	return FamilyInet, addr, nil
}
