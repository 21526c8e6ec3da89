package codec

import (
	"net/netip"

	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"

	"github.com/wesleywu/routewatch/internal/routing/batch"
	"github.com/wesleywu/routewatch/internal/routing/types"
)

// Decoder turns raw kernel responses into route events
type Decoder struct {
	resolver types.Resolver
	workers  int
}

// NewDecoder creates a decoder. Interface names and local addresses are
// looked up through resolver with at most workers concurrent lookups;
// a nil resolver leaves them unset.
func NewDecoder(resolver types.Resolver, workers int) *Decoder {
	if workers <= 0 {
		workers = 1
	}
	return &Decoder{resolver: resolver, workers: workers}
}

// Decode walks every message in b and returns one event per message.
// A message whose header claims more bytes than remain rejects the whole buffer.
func (d *Decoder) Decode(b []byte) ([]types.Event, error) {
	var events []types.Event
	err := messages(b, func(h Header, payload []byte) error {
		ev, err := decodeMessage(h, payload)
		if err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if d.resolver != nil {
		if err := d.resolve(events); err != nil {
			return nil, err
		}
	}
	return events, nil
}

func decodeMessage(h Header, payload []byte) (types.Event, error) {
	switch h.Type {
	case TypeError:
		return decodeError(h, payload)
	case TypeNewRoute, TypeGetRoute:
		return decodeRoute(types.EventNewRoute, payload)
	case TypeDelRoute:
		return decodeRoute(types.EventDelRoute, payload)
	default:
		return types.Event{Kind: types.EventIgnored}, nil
	}
}

// decodeError reads the errno and, when the kernel attached them, the extended ack TLVs
func decodeError(h Header, payload []byte) (types.Event, error) {
	c := newCursor(payload)
	code, err := c.int32()
	if err != nil {
		return types.Event{}, err
	}
	if code == 0 {
		// Plain acknowledgement
		return types.Event{Kind: types.EventIgnored}, nil
	}

	kerr := &types.KernelError{Errno: -code}
	ev := types.Event{Kind: types.EventError, Err: kerr}

	if h.Flags&FlagAckTLVs == 0 {
		return ev, nil
	}

	if h.Flags&FlagCapped != 0 {
		// Only the echoed header is present, its length still counts the original body
		if _, err := c.next(HeaderLen); err != nil {
			return ev, nil
		}
	} else {
		inner, err := readHeader(c)
		if err != nil {
			// Echoed request is cut short, keep the errno alone
			return ev, nil
		}
		if _, err := c.next(int(inner.Length) - HeaderLen); err != nil {
			return ev, nil
		}
		c.skipPadding()
	}

	ad, err := netlink.NewAttributeDecoder(c.attributes())
	for err == nil && ad.Next() {
		switch ad.Type() {
		case errAttrMsg:
			kerr.Message = ad.String()
		case errAttrOffs:
			if len(ad.Bytes()) == 4 {
				kerr.Offset = ad.Uint32()
			}
		}
	}
	return ev, nil
}

// decodeRoute reads one route message. Anything outside the IPv4 main table is ignored.
func decodeRoute(kind types.EventKind, payload []byte) (types.Event, error) {
	c := newCursor(payload)
	rh, err := readRouteHeader(c)
	if err != nil {
		return types.Event{}, err
	}

	ignored := types.Event{Kind: types.EventIgnored}
	if rh.Family != FamilyInet || rh.Table != TableMain {
		return ignored, nil
	}

	route := types.Route{
		Destination: netip.IPv4Unspecified(),
		Gateway:     netip.IPv4Unspecified(),
		PrefixLen:   int(rh.DstLen),
	}
	table := uint32(rh.Table)
	var prefSrc netip.Addr

	// Attributes with an unexpected size are skipped like unknown ones
	ad, err := netlink.NewAttributeDecoder(c.attributes())
	for err == nil && ad.Next() {
		b := ad.Bytes()
		switch ad.Type() {
		case attrDst:
			if addr, ok := netip.AddrFromSlice(b); ok {
				route.Destination = addr.Unmap()
			}
		case attrGateway:
			if addr, ok := netip.AddrFromSlice(b); ok {
				route.Gateway = addr.Unmap()
			}
		case attrOIF:
			if len(b) == 4 {
				route.OutIfIndex = int(nlenc.Uint32(b))
			}
		case attrPriority:
			if len(b) == 4 {
				route.Metric = nlenc.Uint32(b)
			}
		case attrPrefSrc:
			if addr, ok := netip.AddrFromSlice(b); ok {
				prefSrc = addr.Unmap()
			}
		case attrTable:
			if len(b) == 4 {
				table = nlenc.Uint32(b)
			}
		case attrMetrics:
			route.MTU = nestedMTU(b)
		}
	}

	if table != uint32(TableMain) {
		return ignored, nil
	}
	if kind == types.EventNewRoute {
		route.Source = prefSrc
	}
	return types.Event{Kind: kind, Route: route}, nil
}

// nestedMTU reads the MTU from a nested metrics attribute, zero when absent
func nestedMTU(b []byte) uint32 {
	nad, err := netlink.NewAttributeDecoder(completeAttributes(b))
	if err != nil {
		return 0
	}
	var mtu uint32
	for nad.Next() {
		if nad.Type() == metricMTU && len(nad.Bytes()) == 4 {
			mtu = nlenc.Uint32(nad.Bytes())
		}
	}
	return mtu
}

// resolve fills interface names for every route event and the local
// address for inserts. Each distinct interface is looked up once.
func (d *Decoder) resolve(events []types.Event) error {
	type lookup struct {
		index      int
		withSource bool
		name       string
		source     netip.Addr
	}

	pos := make(map[int]int)
	var lookups []lookup
	for _, ev := range events {
		if ev.Kind != types.EventNewRoute && ev.Kind != types.EventDelRoute {
			continue
		}
		if ev.Route.OutIfIndex <= 0 {
			continue
		}
		i, ok := pos[ev.Route.OutIfIndex]
		if !ok {
			i = len(lookups)
			pos[ev.Route.OutIfIndex] = i
			lookups = append(lookups, lookup{index: ev.Route.OutIfIndex})
		}
		if ev.Kind == types.EventNewRoute {
			lookups[i].withSource = true
		}
	}

	err := batch.Process(len(lookups), func(i int) {
		l := &lookups[i]
		l.name = d.resolver.InterfaceName(l.index)
		if l.withSource && l.name != "" {
			l.source = d.resolver.LocalAddress(l.name)
		}
	}, d.workers)
	if err != nil {
		return err
	}

	for i := range events {
		ev := &events[i]
		if ev.Kind != types.EventNewRoute && ev.Kind != types.EventDelRoute {
			continue
		}
		j, ok := pos[ev.Route.OutIfIndex]
		if !ok {
			continue
		}
		ev.Route.OutIfName = lookups[j].name
		// Deletes never carry a source: the interface may already be gone
		if ev.Kind == types.EventNewRoute && lookups[j].source.IsValid() {
			ev.Route.Source = lookups[j].source
		}
	}
	return nil
}
