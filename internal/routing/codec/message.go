package codec

import (
	"github.com/mdlayher/netlink/nlenc"
)

// Header is the fixed netlink message header
type Header struct {
	Length   uint32
	Type     uint16
	Flags    uint16
	Sequence uint32
	PortID   uint32
}

// RouteHeader is the fixed route message body that precedes the attribute stream
type RouteHeader struct {
	Family   uint8
	DstLen   uint8
	SrcLen   uint8
	TOS      uint8
	Table    uint8
	Protocol uint8
	Scope    uint8
	Type     uint8
	Flags    uint32
}

func (h Header) put(b []byte) {
	nlenc.PutUint32(b[0:4], h.Length)
	nlenc.PutUint16(b[4:6], h.Type)
	nlenc.PutUint16(b[6:8], h.Flags)
	nlenc.PutUint32(b[8:12], h.Sequence)
	nlenc.PutUint32(b[12:16], h.PortID)
}

func (rh RouteHeader) put(b []byte) {
	b[0] = rh.Family
	b[1] = rh.DstLen
	b[2] = rh.SrcLen
	b[3] = rh.TOS
	b[4] = rh.Table
	b[5] = rh.Protocol
	b[6] = rh.Scope
	b[7] = rh.Type
	nlenc.PutUint32(b[8:12], rh.Flags)
}

// MarshalBinary encodes the route header into its 12-byte wire form
func (rh RouteHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, RouteHeaderLen)
	rh.put(b)
	return b, nil
}

// readHeader parses a message header and checks that the message fits the cursor
func readHeader(c *cursor) (Header, error) {
	start := c.remaining()
	if start < HeaderLen {
		return Header{}, malformed("%d trailing bytes cannot hold a message header", start)
	}

	var h Header
	var err error
	if h.Length, err = c.uint32(); err != nil {
		return Header{}, err
	}
	if h.Type, err = c.uint16(); err != nil {
		return Header{}, err
	}
	if h.Flags, err = c.uint16(); err != nil {
		return Header{}, err
	}
	if h.Sequence, err = c.uint32(); err != nil {
		return Header{}, err
	}
	if h.PortID, err = c.uint32(); err != nil {
		return Header{}, err
	}

	if h.Length < HeaderLen {
		return Header{}, malformed("message length %d is shorter than its header", h.Length)
	}
	if int64(h.Length) > int64(start) {
		return Header{}, malformed("message claims %d bytes, only %d remain", h.Length, start)
	}
	return h, nil
}

func readRouteHeader(c *cursor) (RouteHeader, error) {
	b, err := c.next(RouteHeaderLen)
	if err != nil {
		return RouteHeader{}, err
	}
	return RouteHeader{
		Family:   b[0],
		DstLen:   b[1],
		SrcLen:   b[2],
		TOS:      b[3],
		Table:    b[4],
		Protocol: b[5],
		Scope:    b[6],
		Type:     b[7],
		Flags:    nlenc.Uint32(b[8:12]),
	}, nil
}

// AppendMessage appends one aligned message with the given header and payload to dst.
// The header length is computed from the payload.
func AppendMessage(dst []byte, h Header, payload []byte) []byte {
	h.Length = uint32(HeaderLen + len(payload))
	total := align(int(h.Length))

	start := len(dst)
	dst = append(dst, make([]byte, total)...)
	h.put(dst[start : start+HeaderLen])
	copy(dst[start+HeaderLen:], payload)
	return dst
}

// messages walks every complete message in b, calling fn with its header and payload
func messages(b []byte, fn func(Header, []byte) error) error {
	c := newCursor(b)
	for c.remaining() > 0 {
		h, err := readHeader(c)
		if err != nil {
			return err
		}
		payload, err := c.next(int(h.Length) - HeaderLen)
		if err != nil {
			return err
		}
		c.skipPadding()

		if err := fn(h, payload); err != nil {
			return err
		}
	}
	return nil
}

// Terminated reports whether b contains a message that ends a response:
// a DONE marker or an ERROR (including the plain acknowledgement).
func Terminated(b []byte) (bool, error) {
	done := false
	err := messages(b, func(h Header, _ []byte) error {
		if h.Type == TypeDone || h.Type == TypeError {
			done = true
		}
		return nil
	})
	return done, err
}
