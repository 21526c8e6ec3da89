package codec

import (
	"fmt"

	"github.com/mdlayher/netlink/nlenc"

	"github.com/wesleywu/routewatch/internal/routing/types"
)

// cursor reads fixed-layout fields from a byte slice and refuses to read past its end
type cursor struct {
	b   []byte
	off int
}

func newCursor(b []byte) *cursor {
	return &cursor{b: b}
}

func (c *cursor) remaining() int {
	return len(c.b) - c.off
}

func (c *cursor) rest() []byte {
	return c.b[c.off:]
}

// next returns the following n bytes and advances past them
func (c *cursor) next(n int) ([]byte, error) {
	if n < 0 || n > c.remaining() {
		return nil, malformed("need %d bytes at offset %d, %d remain", n, c.off, c.remaining())
	}
	b := c.b[c.off : c.off+n]
	c.off += n
	return b, nil
}

// skipPadding advances to the next alignment boundary, stopping at the end of the buffer
func (c *cursor) skipPadding() {
	c.off = min(align(c.off), len(c.b))
}

// attributes returns the remaining bytes cut back to the last complete
// attribute. A partial or undersized attribute ends the stream.
func (c *cursor) attributes() []byte {
	return completeAttributes(c.rest())
}

func completeAttributes(b []byte) []byte {
	end := 0
	for len(b)-end >= attrHeaderLen {
		l := int(nlenc.Uint16(b[end : end+2]))
		if l < attrHeaderLen || l > len(b)-end {
			break
		}
		end += align(l)
	}
	if end <= len(b) {
		return b[:end]
	}

	// The last attribute is missing its trailing padding
	out := make([]byte, end)
	copy(out, b)
	return out
}

func (c *cursor) uint8() (uint8, error) {
	b, err := c.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) uint16() (uint16, error) {
	b, err := c.next(2)
	if err != nil {
		return 0, err
	}
	return nlenc.Uint16(b), nil
}

func (c *cursor) uint32() (uint32, error) {
	b, err := c.next(4)
	if err != nil {
		return 0, err
	}
	return nlenc.Uint32(b), nil
}

func (c *cursor) int32() (int32, error) {
	b, err := c.next(4)
	if err != nil {
		return 0, err
	}
	return nlenc.Int32(b), nil
}

func malformed(format string, args ...interface{}) error {
	return types.NewError(types.ErrMalformedMessage, "decode", fmt.Errorf(format, args...))
}
