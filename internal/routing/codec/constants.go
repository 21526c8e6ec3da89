// Package codec encodes route requests and decodes route dump and
// notification responses of the kernel netlink route protocol.
//
// Values are pinned to the Linux uapi headers (linux/netlink.h,
// linux/rtnetlink.h) so the codec builds and is testable on any host.
package codec

// Message types
const (
	TypeNoop     uint16 = 0x1
	TypeError    uint16 = 0x2
	TypeDone     uint16 = 0x3
	TypeNewRoute uint16 = 24
	TypeDelRoute uint16 = 25
	TypeGetRoute uint16 = 26
)

// Header flags
const (
	FlagRequest     uint16 = 0x1
	FlagMulti       uint16 = 0x2
	FlagAcknowledge uint16 = 0x4
	FlagRoot        uint16 = 0x100
	FlagMatch       uint16 = 0x200
	FlagDump               = FlagRoot | FlagMatch

	// Flags carried by error messages
	FlagCapped  uint16 = 0x100
	FlagAckTLVs uint16 = 0x200
)

// Sizes and alignment
const (
	HeaderLen      = 16
	RouteHeaderLen = 12
	errorLen       = 4
	attrHeaderLen  = 4
	alignTo        = 4
)

// Address families
const (
	FamilyInet  uint8 = 2
	FamilyInet6 uint8 = 10
)

// Route table identifiers
const (
	TableDefault uint8 = 253
	TableMain    uint8 = 254
	TableLocal   uint8 = 255
)

const (
	protoBoot     uint8  = 3
	typeUnicast   uint8  = 1
	scopeUniverse uint8  = 0
	scopeLink     uint8  = 253
	flagLookup    uint32 = 0x1000
)

// Route attribute types
const (
	attrDst      uint16 = 1
	attrSrc      uint16 = 2
	attrIIF      uint16 = 3
	attrOIF      uint16 = 4
	attrGateway  uint16 = 5
	attrPriority uint16 = 6
	attrPrefSrc  uint16 = 7
	attrMetrics  uint16 = 8
	attrTable    uint16 = 15

	metricMTU uint16 = 2
)

// Extended ack attribute types
const (
	errAttrMsg  uint16 = 1
	errAttrOffs uint16 = 2
)

func align(n int) int {
	return (n + alignTo - 1) &^ (alignTo - 1)
}
