package utils

import (
	"fmt"
	"net/netip"
	"strings"
)

// NormalizeDestination turns a command line destination into a lookup
// target. "" and "all" request the whole table. CIDR notation looks up the
// network address and short dotted forms are padded ("10.1" -> "10.1.0.0").
func NormalizeDestination(dest string) (string, error) {
	dest = strings.TrimSpace(dest)
	switch dest {
	case "", "all":
		return "all", nil
	case "default":
		return "0.0.0.0", nil
	}

	// IPv6 keeps its colon so the family is inferred downstream
	if strings.Contains(dest, ":") {
		if pfx, err := netip.ParsePrefix(dest); err == nil {
			return pfx.Masked().Addr().String(), nil
		}
		addr, err := netip.ParseAddr(dest)
		if err != nil {
			return "", fmt.Errorf("unsupported destination format: %s", dest)
		}
		return addr.String(), nil
	}

	ip, bits, hasMask := strings.Cut(dest, "/")
	ip = padOctets(ip)

	if hasMask {
		pfx, err := netip.ParsePrefix(ip + "/" + bits)
		if err != nil {
			return "", fmt.Errorf("unsupported destination format: %s", dest)
		}
		return pfx.Masked().Addr().String(), nil
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return "", fmt.Errorf("unsupported destination format: %s", dest)
	}
	return addr.String(), nil
}

// padOctets completes a dotted address with missing trailing zero octets
func padOctets(ip string) string {
	if ip == "" {
		return ip
	}
	switch strings.Count(ip, ".") {
	case 0:
		return ip + ".0.0.0"
	case 1:
		return ip + ".0.0"
	case 2:
		return ip + ".0"
	}
	return ip
}

// Netmask returns the dotted IPv4 mask for a prefix length, "" when out of range
func Netmask(prefixLen int) string {
	if prefixLen < 0 || prefixLen > 32 {
		return ""
	}
	mask := ^uint32(0)
	if prefixLen < 32 {
		mask = ^(^uint32(0) >> prefixLen)
	}
	return netip.AddrFrom4([4]byte{
		byte(mask >> 24), byte(mask >> 16), byte(mask >> 8), byte(mask),
	}).String()
}
