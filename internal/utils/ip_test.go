package utils

import (
	"testing"
)

func TestNormalizeDestination(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expected      string
		shouldSucceed bool
	}{
		{name: "empty means all", input: "", expected: "all", shouldSucceed: true},
		{name: "all", input: "all", expected: "all", shouldSucceed: true},
		{name: "default route", input: "default", expected: "0.0.0.0", shouldSucceed: true},
		{name: "plain address", input: "8.8.8.8", expected: "8.8.8.8", shouldSucceed: true},
		{name: "surrounding spaces", input: " 8.8.4.4 ", expected: "8.8.4.4", shouldSucceed: true},
		{name: "CIDR network", input: "192.168.1.0/24", expected: "192.168.1.0", shouldSucceed: true},
		{name: "CIDR host bits masked", input: "192.168.1.77/24", expected: "192.168.1.0", shouldSucceed: true},
		{name: "simplified CIDR", input: "1.0.1/24", expected: "1.0.1.0", shouldSucceed: true},
		{name: "three octets", input: "203.57.66", expected: "203.57.66.0", shouldSucceed: true},
		{name: "two octets", input: "10.0", expected: "10.0.0.0", shouldSucceed: true},
		{name: "IPv6 address", input: "2001:db8::1", expected: "2001:db8::1", shouldSucceed: true},
		{name: "IPv6 prefix", input: "2001:db8::1/32", expected: "2001:db8::", shouldSucceed: true},
		{name: "hostname", input: "example.com", shouldSucceed: false},
		{name: "octet out of range", input: "300.1.1.1", shouldSucceed: false},
		{name: "bad mask", input: "10.0.0.0/40", shouldSucceed: false},
		{name: "bad IPv6", input: "2001:zz::1", shouldSucceed: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeDestination(tc.input)
			if tc.shouldSucceed {
				if err != nil {
					t.Fatalf("Expected success for %q, got error: %v", tc.input, err)
				}
				if got != tc.expected {
					t.Errorf("Expected %q, got %q", tc.expected, got)
				}
			} else if err == nil {
				t.Errorf("Expected error for %q, got %q", tc.input, got)
			}
		})
	}
}

func TestNetmask(t *testing.T) {
	testCases := map[int]string{
		0:  "0.0.0.0",
		8:  "255.0.0.0",
		12: "255.240.0.0",
		24: "255.255.255.0",
		31: "255.255.255.254",
		32: "255.255.255.255",
		-1: "",
		33: "",
	}

	for prefixLen, expected := range testCases {
		if got := Netmask(prefixLen); got != expected {
			t.Errorf("Netmask(%d): expected %q, got %q", prefixLen, expected, got)
		}
	}
}
