// Package platform
// Author: momentics <momentics@gmail.com>
//
// Platform-independent factory for the native socket backend.

package platform

import (
	"net/netip"
	"runtime"

	"github.com/momentics/hioload-sock/api"
)

// Native returns the process-wide backend for the host platform. The same
// value is returned on every call so lifecycle reference counting keyed on
// the backend is process-wide.
func Native() api.Sockets {
	return native
}

// Supported reports whether the host platform has a real socket backend.
func Supported() bool {
	return nativeSupported
}

// Describe returns a short label for diagnostics, e.g. "posix/linux".
func Describe() string {
	return native.Name() + "/" + runtime.GOOS
}

// ip4 and ip16 convert hint addresses into the fixed arrays sockaddr
// structures carry.
func ip4(addr netip.Addr) [4]byte {
	return addr.Unmap().As4()
}

func ip16(addr netip.Addr) [16]byte {
	return addr.As16()
}

func hintFrom4(addr [4]byte, port int) api.AddressHint {
	return api.AddressHint{
		Family: api.FamilyIPv4,
		Port:   uint16(port),
		Addr:   netip.AddrFrom4(addr),
	}
}

func hintFrom16(addr [16]byte, port int) api.AddressHint {
	return api.AddressHint{
		Family: api.FamilyIPv6,
		Port:   uint16(port),
		Addr:   netip.AddrFrom16(addr),
	}
}
