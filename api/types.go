// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants for the socket layer.
// Values here are platform neutral; backends translate them to native
// AF_*/SOCK_*/SHUT_* constants.

package api

import (
	"net/netip"
	"strconv"
)

// Handle is an opaque OS socket descriptor (fd on POSIX, SOCKET on Windows).
type Handle uintptr

// InvalidHandle is returned by operations that fail to produce a socket.
const InvalidHandle Handle = ^Handle(0)

// SocketError is the byte count returned by single-shot transfers on failure.
const SocketError = -1

// MaxBacklog asks the backend for the platform maximum listen backlog.
const MaxBacklog = 1<<31 - 1

// Valid reports whether h is not the invalid sentinel.
func (h Handle) Valid() bool {
	return h != InvalidHandle
}

func (h Handle) String() string {
	if !h.Valid() {
		return "invalid"
	}
	return strconv.FormatUint(uint64(h), 10)
}

// AddressFamily selects the network layer protocol.
type AddressFamily int

const (
	FamilyUnspec AddressFamily = iota
	FamilyIPv4
	FamilyIPv6
)

func (f AddressFamily) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return "unspec"
	}
}

// SocketType selects the socket semantics. Only byte streams are supported.
type SocketType int

const (
	SockStream SocketType = iota + 1
)

// Protocol selects the transport protocol; ProtoDefault lets the OS choose.
type Protocol int

const (
	ProtoDefault Protocol = 0
	ProtoTCP     Protocol = 6
)

// ShutdownDirection selects which half of a stream Shutdown closes.
type ShutdownDirection int

const (
	ShutdownReceive ShutdownDirection = iota
	ShutdownSend
	ShutdownBoth
)

func (d ShutdownDirection) String() string {
	switch d {
	case ShutdownReceive:
		return "receive"
	case ShutdownSend:
		return "send"
	case ShutdownBoth:
		return "both"
	default:
		return "unknown"
	}
}

// Valid reports whether d is one of the three defined directions.
func (d ShutdownDirection) Valid() bool {
	return d >= ShutdownReceive && d <= ShutdownBoth
}

// SocketOption names a tunable applied through SetOption.
type SocketOption int

const (
	OptReuseAddr      SocketOption = iota + 1 // value: 0/1
	OptNoDelay                                // value: 0/1
	OptReceiveTimeout                         // value: milliseconds, 0 = block forever
	OptSendTimeout                            // value: milliseconds, 0 = block forever
)

func (o SocketOption) String() string {
	switch o {
	case OptReuseAddr:
		return "reuse-addr"
	case OptNoDelay:
		return "no-delay"
	case OptReceiveTimeout:
		return "receive-timeout"
	case OptSendTimeout:
		return "send-timeout"
	default:
		return "unknown"
	}
}

// AddressHint is a resolved (family, port, address) tuple used to target
// Connect and Bind. Port is kept in host byte order; backends convert it.
type AddressHint struct {
	Family AddressFamily
	Port   uint16
	Addr   netip.Addr
}

// IsZero reports whether the hint was never resolved.
func (h AddressHint) IsZero() bool {
	return h.Family == FamilyUnspec && !h.Addr.IsValid() && h.Port == 0
}

// AddrPort returns the hint as a netip.AddrPort.
func (h AddressHint) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(h.Addr, h.Port)
}

func (h AddressHint) String() string {
	if !h.Addr.IsValid() {
		return "<unresolved>"
	}
	return h.AddrPort().String()
}

// HintFromAddrPort builds a hint, deriving the family from the address.
func HintFromAddrPort(ap netip.AddrPort) AddressHint {
	addr := ap.Addr().Unmap()
	family := FamilyIPv6
	if addr.Is4() {
		family = FamilyIPv4
	}
	return AddressHint{Family: family, Port: ap.Port(), Addr: addr}
}
