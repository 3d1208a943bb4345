//go:build windows
// +build windows

// Package platform
// Author: momentics <momentics@gmail.com>
//
// Windows Sockets 2 backend over golang.org/x/sys/windows. Startup and
// Cleanup map to WSAStartup(2.2)/WSACleanup; the subsystem lifecycle makes
// sure each runs once per reference-count cycle.

package platform

import (
	"errors"
	"strings"
	"syscall"
	"unsafe"

	"github.com/momentics/hioload-sock/api"
	"golang.org/x/sys/windows"
)

const nativeSupported = true

var native api.Sockets = &winSockets{}

// accept is not wrapped by x/sys/windows (it returns EWINDOWS), so it is
// resolved from ws2_32 directly.
var (
	modws2_32  = windows.NewLazySystemDLL("ws2_32.dll")
	procAccept = modws2_32.NewProc("accept")
)

const soSNDTIMEO = 0x1005

type winSockets struct {
	data windows.WSAData
}

func (*winSockets) Name() string { return "winsock" }

func (w *winSockets) Startup() error {
	return windows.WSAStartup(uint32(0x0202), &w.data)
}

func (*winSockets) Cleanup() error {
	return windows.WSACleanup()
}

func (*winSockets) Socket(family api.AddressFamily, typ api.SocketType, proto api.Protocol) (api.Handle, error) {
	af, err := winFamily(family)
	if err != nil {
		return api.InvalidHandle, err
	}
	if typ != api.SockStream {
		return api.InvalidHandle, windows.WSAEPROTOTYPE
	}
	s, err := windows.Socket(af, windows.SOCK_STREAM, int(proto))
	if err != nil {
		return api.InvalidHandle, err
	}
	return api.Handle(s), nil
}

func (*winSockets) Connect(h api.Handle, hint api.AddressHint) error {
	sa, err := winSockaddr(hint)
	if err != nil {
		return err
	}
	return windows.Connect(windows.Handle(h), sa)
}

func (*winSockets) Bind(h api.Handle, hint api.AddressHint) error {
	sa, err := winSockaddr(hint)
	if err != nil {
		return err
	}
	return windows.Bind(windows.Handle(h), sa)
}

func (*winSockets) Listen(h api.Handle, backlog int) error {
	if backlog > windows.SOMAXCONN {
		backlog = windows.SOMAXCONN
	}
	return windows.Listen(windows.Handle(h), backlog)
}

func (*winSockets) Accept(h api.Handle) (api.Handle, api.AddressHint, error) {
	var rsa windows.RawSockaddrAny
	l := int32(unsafe.Sizeof(rsa))
	r1, _, e1 := procAccept.Call(
		uintptr(h),
		uintptr(unsafe.Pointer(&rsa)),
		uintptr(unsafe.Pointer(&l)),
	)
	if windows.Handle(r1) == windows.InvalidHandle {
		return api.InvalidHandle, api.AddressHint{}, e1
	}
	sa, err := rsa.Sockaddr()
	if err != nil {
		return api.Handle(r1), api.AddressHint{}, nil
	}
	return api.Handle(r1), winHint(sa), nil
}

func (*winSockets) Send(h api.Handle, p []byte, flags int) (int, error) {
	var buf windows.WSABuf
	buf.Len = uint32(len(p))
	if len(p) > 0 {
		buf.Buf = &p[0]
	}
	var sent uint32
	err := windows.WSASend(windows.Handle(h), &buf, 1, &sent, uint32(flags), nil, nil)
	if err != nil {
		return 0, err
	}
	return int(sent), nil
}

func (*winSockets) Recv(h api.Handle, p []byte, flags int) (int, error) {
	var buf windows.WSABuf
	buf.Len = uint32(len(p))
	if len(p) > 0 {
		buf.Buf = &p[0]
	}
	var recvd uint32
	f := uint32(flags)
	err := windows.WSARecv(windows.Handle(h), &buf, 1, &recvd, &f, nil, nil)
	if err != nil {
		return 0, err
	}
	return int(recvd), nil
}

func (*winSockets) Shutdown(h api.Handle, how api.ShutdownDirection) error {
	var mode int
	switch how {
	case api.ShutdownReceive:
		mode = windows.SHUT_RD
	case api.ShutdownSend:
		mode = windows.SHUT_WR
	case api.ShutdownBoth:
		mode = windows.SHUT_RDWR
	default:
		return windows.WSAEINVAL
	}
	return windows.Shutdown(windows.Handle(h), mode)
}

func (*winSockets) Close(h api.Handle) error {
	return windows.Closesocket(windows.Handle(h))
}

func (*winSockets) LocalAddr(h api.Handle) (api.AddressHint, error) {
	sa, err := windows.Getsockname(windows.Handle(h))
	if err != nil {
		return api.AddressHint{}, err
	}
	return winHint(sa), nil
}

// SetOption passes timeouts as DWORD milliseconds, which is what Winsock
// expects for SO_RCVTIMEO/SO_SNDTIMEO.
func (*winSockets) SetOption(h api.Handle, opt api.SocketOption, value int) error {
	s := windows.Handle(h)
	switch opt {
	case api.OptReuseAddr:
		return windows.SetsockoptInt(s, windows.SOL_SOCKET, windows.SO_REUSEADDR, boolInt(value))
	case api.OptNoDelay:
		return windows.SetsockoptInt(s, windows.IPPROTO_TCP, windows.TCP_NODELAY, boolInt(value))
	case api.OptReceiveTimeout:
		return windows.SetsockoptInt(s, windows.SOL_SOCKET, windows.SO_RCVTIMEO, value)
	case api.OptSendTimeout:
		return windows.SetsockoptInt(s, windows.SOL_SOCKET, soSNDTIMEO, value)
	default:
		return windows.WSAENOPROTOOPT
	}
}

func (*winSockets) ErrorCode(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}

// ErrorText formats the system message for code the way FormatMessageA
// does with FORMAT_MESSAGE_FROM_SYSTEM.
func (*winSockets) ErrorText(code int) string {
	if code == 0 {
		return ""
	}
	buf := make([]uint16, 512)
	flags := uint32(windows.FORMAT_MESSAGE_FROM_SYSTEM | windows.FORMAT_MESSAGE_IGNORE_INSERTS)
	n, err := windows.FormatMessage(flags, 0, uint32(code), 0, buf, nil)
	if err != nil || n == 0 {
		return syscall.Errno(code).Error()
	}
	return strings.TrimRight(windows.UTF16ToString(buf[:n]), "\r\n. ")
}

func winFamily(f api.AddressFamily) (int, error) {
	switch f {
	case api.FamilyIPv4:
		return windows.AF_INET, nil
	case api.FamilyIPv6:
		return windows.AF_INET6, nil
	default:
		return 0, windows.WSAEAFNOSUPPORT
	}
}

func winSockaddr(hint api.AddressHint) (windows.Sockaddr, error) {
	switch hint.Family {
	case api.FamilyIPv4:
		if !hint.Addr.Unmap().Is4() {
			return nil, windows.WSAEAFNOSUPPORT
		}
		return &windows.SockaddrInet4{Port: int(hint.Port), Addr: ip4(hint.Addr)}, nil
	case api.FamilyIPv6:
		if !hint.Addr.IsValid() {
			return nil, windows.WSAEAFNOSUPPORT
		}
		return &windows.SockaddrInet6{Port: int(hint.Port), Addr: ip16(hint.Addr)}, nil
	default:
		return nil, windows.WSAEAFNOSUPPORT
	}
}

func winHint(sa windows.Sockaddr) api.AddressHint {
	switch v := sa.(type) {
	case *windows.SockaddrInet4:
		return hintFrom4(v.Addr, v.Port)
	case *windows.SockaddrInet6:
		return hintFrom16(v.Addr, v.Port)
	default:
		return api.AddressHint{}
	}
}

func boolInt(v int) int {
	if v != 0 {
		return 1
	}
	return 0
}
