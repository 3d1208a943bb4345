//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

// internal/platform/sockets_unix.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// POSIX socket backend over golang.org/x/sys/unix. POSIX sockets need no
// explicit stack startup, so Startup and Cleanup are no-ops.

package platform

import (
	"errors"
	"fmt"
	"time"

	"github.com/momentics/hioload-sock/api"
	"golang.org/x/sys/unix"
)

const nativeSupported = true

var native api.Sockets = posixSockets{}

type posixSockets struct{}

func (posixSockets) Name() string { return "posix" }

func (posixSockets) Startup() error { return nil }

func (posixSockets) Cleanup() error { return nil }

func (posixSockets) Socket(family api.AddressFamily, typ api.SocketType, proto api.Protocol) (api.Handle, error) {
	af, err := posixFamily(family)
	if err != nil {
		return api.InvalidHandle, err
	}
	if typ != api.SockStream {
		return api.InvalidHandle, unix.EPROTOTYPE
	}
	fd, err := unix.Socket(af, unix.SOCK_STREAM, int(proto))
	if err != nil {
		return api.InvalidHandle, err
	}
	unix.CloseOnExec(fd)
	return api.Handle(fd), nil
}

func (posixSockets) Connect(h api.Handle, hint api.AddressHint) error {
	sa, err := posixSockaddr(hint)
	if err != nil {
		return err
	}
	fd := int(h)
	err = unix.Connect(fd, sa)
	if err != unix.EINTR {
		return err
	}
	// An interrupted connect keeps going in the kernel; wait for it to
	// settle and collect its outcome from SO_ERROR.
	for {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		_, err = unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		break
	}
	soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if soerr != 0 {
		return unix.Errno(soerr)
	}
	return nil
}

func (posixSockets) Bind(h api.Handle, hint api.AddressHint) error {
	sa, err := posixSockaddr(hint)
	if err != nil {
		return err
	}
	return unix.Bind(int(h), sa)
}

func (posixSockets) Listen(h api.Handle, backlog int) error {
	if backlog > unix.SOMAXCONN {
		backlog = unix.SOMAXCONN
	}
	return unix.Listen(int(h), backlog)
}

func (posixSockets) Accept(h api.Handle) (api.Handle, api.AddressHint, error) {
	for {
		nfd, sa, err := unix.Accept(int(h))
		if err == unix.EINTR || err == unix.ECONNABORTED {
			continue
		}
		if err != nil {
			return api.InvalidHandle, api.AddressHint{}, err
		}
		unix.CloseOnExec(nfd)
		return api.Handle(nfd), posixHint(sa), nil
	}
}

func (posixSockets) Send(h api.Handle, p []byte, flags int) (int, error) {
	for {
		n, err := unix.SendmsgN(int(h), p, nil, nil, flags)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func (posixSockets) Recv(h api.Handle, p []byte, flags int) (int, error) {
	for {
		n, _, err := unix.Recvfrom(int(h), p, flags)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func (posixSockets) Shutdown(h api.Handle, how api.ShutdownDirection) error {
	var mode int
	switch how {
	case api.ShutdownReceive:
		mode = unix.SHUT_RD
	case api.ShutdownSend:
		mode = unix.SHUT_WR
	case api.ShutdownBoth:
		mode = unix.SHUT_RDWR
	default:
		return unix.EINVAL
	}
	return unix.Shutdown(int(h), mode)
}

// Close is never retried: after EINTR the descriptor state is unspecified
// and the number may already be reused.
func (posixSockets) Close(h api.Handle) error {
	return unix.Close(int(h))
}

func (posixSockets) LocalAddr(h api.Handle) (api.AddressHint, error) {
	sa, err := unix.Getsockname(int(h))
	if err != nil {
		return api.AddressHint{}, err
	}
	return posixHint(sa), nil
}

func (posixSockets) SetOption(h api.Handle, opt api.SocketOption, value int) error {
	fd := int(h)
	switch opt {
	case api.OptReuseAddr:
		return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, boolInt(value))
	case api.OptNoDelay:
		return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolInt(value))
	case api.OptReceiveTimeout:
		tv := unix.NsecToTimeval(int64(time.Duration(value) * time.Millisecond))
		return unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
	case api.OptSendTimeout:
		tv := unix.NsecToTimeval(int64(time.Duration(value) * time.Millisecond))
		return unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv)
	default:
		return unix.ENOPROTOOPT
	}
}

func (posixSockets) ErrorCode(err error) int {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}

func (posixSockets) ErrorText(code int) string {
	if code == 0 {
		return ""
	}
	return unix.Errno(code).Error()
}

func posixFamily(f api.AddressFamily) (int, error) {
	switch f {
	case api.FamilyIPv4:
		return unix.AF_INET, nil
	case api.FamilyIPv6:
		return unix.AF_INET6, nil
	default:
		return 0, unix.EAFNOSUPPORT
	}
}

func posixSockaddr(hint api.AddressHint) (unix.Sockaddr, error) {
	switch hint.Family {
	case api.FamilyIPv4:
		if !hint.Addr.Unmap().Is4() {
			return nil, unix.EAFNOSUPPORT
		}
		return &unix.SockaddrInet4{Port: int(hint.Port), Addr: ip4(hint.Addr)}, nil
	case api.FamilyIPv6:
		if !hint.Addr.IsValid() {
			return nil, unix.EAFNOSUPPORT
		}
		return &unix.SockaddrInet6{Port: int(hint.Port), Addr: ip16(hint.Addr)}, nil
	default:
		return nil, fmt.Errorf("sockaddr for family %s: %w", hint.Family, unix.EAFNOSUPPORT)
	}
}

func posixHint(sa unix.Sockaddr) api.AddressHint {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return hintFrom4(v.Addr, v.Port)
	case *unix.SockaddrInet6:
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
