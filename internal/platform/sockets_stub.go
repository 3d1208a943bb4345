//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly || windows)

// Package platform
// Author: momentics <momentics@gmail.com>
//
// Stub backend for platforms without a native socket implementation.

package platform

import "github.com/momentics/hioload-sock/api"

const nativeSupported = false

var native api.Sockets = stubSockets{}

type stubSockets struct{}

func (stubSockets) Name() string { return "unsupported" }

func (stubSockets) Startup() error { return api.ErrNotSupported }

func (stubSockets) Cleanup() error { return nil }

func (stubSockets) Socket(api.AddressFamily, api.SocketType, api.Protocol) (api.Handle, error) {
	return api.InvalidHandle, api.ErrNotSupported
}

func (stubSockets) Connect(api.Handle, api.AddressHint) error { return api.ErrNotSupported }

func (stubSockets) Bind(api.Handle, api.AddressHint) error { return api.ErrNotSupported }

func (stubSockets) Listen(api.Handle, int) error { return api.ErrNotSupported }

func (stubSockets) Accept(api.Handle) (api.Handle, api.AddressHint, error) {
	return api.InvalidHandle, api.AddressHint{}, api.ErrNotSupported
}

func (stubSockets) Send(api.Handle, []byte, int) (int, error) { return 0, api.ErrNotSupported }

func (stubSockets) Recv(api.Handle, []byte, int) (int, error) { return 0, api.ErrNotSupported }

func (stubSockets) Shutdown(api.Handle, api.ShutdownDirection) error { return api.ErrNotSupported }

func (stubSockets) Close(api.Handle) error { return api.ErrNotSupported }

func (stubSockets) LocalAddr(api.Handle) (api.AddressHint, error) {
	return api.AddressHint{}, api.ErrNotSupported
}

func (stubSockets) SetOption(api.Handle, api.SocketOption, int) error { return api.ErrNotSupported }

func (stubSockets) ErrorCode(error) int { return 0 }

func (stubSockets) ErrorText(int) string { return "" }
