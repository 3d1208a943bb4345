// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the capability set every native socket backend provides. The
// subsystem package layers argument validation, error capture and the
// guaranteed-transfer loops on top of it.

package api

// Sockets is the platform socket API. Implementations perform exactly one
// OS call per method (retrying only on EINTR) and return raw OS errors;
// they never validate arguments beyond what the OS does.
type Sockets interface {
	// Name identifies the backend ("posix", "winsock", ...).
	Name() string

	// Startup brings up the networking stack. Called once per lifecycle.
	Startup() error
	// Cleanup tears the networking stack down.
	Cleanup() error

	Socket(family AddressFamily, typ SocketType, proto Protocol) (Handle, error)
	Connect(h Handle, hint AddressHint) error
	Bind(h Handle, hint AddressHint) error
	Listen(h Handle, backlog int) error
	Accept(h Handle) (Handle, AddressHint, error)

	// Send and Recv may transfer fewer bytes than len(p) without error.
	Send(h Handle, p []byte, flags int) (int, error)
	Recv(h Handle, p []byte, flags int) (int, error)

	Shutdown(h Handle, how ShutdownDirection) error
	Close(h Handle) error

	LocalAddr(h Handle) (AddressHint, error)
	SetOption(h Handle, opt SocketOption, value int) error

	// ErrorCode extracts the platform error code from an error returned by
	// this backend, or 0 when err carries none.
	ErrorCode(err error) int
	// ErrorText translates a platform error code into its system message.
	ErrorText(code int) string
}
