// Package subsystem
// Author: momentics <momentics@gmail.com>
//
// Single-shot socket operations.

package subsystem

import (
	"fmt"
	"net/netip"

	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/control"
	"go.uber.org/zap"
)

// ResolveAddress translates a numeric textual address into a hint for
// family. No name resolution is attempted. On failure the zero hint is
// returned.
func (s *Subsystem) ResolveAddress(family api.AddressFamily, port uint16, address string) (api.AddressHint, error) {
	const op = "ResolveAddress"
	if err := s.checkFamily(op, family); err != nil {
		return api.AddressHint{}, err
	}
	if address == "" {
		return api.AddressHint{}, s.record(api.InvalidArgument(op, "address", "is empty"))
	}
	addr, err := netip.ParseAddr(address)
	if err == nil && addr.Zone() != "" {
		err = fmt.Errorf("zoned address %q is not supported", address)
	}
	if err == nil {
		switch {
		case family == api.FamilyIPv4 && !addr.Is4():
			err = fmt.Errorf("%q is not an IPv4 address", address)
		case family == api.FamilyIPv6 && !addr.Is6():
			err = fmt.Errorf("%q is not an IPv6 address", address)
		}
	}
	if err != nil {
		e := api.NewError(api.ErrCodeResolve, op, "Hint creation failed with error: "+err.Error()).
			WithContext("address", address).
			Wrap(err)
		return api.AddressHint{}, s.record(e)
	}
	return api.AddressHint{Family: family, Port: port, Addr: addr}, nil
}

// CreateSocket opens a new socket and registers it as owned by s.
func (s *Subsystem) CreateSocket(family api.AddressFamily, typ api.SocketType, proto api.Protocol) (api.Handle, error) {
	const op = "CreateSocket"
	if err := s.checkFamily(op, family); err != nil {
		return api.InvalidHandle, err
	}
	if typ != api.SockStream {
		return api.InvalidHandle, s.record(api.InvalidArgument(op, "type", fmt.Sprintf("%d is not a stream socket type", typ)))
	}
	if proto != api.ProtoDefault && proto != api.ProtoTCP {
		return api.InvalidHandle, s.record(api.InvalidArgument(op, "protocol", fmt.Sprintf("%d is not TCP", proto)))
	}
	h, err := s.backend.Socket(family, typ, proto)
	if err != nil {
		return api.InvalidHandle, s.record(s.osError(op, "Socket creation", err))
	}
	s.adopt(h)
	s.log.Debug("socket created", zap.Stringer("handle", h), zap.Stringer("family", family))
	return h, nil
}

// Connect connects h to the address in hint.
func (s *Subsystem) Connect(h api.Handle, hint api.AddressHint) error {
	const op = "Connect"
	if err := s.checkHandle(op, h); err != nil {
		return err
	}
	if err := s.checkHint(op, hint); err != nil {
		return err
	}
	if err := s.backend.Connect(h, hint); err != nil {
		return s.record(s.osError(op, "Socket connection", err).WithContext("peer", hint.String()))
	}
	return nil
}

// Bind assigns the local address in hint to h.
func (s *Subsystem) Bind(h api.Handle, hint api.AddressHint) error {
	const op = "Bind"
	if err := s.checkHandle(op, h); err != nil {
		return err
	}
	if err := s.checkHint(op, hint); err != nil {
		return err
	}
	if err := s.backend.Bind(h, hint); err != nil {
		return s.record(s.osError(op, "Socket binding", err).WithContext("local", hint.String()))
	}
	return nil
}

// Listen marks a bound h as accepting connections. api.MaxBacklog asks for
// the platform maximum.
func (s *Subsystem) Listen(h api.Handle, backlog int) error {
	const op = "Listen"
	if err := s.checkHandle(op, h); err != nil {
		return err
	}
	if backlog < 0 {
		return s.record(api.InvalidArgument(op, "backlog", fmt.Sprintf("must not be negative, got %d", backlog)))
	}
	if err := s.backend.Listen(h, backlog); err != nil {
		return s.record(s.osError(op, "Socket listening", err))
	}
	return nil
}

// Accept waits for a connection on listening h. The returned handle is owned
// by s and independent of h, which stays usable for further Accept calls.
func (s *Subsystem) Accept(h api.Handle) (api.Handle, api.AddressHint, error) {
	const op = "Accept"
	if err := s.checkHandle(op, h); err != nil {
		return api.InvalidHandle, api.AddressHint{}, err
	}
	nh, peer, err := s.backend.Accept(h)
	if err != nil {
		return api.InvalidHandle, api.AddressHint{}, s.record(s.osError(op, "Socket accepting", err))
	}
	s.adopt(nh)
	s.log.Debug("connection accepted", zap.Stringer("handle", nh), zap.Stringer("peer", peer))
	return nh, peer, nil
}

// Send performs one send call. It may send fewer bytes than len(buf).
func (s *Subsystem) Send(h api.Handle, buf []byte, flags int) (int, error) {
	const op = "Send"
	if err := s.checkTransfer(op, h, buf); err != nil {
		return api.SocketError, err
	}
	n, err := s.send(h, buf, flags)
	if err != nil {
		return api.SocketError, s.record(s.osError(op, "Socket sending", err))
	}
	return n, nil
}

// Receive performs one receive call into buf. A return of 0 with a nil
// error means the peer performed an orderly shutdown.
func (s *Subsystem) Receive(h api.Handle, buf []byte, flags int) (int, error) {
	const op = "Receive"
	if err := s.checkTransfer(op, h, buf); err != nil {
		return api.SocketError, err
	}
	n, err := s.recv(h, buf, flags)
	if err != nil {
		return api.SocketError, s.record(s.osError(op, "Socket receiving", err))
	}
	return n, nil
}

// Shutdown disables receives, sends or both on h.
func (s *Subsystem) Shutdown(h api.Handle, direction api.ShutdownDirection) error {
	const op = "Shutdown"
	if err := s.checkHandle(op, h); err != nil {
		return err
	}
	if !direction.Valid() {
		return s.record(api.InvalidArgument(op, "direction", fmt.Sprintf("%d is not receive, send or both", direction)))
	}
	if err := s.backend.Shutdown(h, direction); err != nil {
		return s.record(s.osError(op, "Socket shutdown", err).WithContext("direction", direction.String()))
	}
	return nil
}

// Close releases h. Only handles created through s (CreateSocket, Accept)
// and not yet closed are passed to the OS; anything else, including a second
// Close of the same handle, fails with api.ErrHandleClosed without an OS
// call, because the descriptor number may already belong to another socket.
func (s *Subsystem) Close(h api.Handle) error {
	const op = "Close"
	if err := s.checkHandle(op, h); err != nil {
		return err
	}
	s.mu.Lock()
	_, owned := s.handles[h]
	delete(s.handles, h)
	s.mu.Unlock()
	if !owned {
		e := api.NewError(api.ErrCodeClosed, op, fmt.Sprintf("handle %s is not open", h)).Wrap(api.ErrHandleClosed)
		return s.record(e)
	}
	s.metrics.Add(control.MetricHandlesClosed, 1)
	if err := s.backend.Close(h); err != nil {
		return s.record(s.osError(op, "Socket closing", err))
	}
	s.log.Debug("socket closed", zap.Stringer("handle", h))
	return nil
}

// LocalAddress returns the address h is bound to.
func (s *Subsystem) LocalAddress(h api.Handle) (api.AddressHint, error) {
	const op = "LocalAddress"
	if err := s.checkHandle(op, h); err != nil {
		return api.AddressHint{}, err
	}
	hint, err := s.backend.LocalAddr(h)
	if err != nil {
		return api.AddressHint{}, s.record(s.osError(op, "Socket name lookup", err))
	}
	return hint, nil
}

// SetOption applies a socket option. Timeouts are in milliseconds.
func (s *Subsystem) SetOption(h api.Handle, opt api.SocketOption, value int) error {
	const op = "SetOption"
	if err := s.checkHandle(op, h); err != nil {
		return err
	}
	if opt < api.OptReuseAddr || opt > api.OptSendTimeout {
		return s.record(api.InvalidArgument(op, "option", fmt.Sprintf("%d is unknown", opt)))
	}
	if value < 0 {
		return s.record(api.InvalidArgument(op, "value", fmt.Sprintf("must not be negative, got %d", value)))
	}
	if err := s.backend.SetOption(h, opt, value); err != nil {
		return s.record(s.osError(op, "Socket option", err).WithContext("option", opt.String()))
	}
	return nil
}

func (s *Subsystem) adopt(h api.Handle) {
	s.mu.Lock()
	s.handles[h] = struct{}{}
	s.mu.Unlock()
	s.metrics.Add(control.MetricHandlesOpened, 1)
}

func (s *Subsystem) send(h api.Handle, p []byte, flags int) (int, error) {
	n, err := s.backend.Send(h, p, flags)
	if n > 0 {
		s.metrics.Add(control.MetricBytesSent, int64(n))
	}
	return n, err
}

func (s *Subsystem) recv(h api.Handle, p []byte, flags int) (int, error) {
	n, err := s.backend.Recv(h, p, flags)
	if n > 0 {
		s.metrics.Add(control.MetricBytesReceived, int64(n))
	}
	return n, err
}

func (s *Subsystem) checkFamily(op string, family api.AddressFamily) error {
	if family != api.FamilyIPv4 && family != api.FamilyIPv6 {
		return s.record(api.InvalidArgument(op, "family", fmt.Sprintf("%s is not IPv4 or IPv6", family)))
	}
	return nil
}

func (s *Subsystem) checkHandle(op string, h api.Handle) error {
	if !h.Valid() {
		return s.record(api.InvalidArgument(op, "handle", "is the invalid handle"))
	}
	return nil
}

func (s *Subsystem) checkHint(op string, hint api.AddressHint) error {
	if !hint.Addr.IsValid() {
		return s.record(api.InvalidArgument(op, "hint", "is not resolved"))
	}
	return nil
}

func (s *Subsystem) checkTransfer(op string, h api.Handle, buf []byte) error {
	if err := s.checkHandle(op, h); err != nil {
		return err
	}
	if buf == nil {
		return s.record(api.InvalidArgument(op, "buffer", "is nil"))
	}
	return nil
}
