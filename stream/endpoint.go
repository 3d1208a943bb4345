// Package stream
// Author: momentics <momentics@gmail.com>
//
// A connected TCP stream as one object: connect, guaranteed and best-effort
// transfers, orderly teardown. An Endpoint owns its socket handle and a
// Subsystem reference; it is not safe for concurrent use.

package stream

import (
	"fmt"

	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/control"
	"github.com/momentics/hioload-sock/pool"
	"github.com/momentics/hioload-sock/subsystem"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultReceiveSize is used by Receive and ReceiveAll for non-positive
// lengths.
const DefaultReceiveSize = control.DefaultReceiveSize

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithSubsystem makes the endpoint take its own reference (a Clone) of sub
// instead of creating a fresh Subsystem with default options.
func WithSubsystem(sub *subsystem.Subsystem) Option {
	return func(e *Endpoint) {
		e.parent = sub
	}
}

// WithSubsystemOptions passes options to the Subsystem the endpoint creates.
func WithSubsystemOptions(opts ...subsystem.Option) Option {
	return func(e *Endpoint) {
		e.subOpts = append(e.subOpts, opts...)
	}
}

// WithTerminator controls the trailing zero byte appended by Send and
// SendAll. Enabled by default.
func WithTerminator(on bool) Option {
	return func(e *Endpoint) {
		e.terminator = on
	}
}

// WithBytePool sets the pool Receive borrows buffers from.
func WithBytePool(bp *pool.BytePool) Option {
	return func(e *Endpoint) {
		if bp != nil {
			e.buffers = bp
		}
	}
}

// Endpoint is a client TCP stream over IPv4.
type Endpoint struct {
	sub        *subsystem.Subsystem
	parent     *subsystem.Subsystem
	subOpts    []subsystem.Option
	buffers    *pool.BytePool
	terminator bool

	handle api.Handle
	remote api.AddressHint
	closed bool
}

// New creates an unconnected endpoint.
func New(opts ...Option) *Endpoint {
	e := &Endpoint{
		buffers:    pool.Default,
		terminator: true,
		handle:     api.InvalidHandle,
	}
	for _, fn := range opts {
		fn(e)
	}
	if e.parent != nil {
		e.sub = e.parent.Clone()
	} else {
		e.sub = subsystem.New(e.subOpts...)
	}
	return e
}

// Dial creates an endpoint and connects it to host:port. The endpoint is
// returned even when the connection fails, so the caller can inspect
// LastError, retry with Connect, or Close it.
func Dial(host string, port uint16, opts ...Option) (*Endpoint, error) {
	e := New(opts...)
	return e, e.Connect(host, port)
}

// Connect resolves host as an IPv4 address, opens a stream socket and
// connects it. A previously held handle is shut down and closed first, so
// the endpoint never owns more than one socket. If a step after socket
// creation fails the new socket is closed too.
func (e *Endpoint) Connect(host string, port uint16) error {
	if e.closed {
		return api.NewError(api.ErrCodeClosed, "Connect", "endpoint is closed").Wrap(api.ErrHandleClosed)
	}
	if err := e.disconnect(); err != nil {
		e.sub.Logger().Debug("dropping previous connection failed", zap.Error(err))
	}

	hint, err := e.sub.ResolveAddress(api.FamilyIPv4, port, host)
	if err != nil {
		return err
	}
	h, err := e.sub.CreateSocket(api.FamilyIPv4, api.SockStream, api.ProtoDefault)
	if err != nil {
		return err
	}
	if err := e.sub.Connect(h, hint); err != nil {
		_ = e.sub.Close(h)
		return err
	}
	e.handle = h
	e.remote = hint
	e.sub.Logger().Debug("endpoint connected", zap.Stringer("peer", hint), zap.Stringer("handle", h))
	return nil
}

// Connected reports whether the endpoint holds an open connection.
func (e *Endpoint) Connected() bool {
	return e.handle.Valid()
}

// Send transmits data plus the terminator with a single send call and
// returns the bytes the OS accepted, which may be fewer than requested.
func (e *Endpoint) Send(data []byte) (int, error) {
	if err := e.requireConnected("Send"); err != nil {
		return api.SocketError, err
	}
	return e.sub.Send(e.handle, e.frame(data), 0)
}

// SendAll transmits data plus the terminator completely. On failure the
// returned count is what was sent before the error.
func (e *Endpoint) SendAll(data []byte) (int, error) {
	if err := e.requireConnected("SendAll"); err != nil {
		return 0, err
	}
	return e.sub.SendAll(e.handle, e.frame(data), 0)
}

// Receive performs one receive of at most maxLength bytes and returns
// exactly the bytes that arrived. An empty result with a nil error means
// the peer shut down its sending side.
func (e *Endpoint) Receive(maxLength int) ([]byte, error) {
	if err := e.requireConnected("Receive"); err != nil {
		return nil, err
	}
	if maxLength <= 0 {
		maxLength = DefaultReceiveSize
	}
	buf := e.buffers.GetBuffer(maxLength)
	defer e.buffers.PutBuffer(buf)

	n, err := e.sub.Receive(e.handle, buf, 0)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out, nil
}

// ReceiveAll waits for exactly length bytes. It always returns only the
// bytes actually received: all length bytes on success, the partial prefix
// together with the error otherwise.
func (e *Endpoint) ReceiveAll(length int) ([]byte, error) {
	if err := e.requireConnected("ReceiveAll"); err != nil {
		return nil, err
	}
	if length <= 0 {
		length = DefaultReceiveSize
	}
	buf := make([]byte, length)
	n, err := e.sub.ReceiveAll(e.handle, buf, 0)
	return buf[:n], err
}

// Close shuts down both directions, closes the socket and releases the
// subsystem reference. Every step runs even if an earlier one fails; the
// failures are combined in the returned error and recorded in the
// subsystem. Calling Close again returns nil.
func (e *Endpoint) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	err := e.disconnect()
	return multierr.Append(err, e.sub.Release())
}

func (e *Endpoint) disconnect() error {
	if !e.handle.Valid() {
		return nil
	}
	h := e.handle
	e.handle = api.InvalidHandle
	e.remote = api.AddressHint{}
	return multierr.Combine(
		e.sub.Shutdown(h, api.ShutdownBoth),
		e.sub.Close(h),
	)
}

// Handle returns the connected socket handle or api.InvalidHandle.
func (e *Endpoint) Handle() api.Handle {
	return e.handle
}

// Remote returns the address the endpoint is connected to.
func (e *Endpoint) Remote() api.AddressHint {
	return e.remote
}

// Subsystem returns the endpoint's subsystem, e.g. for SetOption.
func (e *Endpoint) Subsystem() *subsystem.Subsystem {
	return e.sub
}

// LastError returns the last failure recorded by the endpoint's subsystem.
func (e *Endpoint) LastError() error {
	return e.sub.LastError()
}

func (e *Endpoint) frame(data []byte) []byte {
	if !e.terminator {
		if data == nil {
			return []byte{}
		}
		return data
	}
	out := make([]byte, len(data)+1)
	copy(out, data)
	return out
}

func (e *Endpoint) requireConnected(op string) error {
	if e.handle.Valid() {
		return nil
	}
	return api.NewError(api.ErrCodeClosed, op, fmt.Sprintf("endpoint is not connected (closed=%t)", e.closed)).
		Wrap(api.ErrHandleClosed)
}
