// Package fake provides scriptable in-memory implementations for testing
// the socket layer without touching the OS.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"

	"github.com/momentics/hioload-sock/api"
)

// Errno is the platform error code type of the fake backend.
type Errno int

// Codes returned by the default fake behaviour.
const (
	EBADF        Errno = 9
	ECONNREFUSED Errno = 111
	EPIPE        Errno = 32
	ENOTCONN     Errno = 107
)

var errnoText = map[Errno]string{
	EBADF:        "bad file descriptor",
	ECONNREFUSED: "connection refused",
	EPIPE:        "broken pipe",
	ENOTCONN:     "transport endpoint is not connected",
}

func (e Errno) Error() string {
	if s, ok := errnoText[e]; ok {
		return s
	}
	return fmt.Sprintf("fake errno %d", int(e))
}

// FakeSockets implements api.Sockets in memory. Every hook is optional; when
// nil the default behaviour below applies. Safe for concurrent use.
type FakeSockets struct {
	StartupFunc  func() error
	CleanupFunc  func() error
	ConnectFunc  func(h api.Handle, hint api.AddressHint) error
	AcceptFunc   func(h api.Handle) (api.Handle, api.AddressHint, error)
	SendFunc     func(h api.Handle, p []byte, flags int) (int, error)
	RecvFunc     func(h api.Handle, p []byte, flags int) (int, error)
	ShutdownFunc func(h api.Handle, how api.ShutdownDirection) error
	CloseFunc    func(h api.Handle) error

	// MaxChunk caps the bytes moved by one default Send/Recv call to
	// simulate partial I/O. 0 means no cap.
	MaxChunk int

	mu           sync.Mutex
	calls        []string
	startupCalls int
	cleanupCalls int
	next         api.Handle
	open         map[api.Handle]bool
	sent         map[api.Handle][]byte
	inbox        map[api.Handle][]byte
	shutdowns    map[api.Handle][]api.ShutdownDirection
	local        map[api.Handle]api.AddressHint
}

// NewFakeSockets creates a fake backend whose first handle is 3.
func NewFakeSockets() *FakeSockets {
	return &FakeSockets{
		next:      3,
		open:      make(map[api.Handle]bool),
		sent:      make(map[api.Handle][]byte),
		inbox:     make(map[api.Handle][]byte),
		shutdowns: make(map[api.Handle][]api.ShutdownDirection),
		local:     make(map[api.Handle]api.AddressHint),
	}
}

func (f *FakeSockets) Name() string { return "fake" }

func (f *FakeSockets) track(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
}

func (f *FakeSockets) Startup() error {
	f.track("Startup")
	f.mu.Lock()
	f.startupCalls++
	f.mu.Unlock()
	if f.StartupFunc != nil {
		return f.StartupFunc()
	}
	return nil
}

func (f *FakeSockets) Cleanup() error {
	f.track("Cleanup")
	f.mu.Lock()
	f.cleanupCalls++
	f.mu.Unlock()
	if f.CleanupFunc != nil {
		return f.CleanupFunc()
	}
	return nil
}

func (f *FakeSockets) Socket(family api.AddressFamily, typ api.SocketType, proto api.Protocol) (api.Handle, error) {
	f.track("Socket")
	return f.newHandle(), nil
}

func (f *FakeSockets) newHandle() api.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := f.next
	f.next++
	f.open[h] = true
	return h
}

func (f *FakeSockets) Connect(h api.Handle, hint api.AddressHint) error {
	f.track("Connect")
	if f.ConnectFunc != nil {
		return f.ConnectFunc(h, hint)
	}
	return f.checkOpen(h)
}

func (f *FakeSockets) Bind(h api.Handle, hint api.AddressHint) error {
	f.track("Bind")
	if err := f.checkOpen(h); err != nil {
		return err
	}
	f.mu.Lock()
	if hint.Port == 0 {
		hint.Port = 40000 + uint16(h)
	}
	f.local[h] = hint
	f.mu.Unlock()
	return nil
}

func (f *FakeSockets) Listen(h api.Handle, backlog int) error {
	f.track("Listen")
	return f.checkOpen(h)
}

func (f *FakeSockets) Accept(h api.Handle) (api.Handle, api.AddressHint, error) {
	f.track("Accept")
	if f.AcceptFunc != nil {
		return f.AcceptFunc(h)
	}
	if err := f.checkOpen(h); err != nil {
		return api.InvalidHandle, api.AddressHint{}, err
	}
	peer := api.AddressHint{
		Family: api.FamilyIPv4,
		Port:   50000,
		Addr:   netip.AddrFrom4([4]byte{127, 0, 0, 1}),
	}
	return f.newHandle(), peer, nil
}

func (f *FakeSockets) Send(h api.Handle, p []byte, flags int) (int, error) {
	f.track("Send")
	if f.SendFunc != nil {
		return f.SendFunc(h, p, flags)
	}
	if err := f.checkOpen(h); err != nil {
		return 0, err
	}
	n := f.chunk(len(p))
	f.mu.Lock()
	f.sent[h] = append(f.sent[h], p[:n]...)
	f.mu.Unlock()
	return n, nil
}

// Recv serves bytes queued with Feed; an empty queue reads as an orderly
// shutdown (0, nil).
func (f *FakeSockets) Recv(h api.Handle, p []byte, flags int) (int, error) {
	f.track("Recv")
	if f.RecvFunc != nil {
		return f.RecvFunc(h, p, flags)
	}
	if err := f.checkOpen(h); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	queued := f.inbox[h]
	n := copy(p[:f.chunk(len(p))], queued)
	f.inbox[h] = queued[n:]
	return n, nil
}

func (f *FakeSockets) Shutdown(h api.Handle, how api.ShutdownDirection) error {
	f.track("Shutdown")
	if f.ShutdownFunc != nil {
		return f.ShutdownFunc(h, how)
	}
	if err := f.checkOpen(h); err != nil {
		return err
	}
	f.mu.Lock()
	f.shutdowns[h] = append(f.shutdowns[h], how)
	f.mu.Unlock()
	return nil
}

func (f *FakeSockets) Close(h api.Handle) error {
	f.track("Close")
	if f.CloseFunc != nil {
		return f.CloseFunc(h)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open[h] {
		return EBADF
	}
	delete(f.open, h)
	return nil
}

func (f *FakeSockets) LocalAddr(h api.Handle) (api.AddressHint, error) {
	f.track("LocalAddr")
	if err := f.checkOpen(h); err != nil {
		return api.AddressHint{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.local[h], nil
}

func (f *FakeSockets) SetOption(h api.Handle, opt api.SocketOption, value int) error {
	f.track("SetOption")
	return f.checkOpen(h)
}

func (f *FakeSockets) ErrorCode(err error) int {
	var errno Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}

func (f *FakeSockets) ErrorText(code int) string {
	if code == 0 {
		return ""
	}
	return Errno(code).Error()
}

func (f *FakeSockets) checkOpen(h api.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open[h] {
		return EBADF
	}
	return nil
}

func (f *FakeSockets) chunk(n int) int {
	if f.MaxChunk > 0 && n > f.MaxChunk {
		return f.MaxChunk
	}
	return n
}

// Feed queues data to be returned by Recv on h.
func (f *FakeSockets) Feed(h api.Handle, data []byte) {
	f.mu.Lock()
	f.inbox[h] = append(f.inbox[h], data...)
	f.mu.Unlock()
}

// Sent returns a copy of every byte accepted by Send on h.
func (f *FakeSockets) Sent(h api.Handle) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.sent[h]...)
}

// Shutdowns returns the directions passed to Shutdown for h.
func (f *FakeSockets) Shutdowns(h api.Handle) []api.ShutdownDirection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.ShutdownDirection(nil), f.shutdowns[h]...)
}

// IsOpen reports whether h was created and not yet closed.
func (f *FakeSockets) IsOpen(h api.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open[h]
}

// Calls returns the backend methods invoked so far, in order.
func (f *FakeSockets) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount returns how many times op was invoked.
func (f *FakeSockets) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

// StartupCalls returns how many times the stack was started.
func (f *FakeSockets) StartupCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startupCalls
}

// CleanupCalls returns how many times the stack was torn down.
func (f *FakeSockets) CleanupCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleanupCalls
}

// Reset clears call tracking, keeping handles and queued data.
func (f *FakeSockets) Reset() {
	f.mu.Lock()
	f.calls = f.calls[:0]
	f.startupCalls = 0
	f.cleanupCalls = 0
	f.mu.Unlock()
}
