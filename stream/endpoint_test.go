package stream_test

import (
	"testing"

	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/fake"
	"github.com/momentics/hioload-sock/internal/platform"
	"github.com/momentics/hioload-sock/stream"
	"github.com/momentics/hioload-sock/subsystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func dialFake(t *testing.T, opts ...stream.Option) (*stream.Endpoint, *fake.FakeSockets) {
	t.Helper()
	fb := fake.NewFakeSockets()
	opts = append([]stream.Option{
		stream.WithSubsystemOptions(
			subsystem.WithBackend(fb),
			subsystem.WithLogger(zaptest.NewLogger(t)),
		),
	}, opts...)
	ep, err := stream.Dial("127.0.0.1", 32406, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ep.Close() })
	return ep, fb
}

func TestEndpoint_SendAllAppendsTerminator(t *testing.T) {
	ep, fb := dialFake(t)
	fb.MaxChunk = 4

	n, err := ep.SendAll([]byte("Hello BRAH!"))
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Equal(t, []byte("Hello BRAH!\x00"), fb.Sent(ep.Handle()))
}

func TestEndpoint_TerminatorDisabled(t *testing.T) {
	ep, fb := dialFake(t, stream.WithTerminator(false))

	n, err := ep.Send([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("raw"), fb.Sent(ep.Handle()))
}

func TestEndpoint_SendEmptyMessageSendsTerminatorOnly(t *testing.T) {
	ep, fb := dialFake(t)

	n, err := ep.Send(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []byte{0}, fb.Sent(ep.Handle()))
}

func TestEndpoint_ReceiveTruncatesToMaxLength(t *testing.T) {
	ep, fb := dialFake(t)
	fb.Feed(ep.Handle(), payload(100))

	first, err := ep.Receive(10)
	require.NoError(t, err)
	assert.Equal(t, payload(100)[:10], first)

	rest, err := ep.Receive(0)
	require.NoError(t, err)
	assert.Equal(t, payload(100)[10:], rest)
}

func TestEndpoint_ReceiveAfterOrderlyShutdownIsEmpty(t *testing.T) {
	ep, _ := dialFake(t)

	data, err := ep.Receive(64)
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.True(t, ep.Connected())
}

func TestEndpoint_ReceiveAllReturnsOnlyReceivedBytes(t *testing.T) {
	ep, fb := dialFake(t)
	fb.MaxChunk = 2
	fb.Feed(ep.Handle(), []byte("abcdef"))

	data, err := ep.ReceiveAll(4)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), data)

	data, err = ep.ReceiveAll(8)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrPeerClosed)
	assert.Equal(t, []byte("ef"), data)
}

func TestEndpoint_ReconnectClosesPreviousHandle(t *testing.T) {
	ep, fb := dialFake(t)
	first := ep.Handle()

	require.NoError(t, ep.Connect("127.0.0.1", 8080))
	second := ep.Handle()

	assert.NotEqual(t, first, second)
	assert.False(t, fb.IsOpen(first))
	assert.Equal(t, []api.ShutdownDirection{api.ShutdownBoth}, fb.Shutdowns(first))
	assert.True(t, fb.IsOpen(second))
	assert.Equal(t, uint16(8080), ep.Remote().Port)
	assert.Equal(t, 1, ep.Subsystem().OpenHandles())
}

func TestEndpoint_CloseTearsDownInOrder(t *testing.T) {
	ep, fb := dialFake(t)
	h := ep.Handle()
	fb.Reset()

	require.NoError(t, ep.Close())
	assert.Equal(t, []string{"Shutdown", "Close", "Cleanup"}, fb.Calls())
	assert.False(t, fb.IsOpen(h))
	assert.Equal(t, 0, subsystem.Refs(fb))
	assert.False(t, ep.Connected())

	require.NoError(t, ep.Close(), "second close is a no-op")
	assert.Equal(t, 1, fb.CleanupCalls())

	n, err := ep.Send([]byte("late"))
	assert.Equal(t, api.SocketError, n)
	assert.ErrorIs(t, err, api.ErrHandleClosed)

	err = ep.Connect("127.0.0.1", 1)
	assert.ErrorIs(t, err, api.ErrHandleClosed)
}

func TestEndpoint_CloseCombinesFailures(t *testing.T) {
	ep, fb := dialFake(t)
	fb.ShutdownFunc = func(api.Handle, api.ShutdownDirection) error { return fake.ENOTCONN }
	fb.CleanupFunc = func() error { return fake.Errno(10093) }

	err := ep.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, fake.ENOTCONN)
	assert.ErrorIs(t, err, fake.Errno(10093))
	assert.Equal(t, 1, fb.CallCount("Close"), "close still runs after a failed shutdown")
	assert.Equal(t, 0, subsystem.Refs(fb))
}

func TestEndpoint_InvalidHost(t *testing.T) {
	fb := fake.NewFakeSockets()
	ep, err := stream.Dial("not-an-ip", 80, stream.WithSubsystemOptions(subsystem.WithBackend(fb)))
	defer ep.Close()

	require.Error(t, err)
	assert.False(t, ep.Connected())
	assert.Zero(t, fb.CallCount("Socket"))
	assert.Equal(t, err, ep.LastError())
}

func TestEndpoint_ConnectFailureClosesSocket(t *testing.T) {
	fb := fake.NewFakeSockets()
	fb.ConnectFunc = func(api.Handle, api.AddressHint) error { return fake.ECONNREFUSED }

	ep, err := stream.Dial("127.0.0.1", 1, stream.WithSubsystemOptions(subsystem.WithBackend(fb)))
	defer ep.Close()

	require.Error(t, err)
	assert.ErrorIs(t, err, fake.ECONNREFUSED)
	assert.False(t, ep.Connected())
	assert.False(t, fb.IsOpen(3))
	assert.Equal(t, int(fake.ECONNREFUSED), ep.Subsystem().ErrorCode())
	assert.Zero(t, ep.Subsystem().OpenHandles())
}

func TestEndpoint_UnconnectedOperationsFail(t *testing.T) {
	fb := fake.NewFakeSockets()
	ep := stream.New(stream.WithSubsystemOptions(subsystem.WithBackend(fb)))
	defer ep.Close()

	_, err := ep.SendAll([]byte("x"))
	assert.ErrorIs(t, err, api.ErrHandleClosed)
	_, err = ep.Receive(1)
	assert.ErrorIs(t, err, api.ErrHandleClosed)
	_, err = ep.ReceiveAll(1)
	assert.ErrorIs(t, err, api.ErrHandleClosed)
	assert.Empty(t, fb.Sent(3))
}

func TestEndpoint_SharedSubsystemTakesReference(t *testing.T) {
	fb := fake.NewFakeSockets()
	parent := subsystem.New(subsystem.WithBackend(fb))
	defer parent.Release()

	ep, err := stream.Dial("127.0.0.1", 80, stream.WithSubsystem(parent))
	require.NoError(t, err)
	assert.Equal(t, 2, subsystem.Refs(fb))
	assert.NotSame(t, parent, ep.Subsystem())
	assert.Same(t, parent.Metrics(), ep.Subsystem().Metrics())

	require.NoError(t, ep.Close())
	assert.Equal(t, 1, subsystem.Refs(fb))
	assert.Zero(t, fb.CleanupCalls())
}

func TestEndpoint_LoopbackExchange(t *testing.T) {
	if !platform.Supported() {
		t.Skipf("no native socket backend on %s", platform.Describe())
	}
	sub := subsystem.New(subsystem.WithLogger(zaptest.NewLogger(t)))
	defer sub.Release()
	require.True(t, sub.IsInitialized(), sub.ErrorMessage())

	hint, err := sub.ResolveAddress(api.FamilyIPv4, 0, "127.0.0.1")
	require.NoError(t, err)
	ln, err := sub.CreateSocket(api.FamilyIPv4, api.SockStream, api.ProtoTCP)
	require.NoError(t, err)
	defer sub.Close(ln)
	require.NoError(t, sub.Bind(ln, hint))
	require.NoError(t, sub.Listen(ln, 4))
	local, err := sub.LocalAddress(ln)
	require.NoError(t, err)

	ep, err := stream.Dial("127.0.0.1", local.Port, stream.WithSubsystem(sub))
	require.NoError(t, err)
	defer ep.Close()
	require.NoError(t, ep.Subsystem().SetOption(ep.Handle(), api.OptReceiveTimeout, 5000))

	conn, _, err := sub.Accept(ln)
	require.NoError(t, err)
	defer sub.Close(conn)
	require.NoError(t, sub.SetOption(conn, api.OptReceiveTimeout, 5000))

	greeting := []byte("welcome, client")
	_, err = sub.SendAll(conn, greeting, 0)
	require.NoError(t, err)
	require.NoError(t, sub.Shutdown(conn, api.ShutdownSend))

	got, err := ep.ReceiveAll(len(greeting))
	require.NoError(t, err)
	assert.Equal(t, greeting, got)

	got, err = ep.Receive(stream.DefaultReceiveSize)
	require.NoError(t, err)
	assert.Empty(t, got, "peer shut down its sending side")

	n, err := ep.SendAll([]byte("Hello BRAH!"))
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	reply := make([]byte, 12)
	_, err = sub.ReceiveAll(conn, reply, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello BRAH!\x00"), reply)
}

func payload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i)
	}
	return p
}
