package api_test

import (
	"errors"
	"fmt"
	"net/netip"
	"testing"

	"github.com/momentics/hioload-sock/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle(t *testing.T) {
	assert.False(t, api.InvalidHandle.Valid())
	assert.Equal(t, "invalid", api.InvalidHandle.String())
	assert.True(t, api.Handle(0).Valid())
	assert.Equal(t, "42", api.Handle(42).String())
}

func TestShutdownDirectionValid(t *testing.T) {
	for _, d := range []api.ShutdownDirection{api.ShutdownReceive, api.ShutdownSend, api.ShutdownBoth} {
		assert.True(t, d.Valid(), d.String())
	}
	assert.False(t, api.ShutdownDirection(3).Valid())
	assert.False(t, api.ShutdownDirection(-1).Valid())
	assert.Equal(t, "unknown", api.ShutdownDirection(7).String())
}

func TestAddressHint(t *testing.T) {
	var zero api.AddressHint
	assert.True(t, zero.IsZero())
	assert.Equal(t, "<unresolved>", zero.String())

	h := api.HintFromAddrPort(netip.MustParseAddrPort("[::ffff:10.0.0.1]:8080"))
	assert.Equal(t, api.FamilyIPv4, h.Family)
	assert.Equal(t, "10.0.0.1:8080", h.String())
	assert.False(t, h.IsZero())

	h6 := api.HintFromAddrPort(netip.MustParseAddrPort("[2001:db8::1]:443"))
	assert.Equal(t, api.FamilyIPv6, h6.Family)
	assert.Equal(t, "[2001:db8::1]:443", h6.String())
	assert.Equal(t, uint16(443), h6.AddrPort().Port())
}

func TestErrorFormatting(t *testing.T) {
	e := api.NewError(api.ErrCodeSocket, "Connect", "Socket connecting failed with error 111: connection refused")
	assert.Equal(t, "Connect: Socket connecting failed with error 111: connection refused", e.Error())

	e.WithContext("peer", "127.0.0.1:1")
	assert.Contains(t, e.Error(), "(context: map[peer:127.0.0.1:1])")

	bare := &api.Error{Message: "no op"}
	assert.Equal(t, "no op", bare.Error())
	bare.WithContext("k", 1)
	assert.Equal(t, 1, bare.Context["k"])
}

func TestInvalidArgument(t *testing.T) {
	e := api.InvalidArgument("Send", "buffer", "is nil")
	assert.Equal(t, api.ErrCodeInvalidArgument, e.Code)
	assert.Contains(t, e.Message, "parameter 'buffer' is nil")
	assert.ErrorIs(t, e, api.ErrInvalidArgument)
	assert.Zero(t, api.CodeOf(e))
}

func TestCodeOfThroughWrapping(t *testing.T) {
	cause := errors.New("refused")
	e := api.NewError(api.ErrCodeSocket, "Connect", "failed").Wrap(cause)
	e.OSCode = 111

	wrapped := fmt.Errorf("dial: %w", e)
	assert.Equal(t, 111, api.CodeOf(wrapped))
	assert.ErrorIs(t, wrapped, cause)

	var target *api.Error
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "Connect", target.Op)

	assert.Zero(t, api.CodeOf(cause))
	assert.Zero(t, api.CodeOf(nil))
}

func TestErrorCodeString(t *testing.T) {
	seen := map[string]bool{}
	for c := api.ErrCodeOK; c <= api.ErrCodeLifecycle; c++ {
		s := c.String()
		assert.NotEmpty(t, s)
		assert.False(t, seen[s], "duplicate name %q", s)
		seen[s] = true
	}
}
