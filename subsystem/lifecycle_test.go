package subsystem_test

import (
	"sync"
	"testing"

	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/fake"
	"github.com/momentics/hioload-sock/subsystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLifecycle_StartsOnceStopsOnce(t *testing.T) {
	fb := fake.NewFakeSockets()

	const n = 5
	subs := make([]*subsystem.Subsystem, n)
	for i := range subs {
		subs[i] = subsystem.New(subsystem.WithBackend(fb), subsystem.WithLogger(zaptest.NewLogger(t)))
		require.True(t, subs[i].IsInitialized())
	}
	assert.Equal(t, 1, fb.StartupCalls())
	assert.Equal(t, n, subsystem.Refs(fb))

	for i, s := range subs {
		require.NoError(t, s.Release())
		if i < n-1 {
			assert.Equal(t, 0, fb.CleanupCalls(), "stack torn down with %d refs left", n-1-i)
		}
	}
	assert.Equal(t, 1, fb.CleanupCalls())
	assert.Equal(t, 0, subsystem.Refs(fb))
	assert.False(t, subsystem.StackInitialized(fb))

	again := subsystem.New(subsystem.WithBackend(fb))
	defer again.Release()
	assert.True(t, again.IsInitialized())
	assert.Equal(t, 2, fb.StartupCalls())
}

func TestLifecycle_Concurrent(t *testing.T) {
	fb := fake.NewFakeSockets()

	const workers = 32
	var wg sync.WaitGroup
	subs := make(chan *subsystem.Subsystem, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			subs <- subsystem.New(subsystem.WithBackend(fb))
		}()
	}
	wg.Wait()
	close(subs)
	assert.Equal(t, workers, subsystem.Refs(fb))
	assert.Equal(t, 1, fb.StartupCalls())

	for s := range subs {
		wg.Add(1)
		go func(s *subsystem.Subsystem) {
			defer wg.Done()
			assert.NoError(t, s.Release())
		}(s)
	}
	wg.Wait()
	assert.Equal(t, 0, subsystem.Refs(fb))
	assert.Equal(t, 1, fb.CleanupCalls())
}

func TestLifecycle_CloneTakesOwnReference(t *testing.T) {
	fb := fake.NewFakeSockets()
	s := subsystem.New(subsystem.WithBackend(fb))
	_, err := s.ResolveAddress(api.FamilyIPv4, 1, "not-an-ip")
	require.Error(t, err)

	c := s.Clone()
	assert.Equal(t, 2, subsystem.Refs(fb))
	assert.NoError(t, c.LastError(), "clone must start with a clean error state")
	assert.Same(t, s.Metrics(), c.Metrics())

	require.NoError(t, s.Release())
	assert.True(t, c.IsInitialized())
	assert.False(t, s.IsInitialized())
	require.NoError(t, c.Release())
	assert.Equal(t, 1, fb.CleanupCalls())
}

func TestLifecycle_ReleaseTwiceIsNoop(t *testing.T) {
	fb := fake.NewFakeSockets()
	keep := subsystem.New(subsystem.WithBackend(fb))
	defer keep.Release()

	s := subsystem.New(subsystem.WithBackend(fb))
	require.NoError(t, s.Release())
	require.NoError(t, s.Release())
	assert.Equal(t, 1, subsystem.Refs(fb))
}

func TestLifecycle_StartupFailureIsRecorded(t *testing.T) {
	fb := fake.NewFakeSockets()
	fb.StartupFunc = func() error { return fake.Errno(10091) }

	s := subsystem.New(subsystem.WithBackend(fb))
	assert.False(t, s.IsInitialized())
	assert.Equal(t, 10091, s.ErrorCode())
	assert.Contains(t, s.ErrorMessage(), "initialization failed")

	fb.StartupFunc = nil
	s2 := subsystem.New(subsystem.WithBackend(fb))
	assert.True(t, s2.IsInitialized(), "a later reference retries startup")
	assert.Equal(t, 2, fb.StartupCalls())

	require.NoError(t, s.Release())
	require.NoError(t, s2.Release())
	assert.Equal(t, 0, subsystem.Refs(fb))
}

func TestLifecycle_CleanupFailureStillDropsReference(t *testing.T) {
	fb := fake.NewFakeSockets()
	fb.CleanupFunc = func() error { return fake.Errno(10093) }

	s := subsystem.New(subsystem.WithBackend(fb))
	err := s.Release()
	require.Error(t, err)
	assert.Equal(t, 10093, api.CodeOf(err))
	assert.Equal(t, 10093, s.ErrorCode())
	assert.Equal(t, 0, subsystem.Refs(fb))
	assert.True(t, subsystem.StackInitialized(fb), "a failed teardown leaves the stack up")

	fb.CleanupFunc = nil
	again := subsystem.New(subsystem.WithBackend(fb))
	assert.True(t, again.IsInitialized())
	assert.Equal(t, 1, fb.StartupCalls(), "a stack that is still up is not started twice")

	require.NoError(t, again.Release())
	assert.Equal(t, 2, fb.CleanupCalls(), "the next last release retries the teardown")
	assert.False(t, subsystem.StackInitialized(fb))
}

// funcBackend cannot be used as a map key: it carries a func field.
type funcBackend struct {
	*fake.FakeSockets
	hook func()
}

// keyedBackend picks its stack identity explicitly.
type keyedBackend struct {
	*fake.FakeSockets
	hook func()
}

func (b keyedBackend) StackKey() any { return b.FakeSockets }

func TestLifecycle_UnhashableBackend(t *testing.T) {
	fb := fake.NewFakeSockets()
	b := funcBackend{FakeSockets: fb, hook: func() {}}

	var s *subsystem.Subsystem
	require.NotPanics(t, func() { s = subsystem.New(subsystem.WithBackend(b)) })
	assert.True(t, s.IsInitialized())
	assert.Equal(t, 1, subsystem.Refs(b))

	h, err := s.CreateSocket(api.FamilyIPv4, api.SockStream, api.ProtoDefault)
	require.NoError(t, err)
	require.NoError(t, s.Close(h))

	require.NoError(t, s.Release())
	assert.Equal(t, 0, subsystem.Refs(b))
	assert.Equal(t, 1, fb.CleanupCalls())
}

func TestLifecycle_StackKeyTakesPrecedence(t *testing.T) {
	fb := fake.NewFakeSockets()
	first := subsystem.New(subsystem.WithBackend(keyedBackend{FakeSockets: fb, hook: func() {}}))
	second := subsystem.New(subsystem.WithBackend(keyedBackend{FakeSockets: fb}))
	other := subsystem.New(subsystem.WithBackend(keyedBackend{FakeSockets: fake.NewFakeSockets()}))
	defer other.Release()

	assert.Equal(t, 2, subsystem.Refs(keyedBackend{FakeSockets: fb}))
	assert.Equal(t, 1, fb.StartupCalls())

	require.NoError(t, first.Release())
	require.NoError(t, second.Release())
	assert.Equal(t, 1, fb.CleanupCalls())
	assert.True(t, other.IsInitialized())
}
