// Package subsystem
// Author: momentics <momentics@gmail.com>
//
// Subsystem construction, lifecycle and error state.

package subsystem

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/control"
	"go.uber.org/zap"
)

// Subsystem is one reference on the platform socket stack plus the error
// state of the operations issued through it.
type Subsystem struct {
	opts    options
	backend api.Sockets
	log     *zap.Logger
	metrics *control.MetricsRegistry

	mu       sync.Mutex
	code     int
	message  string
	err      error
	history  *queue.Queue
	handles  map[api.Handle]struct{}
	released bool
}

// New creates a Subsystem and takes a reference on its backend's stack,
// starting the stack if this is the first live reference. A startup failure
// is recorded, not returned: check IsInitialized or LastError.
func New(opts ...Option) *Subsystem {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if o.metrics == nil {
		o.metrics = control.NewMetricsRegistry()
	}
	return newSubsystem(o)
}

func newSubsystem(o options) *Subsystem {
	s := &Subsystem{
		opts:    o,
		backend: o.backend,
		log:     o.logger.With(zap.String("backend", o.backend.Name())),
		metrics: o.metrics,
		history: queue.New(),
		handles: make(map[api.Handle]struct{}),
	}
	s.initialize()
	return s
}

// Clone returns a new instance on the same backend and options. It takes
// its own stack reference and starts with a clean error state; metrics are
// shared with s.
func (s *Subsystem) Clone() *Subsystem {
	return newSubsystem(s.opts)
}

func (s *Subsystem) initialize() {
	started, err := acquire(s.backend)
	if err != nil {
		code := s.backend.ErrorCode(err)
		e := api.NewError(api.ErrCodeLifecycle, "Initialize",
			fmt.Sprintf("socket stack initialization failed with error %d: %s", code, s.describe(code, err))).
			Wrap(err)
		e.OSCode = code
		s.record(e)
		return
	}
	if started {
		s.log.Info("socket stack started")
	}
}

// Release drops this instance's stack reference, tearing the stack down when
// it was the last one. The reference is dropped even if teardown fails; the
// failure is recorded and returned. Calling Release twice is a no-op.
func (s *Subsystem) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	open := len(s.handles)
	s.mu.Unlock()

	if open > 0 {
		s.log.Debug("releasing subsystem with open handles", zap.Int("open", open))
	}
	stopped, err := release(s.backend)
	if err != nil {
		code := s.backend.ErrorCode(err)
		e := api.NewError(api.ErrCodeLifecycle, "Deinitialize",
			fmt.Sprintf("socket stack cleanup failed with error %d: %s", code, s.describe(code, err))).
			Wrap(err)
		e.OSCode = code
		return s.record(e)
	}
	if stopped {
		s.log.Info("socket stack stopped")
	}
	return nil
}

// IsInitialized reports whether this instance holds a reference on a
// running stack.
func (s *Subsystem) IsInitialized() bool {
	s.mu.Lock()
	released := s.released
	s.mu.Unlock()
	return !released && StackInitialized(s.backend)
}

// Backend returns the socket backend in use.
func (s *Subsystem) Backend() api.Sockets {
	return s.backend
}

// Metrics returns the counters fed by this instance.
func (s *Subsystem) Metrics() *control.MetricsRegistry {
	return s.metrics
}

// Logger returns the instance logger.
func (s *Subsystem) Logger() *zap.Logger {
	return s.log
}

// ErrorCode returns the code of the last recorded failure: the platform
// error code for OS failures, the negated api.ErrorCode for failures detected
// before any OS call, and 0 when nothing has failed.
func (s *Subsystem) ErrorCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// ErrorMessage returns the human-readable text of the last failure.
func (s *Subsystem) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// LastError returns the last recorded failure, or nil.
func (s *Subsystem) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ErrorHistory returns the most recent failures, oldest first.
func (s *Subsystem) ErrorHistory() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]error, 0, s.history.Length())
	for i := 0; i < s.history.Length(); i++ {
		out = append(out, s.history.Get(i).(error))
	}
	return out
}

// ClearError resets the last-error state. History is kept.
func (s *Subsystem) ClearError() {
	s.mu.Lock()
	s.code, s.message, s.err = 0, "", nil
	s.mu.Unlock()
}

// ErrorText translates a platform error code into its system message.
func (s *Subsystem) ErrorText(code int) string {
	return s.backend.ErrorText(code)
}

// OpenHandles returns the number of handles created through s and not yet
// closed.
func (s *Subsystem) OpenHandles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// RegisterProbes exposes the instance state through dp.
func (s *Subsystem) RegisterProbes(dp *control.DebugProbes) {
	dp.RegisterProbe("subsystem.backend", func() any { return s.backend.Name() })
	dp.RegisterProbe("subsystem.refs", func() any { return Refs(s.backend) })
	dp.RegisterProbe("subsystem.initialized", func() any { return s.IsInitialized() })
	dp.RegisterProbe("subsystem.open_handles", func() any { return s.OpenHandles() })
	dp.RegisterProbe("subsystem.last_error", func() any { return s.ErrorMessage() })
	dp.RegisterProbe("subsystem.metrics", func() any { return s.metrics.GetSnapshot() })
}

// record stores e as the last error and returns it.
func (s *Subsystem) record(e *api.Error) error {
	code := e.OSCode
	if code == 0 {
		code = -int(e.Code)
	}
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}

	s.mu.Lock()
	s.code = code
	s.message = msg
	s.err = e
	if size := s.opts.historySize; size > 0 {
		s.history.Add(error(e))
		for s.history.Length() > size {
			s.history.Remove()
		}
	}
	s.mu.Unlock()

	s.metrics.Add(control.MetricErrors, 1)
	s.log.Debug("socket operation failed",
		zap.String("op", e.Op),
		zap.Stringer("kind", e.Code),
		zap.Int("code", code),
		zap.Error(e))
	return e
}

// osError wraps a backend failure of op. what names the action for the
// message, e.g. "Socket connection".
func (s *Subsystem) osError(op, what string, err error) *api.Error {
	code := s.backend.ErrorCode(err)
	e := api.NewError(api.ErrCodeSocket, op,
		fmt.Sprintf("%s failed with error %d: %s", what, code, s.describe(code, err))).
		Wrap(err)
	e.OSCode = code
	return e
}

func (s *Subsystem) describe(code int, err error) string {
	if code != 0 {
		if text := s.backend.ErrorText(code); text != "" {
			return text
		}
	}
	return err.Error()
}
