// Package subsystem
// Author: momentics <momentics@gmail.com>
//
// Functional options for Subsystem construction.

package subsystem

import (
	"context"
	"net"
	"time"

	"github.com/momentics/hioload-sock/api"
	"github.com/momentics/hioload-sock/control"
	"github.com/momentics/hioload-sock/internal/platform"
	"go.uber.org/zap"
)

// Resolver performs reverse name lookups. *net.Resolver satisfies it.
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Option configures a Subsystem.
type Option func(*options)

type options struct {
	backend       api.Sockets
	logger        *zap.Logger
	resolver      Resolver
	lookupTimeout time.Duration
	historySize   int
	metrics       *control.MetricsRegistry
}

func defaultOptions() options {
	cfg := control.DefaultConfig()
	return options{
		backend:       platform.Native(),
		logger:        zap.NewNop(),
		resolver:      net.DefaultResolver,
		lookupTimeout: cfg.NameLookupTimeout,
		historySize:   cfg.ErrorHistory,
	}
}

// WithBackend replaces the native platform backend, e.g. with a fake.
func WithBackend(b api.Sockets) Option {
	return func(o *options) {
		if b != nil {
			o.backend = b
		}
	}
}

// WithLogger sets the logger; nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithResolver sets the reverse lookup used by GetHostAndService. A nil
// resolver disables lookups so only numeric formatting is used.
func WithResolver(r Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithNameLookupTimeout bounds each reverse lookup.
func WithNameLookupTimeout(d time.Duration) Option {
	return func(o *options) {
		o.lookupTimeout = d
	}
}

// WithErrorHistory sets how many recent errors are kept; 0 keeps none.
func WithErrorHistory(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.historySize = n
		}
	}
}

// WithMetrics shares a metrics registry between instances.
func WithMetrics(m *control.MetricsRegistry) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithConfig applies the subsystem-related fields of cfg.
func WithConfig(cfg control.Config) Option {
	return func(o *options) {
		o.lookupTimeout = cfg.NameLookupTimeout
		if cfg.ErrorHistory >= 0 {
			o.historySize = cfg.ErrorHistory
		}
	}
}
