// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Typed configuration shared by the subsystem, stream endpoints and the
// command-line tools.

package control

import (
	"fmt"
	"net/netip"
	"time"

	"go.uber.org/zap/zapcore"
)

// DefaultReceiveSize is the buffer length used by Receive/ReceiveAll when
// the caller does not choose one.
const DefaultReceiveSize = 8192

// Config holds every tunable of the socket layer.
type Config struct {
	Host string // textual IPv4 address of the peer or bind address
	Port uint16

	ReceiveSize int  // bytes per Receive call
	Terminator  bool // append a trailing zero byte to outgoing messages
	Backlog     int  // listen backlog for servers

	// NameLookupTimeout bounds the reverse lookup in GetHostAndService.
	NameLookupTimeout time.Duration
	// ErrorHistory is how many recent errors a subsystem keeps.
	ErrorHistory int

	LogLevel string
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Host:              "127.0.0.1",
		Port:              0,
		ReceiveSize:       DefaultReceiveSize,
		Terminator:        true,
		Backlog:           128,
		NameLookupTimeout: 2 * time.Second,
		ErrorHistory:      16,
		LogLevel:          "info",
	}
}

// Validate reports the first inconsistent field.
func (c Config) Validate() error {
	if _, err := netip.ParseAddr(c.Host); err != nil {
		return fmt.Errorf("config: host %q is not a numeric address: %w", c.Host, err)
	}
	if c.ReceiveSize <= 0 {
		return fmt.Errorf("config: receive size must be positive, got %d", c.ReceiveSize)
	}
	if c.Backlog < 0 {
		return fmt.Errorf("config: backlog must not be negative, got %d", c.Backlog)
	}
	if c.NameLookupTimeout < 0 {
		return fmt.Errorf("config: name lookup timeout must not be negative, got %s", c.NameLookupTimeout)
	}
	if c.ErrorHistory < 0 {
		return fmt.Errorf("config: error history must not be negative, got %d", c.ErrorHistory)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel into a zap level.
func (c Config) Level() (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return lvl, fmt.Errorf("config: log level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
