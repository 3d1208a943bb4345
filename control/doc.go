// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, runtime metrics and debug introspection for the socket
// layer.
//
// Provides concurrent-safe state handling primitives including:
//   - Typed configuration with defaults and validation
//   - Transfer and handle counters fed by the subsystem
//   - Named debug probes for state export
package control
