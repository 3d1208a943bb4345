// Package subsystem
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Blocking TCP socket primitives behind one error-capture contract.
//
// A Subsystem holds a reference on the platform networking stack (started on
// the first reference, torn down on the last) and exposes every socket
// operation as a fallible call. On failure an operation returns its
// designated failure value (api.InvalidHandle, api.SocketError, a zero hint)
// together with an *api.Error, and records the same error as the instance's
// last error. Invalid arguments are rejected before the backend is touched.
//
// Error state is per instance and all methods are safe for concurrent use.
// Concurrent use of one socket handle is left to whatever the OS provides.
package subsystem
