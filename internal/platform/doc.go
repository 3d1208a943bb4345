// File: internal/platform/doc.go
// Package platform
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Native implementations of api.Sockets strictly separated by build tags:
// POSIX sockets via golang.org/x/sys/unix, Windows Sockets 2 via
// golang.org/x/sys/windows, and an unsupported stub for everything else.
// All calls are blocking; nothing here multiplexes or spawns goroutines.

package platform
