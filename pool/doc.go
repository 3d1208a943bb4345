// Package pool
// Author: momentics <momentics@gmail.com>
//
// Reusable byte buffers for receive paths. Buffers are grouped into
// power-of-two size classes so a Receive of any length borrows a buffer of
// at least that length without allocating on the steady-state path.
package pool
