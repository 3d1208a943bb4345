// Package subsystem
// Author: momentics <momentics@gmail.com>
//
// Guaranteed-completion transfers. A single send/recv call may move fewer
// bytes than asked for without failing; these loops keep calling until the
// whole buffer is done or a call fails.

package subsystem

import (
	"fmt"

	"github.com/momentics/hioload-sock/api"
)

// SendAll sends every byte of buf. It returns len(buf) and nil on success.
// On failure it returns the number of bytes handed to the OS before the
// failing call, so callers can resume or report a truncated transfer.
func (s *Subsystem) SendAll(h api.Handle, buf []byte, flags int) (int, error) {
	const op = "SendAll"
	if err := s.checkTransfer(op, h, buf); err != nil {
		return 0, err
	}
	total := 0
	for total < len(buf) {
		n, err := s.send(h, buf[total:], flags)
		if err != nil {
			e := s.osError(op, "Socket sending", err).
				WithContext("transferred", total).
				WithContext("requested", len(buf))
			return total, s.record(e)
		}
		if n <= 0 {
			e := api.NewError(api.ErrCodeSocket, op,
				fmt.Sprintf("send made no progress after %d of %d bytes", total, len(buf)))
			return total, s.record(e)
		}
		total += n
	}
	return total, nil
}

// ReceiveAll fills buf completely. It returns len(buf) and nil on success.
// On failure it returns the number of bytes already stored in buf. A peer
// shutdown before buf is full fails with api.ErrPeerClosed.
func (s *Subsystem) ReceiveAll(h api.Handle, buf []byte, flags int) (int, error) {
	const op = "ReceiveAll"
	if err := s.checkTransfer(op, h, buf); err != nil {
		return 0, err
	}
	total := 0
	for total < len(buf) {
		n, err := s.recv(h, buf[total:], flags)
		if err != nil {
			e := s.osError(op, "Socket receiving", err).
				WithContext("transferred", total).
				WithContext("requested", len(buf))
			return total, s.record(e)
		}
		if n == 0 {
			e := api.NewError(api.ErrCodePeerClosed, op,
				fmt.Sprintf("peer closed the connection after %d of %d bytes", total, len(buf))).
				Wrap(api.ErrPeerClosed)
			return total, s.record(e)
		}
		total += n
	}
	return total, nil
}
