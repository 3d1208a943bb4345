// Package subsystem
// Author: momentics <momentics@gmail.com>
//
// Peer name formatting.

package subsystem

import (
	"context"
	"strconv"
	"strings"

	"github.com/momentics/hioload-sock/api"
	"go.uber.org/zap"
)

// GetHostAndService returns a host name and service for hint. The host is
// the first reverse-lookup result when a resolver is configured and the
// lookup succeeds, otherwise the numeric address. The service is always the
// numeric port. Only an unusable hint, where neither path can produce a
// host, is recorded as an error.
func (s *Subsystem) GetHostAndService(hint api.AddressHint) (host, service string, err error) {
	const op = "GetHostAndService"
	if !hint.Addr.IsValid() {
		e := api.NewError(api.ErrCodeResolve, op, "name lookup and numeric formatting failed: hint is not resolved").
			Wrap(api.ErrInvalidArgument)
		return "", "", s.record(e)
	}
	service = strconv.Itoa(int(hint.Port))

	if s.opts.resolver != nil {
		ctx := context.Background()
		if s.opts.lookupTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.opts.lookupTimeout)
			defer cancel()
		}
		names, lerr := s.opts.resolver.LookupAddr(ctx, hint.Addr.String())
		if lerr == nil && len(names) > 0 && names[0] != "" {
			return strings.TrimSuffix(names[0], "."), service, nil
		}
		s.log.Debug("reverse lookup failed, using numeric host",
			zap.Stringer("addr", hint.Addr), zap.Error(lerr))
	}
	return hint.Addr.String(), service, nil
}
