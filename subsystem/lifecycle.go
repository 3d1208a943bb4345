// Package subsystem
// Author: momentics <momentics@gmail.com>
//
// Process-wide, reference-counted startup/teardown of a socket backend.

package subsystem

import (
	"reflect"
	"sync"

	"github.com/momentics/hioload-sock/api"
)

type stackState struct {
	refs        int
	initialized bool
}

var (
	stacksMu sync.Mutex
	stacks   = make(map[any]*stackState)
)

// stackKeyer lets a backend choose which stack it shares with other values.
type stackKeyer interface {
	StackKey() any
}

// stackKey returns the map key for b's stack. Comparable backends key by
// value; a backend whose value cannot be hashed keys by its dynamic type, so
// every value of that type shares one stack unless it implements StackKey.
func stackKey(b api.Sockets) any {
	if k, ok := b.(stackKeyer); ok {
		key := k.StackKey()
		if v := reflect.ValueOf(key); v.IsValid() && v.Comparable() {
			return key
		}
	}
	v := reflect.ValueOf(b)
	if v.Comparable() {
		return b
	}
	return v.Type()
}

// acquire takes one reference and starts the stack if it is not running.
// A failed start leaves the reference held; the next acquire retries.
func acquire(b api.Sockets) (started bool, err error) {
	stacksMu.Lock()
	defer stacksMu.Unlock()

	key := stackKey(b)
	st := stacks[key]
	if st == nil {
		st = &stackState{}
		stacks[key] = st
	}
	st.refs++
	if st.initialized {
		return false, nil
	}
	if err := b.Startup(); err != nil {
		return false, err
	}
	st.initialized = true
	return true, nil
}

// release drops one reference and tears the stack down on the last one.
// The reference is dropped even when teardown fails. A failed teardown
// leaves the stack marked running, so the next acquire does not start it
// again and the next last release retries the teardown.
func release(b api.Sockets) (stopped bool, err error) {
	stacksMu.Lock()
	defer stacksMu.Unlock()

	key := stackKey(b)
	st := stacks[key]
	if st == nil || st.refs == 0 {
		return false, nil
	}
	st.refs--
	if st.refs > 0 {
		return false, nil
	}
	if st.initialized {
		if err := b.Cleanup(); err != nil {
			return false, err
		}
		st.initialized = false
	}
	delete(stacks, key)
	return true, nil
}

// Refs returns the number of live Subsystem references on b.
func Refs(b api.Sockets) int {
	stacksMu.Lock()
	defer stacksMu.Unlock()
	if st := stacks[stackKey(b)]; st != nil {
		return st.refs
	}
	return 0
}

// StackInitialized reports whether b's networking stack is currently up.
func StackInitialized(b api.Sockets) bool {
	stacksMu.Lock()
	defer stacksMu.Unlock()
	st := stacks[stackKey(b)]
	return st != nil && st.initialized
}
