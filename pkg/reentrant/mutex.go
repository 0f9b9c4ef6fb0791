// Package reentrant provides a mutex that may be locked again by the
// goroutine that already holds it.
//
// Handlers invoked while the state machine lock is held are allowed to
// call back into the engine from the same goroutine; a plain sync.Mutex
// would deadlock there.
package reentrant

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// Mutex is a re-entrant mutual exclusion lock. The zero value is unlocked.
//
// A Mutex tracks the goroutine that owns it and how many times that
// goroutine has locked it. Unlock must be called once per Lock by the
// owning goroutine.
type Mutex struct {
	mu    sync.Mutex
	owner atomic.Int64
	depth int
}

// Lock acquires the mutex, or increments the depth if the calling
// goroutine already owns it.
func (m *Mutex) Lock() {
	gid := goroutineID()
	if m.owner.Load() == gid {
		m.depth++
		return
	}
	m.mu.Lock()
	m.owner.Store(gid)
	m.depth = 1
}

// TryLock acquires the mutex without blocking. It reports whether the
// mutex is now held by the calling goroutine.
func (m *Mutex) TryLock() bool {
	gid := goroutineID()
	if m.owner.Load() == gid {
		m.depth++
		return true
	}
	if !m.mu.TryLock() {
		return false
	}
	m.owner.Store(gid)
	m.depth = 1
	return true
}

// Unlock decrements the depth and releases the mutex when it reaches zero.
// It panics if the calling goroutine does not own the mutex.
func (m *Mutex) Unlock() {
	if m.owner.Load() != goroutineID() {
		panic("reentrant: unlock of mutex not owned by calling goroutine")
	}
	m.depth--
	if m.depth > 0 {
		return
	}
	m.owner.Store(0)
	m.mu.Unlock()
}

// HeldByCurrent reports whether the calling goroutine owns the mutex.
func (m *Mutex) HeldByCurrent() bool {
	return m.owner.Load() == goroutineID()
}

// Depth returns the lock depth when called by the owning goroutine, 0
// otherwise.
func (m *Mutex) Depth() int {
	if !m.HeldByCurrent() {
		return 0
	}
	return m.depth
}

var goroutinePrefix = []byte("goroutine ")

// goroutineID parses the current goroutine's ID from its stack header
// ("goroutine 42 [running]:").
func goroutineID() int64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		panic("reentrant: cannot parse goroutine id: " + err.Error())
	}
	return id
}
