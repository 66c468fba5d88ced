//go:build !deadlock

// Package syncutil holds the lock types used across go-wlc.
// Plain sync primitives back them by default; -tags=deadlock swaps in
// github.com/sasha-s/go-deadlock so lock-order bugs between the watchdog
// goroutine and callers surface in tests.
package syncutil

import "sync"

// Mutex wraps sync.Mutex.
//
//nolint:gocritic // embedding exposes Lock/Unlock directly
type Mutex struct {
	sync.Mutex
}

// RWMutex wraps sync.RWMutex.
//
//nolint:gocritic // embedding exposes the full RWMutex API
type RWMutex struct {
	sync.RWMutex
}
