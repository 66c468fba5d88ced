//go:build deadlock

// Package syncutil holds the lock types used across go-wlc.
// This file is compiled with -tags=deadlock.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex wraps deadlock.Mutex.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex wraps deadlock.RWMutex.
type RWMutex struct {
	deadlock.RWMutex
}
