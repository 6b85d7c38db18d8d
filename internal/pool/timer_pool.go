// Package pool provides pooled time.Timer instances for hot polling loops,
// avoiding a timer allocation per wire-operation timeout.
package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer for the given duration d from the pool.
//
// Return the timer to the pool with PutTimer when done.
func GetTimer(d time.Duration) *time.Timer {
	v := timerPool.Get()
	if v == nil {
		return time.NewTimer(d)
	}

	t, _ := v.(*time.Timer) // the pool only ever holds *time.Timer
	if t.Reset(d) {
		// timer was still active, drop any pending tick
		drain(t)
	}

	return t
}

// PutTimer returns timer to the pool.
//
// t must not be accessed after returning it to the pool.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		// drain t.C if the tick wasn't consumed by the caller
		drain(t)
	}
	timerPool.Put(t)
}

func drain(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}
