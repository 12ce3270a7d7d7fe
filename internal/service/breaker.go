package service

import (
	"sync/atomic"
	"time"
)

// breaker is the throttling circuit: one atomic deadline. While the deadline
// is in the future, work items are rejected without touching the network;
// the first item scheduled after the deadline closes the circuit implicitly.
type breaker struct {
	until atomic.Int64 // unix nanos, 0 = closed
}

func (b *breaker) Trip(hold time.Duration) {
	b.until.Store(time.Now().Add(hold).UnixNano())
}

func (b *breaker) Open() bool {
	return time.Now().UnixNano() < b.until.Load()
}
