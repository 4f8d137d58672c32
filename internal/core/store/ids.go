package store

import (
	"strconv"
	"sync/atomic"
	"time"
)

// IDGenerator issues ghost_<unix millis> identifiers. When two calls land in
// the same millisecond the later one is moved to the next unused millisecond,
// so ids stay distinct within a process while still reading as timestamps.
type IDGenerator struct {
	last atomic.Int64
	now  func() time.Time
}

// NewIDGenerator returns a generator backed by the given clock (time.Now if nil).
func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

// Next returns the next identifier.
func (g *IDGenerator) Next() string {
	for {
		ms := g.now().UnixMilli()
		prev := g.last.Load()
		if ms <= prev {
			ms = prev + 1
		}
		if g.last.CompareAndSwap(prev, ms) {
			return "ghost_" + strconv.FormatInt(ms, 10)
		}
	}
}

var defaultIDs = NewIDGenerator(nil)

// NewID returns an identifier from the process-wide generator.
func NewID() string {
	return defaultIDs.Next()
}
