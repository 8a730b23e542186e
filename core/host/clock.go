package host

import "time"

// Clock supplies the logical time and block height the runtime stamps onto
// call frames. Expiry checks in the protocol run against this clock, never
// against wall time directly.
type Clock interface {
	Now() uint64
	Block() uint64
}

// ManualClock is an explicitly advanced clock for tests and deterministic
// single-node deployments.
type ManualClock struct {
	Time   uint64
	Height uint64
}

func (c *ManualClock) Now() uint64   { return c.Time }
func (c *ManualClock) Block() uint64 { return c.Height }

// Advance moves the clock forward by dt time units and one block.
func (c *ManualClock) Advance(dt uint64) {
	c.Time += dt
	c.Height++
}

// WallClock reports wall time in milliseconds. Block height advances once
// per blockInterval milliseconds from the process start.
type WallClock struct {
	start         time.Time
	blockInterval uint64
}

// NewWallClock builds a wall clock with the given block interval in
// milliseconds. A zero interval defaults to one block per second.
func NewWallClock(blockIntervalMillis uint64) *WallClock {
	if blockIntervalMillis == 0 {
		blockIntervalMillis = 1000
	}
	return &WallClock{start: time.Now(), blockInterval: blockIntervalMillis}
}

func (c *WallClock) Now() uint64 {
	return uint64(time.Now().UnixMilli())
}

func (c *WallClock) Block() uint64 {
	elapsed := uint64(time.Since(c.start).Milliseconds())
	return elapsed / c.blockInterval
}
