// Package slotutil provides a ticker that emits the current epoch number in
// step with a configured genesis time, used to drive batch processing on
// epoch boundaries.
package slotutil

import (
	"time"

	types "github.com/prysmaticlabs/eth2-types"
)

// EpochTicker is a special ticker for the epoch boundary. The channel emits
// over the epoch interval and ensures ticks stay aligned with genesis time,
// so the duration between a tick and genesis is always a multiple of the
// epoch duration.
type EpochTicker struct {
	c    chan types.Epoch
	done chan struct{}
}

// C returns the ticker channel. Call Done afterwards to ensure the
// goroutine driving it exits cleanly.
func (t *EpochTicker) C() <-chan types.Epoch {
	return t.c
}

// Done should be called to clean up the ticker.
func (t *EpochTicker) Done() {
	go func() {
		t.done <- struct{}{}
	}()
}

// NewEpochTicker is the constructor for EpochTicker.
func NewEpochTicker(genesisTime time.Time, secondsPerEpoch uint64) *EpochTicker {
	ticker := &EpochTicker{
		c:    make(chan types.Epoch),
		done: make(chan struct{}),
	}
	ticker.start(genesisTime, secondsPerEpoch, time.Since, time.Until, time.After)
	return ticker
}

func (t *EpochTicker) start(
	genesisTime time.Time,
	secondsPerEpoch uint64,
	since func(time.Time) time.Duration,
	until func(time.Time) time.Duration,
	after func(time.Duration) <-chan time.Time,
) {
	d := time.Duration(secondsPerEpoch) * time.Second

	go func() {
		sinceGenesis := since(genesisTime)

		var nextTickTime time.Time
		var epoch types.Epoch
		if sinceGenesis < 0 {
			nextTickTime = genesisTime
			epoch = 0
		} else {
			nextTick := sinceGenesis.Truncate(d) + d
			nextTickTime = genesisTime.Add(nextTick)
			epoch = types.Epoch(uint64(nextTick / d))
		}

		for {
			waitTime := until(nextTickTime)
			select {
			case <-after(waitTime):
				t.c <- epoch
				epoch++
				nextTickTime = nextTickTime.Add(d)
			case <-t.done:
				return
			}
		}
	}()
}
