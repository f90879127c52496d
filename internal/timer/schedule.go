package timer

import (
	"sync"

	"github.com/jonboulle/clockwork"
)

// tickHandle is the cancellation token of one periodic schedule. Each Start
// or Resume creates a new one; ticks delivered to a stale handle are dropped.
type tickHandle struct {
	ticker clockwork.Ticker
	done   chan struct{}
	once   sync.Once
}

func (h *tickHandle) cancel() {
	h.once.Do(func() {
		h.ticker.Stop()
		close(h.done)
	})
}

func (c *Countdown) scheduleLocked() {
	if c.ticks != nil {
		return
	}
	h := &tickHandle{
		ticker: c.clock.NewTicker(c.cfg.TickInterval),
		done:   make(chan struct{}),
	}
	c.ticks = h
	go c.runTicks(h)
}

func (c *Countdown) cancelTicksLocked() {
	if c.ticks == nil {
		return
	}
	c.ticks.cancel()
	c.ticks = nil
}

func (c *Countdown) runTicks(h *tickHandle) {
	for {
		select {
		case <-h.done:
			return
		case <-h.ticker.Chan():
			c.tickFrom(h)
		}
	}
}

func (c *Countdown) tickFrom(h *tickHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ticks != h || c.stateLocked() != StateRunning {
		return
	}
	c.tickLocked(c.clock.Now())
}
