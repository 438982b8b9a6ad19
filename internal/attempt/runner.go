package attempt

import (
	"context"
	"time"
)

// TickInterval is the single scheduler period driving every timer concern.
const TickInterval = time.Second

// Run drives Tick once per interval until ctx is cancelled or the attempt
// reaches a terminal state. It is the only time source of the controller.
func (c *Controller) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = TickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.log.Debug().Dur("interval", interval).Msg("Attempt scheduler started")
	for {
		select {
		case <-ctx.Done():
			c.log.Debug().Msg("Attempt scheduler stopped")
			return
		case now := <-ticker.C:
			c.Tick(ctx, now)
			if c.Finished() {
				c.log.Debug().Str("state", string(c.State())).Msg("Attempt finished, scheduler exiting")
				return
			}
		}
	}
}
