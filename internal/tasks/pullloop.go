package tasks

import (
	"context"
	"time"

	"github.com/Ap3pp3rs94/gossipd/internal/protocol"
)

// RunPullLoop ticks every interval, advertising known message ids via
// IHAVE. Only meaningful in hybrid mode; the node only starts this
// loop when Cfg.Mode == ModeHybrid.
func RunPullLoop(ctx context.Context, interval time.Duration, core *protocol.Core, post func(func())) {
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			post(func() { core.EmitPull(now) })
		}
	}
}
