// Package tasks implements the node's periodic, cooperative loops:
// ping/timeout, optional pull advertisement, and application input.
// Each loop only enqueues work onto the node's single owner via post;
// see internal/node for how that queue is drained.
package tasks

import (
	"context"
	"time"

	"github.com/Ap3pp3rs94/gossipd/internal/protocol"
)

// RunPingLoop ticks every interval: sweep timeouts, expire pending
// pings, and (if peers remain) ping a fanout-sized sample. post
// enqueues the tick onto the node's single owner goroutine so Core
// mutation stays serialized; the loop itself never touches core
// directly. Exits when ctx is canceled.
func RunPingLoop(ctx context.Context, interval time.Duration, core *protocol.Core, post func(func())) {
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
			post(func() { core.EmitPing(now) })
		}
	}
}
