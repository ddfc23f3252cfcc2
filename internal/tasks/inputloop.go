package tasks

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/Ap3pp3rs94/gossipd/internal/protocol"
)

// DefaultInputTopic is the GOSSIP topic assigned to lines read from
// the application-input source; the source is line-oriented text with
// no topic-prefix convention of its own (spec §4.5/§6).
const DefaultInputTopic = "app"

// RunInputLoop reads lines from r (never the receive path, so a slow
// or idle input source can never block datagram reception) and posts
// each non-empty trimmed line as a new GOSSIP injection onto the
// node's single owner. On EOF the loop idles on ctx instead of
// returning, so the node stays up as a background participant.
func RunInputLoop(ctx context.Context, r io.Reader, core *protocol.Core, post func(func())) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		post(func() { core.Inject(DefaultInputTopic, line) })
	}

	<-ctx.Done()
}
