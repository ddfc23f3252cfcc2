// Package protocol implements the dispatch-by-kind protocol handler:
// it owns the mutable node state (peer table, seen set, pending pings,
// PRNG) behind a single Core value and updates it in response to
// inbound envelopes, periodic ticks, and application input. All of
// Core's methods assume single-owner, serialized access, per the
// node's concurrency model.
package protocol

import (
	"crypto/rand"
	"encoding/hex"
	mrand "math/rand"
	"time"

	"github.com/Ap3pp3rs94/gossipd/internal/antientropy"
	"github.com/Ap3pp3rs94/gossipd/internal/peerstore"
	"github.com/Ap3pp3rs94/gossipd/internal/telemetry"
	"github.com/Ap3pp3rs94/gossipd/internal/wire"
	"github.com/Ap3pp3rs94/gossipd/pkg/stats"
)

// Mode selects push-only or push-pull dissemination.
type Mode string

const (
	ModePush   Mode = "push"
	ModeHybrid Mode = "hybrid"
)

// Config holds the protocol-level parameters sourced from CLI flags.
type Config struct {
	SelfAddr     string
	Fanout       int
	TTL          int
	PeerLimit    int
	PingInterval time.Duration
	PeerTimeout  time.Duration
	Seed         int64
	Mode         Mode
	PullInterval time.Duration
	IHaveMaxIDs  int
	PowK         int
}

// Sender delivers an encoded envelope to addr. It reports nothing back:
// failures are dropped inside the sender and never propagate; the
// transport is best-effort.
type Sender func(addr string, env *wire.Envelope)

// NewIdentity returns a fresh random 128-bit node identity as hex.
func NewIdentity() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Core is the node's single owner of mutable protocol state.
type Core struct {
	ID  string
	Cfg Config

	Peers *peerstore.Table
	Seen  *antientropy.SeenSet

	pending map[string]time.Time // ping_id -> sent-at
	pingSeq uint64

	rng *mrand.Rand

	Log   *telemetry.Logger
	Stats *stats.Counters

	send Sender
}

// NewCore builds a Core with a peer table bounded at cfg.PeerLimit and
// a seen set at the default capacity, seeded from cfg.Seed.
func NewCore(id string, cfg Config, log *telemetry.Logger, st *stats.Counters, send Sender) *Core {
	rng := mrand.New(mrand.NewSource(cfg.Seed))
	return &Core{
		ID:      id,
		Cfg:     cfg,
		Peers:   peerstore.New(cfg.SelfAddr, cfg.PeerLimit, rng),
		Seen:    antientropy.New(antientropy.DefaultCapacity),
		pending: make(map[string]time.Time),
		rng:     rng,
		Log:     log,
		Stats:   st,
		send:    send,
	}
}

// StatsSnapshot reports the node's counters. Must be called from the
// single owner goroutine, same as every other Core method.
func (c *Core) StatsSnapshot() stats.Snapshot {
	return c.Stats.Snap(c.Peers.Len())
}

// sendTo encodes and delivers env to addr via the configured sender,
// incrementing the sent counter and emitting the SENT log line.
func (c *Core) sendTo(addr string, env *wire.Envelope) {
	c.send(addr, env)
	c.Stats.IncSent()
	c.Log.Raw("SENT " + string(env.Kind) + " -> " + addr)
}

// touch wraps peer-table Touch with the peer added/evicted log lines.
func (c *Core) touch(addr, nodeID string) {
	if addr == "" || addr == c.Cfg.SelfAddr {
		return
	}
	evicted, added := c.Peers.Touch(addr, nodeID, time.Now())
	if evicted != "" {
		c.Log.Raw("peer evicted " + evicted)
	}
	if added {
		c.Log.Raw("peer added   " + addr)
	}
}

// registerPing returns a fresh ping correlation id and registers it in
// the pending-ping map at now.
func (c *Core) registerPing(now time.Time) string {
	id := wire.NewMsgID()
	c.pending[id] = now
	return id
}

// NextSeq returns a monotonically increasing sequence number, shared
// across all PINGs this node emits (spec's resolution of the
// `_ping_seq` open question).
func (c *Core) NextSeq() uint64 {
	c.pingSeq++
	return c.pingSeq
}

// ExpirePendingPings drops pending entries older than timeout,
// returning how many were dropped.
func (c *Core) ExpirePendingPings(now time.Time, timeout time.Duration) int {
	cutoff := now.Add(-timeout)
	n := 0
	for id, sentAt := range c.pending {
		if sentAt.Before(cutoff) {
			delete(c.pending, id)
			n++
		}
	}
	return n
}

// AckPing removes id from the pending-ping map if present, returning
// the round-trip time.
func (c *Core) AckPing(id string, now time.Time) (time.Duration, bool) {
	sentAt, ok := c.pending[id]
	if !ok {
		return 0, false
	}
	delete(c.pending, id)
	return now.Sub(sentAt), true
}
