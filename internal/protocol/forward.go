package protocol

import (
	"time"

	"github.com/Ap3pp3rs94/gossipd/internal/wire"
)

// Inject turns one line of application input into a new GOSSIP
// envelope: fresh msg id, marked self-seen, fanned out to up to
// Cfg.Fanout peers sampled from the whole table (no exclusion). If the
// peer table is empty, the message is logged and skipped.
func (c *Core) Inject(topic, data string) {
	if c.Peers.Len() == 0 {
		c.Log.Info("gossip injection skipped: no peers", map[string]any{"topic": topic})
		return
	}

	env := wire.New(wire.KindGossip, c.ID, c.Cfg.SelfAddr, c.Cfg.TTL, wire.GossipPayload{
		Topic:             topic,
		Data:              data,
		OriginID:          c.ID,
		OriginTimestampMS: wire.NowMS(),
	})

	c.Seen.Mark(env.MsgID, env)
	c.Stats.SetSeen(c.Seen.Len())
	c.Log.Raw("GOSSIP new   msg_id=" + wire.ShortID(env.MsgID))

	for _, addr := range c.Peers.Sample(c.Cfg.Fanout, "") {
		out := wire.New(wire.KindGossip, c.ID, c.Cfg.SelfAddr, c.Cfg.TTL, env.Payload)
		out.MsgID = env.MsgID
		c.sendTo(addr, out)
	}
}

// EmitPing runs one ping-loop tick: sweep timed-out peers, drop
// pending pings older than PeerTimeout, and if any peers remain,
// sample Cfg.Fanout of them and send a PING with a fresh correlation
// id registered in the pending-ping map.
func (c *Core) EmitPing(now time.Time) {
	for _, addr := range c.Peers.Sweep(now, c.Cfg.PeerTimeout) {
		c.Log.Raw("peer removed " + addr)
	}
	c.ExpirePendingPings(now, c.Cfg.PeerTimeout)

	targets := c.Peers.Sample(c.Cfg.Fanout, "")
	for _, addr := range targets {
		pingID := c.registerPing(now)
		env := wire.New(wire.KindPing, c.ID, c.Cfg.SelfAddr, 0, wire.PingPayload{
			PingID: pingID,
			Seq:    c.NextSeq(),
		})
		c.sendTo(addr, env)
	}
}

// EmitPull runs one pull-loop tick (hybrid mode only): if peers exist
// and the seen set is non-empty, advertise the most recent
// Cfg.IHaveMaxIDs message ids to Cfg.Fanout sampled peers.
func (c *Core) EmitPull(now time.Time) {
	if c.Peers.Len() == 0 || c.Seen.Len() == 0 {
		return
	}

	ids := c.Seen.Recent(c.Cfg.IHaveMaxIDs)
	targets := c.Peers.Sample(c.Cfg.Fanout, "")
	for _, addr := range targets {
		env := wire.New(wire.KindIHave, c.ID, c.Cfg.SelfAddr, 0, wire.IHavePayload{
			IDs:    ids,
			MaxIDs: c.Cfg.IHaveMaxIDs,
		})
		c.sendTo(addr, env)
	}
}

// Bootstrap sends one HELLO and one GET_PEERS to addr. No retries and
// no success confirmation: further discovery proceeds through normal
// gossip. hello carries a PoW token when powK > 0.
func (c *Core) Bootstrap(addr string, hello wire.HelloPayload) {
	helloEnv := wire.New(wire.KindHello, c.ID, c.Cfg.SelfAddr, 0, hello)
	c.sendTo(addr, helloEnv)

	gpEnv := wire.New(wire.KindGetPeers, c.ID, c.Cfg.SelfAddr, 0, wire.GetPeersPayload{
		MaxPeers: c.Cfg.PeerLimit,
	})
	c.sendTo(addr, gpEnv)
}
