package protocol

import (
	"time"

	"github.com/Ap3pp3rs94/gossipd/internal/peerstore"
	"github.com/Ap3pp3rs94/gossipd/internal/pow"
	"github.com/Ap3pp3rs94/gossipd/internal/wire"
)

// Dispatch routes an inbound envelope by kind. Every handler is
// panic-guarded by the caller (the receive loop); a failure here is
// swallowed after logging, never propagated, per the error handling
// policy. from is the UDP source address the datagram actually
// arrived from (authoritative; env.SenderAddr is self-reported and
// only used for payload content, never for routing replies).
func (c *Core) Dispatch(from string, env *wire.Envelope) {
	switch env.Kind {
	case wire.KindHello:
		c.handleHello(from, env)
	case wire.KindGetPeers:
		c.handleGetPeers(from, env)
	case wire.KindPeersList:
		c.handlePeersList(from, env)
	case wire.KindGossip:
		c.handleGossip(from, env)
	case wire.KindPing:
		c.handlePing(from, env)
	case wire.KindPong:
		c.handlePong(from, env)
	case wire.KindIHave:
		c.handleIHave(from, env)
	case wire.KindIWant:
		c.handleIWant(from, env)
	}
}

func (c *Core) handleHello(from string, env *wire.Envelope) {
	hello, _ := env.Payload.(wire.HelloPayload)

	if c.Cfg.PowK > 0 {
		if !pow.Verify(env.SenderID, hello.PoW, c.Cfg.PowK) {
			c.Log.Info("HELLO rejected: PoW verification failed", map[string]any{"addr": from})
			return
		}
	}

	c.touch(from, env.SenderID)
	c.Log.Raw("HELLO from " + from)

	reply := wire.New(wire.KindPeersList, c.ID, c.Cfg.SelfAddr, 0, wire.PeersListPayload{
		Peers: toPeerInfos(c.Peers.Snapshot(c.Cfg.PeerLimit)),
	})
	c.sendTo(from, reply)
}

func (c *Core) handleGetPeers(from string, env *wire.Envelope) {
	if c.Cfg.PowK > 0 && !c.Peers.Has(from) {
		return
	}
	c.touch(from, env.SenderID)

	gp, _ := env.Payload.(wire.GetPeersPayload)
	snap := c.Peers.Snapshot(c.Cfg.PeerLimit)
	limit := gp.MaxPeers
	if limit <= 0 || limit > len(snap) {
		limit = len(snap)
	}

	reply := wire.New(wire.KindPeersList, c.ID, c.Cfg.SelfAddr, 0, wire.PeersListPayload{
		Peers: toPeerInfos(snap[:limit]),
	})
	c.sendTo(from, reply)
}

func (c *Core) handlePeersList(from string, env *wire.Envelope) {
	c.touch(from, env.SenderID)

	pl, _ := env.Payload.(wire.PeersListPayload)
	for _, p := range pl.Peers {
		if p.Addr == "" || p.Addr == c.Cfg.SelfAddr {
			continue
		}
		c.touch(p.Addr, p.NodeID)
	}
}

func (c *Core) handleGossip(from string, env *wire.Envelope) {
	gp, _ := env.Payload.(wire.GossipPayload)

	if c.Seen.Contains(env.MsgID) {
		return
	}

	c.Seen.Mark(env.MsgID, env)
	c.Stats.SetSeen(c.Seen.Len())
	c.touch(from, env.SenderID)
	c.Log.Raw("GOSSIP recv  msg_id=" + wire.ShortID(env.MsgID))

	if env.TTL-1 <= 0 {
		return
	}

	targets := c.Peers.Sample(c.Cfg.Fanout, from)
	for _, addr := range targets {
		out := wire.New(wire.KindGossip, c.ID, c.Cfg.SelfAddr, env.TTL-1, wire.GossipPayload{
			Topic:             gp.Topic,
			Data:              gp.Data,
			OriginID:          gp.OriginID,
			OriginTimestampMS: gp.OriginTimestampMS,
		})
		out.MsgID = env.MsgID
		c.sendTo(addr, out)
	}
}

func (c *Core) handlePing(from string, env *wire.Envelope) {
	c.touch(from, env.SenderID)

	pp, _ := env.Payload.(wire.PingPayload)
	reply := wire.New(wire.KindPong, c.ID, c.Cfg.SelfAddr, 0, wire.PongPayload{
		PingID: pp.PingID,
		Seq:    pp.Seq,
	})
	c.sendTo(from, reply)
}

func (c *Core) handlePong(from string, env *wire.Envelope) {
	pp, _ := env.Payload.(wire.PongPayload)
	c.AckPing(pp.PingID, time.Now())
	c.touch(from, env.SenderID)
}

func (c *Core) handleIHave(from string, env *wire.Envelope) {
	c.touch(from, env.SenderID)

	ih, _ := env.Payload.(wire.IHavePayload)
	missing := make([]string, 0, len(ih.IDs))
	for _, id := range ih.IDs {
		if !c.Seen.Contains(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return
	}

	reply := wire.New(wire.KindIWant, c.ID, c.Cfg.SelfAddr, 0, wire.IWantPayload{IDs: missing})
	c.sendTo(from, reply)
}

func (c *Core) handleIWant(from string, env *wire.Envelope) {
	c.touch(from, env.SenderID)

	iw, _ := env.Payload.(wire.IWantPayload)
	for _, id := range iw.IDs {
		stored, ok := c.Seen.Get(id)
		if !ok {
			continue
		}
		gp, ok := stored.Payload.(wire.GossipPayload)
		if !ok {
			continue
		}
		out := wire.New(wire.KindGossip, c.ID, c.Cfg.SelfAddr, 1, gp)
		out.MsgID = id
		c.sendTo(from, out)
	}
}

func toPeerInfos(peers []peerstore.Peer) []wire.PeerInfo {
	out := make([]wire.PeerInfo, 0, len(peers))
	for _, p := range peers {
		out = append(out, wire.PeerInfo{NodeID: p.NodeID, Addr: p.Addr})
	}
	return out
}
