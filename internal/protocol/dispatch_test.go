package protocol

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/Ap3pp3rs94/gossipd/internal/pow"
	"github.com/Ap3pp3rs94/gossipd/internal/telemetry"
	"github.com/Ap3pp3rs94/gossipd/internal/wire"
	"github.com/Ap3pp3rs94/gossipd/pkg/stats"
	"github.com/stretchr/testify/require"
)

// network wires a small set of in-process Core instances together: each
// Core's Sender synchronously calls the target Core's Dispatch, so a
// whole mesh can be driven deterministically without real sockets.
type network struct {
	cores map[string]*Core
}

func newNetwork() *network { return &network{cores: make(map[string]*Core)} }

func (n *network) add(addr string, cfg Config, seed int64) *Core {
	cfg.SelfAddr = addr
	cfg.Seed = seed
	c := NewCore(addr, cfg, telemetry.Nop, &stats.Counters{}, func(to string, env *wire.Envelope) {
		target, ok := n.cores[to]
		if !ok {
			return
		}
		target.Dispatch(addr, env)
	})
	n.cores[addr] = c
	return c
}

func baseConfig() Config {
	return Config{
		Fanout:      3,
		TTL:         8,
		PeerLimit:   20,
		PeerTimeout: 5 * time.Second,
		Mode:        ModePush,
		IHaveMaxIDs: 50,
	}
}

func TestDispatch_ThreeNodeBootstrap(t *testing.T) {
	n := newNetwork()
	seed := n.add("127.0.0.1:9000", baseConfig(), 1)
	a := n.add("127.0.0.1:9001", baseConfig(), 2)
	b := n.add("127.0.0.1:9002", baseConfig(), 3)

	a.Bootstrap(seed.Cfg.SelfAddr, wire.HelloPayload{Capabilities: []string{"gossip/1"}})
	b.Bootstrap(seed.Cfg.SelfAddr, wire.HelloPayload{Capabilities: []string{"gossip/1"}})

	require.True(t, seed.Peers.Has(a.Cfg.SelfAddr))
	require.True(t, seed.Peers.Has(b.Cfg.SelfAddr))
	require.True(t, a.Peers.Has(seed.Cfg.SelfAddr))
	require.True(t, b.Peers.Has(seed.Cfg.SelfAddr))
}

func TestDispatch_GossipDedupAndForwardAtMostOnce(t *testing.T) {
	n := newNetwork()
	cfg := baseConfig()
	cfg.Fanout = 2

	x := n.add("127.0.0.1:9000", cfg, 1)
	y := n.add("127.0.0.1:9001", cfg, 2)
	z := n.add("127.0.0.1:9002", cfg, 3)

	x.touch(y.Cfg.SelfAddr, y.ID)
	y.touch(x.Cfg.SelfAddr, x.ID)
	y.touch(z.Cfg.SelfAddr, z.ID)
	z.touch(y.Cfg.SelfAddr, y.ID)

	x.Inject("topic", "payload")

	require.Equal(t, 1, y.Seen.Len())
	require.Equal(t, 1, z.Seen.Len())
	require.EqualValues(t, 1, y.Stats.Snap(0).Sent)

	msgID := x.Seen.Recent(1)[0]
	stored, ok := z.Seen.Get(msgID)
	require.True(t, ok)

	sentBefore := y.Stats.Snap(0).Sent
	y.Dispatch(z.Cfg.SelfAddr, stored)
	require.Equal(t, sentBefore, y.Stats.Snap(0).Sent)
}

func TestDispatch_TenNodePropagation_DeliversMost(t *testing.T) {
	n := newNetwork()
	cfg := baseConfig()
	cfg.Fanout = 4
	cfg.TTL = 8

	const count = 10
	addrs := make([]string, count)
	cores := make([]*Core, count)
	for i := 0; i < count; i++ {
		addr := fmt.Sprintf("127.0.0.1:%d", 9000+i)
		addrs[i] = addr
		cores[i] = n.add(addr, cfg, int64(i+1))
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < count; i++ {
		for j := 0; j < count; j++ {
			if i == j {
				continue
			}
			if rng.Float64() < 0.4 {
				cores[i].touch(addrs[j], cores[j].ID)
			}
		}
	}

	cores[0].Inject("broadcast", "hello mesh")

	delivered := 0
	for _, c := range cores {
		if c.Seen.Len() > 0 {
			delivered++
		}
	}
	require.GreaterOrEqual(t, delivered, 9)
}

func TestDispatch_HybridModeSendsAtLeastAsManyAsPush(t *testing.T) {
	buildRing := func(mode Mode) uint64 {
		n := newNetwork()
		cfg := baseConfig()
		cfg.Mode = mode
		cfg.Fanout = 2
		const count = 6
		cores := make([]*Core, count)
		for i := 0; i < count; i++ {
			addr := fmt.Sprintf("127.0.0.1:%d", 9100+i)
			cores[i] = n.add(addr, cfg, int64(i+1))
		}
		for i := 0; i < count; i++ {
			next := (i + 1) % count
			cores[i].touch(cores[next].Cfg.SelfAddr, cores[next].ID)
			cores[next].touch(cores[i].Cfg.SelfAddr, cores[i].ID)
		}

		cores[0].Inject("ring", "x")
		if mode == ModeHybrid {
			now := time.Now()
			for _, c := range cores {
				c.EmitPull(now)
			}
		}

		var total uint64
		for _, c := range cores {
			total += c.Stats.Snap(0).Sent
		}
		return total
	}

	pushTotal := buildRing(ModePush)
	hybridTotal := buildRing(ModeHybrid)

	require.GreaterOrEqual(t, hybridTotal, pushTotal)
}

func TestDispatch_PoWAdmission(t *testing.T) {
	n := newNetwork()

	strictCfg := baseConfig()
	strictCfg.PowK = 4
	seed := n.add("127.0.0.1:9000", strictCfg, 1)

	laxCfg := baseConfig()
	laxCfg.PowK = 0
	joiner := n.add("127.0.0.1:9001", laxCfg, 2)

	joiner.Bootstrap(seed.Cfg.SelfAddr, wire.HelloPayload{Capabilities: []string{"gossip/1"}})
	require.False(t, seed.Peers.Has(joiner.Cfg.SelfAddr))
}

func TestDispatch_PoWAdmission_BothSidesMatchSucceeds(t *testing.T) {
	n := newNetwork()
	cfg := baseConfig()
	cfg.PowK = 3
	cfg.Fanout = 2

	const count = 3
	cores := make([]*Core, count)
	for i := 0; i < count; i++ {
		addr := fmt.Sprintf("127.0.0.1:%d", 9200+i)
		cores[i] = n.add(addr, cfg, int64(i+1))
	}

	for i := 1; i < count; i++ {
		tok := pow.Compute(cores[i].ID, cfg.PowK)
		cores[i].Bootstrap(cores[0].Cfg.SelfAddr, wire.HelloPayload{
			Capabilities: []string{"gossip/1"},
			PoW:          &tok,
		})
	}

	for i := 1; i < count; i++ {
		require.True(t, cores[0].Peers.Has(cores[i].Cfg.SelfAddr))
	}

	cores[0].Inject("admitted", "y")
	delivered := 0
	for _, c := range cores {
		if c.Seen.Len() > 0 {
			delivered++
		}
	}
	require.GreaterOrEqual(t, delivered, 2)
}
