// Package node wires the envelope codec, peer table, anti-entropy
// state, protocol handler, and periodic loops together behind one UDP
// socket: the node's endpoint and lifecycle (§4.7, §5 of the spec).
package node

import (
	"time"

	"github.com/Ap3pp3rs94/gossipd/internal/protocol"
)

// Config is the node's full set of CLI-sourced parameters.
type Config struct {
	Port         int
	Bootstrap    string
	Fanout       int
	TTL          int
	PeerLimit    int
	PingInterval time.Duration
	PeerTimeout  time.Duration
	Seed         int64
	Mode         protocol.Mode
	PullInterval time.Duration
	IHaveMaxIDs  int
	PowK         int
	CtlSock      string
}

// DefaultConfig mirrors the CLI flag defaults from spec §6.
func DefaultConfig() Config {
	return Config{
		Fanout:       3,
		TTL:          8,
		PeerLimit:    20,
		PingInterval: time.Second,
		PeerTimeout:  5 * time.Second,
		Mode:         protocol.ModePush,
		PullInterval: 2 * time.Second,
		IHaveMaxIDs:  50,
		PowK:         0,
	}
}

func (c Config) protocolConfig(selfAddr string) protocol.Config {
	return protocol.Config{
		SelfAddr:     selfAddr,
		Fanout:       c.Fanout,
		TTL:          c.TTL,
		PeerLimit:    c.PeerLimit,
		PingInterval: c.PingInterval,
		PeerTimeout:  c.PeerTimeout,
		Seed:         c.Seed,
		Mode:         c.Mode,
		PullInterval: c.PullInterval,
		IHaveMaxIDs:  c.IHaveMaxIDs,
		PowK:         c.PowK,
	}
}
