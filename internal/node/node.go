package node

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/Ap3pp3rs94/gossipd/internal/ctlsock"
	"github.com/Ap3pp3rs94/gossipd/internal/pow"
	"github.com/Ap3pp3rs94/gossipd/internal/protocol"
	"github.com/Ap3pp3rs94/gossipd/internal/tasks"
	"github.com/Ap3pp3rs94/gossipd/internal/telemetry"
	"github.com/Ap3pp3rs94/gossipd/internal/wire"
	"github.com/Ap3pp3rs94/gossipd/pkg/stats"
)

// Node binds one UDP socket and owns the single-threaded event queue
// that serializes every mutation of protocol state: all receive-path
// dispatch, periodic-loop ticks, and input-loop injections are run as
// closures pulled off this queue by one goroutine, never concurrently.
type Node struct {
	cfg      Config
	core     *protocol.Core
	conn     net.PacketConn
	log      *telemetry.Logger
	statsC   *stats.Counters
	selfAddr string

	queue  chan func()
	ctx    context.Context
	cancel context.CancelFunc

	// recvWG tracks only receiveLoop, which can only be unblocked by
	// closing conn. taskWG tracks everything that stops on its own once
	// ctx is canceled (periodic loops, the input loop, ctlsock) and must
	// finish draining before conn is closed underneath them.
	recvWG sync.WaitGroup
	taskWG sync.WaitGroup
}

// New binds the datagram socket and wires the protocol core. The
// socket is bound to 127.0.0.1, per spec transport.
func New(cfg Config, log *telemetry.Logger) (*Node, error) {
	if log == nil {
		log = telemetry.Nop
	}

	conn, err := net.ListenPacket("udp", fmt.Sprintf("127.0.0.1:%d", cfg.Port))
	if err != nil {
		return nil, err
	}

	selfAddr := conn.LocalAddr().String()
	id := protocol.NewIdentity()
	st := &stats.Counters{}

	n := &Node{
		cfg:      cfg,
		conn:     conn,
		log:      log,
		statsC:   st,
		selfAddr: selfAddr,
		queue:    make(chan func(), 256),
	}

	send := func(addr string, env *wire.Envelope) {
		b, err := wire.Encode(env)
		if err != nil {
			return
		}
		raddr, err := net.ResolveUDPAddr("udp", addr)
		if err != nil {
			return
		}
		_, _ = n.conn.WriteTo(b, raddr)
	}

	n.core = protocol.NewCore(id, cfg.protocolConfig(selfAddr), log, st, send)
	return n, nil
}

// SelfAddr returns the bound "host:port" address.
func (n *Node) SelfAddr() string { return n.selfAddr }

// ID returns the node's identity hex string.
func (n *Node) ID() string { return n.core.ID }

// Core exposes the protocol core for the control socket and tests.
func (n *Node) Core() *protocol.Core { return n.core }

// post enqueues fn to run on the single owner goroutine. Safe to call
// from any goroutine (receive loop, periodic loops, input loop).
func (n *Node) post(fn func()) {
	select {
	case n.queue <- fn:
	case <-n.ctx.Done():
	}
}

// Run binds the receive loop, periodic loops, and (if non-nil) the
// application-input loop, sends the bootstrap HELLO/GET_PEERS if
// configured, then drains the owner queue until ctx is canceled.
// Run blocks until shutdown is complete.
func (n *Node) Run(ctx context.Context, input io.Reader) {
	n.ctx, n.cancel = context.WithCancel(ctx)
	defer n.cancel()

	var helloPoW *wire.PoWToken
	if n.cfg.PowK > 0 {
		n.log.Info("computing PoW", map[string]any{"k": n.cfg.PowK})
		tok := pow.Compute(n.core.ID, n.cfg.PowK)
		n.log.Info("PoW found", map[string]any{
			"nonce":      tok.Nonce,
			"digest":     wire.ShortID(tok.Digest),
			"elapsed_ms": tok.ElapsedMS,
		})
		helloPoW = &tok
	}

	n.recvWG.Add(1)
	go func() {
		defer n.recvWG.Done()
		n.receiveLoop()
	}()

	n.taskWG.Add(1)
	go func() {
		defer n.taskWG.Done()
		tasks.RunPingLoop(n.ctx, n.cfg.PingInterval, n.core, n.post)
	}()

	if n.cfg.Mode == protocol.ModeHybrid {
		n.taskWG.Add(1)
		go func() {
			defer n.taskWG.Done()
			tasks.RunPullLoop(n.ctx, n.cfg.PullInterval, n.core, n.post)
		}()
	}

	if input != nil {
		n.taskWG.Add(1)
		go func() {
			defer n.taskWG.Done()
			tasks.RunInputLoop(n.ctx, input, n.core, n.post)
		}()
	}

	if n.cfg.Bootstrap != "" {
		addr := n.cfg.Bootstrap
		n.post(func() {
			n.core.Bootstrap(addr, wire.HelloPayload{
				Capabilities: []string{"gossip/1"},
				PoW:          helloPoW,
			})
		})
	}

	if n.cfg.CtlSock != "" {
		srv, err := ctlsock.New(n.cfg.CtlSock, n.core, n.post, n.log)
		if err != nil {
			n.log.Error("ctlsock bind failed", map[string]any{"path": n.cfg.CtlSock, "err": err.Error()})
		} else {
			n.taskWG.Add(1)
			go func() {
				defer n.taskWG.Done()
				srv.Run(n.ctx)
			}()
		}
	}

	n.ownerLoop()
	n.shutdown()
}

// ownerLoop is the single serialized consumer of every posted closure.
func (n *Node) ownerLoop() {
	for {
		select {
		case <-n.ctx.Done():
			return
		case fn := <-n.queue:
			n.safeRun(fn)
		}
	}
}

func (n *Node) receiveLoop() {
	buf := make([]byte, 65535)
	for {
		size, addr, err := n.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		data := append([]byte(nil), buf[:size]...)
		from := addr.String()

		n.post(func() {
			env, err := wire.Decode(data)
			if err != nil {
				return
			}
			n.safeDispatch(from, env)
		})
	}
}

func (n *Node) safeDispatch(from string, env *wire.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("handler panic recovered", map[string]any{"from": from, "panic": fmt.Sprintf("%v", r)})
		}
	}()
	n.core.Dispatch(from, env)
}

func (n *Node) safeRun(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("task panic recovered", map[string]any{"panic": fmt.Sprintf("%v", r)})
		}
	}()
	fn()
}

// shutdown cancels loops, drains every task that stops on its own
// (periodic loops, input loop, ctlsock), only then closes the socket
// to unblock the receive loop, waits for it to exit, drains whatever
// is left in the queue best-effort, then emits the final STATS line.
func (n *Node) shutdown() {
	n.cancel()
	n.taskWG.Wait()
	_ = n.conn.Close()
	n.recvWG.Wait()

	for {
		select {
		case fn := <-n.queue:
			n.safeRun(fn)
		default:
			goto drained
		}
	}
drained:

	snap := n.statsC.Snap(n.core.Peers.Len())
	n.log.Raw(fmt.Sprintf("STATS sent=%d peers=%d seen=%d", snap.Sent, snap.Peers, snap.Seen))
}
