// Command gossipd runs one epidemic gossip node: bind a UDP socket,
// optionally bootstrap against a known peer, and disseminate whatever
// arrives on stdin to the rest of the mesh until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Ap3pp3rs94/gossipd/internal/node"
	"github.com/Ap3pp3rs94/gossipd/internal/protocol"
	"github.com/Ap3pp3rs94/gossipd/internal/telemetry"
)

func main() {
	cfg, logLevel, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "gossipd:", err)
		os.Exit(2)
	}

	log := telemetry.New(os.Stdout, cfg.Port, logLevel)

	n, err := node.New(cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gossipd: bind failed:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received", nil)
		cancel()
	}()

	n.Run(ctx, os.Stdin)
}

// parseFlags reads CLI flags, falling back to GOSSIPD_<FLAG_NAME>
// environment variables for anything not passed explicitly, the way
// the teacher's config loader layers env over defaults.
func parseFlags(args []string) (node.Config, telemetry.Level, error) {
	def := node.DefaultConfig()
	fs := flag.NewFlagSet("gossipd", flag.ContinueOnError)

	port := fs.Int("port", envInt("PORT", 0), "UDP port to bind (0 picks an ephemeral port)")
	bootstrap := fs.String("bootstrap", envStr("BOOTSTRAP", ""), "host:port of a known peer to bootstrap against")
	fanout := fs.Int("fanout", envInt("FANOUT", def.Fanout), "peers to target per gossip round")
	ttl := fs.Int("ttl", envInt("TTL", def.TTL), "hop budget stamped on originated messages")
	peerLimit := fs.Int("peer-limit", envInt("PEER_LIMIT", def.PeerLimit), "max tracked peers")
	pingInterval := fs.Float64("ping-interval", envFloat("PING_INTERVAL", def.PingInterval.Seconds()), "seconds between ping rounds")
	peerTimeout := fs.Float64("peer-timeout", envFloat("PEER_TIMEOUT", def.PeerTimeout.Seconds()), "seconds of silence before a peer is evicted")
	seed := fs.Int64("seed", envInt64("SEED", 0), "PRNG seed for peer sampling")
	mode := fs.String("mode", envStr("MODE", string(def.Mode)), "push or hybrid")
	pullInterval := fs.Float64("pull-interval", envFloat("PULL_INTERVAL", def.PullInterval.Seconds()), "seconds between IHAVE rounds (hybrid mode only)")
	ihaveMaxIDs := fs.Int("ihave-max-ids", envInt("IHAVE_MAX_IDS", def.IHaveMaxIDs), "max message ids advertised per IHAVE")
	powK := fs.Int("pow-k", envInt("POW_K", def.PowK), "required leading-zero hex digits on bootstrap HELLO (0 disables)")
	ctlSock := fs.String("ctl-sock", envStr("CTL_SOCK", ""), "path to a Unix control socket (empty disables)")
	logLevelFlag := fs.String("log-level", envStr("LOG_LEVEL", "info"), "debug, info, warn, or error")

	if err := fs.Parse(args); err != nil {
		return node.Config{}, "", err
	}

	m := protocol.Mode(strings.ToLower(strings.TrimSpace(*mode)))
	if m != protocol.ModePush && m != protocol.ModeHybrid {
		return node.Config{}, "", fmt.Errorf("invalid --mode %q: must be push or hybrid", *mode)
	}

	cfg := node.Config{
		Port:         *port,
		Bootstrap:    strings.TrimSpace(*bootstrap),
		Fanout:       *fanout,
		TTL:          *ttl,
		PeerLimit:    *peerLimit,
		PingInterval: secondsToDuration(*pingInterval),
		PeerTimeout:  secondsToDuration(*peerTimeout),
		Seed:         *seed,
		Mode:         m,
		PullInterval: secondsToDuration(*pullInterval),
		IHaveMaxIDs:  *ihaveMaxIDs,
		PowK:         *powK,
		CtlSock:      strings.TrimSpace(*ctlSock),
	}

	return cfg, telemetry.Level(strings.ToLower(strings.TrimSpace(*logLevelFlag))), nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func envStr(name, def string) string {
	v := strings.TrimSpace(os.Getenv("GOSSIPD_" + name))
	if v == "" {
		return def
	}
	return v
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv("GOSSIPD_" + name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envInt64(name string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv("GOSSIPD_" + name))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envFloat(name string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv("GOSSIPD_" + name))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
